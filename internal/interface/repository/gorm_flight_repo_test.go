package repository

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"kiosk-flight-service/internal/domain/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

func TestFlightsModelShortCodeIndexIsPartial(t *testing.T) {
	s, err := schema.Parse(&Flights{}, &sync.Map{}, schema.NamingStrategy{})
	if err != nil {
		t.Fatalf("Failed to parse Flights schema: %v", err)
	}

	field := s.LookUpField("short_code")
	if field == nil {
		t.Fatal("Expected a short_code column")
	}

	setting := field.TagSettings["UNIQUEINDEX"]
	if !strings.HasPrefix(setting, "idx_flights_short_code") {
		t.Errorf("Expected unique index idx_flights_short_code, got %q", setting)
	}
	if !strings.Contains(setting, "where:short_code <> ''") {
		t.Errorf("Expected index to skip empty codes, got %q", setting)
	}
}

func TestTranslateGormError(t *testing.T) {
	dbErr := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"duplicate key", gorm.ErrDuplicatedKey, entity.ErrWriteConflict},
		{"wrapped duplicate key", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), entity.ErrWriteConflict},
		{"record not found", gorm.ErrRecordNotFound, entity.ErrFlightNotFound},
		{"other", dbErr, dbErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateGormError(tt.err, "failed to assign short code")
			if !errors.Is(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	if got := translateGormError(dbErr, "failed to assign short code"); !strings.HasPrefix(got.Error(), "failed to assign short code: ") {
		t.Errorf("Expected wrapped message, got %q", got.Error())
	}
}
