package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kiosk-flight-service/internal/domain/entity"
	"kiosk-flight-service/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormFlightRepository implements the FlightRepository interface on PostgreSQL.
// The gorm.DB must be opened with TranslateError so unique violations
// surface as gorm.ErrDuplicatedKey.
type GormFlightRepository struct {
	db *gorm.DB
}

// NewGormFlightRepository creates a new GORM flight repository
func NewGormFlightRepository(db *gorm.DB) repository.FlightRepository {
	return &GormFlightRepository{
		db: db,
	}
}

// Flights GORM model for database mapping
type Flights struct {
	ID        string    `gorm:"primaryKey;column:id"`
	Name      string    `gorm:"column:name"`
	TeeTime   time.Time `gorm:"column:tee_time;index"`
	Players   []string  `gorm:"column:players;serializer:json"`
	ShortCode *string   `gorm:"column:short_code;uniqueIndex:idx_flights_short_code,where:short_code <> ''"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the default table name
func (Flights) TableName() string {
	return "flights"
}

// MigrateFlights creates or updates the flights table and its indexes
func MigrateFlights(db *gorm.DB) error {
	return db.AutoMigrate(&Flights{})
}

// Create inserts a flight row
func (r *GormFlightRepository) Create(ctx context.Context, flight *entity.Flight) error {
	if flight.ID == "" {
		flight.ID = uuid.NewString()
	}

	model := toFlightModel(flight)
	result := r.db.WithContext(ctx).Create(&model)
	if result.Error != nil {
		return translateGormError(result.Error, "failed to insert flight")
	}

	flight.CreatedAt = model.CreatedAt
	flight.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByID finds a flight by id
func (r *GormFlightRepository) FindByID(ctx context.Context, id string) (*entity.Flight, error) {
	var model Flights
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&model)
	if result.Error != nil {
		return nil, translateGormError(result.Error, "failed to find flight")
	}
	return toFlightEntity(model), nil
}

// FindByShortCode finds a flight by short code
func (r *GormFlightRepository) FindByShortCode(ctx context.Context, code string) (*entity.Flight, error) {
	var model Flights
	result := r.db.WithContext(ctx).Where("short_code = ?", code).First(&model)
	if result.Error != nil {
		return nil, translateGormError(result.Error, "failed to find flight by code")
	}
	return toFlightEntity(model), nil
}

// FindAll returns every flight, oldest first
func (r *GormFlightRepository) FindAll(ctx context.Context) ([]*entity.Flight, error) {
	var models []Flights
	result := r.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list flights: %w", result.Error)
	}

	flights := make([]*entity.Flight, 0, len(models))
	for _, m := range models {
		flights = append(flights, toFlightEntity(m))
	}
	return flights, nil
}

// ListShortCodes returns the set of codes in use
func (r *GormFlightRepository) ListShortCodes(ctx context.Context) (map[string]struct{}, error) {
	var values []string
	result := r.db.WithContext(ctx).
		Model(&Flights{}).
		Where("short_code IS NOT NULL AND short_code <> ''").
		Pluck("short_code", &values)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list short codes: %w", result.Error)
	}

	codes := make(map[string]struct{}, len(values))
	for _, v := range values {
		codes[v] = struct{}{}
	}
	return codes, nil
}

// AssignShortCode sets the code only if the stored value still equals expected
func (r *GormFlightRepository) AssignShortCode(ctx context.Context, id string, expected *string, code string) error {
	query := r.db.WithContext(ctx).Model(&Flights{}).Where("id = ?", id)
	if expected == nil || *expected == "" {
		query = query.Where("short_code IS NULL OR short_code = ''")
	} else {
		query = query.Where("short_code = ?", *expected)
	}

	result := query.Updates(map[string]interface{}{
		"short_code": code,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return translateGormError(result.Error, "failed to assign short code")
	}

	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return entity.ErrCodeAlreadyAssigned
	}
	return nil
}

// ReassignShortCode replaces the code unconditionally
func (r *GormFlightRepository) ReassignShortCode(ctx context.Context, id string, code string) error {
	result := r.db.WithContext(ctx).Model(&Flights{}).Where("id = ?", id).Updates(map[string]interface{}{
		"short_code": code,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return translateGormError(result.Error, "failed to reassign short code")
	}
	if result.RowsAffected == 0 {
		return entity.ErrFlightNotFound
	}
	return nil
}

// Delete removes a flight row
func (r *GormFlightRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&Flights{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete flight: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return entity.ErrFlightNotFound
	}
	return nil
}

func translateGormError(err error, msg string) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return entity.ErrWriteConflict
	case errors.Is(err, gorm.ErrRecordNotFound):
		return entity.ErrFlightNotFound
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}

func toFlightModel(f *entity.Flight) Flights {
	return Flights{
		ID:        f.ID,
		Name:      f.Name,
		TeeTime:   f.TeeTime,
		Players:   f.Players,
		ShortCode: f.ShortCode,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Convert GORM model to domain entity
func toFlightEntity(m Flights) *entity.Flight {
	return &entity.Flight{
		ID:        m.ID,
		Name:      m.Name,
		TeeTime:   m.TeeTime,
		Players:   m.Players,
		ShortCode: m.ShortCode,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
