package repository

import (
	"context"

	"kiosk-flight-service/internal/domain/entity"
)

// FlightRepository defines the interface for flight storage operations.
//
// Implementations must enforce uniqueness of non-empty short codes and
// report violations as entity.ErrWriteConflict.
type FlightRepository interface {
	// Create inserts a new flight, including its short code if set.
	Create(ctx context.Context, flight *entity.Flight) error
	FindByID(ctx context.Context, id string) (*entity.Flight, error)
	FindByShortCode(ctx context.Context, code string) (*entity.Flight, error)
	FindAll(ctx context.Context) ([]*entity.Flight, error)

	// ListShortCodes returns the occupancy set: every short code in use.
	ListShortCodes(ctx context.Context) (map[string]struct{}, error)

	// AssignShortCode sets the flight's code only if its stored code still
	// equals expected (nil meaning unset or empty). A mismatch returns
	// entity.ErrCodeAlreadyAssigned.
	AssignShortCode(ctx context.Context, id string, expected *string, code string) error

	// ReassignShortCode unconditionally replaces the flight's code.
	ReassignShortCode(ctx context.Context, id string, code string) error

	Delete(ctx context.Context, id string) error
}

// CodeCache maps short codes to flight ids in front of a FlightRepository
type CodeCache interface {
	Get(ctx context.Context, code string) (string, bool, error)
	Set(ctx context.Context, code string, flightID string) error
	Delete(ctx context.Context, code string) error
}
