package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"kiosk-flight-service/internal/domain/entity"
	"kiosk-flight-service/internal/domain/repository"

	"github.com/google/uuid"
)

// MemoryFlightRepository is a mutex-guarded in-process flight store. It
// enforces short code uniqueness the same way the database indexes do and
// backs local development and tests.
type MemoryFlightRepository struct {
	mu      sync.RWMutex
	flights map[string]*entity.Flight
	codes   map[string]string // short code -> flight id
	order   map[string]uint64 // insertion sequence
	seq     uint64
}

// NewMemoryFlightRepository creates an empty in-memory flight repository
func NewMemoryFlightRepository() *MemoryFlightRepository {
	return &MemoryFlightRepository{
		flights: make(map[string]*entity.Flight),
		codes:   make(map[string]string),
		order:   make(map[string]uint64),
	}
}

var _ repository.FlightRepository = (*MemoryFlightRepository)(nil)

// Create inserts a flight
func (r *MemoryFlightRepository) Create(ctx context.Context, flight *entity.Flight) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if flight.ID == "" {
		flight.ID = uuid.NewString()
	}
	if _, exists := r.flights[flight.ID]; exists {
		return entity.ErrWriteConflict
	}
	code := flight.Code()
	if code != "" {
		if _, taken := r.codes[code]; taken {
			return entity.ErrWriteConflict
		}
	}

	now := time.Now()
	flight.CreatedAt = now
	flight.UpdatedAt = now

	r.seq++
	r.order[flight.ID] = r.seq
	r.flights[flight.ID] = cloneFlight(flight)
	if code != "" {
		r.codes[code] = flight.ID
	}
	return nil
}

// FindByID finds a flight by id
func (r *MemoryFlightRepository) FindByID(ctx context.Context, id string) (*entity.Flight, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.flights[id]
	if !ok {
		return nil, entity.ErrFlightNotFound
	}
	return cloneFlight(f), nil
}

// FindByShortCode resolves a code through the code index
func (r *MemoryFlightRepository) FindByShortCode(ctx context.Context, code string) (*entity.Flight, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.codes[code]
	if !ok {
		return nil, entity.ErrFlightNotFound
	}
	return cloneFlight(r.flights[id]), nil
}

// FindAll returns every flight in insertion order
func (r *MemoryFlightRepository) FindAll(ctx context.Context) ([]*entity.Flight, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	flights := make([]*entity.Flight, 0, len(r.flights))
	for _, f := range r.flights {
		flights = append(flights, cloneFlight(f))
	}
	sort.Slice(flights, func(i, j int) bool {
		return r.order[flights[i].ID] < r.order[flights[j].ID]
	})
	return flights, nil
}

// ListShortCodes returns the set of codes in use
func (r *MemoryFlightRepository) ListShortCodes(ctx context.Context) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make(map[string]struct{}, len(r.codes))
	for code := range r.codes {
		codes[code] = struct{}{}
	}
	return codes, nil
}

// AssignShortCode sets the code if the stored value still equals expected
func (r *MemoryFlightRepository) AssignShortCode(ctx context.Context, id string, expected *string, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flights[id]
	if !ok {
		return entity.ErrFlightNotFound
	}

	want := ""
	if expected != nil {
		want = *expected
	}
	if f.Code() != want {
		return entity.ErrCodeAlreadyAssigned
	}

	return r.setCodeLocked(f, code)
}

// ReassignShortCode replaces the code unconditionally
func (r *MemoryFlightRepository) ReassignShortCode(ctx context.Context, id string, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flights[id]
	if !ok {
		return entity.ErrFlightNotFound
	}
	return r.setCodeLocked(f, code)
}

// Delete removes a flight and frees its code
func (r *MemoryFlightRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flights[id]
	if !ok {
		return entity.ErrFlightNotFound
	}
	if code := f.Code(); code != "" && r.codes[code] == id {
		delete(r.codes, code)
	}
	delete(r.flights, id)
	delete(r.order, id)
	return nil
}

func (r *MemoryFlightRepository) setCodeLocked(f *entity.Flight, code string) error {
	if owner, taken := r.codes[code]; taken && owner != f.ID {
		return entity.ErrWriteConflict
	}

	if old := f.Code(); old != "" && r.codes[old] == f.ID {
		delete(r.codes, old)
	}
	f.SetCode(code)
	f.UpdatedAt = time.Now()
	r.codes[code] = f.ID
	return nil
}

func cloneFlight(f *entity.Flight) *entity.Flight {
	c := *f
	if f.ShortCode != nil {
		code := *f.ShortCode
		c.ShortCode = &code
	}
	if f.Players != nil {
		c.Players = append([]string(nil), f.Players...)
	}
	return &c
}
