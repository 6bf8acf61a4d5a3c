package repository

import (
	"context"
	"errors"

	"kiosk-flight-service/internal/domain/entity"
	"kiosk-flight-service/internal/domain/repository"
	"kiosk-flight-service/pkg/logger"
	"kiosk-flight-service/pkg/metrics"
)

// CachedFlightRepository puts a code lookup cache in front of a
// FlightRepository. Writes go straight to the store; the cache only ever
// holds code -> id pairs and every hit is re-read from the store, so a stale
// entry can cost a lookup but never return the wrong flight.
type CachedFlightRepository struct {
	repository.FlightRepository
	cache   repository.CodeCache
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewCachedFlightRepository wraps repo with cache
func NewCachedFlightRepository(repo repository.FlightRepository, cache repository.CodeCache, logger logger.Logger, m *metrics.Metrics) *CachedFlightRepository {
	return &CachedFlightRepository{
		FlightRepository: repo,
		cache:            cache,
		logger:           logger,
		metrics:          m,
	}
}

// FindByShortCode resolves code through the cache, falling back to the store
func (r *CachedFlightRepository) FindByShortCode(ctx context.Context, code string) (*entity.Flight, error) {
	id, ok, readErr := r.cache.Get(ctx, code)
	if readErr != nil {
		r.logger.Warn("Code cache read failed", "code", code, "error", readErr)
		r.observe("error")
	}

	if ok {
		flight, err := r.FlightRepository.FindByID(ctx, id)
		if err == nil && flight.Code() == code {
			r.observe("hit")
			return flight, nil
		}
		if err != nil && !errors.Is(err, entity.ErrFlightNotFound) {
			return nil, err
		}
		// Stale entry
		r.evict(ctx, code)
	}

	if readErr == nil {
		r.observe("miss")
	}
	flight, err := r.FlightRepository.FindByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}
	r.store(ctx, code, flight.ID)
	return flight, nil
}

// AssignShortCode commits the code and primes the cache
func (r *CachedFlightRepository) AssignShortCode(ctx context.Context, id string, expected *string, code string) error {
	if err := r.FlightRepository.AssignShortCode(ctx, id, expected, code); err != nil {
		return err
	}
	if expected != nil && *expected != "" {
		r.evict(ctx, *expected)
	}
	r.store(ctx, code, id)
	return nil
}

// ReassignShortCode replaces the code and evicts the old mapping
func (r *CachedFlightRepository) ReassignShortCode(ctx context.Context, id string, code string) error {
	old, err := r.FlightRepository.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := r.FlightRepository.ReassignShortCode(ctx, id, code); err != nil {
		return err
	}
	if prev := old.Code(); prev != "" && prev != code {
		r.evict(ctx, prev)
	}
	r.store(ctx, code, id)
	return nil
}

// Delete removes the flight and evicts its code
func (r *CachedFlightRepository) Delete(ctx context.Context, id string) error {
	old, err := r.FlightRepository.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := r.FlightRepository.Delete(ctx, id); err != nil {
		return err
	}
	if code := old.Code(); code != "" {
		r.evict(ctx, code)
	}
	return nil
}

func (r *CachedFlightRepository) store(ctx context.Context, code, id string) {
	if err := r.cache.Set(ctx, code, id); err != nil {
		r.logger.Warn("Code cache write failed", "code", code, "error", err)
	}
}

func (r *CachedFlightRepository) evict(ctx context.Context, code string) {
	if err := r.cache.Delete(ctx, code); err != nil {
		r.logger.Warn("Code cache evict failed", "code", code, "error", err)
	}
}

func (r *CachedFlightRepository) observe(result string) {
	if r.metrics != nil {
		r.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}
