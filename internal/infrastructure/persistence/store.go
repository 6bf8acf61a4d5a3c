package persistence

import (
	"context"
	"fmt"

	"kiosk-flight-service/internal/domain/repository"
	"kiosk-flight-service/internal/infrastructure/config"
	flightRepo "kiosk-flight-service/internal/interface/repository"
	"kiosk-flight-service/pkg/logger"
	"kiosk-flight-service/pkg/metrics"
)

// Store bundles the flight repository chosen by configuration with the
// connections behind it.
type Store struct {
	Flights repository.FlightRepository
	closers []func(ctx context.Context) error
}

// Close releases every connection the store opened
func (s *Store) Close(ctx context.Context) error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OpenStore connects to the configured backend and, when Redis is
// reachable, wraps the repository with the code lookup cache.
func OpenStore(ctx context.Context, cfg *config.Config, log logger.Logger, m *metrics.Metrics) (*Store, error) {
	store := &Store{}

	switch cfg.StoreBackend {
	case config.BackendMongo:
		log.Info("Connecting to MongoDB", "database", cfg.MongoDB)
		client, err := NewMongoClient(ctx, cfg.MongoURI, cfg.MongoUser, cfg.MongoPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		store.closers = append(store.closers, client.Disconnect)

		flights, err := flightRepo.NewMongoFlightRepository(ctx, GetDatabase(client, cfg.MongoDB))
		if err != nil {
			store.Close(ctx)
			return nil, err
		}
		store.Flights = flights

	case config.BackendPostgres:
		log.Info("Connecting to PostgreSQL")
		db, err := NewPostgresDB(cfg.PostgresURI)
		if err != nil {
			return nil, err
		}
		store.closers = append(store.closers, func(context.Context) error { return ClosePostgresDB(db) })

		if err := flightRepo.MigrateFlights(db); err != nil {
			store.Close(ctx)
			return nil, fmt.Errorf("failed to migrate flights table: %w", err)
		}
		store.Flights = flightRepo.NewGormFlightRepository(db)

	case config.BackendMemory:
		log.Warn("Using in-memory flight store; data is lost on restart")
		store.Flights = flightRepo.NewMemoryFlightRepository()

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if cfg.RedisAddr != "" {
		client, err := NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("Redis unavailable, code cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			store.closers = append(store.closers, func(context.Context) error { return client.Close() })
			cache := flightRepo.NewRedisCodeCache(client, "kiosk:shortcode", cfg.CodeCacheTTL)
			store.Flights = flightRepo.NewCachedFlightRepository(store.Flights, cache, log, m)
			log.Info("Code cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.CodeCacheTTL)
		}
	}

	return store, nil
}
