package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kiosk-flight-service/internal/domain/entity"
	"kiosk-flight-service/internal/domain/repository"
	"kiosk-flight-service/pkg/logger"
	"kiosk-flight-service/pkg/metrics"
	"kiosk-flight-service/pkg/shortcode"
)

// CreateFlightInput holds the fields staff enter for a new flight
type CreateFlightInput struct {
	Name    string    `json:"name"`
	TeeTime time.Time `json:"teeTime"`
	Players []string  `json:"players"`
}

// FlightService handles flight creation, lookup and administrative code changes
type FlightService struct {
	flightRepo repository.FlightRepository
	allocator  *CodeAllocator
	logger     logger.Logger
	metrics    *metrics.Metrics
}

// NewFlightService creates a new flight service
func NewFlightService(
	flightRepo repository.FlightRepository,
	allocator *CodeAllocator,
	logger logger.Logger,
	metrics *metrics.Metrics,
) *FlightService {
	return &FlightService{
		flightRepo: flightRepo,
		allocator:  allocator,
		logger:     logger,
		metrics:    metrics,
	}
}

// CreateFlight stores a new flight with a freshly allocated short code.
// The code and the flight are written together, so a concurrent writer that
// took the same code surfaces as a conflict and the allocation is retried.
func (s *FlightService) CreateFlight(ctx context.Context, input CreateFlightInput) (*entity.Flight, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", entity.ErrInvalidFlight)
	}

	players := make([]string, 0, len(input.Players))
	for _, p := range input.Players {
		if p = strings.TrimSpace(p); p != "" {
			players = append(players, p)
		}
	}

	var flight *entity.Flight
	occ := newOccupancy(s.flightRepo.ListShortCodes)
	_, err := s.allocator.allocateAndCommit(ctx, occ, func(code string) error {
		candidate := &entity.Flight{
			Name:    name,
			TeeTime: input.TeeTime,
			Players: players,
		}
		candidate.SetCode(code)
		if err := s.flightRepo.Create(ctx, candidate); err != nil {
			return err
		}
		flight = candidate
		return nil
	})
	if err != nil {
		s.metrics.ErrorsCount.WithLabelValues("create_flight").Inc()
		s.logger.Error("Failed to create flight", "name", name, "error", err)
		return nil, err
	}

	s.logger.Info("Flight created", "flightID", flight.ID, "shortCode", flight.Code())
	return flight, nil
}

// GetFlight returns a flight by id
func (s *FlightService) GetFlight(ctx context.Context, id string) (*entity.Flight, error) {
	return s.flightRepo.FindByID(ctx, id)
}

// ListFlights returns all flights
func (s *FlightService) ListFlights(ctx context.Context) ([]*entity.Flight, error) {
	return s.flightRepo.FindAll(ctx)
}

// LookupByCode resolves a code typed at the kiosk to its flight
func (s *FlightService) LookupByCode(ctx context.Context, code string) (*entity.Flight, error) {
	code, ok := shortcode.Normalize(code)
	if !ok {
		return nil, entity.ErrInvalidShortCode
	}
	return s.flightRepo.FindByShortCode(ctx, code)
}

// ReassignCode is the administrative override for a flight's code. An empty
// code allocates a fresh one; otherwise the given code is validated and
// written, failing with entity.ErrWriteConflict if another flight holds it.
func (s *FlightService) ReassignCode(ctx context.Context, id string, code string) (*entity.Flight, error) {
	flight, err := s.flightRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := flight.Code()

	code = strings.TrimSpace(code)
	if code == "" {
		occ := newOccupancy(s.flightRepo.ListShortCodes)
		code, err = s.allocator.allocateAndCommit(ctx, occ, func(candidate string) error {
			return s.flightRepo.ReassignShortCode(ctx, id, candidate)
		})
	} else {
		if !shortcode.Valid(code) {
			return nil, entity.ErrInvalidShortCode
		}
		err = s.flightRepo.ReassignShortCode(ctx, id, code)
	}
	if err != nil {
		s.metrics.ErrorsCount.WithLabelValues("reassign_code").Inc()
		s.logger.Error("Failed to reassign short code", "flightID", id, "code", code, "error", err)
		return nil, err
	}

	s.logger.Info("Short code reassigned",
		"flightID", id,
		"previous", previous,
		"shortCode", code)

	return s.flightRepo.FindByID(ctx, id)
}

// DeleteFlight removes a flight; its code becomes free
func (s *FlightService) DeleteFlight(ctx context.Context, id string) error {
	if err := s.flightRepo.Delete(ctx, id); err != nil {
		if !errors.Is(err, entity.ErrFlightNotFound) {
			s.metrics.ErrorsCount.WithLabelValues("delete_flight").Inc()
		}
		return err
	}
	s.logger.Info("Flight deleted", "flightID", id)
	return nil
}
