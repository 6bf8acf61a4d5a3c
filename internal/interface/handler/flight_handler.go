package handler

import (
	"context"
	"errors"
	"net/http"

	"kiosk-flight-service/internal/domain/entity"
	"kiosk-flight-service/internal/usecase"
	"kiosk-flight-service/pkg/logger"

	"github.com/labstack/echo/v4"
)

// FlightService is the subset of usecase.FlightService used over HTTP
type FlightService interface {
	CreateFlight(ctx context.Context, input usecase.CreateFlightInput) (*entity.Flight, error)
	GetFlight(ctx context.Context, id string) (*entity.Flight, error)
	ListFlights(ctx context.Context) ([]*entity.Flight, error)
	LookupByCode(ctx context.Context, code string) (*entity.Flight, error)
	ReassignCode(ctx context.Context, id string, code string) (*entity.Flight, error)
	DeleteFlight(ctx context.Context, id string) error
}

// Backfiller runs the short code backfill
type Backfiller interface {
	Run(ctx context.Context) (entity.BackfillSummary, error)
}

// FlightHandler serves the kiosk and admin flight endpoints
type FlightHandler struct {
	flights  FlightService
	backfill Backfiller
	logger   logger.Logger
}

// NewFlightHandler creates a new flight handler
func NewFlightHandler(flights FlightService, backfill Backfiller, logger logger.Logger) *FlightHandler {
	return &FlightHandler{
		flights:  flights,
		backfill: backfill,
		logger:   logger,
	}
}

type reassignCodeRequest struct {
	ShortCode string `json:"shortCode"`
}

// CreateFlight handles POST /api/v1/flights
func (h *FlightHandler) CreateFlight(c echo.Context) error {
	var req usecase.CreateFlightInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":   "invalid_request",
			"message": "request body must be a flight JSON object",
		})
	}

	flight, err := h.flights.CreateFlight(c.Request().Context(), req)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, flight)
}

// ListFlights handles GET /api/v1/flights
func (h *FlightHandler) ListFlights(c echo.Context) error {
	flights, err := h.flights.ListFlights(c.Request().Context())
	if err != nil {
		return h.errorResponse(c, err)
	}
	if flights == nil {
		flights = []*entity.Flight{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data":  flights,
		"total": len(flights),
	})
}

// GetFlight handles GET /api/v1/flights/:id
func (h *FlightHandler) GetFlight(c echo.Context) error {
	flight, err := h.flights.GetFlight(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, flight)
}

// LookupByCode handles GET /api/v1/flights/code/:code
func (h *FlightHandler) LookupByCode(c echo.Context) error {
	flight, err := h.flights.LookupByCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, flight)
}

// DeleteFlight handles DELETE /api/v1/flights/:id
func (h *FlightHandler) DeleteFlight(c echo.Context) error {
	if err := h.flights.DeleteFlight(c.Request().Context(), c.Param("id")); err != nil {
		return h.errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ReassignCode handles PUT /api/v1/admin/flights/:id/code.
// An empty or missing shortCode asks for a freshly allocated one.
func (h *FlightHandler) ReassignCode(c echo.Context) error {
	var req reassignCodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":   "invalid_request",
			"message": "request body must be a JSON object",
		})
	}

	flight, err := h.flights.ReassignCode(c.Request().Context(), c.Param("id"), req.ShortCode)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, flight)
}

// RunBackfill handles POST /api/v1/admin/backfill
func (h *FlightHandler) RunBackfill(c echo.Context) error {
	summary, err := h.backfill.Run(c.Request().Context())
	if err != nil {
		h.logger.Error("Backfill request failed", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "backfill_aborted",
			"message": err.Error(),
			"summary": summary,
		})
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *FlightHandler) errorResponse(c echo.Context, err error) error {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err)
	}
	return c.JSON(status, echo.Map{
		"error":   code,
		"message": err.Error(),
	})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrFlightNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, entity.ErrInvalidFlight):
		return http.StatusBadRequest, "invalid_flight"
	case errors.Is(err, entity.ErrInvalidShortCode):
		return http.StatusBadRequest, "invalid_short_code"
	case errors.Is(err, entity.ErrWriteConflict), errors.Is(err, entity.ErrCodeAlreadyAssigned):
		return http.StatusConflict, "conflict"
	case errors.Is(err, entity.ErrKeyspaceExhausted):
		return http.StatusServiceUnavailable, "keyspace_exhausted"
	case errors.Is(err, entity.ErrAllocationFailed):
		return http.StatusServiceUnavailable, "allocation_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
