package router

import (
	"net/http"

	"kiosk-flight-service/internal/interface/handler"
	"kiosk-flight-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// New builds the echo instance with every route registered.
// gatherer backs /metrics; nil uses the default registry.
func New(flights *handler.FlightHandler, gatherer prometheus.Gatherer, log logger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger(log))

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "Healthy")
	})

	RegisterFlights(e, flights)
	return e
}

// RegisterFlights registers the kiosk and admin flight routes
func RegisterFlights(e *echo.Echo, h *handler.FlightHandler) {
	api := e.Group("/api/v1")
	api.POST("/flights", h.CreateFlight)
	api.GET("/flights", h.ListFlights)
	api.GET("/flights/code/:code", h.LookupByCode)
	api.GET("/flights/:id", h.GetFlight)
	api.DELETE("/flights/:id", h.DeleteFlight)

	admin := api.Group("/admin")
	admin.PUT("/flights/:id/code", h.ReassignCode)
	admin.POST("/backfill", h.RunBackfill)
}

func requestLogger(log logger.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug("HTTP request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency)
			return nil
		},
	})
}
