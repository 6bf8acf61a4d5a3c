package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kiosk-flight-service/internal/infrastructure/config"
	"kiosk-flight-service/internal/infrastructure/persistence"
	"kiosk-flight-service/internal/infrastructure/router"
	"kiosk-flight-service/internal/interface/handler"
	"kiosk-flight-service/internal/usecase"
	"kiosk-flight-service/pkg/logger"
	"kiosk-flight-service/pkg/metrics"
	"kiosk-flight-service/pkg/shortcode"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger().Fatal("Failed to load config", "error", err)
	}

	// Create logger
	log := logger.NewLoggerWithLevel(cfg.LogLevel)
	defer log.Sync()
	log.Info("Starting kiosk flight service", "version", cfg.AppVersion, "store", cfg.StoreBackend)

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics(cfg.MetricsNamespace, prometheus.DefaultRegisterer)

	store, err := persistence.OpenStore(ctx, cfg, log, m)
	if err != nil {
		log.Fatal("Failed to open flight store", "error", err)
	}

	generator, err := shortcode.NewGenerator(cfg.ShortCodeWidth)
	if err != nil {
		log.Fatal("Invalid short code width", "error", err)
	}

	allocator := usecase.NewCodeAllocator(generator, cfg.ShortCodeMaxAttempts, cfg.CommitMaxAttempts, log, m)
	flightService := usecase.NewFlightService(store.Flights, allocator, log, m)
	backfillDriver := usecase.NewBackfillDriver(store.Flights, allocator, log, m)

	flightHandler := handler.NewFlightHandler(flightService, backfillDriver, log)
	e := router.New(flightHandler, prometheus.DefaultGatherer, log)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      e,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port, "codeWidth", cfg.ShortCodeWidth)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	cancel()

	if err := store.Close(shutdownCtx); err != nil {
		log.Error("Store close error", "error", err)
	}

	log.Info("Kiosk flight service stopped")
}
