// Command backfill assigns short codes to flights created before codes existed.
// It is safe to run more than once.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"kiosk-flight-service/internal/domain/repository"
	"kiosk-flight-service/internal/infrastructure/config"
	"kiosk-flight-service/internal/infrastructure/persistence"
	"kiosk-flight-service/internal/usecase"
	"kiosk-flight-service/pkg/logger"
	"kiosk-flight-service/pkg/metrics"
	"kiosk-flight-service/pkg/shortcode"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report flights missing a short code without writing")
	width := flag.Int("width", 0, "override SHORTCODE_WIDTH for this run")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(2)
	}
	if *width != 0 {
		cfg.ShortCodeWidth = *width
	}

	log := logger.NewLoggerWithLevel(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	code := run(ctx, cfg, log, *dryRun, os.Stdout)

	// os.Exit skips deferred calls
	stop()
	log.Sync()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger, dryRun bool, out io.Writer) int {
	generator, err := shortcode.NewGenerator(cfg.ShortCodeWidth)
	if err != nil {
		log.Error("Invalid short code width", "error", err)
		return 2
	}

	m := metrics.NewMetrics(cfg.MetricsNamespace, prometheus.NewRegistry())

	store, err := persistence.OpenStore(ctx, cfg, log, m)
	if err != nil {
		log.Error("Failed to open flight store", "error", err)
		return 1
	}
	defer store.Close(context.Background())

	return backfill(ctx, store.Flights, generator, cfg, log, m, dryRun, out)
}

func backfill(
	ctx context.Context,
	flights repository.FlightRepository,
	generator *shortcode.Generator,
	cfg *config.Config,
	log logger.Logger,
	m *metrics.Metrics,
	dryRun bool,
	out io.Writer,
) int {
	if dryRun {
		all, err := flights.FindAll(ctx)
		if err != nil {
			log.Error("Failed to list flights", "error", err)
			return 1
		}
		missing := 0
		for _, f := range all {
			if !f.HasValidCode() {
				missing++
			}
		}
		fmt.Fprintf(out, "%d of %d flights have no valid short code\n", missing, len(all))
		return 0
	}

	allocator := usecase.NewCodeAllocator(generator, cfg.ShortCodeMaxAttempts, cfg.CommitMaxAttempts, log, m)
	driver := usecase.NewBackfillDriver(flights, allocator, log, m)

	summary, err := driver.Run(ctx)
	report, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Fprintln(out, string(report))
	fmt.Fprintf(out, "%d flights visited: %d already had a code, %d assigned, %d failed\n",
		summary.Total(), summary.AlreadyHadCode, summary.NewlyAssigned, summary.Failed)

	if err != nil {
		log.Error("Backfill aborted", "error", err)
		return 1
	}
	if summary.Failed > 0 {
		return 1
	}
	return 0
}
