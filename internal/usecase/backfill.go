package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kiosk-flight-service/internal/domain/entity"
	"kiosk-flight-service/internal/domain/repository"
	"kiosk-flight-service/pkg/logger"
	"kiosk-flight-service/pkg/metrics"
)

// BackfillDriver retrofits short codes onto flights created before codes existed
type BackfillDriver struct {
	flightRepo repository.FlightRepository
	allocator  *CodeAllocator
	logger     logger.Logger
	metrics    *metrics.Metrics
}

// NewBackfillDriver creates a new backfill driver
func NewBackfillDriver(
	flightRepo repository.FlightRepository,
	allocator *CodeAllocator,
	logger logger.Logger,
	metrics *metrics.Metrics,
) *BackfillDriver {
	return &BackfillDriver{
		flightRepo: flightRepo,
		allocator:  allocator,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run loads every flight from the store and backfills missing codes
func (d *BackfillDriver) Run(ctx context.Context) (entity.BackfillSummary, error) {
	flights, err := d.flightRepo.FindAll(ctx)
	if err != nil {
		d.metrics.ErrorsCount.WithLabelValues("backfill").Inc()
		return entity.BackfillSummary{}, err
	}
	return d.BackfillAll(ctx, flights)
}

// BackfillAll visits each flight once. Flights holding a valid code are left
// alone; the rest get a code committed before the next flight is visited, so
// the running occupancy set stays accurate. Allocation failures are counted
// and skipped. Store errors stop the run and are returned with the partial
// summary. Running it again over the same flights assigns nothing.
func (d *BackfillDriver) BackfillAll(ctx context.Context, flights []*entity.Flight) (entity.BackfillSummary, error) {
	start := time.Now()
	defer func() {
		d.metrics.BackfillDuration.Observe(time.Since(start).Seconds())
	}()

	var summary entity.BackfillSummary
	occ := newOccupancy(d.flightRepo.ListShortCodes)

	d.logger.Info("Starting short code backfill", "flights", len(flights), "width", d.allocator.Width())

	for _, flight := range flights {
		if flight.HasValidCode() {
			d.record(&summary, metrics.OutcomeAlreadyHadCode, flight.ID)
			continue
		}

		code, err := d.assign(ctx, occ, flight)
		switch {
		case err == nil:
			flight.SetCode(code)
			d.record(&summary, metrics.OutcomeAssigned, flight.ID)
			d.logger.Debug("Short code assigned", "flightID", flight.ID, "shortCode", code)

		case errors.Is(err, entity.ErrCodeAlreadyAssigned):
			// Another writer got there first with a valid code
			d.record(&summary, metrics.OutcomeAlreadyHadCode, flight.ID)

		case errors.Is(err, entity.ErrKeyspaceExhausted),
			errors.Is(err, entity.ErrAllocationFailed),
			errors.Is(err, entity.ErrFlightNotFound):
			d.record(&summary, metrics.OutcomeFailed, flight.ID)
			d.logger.Error("Failed to backfill flight, skipping", "flightID", flight.ID, "error", err)

		default:
			d.metrics.ErrorsCount.WithLabelValues("backfill").Inc()
			d.logger.Error("Backfill aborted",
				"flightID", flight.ID,
				"error", err,
				"alreadyHadCode", summary.AlreadyHadCode,
				"newlyAssigned", summary.NewlyAssigned,
				"failed", summary.Failed)
			return summary, err
		}
	}

	d.logger.Info("Short code backfill finished",
		"alreadyHadCode", summary.AlreadyHadCode,
		"newlyAssigned", summary.NewlyAssigned,
		"failed", summary.Failed,
		"duration", time.Since(start))

	return summary, nil
}

// assign commits a code for flight with compare-and-set against the value
// it was read with. If the compare fails and the flight now holds a valid
// code, entity.ErrCodeAlreadyAssigned is returned; if it holds some other
// malformed value, the compare is retried once against that value.
func (d *BackfillDriver) assign(ctx context.Context, occ *occupancy, flight *entity.Flight) (string, error) {
	expected := flight.ShortCode

	for retried := false; ; retried = true {
		code, err := d.allocator.allocateAndCommit(ctx, occ, func(code string) error {
			return d.flightRepo.AssignShortCode(ctx, flight.ID, expected, code)
		})
		if !errors.Is(err, entity.ErrCodeAlreadyAssigned) {
			return code, err
		}

		current, findErr := d.flightRepo.FindByID(ctx, flight.ID)
		if findErr != nil {
			return "", findErr
		}
		if current.HasValidCode() {
			occ.add(current.Code())
			flight.ShortCode = current.ShortCode
			return "", entity.ErrCodeAlreadyAssigned
		}
		if retried {
			return "", fmt.Errorf("%w: flight %s code changed during backfill", entity.ErrAllocationFailed, flight.ID)
		}
		expected = current.ShortCode
	}
}

func (d *BackfillDriver) record(summary *entity.BackfillSummary, outcome string, flightID string) {
	switch outcome {
	case metrics.OutcomeAlreadyHadCode:
		summary.AlreadyHadCode++
	case metrics.OutcomeAssigned:
		summary.NewlyAssigned++
	case metrics.OutcomeFailed:
		summary.Failed++
		summary.FailedIDs = append(summary.FailedIDs, flightID)
	}
	d.metrics.BackfillRecords.WithLabelValues(outcome).Inc()
}
