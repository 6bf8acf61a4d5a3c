package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"kiosk-flight-service/internal/domain/entity"
	"kiosk-flight-service/internal/domain/repository"
	repo "kiosk-flight-service/internal/interface/repository"
	"kiosk-flight-service/pkg/logger"
	"kiosk-flight-service/pkg/shortcode"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// racingRepository holds the first n occupancy reads until all n have
// happened, so concurrent creators all allocate against the same snapshot.
type racingRepository struct {
	repository.FlightRepository
	reads   atomic.Int32
	n       int32
	arrived sync.WaitGroup
}

func newRacingRepository(inner repository.FlightRepository, n int) *racingRepository {
	r := &racingRepository{FlightRepository: inner, n: int32(n)}
	r.arrived.Add(n)
	return r
}

func (r *racingRepository) ListShortCodes(ctx context.Context) (map[string]struct{}, error) {
	codes, err := r.FlightRepository.ListShortCodes(ctx)
	if r.reads.Add(1) <= r.n {
		r.arrived.Done()
		r.arrived.Wait()
	}
	return codes, err
}

func newTestFlightService(t *testing.T, store repository.FlightRepository, src shortcode.Source) *FlightService {
	t.Helper()
	m := newTestMetrics()
	return NewFlightService(store, newTestAllocator(t, 4, src, m), logger.NewNopLogger(), m)
}

func TestCreateFlightAssignsCode(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryFlightRepository()
	svc := newTestFlightService(t, store, seededSource(11))

	flight, err := svc.CreateFlight(ctx, CreateFlightInput{
		Name:    "  Saturday medal ",
		TeeTime: time.Date(2026, 10, 17, 8, 30, 0, 0, time.UTC),
		Players: []string{"Ann", " ", "Bob"},
	})
	if err != nil {
		t.Fatalf("CreateFlight failed: %v", err)
	}
	if flight.Name != "Saturday medal" {
		t.Errorf("Expected trimmed name, got %q", flight.Name)
	}
	if len(flight.Players) != 2 {
		t.Errorf("Expected 2 players, got %v", flight.Players)
	}
	if len(flight.Code()) != 4 || !flight.HasValidCode() {
		t.Fatalf("Expected 4-digit code, got %q", flight.Code())
	}

	found, err := svc.LookupByCode(ctx, " "+flight.Code()+" ")
	if err != nil {
		t.Fatalf("LookupByCode failed: %v", err)
	}
	if found.ID != flight.ID {
		t.Errorf("Expected flight %s, got %s", flight.ID, found.ID)
	}
}

func TestCreateFlightRequiresName(t *testing.T) {
	svc := newTestFlightService(t, repo.NewMemoryFlightRepository(), nil)
	_, err := svc.CreateFlight(context.Background(), CreateFlightInput{Name: "   "})
	if !errors.Is(err, entity.ErrInvalidFlight) {
		t.Errorf("Expected ErrInvalidFlight, got %v", err)
	}
}

func TestCreateFlightKeyspaceExhausted(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryFlightRepository()
	m := newTestMetrics()
	svc := NewFlightService(store, newTestAllocator(t, 1, seededSource(2), m), logger.NewNopLogger(), m)

	for i := 0; i < 10; i++ {
		if _, err := svc.CreateFlight(ctx, CreateFlightInput{Name: "F"}); err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
	}

	_, err := svc.CreateFlight(ctx, CreateFlightInput{Name: "one too many"})
	if !errors.Is(err, entity.ErrKeyspaceExhausted) {
		t.Fatalf("Expected ErrKeyspaceExhausted, got %v", err)
	}
	all, _ := store.FindAll(ctx)
	if len(all) != 10 {
		t.Errorf("Expected failed create to store nothing, got %d flights", len(all))
	}
}

func TestLookupByCodeRejectsMalformed(t *testing.T) {
	svc := newTestFlightService(t, repo.NewMemoryFlightRepository(), nil)
	if _, err := svc.LookupByCode(context.Background(), "12a"); !errors.Is(err, entity.ErrInvalidShortCode) {
		t.Errorf("Expected ErrInvalidShortCode, got %v", err)
	}
	if _, err := svc.LookupByCode(context.Background(), "1234"); !errors.Is(err, entity.ErrFlightNotFound) {
		t.Errorf("Expected ErrFlightNotFound, got %v", err)
	}
}

func TestConcurrentCreatesNeverShareCode(t *testing.T) {
	ctx := context.Background()
	store := newRacingRepository(repo.NewMemoryFlightRepository(), 2)
	m := newTestMetrics()

	// Both creators draw 0007 from the same empty snapshot; only one commit
	// can win and the loser must retry against fresh occupancy.
	svc := NewFlightService(store, newTestAllocator(t, 4, constantSource(7), m), logger.NewNopLogger(), m)

	var wg sync.WaitGroup
	results := make([]*entity.Flight, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = svc.CreateFlight(ctx, CreateFlightInput{Name: "racer"})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Creator %d failed: %v", i, err)
		}
	}
	if results[0].Code() == results[1].Code() {
		t.Fatalf("Both creators committed code %q", results[0].Code())
	}
	if got := testutil.ToFloat64(m.CommitConflicts); got != 1 {
		t.Errorf("Expected exactly 1 commit conflict, got %v", got)
	}
}

func TestConcurrentCreatesStress(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryFlightRepository()
	m := newTestMetrics()
	gen, _ := shortcode.NewGenerator(2)
	alloc := NewCodeAllocator(gen, DefaultMaxAttempts, 20, logger.NewNopLogger(), m)
	svc := NewFlightService(store, alloc, logger.NewNopLogger(), m)

	const creators = 60
	var wg sync.WaitGroup
	var successCount atomic.Int32
	for i := 0; i < creators; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CreateFlight(ctx, CreateFlightInput{Name: "stress"}); err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	all, _ := store.FindAll(ctx)
	if int32(len(all)) != successCount.Load() {
		t.Fatalf("Expected %d stored flights, got %d", successCount.Load(), len(all))
	}
	seen := make(map[string]string)
	for _, f := range all {
		if other, dup := seen[f.Code()]; dup {
			t.Fatalf("Flights %s and %s share code %q", other, f.ID, f.Code())
		}
		seen[f.Code()] = f.ID
	}
}

func TestReassignCode(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryFlightRepository()
	svc := newTestFlightService(t, store, seededSource(4))

	a, _ := svc.CreateFlight(ctx, CreateFlightInput{Name: "A"})
	b, _ := svc.CreateFlight(ctx, CreateFlightInput{Name: "B"})

	if _, err := svc.ReassignCode(ctx, a.ID, b.Code()); !errors.Is(err, entity.ErrWriteConflict) {
		t.Fatalf("Expected ErrWriteConflict, got %v", err)
	}
	if _, err := svc.ReassignCode(ctx, a.ID, "x1"); !errors.Is(err, entity.ErrInvalidShortCode) {
		t.Fatalf("Expected ErrInvalidShortCode, got %v", err)
	}

	updated, err := svc.ReassignCode(ctx, a.ID, "00042")
	if err != nil {
		t.Fatalf("Explicit reassign failed: %v", err)
	}
	if updated.Code() != "00042" {
		t.Errorf("Expected 00042, got %q", updated.Code())
	}

	fresh, err := svc.ReassignCode(ctx, a.ID, "")
	if err != nil {
		t.Fatalf("Auto reassign failed: %v", err)
	}
	if len(fresh.Code()) != 4 || fresh.Code() == b.Code() {
		t.Errorf("Expected a new free 4-digit code, got %q", fresh.Code())
	}

	if _, err := svc.ReassignCode(ctx, "missing", ""); !errors.Is(err, entity.ErrFlightNotFound) {
		t.Errorf("Expected ErrFlightNotFound, got %v", err)
	}
}

func TestDeleteFlightFreesCode(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryFlightRepository()
	svc := newTestFlightService(t, store, seededSource(9))

	f, _ := svc.CreateFlight(ctx, CreateFlightInput{Name: "A"})
	if err := svc.DeleteFlight(ctx, f.ID); err != nil {
		t.Fatalf("DeleteFlight failed: %v", err)
	}
	if _, err := svc.LookupByCode(ctx, f.Code()); !errors.Is(err, entity.ErrFlightNotFound) {
		t.Errorf("Expected code to be released, got %v", err)
	}
	if err := svc.DeleteFlight(ctx, f.ID); !errors.Is(err, entity.ErrFlightNotFound) {
		t.Errorf("Expected ErrFlightNotFound, got %v", err)
	}
}
