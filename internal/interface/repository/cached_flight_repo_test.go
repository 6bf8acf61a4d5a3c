package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"kiosk-flight-service/internal/domain/entity"
	"kiosk-flight-service/pkg/logger"
	"kiosk-flight-service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mapCodeCache struct {
	mu      sync.Mutex
	entries map[string]string
	failGet bool
}

func newMapCodeCache() *mapCodeCache {
	return &mapCodeCache{entries: make(map[string]string)}
}

func (c *mapCodeCache) Get(ctx context.Context, code string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return "", false, errors.New("cache unavailable")
	}
	id, ok := c.entries[code]
	return id, ok, nil
}

func (c *mapCodeCache) Set(ctx context.Context, code, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[code] = id
	return nil
}

func (c *mapCodeCache) Delete(ctx context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, code)
	return nil
}

func newCachedRepo(t *testing.T) (*CachedFlightRepository, *MemoryFlightRepository, *mapCodeCache, *metrics.Metrics) {
	t.Helper()
	store := NewMemoryFlightRepository()
	cache := newMapCodeCache()
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	return NewCachedFlightRepository(store, cache, logger.NewNopLogger(), m), store, cache, m
}

func TestCachedLookupMissThenHit(t *testing.T) {
	ctx := context.Background()
	repo, store, cache, m := newCachedRepo(t)

	f := &entity.Flight{Name: "A", ShortCode: codePtr("4321")}
	store.Create(ctx, f)

	if _, err := repo.FindByShortCode(ctx, "4321"); err != nil {
		t.Fatalf("First lookup failed: %v", err)
	}
	if cache.entries["4321"] != f.ID {
		t.Fatalf("Expected cache to hold 4321 -> %s, got %v", f.ID, cache.entries)
	}
	if _, err := repo.FindByShortCode(ctx, "4321"); err != nil {
		t.Fatalf("Second lookup failed: %v", err)
	}

	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")); got != 1 {
		t.Errorf("Expected 1 miss, got %v", got)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")); got != 1 {
		t.Errorf("Expected 1 hit, got %v", got)
	}
}

func TestCachedLookupIgnoresStaleEntry(t *testing.T) {
	ctx := context.Background()
	repo, store, cache, _ := newCachedRepo(t)

	a := &entity.Flight{Name: "A", ShortCode: codePtr("1000")}
	b := &entity.Flight{Name: "B", ShortCode: codePtr("2000")}
	store.Create(ctx, a)
	store.Create(ctx, b)

	// Point 2000 at the wrong flight
	cache.entries["2000"] = a.ID

	got, err := repo.FindByShortCode(ctx, "2000")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got.ID != b.ID {
		t.Errorf("Expected flight %s, got %s", b.ID, got.ID)
	}
	if cache.entries["2000"] != b.ID {
		t.Errorf("Expected stale entry to be replaced, got %q", cache.entries["2000"])
	}
}

func TestCachedLookupSurvivesCacheOutage(t *testing.T) {
	ctx := context.Background()
	repo, store, cache, m := newCachedRepo(t)
	cache.failGet = true

	f := &entity.Flight{Name: "A", ShortCode: codePtr("0420")}
	store.Create(ctx, f)

	got, err := repo.FindByShortCode(ctx, "0420")
	if err != nil || got.ID != f.ID {
		t.Fatalf("Expected lookup to fall back to store, got %v, %v", got, err)
	}

	// A failed read is counted once, as an error only
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("error")); got != 1 {
		t.Errorf("Expected 1 error lookup, got %v", got)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")); got != 0 {
		t.Errorf("Expected no miss on a failed read, got %v", got)
	}
}

func TestCachedReassignAndDeleteEvict(t *testing.T) {
	ctx := context.Background()
	repo, store, cache, _ := newCachedRepo(t)

	f := &entity.Flight{Name: "A"}
	store.Create(ctx, f)

	if err := repo.AssignShortCode(ctx, f.ID, nil, "1111"); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if cache.entries["1111"] != f.ID {
		t.Fatalf("Expected assign to prime cache")
	}

	if err := repo.ReassignShortCode(ctx, f.ID, "2222"); err != nil {
		t.Fatalf("Reassign failed: %v", err)
	}
	if _, ok := cache.entries["1111"]; ok {
		t.Error("Expected old code to be evicted")
	}

	if err := repo.Delete(ctx, f.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(cache.entries) != 0 {
		t.Errorf("Expected empty cache after delete, got %v", cache.entries)
	}
	if _, err := repo.FindByShortCode(ctx, "2222"); !errors.Is(err, entity.ErrFlightNotFound) {
		t.Errorf("Expected ErrFlightNotFound, got %v", err)
	}
}
