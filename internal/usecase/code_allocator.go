package usecase

import (
	"context"
	"errors"
	"fmt"

	"kiosk-flight-service/internal/domain/entity"
	"kiosk-flight-service/pkg/logger"
	"kiosk-flight-service/pkg/metrics"
	"kiosk-flight-service/pkg/shortcode"
)

const (
	// DefaultMaxAttempts is the number of random draws per allocation
	DefaultMaxAttempts = 50
	// DefaultCommitMaxAttempts bounds allocate-and-commit retries on write conflicts
	DefaultCommitMaxAttempts = 5

	// Keyspaces up to this size are scanned for free codes once random draws run out.
	maxEnumerableKeyspace = 1_000_000
	// Occupancy above this ratio is logged as a signal to widen the code.
	occupancyWarnRatio = 0.9
)

// CodeAllocator picks short codes that are not in a given occupancy set.
// It never writes; callers commit the code and retry on entity.ErrWriteConflict.
type CodeAllocator struct {
	generator         *shortcode.Generator
	maxAttempts       int
	commitMaxAttempts int
	logger            logger.Logger
	metrics           *metrics.Metrics
}

// NewCodeAllocator creates a new allocator. Non-positive attempt limits use the defaults.
func NewCodeAllocator(
	generator *shortcode.Generator,
	maxAttempts int,
	commitMaxAttempts int,
	logger logger.Logger,
	metrics *metrics.Metrics,
) *CodeAllocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if commitMaxAttempts <= 0 {
		commitMaxAttempts = DefaultCommitMaxAttempts
	}
	return &CodeAllocator{
		generator:         generator,
		maxAttempts:       maxAttempts,
		commitMaxAttempts: commitMaxAttempts,
		logger:            logger,
		metrics:           metrics,
	}
}

// Width returns the width of allocated codes
func (a *CodeAllocator) Width() int {
	return a.generator.Width()
}

// Allocate returns a code absent from existing.
//
// It draws up to maxAttempts random codes. If all of them collide and the
// keyspace is small enough to scan, one last attempt picks uniformly among
// the free codes, so a keyspace with a single free value always yields it.
// A full keyspace fails with entity.ErrKeyspaceExhausted.
func (a *CodeAllocator) Allocate(existing map[string]struct{}) (string, error) {
	space := a.generator.Keyspace()

	occupied := int64(0)
	for code := range existing {
		if a.generator.Matches(code) {
			occupied++
		}
	}

	ratio := float64(occupied) / float64(space)
	a.metrics.OccupancyRatio.Set(ratio)
	if ratio >= occupancyWarnRatio {
		a.logger.Warn("Short code keyspace nearly full",
			"width", a.generator.Width(),
			"occupied", occupied,
			"keyspace", space)
	}

	if occupied >= space {
		return "", a.exhausted(occupied, 0)
	}

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		code := a.generator.Generate()
		if _, taken := existing[code]; !taken {
			a.metrics.AllocationAttempts.Observe(float64(attempt))
			a.metrics.CodesAllocated.Inc()
			return code, nil
		}
		a.metrics.CodeCollisions.Inc()
	}

	if space > maxEnumerableKeyspace {
		return "", a.exhausted(occupied, a.maxAttempts)
	}

	taken := make([]bool, space)
	for code := range existing {
		if !a.generator.Matches(code) {
			continue
		}
		if n, ok := shortcode.Value(code); ok {
			taken[n] = true
		}
	}
	free := make([]int64, 0, space-occupied)
	for n, used := range taken {
		if !used {
			free = append(free, int64(n))
		}
	}
	if len(free) == 0 {
		return "", a.exhausted(occupied, a.maxAttempts)
	}

	code := a.generator.Format(free[a.generator.Choose(int64(len(free)))])
	a.metrics.AllocationAttempts.Observe(float64(a.maxAttempts + 1))
	a.metrics.CodesAllocated.Inc()
	a.logger.Debug("Short code found by keyspace scan", "code", code, "free", len(free))
	return code, nil
}

func (a *CodeAllocator) exhausted(occupied int64, attempts int) error {
	a.metrics.KeyspaceExhausted.Inc()
	a.logger.Error("Short code keyspace exhausted",
		"width", a.generator.Width(),
		"occupied", occupied,
		"attempts", attempts)
	return fmt.Errorf("%w: %d of %d codes in use at width %d",
		entity.ErrKeyspaceExhausted, occupied, a.generator.Keyspace(), a.generator.Width())
}

// occupancy is the set of codes known to be in use. It is reloaded from the
// store after a write conflict shows it to be stale.
type occupancy struct {
	codes map[string]struct{}
	load  func(ctx context.Context) (map[string]struct{}, error)
}

func newOccupancy(load func(ctx context.Context) (map[string]struct{}, error)) *occupancy {
	return &occupancy{load: load}
}

func (o *occupancy) current(ctx context.Context) (map[string]struct{}, error) {
	if o.codes == nil {
		codes, err := o.load(ctx)
		if err != nil {
			return nil, err
		}
		o.codes = codes
	}
	return o.codes, nil
}

func (o *occupancy) add(code string) {
	if o.codes != nil {
		o.codes[code] = struct{}{}
	}
}

func (o *occupancy) invalidate() {
	o.codes = nil
}

// allocateAndCommit allocates a code and hands it to commit. A commit that
// fails with entity.ErrWriteConflict reloads the occupancy set and retries,
// up to commitMaxAttempts; any other commit error is returned unchanged.
func (a *CodeAllocator) allocateAndCommit(ctx context.Context, occ *occupancy, commit func(code string) error) (string, error) {
	for attempt := 1; attempt <= a.commitMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		existing, err := occ.current(ctx)
		if err != nil {
			return "", err
		}

		code, err := a.Allocate(existing)
		if err != nil {
			return "", err
		}

		err = commit(code)
		if err == nil {
			occ.add(code)
			return code, nil
		}
		if !errors.Is(err, entity.ErrWriteConflict) {
			return "", err
		}

		a.metrics.CommitConflicts.Inc()
		a.logger.Warn("Short code taken at commit, retrying",
			"code", code,
			"attempt", attempt)
		occ.invalidate()
	}

	return "", fmt.Errorf("%w: %d commits conflicted", entity.ErrAllocationFailed, a.commitMaxAttempts)
}
