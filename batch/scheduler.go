package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fetchpix/fetchpix/models"
	"github.com/fetchpix/fetchpix/session"
)

// ItemFunc processes one work item within an execution context's session.
type ItemFunc[T, R any] func(ctx context.Context, sess session.PageSession, item T) (R, error)

// Outcome pairs an item's result with the error that produced it, if any.
type Outcome[R any] struct {
	Value R
	Err   error
}

// Split partitions items into at most n contiguous slices of near-equal
// size; the first len(items)%n slices absorb the remainder. Concatenating
// the slices in order reconstructs items exactly.
func Split[T any](items []T, n int) [][]T {
	if n <= 0 {
		n = 1
	}
	if n > len(items) {
		n = len(items)
	}
	if n == 0 {
		return nil
	}

	quotient, remainder := len(items)/n, len(items)%n
	slices := make([][]T, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		size := quotient
		if i < remainder {
			size++
		}
		slices = append(slices, items[start:start+size])
		start += size
	}
	return slices
}

// Run drives items through fn across concurrency execution contexts. One
// session is launched per slice; each slice is processed strictly in input
// order while slices run in parallel. After every item one progress event is
// emitted with a cumulative count. A failed item never terminates its slice;
// a failed session launch fails only the remaining items of its own slice.
// Sessions are always closed, error or not. Results come back in input
// order.
func Run[T, R any](ctx context.Context, factory session.Factory, rc *RunContext, stage models.Stage, items []T, concurrency int, fn ItemFunc[T, R]) []Outcome[R] {
	slices := Split(items, concurrency)
	results := make([][]Outcome[R], len(slices))
	total := len(items)

	completed := &counter{}
	var wg sync.WaitGroup

	for i, slice := range slices {
		wg.Add(1)
		go func(i int, slice []T) {
			defer wg.Done()
			results[i] = runSlice(ctx, factory, rc, stage, slice, total, completed, fn)
		}(i, slice)
	}
	wg.Wait()

	flat := make([]Outcome[R], 0, total)
	for _, part := range results {
		flat = append(flat, part...)
	}
	return flat
}

func runSlice[T, R any](ctx context.Context, factory session.Factory, rc *RunContext, stage models.Stage, slice []T, total int, completed *counter, fn ItemFunc[T, R]) []Outcome[R] {
	out := make([]Outcome[R], len(slice))

	sess, err := factory.NewSession(ctx)
	if err != nil {
		slog.Error("session launch failed, degrading slice",
			slog.String("stage", string(stage)),
			slog.Int("items", len(slice)),
			slog.Any("error", err),
		)
		for i := range slice {
			out[i] = Outcome[R]{Err: fmt.Errorf("session launch: %w", err)}
			step(rc, stage, completed, total)
		}
		return out
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			slog.Warn("session close failed", slog.Any("error", cerr))
		}
	}()

	for i, item := range slice {
		out[i] = runItem(ctx, sess, item, fn)
		if out[i].Err != nil {
			slog.Warn("item failed",
				slog.String("stage", string(stage)),
				slog.Any("error", out[i].Err),
			)
		}
		step(rc, stage, completed, total)
	}
	return out
}

// runItem contains a single item's processing; a panic is converted into a
// failed outcome so it cannot take down the owning slice.
func runItem[T, R any](ctx context.Context, sess session.PageSession, item T, fn ItemFunc[T, R]) (out Outcome[R]) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome[R]{Err: fmt.Errorf("item panic: %v", r)}
		}
	}()

	value, err := fn(ctx, sess, item)
	return Outcome[R]{Value: value, Err: err}
}

// counter serializes increment-and-publish so delivered progress events stay
// monotonic even when contexts complete items at the same instant.
type counter struct {
	mu sync.Mutex
	n  int
}

func step(rc *RunContext, stage models.Stage, completed *counter, total int) {
	completed.mu.Lock()
	defer completed.mu.Unlock()

	completed.n++
	current := completed.n
	percent := 0
	if total > 0 {
		percent = current * 100 / total
	}
	rc.publish(models.ProgressEvent{
		Stage:   stage,
		Current: current,
		Total:   total,
		Percent: percent,
		Message: stageMessage(stage, current, total),
	})
}

func stageMessage(stage models.Stage, current, total int) string {
	switch stage {
	case models.StageChecking:
		return fmt.Sprintf("checked %d of %d pages", current, total)
	case models.StageDownloading:
		return fmt.Sprintf("downloaded %d of %d images", current, total)
	default:
		return fmt.Sprintf("processed %d of %d items", current, total)
	}
}
