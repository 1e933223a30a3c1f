// Package batch fans a work list out across a fixed pool of execution
// contexts and aggregates per-item outcomes into a progress stream.
package batch

import (
	"sync/atomic"

	"github.com/fetchpix/fetchpix/models"
	"github.com/fetchpix/fetchpix/progress"
)

// RunContext carries the per-run progress sink and cancellation flag.
// Workers and contexts receive it explicitly; there is no ambient run state.
type RunContext struct {
	bus       *progress.Bus
	cancelled atomic.Bool
}

// NewRunContext builds a run context publishing to bus. The cancellation
// flag starts cleared.
func NewRunContext(bus *progress.Bus) *RunContext {
	return &RunContext{bus: bus}
}

// RequestCancel asks the run to stop starting new work. Advisory: work
// already past its last checkpoint still completes.
func (rc *RunContext) RequestCancel() {
	rc.cancelled.Store(true)
}

// Cancelled reports whether cancellation was requested.
func (rc *RunContext) Cancelled() bool {
	return rc.cancelled.Load()
}

func (rc *RunContext) publish(ev models.ProgressEvent) {
	if rc.bus == nil {
		return
	}
	rc.bus.Publish(ev)
}
