// Package progress provides the one-way event channel from the running
// pipeline to its caller.
package progress

import (
	"sync"

	"github.com/fetchpix/fetchpix/models"
)

// Bus pushes progress events to a single consumer. Publishing never blocks
// the pipeline: when the consumer falls behind the buffer, events are
// dropped. Close is the end-of-stream marker.
type Bus struct {
	events    chan models.ProgressEvent
	closeOnce sync.Once

	mu     sync.Mutex
	closed bool
}

// NewBus builds a bus with the given buffer size.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{events: make(chan models.ProgressEvent, buffer)}
}

// Publish delivers ev to the consumer if the buffer has room, and drops it
// otherwise. Publishing after Close is a no-op.
func (b *Bus) Publish(ev models.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.events <- ev:
	default:
	}
}

// Events returns the consumer side of the bus. The channel is closed when no
// more events will be published.
func (b *Bus) Events() <-chan models.ProgressEvent {
	return b.events
}

// Close marks the end of the stream. Safe to call more than once.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.events)
	})
}
