// Package tap fans decoded MS/TP frames out to local diagnostic observers —
// independent of the master's own upper-layer request/reply hooks — so a
// debug client can watch bus traffic without participating in it.
package tap

import (
	"sync"

	"github.com/gocomm/mstp-gateway/internal/logging"
	"github.com/gocomm/mstp-gateway/internal/metrics"
	"github.com/gocomm/mstp-gateway/internal/mstp"
)

// BackpressurePolicy controls what happens to an Observer whose Out channel
// is full when Broadcast runs.
type BackpressurePolicy int

const (
	// PolicyDrop silently discards the frame for that one slow observer.
	PolicyDrop BackpressurePolicy = iota
	// PolicyKick closes the observer so its reader disconnects.
	PolicyKick
)

// Observer is a single frame-tap subscriber.
type Observer struct {
	Out       chan mstp.Frame
	Closed    chan struct{}
	closeOnce sync.Once
}

// Close signals the observer is closed (idempotent).
func (o *Observer) Close() {
	o.closeOnce.Do(func() {
		close(o.Closed)
	})
}

// Tap fans out every frame the master's receiver decodes to all registered
// observers.
type Tap struct {
	mu         sync.RWMutex
	observers  map[*Observer]struct{}
	OutBufSize int
	Policy     BackpressurePolicy
}

// New creates a Tap with default settings.
func New() *Tap { return &Tap{observers: make(map[*Observer]struct{})} }

// Add registers an observer.
func (t *Tap) Add(o *Observer) {
	t.mu.Lock()
	prev := len(t.observers)
	t.observers[o] = struct{}{}
	cur := len(t.observers)
	t.mu.Unlock()
	if prev == 0 && cur == 1 {
		logging.L().Info("tap_first_observer_connected")
	}
}

// Remove unregisters an observer; safe to call multiple times.
func (t *Tap) Remove(o *Observer) {
	t.mu.Lock()
	_, existed := t.observers[o]
	if existed {
		delete(t.observers, o)
	}
	cur := len(t.observers)
	t.mu.Unlock()
	select {
	case <-o.Closed:
	default:
		o.Close()
	}
	if existed && cur == 0 {
		logging.L().Info("tap_last_observer_disconnected")
	}
}

// Broadcast delivers fr to every registered observer, honoring the
// backpressure policy for any observer whose channel is full.
func (t *Tap) Broadcast(fr mstp.Frame) {
	observers := t.Snapshot()
	if len(observers) == 0 {
		return
	}
	sum := 0
	for _, o := range observers {
		sum += len(o.Out)
	}
	metrics.SetTapQueueDepth(sum / len(observers))
	metrics.SetTapObservers(len(observers))
	for _, o := range observers {
		select {
		case o.Out <- fr:
		default:
			if t.Policy == PolicyKick {
				o.Close()
			}
		}
	}
}

// Snapshot returns a slice copy of current observers (read-only use).
func (t *Tap) Snapshot() []*Observer {
	t.mu.RLock()
	observers := make([]*Observer, 0, len(t.observers))
	for o := range t.observers {
		observers = append(observers, o)
	}
	t.mu.RUnlock()
	return observers
}

// Count returns the number of active observers.
func (t *Tap) Count() int { t.mu.RLock(); n := len(t.observers); t.mu.RUnlock(); return n }
