package controller

import (
	"context"
	"sync"
	"time"

	"github.com/platformbuilds/dashboard-core/internal/models"
)

// DefaultCoalesceWindow is the quiet period after the last layout change
// before it is written.
const DefaultCoalesceWindow = 500 * time.Millisecond

// LayoutCoalescer turns a burst of layout changes (a continuous drag)
// into one persisted write. Every change is applied immediately and in
// submission order; the write happens once no change has arrived for the
// window.
//
// apply must not call back into the coalescer. persist runs on the timer
// goroutine, or on the caller's goroutine for Flush, and is never run
// concurrently with itself.
type LayoutCoalescer struct {
	window  time.Duration
	apply   func([]models.LayoutCell) error
	persist func(context.Context) error
	onError func(error)

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	stopped bool

	persistMu sync.Mutex
}

func NewLayoutCoalescer(window time.Duration, apply func([]models.LayoutCell) error, persist func(context.Context) error, onError func(error)) *LayoutCoalescer {
	if window <= 0 {
		window = DefaultCoalesceWindow
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &LayoutCoalescer{window: window, apply: apply, persist: persist, onError: onError}
}

// Submit applies cells at once and (re)arms the write timer. A rejected
// layout is returned to the caller and schedules nothing.
func (lc *LayoutCoalescer) Submit(cells []models.LayoutCell) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if err := lc.apply(cells); err != nil {
		return err
	}
	if lc.stopped {
		return nil
	}
	lc.pending = true
	if lc.timer == nil {
		lc.timer = time.AfterFunc(lc.window, lc.fire)
	} else {
		lc.timer.Reset(lc.window)
	}
	return nil
}

func (lc *LayoutCoalescer) fire() {
	if !lc.takePending() {
		return
	}
	if err := lc.run(context.Background()); err != nil {
		lc.onError(err)
	}
}

// Flush writes a pending change now instead of waiting for the window.
func (lc *LayoutCoalescer) Flush(ctx context.Context) error {
	if !lc.takePending() {
		return nil
	}
	return lc.run(ctx)
}

// Cancel drops a pending write, for callers about to save anyway. It
// reports whether one was pending.
func (lc *LayoutCoalescer) Cancel() bool {
	return lc.takePending()
}

// Pending reports whether a write is scheduled.
func (lc *LayoutCoalescer) Pending() bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.pending
}

// Stop cancels the timer. Later submissions are still applied but never
// written; a pending write is dropped unless Flush is called first.
func (lc *LayoutCoalescer) Stop() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.stopped = true
	lc.pending = false
	if lc.timer != nil {
		lc.timer.Stop()
	}
}

func (lc *LayoutCoalescer) takePending() bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if !lc.pending {
		return false
	}
	lc.pending = false
	if lc.timer != nil {
		lc.timer.Stop()
	}
	return true
}

func (lc *LayoutCoalescer) run(ctx context.Context) error {
	lc.persistMu.Lock()
	defer lc.persistMu.Unlock()
	return lc.persist(ctx)
}
