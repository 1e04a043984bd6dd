// Package viewport turns "end of list is near" signals into load-more calls.
package viewport

import (
	"context"
	"sync"
	"time"
)

// LoadMore is invoked when the sentinel becomes visible. It reports whether
// the list still has more pages; returning false detaches the trigger.
type LoadMore func(ctx context.Context) bool

// Trigger watches a sentinel placed after the last item. Margin is the
// number of items before the end at which the sentinel counts as visible.
type Trigger struct {
	Margin   int
	Debounce time.Duration

	mu       sync.Mutex
	load     LoadMore
	running  bool
	armed    bool
	detached bool
	lastFire time.Time
	fired    int
	now      func() time.Time
}

func New(margin int, debounce time.Duration, load LoadMore) *Trigger {
	return &Trigger{
		Margin:   max(margin, 0),
		Debounce: debounce,
		load:     load,
		armed:    true,
		now:      time.Now,
	}
}

// ObserveRemaining reports how many items are left below the viewport.
func (t *Trigger) ObserveRemaining(ctx context.Context, remaining int) bool {
	return t.Observe(ctx, remaining <= t.Margin)
}

// Observe handles one visibility signal and returns true when it caused a
// load. Signals arriving while a load runs, within Debounce of the previous
// fire or after the trigger was detached are dropped.
func (t *Trigger) Observe(ctx context.Context, visible bool) bool {
	if !visible {
		return false
	}
	t.mu.Lock()
	if t.detached || t.running || !t.armed {
		t.mu.Unlock()
		return false
	}
	now := t.now()
	if t.Debounce > 0 && !t.lastFire.IsZero() && now.Sub(t.lastFire) < t.Debounce {
		t.mu.Unlock()
		return false
	}
	t.running = true
	t.armed = false
	t.lastFire = now
	t.fired++
	load := t.load
	t.mu.Unlock()

	hasMore := load(ctx)

	t.mu.Lock()
	t.running = false
	if hasMore && !t.detached {
		t.armed = true
	} else if !hasMore {
		t.detachLocked()
	}
	t.mu.Unlock()
	return true
}

// Update follows the loader's hasMore flag when pages arrive outside of
// Observe, for example the first page of a query.
func (t *Trigger) Update(hasMore bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.detached {
		return
	}
	if !hasMore {
		t.detachLocked()
		return
	}
	if !t.running {
		t.armed = true
	}
}

// Close detaches the trigger. The callback is never invoked afterwards.
func (t *Trigger) Close() {
	t.mu.Lock()
	t.detachLocked()
	t.mu.Unlock()
}

func (t *Trigger) detachLocked() {
	t.detached = true
	t.armed = false
	t.load = nil
}

func (t *Trigger) Detached() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.detached
}

// Fired counts the loads started by this trigger.
func (t *Trigger) Fired() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}
