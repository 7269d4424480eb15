package engine

import (
	"sync"
	"time"
)

// Timer is a pause-aware countdown bound to an absolute wall-clock deadline.
// Remaining time is always computed from clock deltas, never from tick
// counts, so a throttled or suspended scheduler cannot grant extra time: the
// scheduled callback re-checks the deadline before firing and the deadline
// itself moves only when the timer is paused.
//
// The expiry callback fires at most once. Stop cancels any pending callback;
// a stopped timer never fires.
type Timer struct {
	onExpire   func()
	clock      func() time.Time
	warnWindow time.Duration

	mu          sync.Mutex
	limit       time.Duration
	startedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration
	started     bool
	running     bool
	paused      bool
	expired     bool
	sched       *time.Timer
}

// NewTimer builds a timer that invokes onExpire when the countdown reaches zero.
func NewTimer(onExpire func()) *Timer {
	return NewTimerWithClock(onExpire, time.Now)
}

// NewTimerWithClock allows deterministic clocks in tests.
func NewTimerWithClock(onExpire func(), clock func() time.Time) *Timer {
	return &Timer{onExpire: onExpire, clock: clock, warnWindow: 2 * time.Minute}
}

// SetWarnWindow adjusts the low-time window reported by Warning.
func (t *Timer) SetWarnWindow(w time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.warnWindow = w
}

// Start begins a fresh countdown of the given limit.
func (t *Timer) Start(limit time.Duration) {
	t.Restore(limit, 0, 0)
}

// Restore begins a countdown that has already consumed active elapsed time
// and carries accumulated pause from a persisted session. If elapsed >= limit
// the timer fires immediately.
func (t *Timer) Restore(limit, elapsed, pausedTotal time.Duration) {
	t.mu.Lock()
	if t.sched != nil {
		t.sched.Stop()
	}
	t.limit = limit
	t.startedAt = t.clock().Add(-elapsed - pausedTotal)
	t.pausedTotal = pausedTotal
	t.started = true
	t.running = true
	t.paused = false
	t.expired = false
	remaining := t.remainingLocked()
	t.sched = time.AfterFunc(remaining, t.fire)
	t.mu.Unlock()
}

// Pause freezes the countdown. No time elapses while paused.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || t.paused || t.expired {
		return
	}
	t.paused = true
	t.pausedAt = t.clock()
	if t.sched != nil {
		t.sched.Stop()
	}
}

// Resume continues a paused countdown, pushing the deadline out by the time
// spent paused.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || !t.paused || t.expired {
		return
	}
	t.pausedTotal += t.clock().Sub(t.pausedAt)
	t.paused = false
	t.sched = time.AfterFunc(t.remainingLocked(), t.fire)
}

// Stop cancels the countdown. A stopped timer never fires its callback, even
// if a tick was already scheduled.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	if t.sched != nil {
		t.sched.Stop()
	}
}

// Remaining reports the unexpired portion of the limit, never negative.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked()
}

// Elapsed reports active (unpaused) time consumed so far.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedLocked()
}

// PausedTotal reports the accumulated paused time.
func (t *Timer) PausedTotal() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.paused {
		return t.pausedTotal + t.clock().Sub(t.pausedAt)
	}
	return t.pausedTotal
}

// Warning reports whether the countdown is inside the low-time window.
func (t *Timer) Warning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || t.expired {
		return false
	}
	return t.remainingLocked() <= t.warnWindow
}

// Paused reports whether the countdown is currently frozen.
func (t *Timer) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// Expired reports whether the countdown already fired.
func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

func (t *Timer) elapsedLocked() time.Duration {
	if !t.started {
		return 0
	}
	now := t.clock()
	if t.paused {
		now = t.pausedAt
	}
	elapsed := now.Sub(t.startedAt) - t.pausedTotal
	if elapsed < 0 {
		return 0
	}
	if elapsed > t.limit {
		return t.limit
	}
	return elapsed
}

func (t *Timer) remainingLocked() time.Duration {
	remaining := t.limit - t.elapsedLocked()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// fire runs on the scheduled tick. The deadline is re-checked against the
// wall clock: a tick that arrives early (pause raced the scheduler) is
// rescheduled instead of expiring.
func (t *Timer) fire() {
	t.mu.Lock()
	if !t.running || t.paused || t.expired {
		t.mu.Unlock()
		return
	}
	if remaining := t.remainingLocked(); remaining > 0 {
		t.sched = time.AfterFunc(remaining, t.fire)
		t.mu.Unlock()
		return
	}
	t.expired = true
	t.running = false
	cb := t.onExpire
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
}
