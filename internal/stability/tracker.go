// Package stability debounces per-frame classifier output into letter events.
package stability

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ayusman/vocalize/internal/gesture"
)

// Config holds debounce settings.
type Config struct {
	// Threshold is the number of consecutive identical labels needed to emit.
	Threshold int `yaml:"threshold"`
	// GracePeriod is how long "no gesture" must last before the last emitted
	// letter may be emitted again.
	GracePeriod time.Duration `yaml:"grace_period"`
}

// DefaultConfig returns a threshold of 3 frames and a 2s grace period.
func DefaultConfig() Config {
	return Config{
		Threshold:   3,
		GracePeriod: 2 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Threshold < 1 {
		return fmt.Errorf("threshold must be at least 1, got %d", c.Threshold)
	}
	if c.GracePeriod <= 0 {
		return fmt.Errorf("grace_period must be positive, got %s", c.GracePeriod)
	}
	return nil
}

// State is a snapshot of the tracker.
type State struct {
	Candidate    gesture.Label
	Count        int
	LastEmitted  gesture.Label
	LastActivity time.Time
	ResetPending bool
}

// Idle reports whether the state equals the initial state.
func (s State) Idle() bool {
	return s == State{}
}

// Tracker turns a label stream into at most one emission per held pose.
//
// A label is emitted once it has been observed Threshold times in a row and
// differs from the last emitted label. The last emitted label is forgotten
// only after GracePeriod of continuous None, so a dropped frame does not
// re-trigger the same letter while a deliberate pause does.
type Tracker struct {
	mu    sync.Mutex
	cfg   Config
	clock clockwork.Clock

	candidate    gesture.Label
	count        int
	lastEmitted  gesture.Label
	lastActivity time.Time

	// Pending reset of lastEmitted.
	resetPending bool
	noneSince    time.Time
	timer        clockwork.Timer
	generation   uint64
}

// New creates a tracker. A nil clock uses the real clock.
func New(cfg Config, clock clockwork.Clock) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{cfg: cfg, clock: clock}
}

// Observe folds one label into the state and returns the label to emit, if any.
func (t *Tracker) Observe(label gesture.Label, now time.Time) (gesture.Label, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if label.IsNone() {
		t.candidate = gesture.None
		t.count = 0
		if t.lastEmitted.IsNone() {
			return gesture.None, false
		}
		if !t.resetPending {
			t.armReset(now)
		} else if now.Sub(t.noneSince) >= t.cfg.GracePeriod {
			t.clearEmitted()
		}
		return gesture.None, false
	}

	// A deadline that passed during a frame gap counts even if the timer
	// callback has not run yet.
	if t.resetPending && now.Sub(t.noneSince) >= t.cfg.GracePeriod {
		t.clearEmitted()
	}
	t.cancelReset()

	if label == t.candidate {
		if t.count < t.cfg.Threshold {
			t.count++
		}
	} else {
		t.candidate = label
		t.count = 1
	}

	if t.count >= t.cfg.Threshold && label != t.lastEmitted {
		t.lastEmitted = label
		t.lastActivity = now
		return label, true
	}
	return gesture.None, false
}

// Reset cancels any pending timer and returns the tracker to Idle.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopTimer()
	t.candidate = gesture.None
	t.count = 0
	t.lastEmitted = gesture.None
	t.lastActivity = time.Time{}
	t.resetPending = false
	t.noneSince = time.Time{}
}

// State returns a snapshot of the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	return State{
		Candidate:    t.candidate,
		Count:        t.count,
		LastEmitted:  t.lastEmitted,
		LastActivity: t.lastActivity,
		ResetPending: t.resetPending,
	}
}

func (t *Tracker) armReset(now time.Time) {
	t.stopTimer()
	t.resetPending = true
	t.noneSince = now
	gen := t.generation
	t.timer = t.clock.AfterFunc(t.cfg.GracePeriod, func() {
		t.expire(gen)
	})
}

func (t *Tracker) expire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.generation || !t.resetPending {
		return
	}
	// The timer has fired; there is nothing left to stop.
	t.timer = nil
	t.clearEmitted()
}

func (t *Tracker) cancelReset() {
	if !t.resetPending {
		return
	}
	t.stopTimer()
	t.resetPending = false
	t.noneSince = time.Time{}
}

func (t *Tracker) clearEmitted() {
	t.stopTimer()
	t.lastEmitted = gesture.None
	t.resetPending = false
	t.noneSince = time.Time{}
}

// stopTimer cancels the scheduled reset. Bumping the generation turns a
// callback that already fired but is waiting on the lock into a no-op.
func (t *Tracker) stopTimer() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.generation++
}
