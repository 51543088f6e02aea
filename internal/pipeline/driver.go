// Package pipeline sequences landmark frames through feature extraction,
// classification and stabilization, and notifies listeners of letters and
// hand presence.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ayusman/vocalize/internal/features"
	"github.com/ayusman/vocalize/internal/gesture"
	"github.com/ayusman/vocalize/internal/landmark"
	"github.com/ayusman/vocalize/internal/observe"
	"github.com/ayusman/vocalize/internal/stability"
)

// Config holds the driver settings.
type Config struct {
	Stability  stability.Config
	Thresholds gesture.Thresholds
	// Disabled letters are removed from the rule table.
	Disabled []gesture.Label
}

// DefaultConfig returns the shipped stability settings and thresholds.
func DefaultConfig() Config {
	return Config{
		Stability:  stability.DefaultConfig(),
		Thresholds: gesture.DefaultThresholds(),
	}
}

// Option configures a Driver.
type Option func(*Driver)

// WithClock sets the clock used for tracker timestamps and timers.
func WithClock(c clockwork.Clock) Option {
	return func(d *Driver) { d.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithTable replaces the rule table built from Config.
func WithTable(t gesture.Table) Option {
	return func(d *Driver) { d.table = &t }
}

// Driver feeds frames through the recognition pipeline. It starts stopped.
type Driver struct {
	// frameMu serializes OnFrame including its callbacks, so listeners see
	// events in frame order.
	frameMu sync.Mutex

	mu          sync.Mutex
	running     bool
	handPresent bool
	onLetter    []func(gesture.Label)
	onPresence  []func(bool)

	classifier *gesture.Classifier
	tracker    *stability.Tracker
	table      *gesture.Table
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observe.Metrics
}

// New creates a driver.
func New(cfg Config, opts ...Option) *Driver {
	d := &Driver{
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}

	table := gesture.NewTable(cfg.Thresholds).Without(cfg.Disabled...)
	if d.table != nil {
		table = *d.table
	}
	d.classifier = gesture.NewClassifier(table)
	d.tracker = stability.New(cfg.Stability, d.clock)
	return d
}

// OnLetter registers a callback for emitted letters.
func (d *Driver) OnLetter(fn func(gesture.Label)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onLetter = append(d.onLetter, fn)
}

// OnHandPresence registers a callback for hand visibility transitions.
func (d *Driver) OnHandPresence(fn func(bool)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onPresence = append(d.onPresence, fn)
}

// Start resets the stability state and enables processing.
func (d *Driver) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.tracker.Reset()
	d.running = true
	d.logger.Info("pipeline started", "table", d.classifier.Table().Version)
}

// Stop halts processing, resets the stability state and cancels the pending
// grace timer. If a hand was visible, presence listeners are told it is gone.
func (d *Driver) Stop() {
	d.mu.Lock()
	wasRunning := d.running
	wasPresent := d.handPresent
	d.running = false
	d.handPresent = false
	d.tracker.Reset()
	listeners := slices.Clone(d.onPresence)
	d.mu.Unlock()

	if wasPresent {
		d.metrics.RecordPresence(context.Background(), false)
		for _, fn := range listeners {
			fn(false)
		}
	}
	if wasRunning {
		d.logger.Info("pipeline stopped")
	}
}

// Running reports whether the driver is processing frames.
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// HandPresent reports whether the last processed frame had a hand.
func (d *Driver) HandPresent() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handPresent
}

// State returns a snapshot of the stability state.
func (d *Driver) State() stability.State {
	return d.tracker.State()
}

// Classifier returns the classifier in use.
func (d *Driver) Classifier() *gesture.Classifier {
	return d.classifier
}

// OnFrame processes one observation. A nil hand means no hand is visible.
// Invalid frames are dropped without touching any state and the returned
// error wraps landmark.ErrInvalidFrame. Frames are ignored while stopped.
func (d *Driver) OnFrame(hand *landmark.HandLandmarks) error {
	d.frameMu.Lock()
	defer d.frameMu.Unlock()

	ctx := context.Background()

	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}

	label := gesture.None
	result := observe.ResultNoHand
	if hand != nil {
		start := time.Now()
		f, err := features.Extract(hand)
		if err != nil {
			d.mu.Unlock()
			d.metrics.RecordFrame(ctx, observe.ResultInvalid)
			d.logger.Warn("dropping invalid frame", "err", err)
			return fmt.Errorf("on frame: %w", err)
		}
		label = d.classifier.Classify(f)
		d.metrics.ClassifyDuration.Record(ctx, time.Since(start).Seconds())
		result = observe.ResultClassified
	}

	emitted, ok := d.tracker.Observe(label, d.clock.Now())

	present := hand != nil
	presenceChanged := present != d.handPresent
	d.handPresent = present

	letterListeners := slices.Clone(d.onLetter)
	presenceListeners := slices.Clone(d.onPresence)
	d.mu.Unlock()

	d.metrics.RecordFrame(ctx, result)

	if presenceChanged {
		d.metrics.RecordPresence(ctx, present)
		for _, fn := range presenceListeners {
			fn(present)
		}
	}
	if ok {
		d.metrics.RecordLetter(ctx, string(emitted))
		d.logger.Debug("letter emitted", "letter", string(emitted))
		for _, fn := range letterListeners {
			fn(emitted)
		}
	}
	return nil
}
