// Package app wires capture, recognition, persistence and letter sinks into
// the running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/vocalize/internal/capture"
	"github.com/ayusman/vocalize/internal/detector"
	"github.com/ayusman/vocalize/internal/gesture"
	"github.com/ayusman/vocalize/internal/observe"
	"github.com/ayusman/vocalize/internal/pipeline"
	"github.com/ayusman/vocalize/internal/plugin"
	"github.com/ayusman/vocalize/internal/store"
)

// DefaultQueueSize is the number of emitted letters that may wait for
// persistence and dispatch.
const DefaultQueueSize = 64

// Config holds the application's collaborators. Store and Plugins are
// optional; without them letters are neither persisted nor dispatched.
type Config struct {
	Store    *store.Store
	Plugins  *plugin.Manager
	Executor plugin.Runner
	Pipeline pipeline.Config

	// Source overrides the camera chain below.
	Source pipeline.Source

	Camera    capture.Camera
	Detector  detector.Detector
	Activity  capture.ActivityConfig
	Smoothing detector.SmootherConfig

	QueueSize int
	Clock     clockwork.Clock
	Logger    *slog.Logger
	Metrics   *observe.Metrics
}

type letterEvent struct {
	letter    gesture.Label
	sessionID string
	at        time.Time
}

// App runs the recognition pipeline and fans emitted letters out to the
// store and the bound plugins.
type App struct {
	config     Config
	source     pipeline.Source
	activity   *capture.ActivityMonitor
	driver     *pipeline.Driver
	dispatcher *plugin.Dispatcher
	logger     *slog.Logger
	clock      clockwork.Clock
	letters    chan letterEvent

	// toggleMu serializes SetEnabled.
	toggleMu   sync.Mutex
	mu         sync.RWMutex
	enabled    bool
	session    *store.Session
	lastLetter gesture.Label
}

// New creates an App. Recognition starts disabled.
func New(config Config) (*App, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	if config.Metrics == nil {
		config.Metrics = observe.DefaultMetrics()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}

	a := &App{
		config:  config,
		logger:  config.Logger,
		clock:   config.Clock,
		letters: make(chan letterEvent, config.QueueSize),
	}

	a.source = config.Source
	if a.source == nil {
		if config.Camera == nil || config.Detector == nil {
			return nil, errors.New("app needs either a source or a camera and a detector")
		}
		var smoother *detector.Smoother
		if config.Smoothing.Enabled {
			smoother = detector.NewSmoother(config.Smoothing)
		}
		a.activity = capture.NewActivityMonitor(config.Activity)
		a.source = NewCameraSource(config.Camera, config.Detector, smoother, a.activity, config.Clock, config.Logger)
	}

	a.driver = pipeline.New(config.Pipeline,
		pipeline.WithClock(config.Clock),
		pipeline.WithLogger(config.Logger),
		pipeline.WithMetrics(config.Metrics),
	)
	a.driver.OnLetter(a.handleLetter)

	if config.Store != nil && config.Plugins != nil {
		runner := config.Executor
		if runner == nil {
			runner = plugin.NewExecutor(5 * time.Second)
		}
		a.dispatcher = plugin.NewDispatcher(config.Store.Bindings(), config.Plugins, runner, config.Logger, config.Metrics)
	}

	return a, nil
}

// SetEnabled starts or stops recognition. Enabling opens a new session and
// disabling ends it.
func (a *App) SetEnabled(enabled bool) error {
	a.toggleMu.Lock()
	defer a.toggleMu.Unlock()

	if enabled == a.IsEnabled() {
		return nil
	}

	if enabled {
		var sess *store.Session
		if a.config.Store != nil {
			var err error
			sess, err = a.config.Store.Sessions().Start(a.driver.Classifier().Table().Version)
			if err != nil {
				return fmt.Errorf("start session: %w", err)
			}
		}
		a.mu.Lock()
		a.enabled = true
		a.session = sess
		a.mu.Unlock()

		a.driver.Start()
		return nil
	}

	// Listeners run inside Stop, so no App lock may be held here.
	a.driver.Stop()

	a.mu.Lock()
	sess := a.session
	a.enabled = false
	a.session = nil
	a.mu.Unlock()

	if sess != nil {
		if err := a.config.Store.Sessions().End(sess.ID); err != nil {
			a.logger.Warn("ending session", "session", sess.ID, "err", err)
		}
	}
	return nil
}

// IsEnabled returns whether recognition is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// LastLetter returns the most recently emitted letter.
func (a *App) LastLetter() gesture.Label {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastLetter
}

// SessionID returns the current session ID, or "" when disabled or running
// without a store.
func (a *App) SessionID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return ""
	}
	return a.session.ID
}

// Driver returns the pipeline driver, for subscribing to letters and hand
// presence.
func (a *App) Driver() *pipeline.Driver {
	return a.driver
}

// Run polls the source and processes emitted letters until ctx is done.
// Recognition is disabled and the camera chain released on return. Run may
// only be called once.
func (a *App) Run(ctx context.Context) error {
	if a.config.Camera != nil && a.config.Source == nil {
		if err := a.config.Camera.Open(); err != nil {
			return fmt.Errorf("open camera: %w", err)
		}
	}
	defer a.release()

	interval := time.Second / capture.DefaultFPS
	if p, ok := a.source.(pipeline.Pacer); ok && p.Interval() > 0 {
		interval = p.Interval()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(a.letters)
		err := a.driver.Run(ctx, a.source, interval)
		if err := a.SetEnabled(false); err != nil {
			a.logger.Warn("disabling recognition", "err", err)
		}
		return err
	})
	g.Go(func() error {
		a.processLetters(ctx)
		return nil
	})

	a.logger.Info("detection pipeline started", "interval", interval)
	err := g.Wait()
	a.logger.Info("detection pipeline stopped")
	return err
}

// handleLetter runs on the frame path, so it only queues the letter.
func (a *App) handleLetter(l gesture.Label) {
	a.mu.Lock()
	a.lastLetter = l
	ev := letterEvent{letter: l, at: a.clock.Now()}
	if a.session != nil {
		ev.sessionID = a.session.ID
	}
	a.mu.Unlock()

	select {
	case a.letters <- ev:
	default:
		a.logger.Warn("letter queue full, dropping letter", "letter", l.String())
	}
}

// processLetters persists and dispatches letters in emission order. It
// drains the queue after ctx is done so no emitted letter is lost.
func (a *App) processLetters(ctx context.Context) {
	for ev := range a.letters {
		if a.config.Store != nil && ev.sessionID != "" {
			if _, err := a.config.Store.Events().Record(ev.sessionID, string(ev.letter), ev.at); err != nil {
				a.logger.Warn("recording letter", "letter", ev.letter.String(), "err", err)
			}
		}
		if a.dispatcher != nil {
			// Dispatch outlives ctx so queued letters still reach their sinks.
			if _, err := a.dispatcher.Dispatch(context.WithoutCancel(ctx), string(ev.letter)); err != nil {
				a.logger.Warn("dispatching letter", "letter", ev.letter.String(), "err", err)
			}
		}
	}
}

func (a *App) release() {
	if a.config.Camera != nil {
		if err := a.config.Camera.Close(); err != nil {
			a.logger.Warn("closing camera", "err", err)
		}
	}
	if a.activity != nil {
		a.activity.Close()
	}
	if a.config.Detector != nil {
		if err := a.config.Detector.Close(); err != nil {
			a.logger.Warn("closing detector", "err", err)
		}
	}
}
