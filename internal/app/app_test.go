package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/ayusman/vocalize/internal/landmark"
	"github.com/ayusman/vocalize/internal/landmark/landmarktest"
	"github.com/ayusman/vocalize/internal/observe"
	"github.com/ayusman/vocalize/internal/pipeline"
	"github.com/ayusman/vocalize/internal/plugin"
	"github.com/ayusman/vocalize/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// scriptSource replays frames, then reports no hand.
type scriptSource struct {
	mu     sync.Mutex
	frames []*landmark.HandLandmarks
}

func (s *scriptSource) Next() (*landmark.HandLandmarks, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil, nil
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *scriptSource) Interval() time.Duration {
	return 5 * time.Millisecond
}

type recordingRunner struct {
	mu      sync.Mutex
	letters []string
}

func (r *recordingRunner) Execute(_ context.Context, _ *plugin.Plugin, req *plugin.Request) (*plugin.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.letters = append(r.letters, req.Letter)
	return &plugin.Response{Success: true}, nil
}

func (r *recordingRunner) Letters() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.letters...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func letterHand(t *testing.T, letter string) *landmark.HandLandmarks {
	t.Helper()
	h, ok := landmarktest.LetterLandmarks(letter)
	if !ok {
		t.Fatalf("no pose for %s", letter)
	}
	return &h
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newKeyboardManager(t *testing.T) *plugin.Manager {
	t.Helper()
	dir := t.TempDir()
	pluginDir := filepath.Join(dir, "keyboard")
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest, _ := json.Marshal(plugin.Manifest{Name: "keyboard", Executable: "keyboard", Actions: []string{"type"}})
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), manifest, 0644); err != nil {
		t.Fatal(err)
	}
	mgr := plugin.NewManager(dir, quietLogger())
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	return mgr
}

func TestApp_LettersPersistedAndDispatched(t *testing.T) {
	s := newTestStore(t)
	if err := s.Bindings().Create(&store.Binding{
		Letter: store.AnyLetter, PluginName: "keyboard", ActionName: "type", Enabled: true,
	}); err != nil {
		t.Fatalf("create binding: %v", err)
	}

	b, h, i := letterHand(t, "B"), letterHand(t, "H"), letterHand(t, "I")
	src := &scriptSource{frames: []*landmark.HandLandmarks{b, b, b, b, nil, h, h, h, i, i, i}}
	runner := &recordingRunner{}

	a, err := New(Config{
		Store:    s,
		Plugins:  newKeyboardManager(t),
		Executor: runner,
		Pipeline: pipeline.DefaultConfig(),
		Source:   src,
		Logger:   quietLogger(),
		Metrics:  testMetrics(t),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var presence []bool
	var presenceMu sync.Mutex
	a.Driver().OnHandPresence(func(p bool) {
		presenceMu.Lock()
		defer presenceMu.Unlock()
		presence = append(presence, p)
	})

	if err := a.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}
	sessionID := a.SessionID()
	if sessionID == "" {
		t.Fatal("expected a session while enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	waitFor(t, "three dispatched letters", func() bool { return len(runner.Letters()) == 3 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := runner.Letters(); got[0] != "B" || got[1] != "H" || got[2] != "I" {
		t.Errorf("expected dispatch [B H I], got %v", got)
	}
	if a.LastLetter() != "I" {
		t.Errorf("expected last letter I, got %s", a.LastLetter())
	}
	if a.IsEnabled() {
		t.Error("expected recognition to be disabled after Run returns")
	}

	events, err := s.Events().ListBySession(sessionID)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	var word string
	for _, e := range events {
		word += e.Letter
	}
	if word != "BHI" {
		t.Errorf("expected stored letters BHI, got %q", word)
	}

	sess, err := s.Sessions().Get(sessionID)
	if err != nil {
		t.Fatalf("Sessions().Get: %v", err)
	}
	if sess.EndedAt == nil {
		t.Error("expected session to be ended")
	}

	presenceMu.Lock()
	defer presenceMu.Unlock()
	if len(presence) == 0 || !presence[0] {
		t.Errorf("expected presence to start with true, got %v", presence)
	}
}

func TestApp_DisabledIgnoresSource(t *testing.T) {
	b := letterHand(t, "B")
	src := &scriptSource{frames: []*landmark.HandLandmarks{b, b, b, b, b}}

	a, err := New(Config{
		Pipeline: pipeline.DefaultConfig(),
		Source:   src,
		Logger:   quietLogger(),
		Metrics:  testMetrics(t),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if a.LastLetter() != "" {
		t.Errorf("expected no letter while disabled, got %s", a.LastLetter())
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	if len(src.frames) != 5 {
		t.Errorf("expected the source not to be polled, %d frames left", len(src.frames))
	}
}

func TestApp_SetEnabledSessions(t *testing.T) {
	s := newTestStore(t)
	a, err := New(Config{
		Store:    s,
		Pipeline: pipeline.DefaultConfig(),
		Source:   &scriptSource{},
		Logger:   quietLogger(),
		Metrics:  testMetrics(t),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := a.SetEnabled(true); err != nil {
		t.Fatalf("SetEnabled(true) error = %v", err)
	}
	first := a.SessionID()
	if err := a.SetEnabled(true); err != nil {
		t.Fatalf("second SetEnabled(true) error = %v", err)
	}
	if a.SessionID() != first {
		t.Error("enabling twice should keep the session")
	}
	if !a.Driver().Running() {
		t.Error("expected driver to be running")
	}

	if err := a.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled(false) error = %v", err)
	}
	if a.SessionID() != "" {
		t.Error("expected no session when disabled")
	}
	if a.Driver().Running() {
		t.Error("expected driver to be stopped")
	}

	sess, err := s.Sessions().Get(first)
	if err != nil {
		t.Fatalf("Sessions().Get: %v", err)
	}
	if sess.TableVersion == "" || sess.EndedAt == nil {
		t.Errorf("expected ended session with table version, got %+v", sess)
	}
}

func TestApp_PresenceListenerMayQueryApp(t *testing.T) {
	a, err := New(Config{
		Pipeline: pipeline.DefaultConfig(),
		Source:   &scriptSource{},
		Logger:   quietLogger(),
		Metrics:  testMetrics(t),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var sawEnabled []bool
	a.Driver().OnHandPresence(func(bool) {
		sawEnabled = append(sawEnabled, a.IsEnabled())
	})

	if err := a.SetEnabled(true); err != nil {
		t.Fatal(err)
	}
	if err := a.Driver().OnFrame(letterHand(t, "A")); err != nil {
		t.Fatal(err)
	}
	// Stop fires presence(false) while disabling; it must not deadlock.
	if err := a.SetEnabled(false); err != nil {
		t.Fatal(err)
	}

	if len(sawEnabled) != 2 {
		t.Fatalf("expected 2 presence events, got %d", len(sawEnabled))
	}
}

func TestNew_RequiresSource(t *testing.T) {
	_, err := New(Config{Logger: quietLogger(), Metrics: testMetrics(t)})
	if err == nil {
		t.Fatal("expected error without source or camera")
	}
}
