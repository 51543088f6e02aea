package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/ayusman/vocalize/internal/app"
	"github.com/ayusman/vocalize/internal/capture"
	"github.com/ayusman/vocalize/internal/detector"
	"github.com/ayusman/vocalize/internal/landmark"
	"github.com/ayusman/vocalize/internal/landmark/landmarktest"
	"github.com/ayusman/vocalize/internal/pipeline"
	"github.com/ayusman/vocalize/internal/plugin"
	"github.com/ayusman/vocalize/internal/server"
	"github.com/ayusman/vocalize/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeRecorderPlugin installs a plugin that appends every request to out.
func writeRecorderPlugin(t *testing.T, dir, out string) {
	t.Helper()

	pluginDir := filepath.Join(dir, "recorder")
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	manifest := `{"name": "recorder", "version": "1.0.0", "executable": "run.sh", "actions": ["record"]}`
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), []byte(manifest), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	script := "#!/bin/sh\ncat >> '" + out + "'\necho >> '" + out + "'\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(pluginDir, "run.sh"), []byte(script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
}

func hands(letter string) []landmark.HandLandmarks {
	h, _ := landmarktest.LetterLandmarks(letter)
	return []landmark.HandLandmarks{h}
}

func TestE2E_FingerspellingToPlugin(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	tmpDir := t.TempDir()
	out := filepath.Join(tmpDir, "letters.jsonl")

	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	pluginDir := filepath.Join(tmpDir, "plugins")
	writeRecorderPlugin(t, pluginDir, out)
	plugins := plugin.NewManager(pluginDir, quietLogger())
	if err := plugins.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()
	camera := capture.NewMockCamera([]*gocv.Mat{&frame}, true)

	det := detector.NewMockDetector()
	det.SetScript([][]landmark.HandLandmarks{
		hands("B"), hands("B"), hands("B"),
		nil,
		hands("H"), hands("H"), hands("H"),
	})

	application, err := app.New(app.Config{
		Store:    s,
		Plugins:  plugins,
		Pipeline: pipeline.DefaultConfig(),
		Camera:   camera,
		Detector: det,
		Activity: capture.DefaultActivityConfig(),
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}

	hub := server.NewEventHub(quietLogger())
	hub.Attach(application.Driver())

	ts := httptest.NewServer(server.New(server.Config{
		Store:      s,
		Plugins:    plugins,
		Recognizer: application,
		Events:     hub,
		Logger:     quietLogger(),
	}))
	defer ts.Close()
	client := ts.Client()

	t.Run("BindAllLetters", func(t *testing.T) {
		resp, err := client.Post(ts.URL+"/api/bindings", "application/json",
			strings.NewReader(`{"letter": "*", "plugin_name": "recorder", "action_name": "record"}`))
		if err != nil {
			t.Fatalf("create binding error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
	})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()
	for deadline := time.Now().Add(2 * time.Second); hub.Clients() == 0; {
		if time.Now().After(deadline) {
			t.Fatal("event client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- application.Run(ctx) }()

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/recognition", bytes.NewBufferString(`{"enabled": true}`))
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("enable error = %v", err)
	}
	resp.Body.Close()
	sessionID := application.SessionID()
	if sessionID == "" {
		t.Fatal("expected a session after enabling")
	}

	t.Run("LettersStreamed", func(t *testing.T) {
		conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		var letters []string
		for len(letters) < 2 {
			var ev server.Event
			if err := conn.ReadJSON(&ev); err != nil {
				t.Fatalf("read event: %v (letters so far %v)", err, letters)
			}
			if ev.Type == server.EventLetter {
				letters = append(letters, ev.Letter)
			}
		}
		if letters[0] != "B" || letters[1] != "H" {
			t.Errorf("letters = %v, want [B H]", letters)
		}
	})

	t.Run("PluginReceivedLetters", func(t *testing.T) {
		var lines []string
		deadline := time.Now().Add(10 * time.Second)
		for time.Now().Before(deadline) {
			data, _ := os.ReadFile(out)
			lines = strings.Fields(string(data))
			if len(lines) >= 2 {
				break
			}
			time.Sleep(20 * time.Millisecond)
		}
		if len(lines) != 2 {
			t.Fatalf("plugin saw %d requests, want 2", len(lines))
		}
		for i, want := range []string{"B", "H"} {
			var got plugin.Request
			if err := json.Unmarshal([]byte(lines[i]), &got); err != nil {
				t.Fatalf("decode request %d: %v", i, err)
			}
			if got.Action != "record" || got.Letter != want {
				t.Errorf("request %d = %+v, want record %s", i, got, want)
			}
		}
	})

	cancel()
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	t.Run("SessionPersisted", func(t *testing.T) {
		events, err := s.Events().ListBySession(sessionID)
		if err != nil {
			t.Fatalf("ListBySession() error = %v", err)
		}
		if len(events) != 2 || events[0].Letter != "B" || events[1].Letter != "H" {
			t.Errorf("unexpected events %+v", events)
		}

		sess, err := s.Sessions().Get(sessionID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if sess.EndedAt == nil {
			t.Error("session should be ended after Run returns")
		}
		if application.IsEnabled() {
			t.Error("recognition should be disabled after Run returns")
		}
	})
}
