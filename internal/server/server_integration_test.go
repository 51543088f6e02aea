package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/vocalize/internal/landmark"
	"github.com/ayusman/vocalize/internal/landmark/landmarktest"
	"github.com/ayusman/vocalize/internal/store"
)

func newTestServer(t *testing.T, config Config) *httptest.Server {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	config.Store = s
	ts := httptest.NewServer(New(config))
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, client *http.Client, url string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to encode body: %v", err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	return resp
}

func TestAPI_SampleWorkflow(t *testing.T) {
	ts := newTestServer(t, Config{})
	client := ts.Client()

	// 1. Record a B and a V sample; the V is labelled U on purpose.
	var createdID string
	for _, tc := range []struct{ pose, label string }{{"B", "B"}, {"V", "U"}} {
		hand, ok := landmarktest.LetterLandmarks(tc.pose)
		if !ok {
			t.Fatalf("no landmarks for %s", tc.pose)
		}
		resp := postJSON(t, client, ts.URL+"/api/samples", map[string]any{
			"label":      tc.label,
			"handedness": hand.Handedness,
			"points":     hand.Points,
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
		var created struct {
			ID    string `json:"id"`
			Label string `json:"label"`
		}
		json.NewDecoder(resp.Body).Decode(&created)
		resp.Body.Close()
		if created.Label != tc.label {
			t.Errorf("created label = %s, want %s", created.Label, tc.label)
		}
		createdID = created.ID
	}

	// 2. List by label
	resp, _ := client.Get(ts.URL + "/api/samples?label=B")
	var listed struct {
		Samples []struct {
			ID     string             `json:"id"`
			Points []landmark.Point3D `json:"points"`
		} `json:"samples"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()
	if len(listed.Samples) != 1 {
		t.Fatalf("len(samples) = %d, want 1", len(listed.Samples))
	}
	if len(listed.Samples[0].Points) != landmark.NumLandmarks {
		t.Errorf("len(points) = %d, want %d", len(listed.Samples[0].Points), landmark.NumLandmarks)
	}

	// 3. Evaluate
	resp = postJSON(t, client, ts.URL+"/api/samples/evaluate", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("evaluate status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var report struct {
		Total      int `json:"total"`
		Correct    int `json:"correct"`
		Mismatches []struct {
			Expected string `json:"expected"`
			Got      string `json:"got"`
		} `json:"mismatches"`
	}
	json.NewDecoder(resp.Body).Decode(&report)
	resp.Body.Close()
	if report.Total != 2 || report.Correct != 1 {
		t.Errorf("total/correct = %d/%d, want 2/1", report.Total, report.Correct)
	}
	if len(report.Mismatches) != 1 || report.Mismatches[0].Expected != "U" || report.Mismatches[0].Got != "V" {
		t.Errorf("unexpected mismatches %+v", report.Mismatches)
	}

	// 4. Delete and verify
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/samples/"+createdID, nil)
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	resp.Body.Close()

	resp, _ = client.Get(ts.URL + "/api/samples/" + createdID)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	resp.Body.Close()
}

func TestAPI_BindingWorkflow(t *testing.T) {
	ts := newTestServer(t, Config{})
	client := ts.Client()

	resp := postJSON(t, client, ts.URL+"/api/bindings", map[string]any{
		"letter":      "*",
		"plugin_name": "keyboard",
		"action_name": "type",
		"config":      map[string]any{"uppercase": true},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var created struct {
		ID      string `json:"id"`
		Enabled bool   `json:"enabled"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if !created.Enabled {
		t.Error("new binding should be enabled")
	}

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/bindings/"+created.ID, strings.NewReader(`{"letter": "A", "enabled": false}`))
	resp, _ = client.Do(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var updated struct {
		Letter     string `json:"letter"`
		PluginName string `json:"plugin_name"`
		Enabled    bool   `json:"enabled"`
	}
	json.NewDecoder(resp.Body).Decode(&updated)
	resp.Body.Close()
	if updated.Letter != "A" || updated.PluginName != "keyboard" || updated.Enabled {
		t.Errorf("unexpected update result %+v", updated)
	}

	resp = postJSON(t, client, ts.URL+"/api/bindings", map[string]any{
		"letter":      "ab",
		"plugin_name": "keyboard",
		"action_name": "type",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid letter status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	resp.Body.Close()
}

func TestAPI_Classify(t *testing.T) {
	ts := newTestServer(t, Config{})

	hand, _ := landmarktest.LetterLandmarks("L")
	resp := postJSON(t, ts.Client(), ts.URL+"/api/classify", hand)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var result struct {
		Label    string `json:"label"`
		Features struct {
			Thumb bool `json:"thumb"`
			Index bool `json:"index"`
		} `json:"features"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Label != "L" {
		t.Errorf("label = %s, want L", result.Label)
	}
	if !result.Features.Thumb || !result.Features.Index {
		t.Errorf("expected thumb and index extended, got %+v", result.Features)
	}

	bad := postJSON(t, ts.Client(), ts.URL+"/api/classify", map[string]any{"points": []landmark.Point3D{{X: 0.5}}})
	defer bad.Body.Close()
	if bad.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("short frame status = %d, want %d", bad.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestAPI_Events(t *testing.T) {
	hub := NewEventHub(nil)
	ts := newTestServer(t, Config{Events: hub})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.PublishPresence(true)
	hub.PublishLetter("B")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var presence, letter Event
	if err := conn.ReadJSON(&presence); err != nil {
		t.Fatalf("read presence: %v", err)
	}
	if err := conn.ReadJSON(&letter); err != nil {
		t.Fatalf("read letter: %v", err)
	}

	if presence.Type != EventPresence || presence.Present == nil || !*presence.Present {
		t.Errorf("unexpected presence event %+v", presence)
	}
	if letter.Type != EventLetter || letter.Letter != "B" {
		t.Errorf("unexpected letter event %+v", letter)
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
}
