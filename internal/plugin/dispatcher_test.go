package plugin

import (
	"context"
	"errors"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/ayusman/vocalize/internal/observe"
	"github.com/ayusman/vocalize/internal/store"
)

type fakeBindings struct {
	bindings []*store.Binding
	err      error
}

func (f *fakeBindings) ForLetter(letter string) ([]*store.Binding, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*store.Binding
	for _, b := range f.bindings {
		if b.Enabled && (b.Letter == letter || b.Letter == store.AnyLetter) {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakePlugins map[string]*Plugin

func (f fakePlugins) Get(name string) (*Plugin, error) {
	p, ok := f[name]
	if !ok {
		return nil, ErrPluginNotFound
	}
	return p, nil
}

type fakeRunner struct {
	mu       sync.Mutex
	requests []string
	respond  func(p *Plugin, req *Request) (*Response, error)
}

func (f *fakeRunner) Execute(_ context.Context, p *Plugin, req *Request) (*Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, p.Manifest.Name+":"+req.Action+":"+req.Letter)
	f.mu.Unlock()
	if f.respond != nil {
		return f.respond(p, req)
	}
	return &Response{Success: true}, nil
}

func newTestDispatcher(t *testing.T, b BindingLookup, runner Runner) *Dispatcher {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	plugins := fakePlugins{
		"keyboard": {Manifest: Manifest{Name: "keyboard", Actions: []string{"type"}}},
		"speech":   {Manifest: Manifest{Name: "speech", Actions: []string{"say"}}},
	}
	return NewDispatcher(b, plugins, runner, quietLogger(), metrics)
}

func TestDispatcher_RunsBindingsInOrder(t *testing.T) {
	bindings := &fakeBindings{bindings: []*store.Binding{
		{ID: "1", Letter: "A", PluginName: "keyboard", ActionName: "type", Enabled: true},
		{ID: "2", Letter: store.AnyLetter, PluginName: "speech", ActionName: "say", Enabled: true},
		{ID: "3", Letter: "B", PluginName: "keyboard", ActionName: "type", Enabled: true},
	}}
	runner := &fakeRunner{}
	d := newTestDispatcher(t, bindings, runner)

	results, err := d.Dispatch(context.Background(), "A")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Status != StatusOK || r.Err != nil {
			t.Errorf("expected ok result, got %+v", r)
		}
	}

	want := []string{"keyboard:type:A", "speech:say:A"}
	if len(runner.requests) != len(want) {
		t.Fatalf("expected requests %v, got %v", want, runner.requests)
	}
	for i := range want {
		if runner.requests[i] != want[i] {
			t.Errorf("expected requests %v, got %v", want, runner.requests)
			break
		}
	}
}

func TestDispatcher_FailuresDoNotStopOthers(t *testing.T) {
	bindings := &fakeBindings{bindings: []*store.Binding{
		{ID: "missing", Letter: "C", PluginName: "ghost", ActionName: "boo", Enabled: true},
		{ID: "unsupported", Letter: "C", PluginName: "keyboard", ActionName: "say", Enabled: true},
		{ID: "failed", Letter: "C", PluginName: "speech", ActionName: "say", Enabled: true},
		{ID: "ok", Letter: "C", PluginName: "keyboard", ActionName: "type", Enabled: true},
	}}
	runner := &fakeRunner{respond: func(p *Plugin, _ *Request) (*Response, error) {
		if p.Manifest.Name == "speech" {
			return &Response{Success: false, Error: "no voice"}, nil
		}
		return &Response{Success: true}, nil
	}}
	d := newTestDispatcher(t, bindings, runner)

	results, err := d.Dispatch(context.Background(), "C")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	want := map[string]string{
		"missing":     StatusNotFound,
		"unsupported": StatusUnsupported,
		"failed":      StatusFailed,
		"ok":          StatusOK,
	}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(results))
	}
	for _, r := range results {
		if r.Status != want[r.BindingID] {
			t.Errorf("binding %s: expected status %s, got %s", r.BindingID, want[r.BindingID], r.Status)
		}
	}
	if !errors.Is(results[0].Err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", results[0].Err)
	}
	if results[2].Err == nil || results[2].Err.Error() != "no voice" {
		t.Errorf("expected plugin error 'no voice', got %v", results[2].Err)
	}
}

func TestDispatcher_RunnerError(t *testing.T) {
	bindings := &fakeBindings{bindings: []*store.Binding{
		{ID: "1", Letter: "D", PluginName: "keyboard", ActionName: "type", Enabled: true},
	}}
	runner := &fakeRunner{respond: func(*Plugin, *Request) (*Response, error) {
		return nil, ErrTimeout
	}}
	d := newTestDispatcher(t, bindings, runner)

	results, err := d.Dispatch(context.Background(), "D")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(results) != 1 || results[0].Status != StatusError || !errors.Is(results[0].Err, ErrTimeout) {
		t.Errorf("expected one timed out result, got %+v", results)
	}
}

func TestDispatcher_LookupError(t *testing.T) {
	d := newTestDispatcher(t, &fakeBindings{err: errors.New("db closed")}, &fakeRunner{})

	if _, err := d.Dispatch(context.Background(), "E"); err == nil {
		t.Error("expected lookup error")
	}
}

func TestDispatcher_NoBindings(t *testing.T) {
	runner := &fakeRunner{}
	d := newTestDispatcher(t, &fakeBindings{}, runner)

	results, err := d.Dispatch(context.Background(), "Z")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(results) != 0 || len(runner.requests) != 0 {
		t.Errorf("expected nothing dispatched, got %v", runner.requests)
	}
}
