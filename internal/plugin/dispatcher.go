package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ayusman/vocalize/internal/observe"
	"github.com/ayusman/vocalize/internal/store"
)

// Dispatch outcomes, used as the status metric attribute.
const (
	StatusOK          = "ok"
	StatusFailed      = "failed"
	StatusError       = "error"
	StatusNotFound    = "not_found"
	StatusUnsupported = "unsupported"
)

// BindingLookup finds the bindings for a letter.
type BindingLookup interface {
	ForLetter(letter string) ([]*store.Binding, error)
}

// PluginLookup finds a plugin by name.
type PluginLookup interface {
	Get(name string) (*Plugin, error)
}

// Runner executes a plugin request.
type Runner interface {
	Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error)
}

// Result is the outcome of one binding for a dispatched letter.
type Result struct {
	BindingID string
	Plugin    string
	Action    string
	Status    string
	Response  *Response
	Err       error
}

// Dispatcher sends letters to the plugin actions bound to them.
type Dispatcher struct {
	bindings BindingLookup
	plugins  PluginLookup
	runner   Runner
	logger   *slog.Logger
	metrics  *observe.Metrics
}

// NewDispatcher creates a Dispatcher. A nil logger uses slog.Default() and
// nil metrics use observe.DefaultMetrics().
func NewDispatcher(bindings BindingLookup, plugins PluginLookup, runner Runner, logger *slog.Logger, metrics *observe.Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Dispatcher{
		bindings: bindings,
		plugins:  plugins,
		runner:   runner,
		logger:   logger,
		metrics:  metrics,
	}
}

// Dispatch runs every enabled binding for letter, one after another in
// binding order. A failing binding does not stop the rest.
func (d *Dispatcher) Dispatch(ctx context.Context, letter string) ([]Result, error) {
	bindings, err := d.bindings.ForLetter(letter)
	if err != nil {
		return nil, fmt.Errorf("bindings for %s: %w", letter, err)
	}

	results := make([]Result, 0, len(bindings))
	for _, b := range bindings {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		r := d.run(ctx, letter, b)
		d.metrics.RecordDispatch(ctx, r.Plugin, r.Status)
		if r.Err != nil {
			d.logger.Warn("plugin dispatch failed",
				"letter", letter, "plugin", r.Plugin, "action", r.Action, "status", r.Status, "err", r.Err)
		} else {
			d.logger.Debug("plugin dispatched", "letter", letter, "plugin", r.Plugin, "action", r.Action)
		}
		results = append(results, r)
	}
	return results, nil
}

func (d *Dispatcher) run(ctx context.Context, letter string, b *store.Binding) Result {
	r := Result{BindingID: b.ID, Plugin: b.PluginName, Action: b.ActionName}

	p, err := d.plugins.Get(b.PluginName)
	if err != nil {
		r.Status = StatusNotFound
		r.Err = err
		return r
	}
	if !p.Manifest.Supports(b.ActionName) {
		r.Status = StatusUnsupported
		r.Err = fmt.Errorf("plugin %s has no action %q", b.PluginName, b.ActionName)
		return r
	}

	resp, err := d.runner.Execute(ctx, p, &Request{
		Action: b.ActionName,
		Letter: letter,
		Config: b.Config,
	})
	if err != nil {
		r.Status = StatusError
		r.Err = err
		return r
	}

	r.Response = resp
	if !resp.Success {
		r.Status = StatusFailed
		r.Err = errors.New(resp.Error)
		return r
	}
	r.Status = StatusOK
	return r
}
