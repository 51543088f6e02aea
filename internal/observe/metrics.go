// Package observe provides OpenTelemetry metrics for the recognition pipeline.
//
// Metrics are recorded through the OpenTelemetry Metrics API. InitProvider
// installs a Prometheus exporter so they can be scraped from /metrics. Tests
// should use NewMetrics with their own MeterProvider.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/ayusman/vocalize"

// Frame results recorded on the frames counter.
const (
	ResultClassified = "classified"
	ResultNoHand     = "no_hand"
	ResultInvalid    = "invalid"
)

// Metrics holds the instruments used by the pipeline and the app.
type Metrics struct {
	// Frames counts processed frames. Attribute "result" is one of the
	// Result* constants.
	Frames metric.Int64Counter

	// Letters counts emitted letters. Attribute "letter".
	Letters metric.Int64Counter

	// ClassifyDuration tracks extraction plus classification time per frame.
	ClassifyDuration metric.Float64Histogram

	// HandPresent is 1 while a hand is visible.
	HandPresent metric.Int64UpDownCounter

	// Dispatches counts plugin invocations. Attributes "plugin", "status".
	Dispatches metric.Int64Counter
}

var classifyBuckets = []float64{
	0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01,
}

// NewMetrics creates the instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Frames, err = m.Int64Counter("vocalize.frames",
		metric.WithDescription("Landmark frames processed by result."),
	); err != nil {
		return nil, err
	}
	if met.Letters, err = m.Int64Counter("vocalize.letters",
		metric.WithDescription("Letters emitted by the stability tracker."),
	); err != nil {
		return nil, err
	}
	if met.ClassifyDuration, err = m.Float64Histogram("vocalize.classify.duration",
		metric.WithDescription("Feature extraction and classification latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(classifyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HandPresent, err = m.Int64UpDownCounter("vocalize.hand_present",
		metric.WithDescription("1 while a hand is in view."),
	); err != nil {
		return nil, err
	}
	if met.Dispatches, err = m.Int64Counter("vocalize.plugin.dispatches",
		metric.WithDescription("Letter deliveries to plugins by plugin and status."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a package-level Metrics built on the global
// MeterProvider. It panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordFrame increments the frames counter for a result.
func (m *Metrics) RecordFrame(ctx context.Context, result string) {
	m.Frames.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordLetter increments the letters counter.
func (m *Metrics) RecordLetter(ctx context.Context, letter string) {
	m.Letters.Add(ctx, 1, metric.WithAttributes(attribute.String("letter", letter)))
}

// RecordPresence moves the hand-present gauge on a visibility transition.
func (m *Metrics) RecordPresence(ctx context.Context, present bool) {
	if present {
		m.HandPresent.Add(ctx, 1)
	} else {
		m.HandPresent.Add(ctx, -1)
	}
}

// RecordDispatch increments the plugin dispatch counter.
func (m *Metrics) RecordDispatch(ctx context.Context, plugin, status string) {
	m.Dispatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("plugin", plugin),
		attribute.String("status", status),
	))
}
