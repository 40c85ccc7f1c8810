// Package observe provides application-wide observability primitives for
// earshot: OpenTelemetry metrics, tracing, and the SDK provider setup.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all earshot metrics.
const meterName = "github.com/earshot-dev/earshot"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// BrainDuration tracks dialogue backend latency.
	BrainDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis and playback latency.
	TTSDuration metric.Float64Histogram

	// TurnDuration tracks the whole capture-to-reply exchange.
	TurnDuration metric.Float64Histogram

	// --- Counters ---

	// WakeDetections counts wake-word activations.
	WakeDetections metric.Int64Counter

	// Utterances counts captured utterances. Use with attribute:
	//   attribute.String("mode", "standby"|"conversing")
	Utterances metric.Int64Counter

	// FalseStarts counts noise bursts discarded by the capture stage.
	FalseStarts metric.Int64Counter

	// CaptureTimeouts counts listening windows that expired in silence.
	CaptureTimeouts metric.Int64Counter

	// DrainedFrames counts microphone frames discarded as echo.
	DrainedFrames metric.Int64Counter

	// ProviderErrors counts collaborator failures. Use with attribute:
	//   attribute.String("kind", "stt"|"brain"|"tts"|"wake")
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// Conversing is 1 while a conversation is open, 0 in standby.
	Conversing metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.STTDuration, err = m.Float64Histogram("earshot.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BrainDuration, err = m.Float64Histogram("earshot.brain.duration",
		metric.WithDescription("Latency of the dialogue backend."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("earshot.tts.duration",
		metric.WithDescription("Latency of speech synthesis and playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("earshot.turn.duration",
		metric.WithDescription("End-to-end latency of one conversation turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.WakeDetections, err = m.Int64Counter("earshot.wake.detections",
		metric.WithDescription("Total wake-word activations."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("earshot.utterances",
		metric.WithDescription("Total captured utterances by conversation mode."),
	); err != nil {
		return nil, err
	}
	if met.FalseStarts, err = m.Int64Counter("earshot.capture.false_starts",
		metric.WithDescription("Noise bursts discarded by voice activity detection."),
	); err != nil {
		return nil, err
	}
	if met.CaptureTimeouts, err = m.Int64Counter("earshot.capture.timeouts",
		metric.WithDescription("Listening windows that expired in silence."),
	); err != nil {
		return nil, err
	}
	if met.DrainedFrames, err = m.Int64Counter("earshot.drain.frames",
		metric.WithDescription("Microphone frames discarded as playback echo."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("earshot.provider.errors",
		metric.WithDescription("Collaborator failures by kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.Conversing, err = m.Int64UpDownCounter("earshot.conversing",
		metric.WithDescription("1 while a conversation is open, 0 in standby."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// WithKind attributes a measurement with the collaborator kind
// ("stt", "brain", "tts", "wake").
func WithKind(kind string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("kind", kind))
}

// WithMode attributes a measurement with the conversation mode
// ("standby", "conversing").
func WithMode(mode string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("mode", mode))
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic(err)
		}
	})
	return defaultMetrics
}
