// Package metrics provides the Prometheus instrumentation of the PlomTTS service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "plomtts"

// Speech request outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeNoVoice      = "no_voice"
	OutcomeFailed       = "synthesis_failed"
	OutcomeUnknownEntry = "unknown_entry"
	OutcomeBadRequest   = "bad_request"
	OutcomeStoreFailed  = "store_failed"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	speechRequests   *prometheus.CounterVec
	synthesisSeconds prometheus.Histogram
	audioBytes       prometheus.Counter
	flowResults      *prometheus.CounterVec
	loadedEntries    prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		speechRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_requests_total",
			Help:      "Speech requests handled, by outcome.",
		}, []string{"outcome"}),
		synthesisSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_duration_seconds",
			Help:      "Time spent waiting for the PlomTTS server to synthesize speech.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
		audioBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Bytes of synthesized audio returned to callers.",
		}),
		flowResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_results_total",
			Help:      "Setup and options flow step results, by flow kind, result type and code.",
		}, []string{"kind", "type", "code"}),
		loadedEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loaded_entries",
			Help:      "Configuration entries currently set up.",
		}),
	}

	reg.MustRegister(m.speechRequests, m.synthesisSeconds, m.audioBytes, m.flowResults, m.loadedEntries)

	return m
}

// ObserveSpeech records one speech request. elapsed and size are only recorded
// for successful requests.
func (m *Metrics) ObserveSpeech(outcome string, elapsed time.Duration, size int) {
	if m == nil {
		return
	}

	m.speechRequests.WithLabelValues(outcome).Inc()

	if outcome == OutcomeSuccess {
		m.synthesisSeconds.Observe(elapsed.Seconds())
		m.audioBytes.Add(float64(size))
	}
}

// ObserveFlow records one flow step result. code is the form error or abort
// reason, empty when there is none.
func (m *Metrics) ObserveFlow(kind, resultType, code string) {
	if m == nil {
		return
	}

	m.flowResults.WithLabelValues(kind, resultType, code).Inc()
}

// SetLoadedEntries records the number of entries currently set up.
func (m *Metrics) SetLoadedEntries(n int) {
	if m == nil {
		return
	}

	m.loadedEntries.Set(float64(n))
}
