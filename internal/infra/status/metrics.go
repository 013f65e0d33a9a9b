package status

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"voicetype/internal/domain"
)

const namespace = "voicetype"

// Metrics implements application.Observer on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	state          *prometheus.GaugeVec
	pending        prometheus.Gauge
	segments       *prometheus.CounterVec
	audioSeconds   prometheus.Histogram
	requestSeconds *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "1 for the current recording state, 0 otherwise",
		}, []string{"state"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_segments",
			Help:      "Recordings stopped but not yet delivered",
		}),
		segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_total",
			Help:      "Finished recordings by outcome",
		}, []string{"outcome"}),
		audioSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "segment_audio_seconds",
			Help:      "Length of recordings sent for transcription",
			Buckets:   []float64{.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		requestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_request_seconds",
			Help:      "Duration of transcription requests",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.state,
		m.pending,
		m.segments,
		m.audioSeconds,
		m.requestSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.StateChanged(domain.StateIdle)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) StateChanged(state domain.RecordingState) {
	for _, s := range []domain.RecordingState{domain.StateIdle, domain.StateRecording, domain.StateTranscribing} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(s.String()).Set(v)
	}
}

func (m *Metrics) SegmentFinished(outcome string, audio time.Duration) {
	m.segments.WithLabelValues(outcome).Inc()
	if audio > 0 {
		m.audioSeconds.Observe(audio.Seconds())
	}
}

func (m *Metrics) TranscriptionFinished(elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.requestSeconds.WithLabelValues(status).Observe(elapsed.Seconds())
}

func (m *Metrics) PendingChanged(pending int) {
	m.pending.Set(float64(pending))
}
