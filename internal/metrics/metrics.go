// ABOUTME: Prometheus metrics for capture, playback, sync and service calls
// ABOUTME: Registers collectors on a caller-supplied registry and serves /metrics
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for greetcast
type Metrics struct {
	registry *prometheus.Registry

	// Capture metrics
	FramesCaptured prometheus.Counter
	FramesDropped  prometheus.Counter

	// Playback metrics
	BuffersScheduled prometheus.Counter
	ScheduledSeconds prometheus.Histogram
	StopAllCalls     prometheus.Counter
	VoicesStopped    prometheus.Counter

	// Sync metrics
	SyncTransitions *prometheus.CounterVec

	// Service metrics
	ServiceRequests        *prometheus.CounterVec
	ServiceRequestDuration *prometheus.HistogramVec
}

// New creates and registers all metrics on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FramesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "greetcast_capture_frames_total",
			Help: "Total number of microphone frames captured",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "greetcast_capture_frames_dropped_total",
			Help: "Total number of captured frames not sent because the queue was full",
		}),

		BuffersScheduled: factory.NewCounter(prometheus.CounterOpts{
			Name: "greetcast_playback_buffers_scheduled_total",
			Help: "Total number of audio buffers scheduled for playback",
		}),
		ScheduledSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "greetcast_playback_buffer_duration_seconds",
			Help:    "Duration of scheduled audio buffers",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		StopAllCalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "greetcast_playback_stop_all_total",
			Help: "Total number of stop-all requests",
		}),
		VoicesStopped: factory.NewCounter(prometheus.CounterOpts{
			Name: "greetcast_playback_voices_stopped_total",
			Help: "Total number of active voices halted by stop-all",
		}),

		SyncTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "greetcast_sync_transitions_total",
			Help: "Total number of sync playback phase changes",
		}, []string{"phase"}),

		ServiceRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "greetcast_service_requests_total",
			Help: "Total number of generation service calls",
		}, []string{"op", "result"}),
		ServiceRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "greetcast_service_request_duration_seconds",
			Help:    "Duration of generation service calls",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7 minutes
		}, []string{"op"}),
	}
}

// RecordFrame increments the captured frames counter
func (m *Metrics) RecordFrame(frame []float32) {
	m.FramesCaptured.Inc()
}

// RecordDrop increments the dropped frames counter
func (m *Metrics) RecordDrop() {
	m.FramesDropped.Inc()
}

// RecordScheduled counts a scheduled buffer and its length
func (m *Metrics) RecordScheduled(d time.Duration) {
	m.BuffersScheduled.Inc()
	m.ScheduledSeconds.Observe(d.Seconds())
}

// RecordStopAll counts a stop-all and the voices it halted
func (m *Metrics) RecordStopAll(stopped int) {
	m.StopAllCalls.Inc()
	m.VoicesStopped.Add(float64(stopped))
}

// RecordPhase counts a sync phase change
func (m *Metrics) RecordPhase(phase string) {
	m.SyncTransitions.WithLabelValues(phase).Inc()
}

// ObserveService records one service call
func (m *Metrics) ObserveService(op string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ServiceRequests.WithLabelValues(op, result).Inc()
	m.ServiceRequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on bind until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, bind string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              bind,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listening", slog.String("bind", bind))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
