package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talk_realtime_connect_attempts_total",
		Help: "Realtime connect attempts by result",
	}, []string{"result"})

	eventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talk_realtime_events_received_total",
		Help: "Inbound realtime events by type",
	}, []string{"type"})

	eventsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talk_realtime_events_sent_total",
		Help: "Outbound realtime events by type",
	}, []string{"type"})

	sendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talk_realtime_send_errors_total",
		Help: "Outbound events that failed to send",
	})

	protocolErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talk_realtime_protocol_errors_total",
		Help: "Inbound messages dropped as malformed",
	})

	apiErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talk_realtime_api_errors_total",
		Help: "Error events reported by the server",
	}, []string{"code"})

	chunksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talk_audio_chunks_received_total",
		Help: "Audio deltas queued for playback",
	})

	chunksPlayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talk_audio_chunks_played_total",
		Help: "Audio chunks written to the playback stream",
	})

	chunksDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talk_audio_chunks_dropped_total",
		Help: "Audio chunks discarded before playback by reason",
	}, []string{"reason"})

	conversionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talk_audio_conversion_errors_total",
		Help: "Chunks dropped because conversion failed",
	})

	sinkErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talk_audio_sink_errors_total",
		Help: "Chunks dropped because the playback write failed",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "talk_audio_queue_depth",
		Help: "Chunks waiting for conversion",
	})

	conversionSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "talk_audio_conversion_seconds",
		Help:    "Per-chunk conversion latency",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	})
)
