package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes as counted by the router loop.
const (
	OutcomeDelivered = "delivered"
	OutcomeExited    = "exited"
	OutcomeMalformed = "malformed"
)

var (
	registerOnce sync.Once

	requestsRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boundary",
			Subsystem: "router",
			Name:      "requests_total",
			Help:      "Inbound requests by routing outcome.",
		},
		[]string{"outcome"},
	)
	repliesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "boundary",
			Subsystem: "router",
			Name:      "replies_total",
			Help:      "Outbound replies by outcome.",
		},
		[]string{"outcome"},
	)
	announcesPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "boundary",
			Subsystem: "router",
			Name:      "announces_total",
			Help:      "Registry announcements published.",
		},
	)
	liveChannels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "boundary",
			Subsystem: "router",
			Name:      "channels",
			Help:      "Currently registered channels.",
		},
	)
	requestLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "boundary",
			Subsystem: "router",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent classifying and dispatching one inbound request.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			requestsRouted,
			repliesSent,
			announcesPublished,
			liveChannels,
			requestLatency,
		)
	})
}

func RecordRequest(outcome string, duration time.Duration) {
	RegisterMetrics()
	requestsRouted.WithLabelValues(outcome).Inc()
	requestLatency.Observe(duration.Seconds())
}

func RecordReply(outcome string) {
	RegisterMetrics()
	repliesSent.WithLabelValues(outcome).Inc()
}

func RecordAnnounce(channelCount int) {
	RegisterMetrics()
	announcesPublished.Inc()
	liveChannels.Set(float64(channelCount))
}
