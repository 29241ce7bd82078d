package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifications_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	// DispatchTotal counts terminal email dispatch outcomes.
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatch_total",
			Help: "Number of email dispatch attempts by terminal status",
		},
		[]string{"status"},
	)

	// ChangeEventsPublished counts row change events written to the topic.
	ChangeEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_change_events_published_total",
			Help: "Number of row change events published",
		},
		[]string{"type"},
	)

	// FeedEventsConsumed counts live feed events delivered to sessions.
	FeedEventsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_feed_events_consumed_total",
			Help: "Number of live feed events consumed",
		},
		[]string{"type"},
	)
)

func Init() {
	prometheus.MustRegister(
		HTTPRequests,
		RequestDuration,
		DispatchTotal,
		ChangeEventsPublished,
		FeedEventsConsumed,
	)
}
