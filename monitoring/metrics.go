package monitoring

import "github.com/prometheus/client_golang/prometheus"

var (
	HttpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	HttpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_connections",
			Help: "Number of in-flight HTTP requests",
		},
	)

	RelationshipOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relationship_operations_total",
			Help: "Follow, unfollow, block and unblock attempts by outcome",
		},
		[]string{"op", "outcome"},
	)

	WebsocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Number of live websocket connections",
		},
	)

	PushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_messages_total",
			Help: "Push notifications written to live connections",
		},
		[]string{"outcome"},
	)
)

// Register adds every collector of this package to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		HttpRequestsTotal,
		HttpRequestDuration,
		ActiveConnections,
		RelationshipOperationsTotal,
		WebsocketConnections,
		PushesTotal,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RelationshipOperation records the outcome of one relationship operation.
func RelationshipOperation(op, outcome string) {
	RelationshipOperationsTotal.WithLabelValues(op, outcome).Inc()
}
