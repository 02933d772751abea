package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Gateway metrics
	GatewayConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mmrt_gateway_connections",
			Help: "Number of open realtime connections",
		},
	)

	GatewayRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mmrt_gateway_rooms",
			Help: "Number of rooms with at least one member",
		},
	)

	GatewayDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmrt_gateway_deliveries_total",
			Help: "Frames queued to connections by event name",
		},
		[]string{"event"},
	)

	GatewayDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmrt_gateway_dropped_total",
			Help: "Frames dropped before reaching a connection by reason",
		},
		[]string{"reason"},
	)

	GatewayControlMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmrt_gateway_control_messages_total",
			Help: "Inbound client control messages by type and result",
		},
		[]string{"type", "result"},
	)

	// Bus metrics
	BusMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmrt_bus_messages_total",
			Help: "Broker messages received by channel",
		},
		[]string{"channel"},
	)

	BusMessagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmrt_bus_messages_dropped_total",
			Help: "Broker messages dropped by channel and reason",
		},
		[]string{"channel", "reason"},
	)

	BusState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mmrt_bus_state",
			Help: "Bridge state (0 = idle, 1 = connected, 2 = reconnecting, 3 = failed, 4 = closed)",
		},
	)

	BusReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmrt_bus_reconnect_attempts_total",
			Help: "Bridge reconnect attempts by result",
		},
		[]string{"result"},
	)

	PublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmrt_publish_total",
			Help: "Events published to the broker by channel and result",
		},
		[]string{"channel", "result"},
	)

	// Job metrics
	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmrt_job_runs_total",
			Help: "Scheduled job runs by job and result",
		},
		[]string{"job", "result"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mmrt_job_duration_seconds",
			Help:    "Scheduled job run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	ConflictTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmrt_conflict_transitions_total",
			Help: "Task conflict flag transitions by direction",
		},
		[]string{"direction"},
	)

	DigestEmails = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmrt_digest_emails_total",
			Help: "Critical notification digest emails by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(GatewayConnections)
	prometheus.MustRegister(GatewayRooms)
	prometheus.MustRegister(GatewayDeliveries)
	prometheus.MustRegister(GatewayDropped)
	prometheus.MustRegister(GatewayControlMessages)
	prometheus.MustRegister(BusMessages)
	prometheus.MustRegister(BusMessagesDropped)
	prometheus.MustRegister(BusState)
	prometheus.MustRegister(BusReconnects)
	prometheus.MustRegister(PublishTotal)
	prometheus.MustRegister(JobRuns)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(ConflictTransitions)
	prometheus.MustRegister(DigestEmails)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
