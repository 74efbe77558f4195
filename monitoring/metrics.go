package monitoring

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var (
	meetupOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetup_operations_total",
			Help: "Lifecycle operations by outcome",
		},
		[]string{"operation", "status"},
	)

	joinResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetup_joins_total",
			Help: "Join attempts by result",
		},
		[]string{"result"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Tickets created on first-time joins",
		},
	)

	discoveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discovery_duration_seconds",
			Help:    "Duration of discovery queries",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"endpoint"},
	)

	notificationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_publish_failures_total",
			Help: "Notification dispatches that failed after the lifecycle transition committed",
		},
	)

	activeMeetups = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_meetups_total",
			Help: "Meetups currently mirrored as active in Redis",
		},
	)
)

func TrackMeetupOperation(operation, status string) {
	meetupOperations.WithLabelValues(operation, status).Inc()
}

func TrackJoin(result string) {
	joinResults.WithLabelValues(result).Inc()
}

func TicketIssued() {
	ticketsIssued.Inc()
}

func TrackDiscovery(endpoint string, duration time.Duration) {
	discoveryDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func NotificationFailure() {
	notificationFailures.Inc()
}

// Monitor keeps the active-meetup gauge in sync with the Redis mirror.
type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}
	go monitor.collectMetrics()
	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()
		count, err := m.redis.SCard(ctx, "active_meetups").Result()
		if err != nil {
			continue
		}
		activeMeetups.Set(float64(count))
	}
}

// StartMetricsServer exposes /metrics on its own port.
func StartMetricsServer(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()
}
