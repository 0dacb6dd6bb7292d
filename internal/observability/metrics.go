package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keycal",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "route", "status"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "keycal",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	storeOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keycal",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Store operations by name and outcome.",
	}, []string{"op", "outcome"})

	dragCommits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keycal",
		Subsystem: "drag",
		Name:      "commits_total",
		Help:      "Drag reschedules by outcome (confirmed, reverted, undone).",
	}, []string{"outcome"})

	subscriptionRefresh = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keycal",
		Subsystem: "subscriptions",
		Name:      "refresh_total",
		Help:      "Calendar subscription refreshes by outcome (updated, not_modified, failed).",
	}, []string{"subscription", "outcome"})

	subscriptionEvents = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "keycal",
		Subsystem: "subscriptions",
		Name:      "events",
		Help:      "Events imported by the last successful refresh.",
	}, []string{"subscription"})

	indicatorActual = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "keycal",
		Subsystem: "indicators",
		Name:      "week_actual",
		Help:      "Actual hours or count for the finished week, per user and category.",
	}, []string{"user", "category", "measurement"})

	indicatorGoal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "keycal",
		Subsystem: "indicators",
		Name:      "week_goal",
		Help:      "Goal hours or count, per user and category.",
	}, []string{"user", "category", "measurement"})

	rolloverTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "keycal",
		Subsystem: "indicators",
		Name:      "last_rollover_timestamp_seconds",
		Help:      "Unix timestamp of the most recent weekly rollover.",
	})
)

func init() {
	prometheus.MustRegister(
		requestsTotal,
		requestDuration,
		storeOps,
		dragCommits,
		subscriptionRefresh,
		subscriptionEvents,
		indicatorActual,
		indicatorGoal,
		rolloverTimestamp,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one served request. route is the mux pattern,
// not the raw path, to bound label cardinality.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordStoreOp counts a store call.
func RecordStoreOp(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	storeOps.WithLabelValues(op, outcome).Inc()
}

func RecordDragCommit(outcome string) {
	dragCommits.WithLabelValues(outcome).Inc()
}

func RecordSubscriptionRefresh(id, outcome string, events int) {
	subscriptionRefresh.WithLabelValues(id, outcome).Inc()
	if outcome == "updated" {
		subscriptionEvents.WithLabelValues(id).Set(float64(events))
	}
}

// RecordIndicatorWeek publishes one indicator's totals for a finished week.
func RecordIndicatorWeek(user, category, measurement string, actual, goal float64) {
	indicatorActual.WithLabelValues(user, category, measurement).Set(actual)
	indicatorGoal.WithLabelValues(user, category, measurement).Set(goal)
}

// RecordRollover updates the rollover watermark gauge.
func RecordRollover(ts time.Time) {
	if ts.IsZero() {
		return
	}
	rolloverTimestamp.Set(float64(ts.Unix()))
}
