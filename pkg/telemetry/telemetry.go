package telemetry

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Process-wide metrics. Registered once via promauto on the default
// registry; /metrics is served by promhttp in the app.
var (
	AppendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mesgd_appends_total",
		Help: "Message appends by outcome.",
	}, []string{"outcome"})

	FanoutDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mesgd_fanout_delivered_total",
		Help: "Messages delivered into subscriber queues.",
	})

	FanoutDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mesgd_fanout_dropped_total",
		Help: "Messages evicted from saturated subscriber queues.",
	})

	SubscriberGaps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mesgd_subscriber_gaps_total",
		Help: "Times a subscriber was flagged as gapped.",
	})

	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mesgd_active_subscriptions",
		Help: "Currently live subscriptions.",
	})

	StatusesPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mesgd_statuses_purged_total",
		Help: "Expired status posts removed by the sweeper.",
	})

	SweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mesgd_sweep_runs_total",
		Help: "Completed expiry sweep runs.",
	})

	PebbleWALBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mesgd_pebble_wal_bytes",
		Help: "Current pebble WAL size in bytes.",
	})

	PebbleMemtableBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mesgd_pebble_memtable_bytes",
		Help: "Current pebble memtable usage in bytes.",
	})

	PebbleCompactions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mesgd_pebble_compactions",
		Help: "Cumulative pebble compaction count.",
	})

	PebbleDiskUsageBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mesgd_pebble_disk_usage_bytes",
		Help: "On-disk footprint of the pebble store.",
	})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mesgd_http_request_duration_seconds",
		Help:    "HTTP request latency by method and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
)

// Middleware records request durations. Route labels are omitted to keep
// cardinality flat.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)
		httpDuration.WithLabelValues(r.Method, strconv.Itoa(srw.status)).
			Observe(time.Since(start).Seconds())
	})
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer so websocket upgrades
// keep working behind the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := r.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}
