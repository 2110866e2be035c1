package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	httpDurationHistogram   *prometheus.HistogramVec
	transferTransitionCount *prometheus.CounterVec
	claimCounter            *prometheus.CounterVec
	reapedCounter           prometheus.Counter
	balanceJobCounter       *prometheus.CounterVec
	balanceJobsInFlight     prometheus.Gauge
	notificationCounter     *prometheus.CounterVec
	queueDepthGauge         *prometheus.GaugeVec
	idempotencyCounter      *prometheus.CounterVec
	workerRunCounter        *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		transferTransitionCount = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_transitions_total",
			Help: "Transfer request state transitions",
		}, []string{"from", "to"})

		claimCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_claims_total",
			Help: "Device claim attempts by outcome",
		}, []string{"outcome"})

		reapedCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transfer_reaped_total",
			Help: "Processing transfers failed by the stale job reaper",
		})

		balanceJobCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "balance_jobs_total",
			Help: "Balance inquiry jobs by final outcome",
		}, []string{"outcome"})

		balanceJobsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "balance_jobs_in_flight",
			Help: "Balance inquiry jobs currently held in memory",
		})

		notificationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Outcome notifications by kind and delivery result",
		}, []string{"kind", "result"})

		queueDepthGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "transfer_queue_depth",
			Help: "Transfer requests per status",
		}, []string{"status"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			transferTransitionCount,
			claimCounter,
			reapedCounter,
			balanceJobCounter,
			balanceJobsInFlight,
			notificationCounter,
			queueDepthGauge,
			idempotencyCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementTransferTransition(from, to string) {
	if transferTransitionCount == nil {
		return
	}
	transferTransitionCount.WithLabelValues(from, to).Inc()
}

func AddTransferTransitions(from, to string, n int) {
	if transferTransitionCount == nil || n <= 0 {
		return
	}
	transferTransitionCount.WithLabelValues(from, to).Add(float64(n))
}

func IncrementClaim(outcome string) {
	if claimCounter == nil {
		return
	}
	claimCounter.WithLabelValues(outcome).Inc()
}

func AddReaped(n int) {
	if reapedCounter == nil || n <= 0 {
		return
	}
	reapedCounter.Add(float64(n))
}

func IncrementBalanceJob(outcome string) {
	if balanceJobCounter == nil {
		return
	}
	balanceJobCounter.WithLabelValues(outcome).Inc()
}

func SetBalanceJobsInFlight(n int) {
	if balanceJobsInFlight == nil {
		return
	}
	balanceJobsInFlight.Set(float64(n))
}

func IncrementNotification(kind, result string) {
	if notificationCounter == nil {
		return
	}
	notificationCounter.WithLabelValues(kind, result).Inc()
}

func SetQueueDepth(status string, depth int64) {
	if queueDepthGauge == nil {
		return
	}
	queueDepthGauge.WithLabelValues(status).Set(float64(depth))
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
