package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce                 sync.Once
	httpDurationHistogram        *prometheus.HistogramVec
	ledgerOpCounter              *prometheus.CounterVec
	conservationViolationCounter *prometheus.CounterVec
	idempotencyCounter           *prometheus.CounterVec
	rollupCounter                *prometheus.CounterVec
	workerRunCounter             *prometheus.CounterVec
	notificationCounter          *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		ledgerOpCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operation outcomes (transfer, exchange, purchase, rate, adjust)",
		}, []string{"op", "result"})

		conservationViolationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_conservation_violations_total",
			Help: "Number of times the integrity sweep found the ledger out of balance",
		}, []string{"kind"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		rollupCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rating_rollup_runs_total",
			Help: "Daily rating rollup outcomes",
		}, []string{"result"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		notificationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Account notification publish outcomes",
		}, []string{"result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			ledgerOpCounter,
			conservationViolationCounter,
			idempotencyCounter,
			rollupCounter,
			workerRunCounter,
			notificationCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementLedgerOp(op, result string) {
	if ledgerOpCounter == nil {
		return
	}
	ledgerOpCounter.WithLabelValues(op, result).Inc()
}

func IncrementConservationViolation(kind string) {
	if conservationViolationCounter == nil {
		return
	}
	conservationViolationCounter.WithLabelValues(kind).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementRollup(result string) {
	if rollupCounter == nil {
		return
	}
	rollupCounter.WithLabelValues(result).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}

func IncrementNotification(result string) {
	if notificationCounter == nil {
		return
	}
	notificationCounter.WithLabelValues(result).Inc()
}
