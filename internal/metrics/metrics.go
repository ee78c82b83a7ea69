package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_requests_latency_seconds",
			Help:    "Latency of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	// intake
	EventsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betsave_events_ingested_total",
			Help: "Partner events admitted at intake, by result.",
		},
		[]string{"result"}, // RECEIVED|SKIPPED|FAILED
	)
	AuthRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betsave_auth_rejected_total",
			Help: "Rejected partner calls, by code.",
		},
		[]string{"code"},
	)

	// processing
	EventsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betsave_events_processed_total",
			Help: "Event processor outcomes.",
		},
		[]string{"status"}, // PROCESSED|FAILED
	)
	SavingsCredited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "betsave_savings_credited_minor_total",
			Help: "Sum of savings credited to wallets, in minor units.",
		},
	)
	LedgerPostings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betsave_ledger_postings_total",
			Help: "Ledger poster calls, by result.",
		},
		[]string{"result"}, // posted|duplicate|error
	)

	// webhooks
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betsave_webhook_deliveries_total",
			Help: "Webhook delivery attempts, by result.",
		},
		[]string{"result"}, // delivered|skipped|error|exhausted
	)

	// queue
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betsave_jobs_total",
			Help: "Jobs handled by worker pools.",
		},
		[]string{"queue", "result"}, // done|retry|dead
	)
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "betsave_queue_depth",
			Help: "Pending plus running jobs per queue.",
		},
		[]string{"queue"},
	)
	SweptEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "betsave_swept_events_total",
			Help: "Events re-armed by the sweeper.",
		},
		[]string{"from"}, // RECEIVED|PROCESSING
	)
)

// /metrics handler
var Handler = promhttp.Handler

var once sync.Once

// Init registers the collectors with the default registry. Safe to call twice.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestsTotal, RequestLatency,
			EventsIngested, AuthRejected,
			EventsProcessed, SavingsCredited, LedgerPostings,
			WebhookDeliveries,
			JobsTotal, QueueDepth, SweptEvents,
		)
	})
}
