package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	NotificationsReceived prometheus.Counter
	NotificationsSkipped  prometheus.Counter
	HistoryEvents         prometheus.Counter
	CandidatesProcessed   prometheus.Counter
	RuleMatches           prometheus.Counter
	ColdEmailsBlocked     prometheus.Counter
	SendersBlocked        prometheus.Counter
	PipelineFailures      prometheus.Counter
	FetchFailures         prometheus.Counter
	ProcessingTime        prometheus.Histogram
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		NotificationsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_slash_notifications_received_total",
			Help: "Total number of webhook notifications received",
		}),
		NotificationsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_slash_notifications_skipped_total",
			Help: "Notifications acknowledged without processing (gating short-circuit)",
		}),
		HistoryEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_slash_history_events_total",
			Help: "Total number of change events fetched from the provider",
		}),
		CandidatesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_slash_candidates_processed_total",
			Help: "Total number of candidate messages run through the pipeline",
		}),
		RuleMatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_slash_rule_matches_total",
			Help: "Total number of messages that matched an automation rule",
		}),
		ColdEmailsBlocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_slash_cold_emails_blocked_total",
			Help: "Total number of messages blocked as cold email",
		}),
		SendersBlocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_slash_senders_blocked_total",
			Help: "Total number of messages archived from unsubscribed senders",
		}),
		PipelineFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_slash_pipeline_failures_total",
			Help: "Candidates dropped by the pipeline; not retried unless their change event recurs",
		}),
		FetchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_slash_fetch_failures_total",
			Help: "History fetches that failed before any candidate was processed",
		}),
		ProcessingTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "inbox_slash_notification_duration_seconds",
			Help:    "Time spent handling one webhook notification",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
