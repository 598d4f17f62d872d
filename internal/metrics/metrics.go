package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crowdfund_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_webhooks_total",
			Help: "Provider webhook deliveries by kind and reconciliation outcome",
		},
		[]string{"kind", "outcome"},
	)

	AmountMismatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_amount_mismatch_total",
			Help: "Webhook amounts that disagree with the provider settled amount",
		},
		[]string{"kind"},
	)

	CashoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_cashouts_total",
			Help: "Cash-out requests by outcome",
		},
		[]string{"outcome"},
	)

	CashoutLegFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_cashout_leg_failures_total",
			Help: "Failed cash-out transfer legs",
		},
		[]string{"leg", "reason"},
	)

	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_provider_calls_total",
			Help: "Outbound payment provider calls",
		},
		[]string{"operation", "outcome"},
	)

	NotificationTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crowdfund_notification_tasks_total",
			Help: "Best-effort side-channel tasks by outcome",
		},
		[]string{"task", "outcome"},
	)

	EmailQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crowdfund_email_queue_length",
			Help: "Current length of email queue",
		},
	)

	CampaignsCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crowdfund_campaigns_completed_total",
			Help: "Campaigns completed by the end-date sweep",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordWebhook(kind, outcome string) {
	WebhooksTotal.WithLabelValues(kind, outcome).Inc()
}

func RecordAmountMismatch(kind string) {
	AmountMismatchTotal.WithLabelValues(kind).Inc()
}

func RecordCashout(outcome string) {
	CashoutsTotal.WithLabelValues(outcome).Inc()
}

func RecordCashoutLegFailure(leg, reason string) {
	CashoutLegFailuresTotal.WithLabelValues(leg, reason).Inc()
}

func RecordProviderCall(operation, outcome string) {
	ProviderCallsTotal.WithLabelValues(operation, outcome).Inc()
}

func RecordNotificationTask(task, outcome string) {
	NotificationTasksTotal.WithLabelValues(task, outcome).Inc()
}

func RecordCampaignsCompleted(n int64) {
	CampaignsCompletedTotal.Add(float64(n))
}
