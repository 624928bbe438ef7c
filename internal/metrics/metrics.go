// Package metrics defines the Prometheus collectors exported by podpulse.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "podpulse"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)
)

// Quota metrics
var (
	QuotaDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_decisions_total",
			Help:      "Metered action decisions by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	QuotaReleasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_releases_total",
			Help:      "Consumed units returned after a failed operation or an untrack",
		},
		[]string{"action"},
	)

	CounterResetRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_reset_runs_total",
			Help:      "Periodic counter reset triggers by result",
		},
		[]string{"result"},
	)

	CounterResetAccounts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_reset_accounts_total",
			Help:      "Accounts whose monthly counters were zeroed",
		},
	)
)

// Billing metrics
var (
	BillingWebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "billing_webhook_events_total",
			Help:      "Stripe webhook events by type and result",
		},
		[]string{"type", "result"},
	)

	PlanChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_changes_total",
			Help:      "Plan transitions applied from billing events",
		},
		[]string{"plan"},
	)
)

// Decision outcomes
const (
	OutcomeAllowed     = "allowed"
	OutcomeDenied      = "denied"
	OutcomeUnavailable = "unavailable"
)
