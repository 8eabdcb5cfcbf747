package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Permission check metrics
	PermissionChecksTotal   *prometheus.CounterVec
	PermissionCheckDuration prometheus.Histogram

	// Permission cache metrics
	CacheHitsTotal          prometheus.Counter
	CacheMissesTotal        prometheus.Counter
	CacheInvalidationsTotal prometheus.Counter

	// Policy engine metrics
	PolicyEvaluationsTotal  *prometheus.CounterVec
	PolicyEnforcementsTotal *prometheus.CounterVec
	PolicyActionErrorsTotal *prometheus.CounterVec

	// GitHub API metrics
	GitHubRequestsTotal   *prometheus.CounterVec
	GitHubRequestDuration *prometheus.HistogramVec

	// Webhook metrics
	WebhookEventsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authright_permission_checks_total",
				Help: "Total number of permission checks by outcome",
			},
			[]string{"outcome"},
		),
		PermissionCheckDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "authright_permission_check_duration_seconds",
				Help:    "Permission check duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authright_permission_cache_hits_total",
				Help: "Total number of permission cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authright_permission_cache_misses_total",
				Help: "Total number of permission cache misses",
			},
		),
		CacheInvalidationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "authright_permission_cache_invalidations_total",
				Help: "Total number of per-user cache invalidations",
			},
		),
		PolicyEvaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authright_policy_evaluations_total",
				Help: "Total number of policy evaluations by result",
			},
			[]string{"result"},
		),
		PolicyEnforcementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authright_policy_enforcements_total",
				Help: "Total number of policy enforcement runs by severity",
			},
			[]string{"severity"},
		),
		PolicyActionErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authright_policy_action_errors_total",
				Help: "Total number of failed remediation actions by action type",
			},
			[]string{"action"},
		),
		GitHubRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authright_github_requests_total",
				Help: "Total number of GitHub API requests",
			},
			[]string{"operation", "status"},
		),
		GitHubRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authright_github_request_duration_seconds",
				Help:    "GitHub API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authright_webhook_events_total",
				Help: "Total number of received webhook events by type and status",
			},
			[]string{"event", "status"},
		),
	}

	registry.MustRegister(
		m.PermissionChecksTotal,
		m.PermissionCheckDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheInvalidationsTotal,
		m.PolicyEvaluationsTotal,
		m.PolicyEnforcementsTotal,
		m.PolicyActionErrorsTotal,
		m.GitHubRequestsTotal,
		m.GitHubRequestDuration,
		m.WebhookEventsTotal,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
