package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

var (
	// Dispatch metrics, keyed by notification kind (plain, autofix, common_fix)
	DispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autofix_notifier_dispatch_total",
		Help: "Total number of notification dispatches grouped by kind and outcome",
	}, []string{"kind", "outcome"})
	DispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autofix_notifier_dispatch_duration_seconds",
		Help:    "Time spent dispatching a notification, including delivery",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// Mail transport metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autofix_notifier_mail_send_success_total",
		Help: "Total number of successful mail deliveries",
	}, []string{"transport"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autofix_notifier_mail_send_failure_total",
		Help: "Total number of failed mail deliveries",
	}, []string{"transport"})
	TemplateRenderErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autofix_notifier_template_render_errors_total",
		Help: "Total number of template lookup or rendering failures",
	}, []string{"template"})

	// Audit sink metrics
	AuditSinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autofix_notifier_audit_sink_errors_total",
		Help: "Total number of audit events a sink failed to write, by error type",
	}, []string{"sink", "error_type"})
	AuditEventsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autofix_notifier_audit_events_written_total",
		Help: "Total number of audit events written per sink",
	}, []string{"sink"})

	AuditEventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autofix_notifier_audit_events_dropped_total",
		Help: "Total number of audit events dropped before reaching a sink, by reason",
	}, []string{"sink", "reason"})
	AuditCircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "autofix_notifier_audit_circuit_breaker_state",
		Help: "Circuit breaker state per audit sink (0=closed, 1=open, 2=half-open)",
	}, []string{"sink"})
	AuditCircuitBreakerRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autofix_notifier_audit_circuit_breaker_rejections_total",
		Help: "Total number of audit writes rejected by an open circuit breaker",
	}, []string{"sink"})

	// API metrics
	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autofix_notifier_api_requests_total",
		Help: "Total number of notification API requests by route and status code",
	}, []string{"route", "code"})
	RateLimitRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autofix_notifier_rate_limit_rejected_total",
		Help: "Total number of API requests rejected by the rate limiter",
	}, []string{"route"})
)

func init() {
	prometheus.MustRegister(DispatchTotal)
	prometheus.MustRegister(DispatchDuration)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(TemplateRenderErrors)
	prometheus.MustRegister(AuditSinkErrors)
	prometheus.MustRegister(AuditEventsWritten)
	prometheus.MustRegister(AuditEventsDropped)
	prometheus.MustRegister(AuditCircuitBreakerState)
	prometheus.MustRegister(AuditCircuitBreakerRejections)
	prometheus.MustRegister(APIRequests)
	prometheus.MustRegister(RateLimitRejected)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
