// Package metrics exposes authentication counters to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"authflow/internal/domain/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

const namespace = "authflow"

// Collector holds every metric the service records, registered on a private registry.
type Collector struct {
	oauthStarted   *prometheus.CounterVec
	oauthExchanges *prometheus.CounterVec
	emailActions   *prometheus.CounterVec
	otpIssued      *prometheus.CounterVec
	otpEmailFailed prometheus.Counter
	sessionsIssued *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// Result exposes the registry for the scrape handler and the collector to its users.
type Result struct {
	fx.Out

	Registry    *prometheus.Registry
	Collector   *Collector
	AuthMetrics service.AuthMetrics
}

// New creates a registry with runtime collectors and the service metrics.
func New() Result {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	collector := NewCollector(reg)

	return Result{Registry: reg, Collector: collector, AuthMetrics: collector}
}

// NewCollector registers the service metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		oauthStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oauth_authorizations_started_total",
			Help:      "Authorization URLs issued, by provider",
		}, []string{"provider"}),
		oauthExchanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oauth_exchanges_total",
			Help:      "Processed OAuth callbacks, by provider and outcome",
		}, []string{"provider", "outcome"}),
		emailActions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_auth_actions_total",
			Help:      "Email auth dispatches, by action and outcome",
		}, []string{"action", "outcome"}),
		otpIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_issued_total",
			Help:      "One-time codes issued, by type",
		}, []string{"type"}),
		otpEmailFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_email_failures_total",
			Help:      "One-time code emails that could not be delivered",
		}),
		sessionsIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_issued_total",
			Help:      "Sessions created, by sign-in method",
		}, []string{"method"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by method and route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (c *Collector) OAuthAuthorizationStarted(provider string) {
	c.oauthStarted.WithLabelValues(provider).Inc()
}

func (c *Collector) OAuthExchangeFinished(provider, outcome string) {
	c.oauthExchanges.WithLabelValues(provider, outcome).Inc()
}

func (c *Collector) EmailAuthAction(action, outcome string) {
	c.emailActions.WithLabelValues(action, outcome).Inc()
}

func (c *Collector) OTPIssued(otpType string) {
	c.otpIssued.WithLabelValues(otpType).Inc()
}

func (c *Collector) OTPEmailFailed() {
	c.otpEmailFailed.Inc()
}

func (c *Collector) SessionIssued(method string) {
	c.sessionsIssued.WithLabelValues(method).Inc()
}

// ObserveHTTP records one served request. route is the matched route pattern, not the raw path.
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
