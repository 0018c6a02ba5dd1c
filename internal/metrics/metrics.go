package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns a private prometheus registry so tests can create as many
// as they like without colliding on the default one.
type Registry struct {
	reg              *prometheus.Registry
	WebhookRequests  *prometheus.CounterVec
	ReconcileOutcome *prometheus.CounterVec
	SideEffects      *prometheus.CounterVec
	SideEffectSec    *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	webhook := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_requests_total",
		Help: "Webhook deliveries by response status.",
	}, []string{"status"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_outcomes_total",
		Help: "Reconciled events by type and outcome.",
	}, []string{"event_type", "outcome"})
	effects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "side_effects_total",
		Help: "Side-effect runs by action and result.",
	}, []string{"action", "result"})
	effectLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "side_effect_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	r.MustRegister(webhook, outcomes, effects, effectLatency)
	return &Registry{
		reg:              r,
		WebhookRequests:  webhook,
		ReconcileOutcome: outcomes,
		SideEffects:      effects,
		SideEffectSec:    effectLatency,
	}
}

func (r *Registry) ObserveOutcome(eventType, outcome string) {
	r.ReconcileOutcome.WithLabelValues(eventType, outcome).Inc()
}

func (r *Registry) ObserveWebhook(status int) {
	r.WebhookRequests.WithLabelValues(http.StatusText(status)).Inc()
}

// ObserveSideEffect records one action run; err == nil counts as success.
func (r *Registry) ObserveSideEffect(action string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.SideEffects.WithLabelValues(action, result).Inc()
	r.SideEffectSec.WithLabelValues(action).Observe(d.Seconds())
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
