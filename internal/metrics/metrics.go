// Package metrics exports submission counters to Prometheus.
package metrics

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/congo-pay/sendbtc/internal/draft"
	"github.com/congo-pay/sendbtc/internal/payments"
)

// Collector records terminal submissions and fee probe failures.
type Collector struct {
	submissions  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	probeFailure *prometheus.CounterVec
}

var _ payments.Listener = (*Collector)(nil)

// NewCollector registers the collectors on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sendbtc",
			Name:      "submissions_total",
			Help:      "Terminal submissions by channel and status.",
		}, []string{"channel", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sendbtc",
			Name:      "submission_duration_seconds",
			Help:      "Time from dispatch to terminal status.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"channel"}),
		probeFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sendbtc",
			Name:      "fee_probe_failures_total",
			Help:      "Fee probes that degraded to an unknown fee.",
		}, []string{"channel"}),
	}
	reg.MustRegister(c.submissions, c.latency, c.probeFailure)
	return c
}

// OnTerminal implements payments.Listener.
func (c *Collector) OnTerminal(_ context.Context, ev payments.Event) {
	channel := string(ev.Draft.Kind())
	c.submissions.WithLabelValues(channel, string(ev.Outcome.Status)).Inc()
	if !ev.DispatchedAt.IsZero() && !ev.CompletedAt.IsZero() {
		c.latency.WithLabelValues(channel).Observe(ev.CompletedAt.Sub(ev.DispatchedAt).Seconds())
	}
}

// FeeProbeFailed counts a degraded fee probe. It fits fee.WithFailureHook.
func (c *Collector) FeeProbeFailed(kind draft.Kind) {
	c.probeFailure.WithLabelValues(string(kind)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
