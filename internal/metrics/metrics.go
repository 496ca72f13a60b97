// Package metrics exposes Prometheus counters for submission outcomes
// and completed scheduler cycles.
package metrics

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gateway-fm/volumegen/internal/pipeline"
)

// Metrics holds all Prometheus metrics for the volume generator.
// Accounts are deliberately not a label: profiles and outcomes are a
// small fixed set, account addresses are not.
type Metrics struct {
	Submissions *prometheus.CounterVec
	Cycles      *prometheus.CounterVec
	GasUsed     prometheus.Counter

	registry *prometheus.Registry
}

// New creates and registers all metrics. A nil registry gets a fresh
// private one, keeping test instances isolated.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volumegen_submissions_total",
				Help: "Submissions by profile, action and outcome",
			},
			[]string{"profile", "action", "outcome"},
		),
		Cycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volumegen_cycles_total",
				Help: "Completed scheduler cycles by profile",
			},
			[]string{"profile"},
		),
		GasUsed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "volumegen_gas_used_total",
				Help: "Total gas consumed by confirmed transactions",
			},
		),
		registry: reg,
	}
}

// Handler returns the HTTP handler serving this metrics set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SubmissionDone counts one pipeline outcome. Implements the
// scheduler's observer.
func (m *Metrics) SubmissionDone(profile string, acct common.Address, action string, res pipeline.Result) {
	m.Submissions.WithLabelValues(profile, action, res.Kind.String()).Inc()
	if res.OK() {
		m.GasUsed.Add(float64(res.GasUsed))
	}
}

// CycleDone counts one finished cycle. Implements the scheduler's
// observer.
func (m *Metrics) CycleDone(profile string, acct common.Address, completed, target int) {
	m.Cycles.WithLabelValues(profile).Inc()
}
