// Package metrics counts kernel validation activity on a private Prometheus
// registry.
package metrics

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"constitution/internal/engine"
	"constitution/internal/gate"
)

// Kernel holds the counters. Its methods are safe for concurrent use.
type Kernel struct {
	reg *prometheus.Registry

	Validations *prometheus.CounterVec
	Violations  *prometheus.CounterVec
	Bundles     *prometheus.CounterVec
	Verdicts    *prometheus.CounterVec
}

// New registers every counter on a fresh registry.
func New() *Kernel {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Kernel{
		reg: reg,
		Validations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "constitution_validations_total",
			Help: "Validation reports produced, by subject kind and result.",
		}, []string{"subject", "ok"}),
		Violations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "constitution_violations_total",
			Help: "Invariant violations reported, by rule.",
		}, []string{"rule"}),
		Bundles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "constitution_bundles_total",
			Help: "Provider proposal bundles seen at the boundary, by decision.",
		}, []string{"accepted"}),
		Verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "constitution_gate_verdicts_total",
			Help: "Action-class gate evaluations, by result.",
		}, []string{"allowed"}),
	}
}

// Registry exposes the private registry for gathering.
func (k *Kernel) Registry() *prometheus.Registry { return k.reg }

// ObserveReport counts r under its subject kind ("Episode", "Recommendation").
func (k *Kernel) ObserveReport(r engine.Report) {
	kind, _, _ := strings.Cut(r.Subject, ":")
	k.Validations.WithLabelValues(kind, strconv.FormatBool(r.OK())).Inc()
	for _, v := range r.Violations {
		k.Violations.WithLabelValues(string(v.Rule)).Inc()
	}
}

// ObserveBundle satisfies canon.Recorder.
func (k *Kernel) ObserveBundle(accepted bool) {
	k.Bundles.WithLabelValues(strconv.FormatBool(accepted)).Inc()
}

func (k *Kernel) ObserveVerdict(v gate.Verdict) {
	k.Verdicts.WithLabelValues(strconv.FormatBool(v.Allowed)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (k *Kernel) Handler() http.Handler {
	return promhttp.HandlerFor(k.reg, promhttp.HandlerOpts{Registry: k.reg})
}
