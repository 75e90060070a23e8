package engine

import (
	"encoding/json"
	"slices"

	"constitution/internal/invariant"
	"constitution/internal/store"
)

// Report is the outcome of validating one subject. It is OK only when no
// rule was violated and every reference resolved.
type Report struct {
	Subject       string                `json:"subject"`
	Violations    []invariant.Violation `json:"violations"`
	ResolveErrors []store.ResolveError  `json:"resolve_errors"`
}

// OK reports whether the subject may proceed.
func (r Report) OK() bool { return len(r.Violations) == 0 && len(r.ResolveErrors) == 0 }

// Rules returns the distinct violated rule codes in report order.
func (r Report) Rules() []invariant.Rule { return invariant.Rules(r.Violations) }

// MarshalJSON adds the derived ok field and renders empty lists as [].
func (r Report) MarshalJSON() ([]byte, error) {
	type wire struct {
		Subject       string                `json:"subject"`
		OK            bool                  `json:"ok"`
		Violations    []invariant.Violation `json:"violations"`
		ResolveErrors []store.ResolveError  `json:"resolve_errors"`
	}
	w := wire{Subject: r.Subject, OK: r.OK(), Violations: r.Violations, ResolveErrors: r.ResolveErrors}
	if w.Violations == nil {
		w.Violations = []invariant.Violation{}
	}
	if w.ResolveErrors == nil {
		w.ResolveErrors = []store.ResolveError{}
	}
	return json.Marshal(w)
}

func (r *Report) add(vs ...invariant.Violation) { r.Violations = append(r.Violations, vs...) }

// unresolved records misses as resolve errors and mirrors each one as a
// violation under rule. A miss already recorded is not repeated.
func (r *Report) unresolved(rule invariant.Rule, misses []store.ResolveError) {
	for _, m := range misses {
		if slices.Contains(r.ResolveErrors, m) {
			continue
		}
		r.ResolveErrors = append(r.ResolveErrors, m)
		r.add(invariant.New(rule, "%s %s does not resolve", m.ArtifactType, m.ArtifactID))
	}
}
