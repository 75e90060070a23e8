package gate

import (
	"fmt"
	"strings"
)

// GovernanceMode declares whether an orientation permits overrides at all.
type GovernanceMode string

const (
	AdvisoryOnly    GovernanceMode = "ADVISORY_ONLY"
	ExtendedAllowed GovernanceMode = "EXTENDED_ALLOWED"
)

// ParseGovernanceMode accepts the canonical names; empty means ADVISORY_ONLY.
func ParseGovernanceMode(s string) (GovernanceMode, error) {
	switch GovernanceMode(strings.ToUpper(strings.TrimSpace(s))) {
	case "", AdvisoryOnly:
		return AdvisoryOnly, nil
	case ExtendedAllowed:
		return ExtendedAllowed, nil
	}
	return "", fmt.Errorf("gate: unknown governance mode %q", s)
}

// UnmarshalText parses a governance mode at decoding boundaries.
func (m *GovernanceMode) UnmarshalText(b []byte) error {
	v, err := ParseGovernanceMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ScopeGateBypass is the override permission that lifts the action-class gate.
const ScopeGateBypass = "ALLOW_GATE_BYPASS"

// Governance is the slice of an orientation the gate needs.
type Governance struct {
	Mode              GovernanceMode
	Posture           Posture
	OverrideScope     []string
	OverrideRationale string
}

// ValidateOverride checks a requested override scope against the declared
// governance. It returns false with the first failing condition.
func ValidateOverride(g Governance, scopeUsed []string) (bool, string) {
	if g.Mode != ExtendedAllowed {
		return false, "override not permitted: governance mode is " + string(orDefault(g.Mode))
	}
	if len(nonEmpty(g.OverrideScope)) == 0 {
		return false, "override not permitted: declared override scope is empty"
	}
	if strings.TrimSpace(g.OverrideRationale) == "" {
		return false, "override not permitted: override rationale is empty"
	}
	used := nonEmpty(scopeUsed)
	if len(used) == 0 {
		return false, "override invalid: requested scope is empty"
	}
	declared := make(map[string]struct{}, len(g.OverrideScope))
	for _, s := range g.OverrideScope {
		declared[s] = struct{}{}
	}
	for _, s := range used {
		if _, ok := declared[s]; !ok {
			return false, fmt.Sprintf("override invalid: scope %q not declared", s)
		}
	}
	return true, "override valid"
}

func orDefault(m GovernanceMode) GovernanceMode {
	if m == "" {
		return AdvisoryOnly
	}
	return m
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// Subject is the scalar view of an option the gate evaluates.
type Subject struct {
	Impact        float64
	Reversibility float64
	Uncertainty   float64
	Class         ActionClass
	Dependencies  []string
}

// Verdict is the outcome of a legality evaluation.
//
// RequiresOverride is true exactly when the declared class falls outside the
// computed set, whether or not a valid override was supplied.
type Verdict struct {
	Allowed          bool
	RequiresOverride bool
	Reason           string

	Risk        Level
	Uncertainty Level
	Permitted   ClassSet
}

// Evaluate decides whether s may proceed under g. scopeUsed is the override
// scope the caller requests; nil means no override is requested.
func Evaluate(s Subject, g Governance, scopeUsed []string) Verdict {
	risk := Riskiness(Band(s.Impact), Band(s.Reversibility))
	unc := Band(s.Uncertainty)
	permitted := Allowed(risk, unc, g.Posture)
	v := Verdict{Risk: risk, Uncertainty: unc, Permitted: permitted}

	if len(nonEmpty(s.Dependencies)) == 0 {
		v.Reason = "invalid option: dependencies required"
		return v
	}
	if s.Class == "" {
		v.Reason = "invalid option: action class required"
		return v
	}
	if permitted.Has(s.Class) {
		v.Allowed = true
		v.Reason = fmt.Sprintf("%s permitted at risk=%s uncertainty=%s", s.Class, risk, unc)
		return v
	}

	v.RequiresOverride = true
	ok, why := ValidateOverride(g, scopeUsed)
	v.Allowed = ok
	v.Reason = fmt.Sprintf("%s outside %s at risk=%s uncertainty=%s; %s", s.Class, permitted, risk, unc, why)
	return v
}
