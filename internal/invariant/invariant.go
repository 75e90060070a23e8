// Package invariant holds the violation type shared by every validator and
// the stable rule codes that audit logs and tests assert on.
package invariant

import "fmt"

// Rule is a stable invariant identifier. Messages may change; codes do not.
type Rule string

// Reference resolution.
const (
	MissingReference Rule = "INV-REF-001"
)

// Evidence, observation and interpretation typing.
const (
	EvidenceSources        Rule = "INV-EVD-001"
	EvidenceLocator        Rule = "INV-EVD-002"
	ObservationType        Rule = "INV-OBS-001"
	ObservationProvenance  Rule = "INV-OBS-002"
	InterpretationType     Rule = "INV-INT-001"
	InterpretationGrounded Rule = "INV-INT-002"
)

// Recommendation structure and provenance.
const (
	RecommendationOrientation Rule = "INV-REC-001"
	RecommendationRanked      Rule = "INV-REC-002"
	RecommendationProvenance  Rule = "INV-REC-003"
	RecommendationOptionLink  Rule = "INV-REC-004"
	ProvenanceDrift           Rule = "INV-REC-005"
	RankContiguity            Rule = "INV-REC-006"
)

// EXECUTE options and the action-class gate.
const (
	ExecuteAuditability        Rule = "INV-EXE-001"
	ExecuteOrientation         Rule = "INV-EXE-002"
	ExecuteOrientationMismatch Rule = "INV-EXE-003"
	ExecuteUncertainty         Rule = "INV-EXE-004"
	ActionClassDeclared        Rule = "INV-ACT-001"
	ActionClassGate            Rule = "INV-ACT-002"
)

// Episode lifecycle.
const (
	ActedRequiresChoice    Rule = "INV-CHO-001"
	ChoiceReferences       Rule = "INV-CHO-002"
	ChoiceRanked           Rule = "INV-CHO-003"
	ActedRequiresOutcome   Rule = "INV-OUT-001"
	OutcomeReferences      Rule = "INV-OUT-002"
	OutcomeRanked          Rule = "INV-OUT-003"
	OverrideRequiresReview Rule = "INV-REV-001"
	OverrideAudited        Rule = "INV-REV-002"
	CalibrationEpisode     Rule = "INV-CAL-001"
	CalibrationReview      Rule = "INV-CAL-002"
	CalibrationOutcomes    Rule = "INV-CAL-003"
)

// Provider boundary.
const (
	ProviderHeader           Rule = "INV-PS-001"
	ProviderEvidenceRefs     Rule = "INV-PS-002"
	ProviderExecutable       Rule = "INV-PS-003"
	ProviderForbiddenField   Rule = "INV-PA-001"
	ProviderItemCompleteness Rule = "INV-PA-002"
	ProviderRankedOptionRef  Rule = "INV-PR-001"
	ProviderRankOrder        Rule = "INV-PR-002"
)

// Violation is one failed invariant.
type Violation struct {
	Rule    Rule   `json:"rule"`
	Message string `json:"message"`
}

func (v Violation) String() string { return string(v.Rule) + ": " + v.Message }

// New builds a violation with a formatted message.
func New(rule Rule, format string, args ...any) Violation {
	return Violation{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// Rules returns the codes present in vs, in order, without duplicates.
func Rules(vs []Violation) []Rule {
	out := make([]Rule, 0, len(vs))
	seen := make(map[Rule]bool, len(vs))
	for _, v := range vs {
		if !seen[v.Rule] {
			seen[v.Rule] = true
			out = append(out, v.Rule)
		}
	}
	return out
}

// Has reports whether any violation carries rule.
func Has(vs []Violation, rule Rule) bool {
	for _, v := range vs {
		if v.Rule == rule {
			return true
		}
	}
	return false
}
