package artifact

import (
	"strings"
	"time"

	"constitution/internal/gate"
)

// Objective is a weighted goal the orientation pursues.
type Objective struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Weight      float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// Constraint is a declared limit. Expression is opaque to the kernel.
type Constraint struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Expression  string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// Orientation declares the objectives, constraints and override permissions
// that govern an episode.
type Orientation struct {
	ID                string              `json:"orientation_id" yaml:"orientation_id"`
	CreatedAt         time.Time           `json:"created_at" yaml:"created_at"`
	Objectives        []Objective         `json:"objectives,omitempty" yaml:"objectives,omitempty"`
	Constraints       []Constraint        `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	GovernanceMode    gate.GovernanceMode `json:"governance_mode,omitempty" yaml:"governance_mode,omitempty"`
	RiskPosture       gate.Posture        `json:"risk_posture,omitempty" yaml:"risk_posture,omitempty"`
	OverrideScope     []string            `json:"override_scope,omitempty" yaml:"override_scope,omitempty"`
	OverrideRationale string              `json:"override_rationale,omitempty" yaml:"override_rationale,omitempty"`
	Owner             string              `json:"owner,omitempty" yaml:"owner,omitempty"`
}

func (o Orientation) ArtifactID() string { return o.ID }
func (Orientation) ArtifactKind() Kind   { return KindOrientation }

// NewOrientation starts advisory-only with the default posture.
func NewOrientation(owner string) Orientation {
	return Orientation{
		ID:             NewID(prefixOrientation),
		CreatedAt:      now(),
		GovernanceMode: gate.AdvisoryOnly,
		RiskPosture:    gate.PostureDefault,
		Owner:          owner,
	}
}

func (o Orientation) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return invalidf("orientation id is empty")
	}
	return nil
}

// Governance projects the fields the risk gate consults.
func (o Orientation) Governance() gate.Governance {
	return gate.Governance{
		Mode:              o.GovernanceMode,
		Posture:           o.RiskPosture,
		OverrideScope:     cloneStrings(o.OverrideScope),
		OverrideRationale: o.OverrideRationale,
	}
}

func (o Orientation) clone() Orientation {
	o.Objectives = append([]Objective(nil), o.Objectives...)
	o.Constraints = append([]Constraint(nil), o.Constraints...)
	o.OverrideScope = cloneStrings(o.OverrideScope)
	return o
}

// WithExtendedOverride grants the listed permissions under rationale.
func (o Orientation) WithExtendedOverride(rationale string, scope ...string) Orientation {
	o = o.clone()
	o.GovernanceMode = gate.ExtendedAllowed
	o.OverrideScope = appendUnique(nil, scope...)
	o.OverrideRationale = rationale
	return o
}

func (o Orientation) WithPosture(p gate.Posture) Orientation {
	o = o.clone()
	o.RiskPosture = p
	return o
}

func (o Orientation) AddObjectives(objs ...Objective) Orientation {
	o = o.clone()
	o.Objectives = append(o.Objectives, objs...)
	return o
}

func (o Orientation) AddConstraints(cs ...Constraint) Orientation {
	o = o.clone()
	o.Constraints = append(o.Constraints, cs...)
	return o
}
