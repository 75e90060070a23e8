package artifact

import (
	"sort"
	"strings"
	"time"

	"constitution/internal/gate"
)

// Option is a candidate action before ranking.
type Option struct {
	ID                string           `json:"option_id" yaml:"option_id"`
	CreatedAt         time.Time        `json:"created_at" yaml:"created_at"`
	Kind              OptionKind       `json:"kind" yaml:"kind"`
	Title             string           `json:"title" yaml:"title"`
	Description       string           `json:"description,omitempty" yaml:"description,omitempty"`
	ActionClass       gate.ActionClass `json:"action_class,omitempty" yaml:"action_class,omitempty"`
	OrientationID     string           `json:"orientation_id,omitempty" yaml:"orientation_id,omitempty"`
	Impact            float64          `json:"impact" yaml:"impact"`
	Reversibility     float64          `json:"reversibility" yaml:"reversibility"`
	Uncertainties     []Uncertainty    `json:"uncertainties,omitempty" yaml:"uncertainties,omitempty"`
	EvidenceIDs       []string         `json:"evidence_ids,omitempty" yaml:"evidence_ids,omitempty"`
	ObservationIDs    []string         `json:"observation_ids,omitempty" yaml:"observation_ids,omitempty"`
	InterpretationIDs []string         `json:"interpretation_ids,omitempty" yaml:"interpretation_ids,omitempty"`
}

func (o Option) ArtifactID() string { return o.ID }
func (Option) ArtifactKind() Kind   { return KindOption }

// NewOption validates impact and reversibility. The action class starts unset.
func NewOption(kind OptionKind, title string, impact, reversibility float64) (Option, error) {
	o := Option{
		ID:            NewID(prefixOption),
		CreatedAt:     now(),
		Kind:          kind,
		Title:         title,
		Impact:        impact,
		Reversibility: reversibility,
	}
	if err := o.Validate(); err != nil {
		return Option{}, err
	}
	return o, nil
}

func (o Option) Validate() error {
	if o.ID == "" {
		return invalidf("option id is empty")
	}
	if _, err := ParseOptionKind(string(o.Kind)); err != nil {
		return err
	}
	if err := checkUnit("option impact", o.Impact); err != nil {
		return err
	}
	if err := checkUnit("option reversibility", o.Reversibility); err != nil {
		return err
	}
	return validateUncertainties("option "+o.ID, o.Uncertainties)
}

// Upstream lists every provenance reference, evidence first.
func (o Option) Upstream() []string {
	out := appendUnique(nil, o.EvidenceIDs...)
	out = appendUnique(out, o.ObservationIDs...)
	return appendUnique(out, o.InterpretationIDs...)
}

// MaxUncertainty returns the highest declared uncertainty level.
func (o Option) MaxUncertainty() (float64, bool) { return maxLevel(o.Uncertainties) }

func (o Option) clone() Option {
	o.Uncertainties = cloneUncertainties(o.Uncertainties)
	o.EvidenceIDs = cloneStrings(o.EvidenceIDs)
	o.ObservationIDs = cloneStrings(o.ObservationIDs)
	o.InterpretationIDs = cloneStrings(o.InterpretationIDs)
	return o
}

func (o Option) WithActionClass(c gate.ActionClass) Option {
	o = o.clone()
	o.ActionClass = c
	return o
}

func (o Option) WithOrientation(id string) Option {
	o = o.clone()
	o.OrientationID = id
	return o
}

func (o Option) WithDescription(d string) Option {
	o = o.clone()
	o.Description = d
	return o
}

func (o Option) AddEvidence(ids ...string) Option {
	o = o.clone()
	o.EvidenceIDs = appendUnique(o.EvidenceIDs, ids...)
	return o
}

func (o Option) AddObservations(ids ...string) Option {
	o = o.clone()
	o.ObservationIDs = appendUnique(o.ObservationIDs, ids...)
	return o
}

func (o Option) AddInterpretations(ids ...string) Option {
	o = o.clone()
	o.InterpretationIDs = appendUnique(o.InterpretationIDs, ids...)
	return o
}

func (o Option) AddUncertainties(us ...Uncertainty) Option {
	o = o.clone()
	o.Uncertainties = append(o.Uncertainties, us...)
	return o
}

// RankedOption positions an option inside a recommendation.
type RankedOption struct {
	OptionID         string        `json:"option_id" yaml:"option_id"`
	Rank             int           `json:"rank" yaml:"rank"`
	Score            float64       `json:"score" yaml:"score"`
	Rationale        string        `json:"rationale" yaml:"rationale"`
	Confidence       float64       `json:"confidence" yaml:"confidence"`
	Uncertainties    []Uncertainty `json:"uncertainties,omitempty" yaml:"uncertainties,omitempty"`
	Tradeoffs        []string      `json:"tradeoffs,omitempty" yaml:"tradeoffs,omitempty"`
	ConstraintChecks []string      `json:"constraint_checks,omitempty" yaml:"constraint_checks,omitempty"`
}

// NewRankedOption validates rank, score and confidence.
func NewRankedOption(optionID string, rank int, score float64, rationale string, confidence float64) (RankedOption, error) {
	r := RankedOption{OptionID: optionID, Rank: rank, Score: score, Rationale: rationale, Confidence: confidence}
	if err := r.Validate(); err != nil {
		return RankedOption{}, err
	}
	return r, nil
}

func (r RankedOption) Validate() error {
	if strings.TrimSpace(r.OptionID) == "" {
		return invalidf("ranked option has an empty option id")
	}
	if r.Rank < 1 {
		return invalidf("ranked option %s rank must be >= 1, got %d", r.OptionID, r.Rank)
	}
	if err := checkUnit("ranked option score", r.Score); err != nil {
		return err
	}
	if err := checkUnit("ranked option confidence", r.Confidence); err != nil {
		return err
	}
	return validateUncertainties("ranked option "+r.OptionID, r.Uncertainties)
}

// CheckContiguousRanks reports whether ranks form exactly {1..N}.
func CheckContiguousRanks(ranked []RankedOption) error {
	ranks := make([]int, len(ranked))
	for i, r := range ranked {
		ranks[i] = r.Rank
	}
	sort.Ints(ranks)
	for i, r := range ranks {
		if r != i+1 {
			return invalidf("ranks must be a contiguous permutation of 1..%d, got %v", len(ranks), ranks)
		}
	}
	return nil
}

// Recommendation is a ranked set of options bound to an orientation.
type Recommendation struct {
	ID                string         `json:"recommendation_id" yaml:"recommendation_id"`
	CreatedAt         time.Time      `json:"created_at" yaml:"created_at"`
	OrientationID     string         `json:"orientation_id" yaml:"orientation_id"`
	RankedOptions     []RankedOption `json:"ranked_options" yaml:"ranked_options"`
	EvidenceIDs       []string       `json:"evidence_ids,omitempty" yaml:"evidence_ids,omitempty"`
	ObservationIDs    []string       `json:"observation_ids,omitempty" yaml:"observation_ids,omitempty"`
	InterpretationIDs []string       `json:"interpretation_ids,omitempty" yaml:"interpretation_ids,omitempty"`
	ModelStateIDs     []string       `json:"model_state_ids,omitempty" yaml:"model_state_ids,omitempty"`

	OverrideUsed      bool     `json:"override_used,omitempty" yaml:"override_used,omitempty"`
	OverrideScopeUsed []string `json:"override_scope_used,omitempty" yaml:"override_scope_used,omitempty"`

	UncertaintySummary string `json:"uncertainty_summary,omitempty" yaml:"uncertainty_summary,omitempty"`
	Justification      string `json:"proportionate_action_justification,omitempty" yaml:"proportionate_action_justification,omitempty"`
	Summary            string `json:"summary,omitempty" yaml:"summary,omitempty"`
}

func (r Recommendation) ArtifactID() string { return r.ID }
func (Recommendation) ArtifactKind() Kind   { return KindRecommendation }

// NewRecommendation requires an orientation and at least one ranked option
// with contiguous ranks.
func NewRecommendation(orientationID string, ranked ...RankedOption) (Recommendation, error) {
	r := Recommendation{
		ID:            NewID(prefixRecommendation),
		CreatedAt:     now(),
		OrientationID: orientationID,
		RankedOptions: append([]RankedOption(nil), ranked...),
	}
	if len(r.RankedOptions) == 0 {
		return Recommendation{}, invalidf("recommendation needs at least one ranked option")
	}
	if err := r.Validate(); err != nil {
		return Recommendation{}, err
	}
	return r, nil
}

// Validate checks orientation binding and ranking well-formedness. An empty
// ranking passes here; the invariant engine reports it.
func (r Recommendation) Validate() error {
	if r.ID == "" {
		return invalidf("recommendation id is empty")
	}
	if strings.TrimSpace(r.OrientationID) == "" {
		return invalidf("recommendation %s has no orientation", r.ID)
	}
	for _, ro := range r.RankedOptions {
		if err := ro.Validate(); err != nil {
			return err
		}
	}
	return CheckContiguousRanks(r.RankedOptions)
}

// Ranked returns the ranked options ordered by rank.
func (r Recommendation) Ranked() []RankedOption {
	out := append([]RankedOption(nil), r.RankedOptions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// TopOptionID is the option at the lowest rank, or "" when nothing is ranked.
func (r Recommendation) TopOptionID() string {
	ranked := r.Ranked()
	if len(ranked) == 0 {
		return ""
	}
	return ranked[0].OptionID
}

// RanksOption reports whether optionID appears among the ranked options.
func (r Recommendation) RanksOption(optionID string) bool {
	for _, ro := range r.RankedOptions {
		if ro.OptionID == optionID {
			return true
		}
	}
	return false
}

// HasProvenance reports whether any provenance pointer is present.
func (r Recommendation) HasProvenance() bool {
	return len(r.EvidenceIDs) > 0 || len(r.ObservationIDs) > 0 ||
		len(r.InterpretationIDs) > 0 || len(r.ModelStateIDs) > 0
}

func (r Recommendation) clone() Recommendation {
	r.RankedOptions = append([]RankedOption(nil), r.RankedOptions...)
	r.EvidenceIDs = cloneStrings(r.EvidenceIDs)
	r.ObservationIDs = cloneStrings(r.ObservationIDs)
	r.InterpretationIDs = cloneStrings(r.InterpretationIDs)
	r.ModelStateIDs = cloneStrings(r.ModelStateIDs)
	r.OverrideScopeUsed = cloneStrings(r.OverrideScopeUsed)
	return r
}

// AddRankedOptions appends and re-checks rank contiguity.
func (r Recommendation) AddRankedOptions(ranked ...RankedOption) (Recommendation, error) {
	r = r.clone()
	r.RankedOptions = append(r.RankedOptions, ranked...)
	if err := r.Validate(); err != nil {
		return Recommendation{}, err
	}
	return r, nil
}

func (r Recommendation) AddEvidence(ids ...string) Recommendation {
	r = r.clone()
	r.EvidenceIDs = appendUnique(r.EvidenceIDs, ids...)
	return r
}

func (r Recommendation) AddObservations(ids ...string) Recommendation {
	r = r.clone()
	r.ObservationIDs = appendUnique(r.ObservationIDs, ids...)
	return r
}

func (r Recommendation) AddInterpretations(ids ...string) Recommendation {
	r = r.clone()
	r.InterpretationIDs = appendUnique(r.InterpretationIDs, ids...)
	return r
}

func (r Recommendation) AddModelStates(ids ...string) Recommendation {
	r = r.clone()
	r.ModelStateIDs = appendUnique(r.ModelStateIDs, ids...)
	return r
}

// WithOverride marks the recommendation as relying on the given override scope.
func (r Recommendation) WithOverride(scope ...string) Recommendation {
	r = r.clone()
	r.OverrideUsed = true
	r.OverrideScopeUsed = appendUnique(nil, scope...)
	return r
}

func (r Recommendation) WithSummary(summary, uncertaintySummary, justification string) Recommendation {
	r = r.clone()
	r.Summary = summary
	r.UncertaintySummary = uncertaintySummary
	r.Justification = justification
	return r
}
