package artifact

import (
	"strings"
	"time"
)

// Choice is the commitment to one option of a recommendation.
type Choice struct {
	ID               string    `json:"choice_id" yaml:"choice_id"`
	CreatedAt        time.Time `json:"created_at" yaml:"created_at"`
	EpisodeID        string    `json:"episode_id" yaml:"episode_id"`
	RecommendationID string    `json:"recommendation_id" yaml:"recommendation_id"`
	OptionID         string    `json:"option_id" yaml:"option_id"`
	ChosenBy         ChoiceBy  `json:"chosen_by,omitempty" yaml:"chosen_by,omitempty"`
	UsedOverride     bool      `json:"used_override,omitempty" yaml:"used_override,omitempty"`
	Rationale        string    `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

func (c Choice) ArtifactID() string { return c.ID }
func (Choice) ArtifactKind() Kind   { return KindChoice }

// NewChoice requires all three references.
func NewChoice(episodeID, recommendationID, optionID string) (Choice, error) {
	c := Choice{
		ID:               NewID(prefixChoice),
		CreatedAt:        now(),
		EpisodeID:        episodeID,
		RecommendationID: recommendationID,
		OptionID:         optionID,
		ChosenBy:         ChosenByHuman,
	}
	if err := c.Validate(); err != nil {
		return Choice{}, err
	}
	return c, nil
}

func (c Choice) Validate() error {
	switch {
	case c.ID == "":
		return invalidf("choice id is empty")
	case strings.TrimSpace(c.EpisodeID) == "":
		return invalidf("choice %s has no episode", c.ID)
	case strings.TrimSpace(c.RecommendationID) == "":
		return invalidf("choice %s has no recommendation", c.ID)
	case strings.TrimSpace(c.OptionID) == "":
		return invalidf("choice %s has no option", c.ID)
	}
	return nil
}

// WithOverride records that the chooser invoked an override, and why.
func (c Choice) WithOverride(rationale string) Choice {
	c.UsedOverride = true
	c.Rationale = rationale
	return c
}

func (c Choice) WithRationale(rationale string) Choice {
	c.Rationale = rationale
	return c
}

func (c Choice) WithChosenBy(by ChoiceBy) Choice {
	c.ChosenBy = by
	return c
}

// Outcome records what happened after acting.
type Outcome struct {
	ID               string        `json:"outcome_id" yaml:"outcome_id"`
	CreatedAt        time.Time     `json:"created_at" yaml:"created_at"`
	RecommendationID string        `json:"recommendation_id,omitempty" yaml:"recommendation_id,omitempty"`
	ChosenOptionID   string        `json:"chosen_option_id,omitempty" yaml:"chosen_option_id,omitempty"`
	Description      string        `json:"description" yaml:"description"`
	EvidenceIDs      []string      `json:"evidence_ids,omitempty" yaml:"evidence_ids,omitempty"`
	Confidence       float64       `json:"confidence" yaml:"confidence"`
	Uncertainties    []Uncertainty `json:"uncertainties,omitempty" yaml:"uncertainties,omitempty"`
}

func (o Outcome) ArtifactID() string { return o.ID }
func (Outcome) ArtifactKind() Kind   { return KindOutcome }

// NewOutcome starts at neutral confidence.
func NewOutcome(description string) Outcome {
	return Outcome{ID: NewID(prefixOutcome), CreatedAt: now(), Description: description, Confidence: 0.5}
}

func (o Outcome) Validate() error {
	if o.ID == "" {
		return invalidf("outcome id is empty")
	}
	if err := checkUnit("outcome confidence", o.Confidence); err != nil {
		return err
	}
	return validateUncertainties("outcome "+o.ID, o.Uncertainties)
}

func (o Outcome) clone() Outcome {
	o.EvidenceIDs = cloneStrings(o.EvidenceIDs)
	o.Uncertainties = cloneUncertainties(o.Uncertainties)
	return o
}

// For binds the outcome to the recommendation and option that were acted on.
func (o Outcome) For(recommendationID, optionID string) Outcome {
	o = o.clone()
	o.RecommendationID = recommendationID
	o.ChosenOptionID = optionID
	return o
}

func (o Outcome) WithConfidence(c float64) (Outcome, error) {
	if err := checkUnit("outcome confidence", c); err != nil {
		return Outcome{}, err
	}
	o = o.clone()
	o.Confidence = c
	return o, nil
}

func (o Outcome) AddEvidence(ids ...string) Outcome {
	o = o.clone()
	o.EvidenceIDs = appendUnique(o.EvidenceIDs, ids...)
	return o
}

// OverrideAuditEntry justifies one recommendation's use of an override.
type OverrideAuditEntry struct {
	Scope     []string `json:"override_scope_used" yaml:"override_scope_used"`
	Rationale string   `json:"rationale" yaml:"rationale"`
}

// Complete reports whether both scope and rationale are present.
func (e OverrideAuditEntry) Complete() bool {
	hasScope := false
	for _, s := range e.Scope {
		if strings.TrimSpace(s) != "" {
			hasScope = true
			break
		}
	}
	return hasScope && strings.TrimSpace(e.Rationale) != ""
}

// Review is the post-hoc audit of an episode.
type Review struct {
	ID               string    `json:"review_id" yaml:"review_id"`
	CreatedAt        time.Time `json:"created_at" yaml:"created_at"`
	EpisodeID        string    `json:"episode_id" yaml:"episode_id"`
	RecommendationID string    `json:"recommendation_id,omitempty" yaml:"recommendation_id,omitempty"`
	OutcomeID        string    `json:"outcome_id,omitempty" yaml:"outcome_id,omitempty"`
	WhatHappened     string    `json:"what_happened,omitempty" yaml:"what_happened,omitempty"`
	WhatWasExpected  string    `json:"what_was_expected,omitempty" yaml:"what_was_expected,omitempty"`
	Delta            string    `json:"delta,omitempty" yaml:"delta,omitempty"`
	NextQuestions    []string  `json:"next_questions,omitempty" yaml:"next_questions,omitempty"`
	Confidence       float64   `json:"confidence" yaml:"confidence"`

	// OverrideAudit is keyed by recommendation id.
	OverrideAudit map[string]OverrideAuditEntry `json:"override_audit,omitempty" yaml:"override_audit,omitempty"`
}

func (r Review) ArtifactID() string { return r.ID }
func (Review) ArtifactKind() Kind   { return KindReview }

func NewReview(episodeID string) Review {
	return Review{ID: NewID(prefixReview), CreatedAt: now(), EpisodeID: episodeID, Confidence: 0.5}
}

func (r Review) Validate() error {
	if r.ID == "" {
		return invalidf("review id is empty")
	}
	return checkUnit("review confidence", r.Confidence)
}

func (r Review) clone() Review {
	r.NextQuestions = cloneStrings(r.NextQuestions)
	if r.OverrideAudit != nil {
		audit := make(map[string]OverrideAuditEntry, len(r.OverrideAudit))
		for k, v := range r.OverrideAudit {
			v.Scope = cloneStrings(v.Scope)
			audit[k] = v
		}
		r.OverrideAudit = audit
	}
	return r
}

// AuditOverride records the justification for recommendationID's override.
func (r Review) AuditOverride(recommendationID, rationale string, scope ...string) Review {
	r = r.clone()
	if r.OverrideAudit == nil {
		r.OverrideAudit = make(map[string]OverrideAuditEntry)
	}
	r.OverrideAudit[recommendationID] = OverrideAuditEntry{Scope: appendUnique(nil, scope...), Rationale: rationale}
	return r
}

func (r Review) WithNarrative(whatHappened, whatWasExpected, delta string) Review {
	r = r.clone()
	r.WhatHappened = whatHappened
	r.WhatWasExpected = whatWasExpected
	r.Delta = delta
	return r
}

func (r Review) For(recommendationID, outcomeID string) Review {
	r = r.clone()
	r.RecommendationID = recommendationID
	r.OutcomeID = outcomeID
	return r
}

// CalibrationNote captures what the episode taught.
type CalibrationNote struct {
	ID              string    `json:"calibration_id" yaml:"calibration_id"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
	EpisodeID       string    `json:"episode_id" yaml:"episode_id"`
	ReviewID        string    `json:"review_id" yaml:"review_id"`
	OutcomeIDs      []string  `json:"outcome_ids,omitempty" yaml:"outcome_ids,omitempty"`
	Summary         string    `json:"summary" yaml:"summary"`
	ProposedChanges []string  `json:"proposed_changes,omitempty" yaml:"proposed_changes,omitempty"`
	Confidence      float64   `json:"confidence" yaml:"confidence"`
}

func (c CalibrationNote) ArtifactID() string { return c.ID }
func (CalibrationNote) ArtifactKind() Kind   { return KindCalibration }

func (c CalibrationNote) clone() CalibrationNote {
	c.OutcomeIDs = cloneStrings(c.OutcomeIDs)
	c.ProposedChanges = cloneStrings(c.ProposedChanges)
	return c
}

func NewCalibrationNote(episodeID, reviewID, summary string) CalibrationNote {
	return CalibrationNote{
		ID:         NewID(prefixCalibration),
		CreatedAt:  now(),
		EpisodeID:  episodeID,
		ReviewID:   reviewID,
		Summary:    summary,
		Confidence: 0.5,
	}
}

func (c CalibrationNote) Validate() error {
	if c.ID == "" {
		return invalidf("calibration id is empty")
	}
	return checkUnit("calibration confidence", c.Confidence)
}

func (c CalibrationNote) AddOutcomes(ids ...string) CalibrationNote {
	c.ProposedChanges = cloneStrings(c.ProposedChanges)
	c.OutcomeIDs = appendUnique(c.OutcomeIDs, ids...)
	return c
}

func (c CalibrationNote) AddProposedChanges(changes ...string) CalibrationNote {
	c.OutcomeIDs = cloneStrings(c.OutcomeIDs)
	c.ProposedChanges = append(cloneStrings(c.ProposedChanges), changes...)
	return c
}
