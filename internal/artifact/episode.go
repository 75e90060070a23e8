package artifact

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrChosenOptionConflict is returned when an acted episode is marked acted
// again with a different option.
var ErrChosenOptionConflict = errors.New("artifact: chosen option already set")

// Episode binds the artifacts of one decision cycle by id. It holds no
// embedded objects. Every list is append-only and de-duplicated.
type Episode struct {
	ID          string    `json:"episode_id" yaml:"episode_id"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	Title       string    `json:"title,omitempty" yaml:"title,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`

	RawInputIDs       []string `json:"raw_input_ids,omitempty" yaml:"raw_input_ids,omitempty"`
	EvidenceIDs       []string `json:"evidence_ids,omitempty" yaml:"evidence_ids,omitempty"`
	ObservationIDs    []string `json:"observation_ids,omitempty" yaml:"observation_ids,omitempty"`
	InterpretationIDs []string `json:"interpretation_ids,omitempty" yaml:"interpretation_ids,omitempty"`
	OrientationIDs    []string `json:"orientation_ids,omitempty" yaml:"orientation_ids,omitempty"`
	OptionIDs         []string `json:"option_ids,omitempty" yaml:"option_ids,omitempty"`
	RecommendationIDs []string `json:"recommendation_ids,omitempty" yaml:"recommendation_ids,omitempty"`
	ChoiceIDs         []string `json:"choice_ids,omitempty" yaml:"choice_ids,omitempty"`
	OutcomeIDs        []string `json:"outcome_ids,omitempty" yaml:"outcome_ids,omitempty"`
	ReviewIDs         []string `json:"review_ids,omitempty" yaml:"review_ids,omitempty"`
	CalibrationIDs    []string `json:"calibration_ids,omitempty" yaml:"calibration_ids,omitempty"`

	Acted          bool       `json:"acted,omitempty" yaml:"acted,omitempty"`
	ActedAt        *time.Time `json:"acted_at,omitempty" yaml:"acted_at,omitempty"`
	ChosenOptionID string     `json:"chosen_option_id,omitempty" yaml:"chosen_option_id,omitempty"`
}

func (e Episode) ArtifactID() string { return e.ID }
func (Episode) ArtifactKind() Kind   { return KindEpisode }

func NewEpisode(title string) Episode {
	return Episode{ID: NewID(prefixEpisode), CreatedAt: now(), Title: title}
}

func (e Episode) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return invalidf("episode id is empty")
	}
	if e.ChosenOptionID != "" && !e.Acted {
		return invalidf("episode %s has a chosen option but is not acted", e.ID)
	}
	return nil
}

func (e Episode) clone() Episode {
	e.RawInputIDs = cloneStrings(e.RawInputIDs)
	e.EvidenceIDs = cloneStrings(e.EvidenceIDs)
	e.ObservationIDs = cloneStrings(e.ObservationIDs)
	e.InterpretationIDs = cloneStrings(e.InterpretationIDs)
	e.OrientationIDs = cloneStrings(e.OrientationIDs)
	e.OptionIDs = cloneStrings(e.OptionIDs)
	e.RecommendationIDs = cloneStrings(e.RecommendationIDs)
	e.ChoiceIDs = cloneStrings(e.ChoiceIDs)
	e.OutcomeIDs = cloneStrings(e.OutcomeIDs)
	e.ReviewIDs = cloneStrings(e.ReviewIDs)
	e.CalibrationIDs = cloneStrings(e.CalibrationIDs)
	if e.ActedAt != nil {
		t := *e.ActedAt
		e.ActedAt = &t
	}
	return e
}

func (e Episode) AddRawInputs(ids ...string) Episode {
	e = e.clone()
	e.RawInputIDs = appendUnique(e.RawInputIDs, ids...)
	return e
}

func (e Episode) AddEvidence(ids ...string) Episode {
	e = e.clone()
	e.EvidenceIDs = appendUnique(e.EvidenceIDs, ids...)
	return e
}

func (e Episode) AddObservations(ids ...string) Episode {
	e = e.clone()
	e.ObservationIDs = appendUnique(e.ObservationIDs, ids...)
	return e
}

func (e Episode) AddInterpretations(ids ...string) Episode {
	e = e.clone()
	e.InterpretationIDs = appendUnique(e.InterpretationIDs, ids...)
	return e
}

func (e Episode) AddOrientations(ids ...string) Episode {
	e = e.clone()
	e.OrientationIDs = appendUnique(e.OrientationIDs, ids...)
	return e
}

func (e Episode) AddOptions(ids ...string) Episode {
	e = e.clone()
	e.OptionIDs = appendUnique(e.OptionIDs, ids...)
	return e
}

func (e Episode) AddRecommendations(ids ...string) Episode {
	e = e.clone()
	e.RecommendationIDs = appendUnique(e.RecommendationIDs, ids...)
	return e
}

// MarkActed sets the acted flag and chosen option. Marking again with the
// same option is a no-op; a different option is an error.
func (e Episode) MarkActed(optionID string, at time.Time) (Episode, error) {
	if strings.TrimSpace(optionID) == "" {
		return Episode{}, invalidf("episode %s: chosen option id is empty", e.ID)
	}
	if e.ChosenOptionID != "" && e.ChosenOptionID != optionID {
		return Episode{}, fmt.Errorf("%w: episode %s chose %s, refusing %s", ErrChosenOptionConflict, e.ID, e.ChosenOptionID, optionID)
	}
	e = e.clone()
	if e.Acted && e.ChosenOptionID == optionID {
		return e, nil
	}
	if at.IsZero() {
		at = now()
	}
	e.Acted = true
	e.ActedAt = &at
	e.ChosenOptionID = optionID
	return e, nil
}

func (e Episode) LogChoice(choiceID string) (Episode, error) {
	return e.logID("choice", choiceID, func(x *Episode) *[]string { return &x.ChoiceIDs })
}

func (e Episode) LogOutcome(outcomeID string) (Episode, error) {
	return e.logID("outcome", outcomeID, func(x *Episode) *[]string { return &x.OutcomeIDs })
}

func (e Episode) LogReview(reviewID string) (Episode, error) {
	return e.logID("review", reviewID, func(x *Episode) *[]string { return &x.ReviewIDs })
}

func (e Episode) LogCalibration(calibrationID string) (Episode, error) {
	return e.logID("calibration", calibrationID, func(x *Episode) *[]string { return &x.CalibrationIDs })
}

func (e Episode) logID(what, id string, field func(*Episode) *[]string) (Episode, error) {
	if strings.TrimSpace(id) == "" {
		return Episode{}, invalidf("episode %s: %s id is empty", e.ID, what)
	}
	e = e.clone()
	f := field(&e)
	*f = appendUnique(*f, id)
	return e, nil
}

func last(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[len(ids)-1]
}

func (e Episode) LatestRecommendationID() string { return last(e.RecommendationIDs) }
func (e Episode) LatestChoiceID() string         { return last(e.ChoiceIDs) }
func (e Episode) LatestOutcomeID() string        { return last(e.OutcomeIDs) }
func (e Episode) LatestReviewID() string         { return last(e.ReviewIDs) }
func (e Episode) LatestOrientationID() string    { return last(e.OrientationIDs) }

// HasOption reports whether optionID is bound to the episode.
func (e Episode) HasOption(optionID string) bool {
	for _, id := range e.OptionIDs {
		if id == optionID {
			return true
		}
	}
	return false
}
