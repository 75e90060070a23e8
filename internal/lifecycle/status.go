package lifecycle

import (
	"constitution/internal/artifact"
	"constitution/internal/store"
)

// Status summarizes where an episode stands.
type Status struct {
	EpisodeID      string         `json:"episode_id"`
	Title          string         `json:"title"`
	Stage          Stage          `json:"stage"`
	Acted          bool           `json:"acted"`
	ChosenOptionID string         `json:"chosen_option_id,omitempty"`
	ReviewRequired bool           `json:"review_required"`
	Counts         map[string]int `json:"counts"`
}

// Status reports the derived stage and per-kind counts for an episode.
// ReviewRequired is true when any resolvable recommendation used an override.
func (l *Lifecycle) Status(episodeID string) (Status, error) {
	ep, err := store.MustGetAs[artifact.Episode](l.store, episodeID)
	if err != nil {
		return Status{}, err
	}
	recs, _, err := store.Resolve[artifact.Recommendation](l.store, ep.RecommendationIDs)
	if err != nil {
		return Status{}, err
	}
	st := Status{
		EpisodeID:      ep.ID,
		Title:          ep.Title,
		Stage:          StageOf(ep),
		Acted:          ep.Acted,
		ChosenOptionID: ep.ChosenOptionID,
		Counts:         Counts(ep),
	}
	for _, r := range recs {
		if r.OverrideUsed {
			st.ReviewRequired = true
		}
	}
	return st, nil
}

// Counts returns the number of ids the episode lists per artifact kind.
func Counts(ep artifact.Episode) map[string]int {
	return map[string]int{
		string(artifact.KindRawInput):       len(ep.RawInputIDs),
		string(artifact.KindEvidence):       len(ep.EvidenceIDs),
		string(artifact.KindObservation):    len(ep.ObservationIDs),
		string(artifact.KindInterpretation): len(ep.InterpretationIDs),
		string(artifact.KindOrientation):    len(ep.OrientationIDs),
		string(artifact.KindOption):         len(ep.OptionIDs),
		string(artifact.KindRecommendation): len(ep.RecommendationIDs),
		string(artifact.KindChoice):         len(ep.ChoiceIDs),
		string(artifact.KindOutcome):        len(ep.OutcomeIDs),
		string(artifact.KindReview):         len(ep.ReviewIDs),
		string(artifact.KindCalibration):    len(ep.CalibrationIDs),
	}
}
