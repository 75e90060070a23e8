// Package lifecycle drafts an episode from raw input and drives it through
// its decision cycle: choose, act, log outcomes, review and calibrate. Every
// transition appends to the episode and re-validates it.
package lifecycle

import "constitution/internal/artifact"

// Stage is derived from an episode's contents; it is never stored.
type Stage int

const (
	Drafted Stage = iota
	Recommended
	Acted
	OutcomeLogged
	Reviewed
	Calibrated
)

var stageNames = [...]string{"drafted", "recommended", "acted", "outcome_logged", "reviewed", "calibrated"}

func (s Stage) String() string {
	if s < Drafted || s > Calibrated {
		return "unknown"
	}
	return stageNames[s]
}

// MarshalText renders the stage name in reports.
func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// StageOf returns the furthest stage ep has reached.
func StageOf(ep artifact.Episode) Stage {
	switch {
	case len(ep.CalibrationIDs) > 0:
		return Calibrated
	case len(ep.ReviewIDs) > 0:
		return Reviewed
	case len(ep.OutcomeIDs) > 0:
		return OutcomeLogged
	case ep.Acted:
		return Acted
	case len(ep.RecommendationIDs) > 0:
		return Recommended
	}
	return Drafted
}
