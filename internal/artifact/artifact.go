// Package artifact defines the immutable records of the decision graph.
//
// Every artifact carries a prefixed identifier assigned at creation. Builder
// methods (With*, Add*) use value receivers and return a modified copy; slices
// are never shared between the receiver and the result.
package artifact

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ErrInvalid is wrapped by every local construction failure.
var ErrInvalid = errors.New("artifact: invalid")

// Kind is the type tag that partitions the store.
type Kind string

const (
	KindRawInput       Kind = "RawInput"
	KindEvidence       Kind = "Evidence"
	KindObservation    Kind = "Observation"
	KindInterpretation Kind = "Interpretation"
	KindOrientation    Kind = "Orientation"
	KindOption         Kind = "Option"
	KindRecommendation Kind = "Recommendation"
	KindChoice         Kind = "Choice"
	KindOutcome        Kind = "Outcome"
	KindReview         Kind = "Review"
	KindCalibration    Kind = "CalibrationNote"
	KindEpisode        Kind = "Episode"
)

// Kinds lists every artifact kind in graph order.
var Kinds = []Kind{
	KindRawInput, KindEvidence, KindObservation, KindInterpretation,
	KindOrientation, KindOption, KindRecommendation, KindChoice,
	KindOutcome, KindReview, KindCalibration, KindEpisode,
}

// Artifact is implemented by every node type in the decision graph.
type Artifact interface {
	ArtifactID() string
	ArtifactKind() Kind
}

// Identifier prefixes. They route to a store partition and carry no other meaning.
const (
	prefixRawInput       = "raw"
	prefixEvidence       = "ev"
	prefixObservation    = "obs"
	prefixInterpretation = "int"
	prefixOrientation    = "ori"
	prefixOption         = "opt"
	prefixRecommendation = "rec"
	prefixChoice         = "ch"
	prefixOutcome        = "out"
	prefixReview         = "rev"
	prefixCalibration    = "cal"
	prefixEpisode        = "ep"
)

// NewID returns "<prefix>_<32 hex chars>".
func NewID(prefix string) string {
	u := uuid.New()
	return prefix + "_" + hex.EncodeToString(u[:])
}

// now is replaced in tests that need stable timestamps.
var now = func() time.Time { return time.Now().UTC() }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

// checkUnit rejects values outside [0,1], including NaN.
func checkUnit(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return invalidf("%s must be in [0,1], got %v", name, v)
	}
	return nil
}

// Clamp01 bounds adapter-supplied scalars to [0,1]. Core constructors never
// clamp. NaN passes through so that construction still rejects it.
func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// appendUnique returns a fresh slice holding base followed by each non-empty
// item not already present. Order of first appearance is kept.
func appendUnique(base []string, items ...string) []string {
	out := make([]string, 0, len(base)+len(items))
	seen := make(map[string]struct{}, len(base)+len(items))
	for _, s := range base {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, s := range items {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneUncertainties(in []Uncertainty) []Uncertainty {
	if in == nil {
		return nil
	}
	out := make([]Uncertainty, len(in))
	copy(out, in)
	return out
}

func validateUncertainties(owner string, us []Uncertainty) error {
	for i, u := range us {
		if err := u.Validate(); err != nil {
			return fmt.Errorf("%s uncertainty[%d]: %w", owner, i, err)
		}
	}
	return nil
}
