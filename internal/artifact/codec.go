package artifact

import (
	"encoding/json"
	"fmt"
)

// Validator is implemented by artifacts with local well-formedness rules.
type Validator interface {
	Validate() error
}

// Clone returns a copy of a that shares no slices or maps with it.
func Clone(a Artifact) Artifact {
	switch v := a.(type) {
	case RawInput:
		return v.clone()
	case Evidence:
		return v.clone()
	case Observation:
		return v.clone()
	case Interpretation:
		return v.clone()
	case Orientation:
		return v.clone()
	case Option:
		return v.clone()
	case Recommendation:
		return v.clone()
	case Outcome:
		return v.clone()
	case Review:
		return v.clone()
	case CalibrationNote:
		return v.clone()
	case Episode:
		return v.clone()
	}
	return a
}

// Encode serializes an artifact for persistence.
func Encode(a Artifact) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", a.ArtifactKind(), a.ArtifactID(), err)
	}
	return data, nil
}

// Decode restores an artifact of the given kind from Encode output.
func Decode(kind Kind, data []byte) (Artifact, error) {
	switch kind {
	case KindRawInput:
		return decodeAs[RawInput](kind, data)
	case KindEvidence:
		return decodeAs[Evidence](kind, data)
	case KindObservation:
		return decodeAs[Observation](kind, data)
	case KindInterpretation:
		return decodeAs[Interpretation](kind, data)
	case KindOrientation:
		return decodeAs[Orientation](kind, data)
	case KindOption:
		return decodeAs[Option](kind, data)
	case KindRecommendation:
		return decodeAs[Recommendation](kind, data)
	case KindChoice:
		return decodeAs[Choice](kind, data)
	case KindOutcome:
		return decodeAs[Outcome](kind, data)
	case KindReview:
		return decodeAs[Review](kind, data)
	case KindCalibration:
		return decodeAs[CalibrationNote](kind, data)
	case KindEpisode:
		return decodeAs[Episode](kind, data)
	}
	return nil, fmt.Errorf("decode: unknown artifact kind %q", kind)
}

func decodeAs[T Artifact](kind Kind, data []byte) (Artifact, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return v, nil
}

// ParseKind resolves a kind name as used in documents and tool inputs.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", invalidf("unknown artifact kind %q", s)
}
