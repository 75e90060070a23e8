package artifact

import "strings"

// InfoType classifies the information a claim carries. It types content,
// not artifacts.
type InfoType string

const (
	// Observational (reality-anchored)
	InfoFact        InfoType = "fact"
	InfoMeasurement InfoType = "measurement"
	InfoEvent       InfoType = "event"
	InfoTestimony   InfoType = "testimony"

	// Interpretive
	InfoClaim       InfoType = "claim"
	InfoExplanation InfoType = "explanation"
	InfoHypothesis  InfoType = "hypothesis"
	InfoFrame       InfoType = "frame"

	// Normative
	InfoValue      InfoType = "value"
	InfoPreference InfoType = "preference"
	InfoConstraint InfoType = "constraint"

	// Predictive
	InfoForecast InfoType = "forecast"
	InfoScenario InfoType = "scenario"
)

var infoTypes = []InfoType{
	InfoFact, InfoMeasurement, InfoEvent, InfoTestimony,
	InfoClaim, InfoExplanation, InfoHypothesis, InfoFrame,
	InfoValue, InfoPreference, InfoConstraint,
	InfoForecast, InfoScenario,
}

// Observational reports whether t may type an Observation.
func (t InfoType) Observational() bool {
	switch t {
	case InfoFact, InfoMeasurement, InfoEvent, InfoTestimony:
		return true
	}
	return false
}

// Interpretive reports whether t may type an Interpretation.
func (t InfoType) Interpretive() bool {
	switch t {
	case InfoClaim, InfoExplanation, InfoHypothesis, InfoFrame:
		return true
	}
	return false
}

// ParseInfoType is the ingestion-boundary parser for InfoType.
func ParseInfoType(s string) (InfoType, error) { return parseEnum("info type", s, infoTypes) }

func (t *InfoType) UnmarshalText(b []byte) error { return unmarshalEnum(t, b, ParseInfoType) }

// UncertaintyKind names the source of an uncertainty.
type UncertaintyKind string

const (
	UncertaintyMissingData UncertaintyKind = "missing_data"
	UncertaintyAmbiguity   UncertaintyKind = "ambiguity"
	UncertaintyVariance    UncertaintyKind = "variance"
	UncertaintyModelError  UncertaintyKind = "model_error"
	UncertaintyAdversarial UncertaintyKind = "adversarial"
	UncertaintyOther       UncertaintyKind = "other"
)

var uncertaintyKinds = []UncertaintyKind{
	UncertaintyMissingData, UncertaintyAmbiguity, UncertaintyVariance,
	UncertaintyModelError, UncertaintyAdversarial, UncertaintyOther,
}

func ParseUncertaintyKind(s string) (UncertaintyKind, error) {
	return parseEnum("uncertainty kind", s, uncertaintyKinds)
}

func (k *UncertaintyKind) UnmarshalText(b []byte) error {
	return unmarshalEnum(k, b, ParseUncertaintyKind)
}

// OptionKind distinguishes acting from hedging and gathering information.
type OptionKind string

const (
	OptionExecute       OptionKind = "execute"
	OptionHedge         OptionKind = "hedge"
	OptionInfoGathering OptionKind = "info_gathering"
)

var optionKinds = []OptionKind{OptionExecute, OptionHedge, OptionInfoGathering}

func ParseOptionKind(s string) (OptionKind, error) { return parseEnum("option kind", s, optionKinds) }

func (k *OptionKind) UnmarshalText(b []byte) error { return unmarshalEnum(k, b, ParseOptionKind) }

// ChoiceBy records who committed to an option.
type ChoiceBy string

const (
	ChosenByHuman  ChoiceBy = "human"
	ChosenByPolicy ChoiceBy = "policy"
	ChosenByModule ChoiceBy = "module"
)

var choiceBys = []ChoiceBy{ChosenByHuman, ChosenByPolicy, ChosenByModule}

func ParseChoiceBy(s string) (ChoiceBy, error) { return parseEnum("chooser", s, choiceBys) }

func (c *ChoiceBy) UnmarshalText(b []byte) error { return unmarshalEnum(c, b, ParseChoiceBy) }

func parseEnum[T ~string](what, s string, allowed []T) (T, error) {
	v := T(strings.ToLower(strings.TrimSpace(s)))
	for _, a := range allowed {
		if a == v {
			return a, nil
		}
	}
	var zero T
	return zero, invalidf("unknown %s %q", what, s)
}

func unmarshalEnum[T ~string](dst *T, b []byte, parse func(string) (T, error)) error {
	v, err := parse(string(b))
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
