package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProposalUncertainty is the provider-side uncertainty container.
type ProposalUncertainty struct {
	Level float64 `json:"level" yaml:"level"`
}

// Sampling carries the provider's sampling metadata.
type Sampling struct {
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

type ProposedInterpretation struct {
	ID           string              `json:"interpretation_id" yaml:"interpretation_id"`
	InfoType     string              `json:"info_type" yaml:"info_type"`
	Title        string              `json:"title,omitempty" yaml:"title,omitempty"`
	Text         string              `json:"text" yaml:"text"`
	Confidence   float64             `json:"confidence" yaml:"confidence"`
	Uncertainty  ProposalUncertainty `json:"uncertainty" yaml:"uncertainty"`
	EvidenceRefs []string            `json:"evidence_refs" yaml:"evidence_refs"`
	Limits       string              `json:"limits" yaml:"limits"`
}

type ProposedOption struct {
	ID            string              `json:"option_id" yaml:"option_id"`
	Kind          string              `json:"kind" yaml:"kind"`
	Title         string              `json:"title" yaml:"title"`
	Description   string              `json:"description,omitempty" yaml:"description,omitempty"`
	ActionClass   string              `json:"action_class,omitempty" yaml:"action_class,omitempty"`
	Impact        float64             `json:"impact" yaml:"impact"`
	Reversibility float64             `json:"reversibility" yaml:"reversibility"`
	Confidence    float64             `json:"confidence" yaml:"confidence"`
	Uncertainty   ProposalUncertainty `json:"uncertainty" yaml:"uncertainty"`
	EvidenceRefs  []string            `json:"evidence_refs" yaml:"evidence_refs"`
	Limits        string              `json:"limits" yaml:"limits"`
}

// ProposedRankedOption is ranking input, not a kernel recommendation.
// OptionRef names a ProposedOption.ID in the same set.
type ProposedRankedOption struct {
	Rank         int                 `json:"rank" yaml:"rank"`
	OptionRef    string              `json:"option_ref" yaml:"option_ref"`
	Rationale    string              `json:"rationale" yaml:"rationale"`
	Title        string              `json:"title,omitempty" yaml:"title,omitempty"`
	Confidence   float64             `json:"confidence" yaml:"confidence"`
	Uncertainty  ProposalUncertainty `json:"uncertainty" yaml:"uncertainty"`
	EvidenceRefs []string            `json:"evidence_refs" yaml:"evidence_refs"`
	Limits       string              `json:"limits" yaml:"limits"`
}

// OverrideSuggestion says an override may be warranted. It cannot carry
// the fields that would make it executable.
type OverrideSuggestion struct {
	InvariantID  string              `json:"invariant_id" yaml:"invariant_id"`
	Reason       string              `json:"reason" yaml:"reason"`
	Scope        string              `json:"scope" yaml:"scope"`
	Confidence   float64             `json:"confidence" yaml:"confidence"`
	Uncertainty  ProposalUncertainty `json:"uncertainty" yaml:"uncertainty"`
	EvidenceRefs []string            `json:"evidence_refs" yaml:"evidence_refs"`
	Limits       string              `json:"limits" yaml:"limits"`
}

// ProposalSet is the typed form a Provider returns.
type ProposalSet struct {
	ProviderID string   `json:"provider_id" yaml:"provider_id"`
	ModelID    string   `json:"model_id" yaml:"model_id"`
	RunID      string   `json:"run_id" yaml:"run_id"`
	Sampling   Sampling `json:"sampling" yaml:"sampling"`
	Limits     string   `json:"limits" yaml:"limits"`

	Interpretations     []ProposedInterpretation `json:"interpretations,omitempty" yaml:"interpretations,omitempty"`
	Options             []ProposedOption         `json:"options,omitempty" yaml:"options,omitempty"`
	RankedOptions       []ProposedRankedOption   `json:"ranked_options,omitempty" yaml:"ranked_options,omitempty"`
	OverrideSuggestions []OverrideSuggestion     `json:"override_suggestions,omitempty" yaml:"override_suggestions,omitempty"`

	// Source is the document normalized before the typed decode. When set,
	// Bundle returns it, so keys the typed form drops still reach the rules.
	Source *Bundle `json:"-" yaml:"-"`
}

// DecodeProposalSet parses a typed proposal set from JSON or YAML and keeps
// the loosely normalized document in Source for boundary validation.
func DecodeProposalSet(data []byte) (ProposalSet, error) {
	raw, err := Decode(data)
	if err != nil {
		return ProposalSet{}, err
	}
	var ps ProposalSet
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		if err := json.Unmarshal(data, &ps); err != nil {
			return ProposalSet{}, fmt.Errorf("parse proposal set json: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &ps); err != nil {
		return ProposalSet{}, fmt.Errorf("parse proposal set yaml: %w", err)
	}
	ps.Source = &raw
	return ps, nil
}

// Bundle returns Source when the set was decoded from a document. Otherwise
// it normalizes the typed fields, which always count as declared, so only
// string emptiness and evidence resolution can fail for them.
func (ps ProposalSet) Bundle() Bundle {
	if ps.Source != nil {
		return *ps.Source
	}
	b := Bundle{
		ProviderID:  strings.TrimSpace(ps.ProviderID),
		ModelID:     strings.TrimSpace(ps.ModelID),
		RunID:       strings.TrimSpace(ps.RunID),
		Limits:      strings.TrimSpace(ps.Limits),
		Temperature: ps.Sampling.Temperature,
	}
	for _, in := range ps.Interpretations {
		it := typedItem(KindInterpretation, in.Confidence, in.Uncertainty, in.EvidenceRefs, in.Limits)
		it.ID = in.ID
		it.Label = labelOr(in.ID)
		b.Interpretations = append(b.Interpretations, it)
	}
	for _, o := range ps.Options {
		it := typedItem(KindOption, o.Confidence, o.Uncertainty, o.EvidenceRefs, o.Limits)
		it.ID = o.ID
		it.Label = labelOr(o.ID)
		b.Options = append(b.Options, it)
	}
	for _, ro := range ps.RankedOptions {
		it := typedItem(KindRankedOption, ro.Confidence, ro.Uncertainty, ro.EvidenceRefs, ro.Limits)
		rank := ro.Rank
		it.Rank = &rank
		it.OptionRef = ro.OptionRef
		it.Label = fmt.Sprintf("rank=%d, option_ref=%s", ro.Rank, labelOr(ro.OptionRef))
		b.RankedOptions = append(b.RankedOptions, it)
	}
	for _, s := range ps.OverrideSuggestions {
		it := typedItem(KindOverrideSuggestion, s.Confidence, s.Uncertainty, s.EvidenceRefs, s.Limits)
		it.ID = s.InvariantID
		it.Label = "invariant=" + labelOr(s.InvariantID)
		b.OverrideSuggestions = append(b.OverrideSuggestions, it)
	}
	return b
}

func typedItem(kind string, conf float64, unc ProposalUncertainty, refs []string, limits string) Item {
	c, l := conf, unc.Level
	return Item{
		Kind:                 kind,
		Confidence:           &c,
		UncertaintyLevel:     &l,
		EvidenceRefsDeclared: true,
		EvidenceRefs:         append([]string(nil), refs...),
		Limits:               strings.TrimSpace(limits),
	}
}

// EvidenceRefs returns every evidence id the set cites, in order, once each.
func (ps ProposalSet) EvidenceRefs() []string {
	var out []string
	seen := map[string]bool{}
	for _, it := range ps.Bundle().Items() {
		for _, r := range it.EvidenceRefs {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out
}
