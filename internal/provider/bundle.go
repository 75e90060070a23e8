// Package provider validates proposal bundles produced by untrusted
// reasoning components before anything canonical is derived from them.
//
// Every input shape (loose maps from JSON or YAML, or a typed ProposalSet)
// is normalized once into a Bundle; the rules only ever see a Bundle.
package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Item kinds as they appear in violation messages.
const (
	KindInterpretation     = "Interpretation"
	KindOption             = "Option"
	KindRankedOption       = "RankedOption"
	KindOverrideSuggestion = "OverrideSuggestion"
)

// Top-level keys naming artifacts only the kernel may create.
var forbiddenFields = []string{
	"calibration",
	"calibration_note",
	"choice",
	"choice_record",
	"outcome",
	"override",
	"recommendation",
	"recommendations",
	"review",
	"review_record",
}

// Keys that would make an override suggestion directly executable.
var executableOverrideFields = []string{"apply_override", "approved_by", "expires_at", "override_id"}

// Item is one action-relevant sub-artifact of a bundle. Pointer fields are
// nil when the source did not declare a usable value.
type Item struct {
	Kind             string
	Label            string
	ID               string
	Confidence       *float64
	UncertaintyLevel *float64
	// EvidenceRefsDeclared is false when evidence_refs was absent or not a list.
	EvidenceRefsDeclared bool
	EvidenceRefs         []string
	Limits               string
	// Rank is nil unless the source declared an integer rank.
	Rank             *int
	OptionRef        string
	ExecutableFields []string
}

// Bundle is the normalized proposal shape the boundary rules operate on.
type Bundle struct {
	ProviderID  string
	ModelID     string
	RunID       string
	Limits      string
	Temperature *float64
	// ForbiddenFields lists the kernel-owned keys present, sorted.
	ForbiddenFields []string

	Interpretations     []Item
	Options             []Item
	RankedOptions       []Item
	OverrideSuggestions []Item
}

// Key is the batch ordering key.
func (b Bundle) Key() string { return b.ProviderID + "/" + b.ModelID + "/" + b.RunID }

// Items returns every sub-artifact in rule-evaluation order.
func (b Bundle) Items() []Item {
	out := make([]Item, 0, len(b.Interpretations)+len(b.Options)+len(b.RankedOptions)+len(b.OverrideSuggestions))
	out = append(out, b.Interpretations...)
	out = append(out, b.Options...)
	out = append(out, b.RankedOptions...)
	return append(out, b.OverrideSuggestions...)
}

// Decode parses a JSON or YAML proposal document into a Bundle. Content
// starting with "{" is treated as JSON.
func Decode(data []byte) (Bundle, error) {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return ParseJSON(data)
	}
	return ParseYAML(data)
}

// ParseJSON decodes a JSON object into a Bundle. Numbers keep their literal
// form so that 1 and 1.0 remain distinguishable as ranks.
func ParseJSON(data []byte) (Bundle, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return Bundle{}, fmt.Errorf("parse proposal json: %w", err)
	}
	return FromMap(m), nil
}

// ParseYAML decodes a YAML mapping into a Bundle.
func ParseYAML(data []byte) (Bundle, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Bundle{}, fmt.Errorf("parse proposal yaml: %w", err)
	}
	return FromMap(m), nil
}

// FromMap normalizes a loosely typed proposal. Values of the wrong type are
// treated as undeclared rather than rejected, so the rules report them.
func FromMap(m map[string]any) Bundle {
	b := Bundle{
		ProviderID: str(m["provider_id"]),
		ModelID:    str(m["model_id"]),
		RunID:      str(m["run_id"]),
		Limits:     str(m["limits"]),
	}
	if s, ok := asMap(m["sampling"]); ok {
		b.Temperature = number(s["temperature"])
	}
	for _, f := range forbiddenFields {
		if v, ok := m[f]; ok && v != nil {
			b.ForbiddenFields = append(b.ForbiddenFields, f)
		}
	}
	for _, raw := range list(m["interpretations"]) {
		it := itemFromMap(KindInterpretation, raw)
		it.ID = str(field(raw, "interpretation_id"))
		it.Label = labelOr(it.ID)
		b.Interpretations = append(b.Interpretations, it)
	}
	for _, raw := range list(m["options"]) {
		it := itemFromMap(KindOption, raw)
		it.ID = ref(field(raw, "option_id"))
		it.Label = labelOr(it.ID)
		b.Options = append(b.Options, it)
	}
	for _, raw := range list(m["ranked_options"]) {
		it := itemFromMap(KindRankedOption, raw)
		it.Rank = integer(field(raw, "rank"))
		it.OptionRef = ref(field(raw, "option_ref"))
		it.Label = fmt.Sprintf("rank=%s, option_ref=%s", display(field(raw, "rank")), display(field(raw, "option_ref")))
		b.RankedOptions = append(b.RankedOptions, it)
	}
	for _, raw := range list(m["override_suggestions"]) {
		it := itemFromMap(KindOverrideSuggestion, raw)
		it.ID = str(field(raw, "invariant_id"))
		it.Label = "invariant=" + display(field(raw, "invariant_id"))
		if mm, ok := asMap(raw); ok {
			for _, k := range executableOverrideFields {
				if _, present := mm[k]; present {
					it.ExecutableFields = append(it.ExecutableFields, k)
				}
			}
		}
		b.OverrideSuggestions = append(b.OverrideSuggestions, it)
	}
	return b
}

func itemFromMap(kind string, raw any) Item {
	it := Item{Kind: kind}
	it.Confidence = number(field(raw, "confidence"))
	if u, ok := asMap(field(raw, "uncertainty")); ok {
		it.UncertaintyLevel = number(u["level"])
	}
	if refs, ok := field(raw, "evidence_refs").([]any); ok {
		it.EvidenceRefsDeclared = true
		for _, r := range refs {
			it.EvidenceRefs = append(it.EvidenceRefs, display(r))
		}
	}
	it.Limits = str(field(raw, "limits"))
	return it
}

func labelOr(id string) string {
	if id == "" {
		return "<?>"
	}
	return id
}

func field(raw any, key string) any {
	m, ok := asMap(raw)
	if !ok {
		return nil
	}
	return m[key]
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[fmt.Sprint(k)] = vv
		}
		return out, true
	}
	return nil, false
}

func list(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out
	}
	return []any{v}
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// ref reads an option id or reference. Non-string scalars are rendered, so
// option_ref 7 still matches option_id 7 and is checked like any other id.
func ref(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	}
	return fmt.Sprint(v)
}

func display(v any) string {
	if v == nil {
		return "<?>"
	}
	return fmt.Sprint(v)
}

func number(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

func integer(v any) *int {
	var n int
	switch t := v.(type) {
	case int:
		n = t
	case int64:
		n = int(t)
	case uint64:
		n = int(t)
	case json.Number:
		parsed, err := strconv.Atoi(t.String())
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	return &n
}

// Less orders bundles by (provider_id, model_id, run_id).
func Less(a, b Bundle) bool {
	if a.ProviderID != b.ProviderID {
		return a.ProviderID < b.ProviderID
	}
	if a.ModelID != b.ModelID {
		return a.ModelID < b.ModelID
	}
	return a.RunID < b.RunID
}

// SortBundles orders bundles by Less in place.
func SortBundles(bs []Bundle) {
	sort.SliceStable(bs, func(i, j int) bool { return Less(bs[i], bs[j]) })
}
