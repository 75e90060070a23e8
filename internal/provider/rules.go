package provider

import (
	"strings"

	"constitution/internal/invariant"
)

// EvidenceIndex answers whether an evidence id is known to the caller.
type EvidenceIndex interface {
	HasEvidence(id string) bool
}

// EvidenceSet is an in-memory EvidenceIndex.
type EvidenceSet map[string]struct{}

// NewEvidenceSet returns a set holding ids.
func NewEvidenceSet(ids ...string) EvidenceSet {
	s := make(EvidenceSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s EvidenceSet) HasEvidence(id string) bool {
	_, ok := s[id]
	return ok
}

// Validate runs every boundary rule against b in a fixed order. It never
// fails; an empty result means the bundle may be canonicalized. A nil idx
// resolves nothing.
func Validate(b Bundle, idx EvidenceIndex) []invariant.Violation {
	var out []invariant.Violation
	out = append(out, checkHeader(b)...)
	out = append(out, checkForbidden(b)...)
	out = append(out, checkCompleteness(b)...)
	out = append(out, checkEvidenceRefs(b, idx)...)
	out = append(out, checkRankedOptionRefs(b)...)
	out = append(out, checkRankOrder(b)...)
	out = append(out, checkNonExecutable(b)...)
	return out
}

func checkHeader(b Bundle) []invariant.Violation {
	var missing []string
	if b.ProviderID == "" {
		missing = append(missing, "provider_id")
	}
	if b.ModelID == "" {
		missing = append(missing, "model_id")
	}
	if b.RunID == "" {
		missing = append(missing, "run_id")
	}
	if b.Limits == "" {
		missing = append(missing, "limits")
	}
	if b.Temperature == nil {
		missing = append(missing, "sampling.temperature")
	}
	if len(missing) == 0 {
		return nil
	}
	return []invariant.Violation{invariant.New(invariant.ProviderHeader,
		"ProposalSet is missing required header fields: %s", strings.Join(missing, ", "))}
}

func checkForbidden(b Bundle) []invariant.Violation {
	if len(b.ForbiddenFields) == 0 {
		return nil
	}
	return []invariant.Violation{invariant.New(invariant.ProviderForbiddenField,
		"ProposalSet contains forbidden artifact type: %s", strings.Join(b.ForbiddenFields, ", "))}
}

func checkCompleteness(b Bundle) []invariant.Violation {
	var out []invariant.Violation
	for _, it := range b.Items() {
		var missing []string
		if it.Confidence == nil {
			missing = append(missing, "confidence")
		}
		if it.UncertaintyLevel == nil {
			missing = append(missing, "uncertainty.level")
		}
		if !it.EvidenceRefsDeclared {
			missing = append(missing, "evidence_refs")
		}
		if it.Limits == "" {
			missing = append(missing, "limits")
		}
		if len(missing) > 0 {
			out = append(out, invariant.New(invariant.ProviderItemCompleteness,
				"%s %s missing required fields: %s", it.Kind, it.Label, strings.Join(missing, ", ")))
		}
	}
	return out
}

func checkEvidenceRefs(b Bundle, idx EvidenceIndex) []invariant.Violation {
	var out []invariant.Violation
	for _, it := range b.Items() {
		var missing []string
		for _, ref := range it.EvidenceRefs {
			if idx == nil || !idx.HasEvidence(ref) {
				missing = append(missing, ref)
			}
		}
		if len(missing) > 0 {
			out = append(out, invariant.New(invariant.ProviderEvidenceRefs,
				"%s %s references unknown evidence_id: %s", it.Kind, it.Label, strings.Join(missing, ", ")))
		}
	}
	return out
}

func checkRankedOptionRefs(b Bundle) []invariant.Violation {
	ids := make(map[string]bool, len(b.Options))
	for _, o := range b.Options {
		if o.ID != "" {
			ids[o.ID] = true
		}
	}
	var out []invariant.Violation
	for _, ro := range b.RankedOptions {
		if ro.OptionRef != "" && !ids[ro.OptionRef] {
			out = append(out, invariant.New(invariant.ProviderRankedOptionRef,
				"RankedOption references missing option_id: %s", ro.OptionRef))
		}
	}
	return out
}

// checkRankOrder requires integer ranks covering exactly 1..N and distinct
// option references.
func checkRankOrder(b Bundle) []invariant.Violation {
	n := len(b.RankedOptions)
	if n == 0 {
		return nil
	}
	seenRank := make(map[int]bool, n)
	seenRef := make(map[string]bool, n)
	ok := true
	for _, ro := range b.RankedOptions {
		if ro.Rank == nil || *ro.Rank < 1 || *ro.Rank > n || seenRank[*ro.Rank] || seenRef[ro.OptionRef] {
			ok = false
			break
		}
		seenRank[*ro.Rank] = true
		seenRef[ro.OptionRef] = true
	}
	if ok {
		return nil
	}
	return []invariant.Violation{invariant.New(invariant.ProviderRankOrder,
		"RankedOptions must be a strict total order (duplicates or gaps found)")}
}

func checkNonExecutable(b Bundle) []invariant.Violation {
	var out []invariant.Violation
	for _, s := range b.OverrideSuggestions {
		if len(s.ExecutableFields) > 0 {
			out = append(out, invariant.New(invariant.ProviderExecutable,
				"OverrideSuggestion %s contains executable override fields: %s", s.Label, strings.Join(s.ExecutableFields, ", ")))
		}
	}
	return out
}
