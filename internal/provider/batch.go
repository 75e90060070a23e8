package provider

import "constitution/internal/invariant"

// Result is the verdict for one bundle of a batch.
type Result struct {
	Bundle     Bundle
	Violations []invariant.Violation
}

// Accepted reports whether the bundle passed every rule. Acceptance is all
// or nothing; a bundle with any violation is rejected wholesale.
func (r Result) Accepted() bool { return len(r.Violations) == 0 }

// ValidateBatch validates bundles in (provider_id, model_id, run_id) order.
// The input slice is not reordered.
func ValidateBatch(bundles []Bundle, idx EvidenceIndex) []Result {
	sorted := append([]Bundle(nil), bundles...)
	SortBundles(sorted)
	out := make([]Result, len(sorted))
	for i, b := range sorted {
		out[i] = Result{Bundle: b, Violations: Validate(b, idx)}
	}
	return out
}
