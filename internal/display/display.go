// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output and markdown reports.
// Keep raw codes for JSON fields, map keys, and equality comparisons.
package display

import "strings"

// --- Invariant rules ---

var rules = map[string]string{
	"INV-REF-001": "Reference resolves",

	"INV-EVD-001": "Evidence has a source",
	"INV-EVD-002": "Evidence source has a locator",
	"INV-OBS-001": "Observation is typed",
	"INV-OBS-002": "Observation has provenance",
	"INV-INT-001": "Interpretation is typed",
	"INV-INT-002": "Interpretation is grounded",

	"INV-REC-001": "Recommendation has an orientation",
	"INV-REC-002": "Recommendation is ranked",
	"INV-REC-003": "Recommendation has provenance",
	"INV-REC-004": "Ranked option exists",
	"INV-REC-005": "Option provenance within recommendation",
	"INV-REC-006": "Ranks are contiguous",

	"INV-EXE-001": "Execute option is auditable",
	"INV-EXE-002": "Execute option has an orientation",
	"INV-EXE-003": "Execute option matches orientation",
	"INV-EXE-004": "Execute option states uncertainty",
	"INV-ACT-001": "Action class declared",
	"INV-ACT-002": "Action class within gate",

	"INV-CHO-001": "Acted episode has a choice",
	"INV-CHO-002": "Choice references resolve",
	"INV-CHO-003": "Chosen option was ranked",
	"INV-OUT-001": "Acted episode has an outcome",
	"INV-OUT-002": "Outcome references resolve",
	"INV-OUT-003": "Outcome option was ranked",
	"INV-REV-001": "Override has a review",
	"INV-REV-002": "Review audits the override",
	"INV-CAL-001": "Calibration belongs to episode",
	"INV-CAL-002": "Calibration review exists",
	"INV-CAL-003": "Calibration outcomes exist",

	"INV-PS-001": "Proposal header complete",
	"INV-PS-002": "Proposal evidence exists",
	"INV-PS-003": "Override suggestion not executable",
	"INV-PA-001": "No forbidden artifact types",
	"INV-PA-002": "Proposal item complete",
	"INV-PR-001": "Ranked proposal option exists",
	"INV-PR-002": "Proposal ranks are a total order",
}

// Rule returns the human-readable name for an invariant code.
// Unknown codes are returned as-is.
func Rule(code string) string {
	if name, ok := rules[code]; ok {
		return name
	}
	return code
}

// RuleWithCode returns "Acted episode has a choice (INV-CHO-001)" format.
func RuleWithCode(code string) string {
	if name, ok := rules[code]; ok {
		return name + " (" + code + ")"
	}
	return code
}

// --- Lifecycle stages ---

var stages = map[string]string{
	"drafted":        "Drafted",
	"recommended":    "Recommended",
	"acted":          "Acted",
	"outcome_logged": "Outcome logged",
	"reviewed":       "Reviewed",
	"calibrated":     "Calibrated",
}

// Stage returns the human-readable name for a lifecycle stage code.
// Unknown codes are returned as-is.
func Stage(code string) string {
	if name, ok := stages[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

// --- Gate bands ---

var levels = map[string]string{
	"LOW":  "Low",
	"MED":  "Medium",
	"HIGH": "High",
}

// Level returns "High" for "HIGH" and so on.
func Level(code string) string {
	if name, ok := levels[strings.ToUpper(code)]; ok {
		return name
	}
	return code
}
