package format

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"constitution/internal/canon"
	"constitution/internal/display"
	"constitution/internal/engine"
	"constitution/internal/gate"
	"constitution/internal/invariant"
	"constitution/internal/lifecycle"
	"constitution/internal/provider"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, tb TableBuilder) error {
	_, err := fmt.Fprintln(w, tb.String())
	return err
}

// Report renders a validation report. An OK report renders as a single line
// outside JSON mode.
func Report(w io.Writer, m Mode, r engine.Report) error {
	if m == JSON {
		return writeJSON(w, r)
	}
	if r.OK() {
		_, err := fmt.Fprintf(w, "%s %s ok\n", BoolMark(true), r.Subject)
		return err
	}
	tb := NewTable(m)
	tb.Title(fmt.Sprintf("%s %s: %d violation(s)", BoolMark(false), r.Subject, len(r.Violations)))
	tb.Header("#", "Rule", "Check", "Message")
	for i, v := range r.Violations {
		tb.Row(i+1, v.Rule, display.Rule(string(v.Rule)), v.Message)
	}
	tb.Columns(ColumnConfig{Number: 4, MaxWidth: 100})
	if err := writeTable(w, tb); err != nil {
		return err
	}
	if len(r.ResolveErrors) == 0 {
		return nil
	}
	unresolved := NewTable(m)
	unresolved.Title("Unresolved references")
	unresolved.Header("Kind", "ID")
	for _, e := range r.ResolveErrors {
		unresolved.Row(e.ArtifactType, e.ArtifactID)
	}
	return writeTable(w, unresolved)
}

type verdictJSON struct {
	Class            gate.ActionClass   `json:"action_class"`
	Allowed          bool               `json:"allowed"`
	RequiresOverride bool               `json:"requires_override"`
	Reason           string             `json:"reason"`
	Risk             gate.Level         `json:"risk"`
	Uncertainty      gate.Level         `json:"uncertainty"`
	Permitted        []gate.ActionClass `json:"permitted"`
}

// Verdict renders a gate decision for the class requested in s.
func Verdict(w io.Writer, m Mode, s gate.Subject, v gate.Verdict) error {
	if m == JSON {
		return writeJSON(w, verdictJSON{
			Class: s.Class, Allowed: v.Allowed, RequiresOverride: v.RequiresOverride, Reason: v.Reason,
			Risk: v.Risk, Uncertainty: v.Uncertainty, Permitted: v.Permitted.Members(),
		})
	}
	tb := NewTable(m)
	tb.Header("Field", "Value")
	tb.Row("action class", s.Class)
	tb.Row("impact / reversibility / uncertainty", Scalar(s.Impact)+" / "+Scalar(s.Reversibility)+" / "+Scalar(s.Uncertainty))
	tb.Row("risk", display.Level(string(v.Risk)))
	tb.Row("uncertainty band", display.Level(string(v.Uncertainty)))
	tb.Row("permitted", v.Permitted)
	tb.Row("allowed", BoolMark(v.Allowed))
	tb.Row("requires override", BoolMark(v.RequiresOverride))
	if v.Reason != "" {
		tb.Row("reason", v.Reason)
	}
	return writeTable(w, tb)
}

type proposalJSON struct {
	Bundle     string                `json:"bundle"`
	Accepted   bool                  `json:"accepted"`
	Violations []invariant.Violation `json:"violations"`
}

// Proposals renders batch boundary results in the order given.
func Proposals(w io.Writer, m Mode, results []provider.Result) error {
	if m == JSON {
		out := make([]proposalJSON, len(results))
		for i, r := range results {
			vs := r.Violations
			if vs == nil {
				vs = []invariant.Violation{}
			}
			out[i] = proposalJSON{Bundle: r.Bundle.Key(), Accepted: r.Accepted(), Violations: vs}
		}
		return writeJSON(w, out)
	}
	tb := NewTable(m)
	tb.Header("Bundle", "Accepted", "Violations")
	accepted := 0
	for _, r := range results {
		lines := make([]string, len(r.Violations))
		for i, v := range r.Violations {
			lines[i] = Truncate(v.String(), 120)
		}
		if r.Accepted() {
			accepted++
		}
		sep := "\n"
		if m == Markdown {
			sep = "<br>"
		}
		tb.Row(r.Bundle.Key(), BoolMark(r.Accepted()), strings.Join(lines, sep))
	}
	tb.Footer("TOTAL", fmt.Sprintf("%d/%d", accepted, len(results)), "")
	return writeTable(w, tb)
}

// Status renders an episode status with counts sorted by kind.
func Status(w io.Writer, m Mode, st lifecycle.Status) error {
	if m == JSON {
		return writeJSON(w, st)
	}
	tb := NewTable(m)
	tb.Title(fmt.Sprintf("%s (%s): %s", st.EpisodeID, st.Title, display.Stage(st.Stage.String())))
	tb.Header("Kind", "Count")
	kinds := make([]string, 0, len(st.Counts))
	for k := range st.Counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		tb.Row(k, st.Counts[k])
	}
	tb.Footer("acted", BoolMark(st.Acted))
	tb.Columns(ColumnConfig{Number: 2, Align: AlignRight})
	if err := writeTable(w, tb); err != nil {
		return err
	}
	if st.ReviewRequired {
		_, err := fmt.Fprintln(w, "review required: a recommendation used an override")
		return err
	}
	return nil
}

type canonJSON struct {
	EpisodeID        string         `json:"episode_id"`
	RecommendationID string         `json:"recommendation_id,omitempty"`
	Accepted         []string       `json:"accepted"`
	Rejected         []proposalJSON `json:"rejected"`
	Report           engine.Report  `json:"report"`
}

// Canon renders a canonicalization run: the rejected bundles, then the
// materialized episode and its report.
func Canon(w io.Writer, m Mode, res canon.Result) error {
	recID := ""
	if res.Recommendation != nil {
		recID = res.Recommendation.ID
	}
	if m == JSON {
		out := canonJSON{
			EpisodeID: res.Episode.ID, RecommendationID: recID,
			Accepted: append([]string{}, res.Accepted...), Rejected: []proposalJSON{}, Report: res.Report,
		}
		for _, r := range res.Rejected {
			out.Rejected = append(out.Rejected, proposalJSON{Bundle: r.Bundle.Key(), Violations: r.Violations})
		}
		return writeJSON(w, out)
	}
	if len(res.Rejected) > 0 {
		if err := Proposals(w, m, res.Rejected); err != nil {
			return err
		}
	}
	tb := NewTable(m)
	tb.Header("Field", "Value")
	tb.Row("episode", res.Episode.ID)
	if recID == "" {
		recID = "-"
	}
	tb.Row("recommendation", recID)
	tb.Row("accepted", List(res.Accepted))
	tb.Row("options", List(res.Episode.OptionIDs))
	if err := writeTable(w, tb); err != nil {
		return err
	}
	return Report(w, m, res.Report)
}
