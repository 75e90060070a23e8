package invariant

import (
	"sort"
	"strings"

	"constitution/internal/artifact"
	"constitution/internal/gate"
)

// The checks below are pure: callers resolve references first and pass the
// resolved artifacts in. Missing entries in the lookup maps are skipped,
// since the caller reports them as resolution failures.

// CheckEvidence requires at least one source and a locator on every source.
func CheckEvidence(evs []artifact.Evidence) []Violation {
	var out []Violation
	for _, e := range evs {
		if len(e.Sources) == 0 {
			out = append(out, New(EvidenceSources, "Evidence %s has no sources", e.ID))
			continue
		}
		for i, s := range e.Sources {
			if strings.TrimSpace(s.URI) == "" {
				out = append(out, New(EvidenceLocator, "Evidence %s source[%d] has an empty locator", e.ID, i))
			}
		}
	}
	return out
}

// CheckObservations requires observational typing and provenance.
func CheckObservations(obs []artifact.Observation) []Violation {
	var out []Violation
	for _, o := range obs {
		if !o.InfoType.Observational() {
			out = append(out, New(ObservationType, "Observation %s has non-observational info_type %q", o.ID, o.InfoType))
		}
		if !o.HasProvenance() {
			out = append(out, New(ObservationProvenance, "Observation %s cites no evidence or raw input", o.ID))
		}
	}
	return out
}

// CheckInterpretations requires interpretive typing and at least one
// supporting observation or evidence reference.
func CheckInterpretations(ints []artifact.Interpretation) []Violation {
	var out []Violation
	for _, in := range ints {
		if !in.InfoType.Interpretive() {
			out = append(out, New(InterpretationType, "Interpretation %s has non-interpretive info_type %q", in.ID, in.InfoType))
		}
		if len(in.ObservationIDs) == 0 && len(in.EvidenceIDs) == 0 {
			out = append(out, New(InterpretationGrounded, "Interpretation %s cites no observations or evidence", in.ID))
		}
	}
	return out
}

// CheckRecommendation covers the structural rules that need no options.
func CheckRecommendation(rec artifact.Recommendation) []Violation {
	var out []Violation
	if strings.TrimSpace(rec.OrientationID) == "" {
		out = append(out, New(RecommendationOrientation, "Recommendation %s has no orientation_id", rec.ID))
	}
	if len(rec.RankedOptions) == 0 {
		out = append(out, New(RecommendationRanked, "Recommendation %s has no ranked options", rec.ID))
		return out
	}
	if !rec.HasProvenance() {
		out = append(out, New(RecommendationProvenance,
			"Recommendation %s ranks options but cites no evidence, observation, interpretation or model-state ids", rec.ID))
	}
	if err := artifact.CheckContiguousRanks(rec.RankedOptions); err != nil {
		out = append(out, New(RankContiguity, "Recommendation %s: %v", rec.ID, err))
	}
	return out
}

// CheckExecuteOptions requires every ranked EXECUTE option to be auditable,
// bound to the recommendation's orientation, and explicit about uncertainty.
func CheckExecuteOptions(rec artifact.Recommendation, options map[string]artifact.Option) []Violation {
	var out []Violation
	for _, opt := range executeOptions(rec, options) {
		if len(opt.Upstream()) == 0 {
			out = append(out, New(ExecuteAuditability,
				"EXECUTE Option %s has no upstream references (evidence, observation or interpretation ids)", opt.ID))
		}
		switch {
		case opt.OrientationID == "":
			out = append(out, New(ExecuteOrientation, "EXECUTE Option %s has no orientation_id", opt.ID))
		case opt.OrientationID != rec.OrientationID:
			out = append(out, New(ExecuteOrientationMismatch,
				"EXECUTE Option %s orientation_id=%s does not match Recommendation orientation_id=%s",
				opt.ID, opt.OrientationID, rec.OrientationID))
		}
		if len(opt.Uncertainties) == 0 {
			out = append(out, New(ExecuteUncertainty, "EXECUTE Option %s declares no uncertainties", opt.ID))
		}
	}
	return out
}

// GateSubject projects an option onto the gate's scalar inputs. An option
// without uncertainties is gated as maximally uncertain.
func GateSubject(opt artifact.Option) gate.Subject {
	unc, ok := opt.MaxUncertainty()
	if !ok {
		unc = 1
	}
	return gate.Subject{
		Impact:        opt.Impact,
		Reversibility: opt.Reversibility,
		Uncertainty:   unc,
		Class:         opt.ActionClass,
		Dependencies:  opt.Upstream(),
	}
}

// CheckActionClasses enforces the action-class gate on every ranked EXECUTE
// option. scopeUsed is the override scope the recommendation invokes, or nil.
func CheckActionClasses(rec artifact.Recommendation, options map[string]artifact.Option, gov gate.Governance, scopeUsed []string) []Violation {
	var out []Violation
	for _, opt := range executeOptions(rec, options) {
		if opt.ActionClass == "" {
			out = append(out, New(ActionClassDeclared, "EXECUTE Option %s does not declare an action_class", opt.ID))
			continue
		}
		if _, err := gate.ParseActionClass(string(opt.ActionClass)); err != nil {
			out = append(out, New(ActionClassDeclared, "EXECUTE Option %s has invalid action_class %q", opt.ID, opt.ActionClass))
			continue
		}
		v := gate.Evaluate(GateSubject(opt), gov, scopeUsed)
		if v.RequiresOverride && !v.Allowed {
			out = append(out, New(ActionClassGate, "Option %s: %s", opt.ID, v.Reason))
		}
	}
	return out
}

// CheckProvenanceDrift requires the recommendation to share at least one
// observation id or evidence id with its top-ranked option.
func CheckProvenanceDrift(rec artifact.Recommendation, options map[string]artifact.Option) []Violation {
	top, ok := options[rec.TopOptionID()]
	if !ok {
		return nil
	}
	if intersects(rec.ObservationIDs, top.ObservationIDs) || intersects(rec.EvidenceIDs, top.EvidenceIDs) {
		return nil
	}
	return []Violation{New(ProvenanceDrift,
		"Recommendation %s top option %s shares no observation_ids or evidence_ids with the recommendation", rec.ID, top.ID)}
}

func executeOptions(rec artifact.Recommendation, options map[string]artifact.Option) []artifact.Option {
	var out []artifact.Option
	for _, ro := range rec.Ranked() {
		if opt, ok := options[ro.OptionID]; ok && opt.Kind == artifact.OptionExecute {
			out = append(out, opt)
		}
	}
	return out
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}

// CheckActedChoice requires an acted episode to record at least one choice.
func CheckActedChoice(ep artifact.Episode) []Violation {
	if ep.Acted && len(ep.ChoiceIDs) == 0 {
		return []Violation{New(ActedRequiresChoice,
			"Episode %s is acted (chosen_option_id=%q) but has no choice_ids", ep.ID, ep.ChosenOptionID)}
	}
	return nil
}

// CheckChoices requires each choice's recommendation and option to exist and,
// unless an override was used, the option to be ranked by the recommendation.
func CheckChoices(choices []artifact.Choice, recs map[string]artifact.Recommendation, optionExists map[string]bool) []Violation {
	var out []Violation
	for _, c := range choices {
		rec, recOK := recs[c.RecommendationID]
		if !recOK {
			out = append(out, New(ChoiceReferences, "Choice %s references missing Recommendation %s", c.ID, c.RecommendationID))
		}
		if !optionExists[c.OptionID] {
			out = append(out, New(ChoiceReferences, "Choice %s references missing Option %s", c.ID, c.OptionID))
		}
		if recOK && !c.UsedOverride && !rec.RanksOption(c.OptionID) {
			out = append(out, New(ChoiceRanked,
				"Choice %s selects Option %s which Recommendation %s does not rank (no override declared)",
				c.ID, c.OptionID, rec.ID))
		}
	}
	return out
}

// CheckActedOutcome requires an outcome once an episode with a
// recommendation has acted.
func CheckActedOutcome(ep artifact.Episode) []Violation {
	if ep.Acted && len(ep.RecommendationIDs) > 0 && len(ep.OutcomeIDs) == 0 {
		return []Violation{New(ActedRequiresOutcome, "Episode %s is acted with a recommendation but has no outcome_ids", ep.ID)}
	}
	return nil
}

// CheckOutcomes cross-checks the recommendation and option an outcome cites.
func CheckOutcomes(outcomes []artifact.Outcome, recs map[string]artifact.Recommendation, optionExists map[string]bool) []Violation {
	var out []Violation
	for _, o := range outcomes {
		rec, recOK := recs[o.RecommendationID]
		if o.RecommendationID != "" && !recOK {
			out = append(out, New(OutcomeReferences, "Outcome %s references missing Recommendation %s", o.ID, o.RecommendationID))
		}
		if o.ChosenOptionID != "" && !optionExists[o.ChosenOptionID] {
			out = append(out, New(OutcomeReferences, "Outcome %s references missing Option %s", o.ID, o.ChosenOptionID))
		}
		if recOK && o.ChosenOptionID != "" && !rec.RanksOption(o.ChosenOptionID) {
			out = append(out, New(OutcomeRanked,
				"Outcome %s option %s is not ranked by Recommendation %s", o.ID, o.ChosenOptionID, rec.ID))
		}
	}
	return out
}

// CheckOverrideReview requires a review whenever any recommendation used an
// override, and requires the latest review to audit each such override.
// latest is nil when the episode has no resolvable review.
func CheckOverrideReview(ep artifact.Episode, recs []artifact.Recommendation, latest *artifact.Review) []Violation {
	var overridden []artifact.Recommendation
	for _, r := range recs {
		if r.OverrideUsed {
			overridden = append(overridden, r)
		}
	}
	if len(overridden) == 0 {
		return nil
	}
	if len(ep.ReviewIDs) == 0 {
		return []Violation{New(OverrideRequiresReview,
			"Episode %s has override_used recommendations but no review_ids", ep.ID)}
	}
	if latest == nil {
		return nil
	}
	var out []Violation
	for _, r := range overridden {
		entry, ok := latest.OverrideAudit[r.ID]
		switch {
		case !ok:
			out = append(out, New(OverrideAudited,
				"Review %s has no override audit entry for Recommendation %s", latest.ID, r.ID))
		case !entry.Complete():
			out = append(out, New(OverrideAudited,
				"Review %s override audit entry for Recommendation %s needs a non-empty scope and rationale", latest.ID, r.ID))
		}
	}
	return out
}

// CheckCalibrations requires each note to belong to episodeID, to cite a
// resolvable review, and to cite only resolvable outcomes.
func CheckCalibrations(episodeID string, notes []artifact.CalibrationNote, reviewExists, outcomeExists map[string]bool) []Violation {
	var out []Violation
	for _, n := range notes {
		if n.EpisodeID != episodeID {
			out = append(out, New(CalibrationEpisode,
				"CalibrationNote %s belongs to episode %q, not %s", n.ID, n.EpisodeID, episodeID))
		}
		switch {
		case strings.TrimSpace(n.ReviewID) == "":
			out = append(out, New(CalibrationReview, "CalibrationNote %s has no review_id", n.ID))
		case !reviewExists[n.ReviewID]:
			out = append(out, New(CalibrationReview, "CalibrationNote %s references missing Review %s", n.ID, n.ReviewID))
		}
		var missing []string
		for _, id := range n.OutcomeIDs {
			if !outcomeExists[id] {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			out = append(out, New(CalibrationOutcomes,
				"CalibrationNote %s references missing Outcomes %s", n.ID, strings.Join(missing, ", ")))
		}
	}
	return out
}
