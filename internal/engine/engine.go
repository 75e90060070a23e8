// Package engine decides whether a Recommendation or an Episode is valid.
// It reads from the store and never writes to it.
package engine

import (
	"log/slog"

	"constitution/internal/artifact"
	"constitution/internal/gate"
	"constitution/internal/invariant"
	"constitution/internal/logging"
	"constitution/internal/store"
)

// Engine validates artifacts held in a Store.
type Engine struct {
	store store.Store
	log   *slog.Logger
}

// New returns an Engine reading from s.
func New(s store.Store) *Engine {
	return &Engine{store: s, log: logging.New("engine")}
}

// ValidateRecommendation runs the recommendation-level checks. A missing
// recommendation is an error wrapping store.ErrNotFound.
func (e *Engine) ValidateRecommendation(id string) (Report, error) {
	rec, err := store.MustGetAs[artifact.Recommendation](e.store, id)
	if err != nil {
		return Report{}, err
	}
	r := Report{Subject: subject(artifact.KindRecommendation, id)}
	if err := e.checkRecommendation(&r, rec); err != nil {
		return Report{}, err
	}
	e.logReport(r)
	return r, nil
}

// ValidateEpisode resolves everything an episode references and runs the
// recommendation checks for each of its recommendations plus the lifecycle
// checks. A missing episode is an error wrapping store.ErrNotFound.
func (e *Engine) ValidateEpisode(id string) (Report, error) {
	ep, err := store.MustGetAs[artifact.Episode](e.store, id)
	if err != nil {
		return Report{}, err
	}
	r := Report{Subject: subject(artifact.KindEpisode, id)}
	if err := e.checkEpisode(&r, ep); err != nil {
		return Report{}, err
	}
	e.logReport(r)
	return r, nil
}

func subject(kind artifact.Kind, id string) string { return string(kind) + ":" + id }

func (e *Engine) logReport(r Report) {
	e.log.Debug("validated",
		slog.String("subject", r.Subject),
		slog.Bool("ok", r.OK()),
		slog.Int("violations", len(r.Violations)),
		slog.Int("resolve_errors", len(r.ResolveErrors)))
}

func resolve[T artifact.Artifact](s store.Store, r *Report, rule invariant.Rule, ids []string) ([]T, error) {
	found, misses, err := store.Resolve[T](s, ids)
	if err != nil {
		return nil, err
	}
	r.unresolved(rule, misses)
	return found, nil
}

func (e *Engine) checkRecommendation(r *Report, rec artifact.Recommendation) error {
	r.add(invariant.CheckRecommendation(rec)...)

	ids := make([]string, 0, len(rec.RankedOptions))
	for _, ro := range rec.Ranked() {
		ids = append(ids, ro.OptionID)
	}
	opts, err := resolve[artifact.Option](e.store, r, invariant.RecommendationOptionLink, ids)
	if err != nil {
		return err
	}
	byID := make(map[string]artifact.Option, len(opts))
	for _, o := range opts {
		byID[o.ID] = o
	}

	r.add(invariant.CheckExecuteOptions(rec, byID)...)
	r.add(invariant.CheckProvenanceDrift(rec, byID)...)

	gov, err := e.governance(r, rec)
	if err != nil {
		return err
	}
	var scopeUsed []string
	if rec.OverrideUsed {
		scopeUsed = rec.OverrideScopeUsed
	}
	r.add(invariant.CheckActionClasses(rec, byID, gov, scopeUsed)...)
	return nil
}

// governance returns the override policy of rec's orientation. An
// orientation that does not resolve is reported against r and grants
// nothing, so a recommendation cannot authorize its own bypass.
func (e *Engine) governance(r *Report, rec artifact.Recommendation) (gate.Governance, error) {
	advisory := gate.Governance{Mode: gate.AdvisoryOnly}
	if rec.OrientationID == "" {
		return advisory, nil
	}
	found, err := resolve[artifact.Orientation](e.store, r, invariant.MissingReference, []string{rec.OrientationID})
	if err != nil {
		return gate.Governance{}, err
	}
	if len(found) == 0 {
		return advisory, nil
	}
	return found[0].Governance(), nil
}

func (e *Engine) checkEpisode(r *Report, ep artifact.Episode) error {
	s := e.store

	if _, err := resolve[artifact.RawInput](s, r, invariant.MissingReference, ep.RawInputIDs); err != nil {
		return err
	}
	evs, err := resolve[artifact.Evidence](s, r, invariant.MissingReference, ep.EvidenceIDs)
	if err != nil {
		return err
	}
	r.add(invariant.CheckEvidence(evs)...)

	obs, err := resolve[artifact.Observation](s, r, invariant.MissingReference, ep.ObservationIDs)
	if err != nil {
		return err
	}
	r.add(invariant.CheckObservations(obs)...)

	ints, err := resolve[artifact.Interpretation](s, r, invariant.MissingReference, ep.InterpretationIDs)
	if err != nil {
		return err
	}
	r.add(invariant.CheckInterpretations(ints)...)

	if _, err := resolve[artifact.Orientation](s, r, invariant.MissingReference, ep.OrientationIDs); err != nil {
		return err
	}
	if _, err := resolve[artifact.Option](s, r, invariant.MissingReference, ep.OptionIDs); err != nil {
		return err
	}

	recs, err := resolve[artifact.Recommendation](s, r, invariant.MissingReference, ep.RecommendationIDs)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := e.checkRecommendation(r, rec); err != nil {
			return err
		}
	}

	lk := newLookup(s, recs)

	r.add(invariant.CheckActedChoice(ep)...)
	choices, err := resolve[artifact.Choice](s, r, invariant.MissingReference, ep.ChoiceIDs)
	if err != nil {
		return err
	}
	recIDs, optIDs := make([]string, 0, len(choices)), make([]string, 0, len(choices))
	for _, c := range choices {
		recIDs, optIDs = append(recIDs, c.RecommendationID), append(optIDs, c.OptionID)
	}

	r.add(invariant.CheckActedOutcome(ep)...)
	outcomes, err := resolve[artifact.Outcome](s, r, invariant.MissingReference, ep.OutcomeIDs)
	if err != nil {
		return err
	}
	for _, o := range outcomes {
		if o.RecommendationID != "" {
			recIDs = append(recIDs, o.RecommendationID)
		}
		if o.ChosenOptionID != "" {
			optIDs = append(optIDs, o.ChosenOptionID)
		}
	}
	recMap, err := lk.recommendations(recIDs)
	if err != nil {
		return err
	}
	optExists, err := lk.exists(artifact.KindOption, optIDs)
	if err != nil {
		return err
	}
	r.add(invariant.CheckChoices(choices, recMap, optExists)...)
	r.add(invariant.CheckOutcomes(outcomes, recMap, optExists)...)

	reviews, err := resolve[artifact.Review](s, r, invariant.MissingReference, ep.ReviewIDs)
	if err != nil {
		return err
	}
	var latest *artifact.Review
	for i := range reviews {
		if reviews[i].ID == ep.LatestReviewID() {
			latest = &reviews[i]
		}
	}
	r.add(invariant.CheckOverrideReview(ep, recs, latest)...)

	notes, err := resolve[artifact.CalibrationNote](s, r, invariant.MissingReference, ep.CalibrationIDs)
	if err != nil {
		return err
	}
	var revIDs, outIDs []string
	for _, n := range notes {
		if n.ReviewID != "" {
			revIDs = append(revIDs, n.ReviewID)
		}
		outIDs = append(outIDs, n.OutcomeIDs...)
	}
	revExists, err := lk.exists(artifact.KindReview, revIDs)
	if err != nil {
		return err
	}
	outExists, err := lk.exists(artifact.KindOutcome, outIDs)
	if err != nil {
		return err
	}
	r.add(invariant.CheckCalibrations(ep.ID, notes, revExists, outExists)...)
	return nil
}
