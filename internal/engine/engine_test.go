package engine

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"constitution/internal/artifact"
	"constitution/internal/gate"
	"constitution/internal/invariant"
	"constitution/internal/store"
)

// must unwraps fixture constructors. A constructor error is a broken
// fixture, not a test outcome, so it panics and fails the test.
func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// incident is a small, valid decision graph: one evidence, one observation,
// an advisory orientation, an EXECUTE rollback and a hedge, ranked in that order.
type incident struct {
	s      *store.MemStore
	ev     artifact.Evidence
	obs    artifact.Observation
	ori    artifact.Orientation
	exec   artifact.Option
	hedge  artifact.Option
	rec    artifact.Recommendation
	ep     artifact.Episode
	engine *Engine
}

func newIncident(t *testing.T) *incident {
	t.Helper()
	g := &incident{s: store.NewMemStore()}
	g.ev = must(artifact.NewEvidence(0.9, artifact.SourceRef{URI: "https://status.example/incidents/42"}))
	g.obs = must(artifact.NewObservation(artifact.InfoMeasurement, "p99 latency is 2.1s", 0.9)).AddEvidence(g.ev.ID)
	g.ori = artifact.NewOrientation("sre-oncall")
	unc := must(artifact.NewUncertainty("traffic may shift back", 0.2, artifact.UncertaintyVariance))
	g.exec = must(artifact.NewOption(artifact.OptionExecute, "roll back release", 0.2, 0.9)).
		WithActionClass(gate.Commit).
		WithOrientation(g.ori.ID).
		AddObservations(g.obs.ID).
		AddEvidence(g.ev.ID).
		AddUncertainties(unc)
	g.hedge = must(artifact.NewOption(artifact.OptionHedge, "page the owning team", 0.1, 0.9))
	g.rec = must(artifact.NewRecommendation(g.ori.ID,
		must(artifact.NewRankedOption(g.exec.ID, 1, 0.8, "fastest recovery", 0.7)),
		must(artifact.NewRankedOption(g.hedge.ID, 2, 0.4, "keeps humans in the loop", 0.6)),
	)).AddObservations(g.obs.ID).AddEvidence(g.ev.ID)
	g.ep = artifact.NewEpisode("latency incident").
		AddEvidence(g.ev.ID).
		AddObservations(g.obs.ID).
		AddOrientations(g.ori.ID).
		AddOptions(g.exec.ID, g.hedge.ID).
		AddRecommendations(g.rec.ID)
	g.engine = New(g.s)
	g.put(t, g.ev, g.obs, g.ori, g.exec, g.hedge, g.rec, g.ep)
	return g
}

func (g *incident) put(t *testing.T, as ...artifact.Artifact) {
	t.Helper()
	if err := store.PutAll(g.s, as...); err != nil {
		t.Fatalf("PutAll: %v", err)
	}
}

func (g *incident) validateEpisode(t *testing.T) Report {
	t.Helper()
	return must(g.engine.ValidateEpisode(g.ep.ID))
}

// act records a choice of the top option and marks the episode acted.
func (g *incident) act(t *testing.T) artifact.Choice {
	t.Helper()
	ch := must(artifact.NewChoice(g.ep.ID, g.rec.ID, g.exec.ID))
	ep := must(g.ep.LogChoice(ch.ID))
	g.ep = must(ep.MarkActed(g.exec.ID, time.Time{}))
	g.put(t, ch, g.ep)
	return ch
}

func TestValidateEpisode_RecommendedIsOK(t *testing.T) {
	g := newIncident(t)
	r := g.validateEpisode(t)
	if !r.OK() {
		t.Fatalf("report not ok: %+v", r)
	}
	if r.Subject != "Episode:"+g.ep.ID {
		t.Errorf("Subject = %q", r.Subject)
	}
}

func TestValidateEpisode_ActedWithoutChoice(t *testing.T) {
	g := newIncident(t)
	g.ep = must(g.ep.MarkActed(g.exec.ID, time.Time{}))
	g.put(t, g.ep)

	r := g.validateEpisode(t)
	want := []invariant.Rule{invariant.ActedRequiresChoice, invariant.ActedRequiresOutcome}
	if diff := cmp.Diff(want, r.Rules()); diff != "" {
		t.Errorf("rules (-want +got):\n%s", diff)
	}
}

func TestValidateEpisode_FullCycleIsOK(t *testing.T) {
	g := newIncident(t)
	g.act(t)

	out := artifact.NewOutcome("latency back under 300ms").For(g.rec.ID, g.exec.ID)
	rev := artifact.NewReview(g.ep.ID).For(g.rec.ID, out.ID).WithNarrative("rolled back", "recovery", "none")
	cal := artifact.NewCalibrationNote(g.ep.ID, rev.ID, "rollback estimates were accurate").AddOutcomes(out.ID)
	ep := must(g.ep.LogOutcome(out.ID))
	ep = must(ep.LogReview(rev.ID))
	g.ep = must(ep.LogCalibration(cal.ID))
	g.put(t, out, rev, cal, g.ep)

	if r := g.validateEpisode(t); !r.OK() {
		t.Fatalf("full cycle not ok: %v", r.Violations)
	}
}

func TestValidateEpisode_ChoiceOfUnrankedOption(t *testing.T) {
	g := newIncident(t)
	stray := must(artifact.NewOption(artifact.OptionInfoGathering, "collect heap profile", 0.1, 1))
	ch := must(artifact.NewChoice(g.ep.ID, g.rec.ID, stray.ID))
	ep := must(g.ep.AddOptions(stray.ID).LogChoice(ch.ID))
	g.ep = must(ep.MarkActed(stray.ID, time.Time{}))
	out := artifact.NewOutcome("profile collected")
	g.ep = must(g.ep.LogOutcome(out.ID))
	g.put(t, stray, ch, out, g.ep)

	r := g.validateEpisode(t)
	if diff := cmp.Diff([]invariant.Rule{invariant.ChoiceRanked}, r.Rules()); diff != "" {
		t.Errorf("rules (-want +got):\n%s", diff)
	}

	g.put(t, ch.WithOverride("owner asked for data first"))
	if r := g.validateEpisode(t); !r.OK() {
		t.Errorf("override choice not ok: %v", r.Violations)
	}
}

func TestValidateRecommendation_ProvenanceDrift(t *testing.T) {
	g := newIncident(t)
	other := must(artifact.NewObservation(artifact.InfoEvent, "deploy finished", 1)).AddEvidence(g.ev.ID)
	drifted := must(artifact.NewRecommendation(g.ori.ID,
		must(artifact.NewRankedOption(g.exec.ID, 1, 0.8, "r", 0.7)),
	)).AddObservations(other.ID)
	g.put(t, other, drifted)

	r := must(g.engine.ValidateRecommendation(drifted.ID))
	if diff := cmp.Diff([]invariant.Rule{invariant.ProvenanceDrift}, r.Rules()); diff != "" {
		t.Errorf("rules (-want +got):\n%s", diff)
	}
	if len(r.ResolveErrors) != 0 {
		t.Errorf("drift reported resolve errors: %v", r.ResolveErrors)
	}
}

func TestValidateRecommendation_MissingRankedOption(t *testing.T) {
	g := newIncident(t)
	rec := must(artifact.NewRecommendation(g.ori.ID,
		must(artifact.NewRankedOption("opt_missing", 1, 0.5, "r", 0.5)),
	)).AddObservations(g.obs.ID)
	g.put(t, rec)

	r := must(g.engine.ValidateRecommendation(rec.ID))
	if r.OK() {
		t.Fatal("report ok with unresolved option")
	}
	want := []store.ResolveError{{ArtifactType: artifact.KindOption, ArtifactID: "opt_missing"}}
	if diff := cmp.Diff(want, r.ResolveErrors); diff != "" {
		t.Errorf("resolve errors (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]invariant.Rule{invariant.RecommendationOptionLink}, r.Rules()); diff != "" {
		t.Errorf("rules (-want +got):\n%s", diff)
	}
}

func TestValidate_MissingSubject(t *testing.T) {
	e := New(store.NewMemStore())
	if _, err := e.ValidateEpisode("ep_missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ValidateEpisode err = %v, want ErrNotFound", err)
	}
	if _, err := e.ValidateRecommendation("rec_missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ValidateRecommendation err = %v, want ErrNotFound", err)
	}
}

// riskyRecommendation ranks a COMMIT option with high impact, low
// reversibility and high uncertainty under orientationID.
func riskyRecommendation(t *testing.T, g *incident, orientationID string) (artifact.Option, artifact.Recommendation) {
	t.Helper()
	unc := must(artifact.NewUncertainty("blast radius unknown", 0.9, artifact.UncertaintyMissingData))
	opt := must(artifact.NewOption(artifact.OptionExecute, "drop the shard", 0.9, 0.1)).
		WithActionClass(gate.Commit).
		WithOrientation(orientationID).
		AddObservations(g.obs.ID).
		AddUncertainties(unc)
	rec := must(artifact.NewRecommendation(orientationID,
		must(artifact.NewRankedOption(opt.ID, 1, 0.9, "frees disk now", 0.4)),
	)).AddObservations(g.obs.ID)
	return opt, rec
}

func TestValidateRecommendation_ActionClassGate(t *testing.T) {
	g := newIncident(t)
	extended := artifact.NewOrientation("incident-commander").
		WithExtendedOverride("commander approved emergency action", gate.ScopeGateBypass)
	g.put(t, extended)

	tests := []struct {
		name        string
		orientation string
		override    bool
		want        []invariant.Rule
	}{
		{"advisory orientation", g.ori.ID, true, []invariant.Rule{invariant.ActionClassGate}},
		{"extended without claiming override", extended.ID, false, []invariant.Rule{invariant.ActionClassGate}},
		{"extended with override", extended.ID, true, nil},
		{"unstored orientation with bypass", "ori_unstored", true, []invariant.Rule{invariant.MissingReference, invariant.ActionClassGate}},
		{"unstored orientation without override", "ori_unstored", false, []invariant.Rule{invariant.MissingReference, invariant.ActionClassGate}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt, rec := riskyRecommendation(t, g, tt.orientation)
			if tt.override {
				rec = rec.WithOverride(gate.ScopeGateBypass)
			}
			g.put(t, opt, rec)
			r := must(g.engine.ValidateRecommendation(rec.ID))
			if diff := cmp.Diff(tt.want, r.Rules(), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("rules (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateRecommendation_UnstoredOrientationGrantsNothing(t *testing.T) {
	g := newIncident(t)
	opt, rec := riskyRecommendation(t, g, "ori_unstored")
	rec = rec.WithOverride(gate.ScopeGateBypass)
	g.put(t, opt, rec)

	r := must(g.engine.ValidateRecommendation(rec.ID))
	if r.OK() {
		t.Fatal("self-claimed bypass under an unstored orientation passed")
	}
	want := []store.ResolveError{{ArtifactType: artifact.KindOrientation, ArtifactID: "ori_unstored"}}
	if diff := cmp.Diff(want, r.ResolveErrors); diff != "" {
		t.Errorf("resolve errors (-want +got):\n%s", diff)
	}
	if !invariant.Has(r.Violations, invariant.ActionClassGate) {
		t.Errorf("violations = %v, want %s", r.Violations, invariant.ActionClassGate)
	}
}

func TestValidateEpisode_UnstoredOrientationReportedOnce(t *testing.T) {
	g := newIncident(t)
	opt, rec := riskyRecommendation(t, g, "ori_unstored")
	g.ep = g.ep.AddOrientations("ori_unstored").AddOptions(opt.ID).AddRecommendations(rec.ID)
	g.put(t, opt, rec, g.ep)

	r := g.validateEpisode(t)
	want := []store.ResolveError{{ArtifactType: artifact.KindOrientation, ArtifactID: "ori_unstored"}}
	if diff := cmp.Diff(want, r.ResolveErrors); diff != "" {
		t.Errorf("resolve errors (-want +got):\n%s", diff)
	}
}

func TestValidateRecommendation_ConservativePostureBlocksCommit(t *testing.T) {
	g := newIncident(t)
	cautious := artifact.NewOrientation("sre-oncall").WithPosture(gate.PostureConservative)
	opt := g.exec.WithOrientation(cautious.ID)
	rec := must(artifact.NewRecommendation(cautious.ID,
		must(artifact.NewRankedOption(opt.ID, 1, 0.8, "r", 0.7)),
	)).AddObservations(g.obs.ID)
	g.put(t, cautious, opt, rec)

	r := must(g.engine.ValidateRecommendation(rec.ID))
	if diff := cmp.Diff([]invariant.Rule{invariant.ActionClassGate}, r.Rules()); diff != "" {
		t.Errorf("rules (-want +got):\n%s", diff)
	}
}

func TestValidateEpisode_OverrideNeedsAuditedReview(t *testing.T) {
	g := newIncident(t)
	over := g.rec.WithOverride(gate.ScopeGateBypass)
	g.put(t, over)

	r := g.validateEpisode(t)
	if diff := cmp.Diff([]invariant.Rule{invariant.OverrideRequiresReview}, r.Rules()); diff != "" {
		t.Errorf("no review (-want +got):\n%s", diff)
	}

	rev := artifact.NewReview(g.ep.ID)
	g.ep = must(g.ep.LogReview(rev.ID))
	g.put(t, rev, g.ep)
	r = g.validateEpisode(t)
	if diff := cmp.Diff([]invariant.Rule{invariant.OverrideAudited}, r.Rules()); diff != "" {
		t.Errorf("unaudited (-want +got):\n%s", diff)
	}

	audited := artifact.NewReview(g.ep.ID).AuditOverride(g.rec.ID, "bypass matched the runbook", gate.ScopeGateBypass)
	g.ep = must(g.ep.LogReview(audited.ID))
	g.put(t, audited, g.ep)
	if r := g.validateEpisode(t); !r.OK() {
		t.Errorf("audited override not ok: %v", r.Violations)
	}
}

func TestValidateEpisode_CalibrationCoherence(t *testing.T) {
	g := newIncident(t)
	rev := artifact.NewReview(g.ep.ID)
	cal := artifact.NewCalibrationNote("ep_elsewhere", rev.ID, "s").AddOutcomes("out_missing")
	ep := must(g.ep.LogReview(rev.ID))
	g.ep = must(ep.LogCalibration(cal.ID))
	g.put(t, rev, cal, g.ep)

	r := g.validateEpisode(t)
	want := []invariant.Rule{invariant.CalibrationEpisode, invariant.CalibrationOutcomes}
	if diff := cmp.Diff(want, r.Rules()); diff != "" {
		t.Errorf("rules (-want +got):\n%s", diff)
	}
}

func TestValidateEpisode_UnresolvedObservation(t *testing.T) {
	g := newIncident(t)
	g.ep = g.ep.AddObservations("obs_gone")
	g.put(t, g.ep)

	r := g.validateEpisode(t)
	want := []store.ResolveError{{ArtifactType: artifact.KindObservation, ArtifactID: "obs_gone"}}
	if diff := cmp.Diff(want, r.ResolveErrors); diff != "" {
		t.Errorf("resolve errors (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]invariant.Rule{invariant.MissingReference}, r.Rules()); diff != "" {
		t.Errorf("rules (-want +got):\n%s", diff)
	}
}

type brokenStore struct{ *store.MemStore }

func (brokenStore) ResolveMany(artifact.Kind, []string) ([]artifact.Artifact, []store.ResolveError, error) {
	return nil, nil, errors.New("disk on fire")
}

func TestValidateEpisode_BackendFailureIsAnError(t *testing.T) {
	g := newIncident(t)
	e := New(brokenStore{g.s})
	if _, err := e.ValidateEpisode(g.ep.ID); err == nil || !strings.Contains(err.Error(), "disk on fire") {
		t.Errorf("err = %v, want backend error", err)
	}
}

func TestReport_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Report{Subject: "Episode:ep_1"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"subject":"Episode:ep_1","ok":true,"violations":[],"resolve_errors":[]}`
	if string(b) != want {
		t.Errorf("json = %s, want %s", b, want)
	}
}
