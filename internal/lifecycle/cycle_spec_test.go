package lifecycle

import (
	"errors"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"constitution/internal/artifact"
	"constitution/internal/gate"
	"constitution/internal/invariant"
	"constitution/internal/store"
)

func expectOK[T any](v T, err error) T {
	gomega.ExpectWithOffset(1, err).To(gomega.Succeed())
	return v
}

var _ = ginkgo.Describe("Decision cycle", func() {
	var (
		s     *store.MemStore
		lc    *Lifecycle
		ep    artifact.Episode
		rec   artifact.Recommendation
		exec  artifact.Option
		hedge artifact.Option
		stray artifact.Option
	)

	ginkgo.BeforeEach(func() {
		s = store.NewMemStore()
		lc = New(s)

		ev := expectOK(artifact.NewEvidence(0.8, artifact.SourceRef{URI: "https://grafana.example/d/api"}))
		obs := expectOK(artifact.NewObservation(artifact.InfoMeasurement, "error rate 7%", 0.9)).AddEvidence(ev.ID)
		ori := artifact.NewOrientation("payments-oncall")
		unc := expectOK(artifact.NewUncertainty("single region sample", 0.2, artifact.UncertaintyMissingData))
		exec = expectOK(artifact.NewOption(artifact.OptionExecute, "disable feature flag", 0.2, 0.95)).
			WithActionClass(gate.Limited).
			WithOrientation(ori.ID).
			AddObservations(obs.ID).
			AddUncertainties(unc)
		hedge = expectOK(artifact.NewOption(artifact.OptionHedge, "add canary alerting", 0.1, 1))
		stray = expectOK(artifact.NewOption(artifact.OptionInfoGathering, "sample logs", 0.05, 1))
		rec = expectOK(artifact.NewRecommendation(ori.ID,
			expectOK(artifact.NewRankedOption(exec.ID, 1, 0.9, "stops the bleeding", 0.8)),
			expectOK(artifact.NewRankedOption(hedge.ID, 2, 0.5, "detects recurrence", 0.6)),
		)).AddObservations(obs.ID)
		ep = artifact.NewEpisode("checkout errors").
			AddEvidence(ev.ID).
			AddObservations(obs.ID).
			AddOrientations(ori.ID).
			AddOptions(exec.ID, hedge.ID, stray.ID).
			AddRecommendations(rec.ID)
		gomega.Expect(store.PutAll(s, ev, obs, ori, exec, hedge, stray, rec, ep)).To(gomega.Succeed())
	})

	ginkgo.It("starts recommended and valid", func() {
		st := expectOK(lc.Status(ep.ID))
		gomega.Expect(st.Stage).To(gomega.Equal(Recommended))
		gomega.Expect(st.ReviewRequired).To(gomega.BeFalse())
		gomega.Expect(st.Counts[string(artifact.KindOption)]).To(gomega.Equal(3))
	})

	ginkgo.It("walks choose, outcome, review and calibration to a valid calibrated episode", func() {
		tr := expectOK(lc.Choose(ep.ID, ChooseRequest{OptionID: exec.ID, Rationale: "lowest blast radius"}))
		gomega.Expect(tr.Stage).To(gomega.Equal(Acted))
		gomega.Expect(tr.Report.Rules()).To(gomega.ConsistOf(invariant.ActedRequiresOutcome))

		ch := expectOK(store.MustGetAs[artifact.Choice](s, tr.ArtifactID))
		gomega.Expect(ch.RecommendationID).To(gomega.Equal(rec.ID))
		gomega.Expect(ch.ChosenBy).To(gomega.Equal(artifact.ChosenByHuman))

		out := artifact.NewOutcome("error rate back to 0.1%").For(rec.ID, exec.ID)
		tr = expectOK(lc.LogOutcome(ep.ID, out))
		gomega.Expect(tr.Stage).To(gomega.Equal(OutcomeLogged))
		gomega.Expect(tr.Report.OK()).To(gomega.BeTrue())

		rev := artifact.NewReview("").For(rec.ID, out.ID).WithNarrative("flag off", "recovery", "none")
		tr = expectOK(lc.LogReview(ep.ID, rev))
		gomega.Expect(tr.Stage).To(gomega.Equal(Reviewed))

		cal := artifact.NewCalibrationNote(ep.ID, rev.ID, "flag rollbacks are reliable").AddOutcomes(out.ID)
		tr = expectOK(lc.LogCalibration(ep.ID, cal))
		gomega.Expect(tr.Stage).To(gomega.Equal(Calibrated))
		gomega.Expect(tr.Report.OK()).To(gomega.BeTrue(), "violations: %v", tr.Report.Violations)

		stored := expectOK(store.MustGetAs[artifact.Episode](s, ep.ID))
		gomega.Expect(stored.Acted).To(gomega.BeTrue())
		gomega.Expect(stored.ChosenOptionID).To(gomega.Equal(exec.ID))
		gomega.Expect(stored.CalibrationIDs).To(gomega.Equal([]string{cal.ID}))
	})

	ginkgo.It("refuses to change the chosen option", func() {
		expectOK(lc.Choose(ep.ID, ChooseRequest{OptionID: exec.ID}))
		_, err := lc.Choose(ep.ID, ChooseRequest{OptionID: hedge.ID})
		gomega.Expect(errors.Is(err, artifact.ErrChosenOptionConflict)).To(gomega.BeTrue(), "err = %v", err)

		_, err = lc.MarkActed(ep.ID, hedge.ID)
		gomega.Expect(errors.Is(err, artifact.ErrChosenOptionConflict)).To(gomega.BeTrue(), "err = %v", err)

		stored := expectOK(store.MustGetAs[artifact.Episode](s, ep.ID))
		gomega.Expect(stored.ChoiceIDs).To(gomega.HaveLen(1))
	})

	ginkgo.It("flags an unranked choice unless it declares an override", func() {
		tr := expectOK(lc.Choose(ep.ID, ChooseRequest{OptionID: stray.ID}))
		gomega.Expect(tr.Report.Rules()).To(gomega.ContainElement(invariant.ChoiceRanked))
	})

	ginkgo.It("accepts an unranked choice made under override", func() {
		tr := expectOK(lc.Choose(ep.ID, ChooseRequest{
			OptionID: stray.ID, UsedOverride: true, Rationale: "need logs first", ChosenBy: artifact.ChosenByPolicy,
		}))
		gomega.Expect(tr.Report.Rules()).NotTo(gomega.ContainElement(invariant.ChoiceRanked))
		ch := expectOK(store.MustGetAs[artifact.Choice](s, tr.ArtifactID))
		gomega.Expect(ch.UsedOverride).To(gomega.BeTrue())
		gomega.Expect(ch.ChosenBy).To(gomega.Equal(artifact.ChosenByPolicy))
	})

	ginkgo.It("rejects options missing from the store or the episode", func() {
		_, err := lc.Choose(ep.ID, ChooseRequest{OptionID: "opt_nowhere"})
		gomega.Expect(errors.Is(err, store.ErrNotFound)).To(gomega.BeTrue(), "err = %v", err)

		outsider := expectOK(artifact.NewOption(artifact.OptionHedge, "unrelated", 0.1, 1))
		_, err = s.Put(outsider)
		gomega.Expect(err).To(gomega.Succeed())
		_, err = lc.Choose(ep.ID, ChooseRequest{OptionID: outsider.ID})
		gomega.Expect(errors.Is(err, ErrOptionNotInEpisode)).To(gomega.BeTrue(), "err = %v", err)
	})

	ginkgo.It("needs a recommendation to choose from", func() {
		bare := artifact.NewEpisode("no recs").AddOptions(exec.ID)
		_, err := s.Put(bare)
		gomega.Expect(err).To(gomega.Succeed())
		_, err = lc.Choose(bare.ID, ChooseRequest{OptionID: exec.ID})
		gomega.Expect(errors.Is(err, ErrNoRecommendation)).To(gomega.BeTrue(), "err = %v", err)
	})

	ginkgo.It("requires an audited review after an override", func() {
		over := rec.WithOverride(gate.ScopeGateBypass)
		_, err := s.Put(over)
		gomega.Expect(err).To(gomega.Succeed())

		st := expectOK(lc.Status(ep.ID))
		gomega.Expect(st.ReviewRequired).To(gomega.BeTrue())

		tr := expectOK(lc.LogReview(ep.ID, artifact.NewReview(ep.ID)))
		gomega.Expect(tr.Report.Rules()).To(gomega.ConsistOf(invariant.OverrideAudited))

		audited := artifact.NewReview(ep.ID).AuditOverride(rec.ID, "bypass per runbook 7", gate.ScopeGateBypass)
		tr = expectOK(lc.LogReview(ep.ID, audited))
		gomega.Expect(tr.Report.OK()).To(gomega.BeTrue(), "violations: %v", tr.Report.Violations)
	})

	ginkgo.It("rejects artifacts that fail local validation", func() {
		_, err := lc.LogOutcome(ep.ID, artifact.Outcome{})
		gomega.Expect(errors.Is(err, artifact.ErrInvalid)).To(gomega.BeTrue(), "err = %v", err)
	})
})
