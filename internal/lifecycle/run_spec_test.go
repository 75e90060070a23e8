package lifecycle

import (
	"context"
	"errors"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"constitution/internal/artifact"
	"constitution/internal/gate"
	"constitution/internal/store"
)

var _ = ginkgo.Describe("Run", func() {
	var (
		s        *store.MemStore
		lc       *Lifecycle
		req      RunRequest
		steps    Steps
		proposed bool
	)

	ginkgo.BeforeEach(func() {
		s = store.NewMemStore()
		lc = New(s)
		proposed = false

		ev := expectOK(artifact.NewEvidence(0.8, artifact.SourceRef{URI: "https://grafana.example/d/db"}))
		req = RunRequest{
			Title:       "replica lag",
			Description: "lag alert on db-3",
			RawInput:    artifact.NewRawInput("pager", "replica lag 40s on db-3"),
			Evidence:    &ev,
		}
		steps = Steps{
			Observe: func(_ context.Context, _ artifact.RawInput, ev *artifact.Evidence) ([]artifact.Observation, error) {
				obs := expectOK(artifact.NewObservation(artifact.InfoMeasurement, "lag 40s", 0.9)).AddEvidence(ev.ID)
				return []artifact.Observation{obs}, nil
			},
			Orient: func(context.Context, artifact.RawInput, []artifact.Observation, []artifact.Interpretation) (*artifact.Orientation, error) {
				ori := artifact.NewOrientation("dba-oncall")
				return &ori, nil
			},
			Propose: func(_ context.Context, ori artifact.Orientation, obs []artifact.Observation, _ []artifact.Interpretation) ([]artifact.Option, error) {
				proposed = true
				unc := expectOK(artifact.NewUncertainty("lag may be transient", 0.2, artifact.UncertaintyVariance))
				failover := expectOK(artifact.NewOption(artifact.OptionExecute, "fail over reads", 0.2, 0.9)).
					WithActionClass(gate.Limited).
					WithOrientation(ori.ID).
					AddObservations(obs[0].ID).
					AddUncertainties(unc)
				wait := expectOK(artifact.NewOption(artifact.OptionHedge, "watch for five minutes", 0.05, 1))
				return []artifact.Option{failover, wait}, nil
			},
			Recommend: func(_ context.Context, ori artifact.Orientation, opts []artifact.Option, obs []artifact.Observation, _ []artifact.Interpretation) (*artifact.Recommendation, error) {
				rec := expectOK(artifact.NewRecommendation(ori.ID,
					expectOK(artifact.NewRankedOption(opts[0].ID, 1, 0.8, "sheds load", 0.7)),
					expectOK(artifact.NewRankedOption(opts[1].ID, 2, 0.4, "costs nothing", 0.6)),
				)).AddObservations(obs[0].ID)
				return &rec, nil
			},
		}
	})

	ginkgo.It("drafts a valid recommended episode binding every artifact", func() {
		tr := expectOK(lc.Run(context.Background(), req, steps))
		gomega.Expect(tr.Stage).To(gomega.Equal(Recommended))
		gomega.Expect(tr.Report.OK()).To(gomega.BeTrue(), "%v", tr.Report.Violations)

		ep := expectOK(store.MustGetAs[artifact.Episode](s, tr.EpisodeID))
		gomega.Expect(ep.Description).To(gomega.Equal("lag alert on db-3"))
		gomega.Expect(ep.RawInputIDs).To(gomega.ConsistOf(req.RawInput.ID))
		gomega.Expect(ep.EvidenceIDs).To(gomega.ConsistOf(req.Evidence.ID))
		gomega.Expect(ep.ObservationIDs).To(gomega.HaveLen(1))
		gomega.Expect(ep.OrientationIDs).To(gomega.HaveLen(1))
		gomega.Expect(ep.OptionIDs).To(gomega.HaveLen(2))
		gomega.Expect(ep.RecommendationIDs).To(gomega.HaveLen(1))

		for _, id := range ep.OptionIDs {
			expectOK(store.MustGetAs[artifact.Option](s, id))
		}
	})

	ginkgo.It("skips proposing and recommending without an orientation", func() {
		steps.Orient = func(context.Context, artifact.RawInput, []artifact.Observation, []artifact.Interpretation) (*artifact.Orientation, error) {
			return nil, nil
		}
		tr := expectOK(lc.Run(context.Background(), req, steps))
		gomega.Expect(proposed).To(gomega.BeFalse())
		gomega.Expect(tr.Stage).To(gomega.Equal(Drafted))

		ep := expectOK(store.MustGetAs[artifact.Episode](s, tr.EpisodeID))
		gomega.Expect(ep.OptionIDs).To(gomega.BeEmpty())
		gomega.Expect(ep.RecommendationIDs).To(gomega.BeEmpty())
	})

	ginkgo.It("stores no episode when a step fails", func() {
		boom := errors.New("model unavailable")
		steps.Propose = func(context.Context, artifact.Orientation, []artifact.Observation, []artifact.Interpretation) ([]artifact.Option, error) {
			return nil, boom
		}
		_, err := lc.Run(context.Background(), req, steps)
		gomega.Expect(errors.Is(err, boom)).To(gomega.BeTrue())

		gomega.Expect(s.ListIDs(artifact.KindEpisode)).To(gomega.BeEmpty())
		gomega.Expect(s.ListIDs(artifact.KindOption)).To(gomega.BeEmpty())
	})
})
