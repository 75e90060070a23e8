package lifecycle

import (
	"context"
	"log/slog"

	"constitution/internal/artifact"
	"constitution/internal/store"
)

// Steps produce the artifacts of one pass from raw input to recommendation.
// A nil step is skipped. Propose and Recommend run only when Orient returns
// an orientation.
type Steps struct {
	Observe   func(ctx context.Context, raw artifact.RawInput, ev *artifact.Evidence) ([]artifact.Observation, error)
	Interpret func(ctx context.Context, obs []artifact.Observation, ev *artifact.Evidence) ([]artifact.Interpretation, error)
	Orient    func(ctx context.Context, raw artifact.RawInput, obs []artifact.Observation, ints []artifact.Interpretation) (*artifact.Orientation, error)
	Propose   func(ctx context.Context, ori artifact.Orientation, obs []artifact.Observation, ints []artifact.Interpretation) ([]artifact.Option, error)
	Recommend func(ctx context.Context, ori artifact.Orientation, opts []artifact.Option, obs []artifact.Observation, ints []artifact.Interpretation) (*artifact.Recommendation, error)
}

// RunRequest seeds a pass. Evidence is optional.
type RunRequest struct {
	Title       string
	Description string
	RawInput    artifact.RawInput
	Evidence    *artifact.Evidence
}

// Run executes steps over req, stores every artifact they produce and a new
// episode binding them, and validates that episode. A step error aborts the
// pass before anything but the inputs is stored.
func (l *Lifecycle) Run(ctx context.Context, req RunRequest, steps Steps) (Transition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	inputs := []artifact.Artifact{req.RawInput}
	if req.Evidence != nil {
		inputs = append(inputs, *req.Evidence)
	}
	if err := store.PutAll(l.store, inputs...); err != nil {
		return Transition{}, err
	}

	ep := artifact.NewEpisode(req.Title).AddRawInputs(req.RawInput.ID)
	ep.Description = req.Description
	if req.Evidence != nil {
		ep = ep.AddEvidence(req.Evidence.ID)
	}
	out, err := runSteps(ctx, req, steps, &ep)
	if err != nil {
		return Transition{}, err
	}
	if err := store.PutAll(l.store, append(out, ep)...); err != nil {
		return Transition{}, err
	}
	return l.transition(ep, ep.ID, "episode drafted",
		slog.Int("artifacts", len(out)),
		slog.Int("recommendations", len(ep.RecommendationIDs)))
}

// runSteps calls each step in order, collecting their artifacts and
// appending their ids to ep.
func runSteps(ctx context.Context, req RunRequest, steps Steps, ep *artifact.Episode) ([]artifact.Artifact, error) {
	var (
		out  []artifact.Artifact
		obs  []artifact.Observation
		ints []artifact.Interpretation
		err  error
	)
	if steps.Observe != nil {
		if obs, err = steps.Observe(ctx, req.RawInput, req.Evidence); err != nil {
			return nil, err
		}
		*ep = ep.AddObservations(ids(obs)...)
		out = collect(out, obs)
	}
	if steps.Interpret != nil {
		if ints, err = steps.Interpret(ctx, obs, req.Evidence); err != nil {
			return nil, err
		}
		*ep = ep.AddInterpretations(ids(ints)...)
		out = collect(out, ints)
	}
	if steps.Orient == nil {
		return out, ctx.Err()
	}
	ori, err := steps.Orient(ctx, req.RawInput, obs, ints)
	if err != nil {
		return nil, err
	}
	if ori == nil {
		return out, ctx.Err()
	}
	*ep = ep.AddOrientations(ori.ID)
	out = append(out, *ori)

	var opts []artifact.Option
	if steps.Propose != nil {
		if opts, err = steps.Propose(ctx, *ori, obs, ints); err != nil {
			return nil, err
		}
		*ep = ep.AddOptions(ids(opts)...)
		out = collect(out, opts)
	}
	if steps.Recommend != nil {
		rec, err := steps.Recommend(ctx, *ori, opts, obs, ints)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			*ep = ep.AddRecommendations(rec.ID)
			out = append(out, *rec)
		}
	}
	return out, ctx.Err()
}

func ids[T artifact.Artifact](xs []T) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = x.ArtifactID()
	}
	return out
}

func collect[T artifact.Artifact](out []artifact.Artifact, xs []T) []artifact.Artifact {
	for _, x := range xs {
		out = append(out, x)
	}
	return out
}
