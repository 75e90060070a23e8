// Package canon turns accepted provider proposals into canonical artifacts.
// Providers only propose: every set passes the boundary validator before
// anything is stored, and the resulting episode is validated before it is
// returned.
package canon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"constitution/internal/artifact"
	"constitution/internal/engine"
	"constitution/internal/gate"
	"constitution/internal/invariant"
	"constitution/internal/logging"
	"constitution/internal/provider"
	"constitution/internal/store"
)

// ErrNoOrientation is returned when a run has no orientation to bind to.
var ErrNoOrientation = errors.New("canon: orientation id required")

// Request is the context handed to every provider.
type Request struct {
	Title          string   `json:"title"`
	OrientationID  string   `json:"orientation_id"`
	EvidenceIDs    []string `json:"evidence_ids,omitempty"`
	ObservationIDs []string `json:"observation_ids,omitempty"`
}

// Provider is an untrusted source of proposals.
type Provider interface {
	ID() string
	Propose(ctx context.Context, req Request) (provider.ProposalSet, error)
}

// Recorder observes boundary decisions. metrics.Kernel implements it.
type Recorder interface {
	ObserveBundle(accepted bool)
}

// Result is the outcome of one canonicalization run.
type Result struct {
	Episode        artifact.Episode
	Recommendation *artifact.Recommendation
	Accepted       []string
	Rejected       []provider.Result
	Report         engine.Report
}

// Canonicalizer writes accepted proposals into a Store.
type Canonicalizer struct {
	store    store.Store
	engine   *engine.Engine
	recorder Recorder
	log      *slog.Logger
}

// Option configures a Canonicalizer.
type Option func(*Canonicalizer)

// WithRecorder reports every accept/reject decision to r.
func WithRecorder(r Recorder) Option {
	return func(c *Canonicalizer) { c.recorder = r }
}

// New returns a Canonicalizer over s.
func New(s store.Store, opts ...Option) *Canonicalizer {
	c := &Canonicalizer{store: s, engine: engine.New(s), log: logging.New("canon")}
	for _, o := range opts {
		o(c)
	}
	return c
}

type proposal struct {
	set    provider.ProposalSet
	bundle provider.Bundle
}

// Run asks every provider concurrently, validates their sets in
// (provider_id, model_id, run_id) order, materializes the accepted ones
// into a new episode and returns it with its validation report. A provider
// error aborts the run before anything is stored.
func (c *Canonicalizer) Run(ctx context.Context, req Request, providers ...Provider) (Result, error) {
	if strings.TrimSpace(req.OrientationID) == "" {
		return Result{}, ErrNoOrientation
	}

	sets := make([]provider.ProposalSet, len(providers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		g.Go(func() error {
			ps, err := p.Propose(gctx, req)
			if err != nil {
				return fmt.Errorf("provider %s: %w", p.ID(), err)
			}
			sets[i] = ps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	evIDs, err := c.store.ListIDs(artifact.KindEvidence)
	if err != nil {
		return Result{}, err
	}
	idx := provider.NewEvidenceSet(evIDs...)

	props := make([]proposal, len(sets))
	for i, ps := range sets {
		props[i] = proposal{set: ps, bundle: ps.Bundle()}
	}
	sort.SliceStable(props, func(i, j int) bool { return provider.Less(props[i].bundle, props[j].bundle) })

	var res Result
	b := newBuilder(req)
	for _, p := range props {
		vs := provider.Validate(p.bundle, idx)
		var staged *builder
		if len(vs) == 0 {
			staged = b.fork()
			vs = staged.add(p.set, p.bundle.Key())
		}
		accepted := len(vs) == 0
		if c.recorder != nil {
			c.recorder.ObserveBundle(accepted)
		}
		if !accepted {
			res.Rejected = append(res.Rejected, provider.Result{Bundle: p.bundle, Violations: vs})
			c.log.Warn("proposal rejected",
				slog.String("provider_id", p.bundle.ProviderID),
				slog.String("run_id", p.bundle.RunID),
				slog.Any("rules", invariant.Rules(vs)))
			continue
		}
		b = staged
		res.Accepted = append(res.Accepted, p.bundle.Key())
	}

	ep, rec, err := b.build()
	if err != nil {
		return Result{}, err
	}
	if err := store.PutAll(c.store, b.artifacts()...); err != nil {
		return Result{}, err
	}
	if rec != nil {
		if _, err := c.store.Put(*rec); err != nil {
			return Result{}, err
		}
	}
	if _, err := c.store.Put(ep); err != nil {
		return Result{}, err
	}

	report, err := c.engine.ValidateEpisode(ep.ID)
	if err != nil {
		return Result{}, err
	}
	res.Episode, res.Recommendation, res.Report = ep, rec, report
	c.log.Info("canonicalized",
		slog.String("episode_id", ep.ID),
		slog.Int("accepted", len(res.Accepted)),
		slog.Int("rejected", len(res.Rejected)),
		slog.Bool("ok", report.OK()))
	return res, nil
}

// builder accumulates materialized artifacts across accepted sets.
type builder struct {
	req      Request
	ints     []artifact.Interpretation
	opts     []artifact.Option
	byTitle  map[string]string
	ranked   []candidate
	evidence []string
	models   []string
}

type candidate struct {
	optionID   string
	title      string
	rank       int
	seq        int
	rationale  string
	confidence float64
}

func newBuilder(req Request) *builder {
	return &builder{req: req, byTitle: map[string]string{}}
}

func (b *builder) fork() *builder {
	c := *b
	c.ints = append([]artifact.Interpretation(nil), b.ints...)
	c.opts = append([]artifact.Option(nil), b.opts...)
	c.ranked = append([]candidate(nil), b.ranked...)
	c.evidence = append([]string(nil), b.evidence...)
	c.models = append([]string(nil), b.models...)
	c.byTitle = make(map[string]string, len(b.byTitle))
	for k, v := range b.byTitle {
		c.byTitle[k] = v
	}
	return &c
}

func titleKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func providerUncertainty(level float64) artifact.Uncertainty {
	return artifact.Uncertainty{
		Description: "provider-declared uncertainty",
		Level:       artifact.Clamp01(level),
		Kind:        artifact.UncertaintyOther,
	}
}

// add materializes one validated set. Fields the boundary rules do not
// cover, such as enum strings, can still be malformed; those reject the set.
func (b *builder) add(ps provider.ProposalSet, key string) []invariant.Violation {
	var vs []invariant.Violation
	bad := func(kind, label string, err error) {
		vs = append(vs, invariant.New(invariant.ProviderItemCompleteness, "%s %s: %v", kind, label, err))
	}

	for _, in := range ps.Interpretations {
		t := artifact.InfoHypothesis
		if in.InfoType != "" {
			parsed, err := artifact.ParseInfoType(in.InfoType)
			if err != nil {
				bad(provider.KindInterpretation, in.ID, err)
				continue
			}
			t = parsed
		}
		title := in.Title
		if title == "" {
			title = in.ID
		}
		it, err := artifact.NewInterpretation(t, title, in.Text, artifact.Clamp01(in.Confidence))
		if err != nil {
			bad(provider.KindInterpretation, in.ID, err)
			continue
		}
		b.ints = append(b.ints, it.
			AddEvidence(in.EvidenceRefs...).
			AddObservations(b.req.ObservationIDs...).
			AddUncertainties(providerUncertainty(in.Uncertainty.Level)))
	}

	local := map[string]string{}
	for _, po := range ps.Options {
		if id, dup := b.byTitle[titleKey(po.Title)]; dup {
			local[po.ID] = id
			continue
		}
		kind, err := artifact.ParseOptionKind(po.Kind)
		if err != nil {
			bad(provider.KindOption, po.ID, err)
			continue
		}
		class, err := gate.ParseActionClass(po.ActionClass)
		if po.ActionClass != "" && err != nil {
			bad(provider.KindOption, po.ID, err)
			continue
		}
		opt, err := artifact.NewOption(kind, po.Title, artifact.Clamp01(po.Impact), artifact.Clamp01(po.Reversibility))
		if err != nil {
			bad(provider.KindOption, po.ID, err)
			continue
		}
		opt = opt.WithDescription(po.Description).
			WithActionClass(class).
			WithOrientation(b.req.OrientationID).
			AddEvidence(po.EvidenceRefs...).
			AddObservations(b.req.ObservationIDs...).
			AddUncertainties(providerUncertainty(po.Uncertainty.Level))
		b.opts = append(b.opts, opt)
		b.byTitle[titleKey(po.Title)] = opt.ID
		local[po.ID] = opt.ID
	}

	for _, ro := range ps.RankedOptions {
		id, ok := local[ro.OptionRef]
		if !ok {
			continue
		}
		b.ranked = append(b.ranked, candidate{
			optionID:   id,
			title:      b.title(id),
			rank:       ro.Rank,
			seq:        len(b.ranked),
			rationale:  ro.Rationale,
			confidence: artifact.Clamp01(ro.Confidence),
		})
	}

	b.evidence = append(b.evidence, ps.EvidenceRefs()...)
	b.models = append(b.models, key)
	return vs
}

func (b *builder) title(optionID string) string {
	for _, o := range b.opts {
		if o.ID == optionID {
			return o.Title
		}
	}
	return ""
}

// rankedOptions merges every accepted ranking: ordered by (rank, title),
// first occurrence of an option wins, ranks re-assigned 1..N. Without any
// ranking, all options are ranked by title.
func (b *builder) rankedOptions() ([]artifact.RankedOption, error) {
	cands := append([]candidate(nil), b.ranked...)
	if len(cands) == 0 {
		for i, o := range b.opts {
			cands = append(cands, candidate{optionID: o.ID, title: o.Title, rank: 1, seq: i,
				rationale: "unranked by providers; ordered by title", confidence: 0.5})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		a, c := cands[i], cands[j]
		if a.rank != c.rank {
			return a.rank < c.rank
		}
		if ta, tc := titleKey(a.title), titleKey(c.title); ta != tc {
			return ta < tc
		}
		return a.seq < c.seq
	})

	seen := map[string]bool{}
	var out []artifact.RankedOption
	for _, cd := range cands {
		if seen[cd.optionID] {
			continue
		}
		seen[cd.optionID] = true
		ro, err := artifact.NewRankedOption(cd.optionID, len(out)+1, cd.confidence, cd.rationale, cd.confidence)
		if err != nil {
			return nil, err
		}
		out = append(out, ro)
	}
	return out, nil
}

func (b *builder) build() (artifact.Episode, *artifact.Recommendation, error) {
	ep := artifact.NewEpisode(b.req.Title).
		AddEvidence(b.req.EvidenceIDs...).
		AddEvidence(b.evidence...).
		AddObservations(b.req.ObservationIDs...).
		AddOrientations(b.req.OrientationID)
	for _, in := range b.ints {
		ep = ep.AddInterpretations(in.ID)
	}
	for _, o := range b.opts {
		ep = ep.AddOptions(o.ID)
	}
	if len(b.opts) == 0 {
		return ep, nil, nil
	}

	ranked, err := b.rankedOptions()
	if err != nil {
		return artifact.Episode{}, nil, err
	}
	rec, err := artifact.NewRecommendation(b.req.OrientationID, ranked...)
	if err != nil {
		return artifact.Episode{}, nil, err
	}
	intIDs := make([]string, len(b.ints))
	for i, in := range b.ints {
		intIDs[i] = in.ID
	}
	rec = rec.AddEvidence(b.evidence...).
		AddObservations(b.req.ObservationIDs...).
		AddInterpretations(intIDs...).
		AddModelStates(b.models...)
	ep = ep.AddRecommendations(rec.ID)
	return ep, &rec, nil
}

func (b *builder) artifacts() []artifact.Artifact {
	out := make([]artifact.Artifact, 0, len(b.ints)+len(b.opts))
	for _, in := range b.ints {
		out = append(out, in)
	}
	for _, o := range b.opts {
		out = append(out, o)
	}
	return out
}
