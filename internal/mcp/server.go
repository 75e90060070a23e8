// Package mcp exposes kernel operations as Model Context Protocol tools so
// that agents can ask the kernel before acting. Tools only validate and
// report; none of them creates choices, outcomes or reviews.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"constitution/internal/artifact"
	"constitution/internal/engine"
	"constitution/internal/gate"
	"constitution/internal/graphdoc"
	"constitution/internal/invariant"
	"constitution/internal/lifecycle"
	"constitution/internal/logging"
	"constitution/internal/metrics"
	"constitution/internal/provider"
	"constitution/internal/store"
)

// Version is reported in the MCP implementation info.
var Version = "dev"

// Server wraps the MCP SDK server around one Store.
type Server struct {
	MCPServer *sdkmcp.Server
	Events    *EventLog

	store     store.Store
	engine    *engine.Engine
	lifecycle *lifecycle.Lifecycle
	metrics   *metrics.Kernel
	log       *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics counts every report, bundle and verdict the tools produce.
func WithMetrics(k *metrics.Kernel) Option {
	return func(s *Server) { s.metrics = k }
}

// NewServer registers the kernel tools over st.
func NewServer(st store.Store, opts ...Option) *Server {
	s := &Server{
		Events:    &EventLog{},
		store:     st,
		engine:    engine.New(st),
		lifecycle: lifecycle.New(st),
		log:       logging.New("mcp"),
	}
	for _, o := range opts {
		o(s)
	}
	s.MCPServer = sdkmcp.NewServer(&sdkmcp.Implementation{Name: "constitution", Version: Version}, nil)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "evaluate_option",
		Description: "Run the action-class risk gate on scalar inputs or on a stored option. Returns the permitted classes and whether the declared class needs an override.",
	}, s.handleEvaluateOption)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "validate_proposals",
		Description: "Validate provider proposal bundles (JSON or YAML documents) at the boundary. Bundles are processed in provider/model/run order; any violation rejects the whole bundle.",
	}, s.handleValidateProposals)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "validate_graph",
		Description: "Load a decision-graph document into the kernel store and validate its episodes, or the named episode or recommendation.",
	}, s.handleValidateGraph)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "episode_status",
		Description: "Report the derived lifecycle stage and artifact counts of a stored episode.",
	}, s.handleEpisodeStatus)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_events",
		Description: "Read the log of kernel decisions made by this server, or the entries since a given index.",
	}, s.handleGetEvents)
}

// --- Tool input/output types ---

type evaluateOptionInput struct {
	OptionID          string   `json:"option_id,omitempty" jsonschema:"stored option to gate; scalar fields are ignored when set"`
	Impact            float64  `json:"impact,omitempty" jsonschema:"impact in [0,1]"`
	Reversibility     float64  `json:"reversibility,omitempty" jsonschema:"reversibility in [0,1]"`
	Uncertainty       float64  `json:"uncertainty,omitempty" jsonschema:"uncertainty in [0,1]"`
	ActionClass       string   `json:"action_class,omitempty" jsonschema:"declared class: PROBE, LIMITED or COMMIT"`
	Dependencies      []string `json:"dependencies,omitempty" jsonschema:"upstream evidence, observation or interpretation ids"`
	GovernanceMode    string   `json:"governance_mode,omitempty" jsonschema:"ADVISORY_ONLY (default) or EXTENDED_ALLOWED"`
	RiskPosture       string   `json:"risk_posture,omitempty" jsonschema:"DEFAULT or CONSERVATIVE"`
	OverrideScope     []string `json:"override_scope,omitempty" jsonschema:"override scope declared by the orientation"`
	OverrideRationale string   `json:"override_rationale,omitempty" jsonschema:"override rationale declared by the orientation"`
	ScopeUsed         []string `json:"scope_used,omitempty" jsonschema:"override scope the caller invokes"`
}

type evaluateOptionOutput struct {
	Allowed          bool     `json:"allowed"`
	RequiresOverride bool     `json:"requires_override"`
	Reason           string   `json:"reason"`
	Risk             string   `json:"risk"`
	UncertaintyBand  string   `json:"uncertainty_band"`
	Permitted        []string `json:"permitted"`
}

type validateProposalsInput struct {
	Bundles     []string `json:"bundles" jsonschema:"proposal documents, each a JSON object or a YAML mapping"`
	EvidenceIDs []string `json:"evidence_ids,omitempty" jsonschema:"evidence ids that resolve in addition to the stored evidence"`
}

type violationOutput struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

type proposalResultOutput struct {
	Bundle     string            `json:"bundle"`
	Accepted   bool              `json:"accepted"`
	Violations []violationOutput `json:"violations"`
}

type validateProposalsOutput struct {
	Results  []proposalResultOutput `json:"results"`
	Accepted int                    `json:"accepted"`
	Rejected int                    `json:"rejected"`
}

type validateGraphInput struct {
	Graph            string `json:"graph" jsonschema:"decision-graph document (YAML or JSON)"`
	EpisodeID        string `json:"episode_id,omitempty" jsonschema:"validate only this episode"`
	RecommendationID string `json:"recommendation_id,omitempty" jsonschema:"validate only this recommendation"`
}

type referenceOutput struct {
	ArtifactType string `json:"artifact_type"`
	ArtifactID   string `json:"artifact_id"`
}

type reportOutput struct {
	Subject       string            `json:"subject"`
	OK            bool              `json:"ok"`
	Violations    []violationOutput `json:"violations"`
	ResolveErrors []referenceOutput `json:"resolve_errors"`
}

type validateGraphOutput struct {
	Stored  int            `json:"stored"`
	OK      bool           `json:"ok"`
	Reports []reportOutput `json:"reports"`
}

type episodeStatusInput struct {
	EpisodeID string `json:"episode_id" jsonschema:"episode to report on"`
}

type episodeStatusOutput struct {
	EpisodeID      string         `json:"episode_id"`
	Title          string         `json:"title"`
	Stage          string         `json:"stage"`
	Acted          bool           `json:"acted"`
	ChosenOptionID string         `json:"chosen_option_id,omitempty"`
	ReviewRequired bool           `json:"review_required"`
	Counts         map[string]int `json:"counts"`
}

type getEventsInput struct {
	Since int `json:"since,omitempty" jsonschema:"return events from this index onward (0-based)"`
}

type getEventsOutput struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
}

// --- Tool handlers ---

func (s *Server) handleEvaluateOption(_ context.Context, _ *sdkmcp.CallToolRequest, in evaluateOptionInput) (*sdkmcp.CallToolResult, evaluateOptionOutput, error) {
	subj, err := s.subject(in)
	if err != nil {
		return nil, evaluateOptionOutput{}, err
	}
	mode, err := gate.ParseGovernanceMode(in.GovernanceMode)
	if err != nil {
		return nil, evaluateOptionOutput{}, err
	}
	posture, err := gate.ParsePosture(in.RiskPosture)
	if err != nil {
		return nil, evaluateOptionOutput{}, err
	}
	gov := gate.Governance{Mode: mode, Posture: posture, OverrideScope: in.OverrideScope, OverrideRationale: in.OverrideRationale}

	v := gate.Evaluate(subj, gov, in.ScopeUsed)
	if s.metrics != nil {
		s.metrics.ObserveVerdict(v)
	}
	label := string(subj.Class)
	if in.OptionID != "" {
		label = in.OptionID
	}
	s.Events.Append("evaluate_option", label, v.Allowed)

	out := evaluateOptionOutput{
		Allowed:          v.Allowed,
		RequiresOverride: v.RequiresOverride,
		Reason:           v.Reason,
		Risk:             string(v.Risk),
		UncertaintyBand:  string(v.Uncertainty),
		Permitted:        []string{},
	}
	for _, c := range v.Permitted.Members() {
		out.Permitted = append(out.Permitted, string(c))
	}
	return nil, out, nil
}

func (s *Server) subject(in evaluateOptionInput) (gate.Subject, error) {
	if in.OptionID != "" {
		opt, err := store.MustGetAs[artifact.Option](s.store, in.OptionID)
		if err != nil {
			return gate.Subject{}, err
		}
		return invariant.GateSubject(opt), nil
	}
	subj := gate.Subject{
		Impact:        in.Impact,
		Reversibility: in.Reversibility,
		Uncertainty:   in.Uncertainty,
		Dependencies:  in.Dependencies,
	}
	if strings.TrimSpace(in.ActionClass) != "" {
		c, err := gate.ParseActionClass(in.ActionClass)
		if err != nil {
			return gate.Subject{}, err
		}
		subj.Class = c
	}
	return subj, nil
}

func (s *Server) handleValidateProposals(_ context.Context, _ *sdkmcp.CallToolRequest, in validateProposalsInput) (*sdkmcp.CallToolResult, validateProposalsOutput, error) {
	if len(in.Bundles) == 0 {
		return nil, validateProposalsOutput{}, errors.New("bundles is required")
	}
	bundles := make([]provider.Bundle, len(in.Bundles))
	for i, doc := range in.Bundles {
		b, err := provider.Decode([]byte(doc))
		if err != nil {
			return nil, validateProposalsOutput{}, fmt.Errorf("bundles[%d]: %w", i, err)
		}
		bundles[i] = b
	}
	stored, err := s.store.ListIDs(artifact.KindEvidence)
	if err != nil {
		return nil, validateProposalsOutput{}, err
	}
	idx := provider.NewEvidenceSet(append(stored, in.EvidenceIDs...)...)

	out := validateProposalsOutput{Results: []proposalResultOutput{}}
	for _, r := range provider.ValidateBatch(bundles, idx) {
		if s.metrics != nil {
			s.metrics.ObserveBundle(r.Accepted())
		}
		if r.Accepted() {
			out.Accepted++
		} else {
			out.Rejected++
		}
		s.Events.Append("validate_proposals", r.Bundle.Key(), r.Accepted(), invariant.Rules(r.Violations)...)
		out.Results = append(out.Results, proposalResultOutput{
			Bundle:     r.Bundle.Key(),
			Accepted:   r.Accepted(),
			Violations: violations(r.Violations),
		})
	}
	s.log.Info("proposals validated", slog.Int("accepted", out.Accepted), slog.Int("rejected", out.Rejected))
	return nil, out, nil
}

func (s *Server) handleValidateGraph(_ context.Context, _ *sdkmcp.CallToolRequest, in validateGraphInput) (*sdkmcp.CallToolResult, validateGraphOutput, error) {
	if strings.TrimSpace(in.Graph) == "" {
		return nil, validateGraphOutput{}, errors.New("graph is required")
	}
	doc, err := graphdoc.Load([]byte(in.Graph), "")
	if err != nil {
		return nil, validateGraphOutput{}, err
	}
	n, err := doc.Apply(s.store)
	if err != nil {
		return nil, validateGraphOutput{}, err
	}

	var reports []engine.Report
	switch {
	case in.RecommendationID != "":
		r, err := s.engine.ValidateRecommendation(in.RecommendationID)
		if err != nil {
			return nil, validateGraphOutput{}, err
		}
		reports = append(reports, r)
	case in.EpisodeID != "":
		r, err := s.engine.ValidateEpisode(in.EpisodeID)
		if err != nil {
			return nil, validateGraphOutput{}, err
		}
		reports = append(reports, r)
	default:
		for _, ep := range doc.Episodes {
			r, err := s.engine.ValidateEpisode(ep.ID)
			if err != nil {
				return nil, validateGraphOutput{}, err
			}
			reports = append(reports, r)
		}
	}

	out := validateGraphOutput{Stored: n, OK: true, Reports: []reportOutput{}}
	for _, r := range reports {
		s.observe(r)
		out.OK = out.OK && r.OK()
		out.Reports = append(out.Reports, toReport(r))
	}
	return nil, out, nil
}

func (s *Server) handleEpisodeStatus(_ context.Context, _ *sdkmcp.CallToolRequest, in episodeStatusInput) (*sdkmcp.CallToolResult, episodeStatusOutput, error) {
	if in.EpisodeID == "" {
		return nil, episodeStatusOutput{}, errors.New("episode_id is required")
	}
	st, err := s.lifecycle.Status(in.EpisodeID)
	if err != nil {
		return nil, episodeStatusOutput{}, err
	}
	return nil, episodeStatusOutput{
		EpisodeID:      st.EpisodeID,
		Title:          st.Title,
		Stage:          st.Stage.String(),
		Acted:          st.Acted,
		ChosenOptionID: st.ChosenOptionID,
		ReviewRequired: st.ReviewRequired,
		Counts:         st.Counts,
	}, nil
}

func (s *Server) handleGetEvents(_ context.Context, _ *sdkmcp.CallToolRequest, in getEventsInput) (*sdkmcp.CallToolResult, getEventsOutput, error) {
	return nil, getEventsOutput{Events: s.Events.Since(in.Since), Total: s.Events.Len()}, nil
}

func (s *Server) observe(r engine.Report) {
	if s.metrics != nil {
		s.metrics.ObserveReport(r)
	}
	s.Events.Append("validate_graph", r.Subject, r.OK(), invariant.Rules(r.Violations)...)
	if !r.OK() {
		s.log.Warn("graph invalid", slog.String("subject", r.Subject), slog.Any("rules", r.Rules()))
	}
}

func violations(vs []invariant.Violation) []violationOutput {
	out := make([]violationOutput, len(vs))
	for i, v := range vs {
		out[i] = violationOutput{Rule: string(v.Rule), Message: v.Message}
	}
	return out
}

func toReport(r engine.Report) reportOutput {
	out := reportOutput{
		Subject:       r.Subject,
		OK:            r.OK(),
		Violations:    violations(r.Violations),
		ResolveErrors: make([]referenceOutput, len(r.ResolveErrors)),
	}
	for i, e := range r.ResolveErrors {
		out.ResolveErrors[i] = referenceOutput{ArtifactType: string(e.ArtifactType), ArtifactID: e.ArtifactID}
	}
	return out
}
