package main

import (
	"errors"

	"github.com/spf13/cobra"

	"constitution/internal/artifact"
	"constitution/internal/format"
	"constitution/internal/gate"
	"constitution/internal/invariant"
	"constitution/internal/store"
)

type gateFlags struct {
	impact        float64
	reversibility float64
	uncertainty   float64
	class         string
	deps          []string

	graph  string
	option string

	mode      string
	posture   string
	scope     []string
	rationale string
	useScope  []string
}

func newGateCmd(a *app) *cobra.Command {
	var fl gateFlags
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Evaluate whether an action class may proceed",
		Long: `Bands impact, reversibility and uncertainty into LOW/MEDIUM/HIGH, derives
the permitted action classes and checks the requested class against them.
The subject is either given as scalars or read from a stored option
(--option, usually with --graph).

Exits 2 when the action is not allowed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGate(cmd, a, fl)
		},
	}
	f := cmd.Flags()
	f.Float64Var(&fl.impact, "impact", 0, "impact in [0,1]")
	f.Float64Var(&fl.reversibility, "reversibility", 0, "reversibility in [0,1]")
	f.Float64Var(&fl.uncertainty, "uncertainty", 0, "uncertainty in [0,1]")
	f.StringVar(&fl.class, "class", "", "action class: probe, limited, commit")
	f.StringSliceVar(&fl.deps, "deps", nil, "observation ids the action depends on")
	f.StringVarP(&fl.graph, "graph", "g", "", "decision graph document to load first")
	f.StringVar(&fl.option, "option", "", "evaluate a stored option instead of scalars")
	f.StringVar(&fl.mode, "mode", "", "governance mode: advisory_only, extended_allowed")
	f.StringVar(&fl.posture, "posture", "", "risk posture: default, conservative")
	f.StringSliceVar(&fl.scope, "scope", nil, "declared override scope")
	f.StringVar(&fl.rationale, "rationale", "", "override rationale")
	f.StringSliceVar(&fl.useScope, "use-scope", nil, "override scope requested for this action")
	cmd.MarkFlagsMutuallyExclusive("option", "class")
	return cmd
}

func runGate(cmd *cobra.Command, a *app, fl gateFlags) error {
	subj, err := gateSubject(a, fl)
	if err != nil {
		return err
	}
	mode, err := gate.ParseGovernanceMode(fl.mode)
	if err != nil {
		return err
	}
	posture, err := gate.ParsePosture(fl.posture)
	if err != nil {
		return err
	}
	gov := gate.Governance{Mode: mode, Posture: posture, OverrideScope: fl.scope, OverrideRationale: fl.rationale}

	v := gate.Evaluate(subj, gov, fl.useScope)
	if err := format.Verdict(cmd.OutOrStdout(), a.mode, subj, v); err != nil {
		return err
	}
	if !v.Allowed {
		return errFailed
	}
	return nil
}

func gateSubject(a *app, fl gateFlags) (gate.Subject, error) {
	if fl.option == "" {
		if fl.class == "" {
			return gate.Subject{}, errors.New("gate: --class or --option is required")
		}
		class, err := gate.ParseActionClass(fl.class)
		if err != nil {
			return gate.Subject{}, err
		}
		return gate.Subject{
			Impact:        fl.impact,
			Reversibility: fl.reversibility,
			Uncertainty:   fl.uncertainty,
			Class:         class,
			Dependencies:  fl.deps,
		}, nil
	}

	st, _, closeStore, err := a.openStore(fl.graph)
	if err != nil {
		return gate.Subject{}, err
	}
	defer closeStore()
	opt, err := store.MustGetAs[artifact.Option](st, fl.option)
	if err != nil {
		return gate.Subject{}, err
	}
	return invariant.GateSubject(opt), nil
}
