package main

import (
	"errors"

	"github.com/spf13/cobra"

	"constitution/internal/engine"
	"constitution/internal/format"
)

type validateFlags struct {
	graph          string
	episode        string
	recommendation string
}

func newValidateCmd(a *app) *cobra.Command {
	var fl validateFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate an episode or recommendation against the kernel invariants",
		Long: `Loads an optional graph document into the configured store, then validates
the named episode or recommendation. Without a subject flag every episode in
the document is validated (or every recommendation when it has none).

Exits 2 when any report carries violations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd, a, fl)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&fl.graph, "graph", "g", "", "decision graph document (YAML or JSON)")
	f.StringVar(&fl.episode, "episode", "", "episode id to validate")
	f.StringVar(&fl.recommendation, "recommendation", "", "recommendation id to validate")
	cmd.MarkFlagsMutuallyExclusive("episode", "recommendation")
	return cmd
}

func runValidate(cmd *cobra.Command, a *app, fl validateFlags) error {
	st, doc, closeStore, err := a.openStore(fl.graph)
	if err != nil {
		return err
	}
	defer closeStore()

	eng := engine.New(st)
	var reports []engine.Report
	add := func(r engine.Report, err error) error {
		if err != nil {
			return err
		}
		reports = append(reports, r)
		return nil
	}

	switch {
	case fl.recommendation != "":
		err = add(eng.ValidateRecommendation(fl.recommendation))
	case fl.episode != "":
		err = add(eng.ValidateEpisode(fl.episode))
	case doc != nil && len(doc.Episodes) > 0:
		for _, ep := range doc.Episodes {
			if err = add(eng.ValidateEpisode(ep.ID)); err != nil {
				break
			}
		}
	case doc != nil:
		for _, rec := range doc.Recommendations {
			if err = add(eng.ValidateRecommendation(rec.ID)); err != nil {
				break
			}
		}
	default:
		return errors.New("validate: --episode or --recommendation is required without --graph")
	}
	if err != nil {
		return err
	}

	failed := false
	out := cmd.OutOrStdout()
	for _, r := range reports {
		if err := format.Report(out, a.mode, r); err != nil {
			return err
		}
		failed = failed || !r.OK()
	}
	if failed {
		return errFailed
	}
	return nil
}
