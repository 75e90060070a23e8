package main

import (
	"github.com/spf13/cobra"

	"constitution/internal/canon"
	"constitution/internal/format"
)

type canonFlags struct {
	files        []string
	graph        string
	orientation  string
	title        string
	evidence     []string
	observations []string
}

func newCanonCmd(a *app) *cobra.Command {
	var fl canonFlags
	cmd := &cobra.Command{
		Use:   "canon",
		Short: "Materialize accepted provider proposals into a new episode",
		Long: `Reads proposal sets from files, screens each one at the trust boundary and
merges the accepted sets into canonical interpretations, options and a
recommendation bound to --orientation. The new episode is stored (use --db
to keep it) and validated.

Exits 2 when the resulting episode report carries violations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCanon(cmd, a, fl)
		},
	}
	f := cmd.Flags()
	f.StringArrayVarP(&fl.files, "file", "f", nil, "proposal set file (repeatable)")
	f.StringVarP(&fl.graph, "graph", "g", "", "decision graph document with evidence and orientation")
	f.StringVar(&fl.orientation, "orientation", "", "orientation id the recommendation binds to")
	f.StringVar(&fl.title, "title", "", "episode title")
	f.StringSliceVar(&fl.evidence, "evidence", nil, "evidence ids to attach to the episode")
	f.StringSliceVar(&fl.observations, "observation", nil, "observation ids to attach to the episode")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("orientation")
	return cmd
}

func runCanon(cmd *cobra.Command, a *app, fl canonFlags) error {
	st, _, closeStore, err := a.openStore(fl.graph)
	if err != nil {
		return err
	}
	defer closeStore()

	providers := make([]canon.Provider, len(fl.files))
	for i, path := range fl.files {
		providers[i] = canon.FileProvider{Path: path}
	}
	req := canon.Request{
		Title:          fl.title,
		OrientationID:  fl.orientation,
		EvidenceIDs:    fl.evidence,
		ObservationIDs: fl.observations,
	}
	res, err := canon.New(st).Run(cmd.Context(), req, providers...)
	if err != nil {
		return err
	}
	if err := format.Canon(cmd.OutOrStdout(), a.mode, res); err != nil {
		return err
	}
	if !res.Report.OK() {
		return errFailed
	}
	return nil
}
