package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"constitution/internal/artifact"
	"constitution/internal/format"
	"constitution/internal/provider"
)

type proposalsFlags struct {
	files    []string
	evidence []string
	graph    string
}

func newProposalsCmd(a *app) *cobra.Command {
	var fl proposalsFlags
	cmd := &cobra.Command{
		Use:   "proposals",
		Short: "Validate provider proposal bundles at the trust boundary",
		Long: `Decodes each bundle file (JSON or YAML), then validates the batch in
(provider_id, model_id, run_id) order. Evidence references resolve against
--evidence ids and any evidence in the store (see --graph and --db).

Exits 2 when any bundle is rejected.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProposals(cmd, a, fl)
		},
	}
	f := cmd.Flags()
	f.StringArrayVarP(&fl.files, "file", "f", nil, "proposal bundle file (repeatable)")
	f.StringSliceVar(&fl.evidence, "evidence", nil, "evidence ids known to exist")
	f.StringVarP(&fl.graph, "graph", "g", "", "decision graph document providing evidence")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runProposals(cmd *cobra.Command, a *app, fl proposalsFlags) error {
	if len(fl.files) == 0 {
		return errors.New("proposals: at least one --file is required")
	}
	bundles, err := readBundles(fl.files)
	if err != nil {
		return err
	}

	st, _, closeStore, err := a.openStore(fl.graph)
	if err != nil {
		return err
	}
	defer closeStore()
	stored, err := st.ListIDs(artifact.KindEvidence)
	if err != nil {
		return err
	}
	idx := provider.NewEvidenceSet(append(stored, fl.evidence...)...)

	results := provider.ValidateBatch(bundles, idx)
	if err := format.Proposals(cmd.OutOrStdout(), a.mode, results); err != nil {
		return err
	}
	for _, r := range results {
		if !r.Accepted() {
			return errFailed
		}
	}
	return nil
}

// readBundles decodes paths concurrently; bundles[i] comes from paths[i].
func readBundles(paths []string) ([]provider.Bundle, error) {
	bundles := make([]provider.Bundle, len(paths))
	var g errgroup.Group
	g.SetLimit(8)
	for i, path := range paths {
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read bundle: %w", err)
			}
			b, err := provider.Decode(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			bundles[i] = b
			return nil
		})
	}
	return bundles, g.Wait()
}
