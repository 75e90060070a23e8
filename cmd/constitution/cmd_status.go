package main

import (
	"github.com/spf13/cobra"

	"constitution/internal/format"
	"constitution/internal/lifecycle"
)

func newStatusCmd(a *app) *cobra.Command {
	var fl struct {
		graph   string
		episode string
	}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the lifecycle stage of an episode",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, _, closeStore, err := a.openStore(fl.graph)
			if err != nil {
				return err
			}
			defer closeStore()

			status, err := lifecycle.New(st).Status(fl.episode)
			if err != nil {
				return err
			}
			return format.Status(cmd.OutOrStdout(), a.mode, status)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&fl.graph, "graph", "g", "", "decision graph document to load first")
	f.StringVar(&fl.episode, "episode", "", "episode id")
	_ = cmd.MarkFlagRequired("episode")
	return cmd
}
