package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunsCommand() *cobra.Command {
	var (
		storePath string
		limit     int
		events    bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs from a store",
		Example: `  # Show the last ten runs
  pkgsmith runs --store pkgsmith.db

  # Show runs with their stage events
  pkgsmith runs --store pkgsmith.db --events`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), storePath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.ListRuns(cmd.Context(), limit, 0)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd, runs)
			}

			out := cmd.OutOrStdout()
			for _, run := range runs {
				pkgID := "-"
				if run.PackageID != nil {
					pkgID = *run.PackageID
				}
				fmt.Fprintf(out, "%s  %s/%s  %s  %s\n",
					run.ID, run.Recipe, run.Version, run.Status, pkgID)
				if run.Error != nil {
					fmt.Fprintf(out, "  error: %s\n", *run.Error)
				}
				if events {
					stageEvents, err := store.ListStageEvents(cmd.Context(), run.ID)
					if err != nil {
						return err
					}
					for _, ev := range stageEvents {
						fmt.Fprintf(out, "  %-18s %s\n", ev.Stage, ev.Status)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "", "SQLite database to read (required)")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of runs to show")
	cmd.Flags().BoolVar(&events, "events", false, "include stage events")
	_ = cmd.MarkFlagRequired("store")

	return cmd
}
