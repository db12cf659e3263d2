package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"splice/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var sessionID string
	var runID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past runs and session outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			switch {
			case sessionID != "" || runID != "":
				var records []history.SessionRecord
				if sessionID != "" {
					records, err = store.SessionHistory(cmd.Context(), sessionID)
				} else {
					records, err = store.Sessions(cmd.Context(), runID)
				}
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, records)
				}
				if len(records) == 0 {
					fmt.Fprintln(out, "No sessions recorded")
					return nil
				}
				withRun := sessionID != ""
				columns := []column{textCol("Session")}
				if withRun {
					columns = append(columns, textCol("Run"))
				}
				columns = append(columns, textCol("Status"), textCol("Started"), numCol("Measured"), numCol("Gain"), textCol("Notes"))
				fmt.Fprintln(out, renderTable(columns, buildSessionRows(records, withRun)))
				return nil
			default:
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderTable([]column{
					textCol("Run"), textCol("Started"), numCol("Duration"), numCol("Sessions"),
					numCol("OK"), numCol("Fallback"), numCol("Partial"), numCol("Failed"), numCol("Exit"),
				}, buildRunRows(runs)))
				return nil
			}
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to list (0 for all)")
	cmd.Flags().StringVar(&sessionID, "session", "", "Show every recorded outcome for a session ID")
	cmd.Flags().StringVar(&runID, "run", "", "Show the session outcomes of one run")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	return cmd
}
