package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"splice/internal/workdir"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove scratch directories left in the work directory by interrupted runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			dirs, err := workdir.ListDirectories(cfg.Paths.WorkDir)
			if err != nil {
				return fmt.Errorf("list work directory: %w", err)
			}
			if len(dirs) == 0 {
				fmt.Fprintln(out, "No scratch directories found")
				return nil
			}
			if dryRun {
				rows := make([][]string, 0, len(dirs))
				for _, dir := range dirs {
					rows = append(rows, []string{dir.Name, dir.SessionID, humanize.Time(dir.ModTime), humanize.IBytes(uint64(dir.Size))})
				}
				fmt.Fprintln(out, renderTable(
					[]column{textCol("Directory"), textCol("Session"), textCol("Modified"), numCol("Size")},
					rows,
				))
				return nil
			}

			result := workdir.CleanStale(cmd.Context(), cfg.Paths.WorkDir, maxAge, ctx.loggerFor(cfg))
			fmt.Fprintf(out, "Removed %d of %d scratch directories\n", len(result.Removed), len(dirs))
			for _, failure := range result.Errors {
				fmt.Fprintf(out, "  %s: %v\n", failure.Path, failure.Error)
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d scratch directories could not be removed", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", workdir.DefaultMaxAge, "Only remove directories older than this")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List scratch directories without removing them")
	return cmd
}
