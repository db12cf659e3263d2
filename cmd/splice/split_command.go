package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"splice/internal/config"
	"splice/internal/split"
)

func newSplitCommand(ctx *commandContext) *cobra.Command {
	var destDir string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "split <master> <cue>",
		Short: "Split a master back into one file per cue track",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.loggerFor(cfg)

			master, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve master path: %w", err)
			}
			cuePath, err := config.ExpandPath(args[1])
			if err != nil {
				return fmt.Errorf("resolve cue path: %w", err)
			}
			dest := destDir
			if dest == "" {
				dest = filepath.Dir(master)
			}
			if dest, err = config.ExpandPath(dest); err != nil {
				return fmt.Errorf("resolve destination: %w", err)
			}

			toolkit, err := newToolkit(cfg, logger)
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			produced, err := split.New(toolkit, logger).SplitFile(signalCtx, master, cuePath, dest)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, produced)
			}
			rows := make([][]string, 0, len(produced))
			for _, track := range produced {
				rows = append(rows, []string{
					strconv.Itoa(track.Ordinal),
					track.Name(),
					strconv.FormatInt(track.Samples, 10),
					formatDuration(track.Duration),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]column{numCol("#"), textCol("File"), numCol("Samples"), numCol("Duration")},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&destDir, "dest", "d", "", "Directory for the track files (default: the master's directory)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the produced tracks as JSON")
	return cmd
}
