package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"splice/internal/notifications"
)

func newJoinCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "join [input-root]",
		Short: "Reconstruct every session under the input root",
		Long: "Join processes each six-digit session directory under the input root into a\n" +
			"Preservation Master and cue sheet, moves the source tracks to the originals\n" +
			"directory, and prints a run report. Exit status is 0 when every session\n" +
			"succeeded, 2 when some produced only a Preservation Master, and 1 when any failed.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var root string
			if len(args) == 1 {
				root = args[0]
			}
			cfg, err := flags.effectiveConfig(cmd, base, root)
			if err != nil {
				return err
			}
			logger := ctx.loggerFor(cfg)

			runner, store, err := newRunner(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			rep, err := runner.Run(signalCtx, cfg.Paths.InputRoot)
			if err != nil {
				return err
			}
			notify(logger, func(notifyCtx context.Context) error {
				return notifications.NewService(cfg).NotifyRunCompleted(notifyCtx, rep.Snapshot())
			})
			if jsonOutput {
				if err := writeJSON(cmd, rep.Snapshot()); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				renderRunReport(out, rep, shouldColorize(out))
			}
			if code := rep.ExitCode(); code != 0 {
				return exitError{code: code}
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run report as JSON")
	return cmd
}
