package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"splice/internal/notifications"
	"splice/internal/report"
	"splice/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "watch [input-root]",
		Short: "Process new session directories as they arrive",
		Long: "Watch processes the sessions already under the input root, then each new\n" +
			"session directory once it has stopped changing for watch.quiet_seconds.",
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

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			notifier := notifications.NewService(cfg)
			handler := func(runCtx context.Context, dir string) error {
				rep, err := runner.RunSessions(runCtx, cfg.Paths.InputRoot, []string{dir})
				if err != nil {
					return err
				}
				for _, outcome := range rep.Entries() {
					fmt.Fprintln(out, renderOutcomeLine(outcome, colorize))
					if outcome.Status == report.StatusFailed {
						notify(logger, func(notifyCtx context.Context) error {
							return notifier.NotifySessionFailed(notifyCtx, outcome)
						})
					}
				}
				return nil
			}

			fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", cfg.Paths.InputRoot)
			return watch.New(cfg.Paths.InputRoot, cfg.WatchQuietPeriod(), handler, logger).Run(signalCtx)
		},
	}

	flags.register(cmd)
	return cmd
}
