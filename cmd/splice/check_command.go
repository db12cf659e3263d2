package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"splice/internal/notifications"
	"splice/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var sendTest bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify directories and external tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Configuration", colorize) {
				fmt.Fprintln(out, line)
			}
			configPath := ctx.configPath
			if !ctx.configSeen {
				configPath += " (not found, using defaults)"
			}
			fmt.Fprintln(out, renderStatusLine("Config", statusInfo, configPath, colorize))
			fmt.Fprintln(out, renderStatusLine("Engine", statusInfo, cfg.Tools.Engine, colorize))
			prefixKind, prefix := statusOK, cfg.Project.Prefix
			if prefix == "" {
				prefixKind, prefix = statusWarn, "not set (pass --prefix)"
			}
			fmt.Fprintln(out, renderStatusLine("Prefix", prefixKind, prefix, colorize))
			fmt.Fprintln(out, renderStatusLine("Edit masters", statusInfo, yesNo(cfg.Loudness.Enabled), colorize))

			results := preflight.RunAll(cfg)
			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Directories", colorize) {
				fmt.Fprintln(out, line)
			}
			var dirResults []preflight.Result
			for _, r := range results {
				if r.Name != "FFmpeg" && r.Name != "FFprobe" {
					dirResults = append(dirResults, r)
				}
			}
			for _, line := range preflightLines(dirResults, colorize) {
				fmt.Fprintln(out, line)
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Tools", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range dependencyLines(preflight.CheckSystemDeps(cfg), colorize) {
				fmt.Fprintln(out, line)
			}

			failed := len(preflight.Failed(results)) > 0
			if sendTest {
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Notifications", colorize) {
					fmt.Fprintln(out, line)
				}
				switch {
				case cfg.Notifications.NtfyTopic == "":
					fmt.Fprintln(out, renderStatusLine("ntfy", statusWarn, "no topic configured", colorize))
				default:
					if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
						failed = true
						fmt.Fprintln(out, renderStatusLine("ntfy", statusError, err.Error(), colorize))
					} else {
						fmt.Fprintln(out, renderStatusLine("ntfy", statusOK, "test notification sent", colorize))
					}
				}
			}

			if failed {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&sendTest, "notify", false, "Send a test notification to the configured ntfy topic")
	return cmd
}
