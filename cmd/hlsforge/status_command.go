package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hlsforge/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}
			printDaemonStatus(cmd, status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	return cmd
}

func printDaemonStatus(cmd *cobra.Command, status api.DaemonStatus) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	runningKind := statusOK
	runningMsg := fmt.Sprintf("pid %d", status.PID)
	if !status.Running {
		runningKind = statusError
		runningMsg = ""
	}
	fmt.Fprintln(out, renderStatusLine("Running", runningKind, runningMsg, colorize))
	fmt.Fprintln(out, renderStatusLine("Library DB", statusInfo, status.LibraryDBPath, colorize))
	fmt.Fprintln(out, renderStatusLine("Lock file", statusInfo, status.LockFilePath, colorize))
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Jobs", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Total", statusInfo, fmt.Sprintf("%d", status.Jobs.Total), colorize))
	fmt.Fprintln(out, renderStatusLine("Pending", statusInfo, fmt.Sprintf("%d", status.Jobs.Pending), colorize))
	fmt.Fprintln(out, renderStatusLine("Running", statusInfo, fmt.Sprintf("%d", status.Jobs.Running), colorize))
	fmt.Fprintln(out, renderStatusLine("Completed", statusOK, fmt.Sprintf("%d", status.Jobs.Completed), colorize))
	failedKind := statusInfo
	if status.Jobs.Failed > 0 {
		failedKind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Failed", failedKind, fmt.Sprintf("%d", status.Jobs.Failed), colorize))
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, dep := range status.Dependencies {
		kind := statusOK
		message := dep.Command
		if !dep.Available {
			kind = statusError
			if dep.Optional {
				kind = statusWarn
			}
			if dep.Detail != "" {
				message = dep.Detail
			}
		}
		fmt.Fprintln(out, renderStatusLine(dep.Name, kind, message, colorize))
	}
}
