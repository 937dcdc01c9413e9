package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gavel/internal/api"
	"gavel/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp.Status)
				}
				printDaemonStatus(cmd, resp.Status)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit status as JSON")
	return cmd
}

func printDaemonStatus(cmd *cobra.Command, status api.DaemonStatus) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	daemonKind := statusError
	daemonMsg := "stopped"
	if status.Running {
		daemonKind = statusOK
		daemonMsg = fmt.Sprintf("pid %d", status.PID)
	}
	fmt.Fprintln(out, renderStatusLine("Process", daemonKind, daemonMsg, colorize))
	fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))

	for _, line := range renderSectionHeader("Pipeline", colorize) {
		fmt.Fprintln(out, line)
	}
	pipelineKind := statusInfo
	pipelineMsg := status.Pipeline.Status
	if status.Pipeline.LastError != "" {
		pipelineKind = statusWarn
		pipelineMsg = fmt.Sprintf("%s (last error: %s)", status.Pipeline.Status, status.Pipeline.LastError)
	}
	fmt.Fprintln(out, renderStatusLine("State", pipelineKind, pipelineMsg, colorize))
	if run := status.Pipeline.Run; run != nil {
		fmt.Fprintln(out, renderStatusLine("Run", statusInfo,
			fmt.Sprintf("#%d %s, %d processed, %d errors, %s",
				run.ID, run.Status, run.Processed, run.ErrorCount, formatCost(run.TotalCost)), colorize))
	}
	for _, health := range status.Pipeline.StageHealth {
		kind := statusOK
		message := "ready"
		if !health.Ready {
			kind = statusError
			message = health.Detail
		}
		fmt.Fprintln(out, renderStatusLine("Worker "+health.Name, kind, message, colorize))
	}

	for _, line := range renderSectionHeader("Hearings", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Total", statusInfo, fmt.Sprintf("%d", status.Hearings.Total), colorize))
	fmt.Fprintln(out, renderStatusLine("Pending", statusInfo, fmt.Sprintf("%d", status.Hearings.Pending), colorize))
	erroredKind := statusOK
	if status.Hearings.Errored > 0 {
		erroredKind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Errored", erroredKind, fmt.Sprintf("%d", status.Hearings.Errored), colorize))
	fmt.Fprintln(out, renderStatusLine("Complete", statusInfo, fmt.Sprintf("%d", status.Hearings.Complete), colorize))

	reviewKind := statusOK
	if status.PendingReview > 0 {
		reviewKind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Awaiting review", reviewKind, fmt.Sprintf("%d", status.PendingReview), colorize))
}
