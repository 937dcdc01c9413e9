package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gavel/internal/api"
	"gavel/internal/ipc"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Control pipeline runs",
	}

	runCmd.AddCommand(newRunStartCommand(ctx))
	runCmd.AddCommand(newRunStopCommand(ctx))
	runCmd.AddCommand(newRunPauseCommand(ctx))
	runCmd.AddCommand(newRunResumeCommand(ctx))
	runCmd.AddCommand(newRunListCommand(ctx))

	return runCmd
}

func newRunStartCommand(ctx *commandContext) *cobra.Command {
	var states []string
	var maxCost float64
	var maxHearings int
	var onlyStage string
	var hearingIDs []int64
	var discoverOnly bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a pipeline run",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(hearingIDs) > 0 && onlyStage == "" {
				return fmt.Errorf("--hearing requires --stage")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PipelineStart(ipc.PipelineStartRequest{
					Options: api.StartPipelineRequest{
						States:       normalizeStates(states),
						MaxCost:      maxCost,
						MaxHearings:  maxHearings,
						OnlyStage:    onlyStage,
						HearingIDs:   hearingIDs,
						DiscoverOnly: discoverOnly,
					},
				})
				if err != nil {
					return err
				}
				if !resp.Started {
					return fmt.Errorf("pipeline not started: %s", resp.Message)
				}
				if resp.Run != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Pipeline run #%d started\n", resp.Run.ID)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Pipeline run started")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&states, "state", nil, "Limit discovery to these state codes")
	cmd.Flags().Float64Var(&maxCost, "max-cost", 0, "Stop the run when stage spend reaches this amount")
	cmd.Flags().IntVar(&maxHearings, "max-hearings", 0, "Stop admitting new hearings after this many")
	cmd.Flags().StringVar(&onlyStage, "stage", "", "Run only this pipeline stage")
	cmd.Flags().Int64SliceVar(&hearingIDs, "hearing", nil, "Limit a single-stage run to these hearing ids")
	cmd.Flags().BoolVar(&discoverOnly, "discover-only", false, "Discover new hearings without processing them")
	return cmd
}

func normalizeStates(states []string) []string {
	out := make([]string, 0, len(states))
	for _, s := range states {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func newRunStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the active run after in-flight hearings finish",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runControl(cmd, ctx, "stop", (*ipc.Client).PipelineStop)
		},
	}
}

func newRunPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the active run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runControl(cmd, ctx, "pause", (*ipc.Client).PipelinePause)
		},
	}
}

func newRunResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runControl(cmd, ctx, "resume", (*ipc.Client).PipelineResume)
		},
	}
}

func runControl(cmd *cobra.Command, ctx *commandContext, verb string, call func(*ipc.Client) (*ipc.PipelineControlResponse, error)) error {
	return ctx.withClient(func(client *ipc.Client) error {
		resp, err := call(client)
		if err != nil {
			return err
		}
		if !resp.OK {
			return fmt.Errorf("pipeline %s failed: %s", verb, resp.Message)
		}
		if resp.Message != "" {
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Pipeline %s requested\n", verb)
		}
		return nil
	})
}

func newRunListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show pipeline run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RunList(limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				if len(resp.Runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No pipeline runs recorded")
					return nil
				}
				headers := []string{"ID", "Started", "Finished", "Status", "Processed", "Errors", "Cost", "Reason"}
				aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, buildRunRows(resp.Runs), aligns))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit runs as JSON")
	return cmd
}
