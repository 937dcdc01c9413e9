package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gavel/internal/api"
	"gavel/internal/ipc"
)

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage automation schedules",
	}

	scheduleCmd.AddCommand(newScheduleListCommand(ctx))
	scheduleCmd.AddCommand(newScheduleAddCommand(ctx))
	scheduleCmd.AddCommand(newScheduleUpdateCommand(ctx))
	scheduleCmd.AddCommand(newScheduleEnableCommand(ctx, true))
	scheduleCmd.AddCommand(newScheduleEnableCommand(ctx, false))
	scheduleCmd.AddCommand(newScheduleRemoveCommand(ctx))

	return scheduleCmd
}

func newScheduleListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ScheduleList()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				if len(resp.Schedules) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No schedules configured")
					return nil
				}
				headers := []string{"ID", "Name", "Trigger", "Target", "Enabled", "States", "Next Run", "Last Status"}
				aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, buildScheduleRows(resp.Schedules), aligns))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit schedules as JSON")
	return cmd
}

func scheduleFlagSet(cmd *cobra.Command, req *api.ScheduleRequest, states *[]string) {
	cmd.Flags().StringVar(&req.Trigger, "trigger", "", "Trigger kind (cron, interval, daily)")
	cmd.Flags().StringVar(&req.Value, "value", "", "Trigger value, e.g. a cron expression or 03:15")
	cmd.Flags().StringVar(&req.Target, "target", "", "What the schedule runs (pipeline, discover)")
	cmd.Flags().Float64Var(&req.MaxCost, "max-cost", 0, "Cost ceiling for triggered runs")
	cmd.Flags().IntVar(&req.MaxHearings, "max-hearings", 0, "Hearing ceiling for triggered runs")
	cmd.Flags().StringSliceVar(states, "state", nil, "Restrict triggered runs to these state codes")
}

func newScheduleAddCommand(ctx *commandContext) *cobra.Command {
	var req api.ScheduleRequest
	var states []string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = strings.TrimSpace(args[0])
			req.StateScope = normalizeStates(states)
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ScheduleCreate(ipc.ScheduleCreateRequest{Schedule: req})
				if err != nil {
					return err
				}
				s := resp.Schedule
				fmt.Fprintf(cmd.OutOrStdout(), "Schedule %d (%s) created", s.ID, s.Name)
				if s.NextRunAt != "" {
					fmt.Fprintf(cmd.OutOrStdout(), ", next run %s", formatDisplayTime(s.NextRunAt))
				}
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}

	scheduleFlagSet(cmd, &req, &states)
	return cmd
}

func newScheduleUpdateCommand(ctx *commandContext) *cobra.Command {
	var req api.ScheduleRequest
	var states []string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a schedule's trigger or limits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseScheduleID(args[0])
			if err != nil {
				return err
			}
			req.StateScope = normalizeStates(states)
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ScheduleUpdate(ipc.ScheduleUpdateRequest{ID: id, Schedule: req})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schedule %d updated\n", resp.Schedule.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Rename the schedule")
	scheduleFlagSet(cmd, &req, &states)
	return cmd
}

func newScheduleEnableCommand(ctx *commandContext, enable bool) *cobra.Command {
	use := "enable <id>"
	short := "Enable a schedule"
	if !enable {
		use = "disable <id>"
		short = "Disable a schedule"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseScheduleID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.ScheduleEnable(id, enable); err != nil {
					return err
				}
				state := "enabled"
				if !enable {
					state = "disabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schedule %d %s\n", id, state)
				return nil
			})
		},
	}
}

func newScheduleRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseScheduleID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.ScheduleDelete(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Schedule %d removed\n", id)
				return nil
			})
		},
	}
}

func parseScheduleID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid schedule id %q", arg)
	}
	return id, nil
}
