package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gavel/internal/api"
	"gavel/internal/hearingaccess"
)

func newHearingsCommand(ctx *commandContext) *cobra.Command {
	hearingsCmd := &cobra.Command{
		Use:   "hearings",
		Short: "Inspect and manage tracked hearings",
	}

	hearingsCmd.AddCommand(newHearingsListCommand(ctx))
	hearingsCmd.AddCommand(newHearingsShowCommand(ctx))
	hearingsCmd.AddCommand(newHearingsRetryCommand(ctx))
	hearingsCmd.AddCommand(newHearingsSkipCommand(ctx))
	hearingsCmd.AddCommand(newHearingsRestoreCommand(ctx))
	hearingsCmd.AddCommand(newHearingsHealthCommand(ctx))

	return hearingsCmd
}

func newHearingsListCommand(ctx *commandContext) *cobra.Command {
	var stageFilter string
	var statusFilter string
	var stateFilter string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List hearings, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHearingAccess(func(access hearingaccess.Access) error {
				items, err := access.List(cmd.Context(), api.HearingFilter{
					Stage:     stageFilter,
					Status:    statusFilter,
					StateCode: strings.ToUpper(strings.TrimSpace(stateFilter)),
					Limit:     limit,
				})
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.HearingListResponse{Items: items})
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No hearings found")
					return nil
				}
				headers := []string{"ID", "State", "Title", "Stage", "Status", "Cost", "Updated"}
				aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, buildHearingRows(items), aligns))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&stageFilter, "stage", "", "Filter by pipeline stage")
	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status")
	cmd.Flags().StringVar(&stateFilter, "state", "", "Filter by state code")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum hearings to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit hearings as JSON")
	return cmd
}

func newHearingsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one hearing in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHearingID(args[0])
			if err != nil {
				return err
			}
			return ctx.withHearingAccess(func(access hearingaccess.Access) error {
				item, err := access.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.HearingItemResponse{Item: *item})
				}
				printHearingDetail(cmd, *item)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit hearing as JSON")
	return cmd
}

func printHearingDetail(cmd *cobra.Command, item api.HearingItem) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Hearing %d\n", item.ID)
	fmt.Fprintf(out, "  Title:    %s\n", item.Title)
	fmt.Fprintf(out, "  State:    %s\n", item.StateCode)
	if item.HearingDate != "" {
		fmt.Fprintf(out, "  Date:     %s\n", item.HearingDate)
	}
	fmt.Fprintf(out, "  Source:   %s\n", item.SourceURL)
	fmt.Fprintf(out, "  Stage:    %s\n", item.Stage)
	fmt.Fprintf(out, "  Status:   %s\n", formatStatusLabel(item.Status))
	fmt.Fprintf(out, "  Cost:     %s\n", formatCost(item.Cost))
	if item.RetryCount > 0 {
		fmt.Fprintf(out, "  Retries:  %d\n", item.RetryCount)
	}
	if item.LastError != "" {
		fmt.Fprintf(out, "  Error:    %s\n", item.LastError)
	}
	if item.UpdatedAt != "" {
		fmt.Fprintf(out, "  Updated:  %s\n", formatDisplayTime(item.UpdatedAt))
	}
}

func newHearingsRetryCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "retry [id]",
		Short: "Reset errored hearings back to pending",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				return ctx.withHearingAccess(func(access hearingaccess.Access) error {
					updated, err := access.RetryAll(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d hearings reset for retry\n", updated)
					return nil
				})
			}
			if len(args) == 0 {
				return fmt.Errorf("hearing id required unless --all is set")
			}
			id, err := parseHearingID(args[0])
			if err != nil {
				return err
			}
			return ctx.withHearingAccess(func(access hearingaccess.Access) error {
				item, err := access.Retry(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Hearing %d reset for retry (stage %s)\n", item.ID, item.Stage)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Retry every errored hearing")
	return cmd
}

func newHearingsSkipCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "skip <id>",
		Short: "Exclude a hearing from further processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHearingID(args[0])
			if err != nil {
				return err
			}
			return ctx.withHearingAccess(func(access hearingaccess.Access) error {
				item, err := access.Skip(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Hearing %d skipped at stage %s\n", item.ID, item.Stage)
				return nil
			})
		},
	}
}

func newHearingsRestoreCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Return a skipped hearing to processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHearingID(args[0])
			if err != nil {
				return err
			}
			return ctx.withHearingAccess(func(access hearingaccess.Access) error {
				item, err := access.Restore(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Hearing %d restored (stage %s, status %s)\n",
					item.ID, item.Stage, item.Status)
				return nil
			})
		},
	}
}

func newHearingsHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Summarize hearing counts by status and stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHearingAccess(func(access hearingaccess.Access) error {
				health, err := access.Health(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, health)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Total: %d  Pending: %d  Running: %d  Errored: %d  Skipped: %d  Complete: %d\n",
					health.Total, health.Pending, health.Running, health.Errored, health.Skipped, health.Complete)
				if rows := buildStageCountRows(health.ByStage); len(rows) > 0 {
					headers := []string{"Stage", "Hearings"}
					aligns := []columnAlignment{alignLeft, alignRight}
					fmt.Fprintln(out, renderTable(headers, rows, aligns))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit counts as JSON")
	return cmd
}

func parseHearingID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid hearing id %q", arg)
	}
	return id, nil
}
