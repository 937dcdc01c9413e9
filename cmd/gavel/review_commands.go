package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gavel/internal/api"
	"gavel/internal/ipc"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Work the entity resolution review queue",
	}

	reviewCmd.AddCommand(newReviewListCommand(ctx))
	reviewCmd.AddCommand(newReviewShowCommand(ctx))
	reviewCmd.AddCommand(newReviewActCommand(ctx, "approve", "Link a candidate to its top suggestion"))
	reviewCmd.AddCommand(newReviewActCommand(ctx, "reject", "Discard a candidate without linking"))
	reviewCmd.AddCommand(newReviewLinkCommand(ctx))
	reviewCmd.AddCommand(newReviewCorrectCommand(ctx))
	reviewCmd.AddCommand(newReviewBulkCommand(ctx))
	reviewCmd.AddCommand(newReviewHearingsCommand(ctx))

	return reviewCmd
}

func newReviewListCommand(ctx *commandContext) *cobra.Command {
	var entityType string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List candidates awaiting review",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ReviewList(ipc.ReviewListRequest{
					EntityType: entityType,
					Limit:      limit,
				})
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				if len(resp.Candidates) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Review queue is empty")
					return nil
				}
				headers := []string{"ID", "Hearing", "Type", "Text", "Conf", "Class", "Top Suggestion"}
				aligns := []columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, buildReviewRows(resp.Candidates), aligns))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&entityType, "type", "", "Filter by entity type (legislator, committee, bill, organization)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum candidates to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit candidates as JSON")
	return cmd
}

func newReviewShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one review candidate with its suggestions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseReviewID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ReviewDescribe(id)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				printCandidateDetail(cmd, resp.Candidate)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit candidate as JSON")
	return cmd
}

func printCandidateDetail(cmd *cobra.Command, c api.ReviewCandidate) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Candidate %d (hearing %d)\n", c.ID, c.HearingID)
	fmt.Fprintf(out, "  Type:       %s\n", c.EntityType)
	fmt.Fprintf(out, "  Text:       %s\n", c.RawText)
	if c.Normalized != "" && c.Normalized != c.RawText {
		fmt.Fprintf(out, "  Normalized: %s\n", c.Normalized)
	}
	fmt.Fprintf(out, "  Class:      %s (%d%% confidence)\n", c.Classification, c.Confidence)
	if c.ReviewReason != "" {
		fmt.Fprintf(out, "  Reason:     %s\n", c.ReviewReason)
	}
	fmt.Fprintf(out, "  Status:     %s\n", formatStatusLabel(c.Status))
	if c.EntityID != 0 {
		fmt.Fprintf(out, "  Entity:     %d\n", c.EntityID)
	}
	if len(c.Suggestions) > 0 {
		fmt.Fprintln(out, "  Suggestions:")
		for _, s := range c.Suggestions {
			fmt.Fprintf(out, "    %6d  %-30s  %3d\n", s.EntityID, truncate(s.DisplayName, 30), s.Score)
		}
	}
}

func newReviewActCommand(ctx *commandContext, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseReviewID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ReviewAct(ipc.ReviewActRequest{
					ID:     id,
					Action: api.ReviewActionRequest{Action: action},
				})
				if err != nil {
					return err
				}
				printActOutcome(cmd, resp.Candidate)
				return nil
			})
		},
	}
}

func newReviewLinkCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "link <id> <entity-id>",
		Short: "Link a candidate to a specific registry entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseReviewID(args[0])
			if err != nil {
				return err
			}
			entityID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || entityID <= 0 {
				return fmt.Errorf("invalid entity id %q", args[1])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ReviewAct(ipc.ReviewActRequest{
					ID:     id,
					Action: api.ReviewActionRequest{Action: "link", EntityID: entityID},
				})
				if err != nil {
					return err
				}
				printActOutcome(cmd, resp.Candidate)
				return nil
			})
		},
	}
}

func newReviewCorrectCommand(ctx *commandContext) *cobra.Command {
	var displayName string

	cmd := &cobra.Command{
		Use:   "correct <id> <text>",
		Short: "Correct a candidate's text and register it as a new entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseReviewID(args[0])
			if err != nil {
				return err
			}
			corrected := strings.TrimSpace(args[1])
			if corrected == "" {
				return fmt.Errorf("corrected text must not be empty")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ReviewAct(ipc.ReviewActRequest{
					ID: id,
					Action: api.ReviewActionRequest{
						Action:        "correct",
						CorrectedText: corrected,
						DisplayName:   displayName,
					},
				})
				if err != nil {
					return err
				}
				printActOutcome(cmd, resp.Candidate)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&displayName, "display-name", "", "Display name for the registered entity")
	return cmd
}

func printActOutcome(cmd *cobra.Command, c api.ReviewCandidate) {
	if c.EntityID != 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Candidate %d %s (entity %d)\n", c.ID, c.Status, c.EntityID)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Candidate %d %s\n", c.ID, c.Status)
}

func newReviewBulkCommand(ctx *commandContext) *cobra.Command {
	var entityType string
	var threshold int

	cmd := &cobra.Command{
		Use:   "bulk <hearing-id> <approve|reject>",
		Short: "Resolve a hearing's pending candidates at once",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hearingID, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || hearingID <= 0 {
				return fmt.Errorf("invalid hearing id %q", args[0])
			}
			action, err := bulkActionName(args[1], threshold)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ReviewBulk(ipc.ReviewBulkRequest{
					Request: api.ReviewBulkRequest{
						HearingID:  hearingID,
						Action:     action,
						EntityType: entityType,
						Threshold:  threshold,
					},
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d candidates resolved\n", resp.Resolved)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&entityType, "type", "", "Restrict to one entity type")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "Approve only candidates at or above this confidence")
	return cmd
}

// bulkActionName maps the CLI verbs onto the daemon's bulk action names. An
// approve with a threshold only takes the high-confidence candidates.
func bulkActionName(verb string, threshold int) (string, error) {
	switch strings.ToLower(strings.TrimSpace(verb)) {
	case "approve":
		if threshold > 0 {
			return "approve_high_confidence", nil
		}
		return "approve_all", nil
	case "reject":
		return "reject_all", nil
	}
	return "", fmt.Errorf("bulk action must be approve or reject, got %q", verb)
}

func newReviewHearingsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "hearings",
		Short: "Summarize hearings awaiting review",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ReviewHearings()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				if len(resp.Hearings) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No hearings awaiting review")
					return nil
				}
				headers := []string{"Hearing", "State", "Title", "Pending", "By Type"}
				aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft}
				rows := make([][]string, 0, len(resp.Hearings))
				for _, h := range resp.Hearings {
					rows = append(rows, []string{
						strconv.FormatInt(h.HearingID, 10),
						h.StateCode,
						truncate(h.HearingTitle, 40),
						strconv.Itoa(h.Total),
						formatTypeCounts(h.CountsByType),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit summaries as JSON")
	return cmd
}

func formatTypeCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%s:%d", t, counts[t]))
	}
	return strings.Join(parts, " ")
}

func parseReviewID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid candidate id %q", arg)
	}
	return id, nil
}
