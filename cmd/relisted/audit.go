package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/relisted/internal/audit"
	"github.com/Veraticus/relisted/internal/cli"
	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/model"
)

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect and correct the decision audit trail",
	}

	cmd.AddCommand(auditListCmd())
	cmd.AddCommand(auditFlagCmd("false-positive", "Flag a DUPLICATE decision as wrong",
		(*audit.Service).MarkAsFalsePositive))
	cmd.AddCommand(auditFlagCmd("false-negative", "Flag a NEW_LISTING decision as wrong",
		(*audit.Service).MarkAsFalseNegative))
	cmd.AddCommand(auditFlagCmd("clear", "Clear both correction flags",
		(*audit.Service).ClearErrorFlags))
	cmd.AddCommand(auditOverrideCmd())

	return cmd
}

func auditListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := auditFilter(cmd)
			if err != nil {
				return err
			}
			if manual, _ := cmd.Flags().GetBool("manual"); manual {
				automatic := false
				filter.Automatic = &automatic
			} else if auto, _ := cmd.Flags().GetBool("automatic"); auto {
				automatic := true
				filter.Automatic = &automatic
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			entries, err := audit.NewService(store).List(ctx, filter)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				flags := ""
				switch {
				case e.IsFalsePositive:
					flags = "FP"
				case e.IsFalseNegative:
					flags = "FN"
				}
				rows = append(rows, []string{
					e.ID,
					e.CreatedAt.Format("2006-01-02 15:04"),
					e.Listing1ID,
					listing2(e),
					string(e.Decision),
					string(e.Reason),
					formatConfidence(e.ConfidenceScore),
					flags,
				})
			}
			fmt.Println(cli.RenderTable(
				[]string{"ID", "CREATED", "LISTING", "OTHER", "DECISION", "REASON", "CONF", "FLAG"}, rows))
			return nil
		},
	}
	cmd.Flags().String("from", "", "start date, inclusive (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "end date, exclusive (YYYY-MM-DD)")
	cmd.Flags().Int("days", 0, "only list the last N days")
	cmd.Flags().Bool("automatic", false, "only automatic decisions")
	cmd.Flags().Bool("manual", false, "only manual overrides")
	return cmd
}

func auditFlagCmd(use, short string, apply func(*audit.Service, context.Context, string) (bool, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <audit-entry-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			ok, err := apply(audit.NewService(store), ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return common.NewUserError(fmt.Sprintf("audit entry %s not found", args[0]), audit.ErrAuditEntryNotFound)
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s: %s", args[0], use)))
			return nil
		},
	}
}

func auditOverrideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override <audit-entry-id> <duplicate|new|near>",
		Short: "Record a manual decision that supersedes an automatic one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			decision, err := parseDecision(args[1])
			if err != nil {
				return err
			}
			reviewer, _ := cmd.Flags().GetString("reviewer")
			reason, _ := cmd.Flags().GetString("reason")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			svc := audit.NewService(store)
			original, err := svc.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if original == nil {
				return common.NewUserError(fmt.Sprintf("audit entry %s not found", args[0]), audit.ErrAuditEntryNotFound)
			}

			entry, err := svc.RecordManualOverride(ctx, audit.ManualOverride{
				OriginalEntryID: original.ID,
				Decision:        decision,
				Reason:          reason,
				CreatedBy:       reviewer,
			})
			if errors.Is(err, audit.ErrMissingReviewer) {
				return common.NewUserError("--reviewer is required", err)
			}
			if err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess("Recorded override " + entry.ID))
			return nil
		},
	}
	cmd.Flags().String("reviewer", "", "reviewer id (required)")
	cmd.Flags().String("reason", "", "why the automatic decision was wrong")
	_ = cmd.MarkFlagRequired("reviewer")
	return cmd
}

func parseDecision(s string) (model.AuditDecision, error) {
	switch s {
	case "duplicate", "DUPLICATE":
		return model.DecisionDuplicate, nil
	case "new", "NEW_LISTING":
		return model.DecisionNewListing, nil
	case "near", "NEAR_MATCH":
		return model.DecisionNearMatch, nil
	default:
		return "", common.NewUserError(
			fmt.Sprintf("unknown decision %q, expected duplicate, new or near", s), common.ErrInvalidConfig)
	}
}
