package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/relisted/internal/audit"
	"github.com/Veraticus/relisted/internal/cli"
	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/config"
	"github.com/Veraticus/relisted/internal/model"
	"github.com/Veraticus/relisted/internal/review"
	"github.com/Veraticus/relisted/internal/service"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Work the manual review queue",
	}

	cmd.AddCommand(reviewListCmd())
	cmd.AddCommand(reviewResolveCmd())
	cmd.AddCommand(reviewSkipCmd())
	cmd.AddCommand(reviewStatsCmd())

	return cmd
}

func newQueue(store service.Storage) *review.Queue {
	return review.NewQueue(store, audit.NewService(store))
}

func reviewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending review items, most likely duplicates first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			limit, _ := cmd.Flags().GetInt("limit")
			items, err := newQueue(store).GetPending(ctx, config.Tenant(), limit)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println(cli.FormatSuccess("Review queue is empty"))
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					item.ID,
					strconv.Itoa(item.Priority),
					cli.FormatPercent(item.MatchScore),
					item.SourceListingID,
					item.TargetListingID,
					item.CreatedAt.Format("2006-01-02 15:04"),
				})
			}
			fmt.Println(cli.RenderTable(
				[]string{"ID", "PRIORITY", "SCORE", "SOURCE", "TARGET", "CREATED"}, rows))
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 50, "maximum number of items")
	return cmd
}

func reviewResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <review-id> <duplicate|not-duplicate>",
		Short: "Record a reviewer's verdict",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := parseVerdict(args[1])
			if err != nil {
				return err
			}
			reviewer, _ := cmd.Flags().GetString("reviewer")
			notes, _ := cmd.Flags().GetString("notes")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			item, err := newQueue(store).Resolve(ctx, review.ResolveRequest{
				ReviewID:   args[0],
				Status:     status,
				ReviewerID: reviewer,
				Notes:      notes,
			})
			if err != nil {
				return reviewError(args[0], err)
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s marked %s", item.ID, item.Status)))
			return nil
		},
	}
	cmd.Flags().String("reviewer", "", "reviewer id (required)")
	cmd.Flags().String("notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("reviewer")
	return cmd
}

func reviewSkipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skip <review-id>",
		Short: "Close a review item without a verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reviewer, _ := cmd.Flags().GetString("reviewer")
			notes, _ := cmd.Flags().GetString("notes")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			item, err := newQueue(store).Skip(ctx, args[0], reviewer, notes)
			if err != nil {
				return reviewError(args[0], err)
			}
			fmt.Println(cli.FormatSuccess(item.ID + " skipped"))
			return nil
		},
	}
	cmd.Flags().String("reviewer", "", "reviewer id (required)")
	cmd.Flags().String("notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("reviewer")
	return cmd
}

func reviewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count review items by status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			counts, err := newQueue(store).Stats(ctx, config.Tenant())
			if err != nil {
				return err
			}

			statuses := []model.ReviewStatus{
				model.ReviewPending,
				model.ReviewConfirmedDuplicate,
				model.ReviewConfirmedNotDuplicate,
				model.ReviewSkipped,
			}
			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				rows = append(rows, []string{string(s), strconv.Itoa(counts[s])})
			}
			fmt.Println(cli.FormatTitle(cli.ChartIcon + " Review queue"))
			fmt.Println(cli.RenderTable([]string{"STATUS", "COUNT"}, rows))
			return nil
		},
	}
}

func parseVerdict(s string) (model.ReviewStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "duplicate", "dup", "yes":
		return model.ReviewConfirmedDuplicate, nil
	case "not-duplicate", "not_duplicate", "new", "no":
		return model.ReviewConfirmedNotDuplicate, nil
	default:
		return "", common.NewUserError(
			fmt.Sprintf("unknown verdict %q, expected duplicate or not-duplicate", s), review.ErrInvalidResolution)
	}
}

func reviewError(id string, err error) error {
	switch {
	case errors.Is(err, review.ErrReviewItemNotFound):
		return common.NewUserError(fmt.Sprintf("review item %s not found", id), err)
	case errors.Is(err, review.ErrAlreadyResolved):
		return common.NewUserError(fmt.Sprintf("review item %s was already resolved", id), err)
	default:
		return err
	}
}
