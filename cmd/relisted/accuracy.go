package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/relisted/internal/audit"
	"github.com/Veraticus/relisted/internal/cli"
	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/config"
	"github.com/Veraticus/relisted/internal/model"
)

const dateLayout = "2006-01-02"

func accuracyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accuracy",
		Short: "Measure decision accuracy from the audit trail",
		Long: `Report precision, recall and related ratios computed from audit entries
whose correctness has been flagged by reviewers.`,
	}

	cmd.PersistentFlags().String("from", "", "start date, inclusive (YYYY-MM-DD)")
	cmd.PersistentFlags().String("to", "", "end date, exclusive (YYYY-MM-DD)")
	cmd.PersistentFlags().Int("days", 0, "only consider the last N days")

	cmd.AddCommand(accuracyReportCmd())
	cmd.AddCommand(accuracyTrendCmd())
	cmd.AddCommand(accuracyThresholdsCmd())

	return cmd
}

func accuracyReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Show the confusion matrix and derived ratios",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := auditFilter(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			m, err := audit.NewService(store).Accuracy(ctx, filter)
			if err != nil {
				return err
			}

			counts := cli.RenderTable([]string{"", "COUNT"}, [][]string{
				{"True positives", strconv.Itoa(m.TruePositives)},
				{"True negatives", strconv.Itoa(m.TrueNegatives)},
				{"False positives", strconv.Itoa(m.FalsePositives)},
				{"False negatives", strconv.Itoa(m.FalseNegatives)},
				{"Total", strconv.Itoa(m.Total)},
			})
			ratios := cli.RenderTable([]string{"", "VALUE"}, [][]string{
				{"Precision", cli.FormatPercent(m.Precision)},
				{"Recall", cli.FormatPercent(m.Recall)},
				{"F1", cli.FormatPercent(m.F1)},
				{"Accuracy", cli.FormatPercent(m.Accuracy)},
				{"Specificity", cli.FormatPercent(m.Specificity)},
				{"False positive rate", cli.FormatPercent(m.FalsePositiveRate)},
				{"False negative rate", cli.FormatPercent(m.FalseNegativeRate)},
			})
			fmt.Println(cli.RenderBox(cli.ChartIcon+" Accuracy", counts+"\n\n"+ratios))
			if m.Total == 0 {
				fmt.Println(cli.FormatWarning("No automatic decisions in range"))
			}
			return nil
		},
	}
}

func accuracyTrendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Show accuracy per day, week or month",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := auditFilter(cmd)
			if err != nil {
				return err
			}
			raw, _ := cmd.Flags().GetString("granularity")
			g, ok := audit.ParseGranularity(raw)
			if !ok {
				return common.NewUserError(
					fmt.Sprintf("unknown granularity %q, expected day, week or month", raw), common.ErrInvalidConfig)
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			points, err := audit.NewService(store).Trend(ctx, filter, g)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(points))
			for _, p := range points {
				rows = append(rows, []string{
					p.PeriodStart.Format(dateLayout),
					strconv.Itoa(p.Metrics.Total),
					cli.FormatPercent(p.Metrics.Precision),
					cli.FormatPercent(p.Metrics.Recall),
					cli.FormatPercent(p.Metrics.F1),
				})
			}
			fmt.Println(cli.FormatTitle(fmt.Sprintf("%s Accuracy by %s", cli.ChartIcon, g)))
			fmt.Println(cli.RenderTable([]string{"PERIOD", "TOTAL", "PRECISION", "RECALL", "F1"}, rows))
			return nil
		},
	}
	cmd.Flags().StringP("granularity", "g", "day", "bucket width (day, week, month)")
	return cmd
}

func accuracyThresholdsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thresholds",
		Short: "Show precision and recall at each confidence threshold",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := auditFilter(cmd)
			if err != nil {
				return err
			}
			thresholds, _ := cmd.Flags().GetFloat64Slice("threshold")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			points, err := audit.NewService(store).ThresholdAnalysis(ctx, filter, thresholds)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(points))
			for _, p := range points {
				rows = append(rows, []string{
					strconv.FormatFloat(p.Threshold, 'f', -1, 64),
					strconv.Itoa(p.TotalAtOrAbove),
					strconv.Itoa(p.TruePositives),
					strconv.Itoa(p.FalsePositives),
					cli.FormatPercent(p.Precision),
					cli.FormatPercent(p.Recall),
					cli.FormatPercent(p.F1),
				})
			}
			fmt.Println(cli.FormatTitle(cli.ChartIcon + " Threshold analysis"))
			fmt.Println(cli.RenderTable(
				[]string{"THRESHOLD", "AT/ABOVE", "TP", "FP", "PRECISION", "RECALL", "F1"}, rows))
			return nil
		},
	}
	cmd.Flags().Float64Slice("threshold", nil, "confidence thresholds in percent (default 50,60,70,75,80,85,90,95)")
	return cmd
}

// auditFilter builds the tenant-scoped time window from the --from, --to and --days flags.
func auditFilter(cmd *cobra.Command) (audit.Filter, error) {
	filter := audit.Filter{TenantID: config.Tenant()}

	if days, _ := cmd.Flags().GetInt("days"); days > 0 {
		from := time.Now().UTC().AddDate(0, 0, -days)
		filter.From = &from
	}
	for _, f := range []struct {
		name   string
		target **time.Time
	}{
		{"from", &filter.From},
		{"to", &filter.To},
	} {
		raw, _ := cmd.Flags().GetString(f.name)
		if raw == "" {
			continue
		}
		t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			return filter, common.NewUserError(fmt.Sprintf("--%s must be YYYY-MM-DD", f.name), err)
		}
		*f.target = &t
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return filter, common.NewUserError("--from must be before --to", common.ErrInvalidConfig)
	}
	return filter, nil
}

func formatConfidence(c *float64) string {
	if c == nil {
		return "-"
	}
	return strconv.FormatFloat(*c, 'f', 1, 64)
}

func listing2(e model.AuditEntry) string {
	if e.Listing2ID == nil {
		return "-"
	}
	return *e.Listing2ID
}
