package audit

import (
	"sort"
	"time"

	"github.com/Veraticus/relisted/internal/model"
)

// Granularity selects the bucket width for trend analysis.
type Granularity int

// Trend granularities. Buckets are computed in UTC.
const (
	Day Granularity = iota
	Week
	Month
)

func (g Granularity) String() string {
	switch g {
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	default:
		return "unknown"
	}
}

// ParseGranularity maps "day", "week" or "month" to a Granularity.
func ParseGranularity(s string) (Granularity, bool) {
	switch s {
	case "day", "daily":
		return Day, true
	case "week", "weekly":
		return Week, true
	case "month", "monthly":
		return Month, true
	default:
		return Day, false
	}
}

// DefaultThresholds is the confidence ladder, in percent, used by threshold analysis.
var DefaultThresholds = []float64{50, 60, 70, 75, 80, 85, 90, 95}

// ComputeMetrics tallies the confusion matrix of entries. Only DUPLICATE and
// NEW_LISTING decisions are classified; NEAR_MATCH entries are not counted.
func ComputeMetrics(entries []model.AuditEntry) model.AccuracyMetrics {
	var m model.AccuracyMetrics
	for i := range entries {
		e := &entries[i]
		switch e.Decision {
		case model.DecisionDuplicate:
			if e.IsFalsePositive {
				m.FalsePositives++
			} else {
				m.TruePositives++
			}
		case model.DecisionNewListing:
			if e.IsFalseNegative {
				m.FalseNegatives++
			} else {
				m.TrueNegatives++
			}
		}
	}
	return finish(m)
}

func finish(m model.AccuracyMetrics) model.AccuracyMetrics {
	tp, tn, fp, fn := m.TruePositives, m.TrueNegatives, m.FalsePositives, m.FalseNegatives
	m.Total = tp + tn + fp + fn
	m.Precision = ratio(tp, tp+fp, 1)
	m.Recall = ratio(tp, tp+fn, 1)
	m.F1 = ratio(2*tp, 2*tp+fp+fn, 1)
	m.Accuracy = ratio(tp+tn, m.Total, 1)
	m.Specificity = ratio(tn, tn+fp, 1)
	m.FalsePositiveRate = ratio(fp, fp+tn, 0)
	m.FalseNegativeRate = ratio(fn, fn+tp, 0)
	return m
}

func ratio(num, den int, zero float64) float64 {
	if den == 0 {
		return zero
	}
	return float64(num) / float64(den)
}

// PeriodStart returns the UTC start of the bucket containing t.
// Weeks are ISO weeks starting on Monday.
func PeriodStart(t time.Time, g Granularity) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch g {
	case Week:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

// GroupByPeriod buckets entries by period and computes the matrix per bucket,
// ordered by period start. Empty periods are omitted.
func GroupByPeriod(entries []model.AuditEntry, g Granularity) []model.TrendPoint {
	buckets := make(map[time.Time][]model.AuditEntry)
	for _, e := range entries {
		start := PeriodStart(e.CreatedAt, g)
		buckets[start] = append(buckets[start], e)
	}

	points := make([]model.TrendPoint, 0, len(buckets))
	for start, bucket := range buckets {
		points = append(points, model.TrendPoint{PeriodStart: start, Metrics: ComputeMetrics(bucket)})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].PeriodStart.Before(points[j].PeriodStart)
	})
	return points
}

// AnalyzeThresholds reports, for each confidence threshold, the precision of the
// scored entries at or above it and their recall against every true positive among
// all scored entries. Entries without a confidence score are ignored.
func AnalyzeThresholds(entries []model.AuditEntry, thresholds []float64) []model.ThresholdPoint {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}

	var scored []model.AuditEntry
	totalTP := 0
	for _, e := range entries {
		if e.ConfidenceScore == nil {
			continue
		}
		scored = append(scored, e)
		if isTruePositive(e) {
			totalTP++
		}
	}

	sorted := append([]float64(nil), thresholds...)
	sort.Float64s(sorted)

	points := make([]model.ThresholdPoint, 0, len(sorted))
	for _, th := range sorted {
		p := model.ThresholdPoint{Threshold: th}
		for _, e := range scored {
			if *e.ConfidenceScore < th {
				continue
			}
			p.TotalAtOrAbove++
			if e.Decision == model.DecisionDuplicate {
				if e.IsFalsePositive {
					p.FalsePositives++
				} else {
					p.TruePositives++
				}
			}
		}
		p.Precision = ratio(p.TruePositives, p.TruePositives+p.FalsePositives, 1)
		p.Recall = ratio(p.TruePositives, totalTP, 1)
		if p.Precision+p.Recall > 0 {
			p.F1 = 2 * p.Precision * p.Recall / (p.Precision + p.Recall)
		}
		points = append(points, p)
	}
	return points
}

func isTruePositive(e model.AuditEntry) bool {
	return e.Decision == model.DecisionDuplicate && !e.IsFalsePositive
}
