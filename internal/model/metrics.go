package model

import "time"

// AccuracyMetrics is a confusion matrix with derived ratios.
// Ratios default to 1.0 on a zero denominator; the two error rates default to 0.
type AccuracyMetrics struct {
	TruePositives     int     `json:"truePositives"`
	TrueNegatives     int     `json:"trueNegatives"`
	FalsePositives    int     `json:"falsePositives"`
	FalseNegatives    int     `json:"falseNegatives"`
	Total             int     `json:"total"`
	Precision         float64 `json:"precision"`
	Recall            float64 `json:"recall"`
	F1                float64 `json:"f1"`
	Accuracy          float64 `json:"accuracy"`
	Specificity       float64 `json:"specificity"`
	FalsePositiveRate float64 `json:"falsePositiveRate"`
	FalseNegativeRate float64 `json:"falseNegativeRate"`
}

// TrendPoint is the confusion matrix for one period bucket.
type TrendPoint struct {
	PeriodStart time.Time
	Metrics     AccuracyMetrics
}

// ThresholdPoint reports precision and cumulative recall for entries at or above a confidence threshold.
type ThresholdPoint struct {
	Threshold      float64
	TotalAtOrAbove int
	TruePositives  int
	FalsePositives int
	Precision      float64
	Recall         float64
	F1             float64
}
