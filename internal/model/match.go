package model

import "time"

// Confidence classifies a duplicate match by overall score.
type Confidence string

// Confidence bands.
const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Confidence band lower bounds.
const (
	HighConfidenceScore   = 0.90
	MediumConfidenceScore = 0.75
)

// ConfidenceForScore bands an overall score.
func ConfidenceForScore(score float64) Confidence {
	switch {
	case score >= HighConfidenceScore:
		return ConfidenceHigh
	case score >= MediumConfidenceScore:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// MatchScoreBreakdown holds the six component scores of a comparison, each in [0,1].
type MatchScoreBreakdown struct {
	VINScore      float64 `json:"vinScore"`
	TitleScore    float64 `json:"titleScore"`
	PriceScore    float64 `json:"priceScore"`
	MileageScore  float64 `json:"mileageScore"`
	LocationScore float64 `json:"locationScore"`
	ImageScore    float64 `json:"imageScore"`
}

// MatchResult is the transient outcome of scoring one (source, target) pair.
type MatchResult struct {
	SourceID         string
	TargetID         string
	Breakdown        MatchScoreBreakdown
	OverallScore     float64
	IsAboveThreshold bool
	RequiresReview   bool
}

// DuplicateMatch is a persisted pair of listings judged to be the same vehicle or a candidate for review.
type DuplicateMatch struct {
	DetectedAt      time.Time
	ReviewItemID    *string
	ID              string
	TenantID        string
	SourceListingID string
	TargetListingID string
	Confidence      Confidence
	Breakdown       MatchScoreBreakdown
	OverallScore    float64
}

// NewDuplicateMatch builds an unsaved match from a scoring result.
func NewDuplicateMatch(tenantID string, result MatchResult) DuplicateMatch {
	return DuplicateMatch{
		TenantID:        tenantID,
		SourceListingID: result.SourceID,
		TargetListingID: result.TargetID,
		OverallScore:    result.OverallScore,
		Breakdown:       result.Breakdown,
		Confidence:      ConfidenceForScore(result.OverallScore),
	}
}

// NormalizedPair orders two listing ids so that (a,b) and (b,a) share one key.
func NormalizedPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
