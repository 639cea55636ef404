package model

import "time"

// AuditDecision is the outcome recorded for a listing.
type AuditDecision string

// Audit decisions.
const (
	DecisionDuplicate  AuditDecision = "DUPLICATE"
	DecisionNewListing AuditDecision = "NEW_LISTING"
	DecisionNearMatch  AuditDecision = "NEAR_MATCH"
)

// IsValid reports whether the decision is known.
func (d AuditDecision) IsValid() bool {
	switch d {
	case DecisionDuplicate, DecisionNewListing, DecisionNearMatch:
		return true
	default:
		return false
	}
}

// AuditReason explains which signal drove a decision.
type AuditReason string

// Audit reasons.
const (
	ReasonVINMatch     AuditReason = "VIN_MATCH"
	ReasonFuzzyMatch   AuditReason = "FUZZY_MATCH"
	ReasonImageMatch   AuditReason = "IMAGE_MATCH"
	ReasonNoMatch      AuditReason = "NO_MATCH"
	ReasonManualReview AuditReason = "MANUAL_REVIEW"
)

// AuditEntry is an append-only record of one automatic decision or manual override.
// Only the two correction flags change after creation.
type AuditEntry struct {
	CreatedAt            time.Time
	Listing2ID           *string
	ConfidenceScore      *float64
	OriginalAuditEntryID *string
	ID                   string
	TenantID             string
	Listing1ID           string
	Decision             AuditDecision
	Reason               AuditReason
	FuzzyMatchDetails    string
	OverrideReason       string
	CreatedBy            string
	WasAutomatic         bool
	ManualOverride       bool
	IsFalsePositive      bool
	IsFalseNegative      bool
}

// FuzzyMatchDetails is the serialized form of a scoring breakdown stored on audit entries.
type FuzzyMatchDetails struct {
	MatchScoreBreakdown
	OverallScore float64 `json:"overallScore"`
}
