package model

import (
	"math"
	"time"
)

// ReviewStatus is the state of a review item.
type ReviewStatus string

// Review statuses. Everything except ReviewPending is terminal.
const (
	ReviewPending               ReviewStatus = "PENDING"
	ReviewConfirmedDuplicate    ReviewStatus = "CONFIRMED_DUPLICATE"
	ReviewConfirmedNotDuplicate ReviewStatus = "CONFIRMED_NOT_DUPLICATE"
	ReviewSkipped               ReviewStatus = "SKIPPED"
)

// IsTerminal reports whether the status ends the review lifecycle.
func (s ReviewStatus) IsTerminal() bool {
	switch s {
	case ReviewConfirmedDuplicate, ReviewConfirmedNotDuplicate, ReviewSkipped:
		return true
	default:
		return false
	}
}

// IsValid reports whether the status is known.
func (s ReviewStatus) IsValid() bool {
	return s == ReviewPending || s.IsTerminal()
}

// ReviewItem is an ambiguous match awaiting human adjudication.
type ReviewItem struct {
	CreatedAt        time.Time
	ReviewedAt       *time.Time
	ID               string
	TenantID         string
	DuplicateMatchID string
	SourceListingID  string
	TargetListingID  string
	Status           ReviewStatus
	ReviewedBy       string
	Notes            string
	MatchScore       float64
	Priority         int
}

// PriorityForScore derives a review priority: the points a score falls short of a
// perfect match, so likelier duplicates sort first. Never below 1.
func PriorityForScore(score float64) int {
	p := int(math.Round((1 - score) * 100))
	if p < 1 {
		return 1
	}
	return p
}

// NewReviewItem builds a pending review item for a persisted match.
func NewReviewItem(match DuplicateMatch) ReviewItem {
	return ReviewItem{
		TenantID:         match.TenantID,
		DuplicateMatchID: match.ID,
		SourceListingID:  match.SourceListingID,
		TargetListingID:  match.TargetListingID,
		MatchScore:       match.OverallScore,
		Priority:         PriorityForScore(match.OverallScore),
		Status:           ReviewPending,
	}
}
