// Package review manages the queue of ambiguous matches awaiting a human decision.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/relisted/internal/audit"
	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/model"
	"github.com/Veraticus/relisted/internal/service"
)

// Review errors.
var (
	ErrReviewItemNotFound = errors.New("review item not found")
	ErrReviewerRequired   = errors.New("reviewer is required")
	ErrInvalidResolution  = errors.New("status is not a resolution")
	ErrAlreadyResolved    = common.ErrReviewAlreadyResolved
)

// ResolveRequest is a human decision on a review item.
type ResolveRequest struct {
	ReviewID   string
	Status     model.ReviewStatus
	ReviewerID string
	Notes      string
}

// Queue surfaces pending review items and records their resolution.
type Queue struct {
	store   service.ReviewStore
	auditor *audit.Service
	now     func() time.Time
}

// NewQueue creates a review queue. Resolutions are recorded through auditor.
func NewQueue(store service.ReviewStore, auditor *audit.Service) *Queue {
	return &Queue{
		store:   store,
		auditor: auditor,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// GetPending returns up to limit pending items, most urgent first.
// A non-positive limit returns all of them.
func (q *Queue) GetPending(ctx context.Context, tenantID string, limit int) ([]model.ReviewItem, error) {
	items, err := q.store.ListPendingReviewItems(ctx, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending review items: %w", err)
	}
	return items, nil
}

// Get returns a review item by id.
func (q *Queue) Get(ctx context.Context, id string) (*model.ReviewItem, error) {
	item, err := q.store.GetReviewItem(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrReviewItemNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review item: %w", err)
	}
	return item, nil
}

// Resolve moves a pending item to a terminal status and appends a manual audit
// entry for the decision. A resolved item is never overwritten.
func (q *Queue) Resolve(ctx context.Context, req ResolveRequest) (*model.ReviewItem, error) {
	if strings.TrimSpace(req.ReviewerID) == "" {
		return nil, ErrReviewerRequired
	}
	if !req.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResolution, req.Status)
	}

	item, err := q.Get(ctx, req.ReviewID)
	if err != nil {
		return nil, err
	}
	if item.Status != model.ReviewPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, item.ID, item.Status)
	}

	decision, err := q.prepareDecision(ctx, item, req)
	if err != nil {
		return nil, err
	}

	at := q.now()
	err = q.store.ResolveReviewItem(ctx, item.ID, req.Status, req.ReviewerID, req.Notes, at, decision)
	switch {
	case errors.Is(err, common.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrReviewItemNotFound, item.ID)
	case errors.Is(err, ErrAlreadyResolved):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("failed to resolve review item: %w", err)
	}

	item.Status = req.Status
	item.ReviewedBy = req.ReviewerID
	item.ReviewedAt = &at
	item.Notes = req.Notes

	if decision != nil {
		audit.LogManualOverride(decision)
	}
	slog.Info("Resolved review item",
		"review_id", item.ID,
		"status", item.Status,
		"reviewer", item.ReviewedBy)
	return item, nil
}

// Skip resolves an item as skipped.
func (q *Queue) Skip(ctx context.Context, id, reviewer, notes string) (*model.ReviewItem, error) {
	return q.Resolve(ctx, ResolveRequest{
		ReviewID:   id,
		Status:     model.ReviewSkipped,
		ReviewerID: reviewer,
		Notes:      notes,
	})
}

// Stats returns the number of the tenant's items in each status.
func (q *Queue) Stats(ctx context.Context, tenantID string) (map[model.ReviewStatus]int, error) {
	counts, err := q.store.CountReviewItemsByStatus(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count review items: %w", err)
	}
	return counts, nil
}

// prepareDecision builds the manual audit entry written with the resolution,
// linked to the latest automatic decision on the same pair.
func (q *Queue) prepareDecision(ctx context.Context, item *model.ReviewItem, req ResolveRequest) (*model.AuditEntry, error) {
	if q.auditor == nil {
		return nil, nil
	}

	override := audit.ManualOverride{
		TenantID:  item.TenantID,
		ListingID: item.SourceListingID,
		OtherID:   item.TargetListingID,
		Decision:  decisionFor(req.Status),
		Reason:    req.Notes,
		CreatedBy: req.ReviewerID,
	}

	original, err := q.auditor.LatestAutomatic(ctx, item.TenantID, item.SourceListingID, item.TargetListingID)
	if err != nil {
		return nil, fmt.Errorf("failed to find decision for review item %s: %w", item.ID, err)
	}
	if original != nil {
		override.OriginalEntryID = original.ID
	}

	entry, err := q.auditor.PrepareManualOverride(ctx, override)
	if err != nil {
		return nil, fmt.Errorf("failed to build audit entry for review item %s: %w", item.ID, err)
	}
	return entry, nil
}

func decisionFor(status model.ReviewStatus) model.AuditDecision {
	switch status {
	case model.ReviewConfirmedDuplicate:
		return model.DecisionDuplicate
	case model.ReviewConfirmedNotDuplicate:
		return model.DecisionNewListing
	default:
		return model.DecisionNearMatch
	}
}
