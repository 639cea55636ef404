// Package audit records deduplication decisions and derives accuracy metrics from them.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/model"
	"github.com/Veraticus/relisted/internal/service"
)

// Audit errors.
var (
	ErrAuditEntryNotFound = errors.New("audit entry not found")
	ErrMissingReviewer    = errors.New("manual override requires a reviewer")
)

// Filter narrows the entries considered by listing and accuracy queries.
type Filter = service.AuditFilter

// AutomaticDecision describes one decision made by the detector.
type AutomaticDecision struct {
	Details    *model.FuzzyMatchDetails
	Confidence *float64 // percent, 0-100
	TenantID   string
	ListingID  string
	OtherID    string
	Decision   model.AuditDecision
	Reason     model.AuditReason
}

// ManualOverride describes a human decision. When OriginalEntryID is set the
// tenant and listing ids are copied from that entry.
type ManualOverride struct {
	OriginalEntryID string
	TenantID        string
	ListingID       string
	OtherID         string
	Decision        model.AuditDecision
	Reason          string
	CreatedBy       string
}

// Service appends audit entries and reports accuracy.
type Service struct {
	store service.AuditStore
}

// NewService creates an audit service.
func NewService(store service.AuditStore) *Service {
	return &Service{store: store}
}

// RecordAutomaticDecision appends the entry for an automatic decision.
func (s *Service) RecordAutomaticDecision(ctx context.Context, d AutomaticDecision) (*model.AuditEntry, error) {
	entry := model.AuditEntry{
		TenantID:        d.TenantID,
		Listing1ID:      d.ListingID,
		Decision:        d.Decision,
		Reason:          d.Reason,
		ConfidenceScore: d.Confidence,
		WasAutomatic:    true,
	}
	if d.OtherID != "" {
		other := d.OtherID
		entry.Listing2ID = &other
	}
	if d.Details != nil {
		data, err := json.Marshal(d.Details)
		if err != nil {
			return nil, fmt.Errorf("failed to encode match details: %w", err)
		}
		entry.FuzzyMatchDetails = string(data)
	}

	if err := s.store.AppendAuditEntry(ctx, &entry); err != nil {
		return nil, fmt.Errorf("failed to record automatic decision: %w", err)
	}
	slog.Debug("Recorded automatic decision",
		"audit_id", entry.ID,
		"listing_id", entry.Listing1ID,
		"decision", entry.Decision,
		"reason", entry.Reason)
	return &entry, nil
}

// RecordManualOverride appends the entry for a human decision.
func (s *Service) RecordManualOverride(ctx context.Context, o ManualOverride) (*model.AuditEntry, error) {
	entry, err := s.PrepareManualOverride(ctx, o)
	if err != nil {
		return nil, err
	}
	if err := s.store.AppendAuditEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record manual override: %w", err)
	}
	LogManualOverride(entry)
	return entry, nil
}

// PrepareManualOverride builds the entry for a human decision without writing it,
// for callers that persist it alongside other changes.
func (s *Service) PrepareManualOverride(ctx context.Context, o ManualOverride) (*model.AuditEntry, error) {
	if strings.TrimSpace(o.CreatedBy) == "" {
		return nil, ErrMissingReviewer
	}

	entry := model.AuditEntry{
		TenantID:       o.TenantID,
		Listing1ID:     o.ListingID,
		Decision:       o.Decision,
		Reason:         model.ReasonManualReview,
		ManualOverride: true,
		OverrideReason: o.Reason,
		CreatedBy:      o.CreatedBy,
	}
	if o.OtherID != "" {
		other := o.OtherID
		entry.Listing2ID = &other
	}

	if o.OriginalEntryID != "" {
		original, err := s.store.GetAuditEntry(ctx, o.OriginalEntryID)
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAuditEntryNotFound, o.OriginalEntryID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load original audit entry: %w", err)
		}
		id := original.ID
		entry.OriginalAuditEntryID = &id
		entry.TenantID = original.TenantID
		entry.Listing1ID = original.Listing1ID
		entry.Listing2ID = original.Listing2ID
	}
	return &entry, nil
}

// LogManualOverride reports a persisted manual override.
func LogManualOverride(entry *model.AuditEntry) {
	slog.Info("Recorded manual override",
		"audit_id", entry.ID,
		"listing_id", entry.Listing1ID,
		"decision", entry.Decision,
		"created_by", entry.CreatedBy)
}

// LatestAutomatic returns the newest automatic entry for a listing pair, or nil.
func (s *Service) LatestAutomatic(ctx context.Context, tenantID, listingA, listingB string) (*model.AuditEntry, error) {
	entry, err := s.store.LatestAutomaticAuditEntry(ctx, tenantID, listingA, listingB)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find automatic audit entry: %w", err)
	}
	return entry, nil
}

// MarkAsFalsePositive flags a duplicate decision as wrong. It reports false when the entry does not exist.
func (s *Service) MarkAsFalsePositive(ctx context.Context, id string) (bool, error) {
	flag := true
	return s.setFlags(ctx, id, &flag, nil)
}

// MarkAsFalseNegative flags a new-listing decision as wrong. It reports false when the entry does not exist.
func (s *Service) MarkAsFalseNegative(ctx context.Context, id string) (bool, error) {
	flag := true
	return s.setFlags(ctx, id, nil, &flag)
}

// ClearErrorFlags resets both correction flags. It reports false when the entry does not exist.
func (s *Service) ClearErrorFlags(ctx context.Context, id string) (bool, error) {
	unset := false
	return s.setFlags(ctx, id, &unset, &unset)
}

func (s *Service) setFlags(ctx context.Context, id string, fp, fn *bool) (bool, error) {
	ok, err := s.store.SetAuditErrorFlags(ctx, id, fp, fn)
	if err != nil {
		return false, fmt.Errorf("failed to update audit flags: %w", err)
	}
	return ok, nil
}

// Get returns an entry by id, or nil when it does not exist.
func (s *Service) Get(ctx context.Context, id string) (*model.AuditEntry, error) {
	entry, err := s.store.GetAuditEntry(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit entry: %w", err)
	}
	return entry, nil
}

// List returns the entries matching filter in creation order.
func (s *Service) List(ctx context.Context, filter Filter) ([]model.AuditEntry, error) {
	entries, err := s.store.ListAuditEntries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

// Accuracy computes the confusion matrix for the filtered entries. Unless the
// filter says otherwise only automatic decisions are measured.
func (s *Service) Accuracy(ctx context.Context, filter Filter) (model.AccuracyMetrics, error) {
	entries, err := s.List(ctx, measured(filter))
	if err != nil {
		return model.AccuracyMetrics{}, err
	}
	return ComputeMetrics(entries), nil
}

// Trend computes the confusion matrix per period.
func (s *Service) Trend(ctx context.Context, filter Filter, g Granularity) ([]model.TrendPoint, error) {
	entries, err := s.List(ctx, measured(filter))
	if err != nil {
		return nil, err
	}
	return GroupByPeriod(entries, g), nil
}

// ThresholdAnalysis reports precision and cumulative recall for each threshold.
// A nil ladder uses DefaultThresholds.
func (s *Service) ThresholdAnalysis(ctx context.Context, filter Filter, thresholds []float64) ([]model.ThresholdPoint, error) {
	entries, err := s.List(ctx, measured(filter))
	if err != nil {
		return nil, err
	}
	return AnalyzeThresholds(entries, thresholds), nil
}

func measured(filter Filter) Filter {
	if filter.Automatic == nil {
		automatic := true
		filter.Automatic = &automatic
	}
	return filter
}
