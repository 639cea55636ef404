// Package storage provides the SQLite persistence layer for deduplication state.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/relisted/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidStatus      = errors.New("invalid review status")
	ErrInvalidMatch       = errors.New("invalid duplicate match")
	ErrInvalidReviewItem  = errors.New("invalid review item")
	ErrInvalidAuditEntry  = errors.New("invalid audit entry")
	ErrInvalidConfigEntry = errors.New("invalid configuration")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateConfig(cfg *model.DeduplicationConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: config", ErrNilParameter)
	}
	if _, err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfigEntry, err)
	}
	return nil
}

func validateMatch(m *model.DuplicateMatch) error {
	if m == nil {
		return fmt.Errorf("%w: match", ErrNilParameter)
	}
	if m.TenantID == "" {
		return fmt.Errorf("%w: missing tenant", ErrInvalidMatch)
	}
	if m.SourceListingID == "" || m.TargetListingID == "" {
		return fmt.Errorf("%w: missing listing id", ErrInvalidMatch)
	}
	if m.SourceListingID == m.TargetListingID {
		return fmt.Errorf("%w: listing cannot match itself", ErrInvalidMatch)
	}
	if m.OverallScore < 0 || m.OverallScore > 1 {
		return fmt.Errorf("%w: overall score %.3f out of range", ErrInvalidMatch, m.OverallScore)
	}
	return nil
}

func validateReviewItem(item *model.ReviewItem) error {
	if item == nil {
		return fmt.Errorf("%w: review item", ErrNilParameter)
	}
	if item.TenantID == "" {
		return fmt.Errorf("%w: missing tenant", ErrInvalidReviewItem)
	}
	if item.DuplicateMatchID == "" {
		return fmt.Errorf("%w: missing duplicate match id", ErrInvalidReviewItem)
	}
	if item.Status != "" && !item.Status.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, item.Status)
	}
	return nil
}

func validateAuditEntry(entry *model.AuditEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: audit entry", ErrNilParameter)
	}
	if entry.TenantID == "" {
		return fmt.Errorf("%w: missing tenant", ErrInvalidAuditEntry)
	}
	if entry.Listing1ID == "" {
		return fmt.Errorf("%w: missing listing id", ErrInvalidAuditEntry)
	}
	if !entry.Decision.IsValid() {
		return fmt.Errorf("%w: unknown decision %q", ErrInvalidAuditEntry, entry.Decision)
	}
	if entry.Reason == "" {
		return fmt.Errorf("%w: missing reason", ErrInvalidAuditEntry)
	}
	if entry.ConfidenceScore != nil && (*entry.ConfidenceScore < 0 || *entry.ConfidenceScore > 100) {
		return fmt.Errorf("%w: confidence %.2f out of range", ErrInvalidAuditEntry, *entry.ConfidenceScore)
	}
	return nil
}
