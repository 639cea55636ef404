// Package service defines the persistence contracts used by the deduplication services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/relisted/internal/model"
)

// AuditFilter narrows audit entry queries. Zero fields do not filter.
type AuditFilter struct {
	From      *time.Time
	To        *time.Time
	Automatic *bool
	TenantID  string
}

// ConfigStore persists deduplication configuration profiles.
// Lookups of missing profiles return common.ErrNotFound.
type ConfigStore interface {
	GetConfig(ctx context.Context, id string) (*model.DeduplicationConfig, error)
	GetActiveConfig(ctx context.Context, tenantID string) (*model.DeduplicationConfig, error)
	ListConfigs(ctx context.Context, tenantID string) ([]model.DeduplicationConfig, error)
	CreateConfig(ctx context.Context, cfg *model.DeduplicationConfig) error
	UpdateConfig(ctx context.Context, cfg *model.DeduplicationConfig) error
	// ActivateConfig makes id the tenant's only active profile in one transaction.
	ActivateConfig(ctx context.Context, tenantID, id string) error
	DeleteConfig(ctx context.Context, id string) error
}

// MatchStore persists duplicate matches. A pair of listings has at most one match
// regardless of order.
type MatchStore interface {
	// UpsertDuplicateMatch inserts the match unless its pair already exists, then
	// loads the stored row into match. It reports whether a row was created.
	UpsertDuplicateMatch(ctx context.Context, match *model.DuplicateMatch) (bool, error)
	GetDuplicateMatch(ctx context.Context, id string) (*model.DuplicateMatch, error)
	FindDuplicateMatch(ctx context.Context, tenantID, listingA, listingB string) (*model.DuplicateMatch, error)
	ListDuplicateMatches(ctx context.Context, tenantID, listingID string) ([]model.DuplicateMatch, error)
}

// ReviewStore persists review items.
type ReviewStore interface {
	// EnsureReviewItem creates the item for its match unless one exists, loads the
	// stored row into item and links it from the match.
	EnsureReviewItem(ctx context.Context, item *model.ReviewItem) (bool, error)
	GetReviewItem(ctx context.Context, id string) (*model.ReviewItem, error)
	ListPendingReviewItems(ctx context.Context, tenantID string, limit int) ([]model.ReviewItem, error)
	// ResolveReviewItem moves a pending item to a terminal status and, when decision
	// is non-nil, appends it to the audit trail atomically. It returns
	// common.ErrReviewAlreadyResolved when the item is no longer pending.
	ResolveReviewItem(ctx context.Context, id string, status model.ReviewStatus, reviewer, notes string, at time.Time, decision *model.AuditEntry) error
	CountReviewItemsByStatus(ctx context.Context, tenantID string) (map[model.ReviewStatus]int, error)
}

// AuditStore persists the append-only decision trail.
type AuditStore interface {
	AppendAuditEntry(ctx context.Context, entry *model.AuditEntry) error
	GetAuditEntry(ctx context.Context, id string) (*model.AuditEntry, error)
	ListAuditEntries(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, error)
	// LatestAutomaticAuditEntry returns the newest automatic entry for an unordered listing pair.
	LatestAutomaticAuditEntry(ctx context.Context, tenantID, listingA, listingB string) (*model.AuditEntry, error)
	// SetAuditErrorFlags updates the non-nil correction flags and reports whether the entry exists.
	SetAuditErrorFlags(ctx context.Context, id string, falsePositive, falseNegative *bool) (bool, error)
}

// FingerprintStore persists computed image hashes per listing.
type FingerprintStore interface {
	SaveImageHashes(ctx context.Context, listingID string, hashes []uint64) error
	GetImageHashes(ctx context.Context, listingID string) ([]uint64, error)
}

// Storage is the complete persistence layer.
type Storage interface {
	ConfigStore
	MatchStore
	ReviewStore
	AuditStore
	FingerprintStore

	Migrate(ctx context.Context) error
	Close() error
}
