// Package testutil provides test fixtures for the relisted packages: an in-memory
// database with helpers for seeding matches and review items, and a fluent
// builder for listings.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/relisted/internal/model"
	"github.com/Veraticus/relisted/internal/service"
	"github.com/Veraticus/relisted/internal/storage"
)

// DefaultTenant is the tenant used by seeded fixtures.
const DefaultTenant = "tenant-test"

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, service.Storage) error
	Configs        []model.DeduplicationConfig
	SkipMigrations bool
}

// SetupTestDB creates a new migrated in-memory test database.
// It is closed automatically when the test ends.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	match := db.MustCreateMatch("A", "B", 0.72)
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{})
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	ctx := context.Background()

	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	for i := range opts.Configs {
		cfg := opts.Configs[i]
		if err := store.CreateConfig(ctx, &cfg); err != nil {
			t.Fatalf("failed to seed config %q: %v", cfg.Name, err)
		}
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// MustCreateMatch stores a duplicate match for the default tenant or fails the test.
func (db *TestDB) MustCreateMatch(source, target string, score float64) model.DuplicateMatch {
	db.t.Helper()
	match := model.NewDuplicateMatch(DefaultTenant, model.MatchResult{
		SourceID:     source,
		TargetID:     target,
		OverallScore: score,
		Breakdown:    model.MatchScoreBreakdown{VINScore: 0.5, TitleScore: score},
	})
	if _, err := db.Storage.UpsertDuplicateMatch(context.Background(), &match); err != nil {
		db.t.Fatalf("failed to seed match %s/%s: %v", source, target, err)
	}
	return match
}

// MustCreateReviewItem stores a match and its pending review item or fails the test.
func (db *TestDB) MustCreateReviewItem(source, target string, score float64) model.ReviewItem {
	db.t.Helper()
	match := db.MustCreateMatch(source, target, score)
	item := model.NewReviewItem(match)
	if _, err := db.Storage.EnsureReviewItem(context.Background(), &item); err != nil {
		db.t.Fatalf("failed to seed review item for %s/%s: %v", source, target, err)
	}
	return item
}

// MustAppendAudit stores an audit entry for the default tenant or fails the test.
func (db *TestDB) MustAppendAudit(entry model.AuditEntry) model.AuditEntry {
	db.t.Helper()
	if entry.TenantID == "" {
		entry.TenantID = DefaultTenant
	}
	if err := db.Storage.AppendAuditEntry(context.Background(), &entry); err != nil {
		db.t.Fatalf("failed to seed audit entry: %v", err)
	}
	return entry
}
