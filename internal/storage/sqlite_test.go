package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// createTestMatch stores a match between two listings and returns it.
func createTestMatch(t *testing.T, store *SQLiteStorage, source, target string, score float64) *model.DuplicateMatch {
	t.Helper()
	match := model.NewDuplicateMatch("tenant-a", model.MatchResult{
		SourceID:     source,
		TargetID:     target,
		OverallScore: score,
		Breakdown:    model.MatchScoreBreakdown{VINScore: 0.5, TitleScore: score},
	})
	_, err := store.UpsertDuplicateMatch(context.Background(), &match)
	require.NoError(t, err)
	return &match
}

func TestSQLiteStorage_Migrate(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	// Running again is a no-op.
	require.NoError(t, store.Migrate(ctx))
	version, err = store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestSQLiteStorage_InMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Migrate(context.Background()))
	assert.Equal(t, ":memory:", store.Path())
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("  ")
	assert.True(t, errors.Is(err, ErrEmptyString))
}

func TestSQLiteStorage_ImageHashes(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.GetImageHashes(ctx, "listing-1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	hashes := []uint64{1, 18446744073709551615}
	require.NoError(t, store.SaveImageHashes(ctx, "listing-1", hashes))

	got, err := store.GetImageHashes(ctx, "listing-1")
	require.NoError(t, err)
	assert.Equal(t, hashes, got)

	require.NoError(t, store.SaveImageHashes(ctx, "listing-1", nil))
	got, err = store.GetImageHashes(ctx, "listing-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestValidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	//nolint:staticcheck // nil context is the case under test
	_, err := store.GetConfig(nil, "id")
	assert.ErrorIs(t, err, ErrNilContext)

	_, err = store.GetReviewItem(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyString)

	_, err = store.UpsertDuplicateMatch(ctx, nil)
	assert.ErrorIs(t, err, ErrNilParameter)

	self := model.DuplicateMatch{TenantID: "t", SourceListingID: "a", TargetListingID: "a"}
	_, err = store.UpsertDuplicateMatch(ctx, &self)
	assert.ErrorIs(t, err, ErrInvalidMatch)

	err = store.AppendAuditEntry(ctx, &model.AuditEntry{TenantID: "t", Listing1ID: "a", Decision: "MAYBE", Reason: model.ReasonNoMatch})
	assert.ErrorIs(t, err, ErrInvalidAuditEntry)

	_, err = store.EnsureReviewItem(ctx, &model.ReviewItem{TenantID: "t"})
	assert.ErrorIs(t, err, ErrInvalidReviewItem)
}
