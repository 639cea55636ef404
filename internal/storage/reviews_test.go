package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/model"
)

func TestSQLiteStorage_EnsureReviewItem(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	match := createTestMatch(t, store, "A", "B", 0.72)

	item := model.NewReviewItem(*match)
	created, err := store.EnsureReviewItem(ctx, &item)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, model.ReviewPending, item.Status)
	assert.Equal(t, 28, item.Priority)

	again := model.NewReviewItem(*match)
	created, err = store.EnsureReviewItem(ctx, &again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, item.ID, again.ID)

	linked, err := store.GetDuplicateMatch(ctx, match.ID)
	require.NoError(t, err)
	require.NotNil(t, linked.ReviewItemID)
	assert.Equal(t, item.ID, *linked.ReviewItemID)
}

func TestSQLiteStorage_ListPendingReviewItems_Ordering(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	scores := map[string]float64{"B": 0.70, "C": 0.84, "D": 0.66, "E": 0.80}
	for target, score := range scores {
		match := createTestMatch(t, store, "A", target, score)
		item := model.NewReviewItem(*match)
		_, err := store.EnsureReviewItem(ctx, &item)
		require.NoError(t, err)
	}

	items, err := store.ListPendingReviewItems(ctx, "tenant-a", 0)
	require.NoError(t, err)
	require.Len(t, items, 4)

	var targets []string
	for _, item := range items {
		targets = append(targets, item.TargetListingID)
	}
	assert.Equal(t, []string{"C", "E", "B", "D"}, targets)

	limited, err := store.ListPendingReviewItems(ctx, "tenant-a", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	other, err := store.ListPendingReviewItems(ctx, "tenant-b", 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLiteStorage_ResolveReviewItem(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	match := createTestMatch(t, store, "A", "B", 0.72)
	item := model.NewReviewItem(*match)
	_, err := store.EnsureReviewItem(ctx, &item)
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.ResolveReviewItem(ctx, item.ID, model.ReviewConfirmedNotDuplicate, "alice", "different trim", at, nil))

	resolved, err := store.GetReviewItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewConfirmedNotDuplicate, resolved.Status)
	assert.Equal(t, "alice", resolved.ReviewedBy)
	assert.Equal(t, "different trim", resolved.Notes)
	require.NotNil(t, resolved.ReviewedAt)
	assert.True(t, at.Equal(*resolved.ReviewedAt))

	err = store.ResolveReviewItem(ctx, item.ID, model.ReviewConfirmedDuplicate, "bob", "", at, nil)
	assert.ErrorIs(t, err, common.ErrReviewAlreadyResolved)

	unchanged, err := store.GetReviewItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewConfirmedNotDuplicate, unchanged.Status)
	assert.Equal(t, "alice", unchanged.ReviewedBy)

	err = store.ResolveReviewItem(ctx, "missing", model.ReviewSkipped, "bob", "", at, nil)
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = store.ResolveReviewItem(ctx, item.ID, model.ReviewPending, "bob", "", at, nil)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	counts, err := store.CountReviewItemsByStatus(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, map[model.ReviewStatus]int{model.ReviewConfirmedNotDuplicate: 1}, counts)
}

func TestSQLiteStorage_ResolveReviewItemWithDecision(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	match := createTestMatch(t, store, "A", "B", 0.72)
	item := model.NewReviewItem(*match)
	_, err := store.EnsureReviewItem(ctx, &item)
	require.NoError(t, err)

	existing := &model.AuditEntry{
		TenantID:     "tenant-a",
		Listing1ID:   "Z",
		Decision:     model.DecisionNewListing,
		Reason:       model.ReasonNoMatch,
		WasAutomatic: true,
	}
	require.NoError(t, store.AppendAuditEntry(ctx, existing))

	other := "B"
	manual := func() *model.AuditEntry {
		return &model.AuditEntry{
			TenantID:       "tenant-a",
			Listing1ID:     "A",
			Listing2ID:     &other,
			Decision:       model.DecisionDuplicate,
			Reason:         model.ReasonManualReview,
			ManualOverride: true,
			CreatedBy:      "alice",
		}
	}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	colliding := manual()
	colliding.ID = existing.ID
	err = store.ResolveReviewItem(ctx, item.ID, model.ReviewConfirmedDuplicate, "alice", "", at, colliding)
	require.ErrorIs(t, err, common.ErrDuplicateEntry)

	pending, err := store.GetReviewItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewPending, pending.Status)
	assert.Nil(t, pending.ReviewedAt)

	decision := manual()
	require.NoError(t, store.ResolveReviewItem(ctx, item.ID, model.ReviewConfirmedDuplicate, "alice", "", at, decision))
	assert.NotEmpty(t, decision.ID)

	resolved, err := store.GetReviewItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewConfirmedDuplicate, resolved.Status)

	stored, err := store.GetAuditEntry(ctx, decision.ID)
	require.NoError(t, err)
	assert.True(t, stored.ManualOverride)
	assert.Equal(t, "alice", stored.CreatedBy)

	invalid := manual()
	invalid.TenantID = ""
	err = store.ResolveReviewItem(ctx, item.ID, model.ReviewSkipped, "bob", "", at, invalid)
	assert.ErrorIs(t, err, ErrInvalidAuditEntry)
}
