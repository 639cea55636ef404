package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/model"
	"github.com/Veraticus/relisted/internal/service"
)

func ptr[T any](v T) *T { return &v }

func TestSQLiteStorage_AuditEntries(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	automatic := model.AuditEntry{
		TenantID:          "tenant-a",
		Listing1ID:        "A",
		Listing2ID:        ptr("B"),
		Decision:          model.DecisionDuplicate,
		Reason:            model.ReasonFuzzyMatch,
		ConfidenceScore:   ptr(91.5),
		FuzzyMatchDetails: `{"vinScore":0.5}`,
		WasAutomatic:      true,
		CreatedAt:         base,
	}
	require.NoError(t, store.AppendAuditEntry(ctx, &automatic))
	assert.NotEmpty(t, automatic.ID)

	manual := model.AuditEntry{
		TenantID:             "tenant-a",
		Listing1ID:           "B",
		Listing2ID:           ptr("A"),
		Decision:             model.DecisionNewListing,
		Reason:               model.ReasonManualReview,
		ManualOverride:       true,
		OverrideReason:       "different trim",
		OriginalAuditEntryID: ptr(automatic.ID),
		CreatedBy:            "alice",
		CreatedAt:            base.Add(time.Hour),
	}
	require.NoError(t, store.AppendAuditEntry(ctx, &manual))

	got, err := store.GetAuditEntry(ctx, manual.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.CreatedBy)
	require.NotNil(t, got.OriginalAuditEntryID)
	assert.Equal(t, automatic.ID, *got.OriginalAuditEntryID)
	assert.Nil(t, got.ConfidenceScore)
	assert.True(t, got.ManualOverride)
	assert.False(t, got.WasAutomatic)

	latest, err := store.LatestAutomaticAuditEntry(ctx, "tenant-a", "B", "A")
	require.NoError(t, err)
	assert.Equal(t, automatic.ID, latest.ID)
	require.NotNil(t, latest.ConfidenceScore)
	assert.InDelta(t, 91.5, *latest.ConfidenceScore, 1e-9)

	_, err = store.LatestAutomaticAuditEntry(ctx, "tenant-a", "A", "C")
	assert.ErrorIs(t, err, common.ErrNotFound)

	all, err := store.ListAuditEntries(ctx, service.AuditFilter{TenantID: "tenant-a"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, automatic.ID, all[0].ID)

	onlyAutomatic, err := store.ListAuditEntries(ctx, service.AuditFilter{TenantID: "tenant-a", Automatic: ptr(true)})
	require.NoError(t, err)
	assert.Len(t, onlyAutomatic, 1)

	windowed, err := store.ListAuditEntries(ctx, service.AuditFilter{
		TenantID: "tenant-a",
		From:     ptr(base.Add(30 * time.Minute)),
		To:       ptr(base.Add(2 * time.Hour)),
	})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, manual.ID, windowed[0].ID)

	_, err = store.ListAuditEntries(ctx, service.AuditFilter{From: ptr(base), To: ptr(base)})
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestSQLiteStorage_SetAuditErrorFlags(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	entry := model.AuditEntry{
		TenantID:     "tenant-a",
		Listing1ID:   "A",
		Decision:     model.DecisionDuplicate,
		Reason:       model.ReasonVINMatch,
		WasAutomatic: true,
	}
	require.NoError(t, store.AppendAuditEntry(ctx, &entry))

	ok, err := store.SetAuditErrorFlags(ctx, entry.ID, ptr(true), nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// Setting the same flag again still reports the entry exists.
	ok, err = store.SetAuditErrorFlags(ctx, entry.ID, ptr(true), nil)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.GetAuditEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, got.IsFalsePositive)
	assert.False(t, got.IsFalseNegative)

	ok, err = store.SetAuditErrorFlags(ctx, entry.ID, ptr(false), ptr(false))
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = store.GetAuditEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.False(t, got.IsFalsePositive)

	ok, err = store.SetAuditErrorFlags(ctx, "missing", ptr(true), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}
