package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/relisted/internal/model"
	"github.com/Veraticus/relisted/internal/service"
)

func TestSetupTestDB(t *testing.T) {
	db := SetupTestDB(t)

	item := db.MustCreateReviewItem("A", "B", 0.7)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, DefaultTenant, item.TenantID)

	match, err := db.Storage.FindDuplicateMatch(context.Background(), DefaultTenant, "B", "A")
	require.NoError(t, err)
	require.NotNil(t, match.ReviewItemID)
	assert.Equal(t, item.ID, *match.ReviewItemID)
}

func TestSetupTestDBWithOptions(t *testing.T) {
	cfg := model.DefaultDeduplicationConfig(DefaultTenant)
	cfg.IsActive = true

	var setupRan bool
	db := SetupTestDBWithOptions(t, TestDBOptions{
		Configs: []model.DeduplicationConfig{cfg},
		CustomSetup: func(context.Context, service.Storage) error {
			setupRan = true
			return nil
		},
	})

	assert.True(t, setupRan)
	active, err := db.Storage.GetActiveConfig(context.Background(), DefaultTenant)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultProfileName, active.Name)
}

func TestListingBuilder(t *testing.T) {
	l := Civic("A").WithPrice(1).WithImageHashes(7).Build()

	assert.Equal(t, "A", l.ID)
	require.NotNil(t, l.Price)
	assert.InDelta(t, 1.0, *l.Price, 1e-9)
	assert.True(t, l.HasAttributes())
	assert.True(t, l.HasCoordinates())
	assert.Equal(t, []uint64{7}, l.ImageHashes)

	empty := NewListing("B").Build()
	assert.False(t, empty.HasAttributes())
	assert.Nil(t, empty.Price)
}
