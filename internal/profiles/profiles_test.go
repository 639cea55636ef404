package profiles

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/model"
	"github.com/Veraticus/relisted/internal/testutil"
)

// memStore is an in-memory ConfigStore.
type memStore struct {
	configs map[string]model.DeduplicationConfig
	mu      sync.Mutex
	nextID  int
}

func newMemStore() *memStore {
	return &memStore{configs: make(map[string]model.DeduplicationConfig)}
}

func (m *memStore) GetConfig(_ context.Context, id string) (*model.DeduplicationConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &cfg, nil
}

func (m *memStore) GetActiveConfig(_ context.Context, tenantID string) (*model.DeduplicationConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cfg := range m.configs {
		if cfg.TenantID == tenantID && cfg.IsActive {
			return &cfg, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memStore) ListConfigs(_ context.Context, tenantID string) ([]model.DeduplicationConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DeduplicationConfig
	for _, cfg := range m.configs {
		if cfg.TenantID == tenantID {
			out = append(out, cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) CreateConfig(_ context.Context, cfg *model.DeduplicationConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.configs {
		if existing.TenantID == cfg.TenantID && existing.Name == cfg.Name {
			return common.ErrDuplicateEntry
		}
	}
	if cfg.IsActive {
		m.deactivate(cfg.TenantID)
	}
	m.nextID++
	cfg.ID = fmt.Sprintf("cfg-%d", m.nextID)
	m.configs[cfg.ID] = *cfg
	return nil
}

func (m *memStore) UpdateConfig(_ context.Context, cfg *model.DeduplicationConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[cfg.ID]; !ok {
		return common.ErrNotFound
	}
	m.configs[cfg.ID] = *cfg
	return nil
}

func (m *memStore) ActivateConfig(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[id]
	if !ok || cfg.TenantID != tenantID {
		return common.ErrNotFound
	}
	m.deactivate(tenantID)
	cfg.IsActive = true
	m.configs[id] = cfg
	return nil
}

func (m *memStore) DeleteConfig(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[id]; !ok {
		return common.ErrNotFound
	}
	delete(m.configs, id)
	return nil
}

func (m *memStore) deactivate(tenantID string) {
	for id, cfg := range m.configs {
		if cfg.TenantID == tenantID {
			cfg.IsActive = false
			m.configs[id] = cfg
		}
	}
}

func TestService_ActiveCreatesDefault(t *testing.T) {
	svc := NewService(newMemStore())
	ctx := context.Background()

	cfg, err := svc.Active(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultProfileName, cfg.Name)
	assert.True(t, cfg.IsActive)
	assert.InDelta(t, 0.85, cfg.OverallMatchThreshold, 1e-9)

	again, err := svc.Active(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, cfg.ID, again.ID)

	other, err := svc.Active(ctx, "tenant-b")
	require.NoError(t, err)
	assert.NotEqual(t, cfg.ID, other.ID)
}

func TestService_ActiveReactivatesInactiveDefault(t *testing.T) {
	store := newMemStore()
	svc := NewService(store)
	ctx := context.Background()

	def := model.DefaultDeduplicationConfig("tenant-a")
	require.NoError(t, store.CreateConfig(ctx, &def))

	cfg, err := svc.Active(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, def.ID, cfg.ID)
	assert.True(t, cfg.IsActive)
}

func TestService_CreateUpdateActivateDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewService(db.Storage)
	ctx := context.Background()

	def, err := svc.Active(ctx, testutil.DefaultTenant)
	require.NoError(t, err)

	strict := model.DefaultDeduplicationConfig(testutil.DefaultTenant)
	strict.Name = "strict"
	strict.OverallMatchThreshold = 0.95
	strict.Version = 7
	warnings, err := svc.Create(ctx, &strict)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 1, strict.Version)

	strict.ImageWeight = 0.5
	warnings, err = svc.Update(ctx, &strict)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "1.30")

	stored, ok, err := svc.Get(ctx, strict.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, stored.Version)
	assert.InDelta(t, 0.5, stored.ImageWeight, 1e-9)
	assert.False(t, stored.IsActive)

	activated, err := svc.Activate(ctx, testutil.DefaultTenant, strict.ID)
	require.NoError(t, err)
	assert.True(t, activated)

	active, err := svc.Active(ctx, testutil.DefaultTenant)
	require.NoError(t, err)
	assert.Equal(t, strict.ID, active.ID)

	activated, err = svc.Activate(ctx, testutil.DefaultTenant, "missing")
	require.NoError(t, err)
	assert.False(t, activated)

	_, err = svc.Delete(ctx, strict.ID)
	assert.ErrorIs(t, err, ErrActiveProfile)

	deleted, err := svc.Delete(ctx, def.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = svc.Delete(ctx, def.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, ok, err = svc.Get(ctx, def.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_CreateRejectsInvalid(t *testing.T) {
	svc := NewService(newMemStore())

	tests := []struct {
		mutate func(*model.DeduplicationConfig)
		name   string
	}{
		{name: "empty name", mutate: func(c *model.DeduplicationConfig) { c.Name = "" }},
		{name: "threshold above one", mutate: func(c *model.DeduplicationConfig) { c.OverallMatchThreshold = 1.2 }},
		{name: "review above auto", mutate: func(c *model.DeduplicationConfig) { c.ReviewThreshold = 0.9 }},
		{name: "negative weight", mutate: func(c *model.DeduplicationConfig) { c.PriceWeight = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := model.DefaultDeduplicationConfig("tenant-a")
			tt.mutate(&cfg)
			_, err := svc.Create(context.Background(), &cfg)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
			assert.ErrorIs(t, err, model.ErrInvalidDedupConfig)
		})
	}
}

func TestExportImport(t *testing.T) {
	cfg := model.DefaultDeduplicationConfig("tenant-a")
	cfg.ID = "cfg-1"
	cfg.Name = "strict"
	cfg.OverallMatchThreshold = 0.92
	cfg.HammingThreshold = 8

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, &cfg))
	assert.Contains(t, buf.String(), "overall_match_threshold: 0.92")
	assert.NotContains(t, buf.String(), "cfg-1")

	imported, warnings, err := Import(&buf, "tenant-b")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "tenant-b", imported.TenantID)
	assert.Equal(t, "strict", imported.Name)
	assert.InDelta(t, 0.92, imported.OverallMatchThreshold, 1e-9)
	assert.Equal(t, 8, imported.HammingThreshold)
	assert.Empty(t, imported.ID)
}

func TestImport(t *testing.T) {
	t.Run("partial document keeps defaults", func(t *testing.T) {
		cfg, _, err := Import(strings.NewReader("name: loose\nreview_threshold: 0.5\n"), "tenant-a")
		require.NoError(t, err)
		assert.Equal(t, "loose", cfg.Name)
		assert.InDelta(t, 0.5, cfg.ReviewThreshold, 1e-9)
		assert.InDelta(t, 0.30, cfg.VINWeight, 1e-9)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, _, err := Import(strings.NewReader("name: x\nvin_wieght: 0.3\n"), "tenant-a")
		assert.ErrorIs(t, err, common.ErrInvalidConfig)
	})

	t.Run("invalid values", func(t *testing.T) {
		_, _, err := Import(strings.NewReader("review_threshold: 0.99\n"), "tenant-a")
		assert.ErrorIs(t, err, model.ErrInvalidDedupConfig)
	})
}
