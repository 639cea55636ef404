// Package profiles manages the named deduplication configuration profiles of each tenant.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/model"
	"github.com/Veraticus/relisted/internal/service"
)

// ErrActiveProfile is returned when deleting the tenant's active profile.
var ErrActiveProfile = errors.New("cannot delete the active profile")

// Service reads and edits configuration profiles.
type Service struct {
	store service.ConfigStore
}

// NewService creates a profile service.
func NewService(store service.ConfigStore) *Service {
	return &Service{store: store}
}

// Active returns the tenant's active profile, creating and activating the
// default profile on first use.
func (s *Service) Active(ctx context.Context, tenantID string) (*model.DeduplicationConfig, error) {
	cfg, err := s.store.GetActiveConfig(ctx, tenantID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to load active profile: %w", err)
	}

	def := model.DefaultDeduplicationConfig(tenantID)
	def.IsActive = true
	err = s.store.CreateConfig(ctx, &def)
	if errors.Is(err, common.ErrDuplicateEntry) {
		// A default profile exists but is inactive, or another caller created it first.
		return s.activateDefault(ctx, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create default profile: %w", err)
	}

	slog.Info("Created default deduplication profile", "tenant_id", tenantID, "config_id", def.ID)
	return &def, nil
}

func (s *Service) activateDefault(ctx context.Context, tenantID string) (*model.DeduplicationConfig, error) {
	if cfg, err := s.store.GetActiveConfig(ctx, tenantID); err == nil {
		return cfg, nil
	}

	configs, err := s.store.ListConfigs(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	for _, cfg := range configs {
		if cfg.Name != model.DefaultProfileName {
			continue
		}
		if err := s.store.ActivateConfig(ctx, tenantID, cfg.ID); err != nil {
			return nil, fmt.Errorf("failed to activate default profile: %w", err)
		}
		cfg.IsActive = true
		return &cfg, nil
	}
	return nil, fmt.Errorf("default profile for tenant %s: %w", tenantID, common.ErrNotFound)
}

// Get returns a profile by id. The bool is false when it does not exist.
func (s *Service) Get(ctx context.Context, id string) (*model.DeduplicationConfig, bool, error) {
	cfg, err := s.store.GetConfig(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get profile: %w", err)
	}
	return cfg, true, nil
}

// List returns the tenant's profiles ordered by name.
func (s *Service) List(ctx context.Context, tenantID string) ([]model.DeduplicationConfig, error) {
	configs, err := s.store.ListConfigs(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return configs, nil
}

// Create validates and stores a new profile, returning any validation warnings.
func (s *Service) Create(ctx context.Context, cfg *model.DeduplicationConfig) ([]string, error) {
	warnings, err := validate(cfg)
	if err != nil {
		return nil, err
	}
	cfg.Version = 1
	if err := s.store.CreateConfig(ctx, cfg); err != nil {
		return warnings, fmt.Errorf("failed to create profile: %w", err)
	}
	logWarnings(cfg, warnings)
	return warnings, nil
}

// Update validates and overwrites a profile, incrementing its version.
func (s *Service) Update(ctx context.Context, cfg *model.DeduplicationConfig) ([]string, error) {
	warnings, err := validate(cfg)
	if err != nil {
		return nil, err
	}

	current, err := s.store.GetConfig(ctx, cfg.ID)
	if err != nil {
		return warnings, fmt.Errorf("failed to load profile: %w", err)
	}
	cfg.Version = current.Version + 1
	cfg.IsActive = current.IsActive
	cfg.CreatedAt = current.CreatedAt

	if err := s.store.UpdateConfig(ctx, cfg); err != nil {
		return warnings, fmt.Errorf("failed to update profile: %w", err)
	}
	logWarnings(cfg, warnings)
	return warnings, nil
}

// Activate makes id the tenant's active profile. The bool is false when it does not exist.
func (s *Service) Activate(ctx context.Context, tenantID, id string) (bool, error) {
	err := s.store.ActivateConfig(ctx, tenantID, id)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to activate profile: %w", err)
	}
	slog.Info("Activated deduplication profile", "tenant_id", tenantID, "config_id", id)
	return true, nil
}

// Delete removes an inactive profile. The bool is false when it does not exist.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	cfg, ok, err := s.Get(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	if cfg.IsActive {
		return false, fmt.Errorf("%w: %s", ErrActiveProfile, cfg.Name)
	}

	err = s.store.DeleteConfig(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete profile: %w", err)
	}
	return true, nil
}

// Export writes a profile's parameters as YAML. Ids, versions and timestamps are omitted.
func Export(w io.Writer, cfg *model.DeduplicationConfig) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	return enc.Close()
}

// Import reads a YAML profile. Fields missing from the document keep their defaults.
func Import(r io.Reader, tenantID string) (*model.DeduplicationConfig, []string, error) {
	cfg := model.DefaultDeduplicationConfig(tenantID)
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	if tenantID != "" {
		cfg.TenantID = tenantID
	}

	warnings, err := validate(&cfg)
	if err != nil {
		return nil, nil, err
	}
	return &cfg, warnings, nil
}

func validate(cfg *model.DeduplicationConfig) ([]string, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: profile is nil", common.ErrInvalidConfig)
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	return warnings, nil
}

func logWarnings(cfg *model.DeduplicationConfig, warnings []string) {
	for _, w := range warnings {
		slog.Warn("Deduplication profile warning", "config_id", cfg.ID, "name", cfg.Name, "warning", w)
	}
}
