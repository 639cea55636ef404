package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/model"
)

const configColumns = `id, tenant_id, name, version, is_active,
	overall_match_threshold, review_threshold,
	vin_weight, title_weight, price_weight, mileage_weight, location_weight, image_weight,
	mileage_tolerance, price_tolerance, year_tolerance, location_tolerance_km, ngram_size, hamming_threshold,
	title_attribute_weight, title_jaro_winkler_weight, title_ngram_weight,
	title_only_jaro_winkler_weight, title_only_ngram_weight, vin_override_floor,
	created_at, updated_at`

func scanConfig(row scanner) (*model.DeduplicationConfig, error) {
	var cfg model.DeduplicationConfig
	err := row.Scan(
		&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Version, &cfg.IsActive,
		&cfg.OverallMatchThreshold, &cfg.ReviewThreshold,
		&cfg.VINWeight, &cfg.TitleWeight, &cfg.PriceWeight, &cfg.MileageWeight, &cfg.LocationWeight, &cfg.ImageWeight,
		&cfg.MileageTolerance, &cfg.PriceTolerance, &cfg.YearTolerance, &cfg.LocationToleranceKm, &cfg.NGramSize, &cfg.HammingThreshold,
		&cfg.TitleAttributeWeight, &cfg.TitleJaroWinklerWeight, &cfg.TitleNGramWeight,
		&cfg.TitleOnlyJaroWinklerWeight, &cfg.TitleOnlyNGramWeight, &cfg.VINOverrideFloor,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetConfig retrieves a configuration profile by id.
func (s *SQLiteStorage) GetConfig(ctx context.Context, id string) (*model.DeduplicationConfig, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	cfg, err := scanConfig(s.db.QueryRowContext(ctx,
		`SELECT `+configColumns+` FROM dedup_configs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("config %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}
	return cfg, nil
}

// GetActiveConfig retrieves the tenant's active configuration profile.
func (s *SQLiteStorage) GetActiveConfig(ctx context.Context, tenantID string) (*model.DeduplicationConfig, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}

	cfg, err := scanConfig(s.db.QueryRowContext(ctx,
		`SELECT `+configColumns+` FROM dedup_configs WHERE tenant_id = ? AND is_active = 1`, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("active config for tenant %s: %w", tenantID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active config: %w", err)
	}
	return cfg, nil
}

// ListConfigs returns all profiles for a tenant ordered by name.
func (s *SQLiteStorage) ListConfigs(ctx context.Context, tenantID string) ([]model.DeduplicationConfig, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+configColumns+` FROM dedup_configs WHERE tenant_id = ? ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query configs: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var configs []model.DeduplicationConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan config: %w", err)
		}
		configs = append(configs, *cfg)
	}
	return configs, rows.Err()
}

// CreateConfig inserts a new profile. An empty id is assigned. When the profile is
// marked active, the tenant's other profiles are deactivated in the same transaction.
func (s *SQLiteStorage) CreateConfig(ctx context.Context, cfg *model.DeduplicationConfig) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Version <= 0 {
		cfg.Version = 1
	}
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if cfg.IsActive {
			if _, err := tx.ExecContext(ctx,
				`UPDATE dedup_configs SET is_active = 0 WHERE tenant_id = ? AND is_active = 1`, cfg.TenantID); err != nil {
				return fmt.Errorf("failed to deactivate configs: %w", err)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO dedup_configs (`+configColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			cfg.ID, cfg.TenantID, cfg.Name, cfg.Version, cfg.IsActive,
			cfg.OverallMatchThreshold, cfg.ReviewThreshold,
			cfg.VINWeight, cfg.TitleWeight, cfg.PriceWeight, cfg.MileageWeight, cfg.LocationWeight, cfg.ImageWeight,
			cfg.MileageTolerance, cfg.PriceTolerance, cfg.YearTolerance, cfg.LocationToleranceKm, cfg.NGramSize, cfg.HammingThreshold,
			cfg.TitleAttributeWeight, cfg.TitleJaroWinklerWeight, cfg.TitleNGramWeight,
			cfg.TitleOnlyJaroWinklerWeight, cfg.TitleOnlyNGramWeight, cfg.VINOverrideFloor,
			cfg.CreatedAt, cfg.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("config %q for tenant %s: %w", cfg.Name, cfg.TenantID, common.ErrDuplicateEntry)
		}
		if err != nil {
			return fmt.Errorf("failed to create config: %w", err)
		}
		return nil
	})
	return err
}

// UpdateConfig overwrites a profile's name and parameters. Activation is unchanged.
func (s *SQLiteStorage) UpdateConfig(ctx context.Context, cfg *model.DeduplicationConfig) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}
	if err := validateString(cfg.ID, "id"); err != nil {
		return err
	}

	cfg.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE dedup_configs SET
			name = ?, version = ?,
			overall_match_threshold = ?, review_threshold = ?,
			vin_weight = ?, title_weight = ?, price_weight = ?, mileage_weight = ?, location_weight = ?, image_weight = ?,
			mileage_tolerance = ?, price_tolerance = ?, year_tolerance = ?, location_tolerance_km = ?,
			ngram_size = ?, hamming_threshold = ?,
			title_attribute_weight = ?, title_jaro_winkler_weight = ?, title_ngram_weight = ?,
			title_only_jaro_winkler_weight = ?, title_only_ngram_weight = ?, vin_override_floor = ?,
			updated_at = ?
		WHERE id = ? AND tenant_id = ?
	`,
		cfg.Name, cfg.Version,
		cfg.OverallMatchThreshold, cfg.ReviewThreshold,
		cfg.VINWeight, cfg.TitleWeight, cfg.PriceWeight, cfg.MileageWeight, cfg.LocationWeight, cfg.ImageWeight,
		cfg.MileageTolerance, cfg.PriceTolerance, cfg.YearTolerance, cfg.LocationToleranceKm,
		cfg.NGramSize, cfg.HammingThreshold,
		cfg.TitleAttributeWeight, cfg.TitleJaroWinklerWeight, cfg.TitleNGramWeight,
		cfg.TitleOnlyJaroWinklerWeight, cfg.TitleOnlyNGramWeight, cfg.VINOverrideFloor,
		cfg.UpdatedAt,
		cfg.ID, cfg.TenantID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("config %q for tenant %s: %w", cfg.Name, cfg.TenantID, common.ErrDuplicateEntry)
	}
	if err != nil {
		return fmt.Errorf("failed to update config: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("config %s: %w", cfg.ID, common.ErrNotFound)
	}
	return nil
}

// ActivateConfig makes id the tenant's single active profile.
func (s *SQLiteStorage) ActivateConfig(ctx context.Context, tenantID, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM dedup_configs WHERE id = ? AND tenant_id = ?)`, id, tenantID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check config existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("config %s: %w", id, common.ErrNotFound)
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			UPDATE dedup_configs SET is_active = 0, updated_at = ?
			WHERE tenant_id = ? AND is_active = 1 AND id != ?
		`, now, tenantID, id); err != nil {
			return fmt.Errorf("failed to deactivate configs: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE dedup_configs SET is_active = 1, updated_at = ? WHERE id = ?`, now, id); err != nil {
			return fmt.Errorf("failed to activate config: %w", err)
		}
		return nil
	})
}

// DeleteConfig removes a profile.
func (s *SQLiteStorage) DeleteConfig(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM dedup_configs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete config: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("config %s: %w", id, common.ErrNotFound)
	}
	return nil
}
