package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Deduplication schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS dedup_configs (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					name TEXT NOT NULL,
					version INTEGER NOT NULL DEFAULT 1,
					is_active INTEGER NOT NULL DEFAULT 0,
					overall_match_threshold REAL NOT NULL,
					review_threshold REAL NOT NULL,
					vin_weight REAL NOT NULL,
					title_weight REAL NOT NULL,
					price_weight REAL NOT NULL,
					mileage_weight REAL NOT NULL,
					location_weight REAL NOT NULL,
					image_weight REAL NOT NULL,
					mileage_tolerance REAL NOT NULL,
					price_tolerance REAL NOT NULL,
					year_tolerance INTEGER NOT NULL,
					location_tolerance_km REAL NOT NULL,
					ngram_size INTEGER NOT NULL,
					hamming_threshold INTEGER NOT NULL,
					title_attribute_weight REAL NOT NULL,
					title_jaro_winkler_weight REAL NOT NULL,
					title_ngram_weight REAL NOT NULL,
					title_only_jaro_winkler_weight REAL NOT NULL,
					title_only_ngram_weight REAL NOT NULL,
					vin_override_floor REAL NOT NULL,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL,
					UNIQUE(tenant_id, name)
				)`,
				`CREATE UNIQUE INDEX idx_dedup_configs_active ON dedup_configs(tenant_id) WHERE is_active = 1`,

				`CREATE TABLE IF NOT EXISTS duplicate_matches (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					source_listing_id TEXT NOT NULL,
					target_listing_id TEXT NOT NULL,
					listing_low TEXT NOT NULL,
					listing_high TEXT NOT NULL,
					overall_score REAL NOT NULL,
					vin_score REAL NOT NULL,
					title_score REAL NOT NULL,
					price_score REAL NOT NULL,
					mileage_score REAL NOT NULL,
					location_score REAL NOT NULL,
					image_score REAL NOT NULL,
					confidence TEXT NOT NULL,
					review_item_id TEXT,
					detected_at DATETIME NOT NULL,
					UNIQUE(tenant_id, listing_low, listing_high)
				)`,
				`CREATE INDEX idx_duplicate_matches_source ON duplicate_matches(tenant_id, source_listing_id)`,
				`CREATE INDEX idx_duplicate_matches_target ON duplicate_matches(tenant_id, target_listing_id)`,

				`CREATE TABLE IF NOT EXISTS review_items (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					duplicate_match_id TEXT NOT NULL UNIQUE REFERENCES duplicate_matches(id),
					source_listing_id TEXT NOT NULL,
					target_listing_id TEXT NOT NULL,
					match_score REAL NOT NULL,
					priority INTEGER NOT NULL,
					status TEXT NOT NULL DEFAULT 'PENDING',
					reviewed_by TEXT,
					reviewed_at DATETIME,
					notes TEXT,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_review_items_queue ON review_items(tenant_id, status, priority, match_score DESC)`,

				`CREATE TABLE IF NOT EXISTS audit_entries (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					listing1_id TEXT NOT NULL,
					listing2_id TEXT,
					decision TEXT NOT NULL,
					reason TEXT NOT NULL,
					confidence_score REAL,
					fuzzy_match_details TEXT,
					was_automatic INTEGER NOT NULL DEFAULT 0,
					manual_override INTEGER NOT NULL DEFAULT 0,
					override_reason TEXT,
					original_audit_entry_id TEXT REFERENCES audit_entries(id),
					created_by TEXT,
					is_false_positive INTEGER NOT NULL DEFAULT 0,
					is_false_negative INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_audit_entries_tenant_created ON audit_entries(tenant_id, created_at)`,
				`CREATE INDEX idx_audit_entries_pair ON audit_entries(tenant_id, listing1_id, listing2_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Store listing image fingerprints",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS listing_fingerprints (
				listing_id TEXT PRIMARY KEY,
				image_hashes TEXT NOT NULL DEFAULT '[]',
				updated_at DATETIME NOT NULL
			)`)
			if err != nil {
				return fmt.Errorf("failed to create listing_fingerprints table: %w", err)
			}
			return nil
		},
	},
}

// SchemaVersion returns the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
