package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/model"
)

// SaveImageHashes stores a listing's fingerprints as a JSON array, replacing any previous set.
func (s *SQLiteStorage) SaveImageHashes(ctx context.Context, listingID string, hashes []uint64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(listingID, "listingID"); err != nil {
		return err
	}

	encoded, err := model.EncodeImageHashes(hashes)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO listing_fingerprints (listing_id, image_hashes, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(listing_id) DO UPDATE SET
			image_hashes = excluded.image_hashes,
			updated_at = excluded.updated_at
	`, listingID, encoded, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save image hashes: %w", err)
	}
	return nil
}

// GetImageHashes loads a listing's fingerprints.
func (s *SQLiteStorage) GetImageHashes(ctx context.Context, listingID string) ([]uint64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(listingID, "listingID"); err != nil {
		return nil, err
	}

	var encoded string
	err := s.db.QueryRowContext(ctx,
		`SELECT image_hashes FROM listing_fingerprints WHERE listing_id = ?`, listingID).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("image hashes for %s: %w", listingID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image hashes: %w", err)
	}
	return model.DecodeImageHashes(encoded)
}
