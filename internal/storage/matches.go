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

const matchColumns = `id, tenant_id, source_listing_id, target_listing_id, overall_score,
	vin_score, title_score, price_score, mileage_score, location_score, image_score,
	confidence, review_item_id, detected_at`

func scanMatch(row scanner) (*model.DuplicateMatch, error) {
	var (
		m            model.DuplicateMatch
		reviewItemID sql.NullString
	)
	err := row.Scan(
		&m.ID, &m.TenantID, &m.SourceListingID, &m.TargetListingID, &m.OverallScore,
		&m.Breakdown.VINScore, &m.Breakdown.TitleScore, &m.Breakdown.PriceScore,
		&m.Breakdown.MileageScore, &m.Breakdown.LocationScore, &m.Breakdown.ImageScore,
		&m.Confidence, &reviewItemID, &m.DetectedAt,
	)
	if err != nil {
		return nil, err
	}
	m.ReviewItemID = stringPtr(reviewItemID)
	return &m, nil
}

// UpsertDuplicateMatch stores a match unless one already exists for the unordered
// listing pair. Either way match is overwritten with the stored row.
func (s *SQLiteStorage) UpsertDuplicateMatch(ctx context.Context, match *model.DuplicateMatch) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateMatch(match); err != nil {
		return false, err
	}

	var created bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		created, err = upsertMatchTx(ctx, tx, match)
		return err
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func upsertMatchTx(ctx context.Context, tx *sql.Tx, match *model.DuplicateMatch) (bool, error) {
	low, high := model.NormalizedPair(match.SourceListingID, match.TargetListingID)

	id := match.ID
	if id == "" {
		id = uuid.NewString()
	}
	detectedAt := match.DetectedAt
	if detectedAt.IsZero() {
		detectedAt = time.Now().UTC()
	}
	confidence := match.Confidence
	if confidence == "" {
		confidence = model.ConfidenceForScore(match.OverallScore)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO duplicate_matches (
			id, tenant_id, source_listing_id, target_listing_id, listing_low, listing_high, overall_score,
			vin_score, title_score, price_score, mileage_score, location_score, image_score,
			confidence, detected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, listing_low, listing_high) DO NOTHING
	`,
		id, match.TenantID, match.SourceListingID, match.TargetListingID, low, high, match.OverallScore,
		match.Breakdown.VINScore, match.Breakdown.TitleScore, match.Breakdown.PriceScore,
		match.Breakdown.MileageScore, match.Breakdown.LocationScore, match.Breakdown.ImageScore,
		confidence, detectedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert duplicate match: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	stored, err := scanMatch(tx.QueryRowContext(ctx, `
		SELECT `+matchColumns+` FROM duplicate_matches
		WHERE tenant_id = ? AND listing_low = ? AND listing_high = ?
	`, match.TenantID, low, high))
	if err != nil {
		return false, fmt.Errorf("failed to load duplicate match: %w", err)
	}
	*match = *stored
	return affected > 0, nil
}

// GetDuplicateMatch retrieves a match by id.
func (s *SQLiteStorage) GetDuplicateMatch(ctx context.Context, id string) (*model.DuplicateMatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	m, err := scanMatch(s.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM duplicate_matches WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("duplicate match %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get duplicate match: %w", err)
	}
	return m, nil
}

// FindDuplicateMatch looks a match up by its listing pair in either order.
func (s *SQLiteStorage) FindDuplicateMatch(ctx context.Context, tenantID, listingA, listingB string) (*model.DuplicateMatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	if err := validateString(listingA, "listingA"); err != nil {
		return nil, err
	}
	if err := validateString(listingB, "listingB"); err != nil {
		return nil, err
	}

	low, high := model.NormalizedPair(listingA, listingB)
	m, err := scanMatch(s.db.QueryRowContext(ctx, `
		SELECT `+matchColumns+` FROM duplicate_matches
		WHERE tenant_id = ? AND listing_low = ? AND listing_high = ?
	`, tenantID, low, high))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("duplicate match for %s/%s: %w", listingA, listingB, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find duplicate match: %w", err)
	}
	return m, nil
}

// ListDuplicateMatches returns every match involving a listing, best first.
func (s *SQLiteStorage) ListDuplicateMatches(ctx context.Context, tenantID, listingID string) ([]model.DuplicateMatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	if err := validateString(listingID, "listingID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+matchColumns+` FROM duplicate_matches
		WHERE tenant_id = ? AND (source_listing_id = ? OR target_listing_id = ?)
		ORDER BY overall_score DESC, id
	`, tenantID, listingID, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate matches: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var matches []model.DuplicateMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan duplicate match: %w", err)
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}
