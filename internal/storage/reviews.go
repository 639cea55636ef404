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

const reviewColumns = `id, tenant_id, duplicate_match_id, source_listing_id, target_listing_id,
	match_score, priority, status, reviewed_by, reviewed_at, notes, created_at`

func scanReviewItem(row scanner) (*model.ReviewItem, error) {
	var (
		item       model.ReviewItem
		reviewedBy sql.NullString
		reviewedAt sql.NullTime
		notes      sql.NullString
	)
	err := row.Scan(
		&item.ID, &item.TenantID, &item.DuplicateMatchID, &item.SourceListingID, &item.TargetListingID,
		&item.MatchScore, &item.Priority, &item.Status, &reviewedBy, &reviewedAt, &notes, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.ReviewedBy = reviewedBy.String
	item.Notes = notes.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		item.ReviewedAt = &t
	}
	return &item, nil
}

// EnsureReviewItem creates the review item for a match unless one exists, links it
// from the match and loads the stored row into item.
func (s *SQLiteStorage) EnsureReviewItem(ctx context.Context, item *model.ReviewItem) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateReviewItem(item); err != nil {
		return false, err
	}

	id := item.ID
	if id == "" {
		id = uuid.NewString()
	}
	status := item.Status
	if status == "" {
		status = model.ReviewPending
	}
	priority := item.Priority
	if priority <= 0 {
		priority = model.PriorityForScore(item.MatchScore)
	}
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var created bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO review_items (
				id, tenant_id, duplicate_match_id, source_listing_id, target_listing_id,
				match_score, priority, status, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(duplicate_match_id) DO NOTHING
		`,
			id, item.TenantID, item.DuplicateMatchID, item.SourceListingID, item.TargetListingID,
			item.MatchScore, priority, status, createdAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert review item: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		created = affected > 0

		stored, err := scanReviewItem(tx.QueryRowContext(ctx,
			`SELECT `+reviewColumns+` FROM review_items WHERE duplicate_match_id = ?`, item.DuplicateMatchID))
		if err != nil {
			return fmt.Errorf("failed to load review item: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE duplicate_matches SET review_item_id = ?
			WHERE id = ? AND review_item_id IS NULL
		`, stored.ID, stored.DuplicateMatchID); err != nil {
			return fmt.Errorf("failed to link review item: %w", err)
		}

		*item = *stored
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// GetReviewItem retrieves a review item by id.
func (s *SQLiteStorage) GetReviewItem(ctx context.Context, id string) (*model.ReviewItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	item, err := scanReviewItem(s.db.QueryRowContext(ctx,
		`SELECT `+reviewColumns+` FROM review_items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("review item %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review item: %w", err)
	}
	return item, nil
}

// ListPendingReviewItems returns pending items, most urgent first.
// A non-positive limit returns every pending item.
func (s *SQLiteStorage) ListPendingReviewItems(ctx context.Context, tenantID string, limit int) ([]model.ReviewItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reviewColumns+` FROM review_items
		WHERE tenant_id = ? AND status = ?
		ORDER BY priority ASC, match_score DESC, created_at ASC, id ASC
		LIMIT ?
	`, tenantID, model.ReviewPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query review items: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var items []model.ReviewItem
	for rows.Next() {
		item, err := scanReviewItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// ResolveReviewItem moves a pending item to a terminal status. Resolved items are
// never overwritten. A non-nil decision is appended to the audit trail in the same
// transaction, so either both writes land or neither does.
func (s *SQLiteStorage) ResolveReviewItem(
	ctx context.Context,
	id string,
	status model.ReviewStatus,
	reviewer, notes string,
	at time.Time,
	decision *model.AuditEntry,
) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := validateString(reviewer, "reviewer"); err != nil {
		return err
	}
	if !status.IsTerminal() {
		return fmt.Errorf("%w: %s is not a resolution", ErrInvalidStatus, status)
	}
	if decision != nil {
		if err := validateAuditEntry(decision); err != nil {
			return err
		}
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE review_items SET status = ?, reviewed_by = ?, reviewed_at = ?, notes = ?
			WHERE id = ? AND status = ?
		`, status, reviewer, at.UTC(), nullString(notes), id, model.ReviewPending)
		if err != nil {
			return fmt.Errorf("failed to resolve review item: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected > 0 {
			if decision == nil {
				return nil
			}
			return insertAuditEntry(ctx, tx, decision)
		}

		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM review_items WHERE id = ?)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check review item existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("review item %s: %w", id, common.ErrNotFound)
		}
		return fmt.Errorf("review item %s: %w", id, common.ErrReviewAlreadyResolved)
	})
}

// CountReviewItemsByStatus returns the number of a tenant's items in each status.
func (s *SQLiteStorage) CountReviewItemsByStatus(ctx context.Context, tenantID string) (map[model.ReviewStatus]int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM review_items WHERE tenant_id = ? GROUP BY status`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count review items: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	counts := make(map[model.ReviewStatus]int)
	for rows.Next() {
		var (
			status model.ReviewStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan review count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
