package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/relisted/internal/common"
	"github.com/Veraticus/relisted/internal/model"
	"github.com/Veraticus/relisted/internal/service"
)

const auditColumns = `id, tenant_id, listing1_id, listing2_id, decision, reason, confidence_score,
	fuzzy_match_details, was_automatic, manual_override, override_reason, original_audit_entry_id,
	created_by, is_false_positive, is_false_negative, created_at`

func scanAuditEntry(row scanner) (*model.AuditEntry, error) {
	var (
		e              model.AuditEntry
		listing2       sql.NullString
		confidence     sql.NullFloat64
		details        sql.NullString
		overrideReason sql.NullString
		original       sql.NullString
		createdBy      sql.NullString
	)
	err := row.Scan(
		&e.ID, &e.TenantID, &e.Listing1ID, &listing2, &e.Decision, &e.Reason, &confidence,
		&details, &e.WasAutomatic, &e.ManualOverride, &overrideReason, &original,
		&createdBy, &e.IsFalsePositive, &e.IsFalseNegative, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Listing2ID = stringPtr(listing2)
	e.OriginalAuditEntryID = stringPtr(original)
	if confidence.Valid {
		c := confidence.Float64
		e.ConfidenceScore = &c
	}
	e.FuzzyMatchDetails = details.String
	e.OverrideReason = overrideReason.String
	e.CreatedBy = createdBy.String
	return &e, nil
}

// AppendAuditEntry inserts a new audit entry, assigning its id and timestamp when empty.
func (s *SQLiteStorage) AppendAuditEntry(ctx context.Context, entry *model.AuditEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAuditEntry(entry); err != nil {
		return err
	}

	return insertAuditEntry(ctx, s.db, entry)
}

// insertAuditEntry writes a validated entry, assigning its id and timestamp when empty.
func insertAuditEntry(ctx context.Context, q queryable, entry *model.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var listing2, original string
	if entry.Listing2ID != nil {
		listing2 = *entry.Listing2ID
	}
	if entry.OriginalAuditEntryID != nil {
		original = *entry.OriginalAuditEntryID
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO audit_entries (`+auditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID, entry.TenantID, entry.Listing1ID, nullString(listing2), entry.Decision, entry.Reason,
		nullFloat(entry.ConfidenceScore), nullString(entry.FuzzyMatchDetails),
		entry.WasAutomatic, entry.ManualOverride, nullString(entry.OverrideReason), nullString(original),
		nullString(entry.CreatedBy), entry.IsFalsePositive, entry.IsFalseNegative, entry.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("audit entry %s: %w", entry.ID, common.ErrDuplicateEntry)
	}
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// GetAuditEntry retrieves an audit entry by id.
func (s *SQLiteStorage) GetAuditEntry(ctx context.Context, id string) (*model.AuditEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	entry, err := scanAuditEntry(s.db.QueryRowContext(ctx,
		`SELECT `+auditColumns+` FROM audit_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("audit entry %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit entry: %w", err)
	}
	return entry, nil
}

// ListAuditEntries returns entries matching the filter in creation order.
// From is inclusive and To is exclusive.
func (s *SQLiteStorage) ListAuditEntries(ctx context.Context, filter service.AuditFilter) ([]model.AuditEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, ErrInvalidDateRange
	}

	var (
		conditions []string
		args       []any
	)
	if filter.TenantID != "" {
		conditions = append(conditions, "tenant_id = ?")
		args = append(args, filter.TenantID)
	}
	if filter.From != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		conditions = append(conditions, "created_at < ?")
		args = append(args, filter.To.UTC())
	}
	if filter.Automatic != nil {
		conditions = append(conditions, "was_automatic = ?")
		args = append(args, *filter.Automatic)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_entries`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var entries []model.AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// LatestAutomaticAuditEntry returns the newest automatic entry recorded for the
// listing pair in either order.
func (s *SQLiteStorage) LatestAutomaticAuditEntry(ctx context.Context, tenantID, listingA, listingB string) (*model.AuditEntry, error) {
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

	entry, err := scanAuditEntry(s.db.QueryRowContext(ctx, `
		SELECT `+auditColumns+` FROM audit_entries
		WHERE tenant_id = ? AND was_automatic = 1
			AND ((listing1_id = ? AND listing2_id = ?) OR (listing1_id = ? AND listing2_id = ?))
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, tenantID, listingA, listingB, listingB, listingA))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("automatic audit entry for %s/%s: %w", listingA, listingB, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest audit entry: %w", err)
	}
	return entry, nil
}

// SetAuditErrorFlags updates the non-nil correction flags. It reports false when
// the entry does not exist.
func (s *SQLiteStorage) SetAuditErrorFlags(ctx context.Context, id string, falsePositive, falseNegative *bool) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(id, "id"); err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE audit_entries SET
			is_false_positive = COALESCE(?, is_false_positive),
			is_false_negative = COALESCE(?, is_false_negative)
		WHERE id = ?
	`, nullBool(falsePositive), nullBool(falseNegative), id)
	if err != nil {
		return false, fmt.Errorf("failed to update audit flags: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}
