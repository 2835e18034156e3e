// Package storage provides SQLite database access for the trainer.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// TrainingRecord represents one dispatched phishing simulation.
type TrainingRecord struct {
	TrackingID string     `json:"tracking_id"`
	Recipient  string     `json:"recipient"`
	Category   string     `json:"category"`
	Status     string     `json:"status"`
	SentAt     time.Time  `json:"sent_at"`
	ClickedAt  *time.Time `json:"clicked_at,omitempty"`
}

// Record status constants. A record starts as Sent and transitions to
// Clicked at most once; it never goes back.
const (
	StatusSent    = "Sent"
	StatusClicked = "Clicked"
)

// ErrDuplicateTrackingID is returned when a record with the same tracking id
// already exists. Tracking ids are issued randomly, so a collision means the
// issuance contract was violated and must not be papered over.
var ErrDuplicateTrackingID = errors.New("tracking id already exists")

// AppendRecord inserts a new training record with status Sent.
// The write is committed before the call returns so a click arriving from
// another process immediately observes the record.
func (d *DB) AppendRecord(ctx context.Context, recipient, category, trackingID string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO training_records (tracking_id, recipient, category, status)
		VALUES (?, ?, ?, ?)
	`, trackingID, recipient, category, StatusSent)

	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: %s", ErrDuplicateTrackingID, trackingID)
		}
		return fmt.Errorf("failed to insert training record: %w", err)
	}

	d.logger.Debug().
		Str("tracking_id", trackingID).
		Str("recipient", recipient).
		Str("category", category).
		Msg("Training record appended")

	return nil
}

// RecordClick transitions a record from Sent to Clicked.
// It returns true only for the first click of a known tracking id; an
// unknown id or an already-Clicked record returns false with no change.
// The conditional UPDATE makes the transition atomic under concurrent
// attribution attempts: exactly one caller wins.
func (d *DB) RecordClick(ctx context.Context, trackingID string) (bool, error) {
	result, err := d.db.ExecContext(ctx, `
		UPDATE training_records
		SET status = ?, clicked_at = CURRENT_TIMESTAMP
		WHERE tracking_id = ? AND status = ?
	`, StatusClicked, trackingID, StatusSent)

	if err != nil {
		return false, fmt.Errorf("failed to record click: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	if rows == 0 {
		d.logger.Debug().Str("tracking_id", trackingID).Msg("Click ignored (unknown or already clicked)")
		return false, nil
	}

	d.logger.Info().Str("tracking_id", trackingID).Msg("Click recorded")
	return true, nil
}

// ListRecords returns training records most-recent-first, optionally
// filtered by exact recipient match.
// Read failures degrade to an empty result so dashboards stay usable when
// the store is missing or corrupt; the error is logged, never surfaced.
func (d *DB) ListRecords(ctx context.Context, recipient string) []TrainingRecord {
	query := `
		SELECT tracking_id, recipient, category, status, sent_at, clicked_at
		FROM training_records
	`
	var args []interface{}
	if recipient != "" {
		query += " WHERE recipient = ?"
		args = append(args, recipient)
	}
	query += " ORDER BY sent_at DESC, rowid DESC"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to list training records, returning empty history")
		return []TrainingRecord{}
	}
	defer rows.Close()

	records := []TrainingRecord{}
	for rows.Next() {
		var rec TrainingRecord
		var clickedAt sql.NullTime
		if err := rows.Scan(&rec.TrackingID, &rec.Recipient, &rec.Category, &rec.Status, &rec.SentAt, &clickedAt); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to scan training record, returning empty history")
			return []TrainingRecord{}
		}
		if clickedAt.Valid {
			t := clickedAt.Time
			rec.ClickedAt = &t
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to read training records, returning empty history")
		return []TrainingRecord{}
	}

	return records
}

// AggregateClicks returns the count of Clicked records grouped by category.
// Computed live from the ledger so it is always consistent with the current
// record set. Same degraded-read policy as ListRecords.
func (d *DB) AggregateClicks(ctx context.Context) map[string]int {
	rows, err := d.db.QueryContext(ctx, `
		SELECT category, COUNT(*)
		FROM training_records
		WHERE status = ?
		GROUP BY category
	`, StatusClicked)

	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to aggregate clicks, returning empty report")
		return map[string]int{}
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to scan click aggregate, returning empty report")
			return map[string]int{}
		}
		counts[category] = count
	}

	if err := rows.Err(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to read click aggregates, returning empty report")
		return map[string]int{}
	}

	return counts
}

// GetRecord retrieves a single record by tracking id, or nil if unknown.
func (d *DB) GetRecord(ctx context.Context, trackingID string) (*TrainingRecord, error) {
	var rec TrainingRecord
	var clickedAt sql.NullTime

	err := d.db.QueryRowContext(ctx, `
		SELECT tracking_id, recipient, category, status, sent_at, clicked_at
		FROM training_records WHERE tracking_id = ?
	`, trackingID).Scan(&rec.TrackingID, &rec.Recipient, &rec.Category, &rec.Status, &rec.SentAt, &clickedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get training record: %w", err)
	}

	if clickedAt.Valid {
		t := clickedAt.Time
		rec.ClickedAt = &t
	}

	return &rec, nil
}
