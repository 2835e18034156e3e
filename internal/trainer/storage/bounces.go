// Package storage provides SQLite database access for the trainer.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BounceEvent records a delivery failure notification observed in the
// sender mailbox. Bounces are informational only: they never change the
// status of a training record.
type BounceEvent struct {
	ID         string    `json:"id"`
	Recipient  string    `json:"recipient"`
	Subject    string    `json:"subject,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// RecordBounce inserts a bounce event.
func (d *DB) RecordBounce(ctx context.Context, event *BounceEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO bounce_events (id, recipient, subject, reason)
		VALUES (?, ?, ?, ?)
	`, event.ID, event.Recipient, event.Subject, event.Reason)

	if err != nil {
		return fmt.Errorf("failed to insert bounce event: %w", err)
	}

	d.logger.Debug().
		Str("bounce_id", event.ID).
		Str("recipient", event.Recipient).
		Msg("Bounce event recorded")

	return nil
}

// ListBounces returns bounce events most-recent-first.
// Same degraded-read policy as ListRecords: failures yield an empty list.
func (d *DB) ListBounces(ctx context.Context) []BounceEvent {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, recipient, subject, reason, observed_at
		FROM bounce_events
		ORDER BY observed_at DESC, rowid DESC
	`)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to list bounce events, returning empty list")
		return []BounceEvent{}
	}
	defer rows.Close()

	events := []BounceEvent{}
	for rows.Next() {
		var ev BounceEvent
		if err := rows.Scan(&ev.ID, &ev.Recipient, &ev.Subject, &ev.Reason, &ev.ObservedAt); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to scan bounce event, returning empty list")
			return []BounceEvent{}
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to read bounce events, returning empty list")
		return []BounceEvent{}
	}

	return events
}
