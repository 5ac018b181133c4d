package repository

import (
	"context"
	"fmt"

	"github.com/foxzi/mailseed/internal/models"
	"github.com/foxzi/mailseed/internal/store"
)

type StatsRepository struct {
	db *store.DB
}

func NewStatsRepository(db *store.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Counts returns per-entity row counts for a session
func (r *StatsRepository) Counts(ctx context.Context, sessionID string) (models.EntityCounts, error) {
	var c models.EntityCounts

	targets := []struct {
		table string
		dst   *int
	}{
		{"contacts", &c.Contacts},
		{"threads", &c.Threads},
		{"emails", &c.Emails},
		{"labels", &c.Labels},
		{"attachments", &c.Attachments},
		{"snooze_queue", &c.SnoozeEntries},
		{"signatures", &c.Signatures},
		{"email_recipients", &c.Recipients},
		{"email_labels", &c.LabelAssignments},
		{"filters", &c.Filters},
	}

	for _, t := range targets {
		q := r.db.Rebind("SELECT COUNT(*) FROM " + t.table + " WHERE session_id = ?")
		if err := r.db.QueryRowContext(ctx, q, sessionID).Scan(t.dst); err != nil {
			return c, fmt.Errorf("failed to count %s: %w", t.table, err)
		}
	}
	return c, nil
}

// Collect gathers counts, category distribution and flag counts for a session.
// The caller fills the session fields.
func (r *StatsRepository) Collect(ctx context.Context, sessionID string) (*models.SessionStats, error) {
	counts, err := r.Counts(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	stats := &models.SessionStats{
		SessionID:  sessionID,
		Counts:     counts,
		Categories: make(map[string]int),
	}

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`
		SELECT category, COUNT(*) FROM threads
		WHERE session_id = ? GROUP BY category`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		stats.Categories[category] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT
			COALESCE(SUM(CASE WHEN is_read THEN 0 ELSE 1 END), 0),
			COALESCE(SUM(CASE WHEN is_starred THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_important THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_draft THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_spam THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_trash THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN is_archived THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN snoozed_until IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM emails WHERE session_id = ?`), sessionID,
	).Scan(
		&stats.Flags.Unread, &stats.Flags.Starred, &stats.Flags.Important, &stats.Flags.Draft,
		&stats.Flags.Spam, &stats.Flags.Trash, &stats.Flags.Archived, &stats.Flags.Snoozed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count flags: %w", err)
	}

	return stats, nil
}
