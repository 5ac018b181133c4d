package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/foxzi/mailseed/internal/metrics"
	"github.com/foxzi/mailseed/internal/store"
)

// wipe deletes in reverse dependency order: tables nothing points at
// first, then rows keyed by the session's email ids, then the parents.
func (l *Loader) wipe(ctx context.Context, ex execer, sessionID string) (*WipeResult, error) {
	result := &WipeResult{SessionID: sessionID}

	for _, t := range []string{"snooze_queue", "signatures"} {
		if err := l.deleteBySession(ctx, ex, result, t, sessionID); err != nil {
			return nil, err
		}
	}

	emailIDs, err := l.emailIDs(ctx, ex, sessionID)
	if err != nil {
		return nil, err
	}

	for off := 0; off < len(emailIDs); off += l.opts.BatchSize {
		end := off + l.opts.BatchSize
		if end > len(emailIDs) {
			end = len(emailIDs)
		}
		batch := emailIDs[off:end]

		for _, t := range []string{"email_labels", "email_recipients", "attachments"} {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("wipe %s interrupted at offset %d: %w", t, off, err)
			}
			if err := l.deleteByEmails(ctx, ex, result, t, batch); err != nil {
				return nil, fmt.Errorf("%w (offset %d)", err, off)
			}
		}
	}

	for _, t := range []string{"emails", "threads", "labels", "contacts", "filters"} {
		if err := l.deleteBySession(ctx, ex, result, t, sessionID); err != nil {
			return nil, err
		}
	}

	if err := l.markSeeded(ctx, ex, sessionID, false, time.Time{}); err != nil {
		return nil, err
	}

	l.logger.Info("session wiped", "session_id", sessionID, "rows", result.Deleted.Total())
	return result, nil
}

func (l *Loader) deleteBySession(ctx context.Context, ex execer, result *WipeResult, table, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("wipe interrupted before %s: %w", table, err)
	}

	res, err := ex.ExecContext(ctx, l.db.Rebind("DELETE FROM "+table+" WHERE session_id = ?"), sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", table, err)
	}
	n, _ := res.RowsAffected()
	addCount(&result.Deleted, table, int(n))
	metrics.AddRowsDeleted(table, n)
	return nil
}

func (l *Loader) deleteByEmails(ctx context.Context, ex execer, result *WipeResult, table string, emailIDs []string) error {
	args := make([]any, len(emailIDs))
	for i, id := range emailIDs {
		args[i] = id
	}

	q := "DELETE FROM " + table + " WHERE email_id IN (" + store.Placeholders(len(emailIDs)) + ")"
	res, err := ex.ExecContext(ctx, l.db.Rebind(q), args...)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", table, err)
	}
	n, _ := res.RowsAffected()
	addCount(&result.Deleted, table, int(n))
	metrics.AddRowsDeleted(table, n)
	return nil
}

func (l *Loader) emailIDs(ctx context.Context, ex execer, sessionID string) ([]string, error) {
	rows, err := ex.QueryContext(ctx, l.db.Rebind("SELECT id FROM emails WHERE session_id = ?"), sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan email id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
