package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/foxzi/mailseed/internal/catalog"
	"github.com/foxzi/mailseed/internal/journal"
	"github.com/foxzi/mailseed/internal/metrics"
	"github.com/foxzi/mailseed/internal/models"
	"github.com/foxzi/mailseed/internal/store"
)

// seedTables are the tables a journal entry may name
var seedTables = map[string]bool{
	"contacts": true, "labels": true, "threads": true, "emails": true,
	"email_recipients": true, "email_labels": true, "attachments": true,
	"snooze_queue": true, "signatures": true,
}

// writeSaga inserts stage by stage without a wrapping transaction. Chunks
// of one table run on a bounded pool; every chunk is journaled before it
// is sent so a failure, or a crash, can be undone by id.
func (l *Loader) writeSaga(ctx context.Context, sessionID string, cfg *catalog.SeedConfig) (*WriteResult, error) {
	start := time.Now()
	wc := l.newWriteContext(sessionID)

	tables, err := plan(wc, cfg, l.opts.Self)
	if err != nil {
		return nil, err
	}

	result := &WriteResult{SessionID: sessionID}
	for _, t := range tables {
		n, err := l.insertConcurrent(ctx, sessionID, t)
		result.Chunks += n
		if err != nil {
			return nil, l.compensate(ctx, sessionID, err)
		}
		addCount(&result.Counts, t.name, len(t.rows))
	}

	if err := l.markSeeded(ctx, l.db, sessionID, true, wc.now); err != nil {
		return nil, l.compensate(ctx, sessionID, err)
	}

	if err := l.opts.Journal.Clear(context.WithoutCancel(ctx), sessionID); err != nil {
		l.logger.Warn("failed to clear journal", "session_id", sessionID, "error", err)
	}

	result.Duration = time.Since(start)
	l.logger.Info("session seeded",
		"session_id", sessionID,
		"mode", ModeSaga,
		"rows", result.Counts.Total(),
		"chunks", result.Chunks,
		"duration", result.Duration,
	)
	return result, nil
}

// insertConcurrent sends a table's chunks on the worker pool and returns
// how many chunks succeeded. It stops launching chunks on the first error
// or on cancellation.
func (l *Loader) insertConcurrent(ctx context.Context, sessionID string, t *table) (int, error) {
	sem := make(chan struct{}, l.opts.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	done := 0

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	for i, c := range chunks(t, l.opts.BatchSize) {
		if err := ctx.Err(); err != nil {
			fail(fmt.Errorf("write %s interrupted before chunk %d: %w", t.name, i, err))
			break
		}
		if failed() {
			break
		}

		sem <- struct{}{}
		wg.Add(1)

		go func(i int, c chunk) {
			defer func() {
				<-sem
				wg.Done()
			}()

			entry := journal.Entry{Table: t.name, IDs: c.ids()}
			if err := l.opts.Journal.Record(ctx, sessionID, entry); err != nil {
				fail(fmt.Errorf("journal %s chunk %d: %w", t.name, i, err))
				return
			}

			if err := l.insertChunk(ctx, l.db, t, c, i); err != nil {
				fail(err)
				return
			}

			mu.Lock()
			done++
			mu.Unlock()
		}(i, c)
	}

	wg.Wait()
	return done, firstErr
}

// compensate undoes a failed saga write and returns the original cause.
// It runs detached from ctx so a cancelled write is still cleaned up.
func (l *Loader) compensate(ctx context.Context, sessionID string, cause error) error {
	cctx := context.WithoutCancel(ctx)

	deleted, err := l.replay(cctx, sessionID)
	metrics.IncCompensation(err)
	if err != nil {
		l.logger.Error("compensation incomplete, journal kept for recovery",
			"session_id", sessionID, "cause", cause, "error", err)
		return fmt.Errorf("%w (compensation incomplete: %v)", cause, err)
	}

	l.logger.Warn("write failed, committed rows removed",
		"session_id", sessionID, "rows", deleted.Total(), "error", cause)
	return cause
}

// Recover replays a journal left behind by an interrupted saga write and
// clears the session's seeded flag. A session with no journal is untouched.
// A session already marked seeded finished its write, so its journal is
// stale and is discarded without deleting anything.
func (l *Loader) Recover(ctx context.Context, sessionID string) (*WipeResult, error) {
	pending, err := l.opts.Journal.Entries(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	if len(pending) == 0 {
		return &WipeResult{SessionID: sessionID}, nil
	}

	seeded, err := l.isSeeded(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if seeded {
		if err := l.opts.Journal.Clear(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("failed to clear journal: %w", err)
		}
		l.logger.Warn("stale journal discarded for seeded session",
			"session_id", sessionID, "entries", len(pending))
		return &WipeResult{SessionID: sessionID}, nil
	}

	deleted, err := l.replay(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := l.markSeeded(ctx, l.db, sessionID, false, time.Time{}); err != nil && !errors.Is(err, errSessionMissing) {
		return nil, err
	}

	l.logger.Info("journal replayed", "session_id", sessionID, "rows", deleted.Total())
	return &WipeResult{SessionID: sessionID, Deleted: deleted}, nil
}

// isSeeded reports the session's seeded flag. A missing session reads as
// not seeded.
func (l *Loader) isSeeded(ctx context.Context, sessionID string) (bool, error) {
	var seeded bool
	err := l.db.QueryRowContext(ctx, l.db.Rebind("SELECT is_seeded FROM sessions WHERE id = ?"), sessionID).Scan(&seeded)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read seeded flag: %w", err)
	}
	return seeded, nil
}

// PendingSessions lists sessions whose journal still holds entries
func (l *Loader) PendingSessions(ctx context.Context) ([]string, error) {
	return l.opts.Journal.Sessions(ctx)
}

// PendingEntries returns the journal of one session, oldest first
func (l *Loader) PendingEntries(ctx context.Context, sessionID string) ([]journal.Entry, error) {
	return l.opts.Journal.Entries(ctx, sessionID)
}

// replay deletes journaled rows newest first and clears the journal when
// every delete succeeded.
func (l *Loader) replay(ctx context.Context, sessionID string) (models.EntityCounts, error) {
	var deleted models.EntityCounts

	entries, err := l.opts.Journal.Entries(ctx, sessionID)
	if err != nil {
		return deleted, fmt.Errorf("failed to read journal: %w", err)
	}

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if !seedTables[e.Table] {
			errs = append(errs, fmt.Errorf("journal entry %d names unknown table %q", i, e.Table))
			continue
		}
		if len(e.IDs) == 0 {
			continue
		}

		args := make([]any, 0, len(e.IDs)+1)
		args = append(args, sessionID)
		for _, id := range e.IDs {
			args = append(args, id)
		}

		q := "DELETE FROM " + e.Table + " WHERE session_id = ? AND id IN (" + store.Placeholders(len(e.IDs)) + ")"
		res, err := l.db.ExecContext(ctx, l.db.Rebind(q), args...)
		if err != nil {
			errs = append(errs, fmt.Errorf("delete %s entry %d: %w", e.Table, i, err))
			continue
		}
		n, _ := res.RowsAffected()
		addCount(&deleted, e.Table, int(n))
		metrics.AddRowsDeleted(e.Table, n)
	}

	if len(errs) > 0 {
		return deleted, errors.Join(errs...)
	}

	if err := l.opts.Journal.Clear(ctx, sessionID); err != nil {
		return deleted, fmt.Errorf("failed to clear journal: %w", err)
	}
	return deleted, nil
}
