// Package loader writes a validated seed dataset into the relational store
// and removes it again.
package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxzi/mailseed/internal/catalog"
	"github.com/foxzi/mailseed/internal/journal"
	"github.com/foxzi/mailseed/internal/models"
	"github.com/foxzi/mailseed/internal/store"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Mode selects how a write is made atomic
type Mode string

const (
	// ModeTransaction runs the whole operation in one database transaction
	ModeTransaction Mode = "transaction"
	// ModeSaga inserts chunks concurrently and compensates from the journal on failure
	ModeSaga Mode = "saga"
)

// Options configures a Loader
type Options struct {
	BatchSize         int
	Concurrency       int
	RequestsPerSecond float64
	Mode              Mode
	Self              Identity
	Journal           journal.Journal
}

// DefaultOptions returns default loader options
func DefaultOptions() Options {
	return Options{
		BatchSize:   200,
		Concurrency: 4,
		Mode:        ModeTransaction,
		Self:        Identity{Name: "Me", Email: "me@mailseed.local"},
	}
}

// WriteResult holds per-entity counts of inserted rows
type WriteResult struct {
	SessionID string              `json:"session_id"`
	Counts    models.EntityCounts `json:"counts"`
	Chunks    int                 `json:"chunks"`
	Duration  time.Duration       `json:"duration"`
}

// WipeResult holds per-entity counts of deleted rows
type WipeResult struct {
	SessionID string              `json:"session_id"`
	Deleted   models.EntityCounts `json:"deleted"`
}

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

var errSessionMissing = errors.New("session not found")

// Loader writes and wipes session seed data
type Loader struct {
	db      *store.DB
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger

	// newID is replaceable in tests
	newID func() string
}

// New creates a loader. Zero option fields take their defaults.
func New(db *store.DB, opts Options, logger *slog.Logger) *Loader {
	def := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.Mode == "" {
		opts.Mode = def.Mode
	}
	if opts.Self.Name == "" {
		opts.Self.Name = def.Self.Name
	}
	if opts.Self.Email == "" {
		opts.Self.Email = def.Self.Email
	}
	if opts.Journal == nil {
		opts.Journal = journal.NewMemoryJournal()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Concurrency)
	}

	return &Loader{
		db:      db,
		opts:    opts,
		limiter: limiter,
		logger:  logger.With("component", "loader"),
		newID:   func() string { return uuid.New().String() },
	}
}

// Mode returns the configured execution mode
func (l *Loader) Mode() Mode {
	return l.opts.Mode
}

// Write inserts cfg for the session and marks it seeded. The caller must
// have validated cfg.
func (l *Loader) Write(ctx context.Context, sessionID string, cfg *catalog.SeedConfig) (*WriteResult, error) {
	if l.opts.Mode == ModeSaga {
		return l.writeSaga(ctx, sessionID, cfg)
	}

	var result *WriteResult
	err := l.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = l.write(ctx, tx, sessionID, cfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Wipe deletes every seeded row of the session and clears its seeded flag
func (l *Loader) Wipe(ctx context.Context, sessionID string) (*WipeResult, error) {
	if l.opts.Mode == ModeSaga {
		return l.wipe(ctx, l.db, sessionID)
	}

	var result *WipeResult
	err := l.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = l.wipe(ctx, tx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reset wipes then rewrites the session. In transaction mode both halves
// commit or roll back together.
func (l *Loader) Reset(ctx context.Context, sessionID string, cfg *catalog.SeedConfig) (*WipeResult, *WriteResult, error) {
	if l.opts.Mode == ModeSaga {
		wiped, err := l.wipe(ctx, l.db, sessionID)
		if err != nil {
			return nil, nil, err
		}
		written, err := l.writeSaga(ctx, sessionID, cfg)
		if err != nil {
			return wiped, nil, err
		}
		return wiped, written, nil
	}

	var wiped *WipeResult
	var written *WriteResult
	err := l.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if wiped, err = l.wipe(ctx, tx, sessionID); err != nil {
			return err
		}
		written, err = l.write(ctx, tx, sessionID, cfg)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return wiped, written, nil
}

func (l *Loader) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			l.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// write runs every stage sequentially on ex
func (l *Loader) write(ctx context.Context, ex execer, sessionID string, cfg *catalog.SeedConfig) (*WriteResult, error) {
	start := time.Now()
	wc := l.newWriteContext(sessionID)

	tables, err := plan(wc, cfg, l.opts.Self)
	if err != nil {
		return nil, err
	}

	result := &WriteResult{SessionID: sessionID}
	for _, t := range tables {
		for i, c := range chunks(t, l.opts.BatchSize) {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("write %s interrupted before chunk %d: %w", t.name, i, err)
			}
			if err := l.insertChunk(ctx, ex, t, c, i); err != nil {
				return nil, err
			}
			result.Chunks++
		}
		addCount(&result.Counts, t.name, len(t.rows))
	}

	if err := l.markSeeded(ctx, ex, sessionID, true, wc.now); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	l.logger.Info("session seeded",
		"session_id", sessionID,
		"mode", ModeTransaction,
		"rows", result.Counts.Total(),
		"chunks", result.Chunks,
		"duration", result.Duration,
	)
	return result, nil
}

func (l *Loader) newWriteContext(sessionID string) *writeContext {
	return &writeContext{
		sessionID: sessionID,
		now:       time.Now().UTC(),
		newID:     l.newID,
	}
}

func (l *Loader) markSeeded(ctx context.Context, ex execer, sessionID string, seeded bool, at time.Time) error {
	var seededAt any
	if seeded {
		seededAt = at
	}

	res, err := ex.ExecContext(ctx, l.db.Rebind("UPDATE sessions SET is_seeded = ?, seeded_at = ? WHERE id = ?"),
		seeded, seededAt, sessionID)
	if err != nil {
		return fmt.Errorf("failed to update seeded flag: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to update seeded flag for %s: %w", sessionID, errSessionMissing)
	}
	return nil
}

// addCount adds n rows of table to the matching counter
func addCount(c *models.EntityCounts, table string, n int) {
	switch table {
	case "contacts":
		c.Contacts += n
	case "labels":
		c.Labels += n
	case "threads":
		c.Threads += n
	case "emails":
		c.Emails += n
	case "email_recipients":
		c.Recipients += n
	case "email_labels":
		c.LabelAssignments += n
	case "attachments":
		c.Attachments += n
	case "snooze_queue":
		c.SnoozeEntries += n
	case "signatures":
		c.Signatures += n
	case "filters":
		c.Filters += n
	}
}
