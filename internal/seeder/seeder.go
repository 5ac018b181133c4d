// Package seeder is the entry point for creating, resetting and cleaning
// seeded sessions. Every path validates the dataset before it touches the
// store and serializes work per session.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxzi/mailseed/internal/catalog"
	"github.com/foxzi/mailseed/internal/loader"
	"github.com/foxzi/mailseed/internal/metrics"
	"github.com/foxzi/mailseed/internal/models"
	"github.com/foxzi/mailseed/internal/repository"
	"github.com/foxzi/mailseed/internal/store"
)

// ConfigSource produces the dataset to write
type ConfigSource func() (*catalog.SeedConfig, error)

// Service runs seed operations against one store
type Service struct {
	loader   *loader.Loader
	sessions *repository.SessionRepository
	stats    *repository.StatsRepository
	source   ConfigSource
	ttl      time.Duration
	locks    keyedMutex
	logger   *slog.Logger
}

// Outcome describes what an operation did to a session
type Outcome struct {
	Session *models.Session     `json:"session"`
	Created bool                `json:"created"`
	Written *loader.WriteResult `json:"written,omitempty"`
	Wiped   *loader.WipeResult  `json:"wiped,omitempty"`
}

// CleanOptions selects sessions for removal
type CleanOptions struct {
	DryRun    bool
	OlderThan time.Duration // zero selects by expires_at instead
}

// CleanResult reports a clean run
type CleanResult struct {
	Sessions []models.Session `json:"sessions"`
	Removed  int              `json:"removed"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// New creates a service writing the embedded catalog. ttl is the lifetime
// given to sessions it creates.
func New(db *store.DB, l *loader.Loader, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		loader:   l,
		sessions: repository.NewSessionRepository(db),
		stats:    repository.NewStatsRepository(db),
		source:   catalog.Build,
		ttl:      ttl,
		logger:   logger.With("component", "seeder"),
	}
}

// WithConfigSource replaces the dataset source
func (s *Service) WithConfigSource(src ConfigSource) *Service {
	s.source = src
	return s
}

// Config builds and validates the dataset
func (s *Service) Config() (*catalog.SeedConfig, error) {
	cfg, err := s.source()
	if err != nil {
		return nil, fmt.Errorf("failed to build seed data: %w", err)
	}

	if errs := catalog.Validate(cfg); len(errs) > 0 {
		metrics.AddValidationErrors(len(errs))
		for _, ve := range errs {
			s.logger.Warn("seed data invalid", "thread_id", ve.ThreadID, "field", ve.Field, "error", ve.Message)
		}
		return nil, &ValidationFailedError{Errors: errs}
	}
	return cfg, nil
}

// Generate creates a session, or takes an existing unseeded one, and seeds
// it. An empty sessionID gets a new ID.
func (s *Service) Generate(ctx context.Context, sessionID string) (out *Outcome, err error) {
	defer observe("generate", time.Now(), &err)

	cfg, err := s.Config()
	if err != nil {
		return nil, err
	}

	if sessionID != "" {
		defer s.locks.Lock(sessionID)()
	}

	out = &Outcome{}
	if sessionID != "" {
		out.Session, err = s.sessions.GetByID(ctx, sessionID)
		if err != nil {
			return nil, err
		}
	}

	if out.Session == nil {
		out.Session = &models.Session{ID: sessionID}
		if err := s.sessions.Create(ctx, out.Session, s.ttl); err != nil {
			return nil, err
		}
		out.Created = true
	} else if out.Session.IsSeeded {
		return nil, fmt.Errorf("generate %s: %w", sessionID, ErrAlreadySeeded)
	}

	out.Written, err = s.loader.Write(ctx, out.Session.ID, cfg)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", out.Session.ID, err)
	}

	s.logger.Info("session generated", "session_id", out.Session.ID, "created", out.Created, "rows", out.Written.Counts.Total())
	return s.refresh(ctx, out)
}

// EnsureSeeded is the bootstrap path: it creates the session if missing and
// seeds it unless it already is. A seeded session is left untouched.
func (s *Service) EnsureSeeded(ctx context.Context, sessionID string) (out *Outcome, err error) {
	// observed once, as generate
	if sessionID == "" {
		return s.Generate(ctx, "")
	}

	defer observe("ensure", time.Now(), &err)
	defer s.locks.Lock(sessionID)()

	out = &Outcome{}
	out.Session, err = s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if out.Session != nil && out.Session.IsSeeded {
		return out, nil
	}

	cfg, err := s.Config()
	if err != nil {
		return nil, err
	}

	if out.Session == nil {
		out.Session = &models.Session{ID: sessionID}
		if err := s.sessions.Create(ctx, out.Session, s.ttl); err != nil {
			return nil, err
		}
		out.Created = true
	}

	out.Written, err = s.loader.Write(ctx, sessionID, cfg)
	if err != nil {
		return nil, fmt.Errorf("ensure %s: %w", sessionID, err)
	}

	s.logger.Info("session bootstrapped", "session_id", sessionID, "created", out.Created)
	return s.refresh(ctx, out)
}

// Reset wipes an existing session, writes it again and renews its expiry
func (s *Service) Reset(ctx context.Context, sessionID string) (out *Outcome, err error) {
	defer observe("reset", time.Now(), &err)
	return s.reset(ctx, "reset", sessionID)
}

// Reseed is the administrative reset-to-defaults entry point
func (s *Service) Reseed(ctx context.Context, sessionID string) (out *Outcome, err error) {
	defer observe("reseed", time.Now(), &err)
	return s.reset(ctx, "reseed", sessionID)
}

func (s *Service) reset(ctx context.Context, op, sessionID string) (*Outcome, error) {
	cfg, err := s.Config()
	if err != nil {
		return nil, err
	}

	defer s.locks.Lock(sessionID)()

	out := &Outcome{}
	if out.Session, err = s.require(ctx, sessionID); err != nil {
		return nil, err
	}

	out.Wiped, out.Written, err = s.loader.Reset(ctx, sessionID, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, sessionID, err)
	}

	// A reset session starts a fresh lifetime
	if err := s.sessions.Extend(ctx, sessionID, s.ttl); err != nil {
		return nil, err
	}

	s.logger.Info("session reset", "session_id", sessionID, "operation", op,
		"deleted", out.Wiped.Deleted.Total(), "rows", out.Written.Counts.Total())
	return s.refresh(ctx, out)
}

// Wipe removes a session's seed data and leaves the session unseeded
func (s *Service) Wipe(ctx context.Context, sessionID string) (res *loader.WipeResult, err error) {
	defer observe("wipe", time.Now(), &err)
	defer s.locks.Lock(sessionID)()

	if _, err := s.require(ctx, sessionID); err != nil {
		return nil, err
	}

	res, err = s.loader.Wipe(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("wipe %s: %w", sessionID, err)
	}
	return res, nil
}

// Recover replays a saga journal left by an interrupted write
func (s *Service) Recover(ctx context.Context, sessionID string) (res *loader.WipeResult, err error) {
	defer observe("recover", time.Now(), &err)
	defer s.locks.Lock(sessionID)()

	res, err = s.loader.Recover(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("recover %s: %w", sessionID, err)
	}
	return res, nil
}

// Clean wipes and deletes expired sessions, or only lists them on a dry run
func (s *Service) Clean(ctx context.Context, opts CleanOptions) (res *CleanResult, err error) {
	defer observe("clean", time.Now(), &err)

	filter := models.SessionFilter{}
	now := time.Now()
	if opts.OlderThan > 0 {
		cutoff := now.Add(-opts.OlderThan)
		filter.CreatedBefore = &cutoff
	} else {
		filter.ExpiredAt = &now
	}

	sessions, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	res = &CleanResult{Sessions: sessions}
	if opts.DryRun {
		return res, nil
	}

	for _, sess := range sessions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := s.remove(ctx, sess.ID); err != nil {
			s.logger.Error("failed to clean session", "session_id", sess.ID, "error", err)
			if res.Failed == nil {
				res.Failed = make(map[string]string)
			}
			res.Failed[sess.ID] = err.Error()
			continue
		}
		res.Removed++
		metrics.IncSessionsCleaned()
	}

	s.logger.Info("clean finished", "matched", len(sessions), "removed", res.Removed, "failed", len(res.Failed))
	return res, nil
}

func (s *Service) remove(ctx context.Context, sessionID string) error {
	defer s.locks.Lock(sessionID)()

	if _, err := s.loader.Wipe(ctx, sessionID); err != nil {
		return err
	}
	return s.sessions.Delete(ctx, sessionID)
}

// Stats returns the persisted state of a session
func (s *Service) Stats(ctx context.Context, sessionID string) (*models.SessionStats, error) {
	sess, err := s.require(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	stats, err := s.stats.Collect(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	stats.IsSeeded = sess.IsSeeded
	stats.SeededAt = sess.SeededAt
	return stats, nil
}

// Preview validates the dataset without touching the store
func (s *Service) Preview() (*catalog.Summary, error) {
	cfg, err := s.Config()
	if err != nil {
		return nil, err
	}
	return catalog.Summarize(cfg), nil
}

// SessionStats reports store-wide counts for the metrics collector
func (s *Service) SessionStats(ctx context.Context) (*metrics.SessionStats, error) {
	total, seeded, err := s.sessions.Count(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.loader.PendingSessions(ctx)
	if err != nil {
		return nil, err
	}
	return &metrics.SessionStats{Total: total, Seeded: seeded, JournalPending: int64(len(pending))}, nil
}

func (s *Service) require(ctx context.Context, sessionID string) (*models.Session, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("%s: %w", sessionID, ErrSessionNotFound)
	}
	return sess, nil
}

// refresh reloads the session row so the outcome shows the final flag
func (s *Service) refresh(ctx context.Context, out *Outcome) (*Outcome, error) {
	sess, err := s.sessions.GetByID(ctx, out.Session.ID)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		out.Session = sess
	}
	return out, nil
}

func observe(operation string, start time.Time, err *error) {
	metrics.ObserveOperation(operation, *err, time.Since(start).Seconds())
}

// IsValidation reports whether err is a dataset validation failure
func IsValidation(err error) bool {
	var ve *ValidationFailedError
	return errors.As(err, &ve)
}
