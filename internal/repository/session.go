package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/foxzi/mailseed/internal/models"
	"github.com/foxzi/mailseed/internal/store"
	"github.com/google/uuid"
)

type SessionRepository struct {
	db *store.DB
}

func NewSessionRepository(db *store.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new unseeded session. An empty ID gets a fresh UUID.
func (r *SessionRepository) Create(ctx context.Context, s *models.Session, ttl time.Duration) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.CreatedAt = time.Now().UTC()
	s.ExpiresAt = s.CreatedAt.Add(ttl)
	s.IsSeeded = false
	s.SeededAt = nil

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO sessions (id, is_seeded, created_at, expires_at)
		VALUES (?, ?, ?, ?)`),
		s.ID, s.IsSeeded, s.CreatedAt, s.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID returns a session by ID, or nil when it does not exist
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT id, is_seeded, seeded_at, created_at, expires_at
		FROM sessions WHERE id = ?`), id)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// List returns sessions matching the filter, oldest first
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, error) {
	query := `
		SELECT id, is_seeded, seeded_at, created_at, expires_at
		FROM sessions WHERE 1=1`
	args := []any{}

	if filter.CreatedBefore != nil {
		query += " AND created_at < ?"
		args = append(args, filter.CreatedBefore.UTC())
	}
	if filter.ExpiredAt != nil {
		query += " AND expires_at <= ?"
		args = append(args, filter.ExpiredAt.UTC())
	}

	query += " ORDER BY created_at ASC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// Count returns the number of sessions and how many of them are seeded
func (r *SessionRepository) Count(ctx context.Context) (total, seeded int64, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_seeded THEN 1 ELSE 0 END), 0)
		FROM sessions`).Scan(&total, &seeded)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return total, seeded, nil
}

// Extend pushes the session expiry to now+ttl
func (r *SessionRepository) Extend(ctx context.Context, id string, ttl time.Duration) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("UPDATE sessions SET expires_at = ? WHERE id = ?"),
		time.Now().UTC().Add(ttl), id)
	if err != nil {
		return fmt.Errorf("failed to extend session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

// Delete removes the session row. Seeded rows must be wiped first.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM sessions WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	s := &models.Session{}
	var seededAt sql.NullTime
	if err := row.Scan(&s.ID, &s.IsSeeded, &seededAt, &s.CreatedAt, &s.ExpiresAt); err != nil {
		return nil, err
	}
	if seededAt.Valid {
		t := seededAt.Time
		s.SeededAt = &t
	}
	return s, nil
}
