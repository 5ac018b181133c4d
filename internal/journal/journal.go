// Package journal records which rows a seed write has committed so a
// failed or interrupted write can be compensated later.
package journal

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Entry is one committed chunk of inserted rows
type Entry struct {
	Table      string    `json:"table"`
	IDs        []string  `json:"ids"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Journal stores per-session entries in insertion order
type Journal interface {
	// Record appends an entry for the session
	Record(ctx context.Context, sessionID string, e Entry) error

	// Entries returns the session's entries in the order they were recorded
	Entries(ctx context.Context, sessionID string) ([]Entry, error)

	// Clear drops all entries for the session
	Clear(ctx context.Context, sessionID string) error

	// Sessions returns the IDs of sessions with outstanding entries
	Sessions(ctx context.Context) ([]string, error)

	// Close releases underlying resources
	Close() error
}

// MemoryJournal keeps entries in process memory
type MemoryJournal struct {
	mu      sync.Mutex
	entries map[string][]Entry
}

// NewMemoryJournal creates an empty in-memory journal
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{entries: make(map[string][]Entry)}
}

func (j *MemoryJournal) Record(ctx context.Context, sessionID string, e Entry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	e.IDs = append([]string(nil), e.IDs...)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[sessionID] = append(j.entries[sessionID], e)
	return nil
}

func (j *MemoryJournal) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Entry(nil), j.entries[sessionID]...), nil
}

func (j *MemoryJournal) Clear(ctx context.Context, sessionID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.entries, sessionID)
	return nil
}

func (j *MemoryJournal) Sessions(ctx context.Context) ([]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	ids := make([]string, 0, len(j.entries))
	for id := range j.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (j *MemoryJournal) Close() error {
	return nil
}
