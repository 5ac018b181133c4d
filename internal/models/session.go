package models

import "time"

// Session is one isolated mailbox whose seed data is written and wiped as a unit
type Session struct {
	ID        string     `json:"id"`
	IsSeeded  bool       `json:"is_seeded"`
	SeededAt  *time.Time `json:"seeded_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Expired reports whether the session is past its lifetime
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// EntityCounts holds per-entity row counts for a session
type EntityCounts struct {
	Contacts         int `json:"contacts"`
	Threads          int `json:"threads"`
	Emails           int `json:"emails"`
	Labels           int `json:"labels"`
	Attachments      int `json:"attachments"`
	SnoozeEntries    int `json:"snooze_entries"`
	Signatures       int `json:"signatures"`
	Recipients       int `json:"recipients"`
	LabelAssignments int `json:"label_assignments"`
	Filters          int `json:"filters"`
}

// Total returns the sum of all counts
func (c EntityCounts) Total() int {
	return c.Contacts + c.Threads + c.Emails + c.Labels + c.Attachments +
		c.SnoozeEntries + c.Signatures + c.Recipients + c.LabelAssignments + c.Filters
}

// Add accumulates other into c
func (c *EntityCounts) Add(other EntityCounts) {
	c.Contacts += other.Contacts
	c.Threads += other.Threads
	c.Emails += other.Emails
	c.Labels += other.Labels
	c.Attachments += other.Attachments
	c.SnoozeEntries += other.SnoozeEntries
	c.Signatures += other.Signatures
	c.Recipients += other.Recipients
	c.LabelAssignments += other.LabelAssignments
	c.Filters += other.Filters
}

// FlagCounts holds how many emails carry each mailbox flag
type FlagCounts struct {
	Unread    int `json:"unread"`
	Starred   int `json:"starred"`
	Important int `json:"important"`
	Draft     int `json:"draft"`
	Spam      int `json:"spam"`
	Trash     int `json:"trash"`
	Archived  int `json:"archived"`
	Snoozed   int `json:"snoozed"`
}

// SessionStats is the persisted state of a session
type SessionStats struct {
	SessionID  string         `json:"session_id"`
	IsSeeded   bool           `json:"is_seeded"`
	SeededAt   *time.Time     `json:"seeded_at,omitempty"`
	Counts     EntityCounts   `json:"counts"`
	Categories map[string]int `json:"categories"`
	Flags      FlagCounts     `json:"flags"`
}

// SessionFilter for listing sessions
type SessionFilter struct {
	CreatedBefore *time.Time
	ExpiredAt     *time.Time
	Limit         int
}
