package store

import (
	"context"
	"fmt"
)

// Migrate creates the schema. Statements are idempotent and ordered so
// every referenced table exists before the tables pointing at it.
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationSessions,
		migrationContacts,
		migrationLabels,
		migrationThreads,
		migrationEmails,
		migrationEmailRecipients,
		migrationEmailLabels,
		migrationAttachments,
		migrationSnoozeQueue,
		migrationSignatures,
		migrationFilters,
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

const migrationSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    is_seeded BOOLEAN NOT NULL DEFAULT FALSE,
    seeded_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
`

const migrationContacts = `
CREATE TABLE IF NOT EXISTS contacts (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    avatar_url TEXT,
    kind TEXT NOT NULL,
    is_self BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contacts_session ON contacts(session_id);
`

const migrationLabels = `
CREATE TABLE IF NOT EXISTS labels (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    color TEXT,
    position INTEGER NOT NULL DEFAULT 0,
    UNIQUE(session_id, type, name)
);
CREATE INDEX IF NOT EXISTS idx_labels_session ON labels(session_id);
`

const migrationThreads = `
CREATE TABLE IF NOT EXISTS threads (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    subject TEXT NOT NULL,
    category TEXT NOT NULL,
    snippet TEXT,
    message_count INTEGER NOT NULL DEFAULT 0,
    last_message_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_threads_session ON threads(session_id);
`

const migrationEmails = `
CREATE TABLE IF NOT EXISTS emails (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    thread_id TEXT NOT NULL REFERENCES threads(id),
    from_contact_id TEXT NOT NULL REFERENCES contacts(id),
    subject TEXT NOT NULL,
    body_html TEXT,
    body_text TEXT,
    snippet TEXT,
    sent_at TIMESTAMP NOT NULL,
    is_read BOOLEAN NOT NULL DEFAULT FALSE,
    is_starred BOOLEAN NOT NULL DEFAULT FALSE,
    is_important BOOLEAN NOT NULL DEFAULT FALSE,
    is_draft BOOLEAN NOT NULL DEFAULT FALSE,
    is_spam BOOLEAN NOT NULL DEFAULT FALSE,
    is_trash BOOLEAN NOT NULL DEFAULT FALSE,
    is_archived BOOLEAN NOT NULL DEFAULT FALSE,
    snoozed_until TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_emails_session ON emails(session_id);
CREATE INDEX IF NOT EXISTS idx_emails_thread ON emails(thread_id);
`

const migrationEmailRecipients = `
CREATE TABLE IF NOT EXISTS email_recipients (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    email_id TEXT NOT NULL REFERENCES emails(id),
    contact_id TEXT NOT NULL REFERENCES contacts(id),
    type TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_email_recipients_email ON email_recipients(email_id);
`

const migrationEmailLabels = `
CREATE TABLE IF NOT EXISTS email_labels (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    email_id TEXT NOT NULL REFERENCES emails(id),
    label_id TEXT NOT NULL REFERENCES labels(id),
    UNIQUE(email_id, label_id)
);
CREATE INDEX IF NOT EXISTS idx_email_labels_email ON email_labels(email_id);
`

const migrationAttachments = `
CREATE TABLE IF NOT EXISTS attachments (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    email_id TEXT NOT NULL REFERENCES emails(id),
    filename TEXT NOT NULL,
    mime_type TEXT NOT NULL,
    size_bytes INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_attachments_email ON attachments(email_id);
`

const migrationSnoozeQueue = `
CREATE TABLE IF NOT EXISTS snooze_queue (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    email_id TEXT NOT NULL REFERENCES emails(id),
    snooze_until TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snooze_queue_session ON snooze_queue(session_id);
CREATE INDEX IF NOT EXISTS idx_snooze_queue_until ON snooze_queue(snooze_until);
`

const migrationSignatures = `
CREATE TABLE IF NOT EXISTS signatures (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    name TEXT NOT NULL,
    body_html TEXT NOT NULL,
    is_default BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_signatures_session ON signatures(session_id);
`

const migrationFilters = `
CREATE TABLE IF NOT EXISTS filters (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    name TEXT NOT NULL,
    criteria TEXT NOT NULL,
    action TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_filters_session ON filters(session_id);
`
