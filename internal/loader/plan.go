package loader

import (
	"fmt"
	"time"

	"github.com/foxzi/mailseed/internal/catalog"
)

const snippetLength = 140

// table is one insert stage: a target table and its rows in input order
type table struct {
	name    string
	columns []string
	rows    []row
}

// row is one materialized record. ref names the template it came from.
type row struct {
	id   string
	ref  string
	vals []any
}

func (t *table) add(id, ref string, vals ...any) {
	t.rows = append(t.rows, row{id: id, ref: ref, vals: append([]any{id}, vals...)})
}

// Identity describes the session owner's own contact
type Identity struct {
	Name  string
	Email string
}

// writeContext holds per-call state: resolved slug and label ids
type writeContext struct {
	sessionID string
	now       time.Time
	newID     func() string

	contactIDs map[string]string
	labelIDs   map[string]string
}

// plan materializes every row of cfg in dependency order. Ids are assigned
// client side so later stages can reference earlier ones without a round trip.
func plan(wc *writeContext, cfg *catalog.SeedConfig, self Identity) ([]*table, error) {
	wc.contactIDs = make(map[string]string, len(cfg.Contacts)+1)
	wc.labelIDs = make(map[string]string, len(cfg.Labels))

	selfContact := &table{name: "contacts", columns: contactColumns}
	contacts := &table{name: "contacts", columns: contactColumns}
	labels := &table{name: "labels", columns: []string{"id", "session_id", "name", "type", "color", "position"}}
	threads := &table{name: "threads", columns: []string{"id", "session_id", "subject", "category", "snippet", "message_count", "last_message_at", "created_at"}}
	emails := &table{name: "emails", columns: []string{
		"id", "session_id", "thread_id", "from_contact_id", "subject", "body_html", "body_text", "snippet", "sent_at",
		"is_read", "is_starred", "is_important", "is_draft", "is_spam", "is_trash", "is_archived", "snoozed_until",
	}}
	recipients := &table{name: "email_recipients", columns: []string{"id", "session_id", "email_id", "contact_id", "type"}}
	emailLabels := &table{name: "email_labels", columns: []string{"id", "session_id", "email_id", "label_id"}}
	attachments := &table{name: "attachments", columns: []string{"id", "session_id", "email_id", "filename", "mime_type", "size_bytes"}}
	snoozes := &table{name: "snooze_queue", columns: []string{"id", "session_id", "email_id", "snooze_until", "created_at"}}
	signatures := &table{name: "signatures", columns: []string{"id", "session_id", "name", "body_html", "is_default"}}

	// The owner's contact comes first; everything else may point at it.
	selfID := wc.newID()
	wc.contactIDs[catalog.SelfID] = selfID
	selfContact.add(selfID, catalog.SelfID, wc.sessionID, self.Name, self.Email, nil, catalog.KindPerson, true, wc.now)

	for _, c := range cfg.Contacts {
		id := wc.newID()
		wc.contactIDs[c.ID] = id
		contacts.add(id, c.ID, wc.sessionID, c.Name, c.Email, nullString(c.AvatarURL), c.Kind, false, wc.now)
	}

	// System labels first, then user labels. A user label shadows a system
	// label of the same name when threads refer to it.
	for _, typ := range []string{catalog.LabelSystem, catalog.LabelUser} {
		for _, l := range cfg.Labels {
			if l.Type != typ {
				continue
			}
			id := wc.newID()
			wc.labelIDs[l.Name] = id
			labels.add(id, l.Type+":"+l.Name, wc.sessionID, l.Name, l.Type, nullString(l.Color), l.Position)
		}
	}

	for i := range cfg.Threads {
		t := &cfg.Threads[i]
		last := t.LastMessage()
		if last == nil {
			return nil, fmt.Errorf("thread %s has no messages", t.ID)
		}

		primaryID, err := wc.contact(t.ContactID, t.ID, "contactId")
		if err != nil {
			return nil, err
		}
		ccIDs := make([]string, 0, len(t.CCContactIDs))
		for _, cc := range t.CCContactIDs {
			id, err := wc.contact(cc, t.ID, "ccContactIds")
			if err != nil {
				return nil, err
			}
			ccIDs = append(ccIDs, id)
		}

		threadID := wc.newID()
		firstAt := wc.at(t.Messages[0].HoursAgo)
		lastAt := wc.at(last.HoursAgo)
		threads.add(threadID, t.ID, wc.sessionID, t.Subject, t.Category,
			catalog.Snippet(last.BodyText, snippetLength), len(t.Messages), lastAt, firstAt)

		flags := t.Flags
		if flags == nil {
			flags = &catalog.ThreadFlags{}
		}

		for j := range t.Messages {
			m := &t.Messages[j]
			isLast := j == len(t.Messages)-1

			fromID, err := wc.contact(m.From, t.ID, fmt.Sprintf("messages[%d].from", j))
			if err != nil {
				return nil, err
			}

			subject := t.Subject
			if j > 0 {
				subject = "Re: " + t.Subject
			}

			var starred, important, draft, spam, trash, archived bool
			var snoozedUntil any
			if isLast {
				starred, important, draft = flags.IsStarred, flags.IsImportant, flags.IsDraft
				spam, trash, archived = flags.IsSpam, flags.IsTrash, flags.IsArchived
				if flags.SnoozeHours != nil {
					snoozedUntil = wc.now.Add(time.Duration(*flags.SnoozeHours) * time.Hour)
				}
			}

			emailID := wc.newID()
			ref := fmt.Sprintf("%s#%d", t.ID, j)
			emails.add(emailID, ref, wc.sessionID, threadID, fromID, subject, m.BodyHTML, m.BodyText,
				catalog.Snippet(m.BodyText, snippetLength), wc.at(m.HoursAgo),
				m.IsRead, starred, important, draft, spam, trash, archived, snoozedUntil)

			// From self: addressed to the thread's contact. Otherwise: to the owner.
			to := selfID
			if m.From == catalog.SelfID {
				to = primaryID
			}
			recipients.add(wc.newID(), ref, wc.sessionID, emailID, to, "to")
			for _, ccID := range ccIDs {
				if ccID == fromID {
					continue
				}
				recipients.add(wc.newID(), ref, wc.sessionID, emailID, ccID, "cc")
			}

			for _, a := range m.Attachments {
				attachments.add(wc.newID(), ref, wc.sessionID, emailID, a.Filename, a.MimeType, a.SizeBytes)
			}

			if !isLast {
				continue
			}

			seen := make(map[string]bool, len(t.Labels))
			for _, name := range t.Labels {
				labelID, ok := wc.labelIDs[name]
				if !ok {
					return nil, fmt.Errorf("thread %s: labels: unknown label %q", t.ID, name)
				}
				if seen[labelID] {
					continue
				}
				seen[labelID] = true
				emailLabels.add(wc.newID(), ref, wc.sessionID, emailID, labelID)
			}

			if snoozedUntil != nil {
				snoozes.add(wc.newID(), ref, wc.sessionID, emailID, snoozedUntil, wc.now)
			}
		}
	}

	for _, s := range cfg.Signatures {
		signatures.add(wc.newID(), s.Name, wc.sessionID, s.Name, s.BodyHTML, s.IsDefault)
	}

	return []*table{
		selfContact, contacts, labels, threads, emails,
		recipients, emailLabels, attachments, snoozes, signatures,
	}, nil
}

var contactColumns = []string{"id", "session_id", "name", "email", "avatar_url", "kind", "is_self", "created_at"}

func (wc *writeContext) contact(slug, threadID, field string) (string, error) {
	id, ok := wc.contactIDs[slug]
	if !ok {
		return "", fmt.Errorf("thread %s: %s: unresolved contact %q", threadID, field, slug)
	}
	return id, nil
}

// at converts an hours-ago offset into an absolute time
func (wc *writeContext) at(hoursAgo float64) time.Time {
	return wc.now.Add(-time.Duration(hoursAgo * float64(time.Hour)))
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
