package loader

import (
	"fmt"
	"testing"
	"time"

	"github.com/foxzi/mailseed/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%03d", n)
	}
}

func planConfig() *catalog.SeedConfig {
	snooze := 6
	return &catalog.SeedConfig{
		Contacts: []catalog.ContactTemplate{
			{ID: "alice", Name: "Alice", Email: "alice@example.com", Kind: catalog.KindPerson},
			{ID: "bob", Name: "Bob", Email: "bob@example.com", Kind: catalog.KindPerson, AvatarURL: "https://example.com/bob.png"},
		},
		Labels: []catalog.LabelTemplate{
			{Name: "Work", Type: catalog.LabelUser, Position: 0},
			{Name: "Work", Type: catalog.LabelSystem, Position: 3},
			{Name: "Inbox", Type: catalog.LabelSystem, Position: 0},
		},
		Threads: []catalog.ThreadTemplate{
			{
				ID:           "t1",
				Subject:      "Plan",
				Category:     catalog.CategoryPrimary,
				ContactID:    "bob",
				CCContactIDs: []string{"alice"},
				Labels:       []string{"Work", "Work", "Inbox"},
				Flags:        &catalog.ThreadFlags{IsStarred: true, SnoozeHours: &snooze},
				Messages: []catalog.MessageTemplate{
					{From: "bob", BodyText: "first", HoursAgo: 10, Attachments: []catalog.AttachmentTemplate{{Filename: "a.pdf", MimeType: "application/pdf", SizeBytes: 10}}},
					{From: catalog.SelfID, BodyText: "second", HoursAgo: 8, IsRead: true},
					{From: "alice", BodyText: "third", HoursAgo: 6},
				},
			},
		},
		Signatures: []catalog.SignatureTemplate{{Name: "Default", BodyHTML: "<p>me</p>", IsDefault: true}},
	}
}

func tableByName(tables []*table, name string, nth int) *table {
	for _, t := range tables {
		if t.name == name {
			if nth == 0 {
				return t
			}
			nth--
		}
	}
	return nil
}

func col(t *table, r row, name string) any {
	for i, c := range t.columns {
		if c == name {
			return r.vals[i]
		}
	}
	panic("no column " + name)
}

func TestPlan_Order(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	wc := &writeContext{sessionID: "s1", now: now, newID: sequentialIDs()}

	tables, err := plan(wc, planConfig(), Identity{Name: "Me", Email: "me@example.com"})
	require.NoError(t, err)

	names := make([]string, len(tables))
	for i, tb := range tables {
		names[i] = tb.name
	}
	assert.Equal(t, []string{
		"contacts", "contacts", "labels", "threads", "emails",
		"email_recipients", "email_labels", "attachments", "snooze_queue", "signatures",
	}, names)

	// every row carries as many values as its table has columns
	for _, tb := range tables {
		for _, r := range tb.rows {
			assert.Len(t, r.vals, len(tb.columns), "table %s row %s", tb.name, r.ref)
		}
	}

	self := tables[0].rows[0]
	assert.Equal(t, "id-001", self.id)
	assert.Equal(t, true, col(tables[0], self, "is_self"))
	assert.Equal(t, "id-001", wc.contactIDs[catalog.SelfID])
}

func TestPlan_LabelsSystemFirstUserWins(t *testing.T) {
	wc := &writeContext{sessionID: "s1", now: time.Now().UTC(), newID: sequentialIDs()}
	tables, err := plan(wc, planConfig(), Identity{Name: "Me", Email: "me@example.com"})
	require.NoError(t, err)

	labels := tableByName(tables, "labels", 0)
	require.Len(t, labels.rows, 3)
	assert.Equal(t, "system", col(labels, labels.rows[0], "type"))
	assert.Equal(t, "system", col(labels, labels.rows[1], "type"))
	assert.Equal(t, "user", col(labels, labels.rows[2], "type"))

	userWork := labels.rows[2].id
	assert.Equal(t, userWork, wc.labelIDs["Work"])

	// duplicate label names on a thread collapse to one assignment
	assigned := tableByName(tables, "email_labels", 0)
	require.Len(t, assigned.rows, 2)
	assert.Equal(t, userWork, col(assigned, assigned.rows[0], "label_id"))
}

func TestPlan_RecipientsAndLastMessageFlags(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	wc := &writeContext{sessionID: "s1", now: now, newID: sequentialIDs()}
	tables, err := plan(wc, planConfig(), Identity{Name: "Me", Email: "me@example.com"})
	require.NoError(t, err)

	self, alice, bob := wc.contactIDs[catalog.SelfID], wc.contactIDs["alice"], wc.contactIDs["bob"]

	emails := tableByName(tables, "emails", 0)
	require.Len(t, emails.rows, 3)

	recipients := tableByName(tables, "email_recipients", 0)
	byEmail := map[string][]string{}
	for _, r := range recipients.rows {
		email := col(recipients, r, "email_id").(string)
		byEmail[email] = append(byEmail[email], fmt.Sprintf("%s:%s", col(recipients, r, "type"), col(recipients, r, "contact_id")))
	}

	// bob -> self, alice cc
	assert.Equal(t, []string{"to:" + self, "cc:" + alice}, byEmail[emails.rows[0].id])
	// self -> bob, alice cc
	assert.Equal(t, []string{"to:" + bob, "cc:" + alice}, byEmail[emails.rows[1].id])
	// alice -> self, alice not copied on her own message
	assert.Equal(t, []string{"to:" + self}, byEmail[emails.rows[2].id])

	assert.Equal(t, "Plan", col(emails, emails.rows[0], "subject"))
	assert.Equal(t, "Re: Plan", col(emails, emails.rows[1], "subject"))

	for i, r := range emails.rows {
		last := i == 2
		assert.Equal(t, last, col(emails, r, "is_starred"), "message %d starred", i)
		if last {
			assert.Equal(t, now.Add(6*time.Hour), col(emails, r, "snoozed_until"))
		} else {
			assert.Nil(t, col(emails, r, "snoozed_until"))
		}
	}
	assert.Equal(t, now.Add(-10*time.Hour), col(emails, emails.rows[0], "sent_at"))

	snoozes := tableByName(tables, "snooze_queue", 0)
	require.Len(t, snoozes.rows, 1)
	assert.Equal(t, emails.rows[2].id, col(snoozes, snoozes.rows[0], "email_id"))

	threads := tableByName(tables, "threads", 0)
	assert.Equal(t, 3, col(threads, threads.rows[0], "message_count"))
	assert.Equal(t, now.Add(-6*time.Hour), col(threads, threads.rows[0], "last_message_at"))
	assert.Equal(t, "third", col(threads, threads.rows[0], "snippet"))

	attachments := tableByName(tables, "attachments", 0)
	require.Len(t, attachments.rows, 1)
	assert.Equal(t, emails.rows[0].id, col(attachments, attachments.rows[0], "email_id"))

	contacts := tableByName(tables, "contacts", 1)
	assert.Nil(t, col(contacts, contacts.rows[0], "avatar_url"))
	assert.Equal(t, "https://example.com/bob.png", col(contacts, contacts.rows[1], "avatar_url"))
}

func TestPlan_UnresolvedReference(t *testing.T) {
	cfg := planConfig()
	cfg.Threads[0].Messages[2].From = "carol"

	wc := &writeContext{sessionID: "s1", now: time.Now().UTC(), newID: sequentialIDs()}
	_, err := plan(wc, cfg, Identity{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carol")
	assert.Contains(t, err.Error(), "messages[2].from")
}

func TestChunks(t *testing.T) {
	tb := &table{name: "x"}
	for i := 0; i < 11; i++ {
		tb.add(fmt.Sprint(i), fmt.Sprint(i))
	}

	cs := chunks(tb, 4)
	require.Len(t, cs, 3)
	assert.Equal(t, 0, cs[0].offset)
	assert.Equal(t, 8, cs[2].offset)
	assert.Len(t, cs[2].rows, 3)
	assert.Equal(t, []string{"8", "9", "10"}, cs[2].ids())

	assert.Empty(t, chunks(&table{}, 4))
}
