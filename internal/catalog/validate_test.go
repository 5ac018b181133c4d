package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallConfig is a consistent dataset the tests break one reference at a time
func smallConfig() *SeedConfig {
	return &SeedConfig{
		Contacts: []ContactTemplate{
			{ID: "alice", Name: "Alice", Email: "alice@example.com", Kind: KindPerson},
			{ID: "bob", Name: "Bob", Email: "bob@example.com", Kind: KindPerson},
			{ID: "news", Name: "News", Email: "news@example.com", Kind: KindService},
		},
		Labels: []LabelTemplate{
			{Name: "Inbox", Type: LabelSystem, Position: 0},
			{Name: "Work", Type: LabelUser, Position: 0},
		},
		Threads: []ThreadTemplate{
			{
				ID:           "a",
				Subject:      "Thread A",
				Category:     CategoryPrimary,
				ContactID:    "bob",
				CCContactIDs: []string{"alice"},
				Labels:       []string{"Work"},
				Messages: []MessageTemplate{
					{From: "bob", BodyHTML: "<p>hi</p>", HoursAgo: 5},
					{From: SelfID, BodyHTML: "<p>hello</p>", HoursAgo: 3, IsRead: true},
				},
			},
			{
				ID:        "b",
				Subject:   "Thread B",
				Category:  CategoryUpdates,
				ContactID: "news",
				Messages:  []MessageTemplate{{From: "news", BodyHTML: "<p>digest</p>", HoursAgo: 1}},
			},
		},
		Signatures: []SignatureTemplate{{Name: "Default", BodyHTML: "<p>-- me</p>", IsDefault: true}},
	}
}

func TestValidate_Clean(t *testing.T) {
	assert.Empty(t, Validate(smallConfig()))
}

func TestValidate_Nil(t *testing.T) {
	errs := Validate(nil)
	require.Len(t, errs, 1)
	assert.Equal(t, "config", errs[0].Field)
}

func TestValidate_SingleDefect(t *testing.T) {
	snooze := -2

	tests := []struct {
		name     string
		mutate   func(c *SeedConfig)
		threadID string
		field    string
		mention  string
	}{
		{
			name:     "dangling primary contact",
			mutate:   func(c *SeedConfig) { c.Threads[1].ContactID = "carol" },
			threadID: "b",
			field:    "contactId",
			mention:  "carol",
		},
		{
			name:     "dangling cc",
			mutate:   func(c *SeedConfig) { c.Threads[0].CCContactIDs = append(c.Threads[0].CCContactIDs, "zed") },
			threadID: "a",
			field:    "ccContactIds",
			mention:  "zed",
		},
		{
			name:     "dangling sender",
			mutate:   func(c *SeedConfig) { c.Threads[0].Messages[1].From = "mallory" },
			threadID: "a",
			field:    "messages[1].from",
			mention:  "mallory",
		},
		{
			name:     "unknown label",
			mutate:   func(c *SeedConfig) { c.Threads[1].Labels = []string{"Taxes"} },
			threadID: "b",
			field:    "labels",
			mention:  "Taxes",
		},
		{
			name:     "empty thread",
			mutate:   func(c *SeedConfig) { c.Threads[1].Messages = nil },
			threadID: "b",
			field:    "messages",
			mention:  "no messages",
		},
		{
			name: "duplicate contact id",
			mutate: func(c *SeedConfig) {
				c.Contacts = append(c.Contacts, ContactTemplate{ID: "alice", Name: "Other Alice", Email: "a2@example.com", Kind: KindPerson})
			},
			threadID: "",
			field:    "contacts.id",
			mention:  "alice",
		},
		{
			name: "duplicate thread id",
			mutate: func(c *SeedConfig) {
				dup := c.Threads[1]
				c.Threads = append(c.Threads, dup)
			},
			threadID: "b",
			field:    "id",
			mention:  "b",
		},
		{
			name:     "unknown category",
			mutate:   func(c *SeedConfig) { c.Threads[0].Category = "misc" },
			threadID: "a",
			field:    "category",
			mention:  "misc",
		},
		{
			name: "duplicate label in namespace",
			mutate: func(c *SeedConfig) {
				c.Labels = append(c.Labels, LabelTemplate{Name: "Work", Type: LabelUser, Position: 1})
			},
			field:   "labels.name",
			mention: "Work",
		},
		{
			name:     "non-positive snooze",
			mutate:   func(c *SeedConfig) { c.Threads[1].Flags = &ThreadFlags{SnoozeHours: &snooze} },
			threadID: "b",
			field:    "flags.snoozeHours",
			mention:  "-2",
		},
		{
			name:    "reserved self id",
			mutate:  func(c *SeedConfig) { c.Contacts[2].ID = SelfID; c.Threads[1].ContactID = "alice"; c.Threads[1].Messages[0].From = "alice" },
			field:   "contacts.id",
			mention: "reserved",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallConfig()
			tt.mutate(cfg)

			errs := Validate(cfg)
			require.Len(t, errs, 1, "errors: %v", errs)
			assert.Equal(t, tt.threadID, errs[0].ThreadID)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.Contains(t, errs[0].Message, tt.mention)
		})
	}
}

func TestValidate_SameLabelNameAcrossTypes(t *testing.T) {
	cfg := smallConfig()
	cfg.Labels = append(cfg.Labels, LabelTemplate{Name: "Work", Type: LabelSystem, Position: 9})
	assert.Empty(t, Validate(cfg))
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := smallConfig()
	cfg.Threads[0].ContactID = "x"
	cfg.Threads[0].Messages[0].From = "y"
	cfg.Threads[1].Labels = []string{"z"}
	cfg.Threads[1].Messages = append(cfg.Threads[1].Messages, MessageTemplate{From: "w"})

	errs := Validate(cfg)
	require.Len(t, errs, 4)

	fields := make([]string, len(errs))
	for i, e := range errs {
		fields[i] = e.Field
	}
	assert.ElementsMatch(t, []string{"contactId", "messages[0].from", "messages[1].from", "labels"}, fields)
}

// Three contacts, one label, thread A fine, thread B pointing at an
// undeclared contact.
func TestValidate_CarolScenario(t *testing.T) {
	cfg := &SeedConfig{
		Contacts: []ContactTemplate{
			{ID: "alice", Name: "Alice", Email: "alice@example.com", Kind: KindPerson},
			{ID: "bob", Name: "Bob", Email: "bob@example.com", Kind: KindPerson},
			{ID: "dave", Name: "Dave", Email: "dave@example.com", Kind: KindPerson},
		},
		Labels: []LabelTemplate{{Name: "Work", Type: LabelUser}},
		Threads: []ThreadTemplate{
			{ID: "A", Subject: "A", Category: CategoryPrimary, ContactID: "bob", Labels: []string{"Work"},
				Messages: []MessageTemplate{{From: "bob", BodyHTML: "hi"}}},
			{ID: "B", Subject: "B", Category: CategoryPrimary, ContactID: "carol",
				Messages: []MessageTemplate{{From: SelfID, BodyHTML: "hi"}}},
		},
	}

	errs := Validate(cfg)
	require.Len(t, errs, 1)
	assert.Equal(t, "B", errs[0].ThreadID)
	assert.Equal(t, "contactId", errs[0].Field)
	assert.Contains(t, errs[0].Message, "carol")

	cfg.Threads[1].ContactID = "alice"
	assert.Empty(t, Validate(cfg))
}

func TestValidationError_String(t *testing.T) {
	assert.Equal(t, "contacts.id: duplicate", ValidationError{Field: "contacts.id", Message: "duplicate"}.String())
	assert.Equal(t, "thread t1: labels: unknown", ValidationError{ThreadID: "t1", Field: "labels", Message: "unknown"}.String())
}
