package catalog

import (
	"fmt"
	"slices"
)

// ValidationError describes one referential or structural defect.
// ThreadID is empty for defects outside any thread.
type ValidationError struct {
	ThreadID string `json:"threadId"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

func (e ValidationError) String() string {
	if e.ThreadID == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("thread %s: %s: %s", e.ThreadID, e.Field, e.Message)
}

// Validate checks every cross-reference in cfg and returns all defects
// found. An empty result means the dataset can be written.
func Validate(cfg *SeedConfig) []ValidationError {
	var errs []ValidationError
	add := func(threadID, field, format string, args ...any) {
		errs = append(errs, ValidationError{ThreadID: threadID, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if cfg == nil {
		add("", "config", "dataset is nil")
		return errs
	}

	contacts := make(map[string]struct{}, len(cfg.Contacts))
	for _, c := range cfg.Contacts {
		if c.ID == "" {
			add("", "contacts.id", "contact %q has an empty id", c.Email)
			continue
		}
		if c.ID == SelfID {
			add("", "contacts.id", "contact id %q is reserved", SelfID)
			continue
		}
		if _, dup := contacts[c.ID]; dup {
			add("", "contacts.id", "duplicate contact id %q", c.ID)
			continue
		}
		contacts[c.ID] = struct{}{}
		if c.Kind != KindPerson && c.Kind != KindService {
			add("", "contacts.kind", "contact %q has unknown kind %q", c.ID, c.Kind)
		}
	}

	labels := make(map[string]struct{}, len(cfg.Labels))
	seenLabels := make(map[string]struct{}, len(cfg.Labels))
	for _, l := range cfg.Labels {
		if l.Type != LabelSystem && l.Type != LabelUser {
			add("", "labels.type", "label %q has unknown type %q", l.Name, l.Type)
		}
		key := l.Type + "/" + l.Name
		if _, dup := seenLabels[key]; dup {
			add("", "labels.name", "duplicate %s label %q", l.Type, l.Name)
			continue
		}
		seenLabels[key] = struct{}{}
		labels[l.Name] = struct{}{}
	}

	threads := make(map[string]struct{}, len(cfg.Threads))
	for i := range cfg.Threads {
		t := &cfg.Threads[i]

		if _, dup := threads[t.ID]; dup {
			add(t.ID, "id", "duplicate thread id %q", t.ID)
		}
		threads[t.ID] = struct{}{}

		if !slices.Contains(Categories, t.Category) {
			add(t.ID, "category", "unknown category %q", t.Category)
		}

		if _, ok := contacts[t.ContactID]; !ok {
			add(t.ID, "contactId", "unknown contact %q", t.ContactID)
		}
		for _, cc := range t.CCContactIDs {
			if _, ok := contacts[cc]; !ok {
				add(t.ID, "ccContactIds", "unknown cc contact %q", cc)
			}
		}

		if len(t.Messages) == 0 {
			add(t.ID, "messages", "thread has no messages")
		}
		for j, m := range t.Messages {
			if m.From == SelfID {
				continue
			}
			if _, ok := contacts[m.From]; !ok {
				add(t.ID, fmt.Sprintf("messages[%d].from", j), "unknown sender %q", m.From)
			}
		}

		for _, name := range t.Labels {
			if _, ok := labels[name]; !ok {
				add(t.ID, "labels", "unknown label %q", name)
			}
		}

		if t.Flags != nil && t.Flags.SnoozeHours != nil && *t.Flags.SnoozeHours <= 0 {
			add(t.ID, "flags.snoozeHours", "snooze hours must be positive, got %d", *t.Flags.SnoozeHours)
		}
	}

	return errs
}
