package catalog

// Summary aggregates a dataset without touching a store
type Summary struct {
	Contacts    int            `json:"contacts"`
	Threads     int            `json:"threads"`
	Messages    int            `json:"messages"`
	Labels      int            `json:"labels"`
	Signatures  int            `json:"signatures"`
	Attachments int            `json:"attachments"`
	Categories  map[string]int `json:"categories"`
	ContactKind map[string]int `json:"contact_kinds"`
	Flags       FlagSummary    `json:"flags"`
	LabelUsage  map[string]int `json:"label_usage"`
	Unread      int            `json:"unread"`
}

// FlagSummary counts threads carrying each special flag
type FlagSummary struct {
	Starred   int `json:"starred"`
	Important int `json:"important"`
	Draft     int `json:"draft"`
	Spam      int `json:"spam"`
	Trash     int `json:"trash"`
	Archived  int `json:"archived"`
	Snoozed   int `json:"snoozed"`
}

// Summarize counts a dataset by category, contact kind, flag and label
func Summarize(cfg *SeedConfig) *Summary {
	s := &Summary{
		Contacts:    len(cfg.Contacts),
		Threads:     len(cfg.Threads),
		Labels:      len(cfg.Labels),
		Signatures:  len(cfg.Signatures),
		Categories:  make(map[string]int),
		ContactKind: make(map[string]int),
		LabelUsage:  make(map[string]int),
	}

	for _, c := range cfg.Contacts {
		s.ContactKind[c.Kind]++
	}

	for i := range cfg.Threads {
		t := &cfg.Threads[i]
		s.Categories[t.Category]++
		s.Messages += len(t.Messages)
		for _, m := range t.Messages {
			s.Attachments += len(m.Attachments)
			if !m.IsRead {
				s.Unread++
			}
		}
		for _, name := range t.Labels {
			s.LabelUsage[name]++
		}
		if f := t.Flags; f != nil {
			if f.IsStarred {
				s.Flags.Starred++
			}
			if f.IsImportant {
				s.Flags.Important++
			}
			if f.IsDraft {
				s.Flags.Draft++
			}
			if f.IsSpam {
				s.Flags.Spam++
			}
			if f.IsTrash {
				s.Flags.Trash++
			}
			if f.IsArchived {
				s.Flags.Archived++
			}
			if f.SnoozeHours != nil {
				s.Flags.Snoozed++
			}
		}
	}

	return s
}
