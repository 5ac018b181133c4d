package catalog

// SelfID is the sender/recipient slug that refers to the session owner.
// It is never declared as a contact template.
const SelfID = "self"

// Thread categories
const (
	CategoryPrimary    = "primary"
	CategorySocial     = "social"
	CategoryPromotions = "promotions"
	CategoryUpdates    = "updates"
	CategoryForums     = "forums"
)

// Categories lists the valid thread categories in display order
var Categories = []string{
	CategoryPrimary,
	CategorySocial,
	CategoryPromotions,
	CategoryUpdates,
	CategoryForums,
}

// Contact kinds
const (
	KindPerson  = "person"
	KindService = "service"
)

// Label types
const (
	LabelSystem = "system"
	LabelUser   = "user"
)

// ContactTemplate describes a contact before it has a store id
type ContactTemplate struct {
	ID        string `yaml:"id" json:"id"`
	Name      string `yaml:"name" json:"name"`
	Email     string `yaml:"email" json:"email"`
	AvatarURL string `yaml:"avatar_url,omitempty" json:"avatarUrl,omitempty"`
	Kind      string `yaml:"kind" json:"kind"`
}

// AttachmentTemplate describes a file attached to a message
type AttachmentTemplate struct {
	Filename  string `yaml:"filename" json:"filename"`
	MimeType  string `yaml:"mime_type" json:"mimeType"`
	SizeBytes int64  `yaml:"size_bytes" json:"sizeBytes"`
}

// MessageTemplate is a single message of a thread. From is a contact slug
// or SelfID. HoursAgo is relative to the moment the dataset is written.
type MessageTemplate struct {
	From        string               `yaml:"from" json:"from"`
	BodyHTML    string               `yaml:"body_html" json:"bodyHtml"`
	BodyText    string               `yaml:"body_text,omitempty" json:"bodyText,omitempty"`
	HoursAgo    float64              `yaml:"hours_ago" json:"hoursAgo"`
	IsRead      bool                 `yaml:"is_read" json:"isRead"`
	Attachments []AttachmentTemplate `yaml:"attachments,omitempty" json:"attachments,omitempty"`
}

// ThreadFlags apply to the last message of a thread only
type ThreadFlags struct {
	IsStarred   bool `yaml:"starred,omitempty" json:"isStarred,omitempty"`
	IsImportant bool `yaml:"important,omitempty" json:"isImportant,omitempty"`
	IsDraft     bool `yaml:"draft,omitempty" json:"isDraft,omitempty"`
	IsSpam      bool `yaml:"spam,omitempty" json:"isSpam,omitempty"`
	IsTrash     bool `yaml:"trash,omitempty" json:"isTrash,omitempty"`
	IsArchived  bool `yaml:"archived,omitempty" json:"isArchived,omitempty"`
	SnoozeHours *int `yaml:"snooze_hours,omitempty" json:"snoozeHours,omitempty"`
}

// ThreadTemplate is a conversation with at least one message
type ThreadTemplate struct {
	ID           string            `yaml:"id" json:"id"`
	Subject      string            `yaml:"subject" json:"subject"`
	Category     string            `yaml:"category" json:"category"`
	ContactID    string            `yaml:"contact" json:"contactId"`
	CCContactIDs []string          `yaml:"cc,omitempty" json:"ccContactIds,omitempty"`
	Messages     []MessageTemplate `yaml:"messages" json:"messages"`
	Flags        *ThreadFlags      `yaml:"flags,omitempty" json:"flags,omitempty"`
	Labels       []string          `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// LastMessage returns the most recent message (array order), or nil
func (t *ThreadTemplate) LastMessage() *MessageTemplate {
	if len(t.Messages) == 0 {
		return nil
	}
	return &t.Messages[len(t.Messages)-1]
}

// LabelTemplate is a label definition. Name is the key threads refer to.
type LabelTemplate struct {
	Name     string `yaml:"name" json:"name"`
	Type     string `yaml:"type" json:"type"`
	Color    string `yaml:"color,omitempty" json:"color,omitempty"`
	Position int    `yaml:"position" json:"position"`
}

// SignatureTemplate is a mail signature
type SignatureTemplate struct {
	Name      string `yaml:"name" json:"name"`
	BodyHTML  string `yaml:"body_html" json:"bodyHtml"`
	IsDefault bool   `yaml:"is_default" json:"isDefault"`
}

// SeedConfig is everything created for one session
type SeedConfig struct {
	Contacts   []ContactTemplate   `yaml:"contacts" json:"contacts"`
	Threads    []ThreadTemplate    `yaml:"threads" json:"threads"`
	Labels     []LabelTemplate     `yaml:"labels" json:"labels"`
	Signatures []SignatureTemplate `yaml:"signatures" json:"signatures"`
}

// MessageCount returns the total number of messages across all threads
func (c *SeedConfig) MessageCount() int {
	n := 0
	for i := range c.Threads {
		n += len(c.Threads[i].Messages)
	}
	return n
}
