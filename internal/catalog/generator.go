package catalog

import "fmt"

// CategoryConfig is the generator input for one thread category
type CategoryConfig struct {
	Category   string   `yaml:"category"`
	ContactIDs []string `yaml:"contacts"`
	Subjects   []string `yaml:"subjects"`
	Bodies     []string `yaml:"bodies"`
	Count      int      `yaml:"count"`
}

// GeneratorConfig holds everything the generator reads
type GeneratorConfig struct {
	Categories  []CategoryConfig `yaml:"categories"`
	Labels      []string         `yaml:"labels"`
	ReplyBodies []string         `yaml:"reply_bodies"`
}

// Distribution decides the shape of each generated thread from its global
// index. Implementations must be pure so output is reproducible.
type Distribution interface {
	MessageCount(g int) int
	Subject(subjects []string, i int) string
	BaseHoursAgo(g int) float64
	FirstRead(g int) bool
	Starred(g int) bool
	Important(g int) bool
	Label(g int, labels []string) (string, bool)
}

// ModuloDistribution spreads threads with index arithmetic only.
// Message counts follow g mod 20: 60% one, 25% two, 10% three and 5% four
// or five messages. Send times spread over a 30 day window.
type ModuloDistribution struct{}

// MessageCount buckets g mod 20 into 1..5 messages
func (ModuloDistribution) MessageCount(g int) int {
	switch r := g % 20; {
	case r < 12:
		return 1
	case r < 17:
		return 2
	case r < 19:
		return 3
	default:
		// g%20 == 19 is always odd, so alternate on the cycle number
		if (g/20)%2 == 0 {
			return 4
		}
		return 5
	}
}

// Subject picks from the pool and numbers repeats once the pool wraps
func (ModuloDistribution) Subject(subjects []string, i int) string {
	if len(subjects) == 0 {
		return fmt.Sprintf("Message %d", i+1)
	}
	s := subjects[i%len(subjects)]
	if i >= len(subjects) {
		s = fmt.Sprintf("%s #%d", s, i/len(subjects)+1)
	}
	return s
}

// BaseHoursAgo anchors the most recent message of a thread
func (ModuloDistribution) BaseHoursAgo(g int) float64 {
	return float64(1 + (g*37+13)%720)
}

// FirstRead reports whether the opening message is read (~70%)
func (ModuloDistribution) FirstRead(g int) bool { return g%10 >= 3 }

// Starred is true for ~10% of threads
func (ModuloDistribution) Starred(g int) bool { return g%10 == 0 }

// Important is true for ~15% of threads
func (ModuloDistribution) Important(g int) bool { return g%7 == 0 }

// Label attaches one rotating label to every fifth thread
func (ModuloDistribution) Label(g int, labels []string) (string, bool) {
	if len(labels) == 0 || g%5 != 0 {
		return "", false
	}
	return labels[g%len(labels)], true
}

// Generator produces synthetic threads on top of the hand-authored catalog
type Generator struct {
	cfg  GeneratorConfig
	dist Distribution
}

// NewGenerator creates a generator using ModuloDistribution
func NewGenerator(cfg GeneratorConfig) *Generator {
	return &Generator{cfg: cfg, dist: ModuloDistribution{}}
}

// WithDistribution returns a copy of the generator using d
func (g *Generator) WithDistribution(d Distribution) *Generator {
	return &Generator{cfg: g.cfg, dist: d}
}

// Generate returns Count threads per category. baseIndex offsets the
// global index so generated threads continue after existing ones.
func (g *Generator) Generate(baseIndex int) []ThreadTemplate {
	total := 0
	for _, c := range g.cfg.Categories {
		total += c.Count
	}

	threads := make([]ThreadTemplate, 0, total)
	global := baseIndex

	for _, c := range g.cfg.Categories {
		for i := 0; i < c.Count; i++ {
			threads = append(threads, g.thread(c, i, global))
			global++
		}
	}

	return threads
}

func (g *Generator) thread(c CategoryConfig, i, global int) ThreadTemplate {
	contact := ""
	if len(c.ContactIDs) > 0 {
		contact = c.ContactIDs[i%len(c.ContactIDs)]
	}

	count := g.dist.MessageCount(global)
	base := g.dist.BaseHoursAgo(global)

	messages := make([]MessageTemplate, count)
	for j := 0; j < count; j++ {
		m := MessageTemplate{
			// Two hours between messages, the last one at base
			HoursAgo: base + float64(2*(count-1-j)),
			IsRead:   true,
		}
		if j%2 == 0 {
			m.From = contact
			m.BodyHTML = pick(c.Bodies, global+j)
		} else {
			m.From = SelfID
			m.BodyHTML = pick(g.cfg.ReplyBodies, global+j)
		}
		if j == 0 {
			m.IsRead = g.dist.FirstRead(global)
		}
		messages[j] = m
	}

	t := ThreadTemplate{
		ID:        fmt.Sprintf("gen-%s-%03d", c.Category, i),
		Subject:   g.dist.Subject(c.Subjects, i),
		Category:  c.Category,
		ContactID: contact,
		Messages:  messages,
	}

	starred, important := g.dist.Starred(global), g.dist.Important(global)
	if starred || important {
		t.Flags = &ThreadFlags{IsStarred: starred, IsImportant: important}
	}
	if label, ok := g.dist.Label(global, g.cfg.Labels); ok {
		t.Labels = []string{label}
	}

	return t
}

func pick(pool []string, n int) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[n%len(pool)]
}
