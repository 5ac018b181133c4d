// Package catalog holds the seed dataset: template types, the embedded
// hand-authored catalog, the distribution generator that expands it, and
// the validator that gates every write.
package catalog

import (
	_ "embed"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Catalog is the hand-authored dataset plus the generator inputs
type Catalog struct {
	Contacts   []ContactTemplate   `yaml:"contacts"`
	Labels     []LabelTemplate     `yaml:"labels"`
	Signatures []SignatureTemplate `yaml:"signatures"`
	Threads    []ThreadTemplate    `yaml:"threads"`
	Generated  GeneratorConfig     `yaml:"generated"`
}

var (
	textPolicy = bluemonday.StrictPolicy()
	htmlPolicy = bluemonday.UGCPolicy()
)

// Load decodes the embedded catalog
func Load() (*Catalog, error) {
	return Parse(catalogYAML)
}

// Parse decodes a catalog document
func Parse(data []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return c, nil
}

// Build assembles the embedded catalog and its generated threads into one
// SeedConfig. The result is identical on every call.
func Build() (*SeedConfig, error) {
	c, err := Load()
	if err != nil {
		return nil, err
	}
	return c.Assemble(), nil
}

// Assemble merges hand-authored threads with generated ones. Generated
// thread indexes continue after the hand-authored threads.
func (c *Catalog) Assemble() *SeedConfig {
	gen := NewGenerator(c.Generated)
	generated := gen.Generate(len(c.Threads))

	cfg := &SeedConfig{
		Contacts:   append([]ContactTemplate(nil), c.Contacts...),
		Labels:     append([]LabelTemplate(nil), c.Labels...),
		Signatures: make([]SignatureTemplate, 0, len(c.Signatures)),
		Threads:    make([]ThreadTemplate, 0, len(c.Threads)+len(generated)),
	}

	for _, s := range c.Signatures {
		s.BodyHTML = SanitizeHTML(s.BodyHTML)
		cfg.Signatures = append(cfg.Signatures, s)
	}

	for _, t := range c.Threads {
		cfg.Threads = append(cfg.Threads, normalizeThread(t))
	}
	for _, t := range generated {
		cfg.Threads = append(cfg.Threads, normalizeThread(t))
	}

	return cfg
}

func normalizeThread(t ThreadTemplate) ThreadTemplate {
	msgs := make([]MessageTemplate, len(t.Messages))
	for i, m := range t.Messages {
		m.BodyHTML = SanitizeHTML(m.BodyHTML)
		if m.BodyText == "" {
			m.BodyText = PlainText(m.BodyHTML)
		}
		msgs[i] = m
	}
	t.Messages = msgs
	return t
}

// SanitizeHTML drops markup that a mail client would refuse to render
func SanitizeHTML(s string) string {
	return htmlPolicy.Sanitize(s)
}

// PlainText strips all markup and collapses whitespace
func PlainText(s string) string {
	// Keep block boundaries as spaces before the strict policy removes tags
	s = strings.NewReplacer("</p>", "</p> ", "<br>", " ", "<br/>", " ", "</h1>", "</h1> ", "</h2>", "</h2> ").Replace(s)
	text := html.UnescapeString(textPolicy.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}

// Snippet returns at most n runes of the plain text body
func Snippet(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
