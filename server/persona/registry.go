// Package persona holds the static character registry: prompt templates,
// canned fallback replies, routing keywords and mention handles.
package persona

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed personas.yaml
var builtin []byte

// Character is one persona. It is immutable after the registry is loaded.
type Character struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Emoji    string   `yaml:"emoji" json:"emoji"`
	Prompt   string   `yaml:"prompt" json:"-"`
	Fallback []string `yaml:"fallback" json:"-"`

	// Routable characters take part in keyword scoring and LLM classification.
	// Non-routable ones can still be mentioned.
	Routable bool     `yaml:"routable" json:"routable"`
	Mentions []string `yaml:"mentions" json:"mentions,omitempty"`
	Keywords []string `yaml:"keywords" json:"-"`

	KeywordReason string `yaml:"keyword_reason" json:"-"`
	DefaultReason string `yaml:"default_reason" json:"-"`

	// Used to describe the character to the LLM router.
	Role       string `yaml:"role" json:"role,omitempty"`
	Expertise  string `yaml:"expertise" json:"-"`
	Situations string `yaml:"situations" json:"-"`
}

// Store is the read side of the registry.
type Store interface {
	List() []Character
	FindByID(id string) (Character, bool)
}

// Profile is what the client tells us about the user.
type Profile struct {
	Nickname string `json:"nickname"`
	AIInfo   string `json:"aiInfo"`
	Locale   string `json:"locale"`
}

// withDefaults fills blanks with the placeholders used in prompts.
func (p Profile) withDefaults() Profile {
	if strings.TrimSpace(p.Nickname) == "" {
		p.Nickname = "익명"
	}
	if strings.TrimSpace(p.AIInfo) == "" {
		p.AIInfo = "없음"
	}
	if strings.TrimSpace(p.Locale) == "" {
		p.Locale = "ko-KR"
	}
	return p
}

type document struct {
	DefaultCharacter string      `yaml:"default_character"`
	SystemTemplate   string      `yaml:"system_template"`
	Group            group       `yaml:"group"`
	Characters       []Character `yaml:"characters"`
}

type group struct {
	ID       string   `yaml:"id"`
	Fallback []string `yaml:"fallback"`
}

// Registry implements Store over a loaded persona document.
type Registry struct {
	characters []Character
	index      map[string]int
	defaultID  string
	group      group
	tmpl       *template.Template
	intn       func(int) int
}

var _ Store = (*Registry)(nil)

// Builtin returns the registry compiled into the binary.
func Builtin() (*Registry, error) {
	return Load(bytes.NewReader(builtin))
}

// LoadFile loads a persona document from disk.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open persona file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses and validates a persona document.
func Load(r io.Reader) (*Registry, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode personas: %w", err)
	}

	if len(doc.Characters) == 0 {
		return nil, fmt.Errorf("persona document has no characters")
	}

	reg := &Registry{
		characters: doc.Characters,
		index:      make(map[string]int, len(doc.Characters)),
		defaultID:  doc.DefaultCharacter,
		group:      doc.Group,
		intn:       rand.IntN,
	}

	for i, c := range doc.Characters {
		switch {
		case c.ID == "":
			return nil, fmt.Errorf("character %d has no id", i)
		case c.Prompt == "":
			return nil, fmt.Errorf("character %s has no prompt", c.ID)
		case len(c.Fallback) == 0:
			return nil, fmt.Errorf("character %s has no fallback replies", c.ID)
		}
		if _, dup := reg.index[c.ID]; dup {
			return nil, fmt.Errorf("duplicate character id: %s", c.ID)
		}
		if c.ID == doc.Group.ID {
			return nil, fmt.Errorf("character id %s collides with the group id", c.ID)
		}
		reg.index[c.ID] = i
	}

	if reg.defaultID == "" {
		reg.defaultID = doc.Characters[0].ID
	}
	if _, ok := reg.index[reg.defaultID]; !ok {
		return nil, fmt.Errorf("default character %s is not defined", reg.defaultID)
	}

	src := doc.SystemTemplate
	if src == "" {
		src = "{{.Prompt}}"
	}
	tmpl, err := template.New("system").Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse system template: %w", err)
	}
	reg.tmpl = tmpl

	return reg, nil
}

// WithDefault returns a copy of the registry using id as the default
// character. Unknown ids are an error.
func (r *Registry) WithDefault(id string) (*Registry, error) {
	if _, ok := r.index[id]; !ok {
		return nil, fmt.Errorf("default character %s is not defined", id)
	}
	cp := *r
	cp.defaultID = id
	return &cp, nil
}

// List returns all characters in document order.
func (r *Registry) List() []Character {
	out := make([]Character, len(r.characters))
	copy(out, r.characters)
	return out
}

// Routable returns the characters eligible for keyword and LLM routing, in
// tie-break order.
func (r *Registry) Routable() []Character {
	var out []Character
	for _, c := range r.characters {
		if c.Routable {
			out = append(out, c)
		}
	}
	return out
}

// FindByID looks up a character.
func (r *Registry) FindByID(id string) (Character, bool) {
	i, ok := r.index[id]
	if !ok {
		return Character{}, false
	}
	return r.characters[i], true
}

// Default returns the default character.
func (r *Registry) Default() Character {
	return r.characters[r.index[r.defaultID]]
}

// Resolve returns the character for id, or the default character when id is
// unknown.
func (r *Registry) Resolve(id string) Character {
	if c, ok := r.FindByID(id); ok {
		return c
	}
	return r.Default()
}

// GroupID is the pseudo character id that requests routing.
func (r *Registry) GroupID() string {
	return r.group.ID
}

// IsGroup reports whether id asks for group chat routing.
func (r *Registry) IsGroup(id string) bool {
	return r.group.ID != "" && id == r.group.ID
}

// Fallbacks returns the canned replies for id. The group id has its own set;
// unknown ids get the default character's replies.
func (r *Registry) Fallbacks(id string) []string {
	if r.IsGroup(id) && len(r.group.Fallback) > 0 {
		return r.group.Fallback
	}
	return r.Resolve(id).Fallback
}

// FallbackReply picks one canned reply for id at random.
func (r *Registry) FallbackReply(id string) string {
	replies := r.Fallbacks(id)
	return replies[r.intn(len(replies))]
}

// SystemPrompt renders the system prompt for the character and user profile.
func (r *Registry) SystemPrompt(id string, profile Profile) (string, error) {
	c := r.Resolve(id)
	p := profile.withDefaults()

	var buf bytes.Buffer
	err := r.tmpl.Execute(&buf, map[string]string{
		"Prompt":   c.Prompt,
		"Name":     c.Name,
		"Nickname": p.Nickname,
		"AIInfo":   p.AIInfo,
		"Locale":   p.Locale,
	})
	if err != nil {
		return "", fmt.Errorf("render system prompt for %s: %w", c.ID, err)
	}
	return buf.String(), nil
}
