package questionnaire

import (
	_ "embed"
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/parisxmas/intake/internal/models"
)

//go:embed catalog.cue
var catalogSource []byte

// Mode says how a section stores the details behind its yes/no topic.
type Mode string

const (
	// ModeList sections hold a repeatable entry list under Section.Entries.
	ModeList Mode = "list"
	// ModeBlock sections hold a fixed set of fields stored under their own names.
	ModeBlock Mode = "block"
)

// FieldSpec is one input inside a section.
type FieldSpec struct {
	Name        string           `json:"name"`
	Label       string           `json:"label"`
	Type        models.FieldType `json:"type"`
	Placeholder string           `json:"placeholder,omitempty"`
	Required    bool             `json:"required"`
	Options     []models.Option  `json:"options,omitempty"`
	// ShowWhen names a flag that must hold for the field to be shown and,
	// when Required, to be enforced.
	ShowWhen string `json:"showWhen,omitempty"`
}

// Section is one disclosure topic of the financial questionnaire.
type Section struct {
	Key        string              `json:"key"`
	Title      string              `json:"title"`
	Step       int                 `json:"step"`
	Topic      string              `json:"topic"`
	Question   string              `json:"question"`
	Mode       Mode                `json:"mode"`
	Entries    string              `json:"entries,omitempty"`
	Seed       string              `json:"seed,omitempty"`
	Defaults   map[string]any      `json:"defaults,omitempty"`
	Fields     []FieldSpec         `json:"fields"`
	Flags      map[string]string   `json:"flags,omitempty"`
	EntryFlags map[string]string   `json:"entryFlags,omitempty"`
	Members    map[string][]string `json:"members,omitempty"`

	flags      map[string]*Predicate
	entryFlags map[string]*Predicate
}

// Keys lists the form-data keys the section owns.
func (s *Section) Keys() map[string]bool {
	keys := map[string]bool{s.Topic: true}
	if s.Mode == ModeList {
		keys[s.Entries] = true
		return keys
	}
	for _, f := range s.Fields {
		keys[f.Name] = true
	}
	return keys
}

// StepInfo titles one questionnaire step.
type StepInfo struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// Catalog is the loaded set of questionnaire sections.
type Catalog struct {
	Steps    []StepInfo
	Sections []*Section
	byKey    map[string]*Section
}

// LoadCatalog parses the embedded catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(catalogSource)
}

// ParseCatalog compiles a CUE catalog document, checks it for concrete
// values, and compiles each section's predicates.
func ParseCatalog(src []byte) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename("catalog.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile catalog: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}

	var raw struct {
		Steps    []StepInfo `json:"steps"`
		Sections []*Section `json:"sections"`
	}
	if err := v.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return newCatalog(raw.Steps, raw.Sections)
}

func newCatalog(steps []StepInfo, sections []*Section) (*Catalog, error) {
	c := &Catalog{Steps: steps, Sections: sections, byKey: map[string]*Section{}}
	owner := map[string]string{}
	for _, s := range sections {
		if s.Key == "" || s.Topic == "" {
			return nil, fmt.Errorf("catalog: section %q needs a key and a topic", s.Key)
		}
		if _, dup := c.byKey[s.Key]; dup {
			return nil, fmt.Errorf("catalog: duplicate section %q", s.Key)
		}
		if s.Mode == ModeList && s.Entries == "" {
			return nil, fmt.Errorf("catalog: list section %q has no entries key", s.Key)
		}
		for k := range s.Keys() {
			if prev, taken := owner[k]; taken {
				return nil, fmt.Errorf("catalog: key %q is used by both %q and %q", k, prev, s.Key)
			}
			owner[k] = s.Key
		}
		if err := s.compile(); err != nil {
			return nil, fmt.Errorf("catalog: section %q: %w", s.Key, err)
		}
		c.byKey[s.Key] = s
	}
	sort.SliceStable(c.Sections, func(i, j int) bool { return c.Sections[i].Step < c.Sections[j].Step })
	return c, nil
}

func (s *Section) compile() error {
	s.flags = map[string]*Predicate{}
	for name, src := range s.Flags {
		p, err := compilePredicate(name, src)
		if err != nil {
			return err
		}
		s.flags[name] = p
	}
	s.entryFlags = map[string]*Predicate{}
	for name, src := range s.EntryFlags {
		p, err := compilePredicate(name, src)
		if err != nil {
			return err
		}
		s.entryFlags[name] = p
	}
	for _, f := range s.Fields {
		if f.ShowWhen == "" {
			continue
		}
		known := s.flags[f.ShowWhen] != nil
		if s.Mode == ModeList {
			known = s.entryFlags[f.ShowWhen] != nil
		}
		if !known {
			return fmt.Errorf("field %q shows on unknown flag %q", f.Name, f.ShowWhen)
		}
	}
	for field := range s.Members {
		if s.field(field) == nil {
			return fmt.Errorf("members declared for unknown field %q", field)
		}
	}
	return nil
}

func (s *Section) field(name string) *FieldSpec {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

// Section returns the section with the given key.
func (c *Catalog) Section(key string) (*Section, bool) {
	s, ok := c.byKey[key]
	return s, ok
}

// StepSections returns the sections of one step in catalog order.
func (c *Catalog) StepSections(step int) []*Section {
	var out []*Section
	for _, s := range c.Sections {
		if s.Step == step {
			out = append(out, s)
		}
	}
	return out
}

// StepTitle returns the title of a step, or "Step n" when none is declared.
func (c *Catalog) StepTitle(step int) string {
	for _, s := range c.Steps {
		if s.Number == step {
			return s.Title
		}
	}
	return fmt.Sprintf("Step %d", step)
}

// StepNumbers lists the steps that hold at least one section.
func (c *Catalog) StepNumbers() []int {
	seen := map[int]bool{}
	var out []int
	for _, s := range c.Sections {
		if !seen[s.Step] {
			seen[s.Step] = true
			out = append(out, s.Step)
		}
	}
	sort.Ints(out)
	return out
}
