package questionnaire

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/parisxmas/intake/internal/models"
)

var (
	ErrEntryIndex    = errors.New("entry index out of range")
	ErrReadOnlyField = errors.New("field cannot be edited")
	ErrUnknownField  = errors.New("unknown field")
	ErrUnknownMember = errors.New("unknown member")
	ErrNotListMode   = errors.New("section has no entry list")
)

// Controller applies the disclosure rules of one section to its slice of
// the questionnaire form data.
type Controller struct {
	def   *Section
	slice Slice
	ids   *IDSource
}

// NewController binds a section to form data and runs the one-time
// default seeding.
func NewController(def *Section, data *FormData, ids *IDSource) *Controller {
	c := &Controller{
		def:   def,
		slice: Slice{data: data, keys: def.Keys()},
		ids:   ids,
	}
	c.seed(data)
	return c
}

func (c *Controller) Section() *Section { return c.def }

// seed applies the section default once, and only while neither the topic
// nor the entry list has ever been set.
func (c *Controller) seed(data *FormData) {
	if data.seeded[c.def.Key] {
		return
	}
	data.seeded[c.def.Key] = true
	if c.def.Seed == "" {
		return
	}
	if _, ok := c.slice.Get(c.def.Topic); ok {
		return
	}
	if c.def.Mode == ModeList {
		if _, ok := c.slice.Get(c.def.Entries); ok {
			return
		}
	}
	c.SetTopicAnswer(c.def.Seed)
}

// Topic returns the current topic answer, "" when unset.
func (c *Controller) Topic() string {
	v, _ := c.slice.Get(c.def.Topic)
	s, _ := v.(string)
	return s
}

// Shown reports whether the detail inputs are visible.
func (c *Controller) Shown() bool {
	return isYes(c.Topic())
}

// SetTopicAnswer sets the yes/no driver. Moving to yes with no entries
// seeds one blank entry. Moving away from yes discards every detail answer.
func (c *Controller) SetTopicAnswer(value string) {
	patch := map[string]any{c.def.Topic: value}
	if value == "" {
		patch[c.def.Topic] = nil
	}
	if isYes(value) {
		if c.def.Mode == ModeList && len(c.Entries()) == 0 {
			patch[c.def.Entries] = []any{c.newEntry(nil)}
		}
	} else {
		c.clearDetails(patch)
	}
	c.mustUpdate(patch)
}

func (c *Controller) clearDetails(patch map[string]any) {
	if c.def.Mode == ModeList {
		patch[c.def.Entries] = []any{}
		return
	}
	for _, f := range c.def.Fields {
		patch[f.Name] = nil
	}
}

// Entries returns a copy of the entry list.
func (c *Controller) Entries() []map[string]any {
	if c.def.Mode != ModeList {
		return nil
	}
	v, _ := c.slice.Get(c.def.Entries)
	return entryList(v)
}

// AddEntry appends one entry with a fresh id and the section defaults.
func (c *Controller) AddEntry() (map[string]any, error) {
	if c.def.Mode != ModeList {
		return nil, ErrNotListMode
	}
	entries := c.Entries()
	entry := c.newEntry(entries)
	next := make([]any, 0, len(entries)+1)
	for _, e := range entries {
		next = append(next, e)
	}
	next = append(next, entry)
	c.mustUpdate(map[string]any{c.def.Entries: next})
	return entry, nil
}

// UpdateEntry sets one field of one entry, replacing both the entry and the
// list so earlier snapshots stay intact.
func (c *Controller) UpdateEntry(index int, field string, value any) error {
	entries, err := c.entriesAt(index)
	if err != nil {
		return err
	}
	if field == "id" {
		return ErrReadOnlyField
	}
	if c.def.field(field) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return c.replaceEntry(entries, index, field, value)
}

// RemoveEntry drops one entry. The topic answer is left alone, so a yes
// section may end up with no entries.
func (c *Controller) RemoveEntry(index int) error {
	entries, err := c.entriesAt(index)
	if err != nil {
		return err
	}
	next := make([]any, 0, len(entries)-1)
	for i, e := range entries {
		if i != index {
			next = append(next, e)
		}
	}
	c.mustUpdate(map[string]any{c.def.Entries: next})
	return nil
}

// ToggleMember adds member to a multi-select field of one entry when
// checked and removes it otherwise. The result never holds duplicates.
func (c *Controller) ToggleMember(index int, field, member string, checked bool) error {
	entries, err := c.entriesAt(index)
	if err != nil {
		return err
	}
	spec := c.def.field(field)
	if spec == nil {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	if !c.allowedMember(spec, member) {
		return fmt.Errorf("%w: %s", ErrUnknownMember, member)
	}

	current := stringList(entries[index][field])
	next := make([]string, 0, len(current)+1)
	seen := make(map[string]bool, len(current)+1)
	for _, m := range current {
		if seen[m] || (m == member && !checked) {
			continue
		}
		seen[m] = true
		next = append(next, m)
	}
	if checked && !seen[member] {
		next = append(next, member)
	}
	return c.replaceEntry(entries, index, field, next)
}

// SetField sets a block-mode field.
func (c *Controller) SetField(field string, value any) error {
	if c.def.Mode != ModeBlock {
		return ErrNotListMode
	}
	if c.def.field(field) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	if s, ok := value.(string); ok && s == "" {
		value = nil
	}
	return c.slice.Update(map[string]any{field: value})
}

// Field returns a block-mode field value.
func (c *Controller) Field(name string) any {
	v, _ := c.slice.Get(name)
	return v
}

// Flags evaluates the section flags over the section's own answers.
func (c *Controller) Flags() (map[string]bool, error) {
	return evalAll(c.def.flags, c.slice.Env())
}

// EntryFlags evaluates the per-entry flags for one entry.
func (c *Controller) EntryFlags(index int) (map[string]bool, error) {
	entries, err := c.entriesAt(index)
	if err != nil {
		return nil, err
	}
	return evalAll(c.def.entryFlags, c.entryEnv(entries[index]))
}

// entryEnv fills unset fields so predicates see an empty list for
// multi-select fields rather than nil.
func (c *Controller) entryEnv(entry map[string]any) map[string]any {
	env := make(map[string]any, len(c.def.Fields)+1)
	for _, f := range c.def.Fields {
		if f.Type == models.FieldCheckboxGroup {
			env[f.Name] = []string{}
		}
	}
	for k, v := range entry {
		env[k] = v
	}
	return env
}

// Visible reports whether a field is shown for the given flag values.
func Visible(f FieldSpec, flags map[string]bool) bool {
	return f.ShowWhen == "" || flags[f.ShowWhen]
}

// Missing lists the unmet requirements of the section. An unanswered topic
// is reported under the topic key, list fields as entries.index.field and
// block fields under their own names. Hidden fields are never required.
func (c *Controller) Missing() ([]string, error) {
	if c.Topic() == "" {
		return []string{c.def.Topic}, nil
	}
	if !c.Shown() {
		return nil, nil
	}

	var missing []string
	if c.def.Mode == ModeBlock {
		flags, err := c.Flags()
		if err != nil {
			return nil, err
		}
		for _, f := range c.def.Fields {
			if f.Required && Visible(f, flags) && isEmpty(c.Field(f.Name)) {
				missing = append(missing, f.Name)
			}
		}
		return missing, nil
	}

	for i, entry := range c.Entries() {
		flags, err := evalAll(c.def.entryFlags, c.entryEnv(entry))
		if err != nil {
			return nil, err
		}
		for _, f := range c.def.Fields {
			if f.Required && Visible(f, flags) && isEmpty(entry[f.Name]) {
				missing = append(missing, EntryKey(c.def.Entries, i, f.Name))
			}
		}
	}
	return missing, nil
}

// EntryKey names one field of one entry, as used in validation results.
func EntryKey(entries string, index int, field string) string {
	return entries + "." + strconv.Itoa(index) + "." + field
}

func (c *Controller) entriesAt(index int) ([]map[string]any, error) {
	if c.def.Mode != ModeList {
		return nil, ErrNotListMode
	}
	entries := c.Entries()
	if index < 0 || index >= len(entries) {
		return nil, fmt.Errorf("%w: %d", ErrEntryIndex, index)
	}
	return entries, nil
}

func (c *Controller) replaceEntry(entries []map[string]any, index int, field string, value any) error {
	updated := make(map[string]any, len(entries[index])+1)
	for k, v := range entries[index] {
		updated[k] = v
	}
	if s, ok := value.(string); ok && s == "" {
		delete(updated, field)
	} else {
		updated[field] = value
	}
	next := make([]any, len(entries))
	for i, e := range entries {
		next[i] = e
	}
	next[index] = updated
	return c.slice.Update(map[string]any{c.def.Entries: next})
}

func (c *Controller) newEntry(existing []map[string]any) map[string]any {
	taken := make(map[string]bool, len(existing))
	for _, e := range existing {
		if id, ok := e["id"].(string); ok {
			taken[id] = true
		}
	}
	entry := deepCopy(c.def.Defaults)
	out, _ := entry.(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	out["id"] = c.ids.Next(taken)
	return out
}

func (c *Controller) allowedMember(spec *FieldSpec, member string) bool {
	if allowed, ok := c.def.Members[spec.Name]; ok {
		for _, m := range allowed {
			if m == member {
				return true
			}
		}
		return false
	}
	for _, o := range spec.Options {
		if o.Value == member {
			return true
		}
	}
	return false
}

// mustUpdate writes a patch built from the section's own keys.
func (c *Controller) mustUpdate(patch map[string]any) {
	if err := c.slice.Update(patch); err != nil {
		panic(err)
	}
}

func entryList(v any) []map[string]any {
	switch t := v.(type) {
	case []map[string]any:
		out := make([]map[string]any, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t != "" {
			return []string{t}
		}
	}
	return nil
}

func isYes(v string) bool {
	return v == "yes" || v == "true"
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}
