package questionnaire

import (
	"github.com/parisxmas/intake/internal/forms"
	"github.com/parisxmas/intake/internal/models"
)

// SectionView is a section as the templates and the live channel see it.
type SectionView struct {
	Key      string          `json:"key"`
	Title    string          `json:"title"`
	Question string          `json:"question"`
	Topic    string          `json:"topic"`
	Answer   string          `json:"answer"`
	Mode     Mode            `json:"mode"`
	Shown    bool            `json:"shown"`
	Flags    map[string]bool `json:"flags,omitempty"`
	Fields   []FieldView     `json:"fields,omitempty"`
	Entries  []EntryView     `json:"entries,omitempty"`
}

// EntryView is one entry of a list section.
type EntryView struct {
	Index  int             `json:"index"`
	ID     string          `json:"id"`
	Flags  map[string]bool `json:"flags,omitempty"`
	Fields []FieldView     `json:"fields"`
}

// FieldView is one visible input with its rendered control.
type FieldView struct {
	Name    string        `json:"name"`
	Input   string        `json:"input"`
	Label   string        `json:"label"`
	Value   any           `json:"value,omitempty"`
	Invalid bool          `json:"invalid,omitempty"`
	Control forms.Control `json:"-"`
}

// View renders the section. Keys in offending are marked invalid.
func (c *Controller) View(offending map[string]bool) (SectionView, error) {
	v := SectionView{
		Key:      c.def.Key,
		Title:    c.def.Title,
		Question: c.def.Question,
		Topic:    c.def.Topic,
		Answer:   c.Topic(),
		Mode:     c.def.Mode,
		Shown:    c.Shown(),
	}
	if !v.Shown {
		return v, nil
	}

	if c.def.Mode == ModeBlock {
		flags, err := c.Flags()
		if err != nil {
			return v, err
		}
		v.Flags = flags
		for _, f := range c.def.Fields {
			if Visible(f, flags) {
				v.Fields = append(v.Fields, fieldView(f, f.Name, c.Field(f.Name), offending[f.Name]))
			}
		}
		return v, nil
	}

	for i, entry := range c.Entries() {
		flags, err := evalAll(c.def.entryFlags, c.entryEnv(entry))
		if err != nil {
			return v, err
		}
		id, _ := entry["id"].(string)
		ev := EntryView{Index: i, ID: id, Flags: flags}
		for _, f := range c.def.Fields {
			if !Visible(f, flags) {
				continue
			}
			input := EntryKey(c.def.Entries, i, f.Name)
			ev.Fields = append(ev.Fields, fieldView(f, input, entry[f.Name], offending[input]))
		}
		v.Entries = append(v.Entries, ev)
	}
	return v, nil
}

func fieldView(f FieldSpec, input string, value any, invalid bool) FieldView {
	def := models.FieldDefinition{
		Name:        input,
		Label:       f.Label,
		FieldType:   f.Type,
		Placeholder: f.Placeholder,
		IsRequired:  f.Required,
		Options:     f.Options,
	}
	var ctl forms.Control
	if f.Type == models.FieldCheckboxGroup {
		ctl = forms.RenderList(def, stringList(value))
	} else {
		ctl = forms.Render(def, map[string]any{input: value})
	}
	forms.MarkInvalid(ctl, invalid)
	return FieldView{Name: f.Name, Input: input, Label: f.Label, Value: value, Invalid: invalid, Control: ctl}
}

// StepView renders every section of one step.
func (q *Questionnaire) StepView(step int, offending []string) ([]SectionView, error) {
	marked := make(map[string]bool, len(offending))
	for _, k := range offending {
		marked[k] = true
	}
	var out []SectionView
	for _, c := range q.StepControllers(step) {
		v, err := c.View(marked)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
