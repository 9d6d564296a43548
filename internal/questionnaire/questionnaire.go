// Package questionnaire runs the financial questionnaire: a catalog of
// yes/no disclosure sections whose follow-up inputs appear, and are
// required, only when the topic is answered yes.
package questionnaire

import (
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/parisxmas/intake/internal/models"
	"github.com/parisxmas/intake/internal/wizard"
)

// Questionnaire binds a catalog to one session's answers.
type Questionnaire struct {
	Catalog     *Catalog
	Data        *FormData
	controllers map[string]*Controller
}

// New builds a controller per section. Construction seeds section defaults
// that were never applied to data.
func New(cat *Catalog, data *FormData, ids *IDSource) *Questionnaire {
	q := &Questionnaire{Catalog: cat, Data: data, controllers: make(map[string]*Controller, len(cat.Sections))}
	for _, s := range cat.Sections {
		q.controllers[s.Key] = NewController(s, data, ids)
	}
	return q
}

// Controller returns the controller of the named section.
func (q *Questionnaire) Controller(key string) (*Controller, error) {
	c, ok := q.controllers[key]
	if !ok {
		return nil, fmt.Errorf("unknown section %q", key)
	}
	return c, nil
}

// StepControllers returns the controllers of one step in catalog order.
func (q *Questionnaire) StepControllers(step int) []*Controller {
	var out []*Controller
	for _, s := range q.Catalog.StepSections(step) {
		out = append(out, q.controllers[s.Key])
	}
	return out
}

// Steps returns the questionnaire as wizard steps.
func (q *Questionnaire) Steps() []wizard.Step {
	var out []wizard.Step
	for _, n := range q.Catalog.StepNumbers() {
		out = append(out, &Step{q: q, Number: n})
	}
	return out
}

// Apply copies posted inputs of one step into the form data. A changed
// topic answer is applied alone, since it reshapes the section.
func (q *Questionnaire) Apply(step int, in url.Values) error {
	for _, c := range q.StepControllers(step) {
		if err := c.apply(in); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) apply(in url.Values) error {
	if _, ok := in[c.def.Topic]; ok {
		if v := in.Get(c.def.Topic); v != c.Topic() {
			c.SetTopicAnswer(v)
			return nil
		}
	}
	if !c.Shown() {
		return nil
	}

	if c.def.Mode == ModeBlock {
		for _, f := range c.def.Fields {
			vals, ok := in[f.Name]
			if !ok {
				continue
			}
			if err := c.SetField(f.Name, postedValue(f, vals)); err != nil {
				return err
			}
		}
		return nil
	}

	for i := range c.Entries() {
		for _, f := range c.def.Fields {
			vals, ok := in[EntryKey(c.def.Entries, i, f.Name)]
			if !ok {
				continue
			}
			if err := c.UpdateEntry(i, f.Name, postedValue(f, vals)); err != nil {
				return err
			}
		}
	}
	return nil
}

// postedValue converts posted strings for a field. Multi-select fields post
// an empty marker so that clearing every box is still visible.
func postedValue(f FieldSpec, vals []string) any {
	if f.Type == models.FieldCheckboxGroup {
		out := []string{}
		for _, v := range vals {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		return out
	}
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[len(vals)-1])
}

// Missing lists every unmet requirement of one step.
func (q *Questionnaire) Missing(step int) ([]string, error) {
	var out []string
	for _, c := range q.StepControllers(step) {
		m, err := c.Missing()
		if err != nil {
			return nil, err
		}
		out = append(out, m...)
	}
	return out, nil
}

// RulesUnavailable is reported in place of field names when a step's
// display rules fail to evaluate.
const RulesUnavailable = "_rules"

// Step is one questionnaire page. It reads the shared form data rather
// than posted values; posted values go through Apply first.
type Step struct {
	q      *Questionnaire
	Number int
}

func (s *Step) Validate(url.Values) []string {
	missing, err := s.q.Missing(s.Number)
	if err != nil {
		log.Printf("questionnaire: step %d: %v", s.Number, err)
		return []string{RulesUnavailable}
	}
	return missing
}

// Inputs is empty: validation reads the form data directly.
func (s *Step) Inputs(map[string]any) url.Values {
	return nil
}

func (s *Step) Capture(url.Values) map[string]any {
	return s.Restore(s.q.Data.Snapshot())
}

func (s *Step) Restore(payload map[string]any) map[string]any {
	out := make(map[string]any)
	for _, sec := range s.q.Catalog.StepSections(s.Number) {
		for k := range sec.Keys() {
			if v, ok := payload[k]; ok {
				out[k] = v
			}
		}
	}
	return out
}
