package forms

import (
	"errors"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/parisxmas/intake/internal/models"
)

// ErrEmptySchema is returned when a form has no field definitions.
var ErrEmptySchema = errors.New("form has no fields")

// SchemaError reports a schema that cannot be rendered as-is.
type SchemaError struct {
	Step    int
	Reason  string
	Missing []string
}

func (e *SchemaError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("step %d: %s: %s", e.Step, e.Reason, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("step %d: %s", e.Step, e.Reason)
}

// Placement puts hand-authored content before or after a step's groups.
type Placement int

const (
	Before Placement = iota
	After
)

// StaticBlock is hand-authored step content that is not stored as field rows.
// Names lists the input names its markup claims.
type StaticBlock struct {
	Step      int
	Placement Placement
	Title     string
	Body      template.HTML
	Names     []string
}

type Group struct {
	Name   string
	Fields []models.FieldDefinition
}

// Step is one composed wizard page.
type Step struct {
	Number int
	Groups []Group
	Before []StaticBlock
	After  []StaticBlock
}

// Fields flattens the step's groups in display order.
func (s Step) Fields() []models.FieldDefinition {
	var out []models.FieldDefinition
	for _, g := range s.Groups {
		out = append(out, g.Fields...)
	}
	return out
}

// Relax returns a copy of steps in which fields of type typ are optional.
func Relax(steps []Step, typ models.FieldType) []Step {
	out := make([]Step, len(steps))
	for i, st := range steps {
		out[i] = st
		out[i].Groups = make([]Group, len(st.Groups))
		for j, g := range st.Groups {
			fields := append([]models.FieldDefinition(nil), g.Fields...)
			for k := range fields {
				if fields[k].FieldType == typ {
					fields[k].IsRequired = false
				}
			}
			out[i].Groups[j] = Group{Name: g.Name, Fields: fields}
		}
	}
	return out
}

// GroupByStepAndGroup partitions fields by step, then by group, keeping
// fieldOrder within each group. Blank groups become models.DefaultGroup.
func GroupByStepAndGroup(fields []models.FieldDefinition) map[int]map[string][]models.FieldDefinition {
	sorted := make([]models.FieldDefinition, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FieldOrder < sorted[j].FieldOrder
	})

	out := make(map[int]map[string][]models.FieldDefinition)
	for _, f := range sorted {
		groups, ok := out[f.Step]
		if !ok {
			groups = make(map[string][]models.FieldDefinition)
			out[f.Step] = groups
		}
		g := f.Group()
		groups[g] = append(groups[g], f)
	}
	return out
}

// Compose orders grouped fields into steps and interleaves static content.
// Groups within a step are ordered by their lowest fieldOrder. Field names
// must be unique across the form and must not be claimed by static content.
func Compose(fields []models.FieldDefinition, statics []StaticBlock) ([]Step, error) {
	if len(fields) == 0 {
		return nil, ErrEmptySchema
	}

	claimed := make(map[string]int)
	for _, sb := range statics {
		for _, n := range sb.Names {
			claimed[n] = sb.Step
		}
	}
	seen := make(map[string]int)
	for _, f := range fields {
		if f.Step < 1 {
			return nil, &SchemaError{Step: f.Step, Reason: "field has no valid step", Missing: []string{f.Name}}
		}
		if prev, dup := seen[f.Name]; dup {
			return nil, &SchemaError{Step: f.Step, Reason: fmt.Sprintf("field name already used in step %d", prev), Missing: []string{f.Name}}
		}
		seen[f.Name] = f.Step
		if st, ok := claimed[f.Name]; ok {
			return nil, &SchemaError{Step: f.Step, Reason: fmt.Sprintf("field name collides with static content of step %d", st), Missing: []string{f.Name}}
		}
	}

	grouped := GroupByStepAndGroup(fields)
	numbers := make([]int, 0, len(grouped))
	for n := range grouped {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	steps := make([]Step, 0, len(numbers))
	for _, n := range numbers {
		step := Step{Number: n}
		for name, fs := range grouped[n] {
			step.Groups = append(step.Groups, Group{Name: name, Fields: fs})
		}
		sort.SliceStable(step.Groups, func(i, j int) bool {
			a, b := step.Groups[i], step.Groups[j]
			if a.Fields[0].FieldOrder != b.Fields[0].FieldOrder {
				return a.Fields[0].FieldOrder < b.Fields[0].FieldOrder
			}
			return a.Name < b.Name
		})
		for _, sb := range statics {
			if sb.Step != n {
				continue
			}
			if sb.Placement == After {
				step.After = append(step.After, sb)
			} else {
				step.Before = append(step.Before, sb)
			}
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// RequireFields checks that step defines every named field.
func RequireFields(step Step, names ...string) error {
	have := make(map[string]bool)
	for _, f := range step.Fields() {
		have[f.Name] = true
	}
	var missing []string
	for _, n := range names {
		if !have[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Step: step.Number, Reason: "required fields not defined", Missing: missing}
	}
	return nil
}

// FieldsOfType returns the step's fields of type t.
func FieldsOfType(step Step, t models.FieldType) []models.FieldDefinition {
	var out []models.FieldDefinition
	for _, f := range step.Fields() {
		if f.FieldType == t {
			out = append(out, f)
		}
	}
	return out
}
