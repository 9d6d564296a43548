package forms

import (
	"net/url"
	"strings"

	"github.com/parisxmas/intake/internal/models"
)

// RequireKind is how a required field is judged satisfied.
type RequireKind int

const (
	// RequireNonEmpty: the trimmed value is not empty.
	RequireNonEmpty RequireKind = iota
	// RequireChecked: the single checkbox is checked.
	RequireChecked
	// RequireGroupValue: some member of the named radio group has a value.
	RequireGroupValue
	// RequireAnyChecked: at least one checkbox of the group is checked.
	RequireAnyChecked
)

// Requirement is one unmet-or-met condition a required field imposes.
type Requirement struct {
	Field  string
	Kind   RequireKind
	Inputs []string
}

// Satisfied checks the requirement against posted values.
func (r Requirement) Satisfied(in url.Values) bool {
	switch r.Kind {
	case RequireChecked:
		return truthy(in.Get(r.Inputs[0]))
	case RequireAnyChecked:
		for _, name := range r.Inputs {
			if truthy(in.Get(name)) {
				return true
			}
		}
		return false
	case RequireGroupValue:
		for _, v := range in[r.Inputs[0]] {
			if v != "" {
				return true
			}
		}
		return false
	}
	return strings.TrimSpace(in.Get(r.Inputs[0])) != ""
}

// RequirementOf returns the requirement def imposes, if it is required.
func RequirementOf(def models.FieldDefinition) (Requirement, bool) {
	if !def.IsRequired {
		return Requirement{}, false
	}
	r := Requirement{Field: def.Name, Inputs: []string{def.Name}}
	switch CapabilityOf(def) {
	case MultiChoice:
		if len(def.Options) == 0 {
			return Requirement{}, false
		}
		r.Kind = RequireAnyChecked
		r.Inputs = r.Inputs[:0]
		for _, o := range def.Options {
			r.Inputs = append(r.Inputs, MemberName(def.Name, o.Value))
		}
	case Choice:
		if def.FieldType == models.FieldSelect {
			r.Kind = RequireNonEmpty
		} else {
			r.Kind = RequireGroupValue
		}
	default:
		if def.FieldType == models.FieldCheckbox {
			r.Kind = RequireChecked
		}
	}
	return r, true
}

// Validate scans the required fields of defs and returns the names of the
// unmet ones in display order. An empty result means the step may advance.
func Validate(defs []models.FieldDefinition, in url.Values) []string {
	var offending []string
	for _, def := range defs {
		r, ok := RequirementOf(def)
		if !ok {
			continue
		}
		if !r.Satisfied(in) {
			offending = append(offending, def.Name)
		}
	}
	return offending
}
