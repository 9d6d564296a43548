// Package forms turns staff-authored field definitions into controls, decides
// which inputs a step requires, captures posted values into the flat payload
// shape, and composes definitions into wizard steps.
package forms

import (
	"fmt"
	"strings"

	"github.com/parisxmas/intake/internal/models"
)

// Capability is the behaviour family a field type belongs to.
type Capability int

const (
	SingleValue Capability = iota
	Choice
	MultiChoice
	FileUpload
	SignatureCapture
)

func (c Capability) String() string {
	switch c {
	case SingleValue:
		return "single-value"
	case Choice:
		return "choice"
	case MultiChoice:
		return "multi-choice"
	case FileUpload:
		return "file"
	case SignatureCapture:
		return "signature"
	}
	return fmt.Sprintf("capability(%d)", int(c))
}

// CapabilityOf maps a field definition to its capability. A checkbox with
// options is a multi-choice group; without options it is a single toggle.
func CapabilityOf(def models.FieldDefinition) Capability {
	switch def.FieldType {
	case models.FieldSelect, models.FieldRadio, models.FieldRadioWithInput:
		return Choice
	case models.FieldCheckboxGroup:
		return MultiChoice
	case models.FieldCheckbox:
		if len(def.Options) > 0 {
			return MultiChoice
		}
		return SingleValue
	case models.FieldFile:
		return FileUpload
	case models.FieldSignature:
		return SignatureCapture
	}
	return SingleValue
}

// InputName is the payload key of the free-text elaboration next to a
// radio_with_input option.
func InputName(field, value string) string {
	return field + "_input_" + value
}

// MemberName is the payload key of one checkbox of a checkbox group.
func MemberName(field, value string) string {
	return field + "_" + value
}

// TextareaRows is the default row count of multi-line inputs.
const TextareaRows = 4

// Base carries what every control shares.
type Base struct {
	Def     models.FieldDefinition
	Invalid bool
	Focus   bool
}

func (b *Base) Field() models.FieldDefinition { return b.Def }
func (b *Base) base() *Base                    { return b }

// Control is one rendered input. The set of implementations is closed.
type Control interface {
	Field() models.FieldDefinition
	Capability() Capability
	// Partial names the template that draws the control.
	Partial() string
	base() *Base
}

// TextInput is a single-line input whose native type mirrors the field type.
type TextInput struct {
	Base
	InputType string
	Value     string
}

func (*TextInput) Capability() Capability { return SingleValue }
func (*TextInput) Partial() string        { return "control-input" }

type TextArea struct {
	Base
	Rows  int
	Value string
}

func (*TextArea) Capability() Capability { return SingleValue }
func (*TextArea) Partial() string        { return "control-textarea" }

// ChoiceOption is one option as drawn, with its current state.
type ChoiceOption struct {
	Value    string
	Label    string
	Selected bool

	// Name is the input name of a checkbox group member.
	Name string

	// Elaboration input of radio_with_input options flagged hasInput.
	HasInput         bool
	InputName        string
	InputValue       string
	InputPlaceholder string
}

type Select struct {
	Base
	Placeholder string
	Options     []ChoiceOption
}

func (*Select) Capability() Capability { return Choice }
func (*Select) Partial() string        { return "control-select" }

// RadioGroup covers both radio and radio_with_input.
type RadioGroup struct {
	Base
	Options []ChoiceOption
}

func (*RadioGroup) Capability() Capability { return Choice }
func (*RadioGroup) Partial() string        { return "control-radio" }

// Toggle is a checkbox without options; its visible label is the field label.
type Toggle struct {
	Base
	Checked bool
}

func (*Toggle) Capability() Capability { return SingleValue }
func (*Toggle) Partial() string        { return "control-toggle" }

type CheckboxGroup struct {
	Base
	Options []ChoiceOption
	// ListName is set when the group posts its selection as repeated
	// values of one name instead of one boolean per member.
	ListName string
}

func (*CheckboxGroup) Capability() Capability { return MultiChoice }
func (*CheckboxGroup) Partial() string        { return "control-checkboxes" }

// FilePicker draws a trigger and a native picker; it never uploads.
// Current holds the reference captured by the caller on a previous post.
type FilePicker struct {
	Base
	Current string
}

func (*FilePicker) Capability() Capability { return FileUpload }
func (*FilePicker) Partial() string        { return "control-file" }

// SignaturePad carries the captured image as a hidden value keyed by the field name.
type SignaturePad struct {
	Base
	Value string
}

func (*SignaturePad) Capability() Capability { return SignatureCapture }
func (*SignaturePad) Partial() string        { return "control-signature" }

// RenderList draws a checkbox group whose value is a list of selected
// option values posted under def.Name.
func RenderList(def models.FieldDefinition, selected []string) *CheckboxGroup {
	set := make(map[string]bool, len(selected))
	for _, v := range selected {
		set[v] = true
	}
	opts := make([]ChoiceOption, 0, len(def.Options))
	for _, o := range def.Options {
		opts = append(opts, ChoiceOption{Value: o.Value, Label: o.Label, Name: def.Name, Selected: set[o.Value]})
	}
	return &CheckboxGroup{Base: Base{Def: def}, Options: opts, ListName: def.Name}
}

// Render produces the control for def, populated from the step's captured data.
func Render(def models.FieldDefinition, data map[string]any) Control {
	b := Base{Def: def}
	switch def.FieldType {
	case models.FieldTextarea:
		return &TextArea{Base: b, Rows: TextareaRows, Value: stringValue(data[def.Name])}
	case models.FieldSelect:
		placeholder := def.Placeholder
		if placeholder == "" {
			placeholder = "Select an option"
		}
		current := stringValue(data[def.Name])
		opts := make([]ChoiceOption, 0, len(def.Options))
		for _, o := range def.Options {
			opts = append(opts, ChoiceOption{Value: o.Value, Label: o.Label, Selected: o.Value == current})
		}
		return &Select{Base: b, Placeholder: placeholder, Options: opts}
	case models.FieldRadio, models.FieldRadioWithInput:
		current := stringValue(data[def.Name])
		withInput := def.FieldType == models.FieldRadioWithInput
		opts := make([]ChoiceOption, 0, len(def.Options))
		for _, o := range def.Options {
			co := ChoiceOption{Value: o.Value, Label: o.Label, Selected: o.Value == current}
			if withInput && o.HasInput {
				co.HasInput = true
				co.InputName = InputName(def.Name, o.Value)
				co.InputValue = stringValue(data[co.InputName])
				co.InputPlaceholder = o.Placeholder
			}
			opts = append(opts, co)
		}
		return &RadioGroup{Base: b, Options: opts}
	case models.FieldCheckbox, models.FieldCheckboxGroup:
		if len(def.Options) == 0 {
			if def.FieldType == models.FieldCheckboxGroup {
				return &CheckboxGroup{Base: b, Options: []ChoiceOption{}}
			}
			return &Toggle{Base: b, Checked: truthy(data[def.Name])}
		}
		opts := make([]ChoiceOption, 0, len(def.Options))
		for _, o := range def.Options {
			name := MemberName(def.Name, o.Value)
			opts = append(opts, ChoiceOption{Value: o.Value, Label: o.Label, Name: name, Selected: truthy(data[name])})
		}
		return &CheckboxGroup{Base: b, Options: opts}
	case models.FieldFile:
		return &FilePicker{Base: b, Current: stringValue(data[def.Name])}
	case models.FieldSignature:
		return &SignaturePad{Base: b, Value: stringValue(data[def.Name])}
	}
	inputType := string(def.FieldType)
	if inputType == "" {
		inputType = string(models.FieldText)
	}
	return &TextInput{Base: b, InputType: inputType, Value: stringValue(data[def.Name])}
}

// MarkInvalid flags a control as failing its requirement.
func MarkInvalid(c Control, invalid bool) {
	c.base().Invalid = invalid
}

// RenderAll renders defs in order and flags the offending names: each is
// marked invalid and the first one gets focus.
func RenderAll(defs []models.FieldDefinition, data map[string]any, offending []string) []Control {
	bad := make(map[string]bool, len(offending))
	for _, n := range offending {
		bad[n] = true
	}
	first := ""
	if len(offending) > 0 {
		first = offending[0]
	}
	out := make([]Control, 0, len(defs))
	for _, def := range defs {
		c := Render(def, data)
		if bad[def.Name] {
			c.base().Invalid = true
			c.base().Focus = def.Name == first
		}
		out = append(out, c)
	}
	return out
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(t)
	}
}

// truthy interprets posted checkbox values and stored booleans alike.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "on", "true", "1", "yes", "checked":
			return true
		}
	}
	return false
}
