package forms

import (
	"net/url"

	"github.com/parisxmas/intake/internal/models"
)

// Capture converts posted values for defs into the flat name → value map a
// wizard step snapshots. Single checkboxes become booleans, checkbox groups
// decompose into one boolean per option, and radio_with_input options flagged
// hasInput contribute their elaboration as a second key.
func Capture(defs []models.FieldDefinition, in url.Values) map[string]any {
	out := make(map[string]any, len(defs))
	for _, def := range defs {
		switch CapabilityOf(def) {
		case MultiChoice:
			for _, o := range def.Options {
				name := MemberName(def.Name, o.Value)
				out[name] = truthy(in.Get(name))
			}
			continue
		case Choice:
			out[def.Name] = in.Get(def.Name)
			if def.FieldType == models.FieldRadioWithInput {
				for _, o := range def.Options {
					if o.HasInput {
						name := InputName(def.Name, o.Value)
						out[name] = in.Get(name)
					}
				}
			}
			continue
		}
		if def.FieldType == models.FieldCheckbox {
			out[def.Name] = truthy(in.Get(def.Name))
			continue
		}
		out[def.Name] = in.Get(def.Name)
	}
	return out
}

// Values is the inverse of Capture: it turns a step snapshot back into posted
// form values, so a restored step validates the same way it rendered.
func Values(defs []models.FieldDefinition, data map[string]any) url.Values {
	in := url.Values{}
	for _, name := range PayloadKeys(defs) {
		v, ok := data[name]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case bool:
			if t {
				in.Set(name, "on")
			}
		default:
			if s := stringValue(t); s != "" {
				in.Set(name, s)
			}
		}
	}
	return in
}

// PayloadKeys lists every payload key defs can contribute.
func PayloadKeys(defs []models.FieldDefinition) []string {
	var keys []string
	for _, def := range defs {
		switch CapabilityOf(def) {
		case MultiChoice:
			for _, o := range def.Options {
				keys = append(keys, MemberName(def.Name, o.Value))
			}
			continue
		case Choice:
			keys = append(keys, def.Name)
			if def.FieldType == models.FieldRadioWithInput {
				for _, o := range def.Options {
					if o.HasInput {
						keys = append(keys, InputName(def.Name, o.Value))
					}
				}
			}
			continue
		}
		keys = append(keys, def.Name)
	}
	return keys
}

// SelectedOptions reassembles the selected set of a checkbox group from its
// decomposed keys, in option order.
func SelectedOptions(def models.FieldDefinition, payload map[string]any) []string {
	var selected []string
	for _, o := range def.Options {
		if truthy(payload[MemberName(def.Name, o.Value)]) {
			selected = append(selected, o.Value)
		}
	}
	return selected
}
