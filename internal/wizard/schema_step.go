package wizard

import (
	"net/url"

	"github.com/parisxmas/intake/internal/forms"
)

// SchemaStep drives a step composed from field definitions.
type SchemaStep struct {
	forms.Step
}

func (s SchemaStep) Validate(in url.Values) []string {
	return forms.Validate(s.Fields(), in)
}

func (s SchemaStep) Capture(in url.Values) map[string]any {
	return forms.Capture(s.Fields(), in)
}

func (s SchemaStep) Restore(payload map[string]any) map[string]any {
	out := make(map[string]any)
	for _, k := range forms.PayloadKeys(s.Fields()) {
		if v, ok := payload[k]; ok {
			out[k] = v
		}
	}
	return out
}

func (s SchemaStep) Inputs(snapshot map[string]any) url.Values {
	return forms.Values(s.Fields(), snapshot)
}

// SchemaSteps wraps composed steps for the wizard.
func SchemaSteps(steps []forms.Step) []Step {
	out := make([]Step, 0, len(steps))
	for _, s := range steps {
		out = append(out, SchemaStep{Step: s})
	}
	return out
}
