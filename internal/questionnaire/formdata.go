package questionnaire

import (
	"fmt"
	"sort"
)

// FormData is the questionnaire answer state of one session. Updates
// replace the whole value map, so a reader holding an earlier map never
// sees a half-applied patch.
type FormData struct {
	values map[string]any
	seeded map[string]bool
}

func NewFormData(values map[string]any, seeded map[string]bool) *FormData {
	if values == nil {
		values = map[string]any{}
	}
	if seeded == nil {
		seeded = map[string]bool{}
	}
	return &FormData{values: values, seeded: seeded}
}

func (d *FormData) Get(key string) (any, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Update applies patch as a new value map. A nil value deletes the key.
func (d *FormData) Update(patch map[string]any) {
	next := make(map[string]any, len(d.values)+len(patch))
	for k, v := range d.values {
		next[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(next, k)
			continue
		}
		next[k] = v
	}
	d.values = next
}

// Values is the live map; callers must not mutate it.
func (d *FormData) Values() map[string]any { return d.values }

// Seeded lists the sections whose defaults were already applied.
func (d *FormData) Seeded() map[string]bool { return d.seeded }

// Snapshot deep-copies the values.
func (d *FormData) Snapshot() map[string]any {
	return deepCopy(d.values).(map[string]any)
}

// Slice is the part of FormData one section owns.
type Slice struct {
	data *FormData
	keys map[string]bool
}

func (s Slice) Get(key string) (any, bool) {
	if !s.keys[key] {
		return nil, false
	}
	return s.data.Get(key)
}

// Env is the owned values, as seen by the section's predicates.
func (s Slice) Env() map[string]any {
	env := make(map[string]any, len(s.keys))
	for k := range s.keys {
		if v, ok := s.data.values[k]; ok {
			env[k] = v
		}
	}
	return env
}

func (s Slice) Update(patch map[string]any) error {
	for k := range patch {
		if !s.keys[k] {
			return fmt.Errorf("questionnaire: key %q is not owned by this section", k)
		}
	}
	s.data.Update(patch)
	return nil
}

// Keys lists the owned keys, sorted.
func (s Slice) Keys() []string {
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	}
	return v
}
