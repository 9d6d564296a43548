// Package wizard is the multi-step form state machine: it validates the
// active step before moving forward, snapshots each step's captured values,
// and merges every snapshot into one flat payload at submission.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrAlreadySubmitted = errors.New("application already submitted")
	ErrStepOutOfRange   = errors.New("step out of range")
	ErrNotFinalStep     = errors.New("submission is only possible from the final step")
	ErrNoSteps          = errors.New("wizard has no steps")
)

// ValidationError lists the required inputs of Step that are unmet. The
// first name is the one to focus.
type ValidationError struct {
	Step   int
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %d: missing required fields: %s", e.Step, strings.Join(e.Fields, ", "))
}

// Step is one page of the wizard.
type Step interface {
	// Validate returns the names of unmet required inputs, in display order.
	Validate(in url.Values) []string
	// Capture converts posted values into this step's snapshot.
	Capture(in url.Values) map[string]any
	// Restore picks this step's keys out of a merged payload.
	Restore(payload map[string]any) map[string]any
	// Inputs rebuilds posted values from a snapshot, so a stored step can
	// be validated again.
	Inputs(snapshot map[string]any) url.Values
}

// ProgressSaver persists a partial payload.
type ProgressSaver interface {
	SaveProgress(ctx context.Context, payload map[string]any, currentStep int) error
}

// ProgressFunc adapts a function to ProgressSaver.
type ProgressFunc func(ctx context.Context, payload map[string]any, currentStep int) error

func (f ProgressFunc) SaveProgress(ctx context.Context, payload map[string]any, currentStep int) error {
	return f(ctx, payload, currentStep)
}

// Submitter receives the merged payload once, at final submission.
type Submitter interface {
	Submit(ctx context.Context, payload map[string]any) error
}

// SubmitFunc adapts a function to Submitter.
type SubmitFunc func(ctx context.Context, payload map[string]any) error

func (f SubmitFunc) Submit(ctx context.Context, payload map[string]any) error {
	return f(ctx, payload)
}

// State is the serializable part of a wizard. AllStepsData[i] is the
// snapshot of step i+1.
type State struct {
	CurrentStep  int              `msgpack:"current_step" json:"currentStep"`
	AllStepsData []map[string]any `msgpack:"all_steps_data" json:"allStepsData"`
	Submitted    bool             `msgpack:"submitted" json:"submitted"`
}

type Wizard struct {
	steps []Step
	state *State
}

// New binds steps to state. A nil or empty state starts at step 1. The state
// is adjusted in place to the number of steps.
func New(steps []Step, state *State) (*Wizard, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	if state == nil {
		state = &State{}
	}
	if state.CurrentStep < 1 {
		state.CurrentStep = 1
	}
	if state.CurrentStep > len(steps) {
		state.CurrentStep = len(steps)
	}
	for len(state.AllStepsData) < len(steps) {
		state.AllStepsData = append(state.AllStepsData, map[string]any{})
	}
	state.AllStepsData = state.AllStepsData[:len(steps)]
	for i, d := range state.AllStepsData {
		if d == nil {
			state.AllStepsData[i] = map[string]any{}
		}
	}
	return &Wizard{steps: steps, state: state}, nil
}

// Resume rebuilds a state from a stored flat payload, splitting it across
// steps by the keys each step owns.
func Resume(steps []Step, payload map[string]any, currentStep int) *State {
	st := &State{CurrentStep: currentStep}
	for _, s := range steps {
		st.AllStepsData = append(st.AllStepsData, s.Restore(payload))
	}
	return st
}

func (w *Wizard) State() *State { return w.state }
func (w *Wizard) Current() int  { return w.state.CurrentStep }
func (w *Wizard) Total() int    { return len(w.steps) }
func (w *Wizard) IsFirst() bool { return w.state.CurrentStep == 1 }
func (w *Wizard) IsLast() bool  { return w.state.CurrentStep == len(w.steps) }

// Data returns the snapshot of step n (1-indexed).
func (w *Wizard) Data(n int) map[string]any {
	if n < 1 || n > len(w.steps) {
		return nil
	}
	return w.state.AllStepsData[n-1]
}

// Snapshot captures the current step's inputs without validating them.
func (w *Wizard) Snapshot(in url.Values) {
	i := w.state.CurrentStep - 1
	w.state.AllStepsData[i] = w.steps[i].Capture(in)
}

// Check validates the current step against in.
func (w *Wizard) Check(in url.Values) error {
	if missing := w.steps[w.state.CurrentStep-1].Validate(in); len(missing) > 0 {
		return &ValidationError{Step: w.state.CurrentStep, Fields: missing}
	}
	return nil
}

// checkStored validates the stored snapshots of steps from through to.
func (w *Wizard) checkStored(from, to int) error {
	for n := from; n <= to; n++ {
		s := w.steps[n-1]
		if missing := s.Validate(s.Inputs(w.state.AllStepsData[n-1])); len(missing) > 0 {
			return &ValidationError{Step: n, Fields: missing}
		}
	}
	return nil
}

// GoTo moves to step. Moving forward requires the current step to validate,
// and every step jumped over must validate from its snapshot; moving back
// never validates. Either way the current step is snapshotted first. On a
// validation failure nothing changes.
func (w *Wizard) GoTo(step int, in url.Values) error {
	if w.state.Submitted {
		return ErrAlreadySubmitted
	}
	if step < 1 || step > len(w.steps) {
		return ErrStepOutOfRange
	}
	if step > w.state.CurrentStep {
		if err := w.Check(in); err != nil {
			return err
		}
		if err := w.checkStored(w.state.CurrentStep+1, step-1); err != nil {
			return err
		}
	}
	w.Snapshot(in)
	w.state.CurrentStep = step
	return nil
}

func (w *Wizard) Next(in url.Values) error { return w.GoTo(w.state.CurrentStep+1, in) }
func (w *Wizard) Back(in url.Values) error { return w.GoTo(w.state.CurrentStep-1, in) }

// Merged shallow-merges all snapshots in step order.
func (w *Wizard) Merged() map[string]any {
	return Merge(w.state.AllStepsData)
}

// SaveProgress snapshots the current step and hands the merged payload to
// saver. A saver failure leaves the captured data in place.
func (w *Wizard) SaveProgress(ctx context.Context, in url.Values, saver ProgressSaver) error {
	if w.state.Submitted {
		return ErrAlreadySubmitted
	}
	w.Snapshot(in)
	return saver.SaveProgress(ctx, w.Merged(), w.state.CurrentStep)
}

// Submit validates the final step against in and every earlier step against
// its snapshot, then snapshots the final step and hands the merged payload
// to sub. If sub fails the state is kept so the user can retry.
func (w *Wizard) Submit(ctx context.Context, in url.Values, sub Submitter) error {
	if w.state.Submitted {
		return ErrAlreadySubmitted
	}
	if !w.IsLast() {
		return ErrNotFinalStep
	}
	if err := w.Check(in); err != nil {
		return err
	}
	if err := w.checkStored(1, len(w.steps)-1); err != nil {
		return err
	}
	w.Snapshot(in)
	if err := sub.Submit(ctx, w.Merged()); err != nil {
		return err
	}
	w.state.Submitted = true
	return nil
}

// Merge combines snapshots in order; on a name collision the later step wins.
func Merge(steps []map[string]any) map[string]any {
	out := make(map[string]any)
	for _, s := range steps {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}
