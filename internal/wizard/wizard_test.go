package wizard

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/intake/internal/forms"
	"github.com/parisxmas/intake/internal/models"
)

func def(step, order int, name string, typ models.FieldType, required bool) models.FieldDefinition {
	return models.FieldDefinition{ID: name, Step: step, FieldOrder: order, Name: name, Label: name, FieldType: typ, IsRequired: required}
}

func intakeSteps(t *testing.T) []Step {
	t.Helper()
	fields := []models.FieldDefinition{
		def(1, 1, "first_name", models.FieldText, true),
		def(1, 2, "email", models.FieldEmail, true),
		def(2, 1, "household_size", models.FieldNumber, true),
		def(3, 1, "client_signature", models.FieldSignature, true),
		def(4, 1, "agree_terms", models.FieldCheckbox, true),
	}
	composed, err := forms.Compose(fields, nil)
	require.NoError(t, err)
	return SchemaSteps(composed)
}

func TestMergeLaterStepWins(t *testing.T) {
	merged := Merge([]map[string]any{{"a": 1}, {"b": 2}, {"a": 3}})
	assert.Equal(t, map[string]any{"a": 3, "b": 2}, merged)
}

func TestNewNormalizesState(t *testing.T) {
	w, err := New(intakeSteps(t), &State{CurrentStep: 9, AllStepsData: []map[string]any{nil}})
	require.NoError(t, err)
	assert.Equal(t, 4, w.Current())
	assert.Len(t, w.State().AllStepsData, 4)
	assert.NotNil(t, w.Data(1))

	_, err = New(nil, nil)
	assert.ErrorIs(t, err, ErrNoSteps)
}

func TestForwardNeedsValidationBackDoesNot(t *testing.T) {
	w, err := New(intakeSteps(t), nil)
	require.NoError(t, err)

	err = w.Next(url.Values{"first_name": {"Ada"}})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 1, ve.Step)
	assert.Equal(t, []string{"email"}, ve.Fields)
	assert.Equal(t, 1, w.Current())

	require.NoError(t, w.Next(url.Values{"first_name": {"Ada"}, "email": {"ada@example.com"}}))
	assert.Equal(t, 2, w.Current())

	// step 2 is left blank; retreating is still allowed
	require.NoError(t, w.Back(url.Values{}))
	assert.Equal(t, 1, w.Current())
	assert.Equal(t, "Ada", w.Data(1)["first_name"])
	assert.Equal(t, "ada@example.com", w.Data(1)["email"])

	assert.ErrorIs(t, w.GoTo(0, nil), ErrStepOutOfRange)
	assert.ErrorIs(t, w.GoTo(5, nil), ErrStepOutOfRange)
}

func TestSkippingAheadChecksSkippedSteps(t *testing.T) {
	w, err := New(intakeSteps(t), nil)
	require.NoError(t, err)

	step1 := url.Values{"first_name": {"Ada"}, "email": {"ada@example.com"}}
	err = w.GoTo(4, step1)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 2, ve.Step)
	assert.Equal(t, []string{"household_size"}, ve.Fields)
	assert.Equal(t, 1, w.Current())
	assert.Empty(t, w.Data(1))

	// a neighbouring step skips nothing
	require.NoError(t, w.GoTo(2, step1))
	require.NoError(t, w.Next(url.Values{"household_size": {"2"}}))
	require.NoError(t, w.GoTo(1, url.Values{}))

	// steps already completed may be jumped over
	require.NoError(t, w.GoTo(3, forms.Values(w.steps[0].(SchemaStep).Fields(), w.Data(1))))
	assert.Equal(t, 3, w.Current())
}

func TestSubmitChecksEarlierSteps(t *testing.T) {
	w, err := New(intakeSteps(t), &State{CurrentStep: 4, AllStepsData: []map[string]any{
		{"first_name": "Ada", "email": "ada@example.com"},
		{"household_size": ""},
		{"client_signature": "data:image/png;base64,AAAA"},
	}})
	require.NoError(t, err)

	err = w.Submit(context.Background(), url.Values{"agree_terms": {"on"}}, SubmitFunc(func(context.Context, map[string]any) error {
		t.Fatal("submitter must not be called")
		return nil
	}))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 2, ve.Step)
	assert.Equal(t, []string{"household_size"}, ve.Fields)
	assert.False(t, w.State().Submitted)
	assert.Equal(t, 4, w.Current())
	assert.Empty(t, w.Data(4))
}

func TestEndToEndIntake(t *testing.T) {
	w, err := New(intakeSteps(t), nil)
	require.NoError(t, err)
	ctx := context.Background()

	step1 := url.Values{"first_name": {"Ada"}, "email": {""}}
	var ve *ValidationError
	require.ErrorAs(t, w.Next(step1), &ve)
	assert.Equal(t, []string{"email"}, ve.Fields)
	assert.Equal(t, 1, w.Current())

	step1.Set("email", "ada@example.com")
	require.NoError(t, w.Next(step1))
	assert.Equal(t, 2, w.Current())

	require.NoError(t, w.Back(url.Values{"household_size": {"3"}}))
	assert.Equal(t, 1, w.Current())
	assert.Equal(t, "Ada", w.Data(1)["first_name"])
	assert.Equal(t, "ada@example.com", w.Data(1)["email"])

	require.NoError(t, w.Next(forms.Values(w.steps[0].(SchemaStep).Fields(), w.Data(1))))
	require.NoError(t, w.Next(url.Values{"household_size": {"3"}}))
	require.NoError(t, w.Next(url.Values{"client_signature": {"data:image/png;base64,AAAA"}}))
	require.True(t, w.IsLast())

	calls := 0
	var got map[string]any
	sub := SubmitFunc(func(_ context.Context, payload map[string]any) error {
		calls++
		got = payload
		return nil
	})
	require.NoError(t, w.Submit(ctx, url.Values{"agree_terms": {"on"}}, sub))

	assert.Equal(t, 1, calls)
	assert.Equal(t, map[string]any{
		"first_name":       "Ada",
		"email":            "ada@example.com",
		"household_size":   "3",
		"client_signature": "data:image/png;base64,AAAA",
		"agree_terms":      true,
	}, got)
	assert.True(t, w.State().Submitted)
	assert.ErrorIs(t, w.Submit(ctx, url.Values{"agree_terms": {"on"}}, sub), ErrAlreadySubmitted)
	assert.ErrorIs(t, w.Back(nil), ErrAlreadySubmitted)
	assert.Equal(t, 1, calls)
}

func TestSubmitFailureKeepsData(t *testing.T) {
	w, err := New(intakeSteps(t), &State{CurrentStep: 4, AllStepsData: []map[string]any{
		{"first_name": "Ada", "email": "ada@example.com"},
		{"household_size": "2"},
		{"client_signature": "data:image/png;base64,AAAA"},
	}})
	require.NoError(t, err)

	boom := errors.New("store unavailable")
	err = w.Submit(context.Background(), url.Values{"agree_terms": {"on"}}, SubmitFunc(func(context.Context, map[string]any) error {
		return boom
	}))
	assert.ErrorIs(t, err, boom)
	assert.False(t, w.State().Submitted)
	assert.Equal(t, "Ada", w.Data(1)["first_name"])
	assert.Equal(t, true, w.Data(4)["agree_terms"])

	var got map[string]any
	require.NoError(t, w.Submit(context.Background(), url.Values{"agree_terms": {"on"}}, SubmitFunc(func(_ context.Context, p map[string]any) error {
		got = p
		return nil
	})))
	assert.Equal(t, "Ada", got["first_name"])
}

func TestSubmitValidatesAndRequiresLastStep(t *testing.T) {
	w, err := New(intakeSteps(t), nil)
	require.NoError(t, err)
	never := SubmitFunc(func(context.Context, map[string]any) error {
		t.Fatal("submitter must not be called")
		return nil
	})

	assert.ErrorIs(t, w.Submit(context.Background(), nil, never), ErrNotFinalStep)

	w.State().CurrentStep = 4
	var ve *ValidationError
	require.ErrorAs(t, w.Submit(context.Background(), url.Values{}, never), &ve)
	assert.Equal(t, []string{"agree_terms"}, ve.Fields)
}

func TestSaveProgressFailureKeepsData(t *testing.T) {
	w, err := New(intakeSteps(t), nil)
	require.NoError(t, err)

	var step int
	err = w.SaveProgress(context.Background(), url.Values{"first_name": {"Ada"}}, ProgressFunc(func(_ context.Context, p map[string]any, s int) error {
		step = s
		return errors.New("timeout")
	}))
	assert.Error(t, err)
	assert.Equal(t, 1, step)
	assert.Equal(t, "Ada", w.Data(1)["first_name"])
}

func TestResumeSplitsPayload(t *testing.T) {
	steps := intakeSteps(t)
	st := Resume(steps, map[string]any{"first_name": "Ada", "household_size": "2", "stray": "x"}, 2)

	w, err := New(steps, st)
	require.NoError(t, err)
	assert.Equal(t, 2, w.Current())
	assert.Equal(t, map[string]any{"first_name": "Ada"}, w.Data(1))
	assert.Equal(t, map[string]any{"household_size": "2"}, w.Data(2))
	assert.Empty(t, w.Data(3))
}
