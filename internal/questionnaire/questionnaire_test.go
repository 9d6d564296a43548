package questionnaire

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/intake/internal/wizard"
)

const testCatalog = `
steps: [{number: 1, title: "Assets"}, {number: 2, title: "History"}]
sections: [
	{
		key: "vehicles", title: "Vehicles", step: 1, topic: "owns_vehicles"
		question: "Do you own vehicles?", mode: "list", entries: "vehicles"
		defaults: has_loan: "no"
		fields: [
			{name: "make", label: "Make", type: "text", required: true},
			{name: "has_loan", label: "Loan?", type: "radio", required: false},
			{name: "lender", label: "Lender", type: "text", required: true, showWhen: "showLoan"},
		]
		entryFlags: showLoan: "has_loan == 'yes'"
	},
	{
		key: "debts", title: "Debts", step: 1, topic: "has_debts"
		question: "Do you owe money?", mode: "list", entries: "debts", seed: "yes"
		defaults: {responsible: [], dispute: "no"}
		fields: [
			{name: "creditor", label: "Creditor", type: "text", required: true},
			{name: "responsible", label: "Responsible", type: "checkbox-group", required: true, options: [
				{value: "self", label: "Me"}, {value: "spouse", label: "Spouse"}, {value: "other", label: "Other"},
			]},
			{name: "other_responsible", label: "Who?", type: "text", required: true, showWhen: "showOther"},
		]
		entryFlags: showOther: "'other' in responsible"
		members: responsible: ["self", "spouse", "other"]
	},
	{
		key: "prior_bankruptcy", title: "Prior Bankruptcy", step: 2, topic: "bankruptcy_last_8_years"
		question: "Filed in the last 8 years?", mode: "block"
		fields: [
			{name: "bankruptcy_district", label: "District", type: "text", required: true},
			{name: "bankruptcy_outcome", label: "Outcome", type: "radio", required: true},
			{name: "bankruptcy_discharged_on", label: "Discharged", type: "date", required: true, showWhen: "showDischargeDate"},
		]
		flags: showDischargeDate: "bankruptcy_outcome == 'discharged'"
	},
]
`

func fixedIDs() *IDSource {
	return &IDSource{now: func() time.Time { return time.UnixMilli(1_700_000_000_000) }}
}

func newTestQuestionnaire(t *testing.T, values map[string]any) *Questionnaire {
	t.Helper()
	cat, err := ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)
	return New(cat, NewFormData(values, nil), fixedIDs())
}

func controller(t *testing.T, q *Questionnaire, key string) *Controller {
	t.Helper()
	c, err := q.Controller(key)
	require.NoError(t, err)
	return c
}

func TestLoadEmbeddedCatalog(t *testing.T) {
	cat, err := LoadCatalog()
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(cat.Sections), 30)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, cat.StepNumbers())
	assert.Equal(t, "Debts", cat.StepTitle(4))

	debts, ok := cat.Section("debts")
	require.True(t, ok)
	assert.Equal(t, ModeList, debts.Mode)
	assert.Equal(t, "yes", debts.Seed)
	assert.Equal(t, []string{"self", "spouse", "joint", "other"}, debts.Members["responsible"])
	assert.Equal(t, "no", debts.Defaults["dispute"])

	pb, ok := cat.Section("prior_bankruptcy")
	require.True(t, ok)
	assert.Equal(t, "bankruptcy_last_8_years", pb.Topic)
	assert.Equal(t, ModeBlock, pb.Mode)
}

func TestParseCatalogRejectsBadInput(t *testing.T) {
	_, err := ParseCatalog([]byte(`sections: [{key: "a", mode: "list"`))
	assert.Error(t, err)

	dup := `sections: [
		{key: "a", title: "A", step: 1, topic: "t", question: "", mode: "block", fields: []},
		{key: "a", title: "B", step: 1, topic: "u", question: "", mode: "block", fields: []},
	]`
	_, err = ParseCatalog([]byte(dup))
	assert.ErrorContains(t, err, "duplicate section")

	shared := `sections: [
		{key: "a", title: "A", step: 1, topic: "t", question: "", mode: "block", fields: [{name: "x", label: "", type: "text", required: false}]},
		{key: "b", title: "B", step: 1, topic: "x", question: "", mode: "block", fields: []},
	]`
	_, err = ParseCatalog([]byte(shared))
	assert.ErrorContains(t, err, `key "x"`)

	unknownFlag := `sections: [
		{key: "a", title: "A", step: 1, topic: "t", question: "", mode: "block",
		 fields: [{name: "x", label: "", type: "text", required: true, showWhen: "nope"}]},
	]`
	_, err = ParseCatalog([]byte(unknownFlag))
	assert.ErrorContains(t, err, "unknown flag")
}

func TestTopicYesSeedsExactlyOneEntry(t *testing.T) {
	q := newTestQuestionnaire(t, nil)
	c := controller(t, q, "vehicles")
	assert.Empty(t, c.Entries())

	c.SetTopicAnswer("yes")
	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0]["id"])
	assert.Equal(t, "no", entries[0]["has_loan"])

	// already yes with entries: nothing added
	c.SetTopicAnswer("yes")
	assert.Len(t, c.Entries(), 1)
}

func TestTopicNoClearsEntries(t *testing.T) {
	q := newTestQuestionnaire(t, nil)
	c := controller(t, q, "vehicles")
	c.SetTopicAnswer("yes")
	for i := 0; i < 3; i++ {
		_, err := c.AddEntry()
		require.NoError(t, err)
	}
	require.Len(t, c.Entries(), 4)

	c.SetTopicAnswer("no")
	assert.Empty(t, c.Entries())
	v, ok := q.Data.Get("vehicles")
	assert.True(t, ok)
	assert.Equal(t, []any{}, v)
}

func TestTopicNoClearsBlockFields(t *testing.T) {
	q := newTestQuestionnaire(t, nil)
	c := controller(t, q, "prior_bankruptcy")
	c.SetTopicAnswer("yes")
	require.NoError(t, c.SetField("bankruptcy_district", "Northern District"))

	c.SetTopicAnswer("no")
	_, ok := q.Data.Get("bankruptcy_district")
	assert.False(t, ok)
	assert.Equal(t, "no", c.Topic())
}

func TestSeedRunsOnce(t *testing.T) {
	q := newTestQuestionnaire(t, nil)
	c := controller(t, q, "debts")
	assert.Equal(t, "yes", c.Topic())
	require.Len(t, c.Entries(), 1)
	entry := c.Entries()[0]
	assert.Equal(t, []any{}, entry["responsible"])
	assert.Equal(t, "no", entry["dispute"])

	c.SetTopicAnswer("no")

	// a second mount over the same data must not re-seed
	again := NewController(c.Section(), q.Data, fixedIDs())
	assert.Equal(t, "no", again.Topic())
	assert.Empty(t, again.Entries())
}

func TestSeedSkippedWhenTopicAlreadySet(t *testing.T) {
	q := newTestQuestionnaire(t, map[string]any{"has_debts": "no"})
	c := controller(t, q, "debts")
	assert.Equal(t, "no", c.Topic())
	assert.Empty(t, c.Entries())
}

func TestAddEntryIDsAreUnique(t *testing.T) {
	q := newTestQuestionnaire(t, nil)
	c := controller(t, q, "vehicles")
	c.SetTopicAnswer("yes")
	for i := 0; i < 5; i++ {
		_, err := c.AddEntry()
		require.NoError(t, err)
	}
	seen := map[string]bool{}
	for _, e := range c.Entries() {
		id := e["id"].(string)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestIDSourceSkipsTakenIDs(t *testing.T) {
	ids := fixedIDs()
	first := ids.Next(nil)
	second := ids.Next(map[string]bool{"1700000000000001": true})
	assert.Equal(t, "1700000000000000", first)
	assert.Equal(t, "1700000000000002", second)
}

func TestUpdateEntryReplacesStructure(t *testing.T) {
	q := newTestQuestionnaire(t, nil)
	c := controller(t, q, "vehicles")
	c.SetTopicAnswer("yes")
	before := q.Data.Values()
	beforeEntries := before["vehicles"].([]any)

	require.NoError(t, c.UpdateEntry(0, "make", "Honda"))

	assert.Equal(t, "Honda", c.Entries()[0]["make"])
	assert.Nil(t, beforeEntries[0].(map[string]any)["make"], "earlier value map must be untouched")

	assert.ErrorIs(t, c.UpdateEntry(3, "make", "Ford"), ErrEntryIndex)
	assert.ErrorIs(t, c.UpdateEntry(-1, "make", "Ford"), ErrEntryIndex)
	assert.ErrorIs(t, c.UpdateEntry(0, "id", "x"), ErrReadOnlyField)
	assert.ErrorIs(t, c.UpdateEntry(0, "colour", "red"), ErrUnknownField)
}

func TestUpdateEntryLeavesSiblingsAlone(t *testing.T) {
	q := newTestQuestionnaire(t, nil)
	c := controller(t, q, "vehicles")
	c.SetTopicAnswer("yes")
	_, err := c.AddEntry()
	require.NoError(t, err)
	_, err = c.AddEntry()
	require.NoError(t, err)
	for i, name := range []string{"Honda", "Subaru", "Volvo"} {
		require.NoError(t, c.UpdateEntry(i, "make", name))
	}
	first, last := c.Entries()[0], c.Entries()[2]

	require.NoError(t, c.UpdateEntry(1, "has_loan", "yes"))
	require.NoError(t, c.UpdateEntry(1, "make", "Saab"))

	entries := c.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, first, entries[0])
	assert.Equal(t, last, entries[2])
	assert.Equal(t, "Honda", entries[0]["make"])
	assert.Equal(t, "no", entries[0]["has_loan"])
	assert.Equal(t, "Volvo", entries[2]["make"])
	assert.Equal(t, "no", entries[2]["has_loan"])
	assert.Equal(t, "Saab", entries[1]["make"])
	assert.Equal(t, "yes", entries[1]["has_loan"])
	assert.NotEqual(t, entries[0]["id"], entries[1]["id"])
	assert.NotEqual(t, entries[1]["id"], entries[2]["id"])
}

func TestRemoveLastEntryKeepsTopic(t *testing.T) {
	q := newTestQuestionnaire(t, nil)
	c := controller(t, q, "vehicles")
	c.SetTopicAnswer("yes")
	require.NoError(t, c.RemoveEntry(0))

	assert.Empty(t, c.Entries())
	assert.Equal(t, "yes", c.Topic())
	assert.ErrorIs(t, c.RemoveEntry(0), ErrEntryIndex)
}

func TestToggleMember(t *testing.T) {
	q := newTestQuestionnaire(t, nil)
	c := controller(t, q, "debts")

	require.NoError(t, c.ToggleMember(0, "responsible", "self", true))
	require.NoError(t, c.ToggleMember(0, "responsible", "self", true))
	require.NoError(t, c.ToggleMember(0, "responsible", "spouse", true))
	assert.Equal(t, []string{"self", "spouse"}, c.Entries()[0]["responsible"])

	require.NoError(t, c.ToggleMember(0, "responsible", "self", false))
	assert.Equal(t, []string{"spouse"}, c.Entries()[0]["responsible"])

	// unchecking an absent member is a no-op
	require.NoError(t, c.ToggleMember(0, "responsible", "other", false))
	assert.Equal(t, []string{"spouse"}, c.Entries()[0]["responsible"])

	assert.ErrorIs(t, c.ToggleMember(0, "responsible", "cousin", true), ErrUnknownMember)
}

func TestToggleMemberAfterDecodedState(t *testing.T) {
	// state restored from a session decodes lists as []any
	values := map[string]any{
		"has_debts": "yes",
		"debts":     []any{map[string]any{"id": "1", "responsible": []any{"self", "self"}}},
	}
	q := newTestQuestionnaire(t, values)
	c := controller(t, q, "debts")

	require.NoError(t, c.ToggleMember(0, "responsible", "other", true))
	assert.Equal(t, []string{"self", "other"}, c.Entries()[0]["responsible"])
}

func TestEntryFlagsDriveRequiredness(t *testing.T) {
	q := newTestQuestionnaire(t, nil)
	c := controller(t, q, "vehicles")
	c.SetTopicAnswer("yes")
	require.NoError(t, c.UpdateEntry(0, "make", "Honda"))

	missing, err := c.Missing()
	require.NoError(t, err)
	assert.Empty(t, missing)

	require.NoError(t, c.UpdateEntry(0, "has_loan", "yes"))
	flags, err := c.EntryFlags(0)
	require.NoError(t, err)
	assert.True(t, flags["showLoan"])

	missing, err = c.Missing()
	require.NoError(t, err)
	assert.Equal(t, []string{"vehicles.0.lender"}, missing)
}

func TestMembershipFlag(t *testing.T) {
	q := newTestQuestionnaire(t, nil)
	c := controller(t, q, "debts")
	require.NoError(t, c.UpdateEntry(0, "creditor", "Acme Card"))

	missing, err := c.Missing()
	require.NoError(t, err)
	assert.Equal(t, []string{"debts.0.responsible"}, missing)

	require.NoError(t, c.ToggleMember(0, "responsible", "other", true))
	missing, err = c.Missing()
	require.NoError(t, err)
	assert.Equal(t, []string{"debts.0.other_responsible"}, missing)
}

func TestBlockFlagsDriveRequiredness(t *testing.T) {
	q := newTestQuestionnaire(t, nil)
	c := controller(t, q, "prior_bankruptcy")

	missing, err := c.Missing()
	require.NoError(t, err)
	assert.Equal(t, []string{"bankruptcy_last_8_years"}, missing)

	c.SetTopicAnswer("no")
	missing, err = c.Missing()
	require.NoError(t, err)
	assert.Empty(t, missing)

	c.SetTopicAnswer("yes")
	require.NoError(t, c.SetField("bankruptcy_district", "Central"))
	require.NoError(t, c.SetField("bankruptcy_outcome", "discharged"))
	missing, err = c.Missing()
	require.NoError(t, err)
	assert.Equal(t, []string{"bankruptcy_discharged_on"}, missing)

	require.NoError(t, c.SetField("bankruptcy_outcome", "dismissed"))
	missing, err = c.Missing()
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestSliceRejectsForeignKeys(t *testing.T) {
	data := NewFormData(nil, nil)
	s := Slice{data: data, keys: map[string]bool{"a": true}}
	assert.Error(t, s.Update(map[string]any{"b": 1}))
	assert.NoError(t, s.Update(map[string]any{"a": 1}))
	_, ok := s.Get("b")
	assert.False(t, ok)
}

func TestApplyPostedValues(t *testing.T) {
	q := newTestQuestionnaire(t, nil)

	in := url.Values{"owns_vehicles": {"yes"}}
	require.NoError(t, q.Apply(1, in))
	vehicles := controller(t, q, "vehicles")
	require.Len(t, vehicles.Entries(), 1)

	in = url.Values{
		"owns_vehicles":           {"yes"},
		"vehicles.0.make":         {" Subaru "},
		"has_debts":               {"yes"},
		"debts.0.creditor":        {"Acme"},
		"debts.0.responsible":     {"", "self", "spouse"},
		"debts.0.not_a_field":     {"x"},
		"bankruptcy_last_8_years": {"yes"},
	}
	require.NoError(t, q.Apply(1, in))
	assert.Equal(t, "Subaru", vehicles.Entries()[0]["make"])
	debts := controller(t, q, "debts")
	assert.Equal(t, "Acme", debts.Entries()[0]["creditor"])
	assert.Equal(t, []string{"self", "spouse"}, debts.Entries()[0]["responsible"])

	// step 2 keys are ignored when applying step 1
	assert.Equal(t, "", controller(t, q, "prior_bankruptcy").Topic())

	// an emptied checkbox group posts only the marker
	require.NoError(t, q.Apply(1, url.Values{"debts.0.responsible": {""}}))
	assert.Equal(t, []string{}, debts.Entries()[0]["responsible"])
}

func TestQuestionnaireAsWizard(t *testing.T) {
	q := newTestQuestionnaire(t, nil)
	w, err := wizard.New(q.Steps(), nil)
	require.NoError(t, err)
	require.Equal(t, 2, w.Total())

	err = w.Next(nil)
	var verr *wizard.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"owns_vehicles", "debts.0.creditor", "debts.0.responsible"}, verr.Fields)

	controller(t, q, "vehicles").SetTopicAnswer("no")
	debts := controller(t, q, "debts")
	require.NoError(t, debts.UpdateEntry(0, "creditor", "Acme"))
	require.NoError(t, debts.ToggleMember(0, "responsible", "self", true))
	require.NoError(t, w.Next(nil))
	assert.Equal(t, 2, w.Current())

	snap := w.Data(1)
	assert.Equal(t, "no", snap["owns_vehicles"])
	assert.Equal(t, "yes", snap["has_debts"])
	assert.NotContains(t, snap, "bankruptcy_last_8_years")

	controller(t, q, "prior_bankruptcy").SetTopicAnswer("no")
	var got map[string]any
	err = w.Submit(t.Context(), nil, wizard.SubmitFunc(func(_ context.Context, p map[string]any) error {
		got = p
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, "no", got["bankruptcy_last_8_years"])
	assert.Equal(t, "no", got["owns_vehicles"])
}

func TestStepWithBrokenRuleReportsSentinel(t *testing.T) {
	src := `
steps: [{number: 1, title: "Other"}]
sections: [{
	key: "odd", title: "Odd", step: 1, topic: "has_odd"
	question: "Anything else?", mode: "block"
	fields: [{name: "odd_detail", label: "Detail", type: "text", required: true, showWhen: "showDetail"}]
	flags: showDetail: "len(odd_count) > 0"
}]
`
	cat, err := ParseCatalog([]byte(src))
	require.NoError(t, err)
	q := New(cat, NewFormData(map[string]any{"has_odd": "yes"}, nil), fixedIDs())

	steps := q.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, []string{RulesUnavailable}, steps[0].Validate(nil))

	w, err := wizard.New(steps, nil)
	require.NoError(t, err)
	var verr *wizard.ValidationError
	require.ErrorAs(t, w.Submit(t.Context(), nil, wizard.SubmitFunc(func(context.Context, map[string]any) error {
		t.Fatal("submitter must not be called")
		return nil
	})), &verr)
	assert.Equal(t, []string{RulesUnavailable}, verr.Fields)
}

func TestStepViewHidesUnflaggedFields(t *testing.T) {
	q := newTestQuestionnaire(t, nil)
	c := controller(t, q, "vehicles")
	c.SetTopicAnswer("yes")

	views, err := q.StepView(1, []string{"vehicles.0.make"})
	require.NoError(t, err)
	require.Len(t, views, 2)

	v := views[0]
	assert.True(t, v.Shown)
	require.Len(t, v.Entries, 1)
	var names []string
	for _, f := range v.Entries[0].Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"make", "has_loan"}, names)
	assert.True(t, v.Entries[0].Fields[0].Invalid)
	assert.Equal(t, "vehicles.0.make", v.Entries[0].Fields[0].Input)

	debts := views[1]
	require.Len(t, debts.Entries, 1)
	assert.Equal(t, "control-checkboxes", debts.Entries[0].Fields[1].Control.Partial())
}

func TestDoDispatchesSectionOperations(t *testing.T) {
	q := newTestQuestionnaire(t, nil)

	v, err := q.Do(Op{Op: OpTopic, Section: "vehicles", Value: "yes"})
	require.NoError(t, err)
	assert.True(t, v.Shown)
	require.Len(t, v.Entries, 1)

	v, err = q.Do(Op{Op: OpAdd, Section: "vehicles"})
	require.NoError(t, err)
	assert.Len(t, v.Entries, 2)

	v, err = q.Do(Op{Op: OpUpdate, Section: "vehicles", Index: 1, Field: "has_loan", Value: "yes"})
	require.NoError(t, err)
	assert.True(t, v.Entries[1].Flags["showLoan"])
	assert.False(t, v.Entries[0].Flags["showLoan"])

	v, err = q.Do(Op{Op: OpToggle, Section: "debts", Index: 0, Field: "responsible", Member: "other", Checked: true})
	require.NoError(t, err)
	assert.True(t, v.Entries[0].Flags["showOther"])

	v, err = q.Do(Op{Op: OpRemove, Section: "vehicles", Index: 0})
	require.NoError(t, err)
	assert.Len(t, v.Entries, 1)

	v, err = q.Do(Op{Op: OpTopic, Section: "prior_bankruptcy", Value: "yes"})
	require.NoError(t, err)
	_, err = q.Do(Op{Op: OpSet, Section: "prior_bankruptcy", Field: "bankruptcy_outcome", Value: "discharged"})
	require.NoError(t, err)
	v, err = q.Do(Op{Op: OpSet, Section: "prior_bankruptcy", Field: "bankruptcy_district", Value: "N.D. Cal."})
	require.NoError(t, err)
	assert.True(t, v.Flags["showDischargeDate"])

	_, err = q.Do(Op{Op: "explode", Section: "vehicles"})
	assert.ErrorIs(t, err, ErrUnknownOp)
	_, err = q.Do(Op{Op: OpAdd, Section: "nope"})
	assert.Error(t, err)
	_, err = q.Do(Op{Op: OpRemove, Section: "vehicles", Index: 9})
	assert.ErrorIs(t, err, ErrEntryIndex)
}
