package views

import (
	"html/template"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/intake/internal/forms"
	"github.com/parisxmas/intake/internal/models"
	"github.com/parisxmas/intake/internal/questionnaire"
)

func TestRenderWizardControls(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	defs := []models.FieldDefinition{
		{Name: "email", Label: "Email", FieldType: models.FieldEmail, IsRequired: true},
		{Name: "password", Label: "Password", FieldType: models.FieldPassword},
		{Name: "state", Label: "State", FieldType: models.FieldSelect, Options: models.Options{{Value: "ca", Label: "California"}}},
		{Name: "debts", Label: "Debts", FieldType: models.FieldCheckboxGroup, Options: models.Options{{Value: "medical", Label: "Medical"}}},
		{Name: "urgent", Label: "Urgent", FieldType: models.FieldRadioWithInput, Options: models.Options{{Value: "other", Label: "Other", HasInput: true}}},
		{Name: "client_signature", Label: "Signature", FieldType: models.FieldSignature},
	}
	data := map[string]any{"email": "a@b.co", "password": "hunter22", "debts_medical": true}
	page := WizardPage{
		Page:    Page{Title: "Apply"},
		Step:    1,
		Total:   4,
		IsFirst: true,
		Steps:   []StepLink{{Number: 1, Title: "Step 1", Current: true}},
		Before:  []forms.StaticBlock{{Title: "Notice", Body: template.HTML("<p>read me</p>")}},
		Groups:  []GroupView{{Name: "About you", Controls: forms.RenderAll(defs, data, []string{"email"})}},
		Signature: &SignatureView{Field: "client_signature", Label: "Signature", Mode: "draw",
			Value: "data:image/png;base64,AAAA", Preview: template.URL("data:image/png;base64,AAAA")},
	}

	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, PageWizard, page)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, `name="email"`)
	assert.Contains(t, body, `value="a@b.co"`)
	assert.Contains(t, body, `aria-invalid="true"`)
	assert.NotContains(t, body, "hunter22")
	assert.Contains(t, body, `name="debts_medical" value="on" checked`)
	assert.Contains(t, body, `name="urgent_input_other"`)
	assert.Contains(t, body, "<p>read me</p>")
	assert.Contains(t, body, `formaction="/apply/signature"`)
	assert.Contains(t, body, `src="data:image/png;base64,AAAA"`)
	assert.Contains(t, body, `value="next"`)
	assert.NotContains(t, body, `value="back"`)
}

func TestRenderQuestionnaireSection(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	def := models.FieldDefinition{Name: "debts.0.responsible", Label: "Who owes it", FieldType: models.FieldCheckboxGroup,
		Options: models.Options{{Value: "self", Label: "Me"}, {Value: "spouse", Label: "Spouse"}}}
	page := QuestionnairePage{
		Page: Page{Title: "Questionnaire", LoggedIn: true}, Step: 1, Total: 2, StepTitle: "Debts", IsFirst: true,
		Sections: []questionnaire.SectionView{{
			Key: "debts", Title: "Debts", Question: "Do you owe money?", Topic: "has_debts", Answer: "yes",
			Mode: questionnaire.ModeList, Shown: true,
			Entries: []questionnaire.EntryView{{Index: 0, ID: "1", Fields: []questionnaire.FieldView{
				{Name: "responsible", Input: def.Name, Control: forms.RenderList(def, []string{"spouse"})},
			}}},
		}},
	}

	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, PageQuestionnaire, page)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, `name="has_debts" value="yes" checked`)
	assert.Contains(t, body, `<input type="hidden" name="debts.0.responsible" value="">`)
	assert.Contains(t, body, `name="debts.0.responsible" value="spouse" checked`)
	assert.Contains(t, body, `formaction="/questionnaire/sections/debts/entries/0/delete"`)
	assert.Contains(t, body, `formaction="/questionnaire/sections/debts/entries"`)
}

func TestRenderUnknownPage(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	r.Render(rec, http.StatusOK, "nope", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
