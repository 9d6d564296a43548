// Package views renders the applicant-facing pages from embedded templates.
package views

import (
	"bytes"
	"embed"
	"html/template"
	"log"
	"net/http"

	"github.com/parisxmas/intake/internal/forms"
	"github.com/parisxmas/intake/internal/questionnaire"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names.
const (
	PageWizard        = "wizard"
	PageQuestionnaire = "questionnaire"
	PageLogin         = "login"
	PageDone          = "done"
	PageError         = "error"
)

var pageNames = []string{PageWizard, PageQuestionnaire, PageLogin, PageDone, PageError}

// Page is what the layout needs from every page.
type Page struct {
	Title    string
	LoggedIn bool
	UserName string
	Flash    string
	Error    string
}

// StepLink is one entry of the step navigation.
type StepLink struct {
	Number  int
	Title   string
	Current bool
}

type GroupView struct {
	Name     string
	Controls []forms.Control
}

// SignatureView is the signature sub-flow as drawn on its step.
type SignatureView struct {
	Field   string
	Label   string
	Mode    string
	Active  string
	Value   string
	Preview template.URL
	Invalid bool
	// Error replaces the sub-flow when its fields are missing from the schema.
	Error string
}

type WizardPage struct {
	Page
	Step      int
	Total     int
	IsFirst   bool
	IsLast    bool
	Steps     []StepLink
	Before    []forms.StaticBlock
	After     []forms.StaticBlock
	Groups    []GroupView
	Signature *SignatureView
}

type QuestionnairePage struct {
	Page
	Step      int
	Total     int
	StepTitle string
	IsFirst   bool
	IsLast    bool
	Steps     []StepLink
	Sections  []questionnaire.SectionView
	Live      bool
}

type LoginPage struct {
	Page
	Email string
	Next  string
}

type MessagePage struct {
	Page
	Message  string
	Link     string
	LinkText string
}

var funcs = template.FuncMap{
	// selected reports whether any option of a select is chosen.
	"selected": func(opts []forms.ChoiceOption) bool {
		for _, o := range opts {
			if o.Selected {
				return true
			}
		}
		return false
	},
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	base, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/controls.html")
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, err
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render writes page with status. The page is executed into a buffer first
// so a template failure still produces a clean 500.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data any) {
	t, ok := r.pages[page]
	if !ok {
		log.Printf("views: unknown page %q", page)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Printf("views: render %s: %v", page, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
