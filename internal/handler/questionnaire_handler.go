package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/parisxmas/intake/internal/fault"
	"github.com/parisxmas/intake/internal/questionnaire"
	"github.com/parisxmas/intake/internal/service"
	"github.com/parisxmas/intake/internal/session"
	"github.com/parisxmas/intake/internal/views"
	"github.com/parisxmas/intake/internal/wizard"
)

// QuestionnaireHandler serves the financial questionnaire to signed-in
// applicants.
type QuestionnaireHandler struct {
	intake   *service.IntakeService
	catalog  *questionnaire.Catalog
	ids      *questionnaire.IDSource
	sessions *session.Manager
	binder   *Binder
	views    *views.Renderer
	formID   string
	live     bool
}

func NewQuestionnaireHandler(intake *service.IntakeService, catalog *questionnaire.Catalog, ids *questionnaire.IDSource, sessions *session.Manager, binder *Binder, v *views.Renderer, formID string, live bool) *QuestionnaireHandler {
	return &QuestionnaireHandler{
		intake:   intake,
		catalog:  catalog,
		ids:      ids,
		sessions: sessions,
		binder:   binder,
		views:    v,
		formID:   formID,
		live:     live,
	}
}

// questionnaireFlow is one request's view of the questionnaire.
type questionnaireFlow struct {
	sess *session.Data
	q    *questionnaire.Questionnaire
	wz   *wizard.Wizard
}

// number is the catalog step number of the current wizard position.
func (f *questionnaireFlow) number() int {
	return f.q.Catalog.StepNumbers()[f.wz.Current()-1]
}

// persist copies the form data back into the session.
func (f *questionnaireFlow) persist() {
	f.sess.FormData = f.q.Data.Values()
	f.sess.Seeded = f.q.Data.Seeded()
}

func (h *QuestionnaireHandler) open(w http.ResponseWriter, r *http.Request) *questionnaireFlow {
	sess, err := loadSession(w, r, h.sessions, h.binder)
	if err != nil {
		log.Printf("questionnaire: session: %v", err)
		renderMessage(h.views, w, r, http.StatusInternalServerError, views.PageError, "Questionnaire unavailable", genericFailure)
		return nil
	}
	q := questionnaire.New(h.catalog, questionnaire.NewFormData(sess.FormData, sess.Seeded), h.ids)
	wz, err := wizard.New(q.Steps(), &sess.Questionnaire)
	if err != nil {
		log.Printf("questionnaire: %v", err)
		renderMessage(h.views, w, r, http.StatusInternalServerError, views.PageError, "Questionnaire unavailable", genericFailure)
		return nil
	}
	f := &questionnaireFlow{sess: sess, q: q, wz: wz}
	f.persist()
	return f
}

func (h *QuestionnaireHandler) Show(w http.ResponseWriter, r *http.Request) {
	release, err := lockSession(h.sessions, r)
	if err != nil {
		writeBusy(h.views, w, r)
		return
	}
	defer release()

	f := h.open(w, r)
	if f == nil {
		return
	}
	if f.wz.State().Submitted {
		h.done(w, r, f.sess)
		return
	}
	h.render(w, r, http.StatusOK, f, nil)
}

// Apply handles next, back, save and submit. Posted answers of the current
// step are applied first whichever button was used.
func (h *QuestionnaireHandler) Apply(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeBadForm(h.views, w, r, err)
		return
	}
	release, err := lockSession(h.sessions, r)
	if err != nil {
		writeBusy(h.views, w, r)
		return
	}
	defer release()

	f := h.open(w, r)
	if f == nil {
		return
	}
	if f.wz.State().Submitted {
		saveAndRedirect(w, r, h.sessions, f.sess, "/questionnaire")
		return
	}

	in := r.PostForm
	if err := f.q.Apply(f.number(), in); err != nil {
		f.sess.FlashError = fault.Message(err, "Some answers could not be applied.")
		log.Printf("questionnaire: apply: %v", err)
		f.persist()
		saveAndRedirect(w, r, h.sessions, f.sess, "/questionnaire")
		return
	}
	f.persist()

	action := in.Get("action")
	switch action {
	case "next":
		err = f.wz.Next(in)
	case "back":
		err = f.wz.Back(in)
	case "save":
		err = f.wz.SaveProgress(r.Context(), in, wizard.ProgressFunc(func(ctx context.Context, _ map[string]any, step int) error {
			return h.intake.SaveProgress(ctx, f.sess.UserID, h.formID, f.q.Data.Snapshot(), step)
		}))
		if err == nil {
			f.sess.Flash = "Your answers have been saved."
		}
	case "submit":
		err = f.wz.Submit(r.Context(), in, wizard.SubmitFunc(func(ctx context.Context, _ map[string]any) error {
			_, err := h.intake.SubmitApplication(ctx, f.sess.UserID, h.formID, f.q.Data.Snapshot(), f.wz.Current())
			return err
		}))
	default:
		err = errUnknownAction
	}

	var verr *wizard.ValidationError
	switch {
	case errors.As(err, &verr) && slices.Contains(verr.Fields, questionnaire.RulesUnavailable):
		f.persist()
		if err := h.sessions.Save(r.Context(), f.sess); err != nil {
			log.Printf("session save failed: %v", err)
		}
		renderMessage(h.views, w, r, http.StatusInternalServerError, views.PageError, "Questionnaire unavailable", genericFailure)
		return
	case errors.As(err, &verr) && verr.Step != f.wz.Current():
		if err := f.wz.GoTo(verr.Step, in); err != nil {
			log.Printf("questionnaire: back to step %d: %v", verr.Step, err)
		}
		f.sess.FlashError = "Please finish step " + strconv.Itoa(verr.Step) + " first."
		h.render(w, r, http.StatusUnprocessableEntity, f, verr.Fields)
		return
	case errors.As(err, &verr):
		f.sess.FlashError = "Please answer the highlighted questions."
		h.render(w, r, http.StatusUnprocessableEntity, f, verr.Fields)
		return
	case errors.Is(err, wizard.ErrStepOutOfRange), errors.Is(err, wizard.ErrNotFinalStep):
		f.sess.FlashError = "That step does not exist."
	case err != nil:
		if !fault.IsClientError(err) {
			log.Printf("questionnaire: %s for session %s: %v", action, f.sess.ID, err)
		}
		f.sess.FlashError = fault.Message(err, genericFailure)
	}
	saveAndRedirect(w, r, h.sessions, f.sess, "/questionnaire")
}

// Topic sets a section's yes/no answer.
func (h *QuestionnaireHandler) Topic(w http.ResponseWriter, r *http.Request) {
	h.section(w, r, func(sec *questionnaire.Section, in url.Values) (questionnaire.Op, error) {
		return questionnaire.Op{Op: questionnaire.OpTopic, Value: in.Get(sec.Topic)}, nil
	})
}

func (h *QuestionnaireHandler) AddEntry(w http.ResponseWriter, r *http.Request) {
	h.section(w, r, func(*questionnaire.Section, url.Values) (questionnaire.Op, error) {
		return questionnaire.Op{Op: questionnaire.OpAdd}, nil
	})
}

// UpdateEntry sets one field of one entry from the posted field and value.
func (h *QuestionnaireHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	h.section(w, r, func(_ *questionnaire.Section, in url.Values) (questionnaire.Op, error) {
		i, err := entryIndex(r)
		return questionnaire.Op{Op: questionnaire.OpUpdate, Index: i, Field: in.Get("field"), Value: in.Get("value")}, err
	})
}

func (h *QuestionnaireHandler) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	h.section(w, r, func(*questionnaire.Section, url.Values) (questionnaire.Op, error) {
		i, err := entryIndex(r)
		return questionnaire.Op{Op: questionnaire.OpRemove, Index: i}, err
	})
}

// ToggleMember checks or unchecks one member of an entry's multi-select.
func (h *QuestionnaireHandler) ToggleMember(w http.ResponseWriter, r *http.Request) {
	h.section(w, r, func(_ *questionnaire.Section, in url.Values) (questionnaire.Op, error) {
		i, err := entryIndex(r)
		checked, _ := strconv.ParseBool(in.Get("checked"))
		return questionnaire.Op{Op: questionnaire.OpToggle, Index: i, Field: in.Get("field"), Member: in.Get("member"), Checked: checked}, err
	})
}

func entryIndex(r *http.Request) (int, error) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || i < 0 {
		return 0, questionnaire.ErrEntryIndex
	}
	return i, nil
}

// section runs one section operation. Page posts carry the whole step, so
// those answers are applied before the operation. JSON callers get the
// updated section; pages are redirected back to it.
func (h *QuestionnaireHandler) section(w http.ResponseWriter, r *http.Request, build func(*questionnaire.Section, url.Values) (questionnaire.Op, error)) {
	if err := r.ParseForm(); err != nil {
		writeBadForm(h.views, w, r, err)
		return
	}
	sec, ok := h.catalog.Section(chi.URLParam(r, "key"))
	if !ok {
		if wantsJSON(r) {
			writeError(w, http.StatusNotFound, "section not found")
			return
		}
		renderMessage(h.views, w, r, http.StatusNotFound, views.PageError, "Not found", "That section does not exist.")
		return
	}
	release, err := lockSession(h.sessions, r)
	if err != nil {
		writeBusy(h.views, w, r)
		return
	}
	defer release()

	f := h.open(w, r)
	if f == nil {
		return
	}
	if f.wz.State().Submitted {
		if wantsJSON(r) {
			writeError(w, http.StatusConflict, wizard.ErrAlreadySubmitted.Error())
			return
		}
		saveAndRedirect(w, r, h.sessions, f.sess, "/questionnaire")
		return
	}

	err = f.q.Apply(f.number(), r.PostForm)
	var view questionnaire.SectionView
	if err == nil {
		var op questionnaire.Op
		op, err = build(sec, r.PostForm)
		if err == nil {
			op.Section = sec.Key
			view, err = f.q.Do(op)
		}
	}
	f.persist()

	if wantsJSON(r) {
		if err := h.sessions.Save(r.Context(), f.sess); err != nil {
			writeFault(w, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}
	if err != nil {
		f.sess.FlashError = "That change could not be applied: " + err.Error() + "."
	}
	saveAndRedirect(w, r, h.sessions, f.sess, "/questionnaire#section-"+sec.Key)
}

func (h *QuestionnaireHandler) done(w http.ResponseWriter, r *http.Request, sess *session.Data) {
	data := views.MessagePage{
		Page:    page(r, sess, "Questionnaire received"),
		Message: "Thank you. Your financial questionnaire has been submitted.",
	}
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		log.Printf("session save failed: %v", err)
	}
	h.views.Render(w, http.StatusOK, views.PageDone, data)
}

func (h *QuestionnaireHandler) render(w http.ResponseWriter, r *http.Request, status int, f *questionnaireFlow, offending []string) {
	cur := f.number()
	sections, err := f.q.StepView(cur, offending)
	if err != nil {
		log.Printf("questionnaire: step %d: %v", cur, err)
		renderMessage(h.views, w, r, http.StatusInternalServerError, views.PageError, "Questionnaire unavailable", genericFailure)
		return
	}
	pg := views.QuestionnairePage{
		Page:      page(r, f.sess, "Financial questionnaire"),
		Step:      f.wz.Current(),
		Total:     f.wz.Total(),
		StepTitle: h.catalog.StepTitle(cur),
		IsFirst:   f.wz.IsFirst(),
		IsLast:    f.wz.IsLast(),
		Sections:  sections,
		Live:      h.live,
	}
	for _, n := range h.catalog.StepNumbers() {
		pg.Steps = append(pg.Steps, views.StepLink{Number: n, Title: h.catalog.StepTitle(n), Current: n == cur})
	}
	if err := h.sessions.Save(r.Context(), f.sess); err != nil {
		log.Printf("session save failed: %v", err)
	}
	h.views.Render(w, status, views.PageQuestionnaire, pg)
}
