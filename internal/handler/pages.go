package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/parisxmas/intake/internal/auth"
	"github.com/parisxmas/intake/internal/models"
	"github.com/parisxmas/intake/internal/questionnaire"
	"github.com/parisxmas/intake/internal/service"
	"github.com/parisxmas/intake/internal/session"
	"github.com/parisxmas/intake/internal/views"
	"github.com/parisxmas/intake/internal/wizard"
)

const genericFailure = "Something went wrong, please try again."

// Binder attaches a session to the signed-in user and restores the user's
// stored progress the first time it sees them.
type Binder struct {
	intake          *service.IntakeService
	catalog         *questionnaire.Catalog
	ids             *questionnaire.IDSource
	formID          string
	questionnaireID string
}

func NewBinder(intake *service.IntakeService, catalog *questionnaire.Catalog, ids *questionnaire.IDSource, formID, questionnaireID string) *Binder {
	return &Binder{intake: intake, catalog: catalog, ids: ids, formID: formID, questionnaireID: questionnaireID}
}

// Bind is a no-op when sess already belongs to userID. Otherwise the
// questionnaire state is reset, and both the intake and the questionnaire
// resume from their stored submissions when there are any. An anonymous
// visitor's unsaved intake answers survive a login without stored progress.
func (b *Binder) Bind(ctx context.Context, sess *session.Data, userID string) error {
	if sess.UserID == userID {
		return nil
	}
	sess.UserID = userID
	sess.Questionnaire = wizard.State{}
	sess.FormData = map[string]any{}
	sess.Seeded = map[string]bool{}
	if userID == "" {
		return nil
	}

	sub, err := b.intake.Resume(ctx, userID, b.formID)
	if err != nil {
		return err
	}
	if sub != nil {
		steps, err := b.intake.Steps(ctx, b.formID)
		if err != nil {
			return err
		}
		st := wizard.Resume(wizard.SchemaSteps(steps), sub.SubmissionData, sub.CurrentStep)
		st.Submitted = sub.Status == models.StatusSubmitted
		sess.Intake = *st
	}

	sub, err = b.intake.Resume(ctx, userID, b.questionnaireID)
	if err != nil || sub == nil {
		return err
	}
	data := questionnaire.NewFormData(map[string]any(sub.SubmissionData), nil)
	q := questionnaire.New(b.catalog, data, b.ids)
	st := wizard.Resume(q.Steps(), data.Snapshot(), sub.CurrentStep)
	st.Submitted = sub.Status == models.StatusSubmitted
	sess.Questionnaire = *st
	sess.FormData = data.Values()
	sess.Seeded = data.Seeded()
	return nil
}

// page fills the layout fields and consumes the pending flash messages.
func page(r *http.Request, sess *session.Data, title string) views.Page {
	p := views.Page{Title: title}
	if claims := auth.GetUser(r.Context()); claims != nil {
		p.LoggedIn = true
		p.UserName = claims.Email
	}
	if sess != nil {
		p.Flash, p.Error = sess.TakeFlash()
	}
	return p
}

// renderMessage draws the error or confirmation page.
func renderMessage(v *views.Renderer, w http.ResponseWriter, r *http.Request, status int, name, title, message string) {
	data := views.MessagePage{Page: page(r, nil, title), Message: message, Link: "/apply", LinkText: "Back to the application"}
	v.Render(w, status, name, data)
}

// lockSession marks the session named by the request cookie as in use
// before it is loaded, so no other request saves over it meanwhile. A
// request without a cookie gets a new session nobody else holds.
func lockSession(sessions *session.Manager, r *http.Request) (func(), error) {
	c, err := r.Cookie(session.CookieName)
	if err != nil || c.Value == "" {
		return func() {}, nil
	}
	return sessions.Acquire(c.Value)
}

// writeBusy answers a request that found its session locked.
func writeBusy(v *views.Renderer, w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		writeError(w, http.StatusConflict, session.ErrBusy.Error())
		return
	}
	renderMessage(v, w, r, http.StatusConflict, views.PageError, "Please wait", "Your previous request is still being processed.")
}

// loadSession loads or starts the visitor's session and binds it to the
// signed-in user.
func loadSession(w http.ResponseWriter, r *http.Request, sessions *session.Manager, binder *Binder) (*session.Data, error) {
	sess, err := sessions.FromRequest(w, r)
	if err != nil {
		return nil, err
	}
	userID := ""
	if claims := auth.GetUser(r.Context()); claims != nil {
		userID = claims.UserID
	} else if sess.UserID != "" {
		// The login token expired or was cleared; the account's answers
		// stay with the account.
		log.Printf("session %s: login gone, starting over", sess.ID)
		*sess = *sessions.New()
		http.SetCookie(w, sessions.Cookie(sess.ID))
		return sess, nil
	}
	if err := binder.Bind(r.Context(), sess, userID); err != nil {
		return nil, err
	}
	return sess, nil
}

// saveAndRedirect persists sess and answers with a see-other redirect.
func saveAndRedirect(w http.ResponseWriter, r *http.Request, sessions *session.Manager, sess *session.Data, to string) {
	if err := sessions.Save(r.Context(), sess); err != nil {
		log.Printf("session save failed: %v", err)
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}
