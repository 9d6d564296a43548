package handler

import (
	"context"
	"errors"
	"html/template"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/parisxmas/intake/internal/auth"
	"github.com/parisxmas/intake/internal/fault"
	"github.com/parisxmas/intake/internal/forms"
	"github.com/parisxmas/intake/internal/models"
	"github.com/parisxmas/intake/internal/service"
	"github.com/parisxmas/intake/internal/session"
	"github.com/parisxmas/intake/internal/signature"
	"github.com/parisxmas/intake/internal/views"
	"github.com/parisxmas/intake/internal/wizard"
)

// signatureUpload is the file input of the signature upload method.
const signatureUpload = "signature_file"

var errUnknownAction = fault.NewClientError("Unknown action.", nil)

// IntakeHandler serves the applicant intake wizard.
type IntakeHandler struct {
	intake    *service.IntakeService
	docs      *service.DocumentService
	authSvc   *service.AuthService
	sessions  *session.Manager
	binder    *Binder
	views     *views.Renderer
	formID    string
	maxUpload int64
	secure    bool
}

func NewIntakeHandler(intake *service.IntakeService, docs *service.DocumentService, authSvc *service.AuthService, sessions *session.Manager, binder *Binder, v *views.Renderer, formID string, maxUpload int64, secure bool) *IntakeHandler {
	return &IntakeHandler{
		intake:    intake,
		docs:      docs,
		authSvc:   authSvc,
		sessions:  sessions,
		binder:    binder,
		views:     v,
		formID:    formID,
		maxUpload: maxUpload,
		secure:    secure,
	}
}

// flow is one request's view of the wizard.
type flow struct {
	sess  *session.Data
	steps []forms.Step
	wz    *wizard.Wizard
}

func (f *flow) step() forms.Step { return f.steps[f.wz.Current()-1] }

// open loads the session and binds the composed schema to its wizard state.
// It renders the error page itself and returns nil on failure.
func (h *IntakeHandler) open(w http.ResponseWriter, r *http.Request) *flow {
	sess, err := loadSession(w, r, h.sessions, h.binder)
	if err != nil {
		log.Printf("intake: session: %v", err)
		renderMessage(h.views, w, r, http.StatusInternalServerError, views.PageError, "Application unavailable", genericFailure)
		return nil
	}
	steps, err := h.intake.Steps(r.Context(), h.formID)
	if err != nil {
		log.Printf("intake: form %s: %v", h.formID, err)
		renderMessage(h.views, w, r, http.StatusInternalServerError, views.PageError, "Application unavailable",
			"The application form is not available right now. Please try again later.")
		return nil
	}
	if sess.UserID != "" {
		// the account exists already
		steps = forms.Relax(steps, models.FieldPassword)
	}
	wz, err := wizard.New(wizard.SchemaSteps(steps), &sess.Intake)
	if err != nil {
		log.Printf("intake: form %s: %v", h.formID, err)
		renderMessage(h.views, w, r, http.StatusInternalServerError, views.PageError, "Application unavailable", genericFailure)
		return nil
	}
	return &flow{sess: sess, steps: steps, wz: wz}
}

func (h *IntakeHandler) Show(w http.ResponseWriter, r *http.Request) {
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
	h.render(w, r, http.StatusOK, f, f.wz.Data(f.wz.Current()), nil)
}

// Apply handles the wizard buttons: next, back, goto:N, save and submit.
func (h *IntakeHandler) Apply(w http.ResponseWriter, r *http.Request) {
	if err := h.parse(w, r); err != nil {
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
		saveAndRedirect(w, r, h.sessions, f.sess, "/apply")
		return
	}

	in, err := h.prepare(r.Context(), r, f)
	if err != nil {
		f.sess.FlashError = fault.Message(err, "Your files could not be uploaded. Please try again.")
		saveAndRedirect(w, r, h.sessions, f.sess, "/apply")
		return
	}

	var submitted *models.User
	action := in.Get("action")
	switch {
	case action == "next":
		err = f.wz.Next(in)
	case action == "back":
		err = f.wz.Back(in)
	case strings.HasPrefix(action, "goto:"):
		n, convErr := strconv.Atoi(strings.TrimPrefix(action, "goto:"))
		if convErr != nil {
			err = wizard.ErrStepOutOfRange
			break
		}
		err = f.wz.GoTo(n, in)
	case action == "save":
		err = f.wz.SaveProgress(r.Context(), in, wizard.ProgressFunc(func(ctx context.Context, payload map[string]any, step int) error {
			return h.intake.SaveProgress(ctx, f.sess.UserID, h.formID, payload, step)
		}))
		if err == nil {
			f.sess.Flash = "Your progress has been saved."
		}
	case action == "submit":
		err = f.wz.Submit(r.Context(), in, wizard.SubmitFunc(func(ctx context.Context, payload map[string]any) error {
			user, err := h.intake.SubmitApplication(ctx, f.sess.UserID, h.formID, payload, f.wz.Current())
			submitted = user
			return err
		}))
	default:
		err = errUnknownAction
	}

	var verr *wizard.ValidationError
	switch {
	case errors.As(err, &verr) && verr.Step != f.wz.Current():
		// A step short of the target is incomplete. Moving there keeps
		// what was typed here.
		if err := f.wz.GoTo(verr.Step, in); err != nil {
			log.Printf("intake: back to step %d: %v", verr.Step, err)
		}
		f.sess.FlashError = "Please complete step " + strconv.Itoa(verr.Step) + " first."
		h.render(w, r, http.StatusUnprocessableEntity, f, f.wz.Data(f.wz.Current()), verr.Fields)
		return
	case errors.As(err, &verr):
		data := forms.Capture(f.step().Fields(), in)
		f.sess.FlashError = "Please complete the highlighted fields."
		h.render(w, r, http.StatusUnprocessableEntity, f, data, verr.Fields)
		return
	case errors.Is(err, wizard.ErrStepOutOfRange), errors.Is(err, wizard.ErrNotFinalStep):
		f.sess.FlashError = "That step does not exist."
	case err != nil:
		if !fault.IsClientError(err) {
			log.Printf("intake: %s for session %s: %v", action, f.sess.ID, err)
		}
		f.sess.FlashError = fault.Message(err, genericFailure)
	}

	if submitted != nil {
		if err := h.signIn(w, f.sess, submitted); err != nil {
			log.Printf("intake: sign in after submit: %v", err)
		}
	}
	saveAndRedirect(w, r, h.sessions, f.sess, "/apply")
}

// Signature handles the signature sub-flow buttons. The rest of the posted
// step is snapshotted as well, so switching methods never loses typed input.
func (h *IntakeHandler) Signature(w http.ResponseWriter, r *http.Request) {
	if err := h.parse(w, r); err != nil {
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
		saveAndRedirect(w, r, h.sessions, f.sess, "/apply")
		return
	}

	if err := h.signatureOp(r, &f.sess.Signature); err != nil {
		f.sess.FlashError = signatureMessage(err)
	}
	in, err := h.prepare(r.Context(), r, f)
	if err != nil {
		f.sess.FlashError = fault.Message(err, "Your files could not be uploaded. Please try again.")
	} else {
		f.wz.Snapshot(in)
	}
	saveAndRedirect(w, r, h.sessions, f.sess, "/apply")
}

func (h *IntakeHandler) signatureOp(r *http.Request, sig *signature.Capture) error {
	op, arg, _ := strings.Cut(r.PostFormValue("op"), ":")
	switch op {
	case "select":
		return sig.Select(signature.Method(arg))
	case "save":
		return sig.SaveDrawingDataURL(r.PostFormValue("canvas"))
	case "upload":
		file, _, err := r.FormFile(signatureUpload)
		if err != nil {
			return signature.ErrEmptySignature
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, signature.MaxUploadBytes+1))
		if err != nil {
			return err
		}
		return sig.Upload(data)
	case "clear":
		sig.Clear()
		return nil
	}
	return signature.ErrUnknownMethod
}

func signatureMessage(err error) string {
	switch {
	case errors.Is(err, signature.ErrEmptySignature):
		return "Please draw or upload your signature first."
	case errors.Is(err, signature.ErrNotAnImage):
		return "The signature must be a PNG, JPEG or GIF image under 2 MB."
	case errors.Is(err, signature.ErrUnknownMethod):
		return "Unknown signature option."
	}
	log.Printf("intake: signature: %v", err)
	return genericFailure
}

func (h *IntakeHandler) parse(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return err
	}
	return nil
}

// prepare completes the posted values of the current step with what the
// browser does not send back: the stored password, the signature image
// and references to files uploaded on an earlier visit. New files are
// stored as documents and referenced by id.
func (h *IntakeHandler) prepare(ctx context.Context, r *http.Request, f *flow) (url.Values, error) {
	in := url.Values{}
	for k, v := range r.PostForm {
		in[k] = append([]string(nil), v...)
	}
	stored := f.wz.Data(f.wz.Current())

	for _, def := range f.step().Fields() {
		switch def.FieldType {
		case models.FieldPassword:
			if in.Get(def.Name) == "" {
				if s, _ := stored[def.Name].(string); s != "" {
					in.Set(def.Name, s)
				}
			}
		case models.FieldSignature:
			in.Set(def.Name, f.sess.Signature.Value())
		case models.FieldFile:
			id, err := h.storeFile(ctx, r, f.sess, def.Name)
			if err != nil {
				return nil, err
			}
			if id == "" {
				id, _ = stored[def.Name].(string)
			}
			in.Set(def.Name, id)
		}
	}
	return in, nil
}

// storeFile uploads the file posted under name, returning "" when none was.
func (h *IntakeHandler) storeFile(ctx context.Context, r *http.Request, sess *session.Data, name string) (string, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[name]) == 0 {
		return "", nil
	}
	header := r.MultipartForm.File[name][0]
	if header.Size == 0 {
		return "", nil
	}
	file, err := header.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	doc, err := h.docs.Upload(ctx, "intake/"+sess.ID, header.Filename, data, header.Header.Get("Content-Type"), sess.UserID)
	if err != nil {
		return "", err
	}
	return doc.ID, nil
}

// signIn issues the login cookie for the account a submission created.
func (h *IntakeHandler) signIn(w http.ResponseWriter, sess *session.Data, user *models.User) error {
	res, err := h.authSvc.Issue(user)
	if err != nil {
		return err
	}
	http.SetCookie(w, loginCookie(res.Token, h.secure))
	sess.UserID = user.ID
	return nil
}

func (h *IntakeHandler) done(w http.ResponseWriter, r *http.Request, sess *session.Data) {
	data := views.MessagePage{
		Page:    page(r, sess, "Application received"),
		Message: "Thank you. Your application has been submitted and our team will be in touch.",
	}
	if auth.GetUser(r.Context()) != nil {
		data.Link, data.LinkText = "/questionnaire", "Continue to the financial questionnaire"
	}
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		log.Printf("session save failed: %v", err)
	}
	h.views.Render(w, http.StatusOK, views.PageDone, data)
}

// render draws the current step from data, flagging offending inputs.
func (h *IntakeHandler) render(w http.ResponseWriter, r *http.Request, status int, f *flow, data map[string]any, offending []string) {
	st := f.step()
	pg := views.WizardPage{
		Page:    page(r, f.sess, "Application"),
		Step:    f.wz.Current(),
		Total:   f.wz.Total(),
		IsFirst: f.wz.IsFirst(),
		IsLast:  f.wz.IsLast(),
		Before:  st.Before,
		After:   st.After,
	}
	for _, s := range f.steps {
		pg.Steps = append(pg.Steps, views.StepLink{Number: s.Number, Title: stepTitle(s), Current: s.Number == st.Number})
	}
	for _, g := range st.Groups {
		pg.Groups = append(pg.Groups, views.GroupView{Name: g.Name, Controls: forms.RenderAll(g.Fields, data, offending)})
	}
	if sig := forms.FieldsOfType(st, models.FieldSignature); len(sig) > 0 {
		pg.Signature = h.signatureView(f, sig[0], offending)
		if pg.Signature.Error != "" {
			pg.Error = pg.Signature.Error
		}
	}
	if err := h.sessions.Save(r.Context(), f.sess); err != nil {
		log.Printf("session save failed: %v", err)
	}
	h.views.Render(w, status, views.PageWizard, pg)
}

func (h *IntakeHandler) signatureView(f *flow, def models.FieldDefinition, offending []string) *views.SignatureView {
	sv := &views.SignatureView{Field: def.Name, Label: def.Label}
	if f.step().Number == service.SignatureStep {
		if err := service.CheckSignatureStep(f.steps); err != nil {
			log.Printf("intake: form %s: %v", h.formID, err)
			sv.Error = "The signature section of this form is misconfigured. Please contact our office."
			return sv
		}
	}
	sig := f.sess.Signature
	sv.Mode = string(sig.Mode)
	if sv.Mode == "" {
		sv.Mode = string(signature.MethodDraw)
	}
	sv.Active = string(sig.Active)
	sv.Value = sig.Value()
	// The value is always a PNG data URL produced by the signature package.
	sv.Preview = template.URL(sv.Value)
	for _, n := range offending {
		if n == def.Name {
			sv.Invalid = true
		}
	}
	return sv
}

// stepTitle names a step after its first group.
func stepTitle(s forms.Step) string {
	if len(s.Groups) == 0 {
		return "Step " + strconv.Itoa(s.Number)
	}
	return s.Groups[0].Name
}

func writeBadForm(v *views.Renderer, w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	msg := "The form could not be read."
	if errors.As(err, &tooLarge) {
		msg = "The uploaded files are too large."
	}
	renderMessage(v, w, r, http.StatusBadRequest, views.PageError, "Invalid request", msg)
}
