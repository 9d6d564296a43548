package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/parisxmas/intake/internal/auth"
	"github.com/parisxmas/intake/internal/db"
	"github.com/parisxmas/intake/internal/fault"
	"github.com/parisxmas/intake/internal/forms"
	"github.com/parisxmas/intake/internal/models"
	"github.com/parisxmas/intake/internal/repository"
)

// Identity fields an anonymous applicant supplies in the payload.
const (
	KeyFirstName = "first_name"
	KeyLastName  = "last_name"
	KeyEmail     = "email"
	KeyPassword  = "password"
)

// The signature sub-flow lives on this step and needs these fields.
const SignatureStep = 3

var SignatureFields = []string{"client_signature", "signature_date"}

const minPasswordLen = 8

// IntakeService persists wizard payloads for a form: partial progress, the
// final submission, and the account an anonymous applicant creates with it.
type IntakeService struct {
	db      *db.DB
	users   *repository.UserRepo
	subs    *repository.SubmissionRepo
	fields  *FieldService
	statics []forms.StaticBlock
}

func NewIntakeService(d *db.DB, users *repository.UserRepo, subs *repository.SubmissionRepo, fields *FieldService, statics []forms.StaticBlock) *IntakeService {
	return &IntakeService{db: d, users: users, subs: subs, fields: fields, statics: statics}
}

// Steps composes the form's stored fields with its static content.
func (s *IntakeService) Steps(ctx context.Context, formID string) ([]forms.Step, error) {
	fields, err := s.fields.GetFormFields(ctx, formID)
	if err != nil {
		return nil, err
	}
	return forms.Compose(fields, s.statics)
}

// CheckSignatureStep reports a schema error when the signature step lacks
// the fields the sub-flow writes to.
func CheckSignatureStep(steps []forms.Step) error {
	for _, st := range steps {
		if st.Number == SignatureStep {
			return forms.RequireFields(st, SignatureFields...)
		}
	}
	return &forms.SchemaError{Step: SignatureStep, Reason: "step not defined"}
}

// Resume returns the user's stored submission for the form, or nil when
// there is none.
func (s *IntakeService) Resume(ctx context.Context, userID, formID string) (*models.Submission, error) {
	if userID == "" {
		return nil, nil
	}
	return s.subs.FindByUserForm(ctx, userID, formID)
}

// SaveProgress upserts the user's payload as in progress. A submission that
// was already submitted is left untouched and a client error returned.
func (s *IntakeService) SaveProgress(ctx context.Context, userID, formID string, payload map[string]any, currentStep int) error {
	if userID == "" {
		return fault.NewClientError("sign in to save your progress", nil)
	}
	sub := &models.Submission{
		UserID:         userID,
		FormID:         formID,
		SubmissionData: stripSecrets(payload),
		Status:         models.StatusInProgress,
		CurrentStep:    currentStep,
	}
	err := s.subs.Upsert(ctx, nil, sub)
	switch {
	case errors.Is(err, fault.ErrConflict):
		return errAlreadySubmitted(err)
	case err != nil:
		return fault.NewInternalError("could not save progress", err)
	}
	return nil
}

// SubmitApplication stores the final payload. Without a userID the applicant
// account is created from the payload's identity fields, and the account and
// submission are written in one transaction so a failed submission leaves no
// account behind. The returned user is the one the submission belongs to.
func (s *IntakeService) SubmitApplication(ctx context.Context, userID, formID string, payload map[string]any, currentStep int) (*models.User, error) {
	sub := &models.Submission{
		FormID:         formID,
		SubmissionData: stripSecrets(payload),
		Status:         models.StatusSubmitted,
		CurrentStep:    currentStep,
	}

	if userID != "" {
		user, err := s.users.FindByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, fault.NewClientError("account not found", fault.ErrNotFound)
		}
		sub.UserID = user.ID
		err = s.subs.Upsert(ctx, nil, sub)
		switch {
		case errors.Is(err, fault.ErrConflict):
			return nil, errAlreadySubmitted(err)
		case err != nil:
			return nil, fault.NewInternalError("could not submit application", err)
		}
		return user, nil
	}

	user, err := applicant(payload)
	if err != nil {
		return nil, err
	}
	err = s.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.users.Create(ctx, tx, user); err != nil {
			return err
		}
		sub.UserID = user.ID
		return s.subs.Upsert(ctx, tx, sub)
	})
	switch {
	case errors.Is(err, fault.ErrUniqueViolation):
		return nil, fault.NewClientError("an account with this email already exists, sign in to continue", err)
	case err != nil:
		return nil, fault.NewInternalError("could not submit application", err)
	}
	return user, nil
}

func errAlreadySubmitted(err error) error {
	return fault.NewClientError("this form has already been submitted", err)
}

func applicant(payload map[string]any) (*models.User, error) {
	first := strings.TrimSpace(str(payload[KeyFirstName]))
	last := strings.TrimSpace(str(payload[KeyLastName]))
	email := strings.TrimSpace(str(payload[KeyEmail]))
	password := str(payload[KeyPassword])
	if first == "" || last == "" {
		return nil, fault.NewClientError("first and last name are required", nil)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fault.NewClientError("a valid email address is required", err)
	}
	if len(password) < minPasswordLen {
		return nil, fault.NewClientError("password must be at least 8 characters", nil)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    first,
		LastName:     last,
		Role:         models.RoleClient,
	}, nil
}

func stripSecrets(payload map[string]any) models.Payload {
	out := make(models.Payload, len(payload))
	for k, v := range payload {
		if k == KeyPassword {
			continue
		}
		out[k] = v
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
