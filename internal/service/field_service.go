package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/parisxmas/intake/internal/fault"
	"github.com/parisxmas/intake/internal/forms"
	"github.com/parisxmas/intake/internal/models"
	"github.com/parisxmas/intake/internal/repository"
)

// FieldService serves the field definitions forms are composed from and
// validates the staff field editor.
type FieldService struct {
	fields *repository.FieldRepo
}

func NewFieldService(fields *repository.FieldRepo) *FieldService {
	return &FieldService{fields: fields}
}

// GetFormFields returns the form's fields in display order. A form without
// fields yields forms.ErrEmptySchema.
func (s *FieldService) GetFormFields(ctx context.Context, formID string) ([]models.FieldDefinition, error) {
	fields, err := s.fields.ListByForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, forms.ErrEmptySchema
	}
	return fields, nil
}

// List is GetFormFields for the editor, where an empty form is fine.
func (s *FieldService) List(ctx context.Context, formID string) ([]models.FieldDefinition, error) {
	return s.fields.ListByForm(ctx, formID)
}

func (s *FieldService) Get(ctx context.Context, id string) (*models.FieldDefinition, error) {
	f, err := s.fields.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fault.NewClientError("field not found", fault.ErrNotFound)
	}
	return f, nil
}

func (s *FieldService) Create(ctx context.Context, formID string, f *models.FieldDefinition) (*models.FieldDefinition, error) {
	f.FormID = formID
	if err := normalizeField(f); err != nil {
		return nil, err
	}
	if err := s.fields.Create(ctx, f); err != nil {
		return nil, nameTaken(f.Name, err)
	}
	return f, nil
}

// Update replaces the editable attributes of field id with those of in.
func (s *FieldService) Update(ctx context.Context, id string, in *models.FieldDefinition) (*models.FieldDefinition, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	f.Step = in.Step
	f.FieldGroup = in.FieldGroup
	f.FieldOrder = in.FieldOrder
	f.Label = in.Label
	f.Name = in.Name
	f.FieldType = in.FieldType
	f.Placeholder = in.Placeholder
	f.IsRequired = in.IsRequired
	f.Options = in.Options
	if err := normalizeField(f); err != nil {
		return nil, err
	}
	if err := s.fields.Update(ctx, f); err != nil {
		return nil, nameTaken(f.Name, err)
	}
	return f, nil
}

func (s *FieldService) Delete(ctx context.Context, id string) error {
	err := s.fields.Delete(ctx, id)
	if errors.Is(err, fault.ErrNotFound) {
		return fault.NewClientError("field not found", err)
	}
	return err
}

// SeedIfEmpty stores fields for formID unless the form already has some.
// It reports whether anything was written.
func (s *FieldService) SeedIfEmpty(ctx context.Context, formID string, fields []models.FieldDefinition) (bool, error) {
	n, err := s.fields.CountByForm(ctx, formID)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	for i := range fields {
		fields[i].FormID = formID
		if err := normalizeField(&fields[i]); err != nil {
			return false, fmt.Errorf("seed field %d: %w", i, err)
		}
	}
	if err := s.fields.CreateAll(ctx, fields); err != nil {
		return false, err
	}
	return true, nil
}

// CountByForm is used by the dashboard.
func (s *FieldService) CountByForm(ctx context.Context, formID string) (int, error) {
	return s.fields.CountByForm(ctx, formID)
}

var fieldName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func normalizeField(f *models.FieldDefinition) error {
	f.Name = strings.TrimSpace(f.Name)
	f.Label = strings.TrimSpace(f.Label)
	f.FieldGroup = strings.TrimSpace(f.FieldGroup)
	switch {
	case !fieldName.MatchString(f.Name):
		return fault.NewClientError("field name must be lower case letters, digits and underscores", nil)
	case f.Label == "":
		return fault.NewClientError("field label is required", nil)
	case !f.FieldType.Known():
		return fault.NewClientError(fmt.Sprintf("unknown field type %q", f.FieldType), nil)
	case f.Step < 1:
		return fault.NewClientError("step must be 1 or greater", nil)
	case f.FieldType.NeedsOptions() && len(f.Options) == 0:
		return fault.NewClientError(fmt.Sprintf("%s fields need at least one option", f.FieldType), nil)
	}
	if f.FieldGroup == "" {
		f.FieldGroup = models.DefaultGroup
	}
	seen := make(map[string]bool, len(f.Options))
	for _, o := range f.Options {
		if strings.TrimSpace(o.Value) == "" {
			return fault.NewClientError("option values must not be empty", nil)
		}
		if seen[o.Value] {
			return fault.NewClientError(fmt.Sprintf("duplicate option %q", o.Value), nil)
		}
		seen[o.Value] = true
	}
	return nil
}

func nameTaken(name string, err error) error {
	switch {
	case errors.Is(err, fault.ErrUniqueViolation):
		return fault.NewClientError(fmt.Sprintf("a field named %q already exists in this form", name), err)
	case errors.Is(err, fault.ErrNotFound):
		return fault.NewClientError("field not found", err)
	}
	return err
}
