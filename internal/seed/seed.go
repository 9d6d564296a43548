// Package seed provides the default intake form, the static content shown
// between its fields, and the first-run data a fresh database needs.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/parisxmas/intake/internal/forms"
	"github.com/parisxmas/intake/internal/models"
	"github.com/parisxmas/intake/internal/service"
)

//go:embed intake.yaml
var defaultIntake []byte

// FormFile is the on-disk shape of a seeded form.
type FormFile struct {
	Form   string                   `yaml:"form"`
	Fields []models.FieldDefinition `yaml:"fields"`
}

// LoadForm reads a form file from path, or the embedded intake form when
// path is empty.
func LoadForm(path string) (*FormFile, error) {
	data := defaultIntake
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, err
		}
	}
	return ParseForm(data)
}

// ParseForm decodes a form file, rejecting unknown keys.
func ParseForm(data []byte) (*FormFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var ff FormFile
	if err := dec.Decode(&ff); err != nil {
		return nil, fmt.Errorf("parse form file: %w", err)
	}
	if len(ff.Fields) == 0 {
		return nil, errors.New("form file has no fields")
	}
	return &ff, nil
}

const legalNotice = `<p>By signing below you authorize the firm to review the information you
provided and to contact you about your case. Submitting this form does not
create an attorney-client relationship until an engagement agreement is
signed by both parties.</p>
<p>Information you share is kept confidential and used only to evaluate your
matter.</p>
<input type="hidden" name="terms_version" value="2024-01">`

// Statics is the hand-authored content of the intake form.
func Statics() []forms.StaticBlock {
	return []forms.StaticBlock{
		{Step: 1, Placement: forms.Before, Title: "Tell us about yourself",
			Body: template.HTML(`<p>We use these details to open your file and create your client account.</p>`)},
		{Step: 3, Placement: forms.Before, Title: "Authorization",
			Body: template.HTML(legalNotice), Names: []string{"terms_version"}},
		{Step: 4, Placement: forms.After, Title: "What happens next",
			Body: template.HTML(`<p>A member of our team reviews every application within two business days.</p>`)},
	}
}

// Options configures Run.
type Options struct {
	FormID     string
	FormFile   string
	AdminEmail string
	AdminPass  string
}

// Run seeds the intake form when it has no fields and creates the admin
// account when it does not exist.
func Run(ctx context.Context, fields *service.FieldService, authSvc *service.AuthService, opts Options) error {
	ff, err := LoadForm(opts.FormFile)
	if err != nil {
		return err
	}
	formID := opts.FormID
	if formID == "" {
		formID = ff.Form
	}
	wrote, err := fields.SeedIfEmpty(ctx, formID, ff.Fields)
	if err != nil {
		return fmt.Errorf("seed form %s: %w", formID, err)
	}
	if wrote {
		log.Printf("Seed: form %s created with %d fields", formID, len(ff.Fields))
	}

	created, err := authSvc.SeedAdmin(ctx, opts.AdminEmail, opts.AdminPass)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		log.Printf("Seed: admin user %s created", opts.AdminEmail)
	}
	return nil
}
