package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
)

// FieldType is the control kind a field definition renders as.
type FieldType string

const (
	FieldText           FieldType = "text"
	FieldEmail          FieldType = "email"
	FieldPassword       FieldType = "password"
	FieldTel            FieldType = "tel"
	FieldDate           FieldType = "date"
	FieldNumber         FieldType = "number"
	FieldTextarea       FieldType = "textarea"
	FieldSelect         FieldType = "select"
	FieldRadio          FieldType = "radio"
	FieldRadioWithInput FieldType = "radio_with_input"
	FieldCheckbox       FieldType = "checkbox"
	FieldCheckboxGroup  FieldType = "checkbox-group"
	FieldFile           FieldType = "file"
	FieldSignature      FieldType = "signature"
)

// DefaultGroup is the group a field without a fieldGroup is placed in.
const DefaultGroup = "Default"

var knownFieldTypes = map[FieldType]bool{
	FieldText: true, FieldEmail: true, FieldPassword: true, FieldTel: true,
	FieldDate: true, FieldNumber: true, FieldTextarea: true, FieldSelect: true,
	FieldRadio: true, FieldRadioWithInput: true, FieldCheckbox: true,
	FieldCheckboxGroup: true, FieldFile: true, FieldSignature: true,
}

// Known reports whether t is one of the field types the renderer dispatches on.
func (t FieldType) Known() bool {
	return knownFieldTypes[t]
}

// NeedsOptions reports whether fields of this type are meaningless without options.
func (t FieldType) NeedsOptions() bool {
	switch t {
	case FieldSelect, FieldRadio, FieldRadioWithInput, FieldCheckboxGroup:
		return true
	}
	return false
}

// Option is one choice of a select, radio or checkbox group.
type Option struct {
	Value       string `json:"value" yaml:"value"`
	Label       string `json:"label" yaml:"label"`
	HasInput    bool   `json:"hasInput,omitempty" yaml:"hasInput,omitempty"`
	Placeholder string `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
}

// Options is stored as a JSON column.
type Options []Option

func (o Options) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	data, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (o *Options) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*o = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("options: unsupported column type")
	}
	if len(data) == 0 {
		*o = nil
		return nil
	}
	return json.Unmarshal(data, o)
}

// FieldDefinition is one staff-authored form field.
type FieldDefinition struct {
	ID          string    `db:"id" json:"id" yaml:"-"`
	FormID      string    `db:"form_id" json:"formId" yaml:"-"`
	Step        int       `db:"step" json:"step" yaml:"step"`
	FieldGroup  string    `db:"field_group" json:"fieldGroup" yaml:"group"`
	FieldOrder  int       `db:"field_order" json:"fieldOrder" yaml:"order"`
	Label       string    `db:"label" json:"label" yaml:"label"`
	Name        string    `db:"name" json:"name" yaml:"name"`
	FieldType   FieldType `db:"field_type" json:"fieldType" yaml:"type"`
	Placeholder string    `db:"placeholder" json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	IsRequired  bool      `db:"is_required" json:"isRequired" yaml:"required"`
	Options     Options   `db:"options" json:"options,omitempty" yaml:"options,omitempty"`
	CreatedAt   string    `db:"created_at" json:"createdAt" yaml:"-"`
	UpdatedAt   string    `db:"updated_at" json:"updatedAt" yaml:"-"`
}

// Group returns the field group, falling back to DefaultGroup for blank values.
func (f FieldDefinition) Group() string {
	if strings.TrimSpace(f.FieldGroup) == "" {
		return DefaultGroup
	}
	return f.FieldGroup
}
