package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// Submission statuses.
const (
	StatusInProgress = "in_progress"
	StatusSubmitted  = "submitted"
)

// Payload is the flat name → value answer map, stored as a JSON column.
// Values are strings, booleans, or nested arrays/objects for repeating sections.
type Payload map[string]any

func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (p *Payload) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*p = Payload{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("payload: unsupported column type")
	}
	m := Payload{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
	}
	*p = m
	return nil
}

// Submission is one user's answer set for one form; unique per (UserID, FormID).
type Submission struct {
	ID             string  `db:"id" json:"id"`
	UserID         string  `db:"user_id" json:"userId"`
	FormID         string  `db:"form_id" json:"formId"`
	SubmissionData Payload `db:"submission_data" json:"submissionData"`
	Status         string  `db:"status" json:"status"`
	CurrentStep    int     `db:"current_step" json:"currentStep"`
	CreatedAt      string  `db:"created_at" json:"createdAt"`
	UpdatedAt      string  `db:"updated_at" json:"updatedAt"`
}
