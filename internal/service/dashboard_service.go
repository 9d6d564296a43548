package service

import (
	"context"

	"github.com/parisxmas/intake/internal/models"
	"github.com/parisxmas/intake/internal/repository"
)

// recentLimit is how many recently updated submissions the dashboard lists.
const recentLimit = 10

type DashboardService struct {
	users  *repository.UserRepo
	subs   *repository.SubmissionRepo
	docs   *repository.DocumentRepo
	fields *repository.FieldRepo
	forms  []string
}

// NewDashboardService reports on the given form ids.
func NewDashboardService(users *repository.UserRepo, subs *repository.SubmissionRepo, docs *repository.DocumentRepo, fields *repository.FieldRepo, formIDs ...string) *DashboardService {
	return &DashboardService{users: users, subs: subs, docs: docs, fields: fields, forms: formIDs}
}

type FormStats struct {
	FormID     string `json:"formId"`
	FieldCount int    `json:"fieldCount"`
	InProgress int    `json:"inProgress"`
	Submitted  int    `json:"submitted"`
}

type Dashboard struct {
	LeadCount     int                 `json:"leadCount"`
	StaffCount    int                 `json:"staffCount"`
	DocumentCount int                 `json:"documentCount"`
	InProgress    int                 `json:"inProgress"`
	Submitted     int                 `json:"submitted"`
	Forms         []FormStats         `json:"forms"`
	Recent        []models.Submission `json:"recent"`
}

func (s *DashboardService) Get(ctx context.Context) (*Dashboard, error) {
	roles, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, err
	}
	docCount, err := s.docs.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{
		LeadCount:     roles[models.RoleClient],
		StaffCount:    roles[models.RoleStaff] + roles[models.RoleAdmin],
		DocumentCount: docCount,
		Forms:         make([]FormStats, 0, len(s.forms)),
	}
	for _, id := range s.forms {
		n, err := s.fields.CountByForm(ctx, id)
		if err != nil {
			return nil, err
		}
		counts, err := s.subs.CountByStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		st := FormStats{
			FormID:     id,
			FieldCount: n,
			InProgress: counts[models.StatusInProgress],
			Submitted:  counts[models.StatusSubmitted],
		}
		d.InProgress += st.InProgress
		d.Submitted += st.Submitted
		d.Forms = append(d.Forms, st)
	}
	if d.Recent, err = s.subs.Recent(ctx, recentLimit); err != nil {
		return nil, err
	}
	return d, nil
}
