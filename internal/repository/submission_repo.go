package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/parisxmas/intake/internal/db"
	"github.com/parisxmas/intake/internal/fault"
	"github.com/parisxmas/intake/internal/models"
)

type SubmissionRepo struct {
	db *db.DB
}

func NewSubmissionRepo(d *db.DB) *SubmissionRepo {
	return &SubmissionRepo{db: d}
}

// Upsert writes the user's submission for a form through q. An existing
// row keeps its id and creation time. A submitted row is final: writing
// over it changes nothing and returns fault.ErrConflict.
func (r *SubmissionRepo) Upsert(ctx context.Context, q Queryer, sub *models.Submission) error {
	if q == nil {
		q = r.db
	}
	now := Now()
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.CreatedAt == "" {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	res, err := sqlx.NamedExecContext(ctx, q, `INSERT INTO form_submissions
		(id, user_id, form_id, submission_data, status, current_step, created_at, updated_at)
		VALUES (:id, :user_id, :form_id, :submission_data, :status, :current_step, :created_at, :updated_at)
		ON CONFLICT (user_id, form_id) DO UPDATE SET
			submission_data = excluded.submission_data,
			current_step = excluded.current_step,
			status = excluded.status,
			updated_at = excluded.updated_at
		WHERE form_submissions.status <> 'submitted'`, sub)
	if err != nil {
		return db.Classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fault.ErrConflict
	}
	return nil
}

// FindByUserForm returns nil, nil when the user has no submission for formID.
func (r *SubmissionRepo) FindByUserForm(ctx context.Context, userID, formID string) (*models.Submission, error) {
	var s models.Submission
	err := r.db.GetContext(ctx, &s, r.db.Rebind(`SELECT * FROM form_submissions WHERE user_id = ? AND form_id = ?`), userID, formID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubmissionRepo) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	var s models.Submission
	err := r.db.GetContext(ctx, &s, r.db.Rebind(`SELECT * FROM form_submissions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SubmissionFilter narrows List. Empty fields match everything.
type SubmissionFilter struct {
	FormID string
	Status string
}

func (f SubmissionFilter) where() (string, []any) {
	var conds []string
	var args []any
	if f.FormID != "" {
		conds = append(conds, "form_id = ?")
		args = append(args, f.FormID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of submissions, newest first, and the total count.
func (r *SubmissionRepo) List(ctx context.Context, f SubmissionFilter, skip, limit int) ([]models.Submission, int, error) {
	where, args := f.where()
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM form_submissions`+where), args...); err != nil {
		return nil, 0, err
	}
	subs := []models.Submission{}
	err := r.db.SelectContext(ctx, &subs, r.db.Rebind(`SELECT * FROM form_submissions`+where+
		` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`), append(args, limit, skip)...)
	return subs, total, err
}

// Search matches the query against the stored answers, case-insensitively.
func (r *SubmissionRepo) Search(ctx context.Context, query string, limit int) ([]models.Submission, error) {
	subs := []models.Submission{}
	err := r.db.SelectContext(ctx, &subs, r.db.Rebind(`SELECT * FROM form_submissions
		WHERE LOWER(submission_data) LIKE ? ESCAPE '\' ORDER BY updated_at DESC LIMIT ?`),
		likePattern(strings.ToLower(query)), limit)
	return subs, err
}

func (r *SubmissionRepo) CountByStatus(ctx context.Context, formID string) (map[string]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"n"`
	}
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`SELECT status, COUNT(*) AS n FROM form_submissions
		WHERE form_id = ? GROUP BY status`), formID)
	if err != nil {
		return nil, err
	}
	out := map[string]int{models.StatusInProgress: 0, models.StatusSubmitted: 0}
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// Recent returns the most recently updated submissions across forms.
func (r *SubmissionRepo) Recent(ctx context.Context, limit int) ([]models.Submission, error) {
	subs := []models.Submission{}
	err := r.db.SelectContext(ctx, &subs, r.db.Rebind(`SELECT * FROM form_submissions ORDER BY updated_at DESC, id LIMIT ?`), limit)
	return subs, err
}
