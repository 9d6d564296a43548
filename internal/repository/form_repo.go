package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/parisxmas/intake/internal/db"
	"github.com/parisxmas/intake/internal/fault"
	"github.com/parisxmas/intake/internal/models"
)

// FieldRepo stores the field definitions forms are composed from.
type FieldRepo struct {
	db *db.DB
}

func NewFieldRepo(d *db.DB) *FieldRepo {
	return &FieldRepo{db: d}
}

const fieldColumns = `id, form_id, step, field_group, field_order, label, name, field_type, placeholder, is_required, options, created_at, updated_at`

// ListByForm returns a form's fields ordered by step, then field order,
// then name so the result is stable.
func (r *FieldRepo) ListByForm(ctx context.Context, formID string) ([]models.FieldDefinition, error) {
	fields := []models.FieldDefinition{}
	err := r.db.SelectContext(ctx, &fields, r.db.Rebind(`SELECT `+fieldColumns+` FROM form_fields
		WHERE form_id = ? ORDER BY step, field_order, name`), formID)
	return fields, err
}

func (r *FieldRepo) FindByID(ctx context.Context, id string) (*models.FieldDefinition, error) {
	var f models.FieldDefinition
	err := r.db.GetContext(ctx, &f, r.db.Rebind(`SELECT `+fieldColumns+` FROM form_fields WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FieldRepo) Create(ctx context.Context, f *models.FieldDefinition) error {
	return r.create(ctx, r.db, f)
}

// CreateAll inserts fields in one transaction.
func (r *FieldRepo) CreateAll(ctx context.Context, fields []models.FieldDefinition) error {
	return r.db.InTx(ctx, func(tx *sqlx.Tx) error {
		for i := range fields {
			if err := r.create(ctx, tx, &fields[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *FieldRepo) create(ctx context.Context, q Queryer, f *models.FieldDefinition) error {
	f.ID = uuid.New().String()
	now := Now()
	f.CreatedAt, f.UpdatedAt = now, now
	if f.Options == nil {
		f.Options = models.Options{}
	}
	_, err := sqlx.NamedExecContext(ctx, q, `INSERT INTO form_fields (`+fieldColumns+`)
		VALUES (:id, :form_id, :step, :field_group, :field_order, :label, :name, :field_type, :placeholder, :is_required, :options, :created_at, :updated_at)`, f)
	return db.Classify(err)
}

func (r *FieldRepo) Update(ctx context.Context, f *models.FieldDefinition) error {
	f.UpdatedAt = Now()
	if f.Options == nil {
		f.Options = models.Options{}
	}
	res, err := r.db.NamedExecContext(ctx, `UPDATE form_fields SET step = :step, field_group = :field_group,
		field_order = :field_order, label = :label, name = :name, field_type = :field_type,
		placeholder = :placeholder, is_required = :is_required, options = :options, updated_at = :updated_at
		WHERE id = :id`, f)
	if err != nil {
		return db.Classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.ErrNotFound
	}
	return nil
}

func (r *FieldRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM form_fields WHERE id = ?`), id)
	if err != nil {
		return db.Classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fault.ErrNotFound
	}
	return nil
}

func (r *FieldRepo) CountByForm(ctx context.Context, formID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM form_fields WHERE form_id = ?`), formID)
	return n, err
}
