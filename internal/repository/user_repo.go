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

type UserRepo struct {
	db *db.DB
}

func NewUserRepo(d *db.DB) *UserRepo {
	return &UserRepo{db: d}
}

// FindByEmail returns nil, nil when no user has the address.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, r.db.Rebind(`SELECT * FROM users WHERE email = ?`), normalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, r.db.Rebind(`SELECT * FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts user through q, assigning its id and creation time.
// A taken email is reported as fault.ErrUniqueViolation.
func (r *UserRepo) Create(ctx context.Context, q Queryer, user *models.User) error {
	if q == nil {
		q = r.db
	}
	user.ID = uuid.New().String()
	user.Email = normalizeEmail(user.Email)
	if user.CreatedAt == "" {
		user.CreatedAt = Now()
	}
	_, err := sqlx.NamedExecContext(ctx, q, `INSERT INTO users (id, email, password_hash, first_name, last_name, role, created_at)
		VALUES (:id, :email, :password_hash, :first_name, :last_name, :role, :created_at)`, user)
	return db.Classify(err)
}

// List pages through users, newest first. An empty role lists all.
func (r *UserRepo) List(ctx context.Context, role string, skip, limit int) ([]models.User, int, error) {
	where, args := "", []any{}
	if role != "" {
		where, args = " WHERE role = ?", append(args, role)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM users`+where), args...); err != nil {
		return nil, 0, err
	}
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, r.db.Rebind(`SELECT * FROM users`+where+
		` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`), append(args, limit, skip)...)
	return users, total, err
}

// Delete removes the user together with their submissions.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	return r.db.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM form_submissions WHERE user_id = ?`), id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM users WHERE id = ?`), id)
		if err != nil {
			return db.Classify(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fault.ErrNotFound
		}
		return nil
	})
}

func (r *UserRepo) CountByRole(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Role  string `db:"role"`
		Count int    `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT role, COUNT(*) AS n FROM users GROUP BY role`); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Role] = row.Count
	}
	return out, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
