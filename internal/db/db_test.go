package db

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/intake/internal/fault"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "x", 1)
	assert.ErrorContains(t, err, "unsupported driver")
}

func TestMigrateIsIdempotent(t *testing.T) {
	d, err := Open(DriverSQLite, ":memory:", 4)
	require.NoError(t, err)
	defer d.Close()
	ctx := context.Background()

	require.NoError(t, d.Migrate(ctx))
	require.NoError(t, d.Migrate(ctx))

	var n int
	require.NoError(t, d.GetContext(ctx, &n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'`))
	assert.Equal(t, 5, n)
}

func TestClassifyConstraintErrors(t *testing.T) {
	d, err := Open(DriverSQLite, ":memory:", 1)
	require.NoError(t, err)
	defer d.Close()
	ctx := context.Background()
	require.NoError(t, d.Migrate(ctx))

	insert := d.Rebind(`INSERT INTO users (id, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`)
	_, err = d.ExecContext(ctx, insert, "u1", "a@b.c", "x", "client", "2026-01-01T00:00:00Z")
	require.NoError(t, err)
	_, err = d.ExecContext(ctx, insert, "u2", "a@b.c", "x", "client", "2026-01-01T00:00:00Z")
	assert.ErrorIs(t, Classify(err), fault.ErrUniqueViolation)

	_, err = d.ExecContext(ctx, d.Rebind(`INSERT INTO documents (id, file_name, content_type, size, blob_key, uploaded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`), "d1", "a.pdf", "application/pdf", 1, "missing", "u1", "2026-01-01T00:00:00Z")
	assert.ErrorIs(t, Classify(err), fault.ErrForeignKeyViolation)

	var id string
	err = d.GetContext(ctx, &id, d.Rebind(`SELECT id FROM users WHERE email = ?`), "none")
	assert.ErrorIs(t, Classify(err), fault.ErrNotFound)
	assert.NoError(t, Classify(nil))
}

func TestInTxRollsBack(t *testing.T) {
	d, err := Open(DriverSQLite, ":memory:", 1)
	require.NoError(t, err)
	defer d.Close()
	ctx := context.Background()
	require.NoError(t, d.Migrate(ctx))

	err = d.InTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO users (id, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`),
			"u1", "a@b.c", "x", "client", "2026-01-01T00:00:00Z")
		require.NoError(t, err)
		return fault.ErrConflict
	})
	assert.ErrorIs(t, err, fault.ErrConflict)

	var n int
	require.NoError(t, d.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`))
	assert.Equal(t, 0, n)
}
