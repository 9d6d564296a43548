package db

import (
	"context"
	"fmt"
)

// schema is written in the subset of SQL both drivers accept. Ids are
// application-generated UUID strings and timestamps RFC 3339 text.
func schema(driver string) []string {
	blob := "BLOB"
	if driver == DriverPostgres {
		blob = "BYTEA"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			first_name    TEXT NOT NULL DEFAULT '',
			last_name     TEXT NOT NULL DEFAULT '',
			role          TEXT NOT NULL,
			created_at    TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS form_fields (
			id          TEXT PRIMARY KEY,
			form_id     TEXT NOT NULL,
			step        INTEGER NOT NULL,
			field_group TEXT NOT NULL DEFAULT '',
			field_order INTEGER NOT NULL DEFAULT 0,
			label       TEXT NOT NULL,
			name        TEXT NOT NULL,
			field_type  TEXT NOT NULL,
			placeholder TEXT NOT NULL DEFAULT '',
			is_required BOOLEAN NOT NULL DEFAULT FALSE,
			options     TEXT NOT NULL DEFAULT '[]',
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL,
			UNIQUE (form_id, name)
		)`,
		`CREATE INDEX IF NOT EXISTS form_fields_form_step ON form_fields (form_id, step, field_order)`,
		`CREATE TABLE IF NOT EXISTS form_submissions (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL REFERENCES users (id),
			form_id         TEXT NOT NULL,
			submission_data TEXT NOT NULL DEFAULT '{}',
			status          TEXT NOT NULL,
			current_step    INTEGER NOT NULL DEFAULT 1,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL,
			UNIQUE (user_id, form_id)
		)`,
		`CREATE INDEX IF NOT EXISTS form_submissions_form_created ON form_submissions (form_id, created_at)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS blobs (
			blob_key     TEXT PRIMARY KEY,
			data         %s NOT NULL,
			content_type TEXT NOT NULL,
			created_at   TEXT NOT NULL
		)`, blob),
		`CREATE TABLE IF NOT EXISTS documents (
			id           TEXT PRIMARY KEY,
			folder       TEXT NOT NULL DEFAULT '',
			file_name    TEXT NOT NULL,
			content_type TEXT NOT NULL,
			size         BIGINT NOT NULL,
			blob_key     TEXT NOT NULL REFERENCES blobs (blob_key),
			uploaded_by  TEXT NOT NULL,
			created_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS documents_folder ON documents (folder, created_at)`,
	}
}

// Migrate creates any missing tables and indexes.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema(d.Driver) {
		if _, err := d.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("db: migrate: %w", err)
		}
	}
	return nil
}
