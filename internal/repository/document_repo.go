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

// DocumentRepo stores document metadata and the blobs behind it.
type DocumentRepo struct {
	db *db.DB
}

func NewDocumentRepo(d *db.DB) *DocumentRepo {
	return &DocumentRepo{db: d}
}

// Blob is stored file content.
type Blob struct {
	Key         string `db:"blob_key"`
	Data        []byte `db:"data"`
	ContentType string `db:"content_type"`
	CreatedAt   string `db:"created_at"`
}

// CreateWithBlob stores the blob and its metadata row together.
func (r *DocumentRepo) CreateWithBlob(ctx context.Context, doc *models.Document, data []byte) error {
	return r.db.InTx(ctx, func(tx *sqlx.Tx) error {
		now := Now()
		doc.ID = uuid.New().String()
		if doc.BlobKey == "" {
			doc.BlobKey = uuid.New().String()
		}
		doc.CreatedAt = now
		doc.Size = int64(len(data))
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO blobs (blob_key, data, content_type, created_at) VALUES (?, ?, ?, ?)`),
			doc.BlobKey, data, doc.ContentType, now); err != nil {
			return db.Classify(err)
		}
		_, err := tx.NamedExecContext(ctx, `INSERT INTO documents (id, folder, file_name, content_type, size, blob_key, uploaded_by, created_at)
			VALUES (:id, :folder, :file_name, :content_type, :size, :blob_key, :uploaded_by, :created_at)`, doc)
		return db.Classify(err)
	})
}

func (r *DocumentRepo) FindByID(ctx context.Context, id string) (*models.Document, error) {
	var d models.Document
	err := r.db.GetContext(ctx, &d, r.db.Rebind(`SELECT * FROM documents WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// List pages through documents, newest first. An empty folder lists all.
func (r *DocumentRepo) List(ctx context.Context, folder string, skip, limit int) ([]models.Document, int, error) {
	where, args := "", []any{}
	if folder != "" {
		where, args = " WHERE folder = ?", append(args, folder)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM documents`+where), args...); err != nil {
		return nil, 0, err
	}
	docs := []models.Document{}
	err := r.db.SelectContext(ctx, &docs, r.db.Rebind(`SELECT * FROM documents`+where+
		` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`), append(args, limit, skip)...)
	return docs, total, err
}

func (r *DocumentRepo) SearchByName(ctx context.Context, query string, limit int) ([]models.Document, error) {
	docs := []models.Document{}
	err := r.db.SelectContext(ctx, &docs, r.db.Rebind(`SELECT * FROM documents
		WHERE LOWER(file_name) LIKE ? ESCAPE '\' ORDER BY created_at DESC LIMIT ?`),
		likePattern(strings.ToLower(query)), limit)
	return docs, err
}

// Delete removes the metadata row and its blob.
func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	return r.db.InTx(ctx, func(tx *sqlx.Tx) error {
		var key string
		err := tx.GetContext(ctx, &key, tx.Rebind(`SELECT blob_key FROM documents WHERE id = ?`), id)
		if errors.Is(err, sql.ErrNoRows) {
			return fault.ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM documents WHERE id = ?`), id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM blobs WHERE blob_key = ?`), key)
		return err
	})
}

// GetBlob returns nil, nil for an unknown key.
func (r *DocumentRepo) GetBlob(ctx context.Context, key string) (*Blob, error) {
	var b Blob
	err := r.db.GetContext(ctx, &b, r.db.Rebind(`SELECT * FROM blobs WHERE blob_key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *DocumentRepo) CountAll(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM documents`)
	return n, err
}

// Folders lists the distinct folder names in use.
func (r *DocumentRepo) Folders(ctx context.Context) ([]string, error) {
	folders := []string{}
	err := r.db.SelectContext(ctx, &folders, `SELECT DISTINCT folder FROM documents WHERE folder <> '' ORDER BY folder`)
	return folders, err
}
