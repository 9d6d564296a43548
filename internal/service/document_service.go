package service

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/parisxmas/intake/internal/auth"
	"github.com/parisxmas/intake/internal/fault"
	"github.com/parisxmas/intake/internal/models"
	"github.com/parisxmas/intake/internal/repository"
)

type DocumentService struct {
	docs      *repository.DocumentRepo
	jwtSecret string
	urlTTL    time.Duration
	maxBytes  int64
}

func NewDocumentService(docs *repository.DocumentRepo, jwtSecret string, urlTTL time.Duration, maxBytes int64) *DocumentService {
	return &DocumentService{docs: docs, jwtSecret: jwtSecret, urlTTL: urlTTL, maxBytes: maxBytes}
}

// Upload stores data as fileName in folder.
func (s *DocumentService) Upload(ctx context.Context, folder, fileName string, data []byte, contentType, uploadedBy string) (*models.Document, error) {
	if len(data) == 0 {
		return nil, fault.NewClientError("file data is empty", nil)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, fault.NewClientError("file is too large", nil)
	}
	fileName = filepath.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." || fileName == "/" {
		return nil, fault.NewClientError("file name is required", nil)
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = detectContentType(fileName)
	}
	doc := &models.Document{
		Folder:      CleanFolder(folder),
		FileName:    fileName,
		ContentType: contentType,
		UploadedBy:  uploadedBy,
	}
	if err := s.docs.CreateWithBlob(ctx, doc, data); err != nil {
		return nil, fault.NewInternalError("could not store file", err)
	}
	return doc, nil
}

// Delete removes the document. A storagePath that does not match the stored
// blob is refused so a stale listing cannot delete a replaced file.
func (s *DocumentService) Delete(ctx context.Context, id, storagePath string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if storagePath != "" && storagePath != doc.BlobKey {
		return fault.NewClientError("storage path does not match document", fault.ErrConflict)
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			return fault.NewClientError("document not found", err)
		}
		return err
	}
	return nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fault.NewClientError("document not found", fault.ErrNotFound)
	}
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, folder string, skip, limit int) ([]models.Document, int, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.docs.List(ctx, CleanFolder(folder), skip, limit)
}

func (s *DocumentService) Folders(ctx context.Context) ([]string, error) {
	return s.docs.Folders(ctx)
}

// SignedURL returns an expiring download path for the document.
func (s *DocumentService) SignedURL(ctx context.Context, id string) (string, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	token, err := auth.GenerateFileToken(s.jwtSecret, doc.ID, s.urlTTL)
	if err != nil {
		return "", err
	}
	return "/files/" + token, nil
}

// Download resolves a signed token to the document and its content.
func (s *DocumentService) Download(ctx context.Context, token string) ([]byte, *models.Document, error) {
	id, err := auth.ValidateFileToken(s.jwtSecret, token)
	if err != nil {
		return nil, nil, fault.NewClientError("link is invalid or expired", err)
	}
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	blob, err := s.docs.GetBlob(ctx, doc.BlobKey)
	if err != nil {
		return nil, nil, err
	}
	if blob == nil {
		return nil, nil, fault.NewInternalError("document content missing", fault.ErrNotFound)
	}
	return blob.Data, doc, nil
}

func (s *DocumentService) Count(ctx context.Context) (int, error) {
	return s.docs.CountAll(ctx)
}

// CleanFolder normalizes a folder path to slash-separated segments without
// leading or trailing slashes. The root folder is "".
func CleanFolder(folder string) string {
	folder = strings.TrimSpace(strings.ReplaceAll(folder, "\\", "/"))
	if folder == "" {
		return ""
	}
	folder = strings.Trim(path.Clean("/"+folder), "/")
	return folder
}

func detectContentType(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	types := map[string]string{
		".pdf":  "application/pdf",
		".png":  "image/png",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".gif":  "image/gif",
		".heic": "image/heic",
		".doc":  "application/msword",
		".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		".xls":  "application/vnd.ms-excel",
		".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		".csv":  "text/csv",
		".txt":  "text/plain",
		".rtf":  "application/rtf",
		".zip":  "application/zip",
	}
	if ct, ok := types[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
