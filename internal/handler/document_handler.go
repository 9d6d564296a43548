package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/parisxmas/intake/internal/auth"
	"github.com/parisxmas/intake/internal/fault"
	"github.com/parisxmas/intake/internal/service"
)

type DocumentHandler struct {
	svc      *service.DocumentService
	maxBytes int64
}

func NewDocumentHandler(svc *service.DocumentService, maxBytes int64) *DocumentHandler {
	return &DocumentHandler{svc: svc, maxBytes: maxBytes}
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	p := parsePagination(r)
	folder := r.URL.Query().Get("folder")
	docs, total, err := h.svc.List(r.Context(), folder, p.Skip, p.Limit)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"docs":   docs,
		"folder": service.CleanFolder(folder),
		"total":  total,
		"skip":   p.Skip,
		"limit":  p.Limit,
	})
}

func (h *DocumentHandler) Folders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.svc.Folders(r.Context())
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": folders})
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "multipart body required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	claims := auth.GetUser(r.Context())
	doc, err := h.svc.Upload(r.Context(), r.FormValue("folder"), header.Filename, data, header.Header.Get("Content-Type"), claims.UserID)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// URL returns a short-lived signed download path.
func (h *DocumentHandler) URL(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.SignedURL(r.Context(), chi.URLParam(r, "docId"))
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Delete takes the storage path the caller listed, so a stale listing
// cannot remove a replaced file.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "docId")
	if err := h.svc.Delete(r.Context(), id, r.URL.Query().Get("storagePath")); err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// Download serves a file by signed token; the token is the only credential.
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	data, doc, err := h.svc.Download(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		if fault.IsClientError(err) {
			http.Error(w, "file not found or link expired", http.StatusNotFound)
			return
		}
		writeFault(w, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename=%q`, doc.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Write(data)
}
