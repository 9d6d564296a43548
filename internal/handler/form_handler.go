package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parisxmas/intake/internal/models"
	"github.com/parisxmas/intake/internal/service"
)

// FormHandler is the staff field editor of one form's schema.
type FormHandler struct {
	svc *service.FieldService
}

func NewFormHandler(svc *service.FieldService) *FormHandler {
	return &FormHandler{svc: svc}
}

func (h *FormHandler) List(w http.ResponseWriter, r *http.Request) {
	fields, err := h.svc.List(r.Context(), chi.URLParam(r, "formId"))
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fields": fields,
		"total":  len(fields),
	})
}

func (h *FormHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.FieldDefinition
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	field, err := h.svc.Create(r.Context(), chi.URLParam(r, "formId"), &req)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, field)
}

func (h *FormHandler) Get(w http.ResponseWriter, r *http.Request) {
	field, err := h.svc.Get(r.Context(), chi.URLParam(r, "fieldId"))
	if err != nil {
		writeFault(w, err)
		return
	}
	if field.FormID != chi.URLParam(r, "formId") {
		writeError(w, http.StatusNotFound, "field not found")
		return
	}
	writeJSON(w, http.StatusOK, field)
}

func (h *FormHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.FieldDefinition
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	field, err := h.svc.Update(r.Context(), chi.URLParam(r, "fieldId"), &req)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, field)
}

func (h *FormHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "fieldId")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
