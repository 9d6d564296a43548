package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parisxmas/intake/internal/service"
)

// SubmissionHandler lists and opens the leads of one form.
type SubmissionHandler struct {
	svc *service.SearchService
}

func NewSubmissionHandler(svc *service.SearchService) *SubmissionHandler {
	return &SubmissionHandler{svc: svc}
}

func (h *SubmissionHandler) List(w http.ResponseWriter, r *http.Request) {
	p := parsePagination(r)
	res, err := h.svc.Search(r.Context(), service.SearchRequest{
		FormID: chi.URLParam(r, "formId"),
		Status: r.URL.Query().Get("status"),
		Skip:   p.Skip,
		Limit:  p.Limit,
	})
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"submissions": res.Leads,
		"total":       res.Total,
		"skip":        p.Skip,
		"limit":       p.Limit,
	})
}

func (h *SubmissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	lead, err := h.svc.Lead(r.Context(), chi.URLParam(r, "subId"))
	if err != nil {
		writeFault(w, err)
		return
	}
	if lead.FormID != chi.URLParam(r, "formId") {
		writeError(w, http.StatusNotFound, "submission not found")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}
