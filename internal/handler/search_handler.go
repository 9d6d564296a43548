package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/parisxmas/intake/internal/models"
	"github.com/parisxmas/intake/internal/service"
)

// maxSearchLimit caps one page of search results.
const maxSearchLimit = 100

// SearchHandler finds leads across forms, by payload filters or free text.
type SearchHandler struct {
	svc *service.SearchService
}

func NewSearchHandler(svc *service.SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// Query reads the search from the URL:
//
//	?form=...&status=...&q=...&where.city=Paris&min.income=1000&max.income=5000
func (h *SearchHandler) Query(w http.ResponseWriter, r *http.Request) {
	p := parsePagination(r)
	req := leadQuery(r.URL.Query())
	req.Skip, req.Limit = p.Skip, p.Limit
	h.run(w, r, req)
}

// Search reads the search from a JSON body. Unknown members are rejected.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	var req service.SearchRequest
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid search: "+err.Error())
		return
	}
	h.run(w, r, req)
}

func (h *SearchHandler) run(w http.ResponseWriter, r *http.Request, req service.SearchRequest) {
	switch req.Status {
	case "", models.StatusInProgress, models.StatusSubmitted:
	default:
		writeError(w, http.StatusBadRequest, "status must be in_progress or submitted")
		return
	}
	if req.Skip < 0 {
		writeError(w, http.StatusBadRequest, "skip must not be negative")
		return
	}
	if req.Limit > maxSearchLimit {
		req.Limit = maxSearchLimit
	}
	result, err := h.svc.Search(r.Context(), req)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// leadQuery maps query parameters onto a search. where.K matches K exactly;
// min.K and max.K bound it.
func leadQuery(q url.Values) service.SearchRequest {
	req := service.SearchRequest{
		FormID:    q.Get("form"),
		Status:    q.Get("status"),
		TextQuery: q.Get("q"),
	}
	for key, vs := range q {
		kind, field, ok := strings.Cut(key, ".")
		if !ok || field == "" || len(vs) == 0 {
			continue
		}
		if req.Filters == nil {
			req.Filters = make(map[string]service.FilterDescriptor)
		}
		fd := req.Filters[field]
		switch kind {
		case "where":
			fd.Value = vs[0]
		case "min":
			fd.Min = vs[0]
		case "max":
			fd.Max = vs[0]
		default:
			continue
		}
		req.Filters[field] = fd
	}
	return req
}
