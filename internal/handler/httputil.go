package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/parisxmas/intake/internal/fault"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeFault picks the status for err. Client faults keep their message;
// anything else is logged and reported generically.
func writeFault(w http.ResponseWriter, err error) {
	if fault.IsClientError(err) {
		writeError(w, faultStatus(err), fault.Message(err, "bad request"))
		return
	}
	log.Printf("internal error: %v", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func faultStatus(err error) int {
	if !fault.IsClientError(err) {
		return http.StatusInternalServerError
	}
	switch {
	case errors.Is(err, fault.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, fault.ErrConflict), errors.Is(err, fault.ErrUniqueViolation):
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// Pagination holds parsed skip/limit query parameters.
type Pagination struct {
	Skip  int
	Limit int
}

func parsePagination(r *http.Request) Pagination {
	p := Pagination{Limit: 20}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if v := r.URL.Query().Get("skip"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.Skip = n
		}
	}
	return p
}

// wantsJSON reports whether the caller asked for a JSON response instead of
// a page.
func wantsJSON(r *http.Request) bool {
	return r.Header.Get("Accept") == "application/json"
}
