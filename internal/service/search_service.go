package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/parisxmas/intake/internal/fault"
	"github.com/parisxmas/intake/internal/models"
	"github.com/parisxmas/intake/internal/repository"
)

// searchCap bounds how many candidate rows a filtered or text search scans.
const searchCap = 500

type SearchService struct {
	subs  *repository.SubmissionRepo
	users *repository.UserRepo
	docs  *repository.DocumentRepo
}

func NewSearchService(subs *repository.SubmissionRepo, users *repository.UserRepo, docs *repository.DocumentRepo) *SearchService {
	return &SearchService{subs: subs, users: users, docs: docs}
}

type SearchRequest struct {
	FormID    string                      `json:"formId"`
	Status    string                      `json:"status,omitempty"`
	Filters   map[string]FilterDescriptor `json:"filters,omitempty"`
	TextQuery string                      `json:"textQuery,omitempty"`
	Skip      int                         `json:"skip"`
	Limit     int                         `json:"limit"`
}

// FilterDescriptor matches one payload key, either exactly or by range.
type FilterDescriptor struct {
	Value any `json:"value,omitempty"`
	Min   any `json:"min,omitempty"`
	Max   any `json:"max,omitempty"`
}

// Lead is one matching submission with the applicant it belongs to.
type Lead struct {
	models.Submission
	Client *models.UserResponse `json:"client,omitempty"`
}

type SearchResult struct {
	Leads     []Lead            `json:"leads"`
	Documents []models.Document `json:"documents,omitempty"`
	Total     int               `json:"total"`
	Mode      string            `json:"mode"`
}

func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if req.Skip < 0 {
		req.Skip = 0
	}
	filter := repository.SubmissionFilter{FormID: req.FormID, Status: req.Status}
	text := strings.TrimSpace(req.TextQuery)
	hasFilters := len(req.Filters) > 0
	hasText := text != ""

	if !hasFilters && !hasText {
		subs, total, err := s.subs.List(ctx, filter, req.Skip, req.Limit)
		if err != nil {
			return nil, err
		}
		leads, err := s.withClients(ctx, subs)
		if err != nil {
			return nil, err
		}
		return &SearchResult{Leads: leads, Total: total, Mode: "all"}, nil
	}

	var candidates []models.Submission
	var err error
	mode := "structured"
	if hasText {
		mode = "text"
		if hasFilters {
			mode = "combined"
		}
		candidates, err = s.subs.Search(ctx, text, searchCap)
	} else {
		candidates, _, err = s.subs.List(ctx, filter, 0, searchCap)
	}
	if err != nil {
		return nil, err
	}

	matched := make([]models.Submission, 0, len(candidates))
	for _, sub := range candidates {
		if req.FormID != "" && sub.FormID != req.FormID {
			continue
		}
		if req.Status != "" && sub.Status != req.Status {
			continue
		}
		if !matchFilters(sub.SubmissionData, req.Filters) {
			continue
		}
		matched = append(matched, sub)
	}

	leads, err := s.withClients(ctx, page(matched, req.Skip, req.Limit))
	if err != nil {
		return nil, err
	}
	res := &SearchResult{Leads: leads, Total: len(matched), Mode: mode}
	if hasText {
		if res.Documents, err = s.docs.SearchByName(ctx, text, req.Limit); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Lead returns one submission with its applicant.
func (s *SearchService) Lead(ctx context.Context, id string) (*Lead, error) {
	sub, err := s.subs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fault.NewClientError("submission not found", fault.ErrNotFound)
	}
	leads, err := s.withClients(ctx, []models.Submission{*sub})
	if err != nil {
		return nil, err
	}
	return &leads[0], nil
}

func (s *SearchService) withClients(ctx context.Context, subs []models.Submission) ([]Lead, error) {
	clients := make(map[string]*models.UserResponse)
	leads := make([]Lead, 0, len(subs))
	for _, sub := range subs {
		c, seen := clients[sub.UserID]
		if !seen {
			u, err := s.users.FindByID(ctx, sub.UserID)
			if err != nil {
				return nil, err
			}
			if u != nil {
				resp := u.ToResponse()
				c = &resp
			}
			clients[sub.UserID] = c
		}
		leads = append(leads, Lead{Submission: sub, Client: c})
	}
	return leads, nil
}

func page(subs []models.Submission, skip, limit int) []models.Submission {
	if skip >= len(subs) {
		return nil
	}
	end := skip + limit
	if end > len(subs) {
		end = len(subs)
	}
	return subs[skip:end]
}

func matchFilters(data models.Payload, filters map[string]FilterDescriptor) bool {
	for key, f := range filters {
		v, ok := data[key]
		if !ok {
			return false
		}
		if isBlank(f.Min) && isBlank(f.Max) {
			if !isBlank(f.Value) && fmt.Sprint(v) != fmt.Sprint(f.Value) {
				return false
			}
			continue
		}
		if !isBlank(f.Min) && compare(v, f.Min) < 0 {
			return false
		}
		if !isBlank(f.Max) && compare(v, f.Max) > 0 {
			return false
		}
	}
	return true
}

// compare orders numerically when both sides parse as numbers, otherwise
// as strings, which keeps ISO dates in order.
func compare(a, b any) int {
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	af, aerr := strconv.ParseFloat(as, 64)
	bf, berr := strconv.ParseFloat(bs, 64)
	if aerr == nil && berr == nil {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(as, bs)
}

func isBlank(v any) bool {
	return v == nil || v == ""
}
