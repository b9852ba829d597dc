package http

import (
	"net/http"
	"strings"

	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/simulation"
)

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	f, focus, err := ParseFilters(r.URL.Query())
	if err != nil {
		badRequest(w, err)
		return
	}
	res, err := s.dashboard.Metrics(r.Context(), f, focus)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}

func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	f, _, err := ParseFilters(r.URL.Query())
	if err != nil {
		badRequest(w, err)
		return
	}
	view, err := s.dashboard.Months(r.Context(), f)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(view).Write(w)
}

func (s *Server) handleCategoryAggregate(w http.ResponseWriter, r *http.Request) {
	f, _, err := ParseFilters(r.URL.Query())
	if err != nil {
		badRequest(w, err)
		return
	}
	t := core.TransactionType(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("type"))))
	if t == "" {
		t = core.Expense
	}
	view, err := s.dashboard.Categories(r.Context(), f, t)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(view).Write(w)
}

// simulateRequest is the body of POST /api/simulate.
type simulateRequest struct {
	Filters   core.Filters          `json:"filters"`
	Focus     core.FocusMode        `json:"focus"`
	Variables []simulation.Variable `json:"variables"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := DecodeJSON(r, maxJSONBody, &req); err != nil {
		badRequest(w, err)
		return
	}
	res, err := s.dashboard.Simulate(r.Context(), req.Filters, req.Focus, req.Variables)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}
