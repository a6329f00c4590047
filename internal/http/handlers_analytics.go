package http

import (
	"net/http"

	"spendguard/internal/auth"
	"spendguard/internal/core"
	applog "spendguard/internal/log"
)

// handleAnalytics returns the per-category report of a month. Reports are
// cached per owner and dropped whenever that owner writes.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	owner := auth.Owner(r.Context())
	params, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}

	key := reportKey(owner, params)
	if rep, ok := s.reports.Get(key); ok {
		NewJSONResponse().Header("X-Cache", "hit").Body(toReportJSON(rep)).Write(w)
		return
	}

	rep, err := s.budget.MonthReport(r.Context(), owner, params.Year, params.Month)
	if err != nil {
		writeError(w, r, applog.OpReport, err)
		return
	}
	s.reports.Set(key, rep)
	NewJSONResponse().Header("X-Cache", "miss").Body(toReportJSON(rep)).Write(w)
}

// handleInferCategory suggests a category for a payee from history.
func (s *Server) handleInferCategory(w http.ResponseWriter, r *http.Request) {
	payee := sanitizeInput(r.URL.Query().Get("payee"))
	if payee == "" {
		writeError(w, r, applog.OpInfer, core.Invalid("payee", core.ErrEmptyPayee))
		return
	}

	category, err := s.budget.InferCategory(r.Context(), auth.Owner(r.Context()), payee)
	if err != nil {
		writeError(w, r, applog.OpInfer, err)
		return
	}
	NewJSONResponse().Body(map[string]string{"payee": payee, "category": category}).Write(w)
}
