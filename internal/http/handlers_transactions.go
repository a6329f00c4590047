package http

import (
	"net/http"

	"spendguard/internal/auth"
	"spendguard/internal/budget"
	applog "spendguard/internal/log"
)

// handleAdmit runs a spending event through the admission decision.
// Admitted events answer 201, refused ones 409 with the shortfall.
func (s *Server) handleAdmit(w http.ResponseWriter, r *http.Request) {
	owner := auth.Owner(r.Context())

	req, err := ParseAdmission(NewRequestBodyParser(r))
	if err != nil {
		writeError(w, r, applog.OpAdmit, err)
		return
	}

	d, err := s.budget.Admit(r.Context(), owner, req)
	if err != nil {
		writeError(w, r, applog.OpAdmit, err)
		return
	}

	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogAdmission(r.Context(), owner, req.Category, req.Amount.Cents, d.Outcome.String())

	status := http.StatusCreated
	if d.Outcome == budget.RejectOverLimit {
		status = http.StatusConflict
	} else {
		s.invalidateReports(owner)
	}
	NewJSONResponse().Status(status).Body(toAdmissionJSON(req, d)).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}

	txs, err := s.budget.ListTransactions(r.Context(), auth.Owner(r.Context()), params.Year, params.Month)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}

	out := make([]transactionJSON, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionJSON(t))
	}
	NewJSONResponse().Body(map[string]any{"transactions": out}).Write(w)
}
