package http

import (
	"net/http"

	"spendguard/internal/auth"
	applog "spendguard/internal/log"
)

// handleSetLimits upserts a batch of caps. An invalid entry rejects the
// whole batch before anything is written.
func (s *Server) handleSetLimits(w http.ResponseWriter, r *http.Request) {
	owner := auth.Owner(r.Context())

	limits, err := ParseLimits(NewRequestBodyParser(r))
	if err != nil {
		writeError(w, r, applog.OpSetLimit, err)
		return
	}
	if err := s.budget.SetLimits(r.Context(), owner, limits); err != nil {
		writeError(w, r, applog.OpSetLimit, err)
		return
	}
	s.invalidateReports(owner)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListLimits(w http.ResponseWriter, r *http.Request) {
	limits, err := s.budget.ListLimits(r.Context(), auth.Owner(r.Context()))
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}

	out := make([]limitJSON, 0, len(limits))
	for _, l := range limits {
		out = append(out, limitJSON{Category: l.Category, Cap: l.Cap.Float(), UpdatedAt: l.UpdatedAt})
	}
	NewJSONResponse().Body(map[string]any{"limits": out}).Write(w)
}
