package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"spendguard/internal/auth"
	"spendguard/internal/core"
	applog "spendguard/internal/log"
)

const maxAlerts = 200

var errInvalidLimit = errors.New("limit must be between 1 and 200")

type alertJSON struct {
	Category   string    `json:"category"`
	Payee      string    `json:"payee"`
	Outcome    string    `json:"outcome"`
	Amount     float64   `json:"amount"`
	Cap        float64   `json:"cap"`
	Remaining  float64   `json:"remaining"`
	Exceed     float64   `json:"exceed"`
	OccurredAt time.Time `json:"occurredAt"`
}

// handleListAlerts returns the caller's most recent limit alerts.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAlerts {
			writeError(w, r, applog.OpList, core.Invalid("limit", errInvalidLimit))
			return
		}
		limit = n
	}

	alerts, err := s.alerts.ListAlerts(r.Context(), auth.Owner(r.Context()), limit)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}

	out := make([]alertJSON, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, alertJSON{
			Category:   a.Category,
			Payee:      a.Payee,
			Outcome:    a.Outcome,
			Amount:     a.Amount.Float(),
			Cap:        a.Cap.Float(),
			Remaining:  a.Remaining.Float(),
			Exceed:     a.Exceed.Float(),
			OccurredAt: a.OccurredAt,
		})
	}
	NewJSONResponse().Body(map[string]any{"alerts": out}).Write(w)
}
