package http

import (
	"context"
	"net/http"
	"time"

	"spendguard/internal/auth"
	applog "spendguard/internal/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

// handleReady probes backing services with a short deadline.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err.Error())
			ErrorResponse(http.StatusServiceUnavailable, "not_ready", "backing services unavailable").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

// handleLogout revokes the presented token until its own expiry.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		UnauthorizedError().Write(w)
		return
	}
	if err := s.verifier.Revoke(r.Context(), id); err != nil {
		writeError(w, r, applog.OpRevoke, err)
		return
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).InfoContext(r.Context(),
		"Token revoked", applog.FieldOwner, id.Owner)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
