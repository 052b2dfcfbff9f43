package web

import (
	"net/http"

	"github.com/google/uuid"

	appLog "nailsync/internal/log"
)

func (s *Server) authReady(w http.ResponseWriter) bool {
	if s.auth == nil || !s.auth.Configured() {
		writeError(w, http.StatusServiceUnavailable, "google oauth client is not configured")
		return false
	}
	return true
}

// handleAuthStart redirects to the consent screen with a one-time state.
func (s *Server) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	if !s.authReady(w) {
		return
	}
	state := uuid.NewString()
	s.states.SetDefault(state, struct{}{})
	http.Redirect(w, r, s.auth.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if !s.authReady(w) {
		return
	}
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		writeError(w, http.StatusBadRequest, "authorization denied: "+e)
		return
	}
	state := q.Get("state")
	if _, ok := s.states.Get(state); !ok || state == "" {
		writeError(w, http.StatusBadRequest, "unknown or expired state")
		return
	}
	s.states.Delete(state)

	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code")
		return
	}
	if err := s.auth.Exchange(r.Context(), code); err != nil {
		appLog.Error("oauth code exchange failed", err)
		writeError(w, http.StatusBadGateway, "code exchange failed")
		return
	}
	appLog.Info("google account linked")
	writeJSON(w, http.StatusOK, map[string]bool{"linked": true})
}

func (s *Server) handleAuthLogout(w http.ResponseWriter, _ *http.Request) {
	if s.auth == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := s.auth.Logout(); err != nil {
		appLog.Error("logout failed", err)
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	appLog.Info("google account unlinked")
	w.WriteHeader(http.StatusNoContent)
}
