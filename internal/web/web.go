// Package web serves the JSON API over the store and the sync
// orchestrator, the Google account link flow and the ICS feed.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"nailsync/internal/config"
	"nailsync/internal/ics"
	appLog "nailsync/internal/log"
	"nailsync/internal/model"
	"nailsync/internal/pricing"
	"nailsync/internal/store"
	"nailsync/internal/syncer"
)

const (
	maxBodyBytes = 25 << 20
	stateTTL     = 10 * time.Minute
)

// Authenticator is the account link flow.
type Authenticator interface {
	Configured() bool
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) error
	IsAuthenticated() bool
	Expiry() time.Time
	Logout() error
}

// Options wires a Server. Auth and Feeds may be nil.
type Options struct {
	Config  *config.Config
	Store   *store.Store
	Sync    *syncer.Orchestrator
	Auth    Authenticator
	Pricing pricing.Strategy
	Feeds   *ics.Fetcher
	Now     func() time.Time
}

// Server provides the HTTP API.
type Server struct {
	cfg     *config.Config
	loc     *time.Location
	store   *store.Store
	sync    *syncer.Orchestrator
	auth    Authenticator
	pricing pricing.Strategy
	feeds   *ics.Fetcher
	now     func() time.Time

	// states holds outstanding OAuth state values until the callback.
	states *cache.Cache

	mux *http.ServeMux
}

// NewServer constructs a Server.
func NewServer(opts Options) (*Server, error) {
	if opts.Config == nil || opts.Store == nil || opts.Sync == nil {
		return nil, errors.New("web: config, store and orchestrator are required")
	}
	if opts.Pricing == nil {
		p, err := pricing.ForVersion(pricing.Version(opts.Config.PricingVersion))
		if err != nil {
			return nil, err
		}
		opts.Pricing = p
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		cfg:     opts.Config,
		loc:     opts.Config.Location(),
		store:   opts.Store,
		sync:    opts.Sync,
		auth:    opts.Auth,
		pricing: opts.Pricing,
		feeds:   opts.Feeds,
		now:     opts.Now,
		states:  cache.New(stateTTL, 2*stateTTL),
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the root handler, wrapped in basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/appointments", s.handleListAppointments)
	s.mux.HandleFunc("POST /api/appointments", s.handleCreateAppointment)
	s.mux.HandleFunc("GET /api/appointments/{id}", s.handleGetAppointment)
	s.mux.HandleFunc("PATCH /api/appointments/{id}", s.handleUpdateAppointment)
	s.mux.HandleFunc("DELETE /api/appointments/{id}", s.handleDeleteAppointment)

	s.mux.HandleFunc("GET /api/availabilities", s.handleListAvailabilities)
	s.mux.HandleFunc("POST /api/availabilities", s.handleCreateAvailability)
	s.mux.HandleFunc("POST /api/availabilities/recurring", s.handleCreateRecurring)
	s.mux.HandleFunc("POST /api/availabilities/import", s.handleImportAvailability)
	s.mux.HandleFunc("PATCH /api/availabilities/{id}", s.handleUpdateAvailability)
	s.mux.HandleFunc("DELETE /api/availabilities/{id}", s.handleDeleteAvailability)

	s.mux.HandleFunc("GET /api/pressons", s.handleListPressOns)
	s.mux.HandleFunc("POST /api/pressons", s.handleCreatePressOn)
	s.mux.HandleFunc("PATCH /api/pressons/{id}", s.handleUpdatePressOn)
	s.mux.HandleFunc("DELETE /api/pressons/{id}", s.handleDeletePressOn)

	s.mux.HandleFunc("POST /api/quote", s.handleQuote)
	s.mux.HandleFunc("POST /api/sync", s.handleSync)
	s.mux.HandleFunc("POST /api/sync/push", s.handlePush)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /calendar.ics", s.handleFeed)

	s.mux.HandleFunc("GET /auth/google/start", s.handleAuthStart)
	s.mux.HandleFunc("GET /auth/google/callback", s.handleAuthCallback)
	s.mux.HandleFunc("POST /auth/google/logout", s.handleAuthLogout)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	return s.cfg.BasicAuth != nil && s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards every path except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="nailsync", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// writeStoreError maps store and validation errors to statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrAlreadyExists), errors.Is(err, store.ErrDuplicateRemote):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrInvalid), errors.Is(err, store.ErrInvalidInventory):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("store operation failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseDay reads "YYYY-MM-DD" or RFC 3339 in the configured zone.
func (s *Server) parseDay(v string) (time.Time, error) {
	if t, err := time.ParseInLocation(time.DateOnly, v, s.loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q", v)
	}
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc), nil
}

func validStartTime(v string) bool {
	_, err := time.Parse("15:04", v)
	return err == nil && len(v) == 5
}
