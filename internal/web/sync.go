package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nailsync/internal/ics"
	"nailsync/internal/pricing"
	"nailsync/internal/syncer"
)

type syncErrorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	rep, err := s.sync.SyncFromRemote(r.Context())
	if err != nil {
		var rec *syncer.ReconciliationError
		if errors.As(err, &rec) {
			status := http.StatusBadGateway
			if rec.Stage == "connect" {
				status = http.StatusConflict
			}
			writeJSON(w, status, syncErrorResponse{Error: err.Error(), Stage: rec.Stage})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type pushResponse struct {
	Outcomes []outcomeResponse `json:"outcomes"`
	Failed   int               `json:"failed"`
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	outs, err := s.sync.PushUnsynced(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, syncer.ErrNotConnected):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, context.Canceled):
			writeError(w, http.StatusRequestTimeout, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	resp := pushResponse{Outcomes: make([]outcomeResponse, 0, len(outs))}
	for _, o := range outs {
		if !o.OK() {
			resp.Failed++
		}
		resp.Outcomes = append(resp.Outcomes, toOutcomeResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

type authStatus struct {
	Configured bool       `json:"configured"`
	Linked     bool       `json:"linked"`
	Expiry     *time.Time `json:"expiry,omitempty"`
}

type statusResponse struct {
	Connected bool            `json:"connected"`
	Auth      authStatus      `json:"auth"`
	Sync      syncer.Status   `json:"sync"`
	Pricing   pricing.Version `json:"pricingVersion"`
	Timezone  string          `json:"timezone"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Connected: s.sync.Connected(),
		Sync:      s.sync.Status(),
		Pricing:   s.pricing.Version(),
		Timezone:  s.loc.String(),
	}
	if s.auth != nil {
		resp.Auth.Configured = s.auth.Configured()
		resp.Auth.Linked = s.auth.IsAuthenticated()
		if exp := s.auth.Expiry(); !exp.IsZero() {
			resp.Auth.Expiry = &exp
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFeed(w http.ResponseWriter, _ *http.Request) {
	body := ics.Feed(s.store.Appointments(), s.store.Availabilities(), ics.FeedOptions{
		Name:         s.cfg.Feed.Name,
		Location:     s.loc,
		Duration:     s.cfg.EventDuration(),
		Availability: s.cfg.Feed.IncludeAvailability,
		Now:          s.now,
	})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
