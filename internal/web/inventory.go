package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"nailsync/internal/ics"
	appLog "nailsync/internal/log"
	"nailsync/internal/model"
)

type availabilityRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
}

func (s *Server) availability(req availabilityRequest) (model.Availability, error) {
	day, err := s.parseDay(req.Date)
	if err != nil {
		return model.Availability{}, fmt.Errorf("%w: %w", err, model.ErrInvalid)
	}
	if !validStartTime(req.StartTime) {
		return model.Availability{}, fmt.Errorf("bad start time %q: %w", req.StartTime, model.ErrInvalid)
	}
	return model.Availability{Date: day, StartTime: req.StartTime}, nil
}

func (s *Server) handleListAvailabilities(w http.ResponseWriter, _ *http.Request) {
	out := s.store.Availabilities()
	if out == nil {
		out = []model.Availability{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a, err := s.availability(req)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	created, err := s.store.CreateAvailability(a)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type recurringRequest struct {
	RRule     string `json:"rrule"`
	StartTime string `json:"startTime"`
	From      string `json:"from"`
	Until     string `json:"until"`
}

type batchResponse struct {
	Added []model.Availability `json:"added"`
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req recurringRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	from, err := s.parseDay(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	until, err := s.parseDay(req.Until)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	slots, err := ics.RecurringSlots{
		RRule:     req.RRule,
		StartTime: req.StartTime,
		From:      from,
		Until:     until,
	}.Expand(s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeBatch(w, slots)
}

type importRequest struct {
	URL string `json:"url"`
}

// handleImportAvailability turns the timed events of one feed, or of every
// configured feed when no url is given, into open slots.
func (s *Server) handleImportAvailability(w http.ResponseWriter, r *http.Request) {
	if s.feeds == nil {
		writeError(w, http.StatusServiceUnavailable, "feed import is not configured")
		return
	}
	var req importRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	urls := s.cfg.Availability.Feeds
	if req.URL != "" {
		urls = []string{req.URL}
	}
	if len(urls) == 0 {
		writeError(w, http.StatusBadRequest, "no feed url given and none configured")
		return
	}

	slots, err := s.feedSlots(r.Context(), urls)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeBatch(w, slots)
}

// ImportFeeds adds the open slots of every configured feed to the store
// and returns the slots that were new.
func (s *Server) ImportFeeds(ctx context.Context) ([]model.Availability, error) {
	if s.feeds == nil || len(s.cfg.Availability.Feeds) == 0 {
		return nil, nil
	}
	slots, err := s.feedSlots(ctx, s.cfg.Availability.Feeds)
	if err != nil {
		return nil, err
	}
	added, err := s.store.CreateAvailabilities(slots)
	if err != nil {
		return nil, err
	}
	appLog.Info("availability feeds imported", "feeds", len(s.cfg.Availability.Feeds), "added", len(added))
	return added, nil
}

// feedSlots reads urls over [now, now+horizon]. The first failing feed
// aborts the import.
func (s *Server) feedSlots(ctx context.Context, urls []string) ([]model.Availability, error) {
	now := s.now().In(s.loc)
	rng := ics.Range{
		From:     now,
		To:       now.Add(time.Duration(s.cfg.Availability.HorizonDays) * 24 * time.Hour),
		Location: s.loc,
	}

	var slots []model.Availability
	for _, u := range urls {
		got, err := s.feeds.FeedSlots(ctx, u, rng)
		if err != nil {
			appLog.Warn("availability feed import failed", err)
			return nil, err
		}
		slots = append(slots, got...)
	}
	return slots, nil
}

func (s *Server) writeBatch(w http.ResponseWriter, slots []model.Availability) {
	added, err := s.store.CreateAvailabilities(slots)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if added == nil {
		added = []model.Availability{}
	}
	writeJSON(w, http.StatusCreated, batchResponse{Added: added})
}

type availabilityPatchRequest struct {
	Date      *string `json:"date"`
	StartTime *string `json:"startTime"`
}

func (s *Server) handleUpdateAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var patch model.AvailabilityPatch
	if req.Date != nil {
		day, err := s.parseDay(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		patch.Date = &day
	}
	if req.StartTime != nil {
		if !validStartTime(*req.StartTime) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("bad start time %q", *req.StartTime))
			return
		}
		patch.StartTime = req.StartTime
	}

	updated, err := s.store.UpdateAvailability(r.PathValue("id"), patch)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteAvailability(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteAvailability(r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pressOnRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Photos      []photoRequest      `json:"photos"`
	Size        string              `json:"size"`
	Quantity    int                 `json:"quantity"`
	Status      model.PressOnStatus `json:"status"`
}

type pressOnPatchRequest struct {
	Name        *string              `json:"name"`
	Description *string              `json:"description"`
	Photos      *[]photoRequest      `json:"photos"`
	Size        *string              `json:"size"`
	Quantity    *int                 `json:"quantity"`
	Status      *model.PressOnStatus `json:"status"`
}

func (s *Server) handleListPressOns(w http.ResponseWriter, _ *http.Request) {
	out := s.store.PressOns()
	if out == nil {
		out = []model.PressOn{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePressOn(w http.ResponseWriter, r *http.Request) {
	var req pressOnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ph, err := photos(req.Photos)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	created, err := s.store.CreatePressOn(model.PressOn{
		Name:        req.Name,
		Description: req.Description,
		Photos:      ph,
		Size:        req.Size,
		Quantity:    req.Quantity,
		Status:      req.Status,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdatePressOn(w http.ResponseWriter, r *http.Request) {
	var req pressOnPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	patch := model.PressOnPatch{
		Name:        req.Name,
		Description: req.Description,
		Size:        req.Size,
		Quantity:    req.Quantity,
		Status:      req.Status,
	}
	if req.Photos != nil {
		ph, err := photos(*req.Photos)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		patch.Photos = &ph
	}

	updated, err := s.store.UpdatePressOn(r.PathValue("id"), patch)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeletePressOn(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeletePressOn(r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
