package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"nailsync/internal/model"
	"nailsync/internal/pricing"
	"nailsync/internal/syncer"
)

// photoRequest is one inspiration photo: a data URL for a new image or the
// file id of one already stored remotely. Exactly one is set.
type photoRequest struct {
	DataURL string `json:"dataUrl,omitempty"`
	FileID  string `json:"fileId,omitempty"`
}

func (p photoRequest) photo() (model.Photo, error) {
	switch {
	case p.DataURL != "" && p.FileID != "":
		return model.Photo{}, fmt.Errorf("photo: set dataUrl or fileId, not both: %w", model.ErrInvalid)
	case p.DataURL != "":
		ph, err := model.ParseDataURL(p.DataURL)
		if err != nil {
			return model.Photo{}, fmt.Errorf("%w: %w", err, model.ErrInvalid)
		}
		return ph, nil
	case p.FileID != "":
		return model.RemotePhoto(p.FileID), nil
	default:
		return model.Photo{}, fmt.Errorf("photo: empty entry: %w", model.ErrInvalid)
	}
}

func photos(reqs []photoRequest) ([]model.Photo, error) {
	out := make([]model.Photo, 0, len(reqs))
	for _, r := range reqs {
		p, err := r.photo()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

type addOnRequest struct {
	Type     model.AddOnType `json:"type"`
	Quantity int             `json:"quantity,omitempty"`
}

type appointmentRequest struct {
	Date              time.Time         `json:"date"`
	ClientName        string            `json:"clientName"`
	ServiceType       model.ServiceType `json:"serviceType"`
	NailLength        model.NailLength  `json:"nailLength"`
	SoakOff           bool              `json:"soakOff"`
	AddOns            []addOnRequest    `json:"addOns"`
	InspirationPhotos []photoRequest    `json:"inspirationPhotos"`
	InspirationText   string            `json:"inspirationText"`
	Status            model.Status      `json:"status"`

	// Price is the base price under v2; nil means the configured fallback.
	Price *decimal.Decimal `json:"price"`
}

type appointmentPatchRequest struct {
	Date              *time.Time         `json:"date"`
	ClientName        *string            `json:"clientName"`
	ServiceType       *model.ServiceType `json:"serviceType"`
	NailLength        *model.NailLength  `json:"nailLength"`
	SoakOff           *bool              `json:"soakOff"`
	InspirationPhotos *[]photoRequest    `json:"inspirationPhotos"`
	InspirationText   *string            `json:"inspirationText"`
	Status            *model.Status      `json:"status"`
	Price             *decimal.Decimal   `json:"price"`
}

// outcomeResponse reports the best-effort remote propagation.
type outcomeResponse struct {
	Op       syncer.Op `json:"op"`
	RemoteID string    `json:"remoteId,omitempty"`
	Skipped  bool      `json:"skipped,omitempty"`
	Error    string    `json:"error,omitempty"`
}

func toOutcomeResponse(o syncer.Outcome) outcomeResponse {
	out := outcomeResponse{Op: o.Op, RemoteID: o.RemoteID, Skipped: o.Skipped}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return out
}

type appointmentResponse struct {
	Appointment *model.Appointment `json:"appointment,omitempty"`
	Sync        outcomeResponse    `json:"sync"`
}

// addOns validates add-on types before they reach the pricing tables.
func addOns(reqs []addOnRequest) ([]model.AddOn, error) {
	var out []model.AddOn
	for _, r := range reqs {
		if !r.Type.Valid() {
			return nil, fmt.Errorf("unknown add-on %q: %w", r.Type, model.ErrInvalid)
		}
		if r.Quantity < 0 {
			return nil, fmt.Errorf("add-on %s: negative quantity: %w", r.Type, model.ErrInvalid)
		}
		out = append(out, pricing.NewAddOn(r.Type, r.Quantity))
	}
	return out, nil
}

// quote prices a request with the configured strategy. Add-ons are only
// kept under v1.
func (s *Server) quote(st model.ServiceType, length model.NailLength, reqAddOns []addOnRequest, base *decimal.Decimal, soakOff bool) (decimal.Decimal, []model.AddOn, error) {
	if !st.Valid() {
		return decimal.Zero, nil, fmt.Errorf("unknown service type %q: %w", st, model.ErrInvalid)
	}
	if length == "" {
		length = model.DefaultNailLength
	}
	if !length.Valid() {
		return decimal.Zero, nil, fmt.Errorf("unknown nail length %q: %w", length, model.ErrInvalid)
	}

	var items []model.AddOn
	if s.pricing.Version() == pricing.V1 {
		var err error
		if items, err = addOns(reqAddOns); err != nil {
			return decimal.Zero, nil, err
		}
	}

	b := s.cfg.Fallback()
	if base != nil {
		if base.IsNegative() {
			return decimal.Zero, nil, fmt.Errorf("price is negative: %w", model.ErrInvalid)
		}
		b = *base
	}

	total := s.pricing.Total(pricing.Request{
		ServiceType: st,
		NailLength:  length,
		AddOns:      items,
		BasePrice:   b,
		SoakOff:     soakOff,
	})
	return total, items, nil
}

func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var from, to time.Time
	var err error
	if v := q.Get("from"); v != "" {
		if from, err = s.parseDay(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if v := q.Get("to"); v != "" {
		if to, err = s.parseDay(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		to = to.AddDate(0, 0, 1)
	}
	status := model.Status(q.Get("status"))

	out := make([]model.Appointment, 0)
	for _, a := range s.store.Appointments() {
		if !from.IsZero() && a.Date.Before(from) {
			continue
		}
		if !to.IsZero() && !a.Date.Before(to) {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.Appointment(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req appointmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Date.IsZero() {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	price, items, err := s.quote(req.ServiceType, req.NailLength, req.AddOns, req.Price, req.SoakOff)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	ph, err := photos(req.InspirationPhotos)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	a := model.Appointment{
		Date:              req.Date,
		ClientName:        req.ClientName,
		ServiceType:       req.ServiceType,
		NailLength:        req.NailLength,
		SoakOff:           req.SoakOff,
		AddOns:            items,
		InspirationPhotos: ph,
		Notes:             req.InspirationText,
		Price:             price,
		Status:            req.Status,
	}
	if a.NailLength == "" {
		a.NailLength = model.DefaultNailLength
	}
	if a.Status == "" {
		a.Status = model.StatusScheduled
	}

	created, out, err := s.sync.CreateAppointment(r.Context(), a)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appointmentResponse{Appointment: &created, Sync: toOutcomeResponse(out)})
}

func (s *Server) handleUpdateAppointment(w http.ResponseWriter, r *http.Request) {
	var req appointmentPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	patch := model.AppointmentPatch{
		Date:        req.Date,
		ClientName:  req.ClientName,
		ServiceType: req.ServiceType,
		NailLength:  req.NailLength,
		SoakOff:     req.SoakOff,
		Notes:       req.InspirationText,
		Status:      req.Status,
		Price:       req.Price,
	}
	if req.InspirationPhotos != nil {
		ph, err := photos(*req.InspirationPhotos)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		patch.InspirationPhotos = &ph
	}
	if req.SoakOff != nil && req.Price == nil {
		price, err := s.requoteSoakOff(r.PathValue("id"), *req.SoakOff)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		patch.Price = price
	}

	updated, out, err := s.sync.UpdateAppointment(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentResponse{Appointment: &updated, Sync: toOutcomeResponse(out)})
}

// requoteSoakOff returns the new total when a flat-priced appointment's
// soak-off flag flips without an explicit price, or nil when the price
// stands. Add-on totals do not include the soak-off fee.
func (s *Server) requoteSoakOff(id string, soakOff bool) (*decimal.Decimal, error) {
	if s.pricing.Version() != pricing.V2 {
		return nil, nil
	}
	cur, err := s.store.Appointment(id)
	if err != nil {
		return nil, err
	}
	if cur.SoakOff == soakOff {
		return nil, nil
	}
	base := cur.Price
	if cur.SoakOff {
		base = base.Sub(pricing.SoakOffFee)
	}
	total := s.pricing.Total(pricing.Request{
		ServiceType: cur.ServiceType,
		NailLength:  cur.NailLength,
		BasePrice:   base,
		SoakOff:     soakOff,
	})
	return &total, nil
}

func (s *Server) handleDeleteAppointment(w http.ResponseWriter, r *http.Request) {
	out, err := s.sync.DeleteAppointment(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appointmentResponse{Sync: toOutcomeResponse(out)})
}

type quoteRequest struct {
	ServiceType model.ServiceType `json:"serviceType"`
	NailLength  model.NailLength  `json:"nailLength"`
	AddOns      []addOnRequest    `json:"addOns"`
	Price       *decimal.Decimal  `json:"price"`
	SoakOff     bool              `json:"soakOff"`
}

type quoteResponse struct {
	Version pricing.Version `json:"version"`
	Total   decimal.Decimal `json:"total"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	total, _, err := s.quote(req.ServiceType, req.NailLength, req.AddOns, req.Price, req.SoakOff)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{Version: s.pricing.Version(), Total: total})
}
