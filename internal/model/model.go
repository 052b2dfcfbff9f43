package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ServiceType is the kind of nail service booked.
type ServiceType string

const (
	ServiceGelX        ServiceType = "GEL_X"
	ServiceGelManicure ServiceType = "GEL_MANICURE"
	ServiceBuilderGel  ServiceType = "BUILDER_GEL"
)

// ServiceTypes lists the catalogue in display order.
var ServiceTypes = []ServiceType{ServiceGelX, ServiceGelManicure, ServiceBuilderGel}

// Label is the human-facing name ("Gel X", "Builder Gel", ...).
func (s ServiceType) Label() string {
	switch s {
	case ServiceGelX:
		return "Gel X"
	case ServiceGelManicure:
		return "Gel Manicure"
	case ServiceBuilderGel:
		return "Builder Gel"
	default:
		return string(s)
	}
}

// Spaced renders the code with underscores replaced by spaces ("GEL X").
// This is the form written into remote event summaries.
func (s ServiceType) Spaced() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

func (s ServiceType) Valid() bool {
	for _, v := range ServiceTypes {
		if v == s {
			return true
		}
	}
	return false
}

// NailLength only matters for Gel X.
type NailLength string

const (
	LengthShortMedium NailLength = "SHORT_MEDIUM"
	LengthLongXLong   NailLength = "LONG_XLONG"
)

// DefaultNailLength is the shortest variant, used when none is recorded.
const DefaultNailLength = LengthShortMedium

func (n NailLength) Valid() bool {
	return n == LengthShortMedium || n == LengthLongXLong
}

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	return s == StatusScheduled || s == StatusCompleted || s == StatusCancelled
}

// AddOnType belongs to the legacy add-on pricing model.
type AddOnType string

const (
	AddOnFrenchTip     AddOnType = "FRENCH_TIP"
	AddOnSimpleDesign  AddOnType = "SIMPLE_DESIGN"
	AddOnComplexDesign AddOnType = "COMPLEX_DESIGN"
	AddOn3DGel         AddOnType = "3D_GEL"
	AddOnCharms        AddOnType = "CHARMS"
)

var AddOnTypes = []AddOnType{AddOnFrenchTip, AddOnSimpleDesign, AddOnComplexDesign, AddOn3DGel, AddOnCharms}

func (t AddOnType) Valid() bool {
	for _, v := range AddOnTypes {
		if v == t {
			return true
		}
	}
	return false
}

// AddOn is a per-nail extra. Quantity is never zero; callers omit the
// entry instead.
//
// Deprecated: the current schema prices with a flat Price plus SoakOff.
// AddOns survive only so older records and remote events keep their data.
type AddOn struct {
	Type         AddOnType       `json:"type"`
	Quantity     int             `json:"quantity"`
	PricePerNail decimal.Decimal `json:"pricePerNail"`
}

// Total is PricePerNail × Quantity.
func (a AddOn) Total() decimal.Decimal {
	return a.PricePerNail.Mul(decimal.NewFromInt(int64(a.Quantity)))
}

// Appointment is one scheduled service and the primary synced entity.
type Appointment struct {
	ID   string    `json:"id"`
	Date time.Time `json:"date"`

	ClientName  string      `json:"clientName,omitempty"`
	ServiceType ServiceType `json:"serviceType"`
	NailLength  NailLength  `json:"nailLength"`
	SoakOff     bool        `json:"soakOff"`
	AddOns      []AddOn     `json:"addOns,omitempty"`

	InspirationPhotos []Photo `json:"inspirationPhotos"`
	Notes             string  `json:"inspirationText"`

	Price  decimal.Decimal `json:"price"`
	Status Status          `json:"status"`

	// RemoteEventID is set iff the appointment has been synced at least once.
	RemoteEventID string `json:"googleCalendarEventId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid")

// Validate reports field values outside their enumerations.
func (a *Appointment) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("appointment: id is empty: %w", ErrInvalid)
	}
	if !a.ServiceType.Valid() {
		return fmt.Errorf("appointment %s: unknown service type %q: %w", a.ID, a.ServiceType, ErrInvalid)
	}
	if !a.NailLength.Valid() {
		return fmt.Errorf("appointment %s: unknown nail length %q: %w", a.ID, a.NailLength, ErrInvalid)
	}
	if !a.Status.Valid() {
		return fmt.Errorf("appointment %s: unknown status %q: %w", a.ID, a.Status, ErrInvalid)
	}
	if a.Price.IsNegative() {
		return fmt.Errorf("appointment %s: price is negative: %w", a.ID, ErrInvalid)
	}
	for _, p := range a.InspirationPhotos {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("appointment %s: %w", a.ID, err)
		}
	}
	return nil
}

// Clone returns a copy that shares no slices with a.
func (a Appointment) Clone() Appointment {
	out := a
	if a.AddOns != nil {
		out.AddOns = append([]AddOn(nil), a.AddOns...)
	}
	if a.InspirationPhotos != nil {
		out.InspirationPhotos = make([]Photo, len(a.InspirationPhotos))
		for i, p := range a.InspirationPhotos {
			out.InspirationPhotos[i] = p.Clone()
		}
	}
	return out
}

// AppointmentPatch carries the fields of a partial update. Nil fields are
// left untouched.
type AppointmentPatch struct {
	Date              *time.Time       `json:"date,omitempty"`
	ClientName        *string          `json:"clientName,omitempty"`
	ServiceType       *ServiceType     `json:"serviceType,omitempty"`
	NailLength        *NailLength      `json:"nailLength,omitempty"`
	SoakOff           *bool            `json:"soakOff,omitempty"`
	AddOns            *[]AddOn         `json:"addOns,omitempty"`
	InspirationPhotos *[]Photo         `json:"inspirationPhotos,omitempty"`
	Notes             *string          `json:"inspirationText,omitempty"`
	Price             *decimal.Decimal `json:"price,omitempty"`
	Status            *Status          `json:"status,omitempty"`
	RemoteEventID     *string          `json:"googleCalendarEventId,omitempty"`
}

// Apply merges the non-nil fields of p into a.
func (p AppointmentPatch) Apply(a *Appointment) {
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.ClientName != nil {
		a.ClientName = *p.ClientName
	}
	if p.ServiceType != nil {
		a.ServiceType = *p.ServiceType
	}
	if p.NailLength != nil {
		a.NailLength = *p.NailLength
	}
	if p.SoakOff != nil {
		a.SoakOff = *p.SoakOff
	}
	if p.AddOns != nil {
		a.AddOns = append([]AddOn(nil), (*p.AddOns)...)
	}
	if p.InspirationPhotos != nil {
		a.InspirationPhotos = append([]Photo(nil), (*p.InspirationPhotos)...)
	}
	if p.Notes != nil {
		a.Notes = *p.Notes
	}
	if p.Price != nil {
		a.Price = *p.Price
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.RemoteEventID != nil {
		a.RemoteEventID = *p.RemoteEventID
	}
}
