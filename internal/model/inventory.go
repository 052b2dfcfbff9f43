package model

import (
	"fmt"
	"time"
)

// Availability is an open booking slot. It is independent of any
// appointment; the UI deletes it once a booking is made from it.
type Availability struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	StartTime string    `json:"startTime"` // HH:MM
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Start combines Date and StartTime in loc.
func (a Availability) Start(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	hm, err := time.Parse("15:04", a.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("availability %s: bad start time %q: %w", a.ID, a.StartTime, err)
	}
	d := a.Date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), hm.Hour(), hm.Minute(), 0, 0, loc), nil
}

type AvailabilityPatch struct {
	Date      *time.Time `json:"date,omitempty"`
	StartTime *string    `json:"startTime,omitempty"`
}

func (p AvailabilityPatch) Apply(a *Availability) {
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.StartTime != nil {
		a.StartTime = *p.StartTime
	}
}

// PressOnStatus is the stock state of a press-on set.
type PressOnStatus string

const (
	PressOnAvailable PressOnStatus = "AVAILABLE"
	PressOnReserved  PressOnStatus = "RESERVED"
	PressOnSold      PressOnStatus = "SOLD"
)

// PressOn is an inventory item. It never syncs.
type PressOn struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Photos      []Photo       `json:"photos"`
	Size        string        `json:"size"`
	Quantity    int           `json:"quantity"`
	Status      PressOnStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type PressOnPatch struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Photos      *[]Photo       `json:"photos,omitempty"`
	Size        *string        `json:"size,omitempty"`
	Quantity    *int           `json:"quantity,omitempty"`
	Status      *PressOnStatus `json:"status,omitempty"`
}

func (p PressOnPatch) Apply(po *PressOn) {
	if p.Name != nil {
		po.Name = *p.Name
	}
	if p.Description != nil {
		po.Description = *p.Description
	}
	if p.Photos != nil {
		po.Photos = append([]Photo(nil), (*p.Photos)...)
	}
	if p.Size != nil {
		po.Size = *p.Size
	}
	if p.Quantity != nil {
		po.Quantity = *p.Quantity
	}
	if p.Status != nil {
		po.Status = *p.Status
	}
}
