// Package ics publishes appointments as an iCalendar feed and reads open
// slots from ICS feeds and recurrence rules.
package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"nailsync/internal/gcal"
	"nailsync/internal/model"
)

const (
	productID = "-//nailsync//appointments//EN"
	uidDomain = "@nailsync"
)

// FeedOptions controls the exported calendar.
type FeedOptions struct {
	Name     string
	Location *time.Location
	Duration time.Duration

	// Availability adds open slots as transparent events.
	Availability bool

	Now func() time.Time
}

// Feed renders appointments (and optionally open slots) as an iCalendar
// document for read-only subscription.
func Feed(appts []model.Appointment, slots []model.Availability, opts FeedOptions) string {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Duration <= 0 {
		opts.Duration = gcal.DefaultEventDuration
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Name == "" {
		opts.Name = "Nail appointments"
	}
	stamp := opts.Now()

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(opts.Name)
	cal.SetXWRTimezone(opts.Location.String())

	for _, a := range appts {
		ev := cal.AddEvent("appt-" + a.ID + uidDomain)
		ev.SetDtStampTime(stamp)
		if !a.CreatedAt.IsZero() {
			ev.SetCreatedTime(a.CreatedAt)
		}
		if !a.UpdatedAt.IsZero() {
			ev.SetModifiedAt(a.UpdatedAt)
		}
		ev.SetStartAt(a.Date)
		ev.SetEndAt(a.Date.Add(opts.Duration))
		ev.SetSummary(gcal.Summary(a))
		if a.Notes != "" {
			ev.SetDescription(a.Notes)
		}
		ev.SetStatus(eventStatus(a.Status))
	}

	if opts.Availability {
		for _, s := range slots {
			start, err := s.Start(opts.Location)
			if err != nil {
				continue
			}
			ev := cal.AddEvent("slot-" + s.ID + uidDomain)
			ev.SetDtStampTime(stamp)
			ev.SetStartAt(start)
			ev.SetEndAt(start.Add(opts.Duration))
			ev.SetSummary("Open slot")
			ev.SetProperty(ical.ComponentProperty("TRANSP"), "TRANSPARENT")
		}
	}

	return cal.Serialize()
}

func eventStatus(s model.Status) ical.ObjectStatus {
	if s == model.StatusCancelled {
		return ical.ObjectStatusCancelled
	}
	return ical.ObjectStatusConfirmed
}
