package ics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nailsync/internal/model"
)

// MaxRecurringHorizon bounds how far ahead a recurring rule is expanded.
const MaxRecurringHorizon = 366 * 24 * time.Hour

// RecurringSlots describes open slots that repeat, e.g. every Tuesday and
// Thursday at 10:00.
type RecurringSlots struct {
	RRule     string    `json:"rrule"`
	StartTime string    `json:"startTime"` // HH:MM
	From      time.Time `json:"from"`
	Until     time.Time `json:"until"`
}

// Expand returns one availability per start of the rule in [From, Until].
// Ids and timestamps are left for the store to fill.
func (rs RecurringSlots) Expand(loc *time.Location) ([]model.Availability, error) {
	if loc == nil {
		loc = time.Local
	}
	if rs.RRule == "" {
		return nil, errors.New("recurring slots: rrule is empty")
	}
	hm, err := time.Parse("15:04", rs.StartTime)
	if err != nil {
		return nil, fmt.Errorf("recurring slots: bad start time %q", rs.StartTime)
	}
	if rs.Until.Before(rs.From) {
		return nil, errors.New("recurring slots: until is before from")
	}
	if rs.Until.Sub(rs.From) > MaxRecurringHorizon {
		return nil, fmt.Errorf("recurring slots: horizon longer than %s", MaxRecurringHorizon)
	}

	from := rs.From.In(loc)
	dtstart := time.Date(from.Year(), from.Month(), from.Day(), hm.Hour(), hm.Minute(), 0, 0, loc)
	until := endOfDay(rs.Until.In(loc))

	starts, err := RuleStarts(rs.RRule, dtstart, Range{From: dtstart, To: until, Location: loc})
	if err != nil {
		return nil, err
	}

	slots := make([]model.Availability, 0, len(starts))
	for _, s := range starts {
		slots = append(slots, slotAt(s, loc))
	}
	return slots, nil
}

// SlotsFromOccurrences turns timed occurrences into availability slots.
// All-day occurrences carry no start time and are dropped.
func SlotsFromOccurrences(occs []Occurrence, loc *time.Location) []model.Availability {
	if loc == nil {
		loc = time.Local
	}
	var slots []model.Availability
	for _, o := range occs {
		if o.AllDay {
			continue
		}
		slots = append(slots, slotAt(o.Start, loc))
	}
	return slots
}

func slotAt(t time.Time, loc *time.Location) model.Availability {
	t = t.In(loc)
	return model.Availability{
		Date:      time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc),
		StartTime: t.Format("15:04"),
	}
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// FeedSlots fetches an ICS feed and returns its timed occurrences within r
// as availability slots.
func (f *Fetcher) FeedSlots(ctx context.Context, feedURL string, r Range) ([]model.Availability, error) {
	body, _, err := f.Fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	events, err := Parse(redactURL(feedURL), body, r.Location)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	occs, err := Expand(events, r)
	if err != nil {
		return nil, err
	}
	return SlotsFromOccurrences(occs, r.Location), nil
}
