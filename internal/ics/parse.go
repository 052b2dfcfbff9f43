package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "nailsync/internal/log"
)

// ParsedEvent is one VEVENT with its recurrence data left unexpanded.
type ParsedEvent struct {
	UID         string
	Summary     string
	Description string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule string
	ExDates  []time.Time

	// Recurrence is the RECURRENCE-ID of an overridden instance.
	Recurrence *time.Time
}

// IsOverride reports whether ev replaces one instance of a recurring event.
func (ev ParsedEvent) IsOverride() bool { return ev.Recurrence != nil }

// Parse reads an ICS payload. Events that cannot be read are logged and
// skipped; loc applies to floating times.
func Parse(name string, body []byte, loc *time.Location) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var events []ParsedEvent
	for _, ve := range cal.Events() {
		ev, err := parseVEvent(ve, loc)
		if err != nil {
			appLog.Warn("ics event skipped", err, "feed", name)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parsed", "feed", name, "events", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (ParsedEvent, error) {
	var ev ParsedEvent

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return ev, errors.New("missing UID")
	}
	ev.UID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ev.Description = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return ev, errors.New("missing DTSTART")
	}
	ev.AllDay = isDateValue(dtStart)

	if ev.AllDay {
		start, err := parseICSTime(dtStart.Value, loc)
		if err != nil {
			return ev, err
		}
		ev.Start = start
		ev.End = start.AddDate(0, 0, 1)
		if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
			if end, err := parseICSTime(p.Value, loc); err == nil {
				ev.End = end
			}
		}
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return ev, err
		}
		ev.Start = start
		ev.End = start
		if end, err := ve.GetEndAt(); err == nil {
			ev.End = end
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, loc); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); p != nil {
		if t, err := parseICSTime(p.Value, loc); err == nil {
			ev.Recurrence = &t
		}
	}
	return ev, nil
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// parseICSTime reads DATE, floating DATE-TIME and UTC DATE-TIME values.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
