package ics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "nailsync/internal/log"
)

const defaultMaxOccurrences = 1000

// Occurrence is one concrete instance of a possibly recurring event.
type Occurrence struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
	AllDay  bool
}

// Range bounds an expansion. Occurrences starting in [From, To] are kept.
type Range struct {
	From time.Time
	To   time.Time

	// Location the results are converted to; nil means time.Local.
	Location *time.Location

	// MaxPerEvent caps each event's expansion; zero means 1000.
	MaxPerEvent int
}

func (r *Range) normalize() error {
	if r.To.Before(r.From) {
		return errors.New("expand: range ends before it starts")
	}
	if r.Location == nil {
		r.Location = time.Local
	}
	if r.MaxPerEvent <= 0 {
		r.MaxPerEvent = defaultMaxOccurrences
	}
	return nil
}

// Expand turns parsed events into occurrences within r, applying EXDATEs
// and RECURRENCE-ID overrides. The result is sorted by start.
func Expand(events []ParsedEvent, r Range) ([]Occurrence, error) {
	if err := r.normalize(); err != nil {
		return nil, err
	}

	overrides := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
		}
	}

	var out []Occurrence
	for _, ev := range events {
		if ev.IsOverride() {
			continue
		}
		if ev.RawRRule == "" {
			if inRange(ev.Start, r) {
				out = append(out, occurrence(ev, ev.Start, ev.End, r.Location))
			}
			continue
		}

		starts, truncated, err := recurrences(ev, r)
		if err != nil {
			appLog.Warn("ics recurrence skipped", err, "uid", ev.UID, "rrule", ev.RawRRule)
			continue
		}
		if truncated {
			appLog.Warn("ics recurrence truncated", nil, "uid", ev.UID, "cap", r.MaxPerEvent)
		}

		dur := ev.End.Sub(ev.Start)
		for _, s := range starts {
			occ := occurrence(ev, s, s.Add(dur), r.Location)
			if ov, ok := overrideFor(overrides[ev.UID], s); ok {
				occ = occurrence(ov, ov.Start, ov.End, r.Location)
			}
			out = append(out, occ)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func recurrences(ev ParsedEvent, r Range) ([]time.Time, bool, error) {
	opt, err := rrule.StrToROption(ev.RawRRule)
	if err != nil {
		return nil, false, err
	}
	opt.Dtstart = ev.Start
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, false, err
	}

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	starts := set.Between(r.From.In(ev.Start.Location()), r.To.In(ev.Start.Location()), true)
	if len(starts) > r.MaxPerEvent {
		return starts[:r.MaxPerEvent], true, nil
	}
	return starts, false, nil
}

func overrideFor(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func occurrence(ev ParsedEvent, start, end time.Time, loc *time.Location) Occurrence {
	return Occurrence{
		UID:     ev.UID,
		Summary: ev.Summary,
		Start:   start.In(loc),
		End:     end.In(loc),
		AllDay:  ev.AllDay,
	}
}

func inRange(t time.Time, r Range) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// RuleStarts expands a bare RRULE ("FREQ=WEEKLY;BYDAY=TU,TH") anchored at
// dtstart and returns the starts within r.
func RuleStarts(rule string, dtstart time.Time, r Range) ([]time.Time, error) {
	if err := r.normalize(); err != nil {
		return nil, err
	}
	ev := ParsedEvent{UID: "rule", Start: dtstart, End: dtstart, RawRRule: rule}
	starts, truncated, err := recurrences(ev, r)
	if err != nil {
		return nil, fmt.Errorf("rrule %q: %w", rule, err)
	}
	if truncated {
		return nil, fmt.Errorf("rrule %q yields more than %d starts", rule, r.MaxPerEvent)
	}
	for i := range starts {
		starts[i] = starts[i].In(r.Location)
	}
	return starts, nil
}
