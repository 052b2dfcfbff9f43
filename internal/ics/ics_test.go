package ics

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nailsync/internal/model"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

var sampleFeed = crlf(`BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:weekly@test
DTSTAMP:20250101T000000Z
DTSTART:20250304T100000Z
DTEND:20250304T113000Z
RRULE:FREQ=WEEKLY;COUNT=4
EXDATE:20250311T100000Z
SUMMARY:Open
END:VEVENT
BEGIN:VEVENT
UID:weekly@test
DTSTAMP:20250101T000000Z
RECURRENCE-ID:20250318T100000Z
DTSTART:20250318T140000Z
DTEND:20250318T153000Z
SUMMARY:Open (moved)
END:VEVENT
BEGIN:VEVENT
UID:holiday@test
DTSTAMP:20250101T000000Z
DTSTART;VALUE=DATE:20250310
DTEND;VALUE=DATE:20250311
SUMMARY:Closed
END:VEVENT
END:VCALENDAR
`)

func march() Range {
	return Range{
		From:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Location: time.UTC,
	}
}

func TestParse(t *testing.T) {
	events, err := Parse("test", sampleFeed, time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "FREQ=WEEKLY;COUNT=4", events[0].RawRRule)
	require.Len(t, events[0].ExDates, 1)
	assert.True(t, events[1].IsOverride())
	assert.True(t, events[2].AllDay)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), events[2].Start)
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse("test", nil, time.UTC)
	assert.Error(t, err)
}

func TestExpand(t *testing.T) {
	events, err := Parse("test", sampleFeed, time.UTC)
	require.NoError(t, err)

	occs, err := Expand(events, march())
	require.NoError(t, err)
	require.Len(t, occs, 4)

	assert.Equal(t, time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC), occs[0].Start)
	assert.Equal(t, time.Date(2025, 3, 4, 11, 30, 0, 0, time.UTC), occs[0].End)
	assert.True(t, occs[1].AllDay)
	assert.Equal(t, "Open (moved)", occs[2].Summary)
	assert.Equal(t, time.Date(2025, 3, 18, 14, 0, 0, 0, time.UTC), occs[2].Start)
	assert.Equal(t, time.Date(2025, 3, 25, 10, 0, 0, 0, time.UTC), occs[3].Start)
}

func TestExpand_BadRange(t *testing.T) {
	r := march()
	r.From, r.To = r.To, r.From
	_, err := Expand(nil, r)
	assert.Error(t, err)
}

func TestSlotsFromOccurrences_DropsAllDay(t *testing.T) {
	events, err := Parse("test", sampleFeed, time.UTC)
	require.NoError(t, err)
	occs, err := Expand(events, march())
	require.NoError(t, err)

	slots := SlotsFromOccurrences(occs, time.UTC)
	require.Len(t, slots, 3)
	assert.Equal(t, "10:00", slots[0].StartTime)
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), slots[0].Date)
	assert.Equal(t, "14:00", slots[1].StartTime)
}

func TestRecurringSlots_Expand(t *testing.T) {
	rs := RecurringSlots{
		RRule:     "FREQ=WEEKLY;BYDAY=TU,TH",
		StartTime: "10:00",
		From:      time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		Until:     time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC),
	}
	slots, err := rs.Expand(time.UTC)
	require.NoError(t, err)
	require.Len(t, slots, 4)

	var days []int
	for _, s := range slots {
		assert.Equal(t, "10:00", s.StartTime)
		days = append(days, s.Date.Day())
	}
	assert.Equal(t, []int{4, 6, 11, 13}, days)
}

func TestRecurringSlots_Invalid(t *testing.T) {
	from := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		rs   RecurringSlots
	}{
		{"no rule", RecurringSlots{StartTime: "10:00", From: from, Until: from}},
		{"bad time", RecurringSlots{RRule: "FREQ=DAILY", StartTime: "10am", From: from, Until: from}},
		{"reversed", RecurringSlots{RRule: "FREQ=DAILY", StartTime: "10:00", From: from, Until: from.AddDate(0, 0, -1)}},
		{"too long", RecurringSlots{RRule: "FREQ=DAILY", StartTime: "10:00", From: from, Until: from.AddDate(2, 0, 0)}},
		{"bad rule", RecurringSlots{RRule: "FREQ=SOMETIMES", StartTime: "10:00", From: from, Until: from.AddDate(0, 0, 7)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.rs.Expand(time.UTC)
			assert.Error(t, err)
		})
	}
}

func TestFeed(t *testing.T) {
	appts := []model.Appointment{
		{
			ID:          "a1",
			Date:        time.Date(2025, 3, 20, 14, 0, 0, 0, time.UTC),
			ClientName:  "Jane",
			ServiceType: model.ServiceGelX,
			NailLength:  model.LengthShortMedium,
			Price:       decimal.NewFromInt(50),
			Status:      model.StatusScheduled,
			Notes:       "almond",
		},
		{
			ID:          "a2",
			Date:        time.Date(2025, 3, 21, 9, 0, 0, 0, time.UTC),
			ServiceType: model.ServiceBuilderGel,
			NailLength:  model.LengthShortMedium,
			Status:      model.StatusCancelled,
		},
	}
	slots := []model.Availability{{ID: "s1", Date: time.Date(2025, 3, 22, 0, 0, 0, 0, time.UTC), StartTime: "11:00"}}

	out := Feed(appts, slots, FeedOptions{
		Location:     time.UTC,
		Availability: true,
		Now:          func() time.Time { return time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC) },
	})

	assert.Contains(t, out, "SUMMARY:Jane - GEL X")
	assert.Contains(t, out, "SUMMARY:Nail Appointment - BUILDER GEL")
	assert.Contains(t, out, "STATUS:CANCELLED")
	assert.Contains(t, out, "UID:appt-a1@nailsync")
	assert.Contains(t, out, "UID:slot-s1@nailsync")

	events, err := Parse("feed", []byte(out), time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, time.Date(2025, 3, 20, 14, 0, 0, 0, time.UTC), events[0].Start.UTC())
	assert.Equal(t, time.Date(2025, 3, 20, 15, 30, 0, 0, time.UTC), events[0].End.UTC())
	assert.Equal(t, time.Date(2025, 3, 22, 11, 0, 0, 0, time.UTC), events[2].Start.UTC())
}

func newTestFetcher(t *testing.T) (*Fetcher, afero.Fs) {
	t.Helper()
	hc := &http.Client{}
	gock.InterceptClient(hc)
	t.Cleanup(func() {
		gock.RestoreClient(hc)
		gock.OffAll()
	})
	fsys := afero.NewMemMapFs()
	return NewFetcher(fsys, "/cache", hc), fsys
}

func TestFetcher_RevalidatesWithETag(t *testing.T) {
	f, _ := newTestFetcher(t)
	const feed = "https://feeds.test/slots.ics"

	gock.New("https://feeds.test").Get("/slots.ics").
		Reply(200).
		SetHeader("ETag", `"v1"`).
		Body(strings.NewReader(string(sampleFeed)))

	body, cached, err := f.Fetch(context.Background(), feed)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, sampleFeed, body)

	gock.New("https://feeds.test").Get("/slots.ics").
		MatchHeader("If-None-Match", `"v1"`).
		Reply(304)

	body, cached, err = f.Fetch(context.Background(), feed)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, sampleFeed, body)
	assert.True(t, gock.IsDone())
}

func TestFetcher_ErrorWithoutCache(t *testing.T) {
	f, _ := newTestFetcher(t)
	gock.New("https://feeds.test").Get("/slots.ics").Reply(500)

	_, _, err := f.Fetch(context.Background(), "https://feeds.test/slots.ics")
	assert.Error(t, err)
}

func TestFetcher_FeedSlots(t *testing.T) {
	f, _ := newTestFetcher(t)
	gock.New("https://feeds.test").Get("/slots.ics").
		Reply(200).
		Body(strings.NewReader(string(sampleFeed)))

	slots, err := f.FeedSlots(context.Background(), "https://feeds.test/slots.ics", march())
	require.NoError(t, err)
	assert.Len(t, slots, 3)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://feeds.test/...(redacted)", redactURL("https://feeds.test/private/abc.ics?token=x"))
	assert.Equal(t, "(redacted)", redactURL("not a url"))
}
