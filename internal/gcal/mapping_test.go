package gcal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nailsync/internal/model"
)

var apptStart = time.Date(2025, 3, 20, 14, 0, 0, 0, time.UTC)

func sampleAppointment() model.Appointment {
	return model.Appointment{
		ID:          "a1",
		Date:        apptStart,
		ClientName:  "Jane",
		ServiceType: model.ServiceGelX,
		NailLength:  model.LengthLongXLong,
		SoakOff:     true,
		Notes:       "chrome tips",
		Price:       decimal.NewFromInt(70),
		Status:      model.StatusCompleted,
	}
}

func TestToEvent_Shape(t *testing.T) {
	ev := ToEvent(sampleAppointment(), []string{"f1", "f2"}, time.UTC, 0)

	assert.Equal(t, "Jane - GEL X", ev.Summary)
	assert.Equal(t, colorFlamingo, ev.ColorID)
	assert.Equal(t, "2025-03-20T14:00:00Z", ev.Start.DateTime)
	assert.Equal(t, "2025-03-20T15:30:00Z", ev.End.DateTime)
	assert.Equal(t, "UTC", ev.Start.TimeZone)
	assert.Contains(t, ev.Description, "Service: GEL X")
	assert.Contains(t, ev.Description, "Price: $70.00")
	assert.Contains(t, ev.Description, "Inspiration: chrome tips")

	priv := ev.ExtendedProperties.Private
	assert.Equal(t, "GEL_X", priv[keyServiceType])
	assert.Equal(t, "LONG_XLONG", priv[keyNailLength])
	assert.Equal(t, "70", priv[keyPrice])
	assert.Equal(t, "COMPLETED", priv[keyStatus])
	assert.Equal(t, "true", priv[keySoakOff])
	assert.Equal(t, "f1,f2", priv[keyPhotoIDs])
	assert.NotContains(t, priv, keyAddOns)
}

func TestToEvent_NoPhotosOmitsKey(t *testing.T) {
	a := sampleAppointment()
	a.ClientName = ""
	ev := ToEvent(a, nil, time.UTC, 0)

	assert.Equal(t, "Nail Appointment - GEL X", ev.Summary)
	assert.NotContains(t, ev.ExtendedProperties.Private, keyPhotoIDs)
}

func TestRoundTrip(t *testing.T) {
	for _, st := range model.ServiceTypes {
		t.Run(string(st), func(t *testing.T) {
			a := sampleAppointment()
			a.ServiceType = st
			a.AddOns = []model.AddOn{{Type: model.AddOnCharms, Quantity: 2, PricePerNail: decimal.NewFromInt(2)}}

			ev := ToEvent(a, nil, time.UTC, 0)
			ev.ID = "g1"

			got, err := FromEvent(ev, time.UTC, decimal.NewFromInt(60))
			require.NoError(t, err)

			assert.Equal(t, a.ServiceType, got.ServiceType)
			assert.Equal(t, a.NailLength, got.NailLength)
			assert.True(t, a.Price.Equal(got.Price), "price %s != %s", a.Price, got.Price)
			assert.Equal(t, a.Status, got.Status)
			assert.Equal(t, a.Notes, got.Notes)
			assert.Equal(t, a.ClientName, got.ClientName)
			assert.Equal(t, a.SoakOff, got.SoakOff)
			assert.True(t, a.Date.Equal(got.Date))
			assert.Equal(t, "g1", got.RemoteEventID)
			require.Len(t, got.AddOns, 1)
			assert.Equal(t, model.AddOnCharms, got.AddOns[0].Type)
		})
	}
}

func TestRoundTrip_ClientNameWithSeparator(t *testing.T) {
	a := sampleAppointment()
	a.ClientName = "Mary - Jo"

	ev := ToEvent(a, nil, time.UTC, 0)
	ev.ID = "g1"
	got, err := FromEvent(ev, time.UTC, decimal.Zero)
	require.NoError(t, err)

	assert.Equal(t, "Mary - Jo", got.ClientName)
	assert.Equal(t, model.ServiceGelX, got.ServiceType)
}

func TestParseSummary(t *testing.T) {
	tests := []struct {
		summary     string
		wantName    string
		wantService string
	}{
		{"Jane - GEL X", "Jane", "GEL X"},
		{"Jane - builder gel", "Jane", "BUILDER GEL"},
		{"Nail Appointment - GEL MANICURE", "", "GEL MANICURE"},
		{"Mary - Jo - GEL X", "Mary - Jo", "GEL X"},
		{"Gel nails", "", "GEL NAILS"},
	}
	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			name, service := ParseSummary(tt.summary)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantService, service)
		})
	}
}

func TestClassifyService(t *testing.T) {
	tests := []struct {
		text string
		want model.ServiceType
	}{
		{"GEL X", model.ServiceGelX},
		{"GEL_X", model.ServiceGelX},
		{"GELX", model.ServiceGelX},
		{"GEL MANICURE", model.ServiceGelManicure},
		{"BUILDER GEL", model.ServiceBuilderGel},
		{"BUILDER GEL MANICURE", model.ServiceBuilderGel},
		{"gel x with builder", model.ServiceBuilderGel},
		{"PEDICURE", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyService(tt.text))
		})
	}
}

func TestRecognized(t *testing.T) {
	assert.True(t, Recognized("Jane - GEL X", DefaultKeywords))
	assert.True(t, Recognized("nail fill", DefaultKeywords))
	assert.False(t, Recognized("Dentist", DefaultKeywords))
	assert.True(t, Recognized("Dentist", nil))
	assert.False(t, Recognized("Dentist", []string{""}))
}

func TestFromEvent_Defaults(t *testing.T) {
	ev := Event{
		ID:      "g9",
		Summary: "Kim - GEL MANICURE",
		Start:   EventTime{DateTime: "2025-03-21T09:30:00Z"},
	}
	got, err := FromEvent(ev, time.UTC, decimal.NewFromInt(60))
	require.NoError(t, err)

	assert.Equal(t, "g9", got.ID)
	assert.Equal(t, "Kim", got.ClientName)
	assert.Equal(t, model.ServiceGelManicure, got.ServiceType)
	assert.Equal(t, model.DefaultNailLength, got.NailLength)
	assert.Equal(t, model.StatusScheduled, got.Status)
	assert.True(t, decimal.NewFromInt(60).Equal(got.Price))
	assert.Empty(t, got.InspirationPhotos)
}

func TestFromEvent_FallsBackToExtensionServiceType(t *testing.T) {
	ev := Event{
		ID:                 "g9",
		Summary:            "Kim - nails",
		Start:              EventTime{DateTime: "2025-03-21T09:30:00Z"},
		ExtendedProperties: &ExtendedProperties{Private: map[string]string{keyServiceType: "BUILDER_GEL", keyPrice: "oops"}},
	}
	got, err := FromEvent(ev, time.UTC, decimal.NewFromInt(60))
	require.NoError(t, err)

	assert.Equal(t, model.ServiceBuilderGel, got.ServiceType)
	assert.True(t, decimal.NewFromInt(60).Equal(got.Price))
}

func TestFromEvent_AllDayEvent(t *testing.T) {
	ev := Event{ID: "g2", Summary: "Jo - GEL X", Start: EventTime{Date: "2025-03-22"}}
	got, err := FromEvent(ev, time.UTC, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 22, 0, 0, 0, 0, time.UTC), got.Date)
}

func TestFromEvent_Malformed(t *testing.T) {
	_, err := FromEvent(Event{ID: "g3", Summary: "Jo - GEL X"}, time.UTC, decimal.Zero)
	assert.Error(t, err)

	_, err = FromEvent(Event{ID: "g4", Summary: "Jo - GEL X", Start: EventTime{DateTime: "tomorrow"}}, time.UTC, decimal.Zero)
	assert.Error(t, err)

	_, err = FromEvent(Event{Summary: "Jo - GEL X", Start: EventTime{Date: "2025-03-22"}}, time.UTC, decimal.Zero)
	assert.Error(t, err)
}

func TestPhotoIDs(t *testing.T) {
	ev := Event{ExtendedProperties: &ExtendedProperties{Private: map[string]string{keyPhotoIDs: "a, b,,c"}}}
	assert.Equal(t, []string{"a", "b", "c"}, PhotoIDs(ev))
	assert.Nil(t, PhotoIDs(Event{}))
}

func TestAppointmentFolderName(t *testing.T) {
	a := sampleAppointment()
	assert.Equal(t, "2025-03-20 Jane", AppointmentFolderName(a, time.UTC))
	a.ClientName = "  "
	assert.Equal(t, "2025-03-20 Nail Appointment", AppointmentFolderName(a, time.UTC))
}
