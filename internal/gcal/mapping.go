package gcal

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	appLog "nailsync/internal/log"
	"nailsync/internal/model"
)

// Private extended-property keys.
const (
	keyServiceType = "serviceType"
	keyNailLength  = "nailLength"
	keyPrice       = "price"
	keyStatus      = "status"
	keyNotes       = "inspirationText"
	keySoakOff     = "soakOff"
	keyPhotoIDs    = "photoIds"
	keyAddOns      = "addOns"
)

const (
	summarySeparator   = " - "
	defaultSummaryName = "Nail Appointment"
)

// Event is the subset of the calendar event resource we read and write.
type Event struct {
	ID                 string              `json:"id,omitempty"`
	Status             string              `json:"status,omitempty"`
	Summary            string              `json:"summary"`
	Description        string              `json:"description,omitempty"`
	Start              EventTime           `json:"start"`
	End                EventTime           `json:"end"`
	ColorID            string              `json:"colorId,omitempty"`
	ExtendedProperties *ExtendedProperties `json:"extendedProperties,omitempty"`
	Created            string              `json:"created,omitempty"`
	Updated            string              `json:"updated,omitempty"`
}

// EventTime is either a timed instant (DateTime) or an all-day Date.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// ExtendedProperties is the provider's key/value extension map.
type ExtendedProperties struct {
	Private map[string]string `json:"private,omitempty"`
}

func (e Event) private(key string) (string, bool) {
	if e.ExtendedProperties == nil {
		return "", false
	}
	v, ok := e.ExtendedProperties.Private[key]
	return v, ok
}

// Summary renders "<client or 'Nail Appointment'> - <SERVICE TYPE>".
func Summary(a model.Appointment) string {
	name := a.ClientName
	if name == "" {
		name = defaultSummaryName
	}
	return name + summarySeparator + a.ServiceType.Spaced()
}

// ToEvent maps an appointment to an event. photoIDs are the remote file
// ids to record; nil omits the photo reference entirely.
func ToEvent(a model.Appointment, photoIDs []string, loc *time.Location, duration time.Duration) Event {
	if loc == nil {
		loc = time.Local
	}
	if duration <= 0 {
		duration = DefaultEventDuration
	}
	start := a.Date.In(loc)
	end := start.Add(duration)

	length := a.NailLength
	if length == "" {
		length = model.DefaultNailLength
	}

	priv := map[string]string{
		keyServiceType: string(a.ServiceType),
		keyNailLength:  string(length),
		keyPrice:       a.Price.String(),
		keyStatus:      string(a.Status),
		keyNotes:       a.Notes,
		keySoakOff:     strconv.FormatBool(a.SoakOff),
	}
	if len(photoIDs) > 0 {
		priv[keyPhotoIDs] = strings.Join(photoIDs, ",")
	}
	if len(a.AddOns) > 0 {
		if b, err := json.Marshal(a.AddOns); err == nil {
			priv[keyAddOns] = string(b)
		}
	}

	return Event{
		Summary:     Summary(a),
		Description: describe(a),
		Start:       EventTime{DateTime: start.Format(time.RFC3339), TimeZone: loc.String()},
		End:         EventTime{DateTime: end.Format(time.RFC3339), TimeZone: loc.String()},
		ColorID:     colorFlamingo,
		ExtendedProperties: &ExtendedProperties{
			Private: priv,
		},
	}
}

// describe is the human-readable body shown in the calendar UI.
func describe(a model.Appointment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Service: %s\n", a.ServiceType.Spaced())
	if a.ServiceType == model.ServiceGelX && a.NailLength != "" {
		fmt.Fprintf(&b, "Length: %s\n", strings.ReplaceAll(string(a.NailLength), "_", "/"))
	}
	fmt.Fprintf(&b, "Price: $%s\n", a.Price.StringFixed(2))
	if a.SoakOff {
		b.WriteString("Soak off: yes\n")
	}
	notes := a.Notes
	if notes == "" {
		notes = "None"
	}
	fmt.Fprintf(&b, "\nInspiration: %s", notes)
	return b.String()
}

// serviceMatchers is ordered most specific first: "BUILDER GEL" contains
// "GEL" as well, and builder must win.
var serviceMatchers = []struct {
	substr string
	st     model.ServiceType
}{
	{"BUILDER", model.ServiceBuilderGel},
	{"MANICURE", model.ServiceGelManicure},
	{"GEL X", model.ServiceGelX},
	{"GEL_X", model.ServiceGelX},
	{"GELX", model.ServiceGelX},
}

// ClassifyService picks the service type named in upper-cased summary
// text, or "" if none matches.
func ClassifyService(text string) model.ServiceType {
	text = strings.ToUpper(text)
	for _, m := range serviceMatchers {
		if strings.Contains(text, m.substr) {
			return m.st
		}
	}
	return ""
}

// ParseSummary splits a summary into client name and upper-cased service
// text at the last separator, so client names containing " - " survive.
func ParseSummary(summary string) (clientName, serviceText string) {
	i := strings.LastIndex(summary, summarySeparator)
	if i < 0 {
		return "", strings.ToUpper(strings.TrimSpace(summary))
	}
	clientName = strings.TrimSpace(summary[:i])
	serviceText = strings.ToUpper(strings.TrimSpace(summary[i+len(summarySeparator):]))
	if clientName == defaultSummaryName {
		clientName = ""
	}
	return clientName, serviceText
}

// Recognized reports whether summary contains one of keywords, ignoring
// case. An empty keyword list recognises everything.
func Recognized(summary string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	s := strings.ToUpper(summary)
	for _, k := range keywords {
		if k != "" && strings.Contains(s, strings.ToUpper(k)) {
			return true
		}
	}
	return false
}

// FromEvent maps an event back to an appointment. Photos are returned as
// remote references; the caller decides whether to download them.
func FromEvent(ev Event, loc *time.Location, fallbackPrice decimal.Decimal) (model.Appointment, error) {
	if loc == nil {
		loc = time.Local
	}
	if ev.ID == "" {
		return model.Appointment{}, fmt.Errorf("event has no id")
	}
	start, err := parseEventTime(ev.Start, loc)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("event %s: start: %w", ev.ID, err)
	}

	name, serviceText := ParseSummary(ev.Summary)

	a := model.Appointment{
		ID:            ev.ID,
		RemoteEventID: ev.ID,
		Date:          start,
		ClientName:    name,
		ServiceType:   ClassifyService(serviceText),
		NailLength:    model.DefaultNailLength,
		Price:         fallbackPrice,
		Status:        model.StatusScheduled,
	}

	if a.ServiceType == "" {
		if v, ok := ev.private(keyServiceType); ok && model.ServiceType(v).Valid() {
			a.ServiceType = model.ServiceType(v)
		} else {
			a.ServiceType = model.ServiceGelX
		}
	}
	if v, ok := ev.private(keyNailLength); ok && model.NailLength(v).Valid() {
		a.NailLength = model.NailLength(v)
	}
	if v, ok := ev.private(keyPrice); ok {
		if p, err := decimal.NewFromString(v); err == nil && !p.IsNegative() {
			a.Price = p
		} else {
			appLog.Debug("event price unreadable; using fallback", "event_id", ev.ID, "value", v)
		}
	}
	if v, ok := ev.private(keyStatus); ok && model.Status(v).Valid() {
		a.Status = model.Status(v)
	}
	if v, ok := ev.private(keyNotes); ok {
		a.Notes = v
	}
	if v, ok := ev.private(keySoakOff); ok {
		a.SoakOff, _ = strconv.ParseBool(v)
	}
	if v, ok := ev.private(keyAddOns); ok && v != "" {
		var addOns []model.AddOn
		if err := json.Unmarshal([]byte(v), &addOns); err != nil {
			appLog.Debug("event add-ons unreadable; ignoring", "event_id", ev.ID, "err", err)
		} else {
			a.AddOns = addOns
		}
	}
	for _, id := range PhotoIDs(ev) {
		a.InspirationPhotos = append(a.InspirationPhotos, model.RemotePhoto(id))
	}

	if t, err := time.Parse(time.RFC3339, ev.Created); err == nil {
		a.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, ev.Updated); err == nil {
		a.UpdatedAt = t
	}
	return a, nil
}

// PhotoIDs returns the file ids listed in the event's extension map.
func PhotoIDs(ev Event) []string {
	raw, ok := ev.private(keyPhotoIDs)
	if !ok {
		return nil
	}
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func parseEventTime(t EventTime, loc *time.Location) (time.Time, error) {
	if t.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}, err
		}
		return parsed.In(loc), nil
	}
	if t.Date != "" {
		return time.ParseInLocation("2006-01-02", t.Date, loc)
	}
	return time.Time{}, fmt.Errorf("no date or dateTime")
}
