package gcal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	appLog "nailsync/internal/log"
	"nailsync/internal/model"
)

const listPageSize = 250

type eventList struct {
	Items         []Event `json:"items"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

func (c *Client) eventsURL() string {
	return c.cfg.CalendarBaseURL + "/calendars/" + url.PathEscape(c.cfg.CalendarID) + "/events"
}

func (c *Client) eventURL(remoteID string) string {
	return c.eventsURL() + "/" + url.PathEscape(remoteID)
}

// buildEvent uploads inline photos and maps a to an event. A failed photo
// batch is logged and the event is built without photo references.
func (c *Client) buildEvent(ctx context.Context, a model.Appointment) Event {
	ids, err := c.syncPhotos(ctx, a)
	if err != nil {
		appLog.Warn("photo upload failed; writing event without photos", err,
			"appointment_id", a.ID, "photos", len(a.InspirationPhotos))
		ids = nil
	}
	return ToEvent(a, ids, c.cfg.Location, c.cfg.EventDuration)
}

// CreateRemote writes a as a new event and returns its remote id.
func (c *Client) CreateRemote(ctx context.Context, a model.Appointment) (string, error) {
	ev := c.buildEvent(ctx, a)

	var created Event
	if err := c.sendJSON(ctx, "create", http.MethodPost, c.eventsURL(), ev, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", &RemoteSyncError{Op: "create", Err: fmt.Errorf("response has no event id")}
	}
	appLog.Debug("remote event created", "appointment_id", a.ID, "remote_id", created.ID)
	return created.ID, nil
}

// UpdateRemote replaces the event remoteID with the mapping of a.
func (c *Client) UpdateRemote(ctx context.Context, remoteID string, a model.Appointment) error {
	ev := c.buildEvent(ctx, a)
	if err := c.sendJSON(ctx, "update", http.MethodPut, c.eventURL(remoteID), ev, nil); err != nil {
		return err
	}
	appLog.Debug("remote event updated", "appointment_id", a.ID, "remote_id", remoteID)
	return nil
}

// DeleteRemote removes the event remoteID. An event that is already gone
// counts as deleted.
func (c *Client) DeleteRemote(ctx context.Context, remoteID string) error {
	err := c.sendJSON(ctx, "delete", http.MethodDelete, c.eventURL(remoteID), nil, nil)
	if IsNotFound(err) {
		appLog.Debug("remote event already absent", "remote_id", remoteID)
		return nil
	}
	return err
}

// ListRemote returns the recognised appointments whose events start in
// [from, to). Unrecognised, cancelled and malformed events are skipped.
// Photo references are downloaded back to inline data; a failed download
// fails the whole listing.
func (c *Client) ListRemote(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	events, err := c.listEvents(ctx, from, to)
	if err != nil {
		return nil, err
	}

	var out []model.Appointment
	skipped := 0
	for _, ev := range events {
		if ev.Status == "cancelled" || !Recognized(ev.Summary, c.cfg.Keywords) {
			skipped++
			continue
		}
		a, err := FromEvent(ev, c.cfg.Location, c.cfg.FallbackPrice)
		if err != nil {
			appLog.Warn("skipping malformed remote event", err, "remote_id", ev.ID)
			skipped++
			continue
		}
		if err := c.resolvePhotos(ctx, &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	appLog.Info("remote events listed", "events", len(events), "recognised", len(out), "skipped", skipped)
	return out, nil
}

func (c *Client) listEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	var all []Event
	pageToken := ""
	for {
		v := url.Values{}
		v.Set("timeMin", from.Format(time.RFC3339))
		v.Set("timeMax", to.Format(time.RFC3339))
		v.Set("singleEvents", "true")
		v.Set("orderBy", "startTime")
		v.Set("maxResults", fmt.Sprint(listPageSize))
		if pageToken != "" {
			v.Set("pageToken", pageToken)
		}

		var page eventList
		if err := c.sendJSON(ctx, "list", http.MethodGet, c.eventsURL()+"?"+v.Encode(), nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Items...)

		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}
