package agenda

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
)

// Calendar is the subset of the Calendar API the publisher uses.
type Calendar interface {
	Get(ctx context.Context, eventID string) (*calendar.Event, error)
	FindByTaskID(ctx context.Context, taskID string) (*calendar.Event, error)
	Insert(ctx context.Context, event *calendar.Event) (*calendar.Event, error)
	Patch(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error)
	Delete(ctx context.Context, eventID string) error
}

// GoogleCalendar is a Calendar backed by one calendar of a Google account.
type GoogleCalendar struct {
	srv        *calendar.Service
	calendarID string
}

func NewGoogleCalendar(srv *calendar.Service, calendarID string) *GoogleCalendar {
	return &GoogleCalendar{srv: srv, calendarID: calendarID}
}

// OpenGoogleCalendar resolves a calendar by its display name.
func OpenGoogleCalendar(ctx context.Context, srv *calendar.Service, name string) (*GoogleCalendar, error) {
	list, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendar list: %w", err)
	}
	for _, item := range list.Items {
		if item.Summary == name {
			return NewGoogleCalendar(srv, item.Id), nil
		}
	}
	return nil, fmt.Errorf("calendar '%s' not found", name)
}

func (c *GoogleCalendar) Get(ctx context.Context, eventID string) (*calendar.Event, error) {
	return c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
}

// FindByTaskID searches by the private task id property. It returns nil
// when there is no match.
func (c *GoogleCalendar) FindByTaskID(ctx context.Context, taskID string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", TaskIDProperty, taskID)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}

func (c *GoogleCalendar) Insert(ctx context.Context, event *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
}

func (c *GoogleCalendar) Patch(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
}

func (c *GoogleCalendar) Delete(ctx context.Context, eventID string) error {
	return c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
}

// List returns the events starting after timeMin.
func (c *GoogleCalendar) List(ctx context.Context, timeMin time.Time) ([]*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).TimeMin(timeMin.Format(time.RFC3339)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve events from calendar: %w", err)
	}
	return events.Items, nil
}
