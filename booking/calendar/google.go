package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type GoogleConfig struct {
	CredentialsFile string        `split_words:"true" required:"true"`
	CalendarID      string        `envconfig:"ID" required:"true"`
	TimeZone        string        `split_words:"true" default:"America/Sao_Paulo"`
	Timeout         time.Duration `split_words:"true" default:"10s"`
}

// GoogleGateway talks to Google Calendar with a service account.
type GoogleGateway struct {
	events     *gcal.EventsService
	calendarID string
	timeZone   string
	loc        *time.Location
	timeout    time.Duration
}

// NewGoogleGateway builds the client. Extra options override the credentials
// file, which lets tests point the client at a local server.
func NewGoogleGateway(ctx context.Context, cfg GoogleConfig, opts ...option.ClientOption) (*GoogleGateway, error) {
	calendarID := strings.TrimSpace(cfg.CalendarID)
	if calendarID == "" {
		return nil, errors.New("google calendar id is required")
	}
	tz := strings.TrimSpace(cfg.TimeZone)
	if tz == "" {
		tz = "America/Sao_Paulo"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load calendar time zone: %w", err)
	}

	if len(opts) == 0 {
		opts = []option.ClientOption{
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(gcal.CalendarScope),
		}
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleGateway{
		events:     svc.Events,
		calendarID: calendarID,
		timeZone:   tz,
		loc:        loc,
		timeout:    timeout,
	}, nil
}

func (g *GoogleGateway) ListEvents(ctx context.Context, start, end time.Time) ([]Event, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	res, err := g.events.List(g.calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, g.wrap("list events", err)
	}
	return g.fromItems(res.Items), nil
}

func (g *GoogleGateway) SearchEvents(ctx context.Context, from time.Time, text string) ([]Event, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	res, err := g.events.List(g.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		Q(text).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, g.wrap("search events", err)
	}
	return g.fromItems(res.Items), nil
}

func (g *GoogleGateway) GetEvent(ctx context.Context, id string) (Event, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	item, err := g.events.Get(g.calendarID, id).Context(ctx).Do()
	if err != nil {
		return Event{}, g.wrap("get event "+id, err)
	}
	// Deleted events stay readable by id with status "cancelled".
	if item.Status == "cancelled" {
		return Event{}, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	return g.fromItem(item), nil
}

func (g *GoogleGateway) InsertEvent(ctx context.Context, ev Event) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	created, err := g.events.Insert(g.calendarID, g.toItem(ev)).Context(ctx).Do()
	if err != nil {
		return "", g.wrap("insert event", err)
	}
	return created.Id, nil
}

// UpdateEvent patches title, description and times, leaving every other
// field of the remote event alone.
func (g *GoogleGateway) UpdateEvent(ctx context.Context, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if _, err := g.events.Patch(g.calendarID, ev.ID, g.toItem(ev)).Context(ctx).Do(); err != nil {
		return g.wrap("update event "+ev.ID, err)
	}
	return nil
}

func (g *GoogleGateway) DeleteEvent(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.events.Delete(g.calendarID, id).Context(ctx).Do(); err != nil {
		return g.wrap("delete event "+id, err)
	}
	return nil
}

func (g *GoogleGateway) wrap(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return fmt.Errorf("%w: %s", ErrEventNotFound, op)
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

func (g *GoogleGateway) toItem(ev Event) *gcal.Event {
	return &gcal.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Start: &gcal.EventDateTime{
			DateTime: ev.Start.In(g.loc).Format(time.RFC3339),
			TimeZone: g.timeZone,
		},
		End: &gcal.EventDateTime{
			DateTime: ev.End.In(g.loc).Format(time.RFC3339),
			TimeZone: g.timeZone,
		},
	}
}

func (g *GoogleGateway) fromItems(items []*gcal.Event) []Event {
	out := make([]Event, 0, len(items))
	for _, item := range items {
		if item == nil || item.Status == "cancelled" {
			continue
		}
		out = append(out, g.fromItem(item))
	}
	return out
}

func (g *GoogleGateway) fromItem(item *gcal.Event) Event {
	ev := Event{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Start:       g.parseWhen(item.Start),
		End:         g.parseWhen(item.End),
	}
	if created, err := time.Parse(time.RFC3339, item.Created); err == nil {
		ev.Created = created
	}
	ev.Meta = ParseMetadata(ev.Title, ev.Description)
	return ev
}

func (g *GoogleGateway) parseWhen(dt *gcal.EventDateTime) time.Time {
	if dt == nil {
		return time.Time{}
	}
	if dt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
			return t.In(g.loc)
		}
	}
	if dt.Date != "" {
		if t, err := time.ParseInLocation("2006-01-02", dt.Date, g.loc); err == nil {
			return t
		}
	}
	return time.Time{}
}
