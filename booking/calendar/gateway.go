package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/tanpawarit/chative-party-booking/booking"
)

var (
	ErrUnavailable   = errors.New("calendar service unavailable")
	ErrEventNotFound = errors.New("calendar event not found")
)

type Event struct {
	ID          string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Created     time.Time
	Meta        Metadata
}

// ExpiredPending reports whether a pending hold has outlived ttl.
func (e Event) ExpiredPending(now time.Time, ttl time.Duration) bool {
	if e.Meta.Status != booking.StatusPending || e.Created.IsZero() {
		return false
	}
	return now.Sub(e.Created) > ttl
}

// Gateway is the remote calendar. Every failure to reach the service wraps
// ErrUnavailable; lookups of unknown ids wrap ErrEventNotFound.
type Gateway interface {
	ListEvents(ctx context.Context, start, end time.Time) ([]Event, error)
	SearchEvents(ctx context.Context, from time.Time, text string) ([]Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	InsertEvent(ctx context.Context, ev Event) (string, error)
	UpdateEvent(ctx context.Context, ev Event) error
	DeleteEvent(ctx context.Context, id string) error
}
