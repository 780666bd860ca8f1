package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/chative-party-booking/booking"
	"github.com/tanpawarit/chative-party-booking/booking/calendar"
)

const DefaultPendingTTL = 24 * time.Hour

// Expirer removes a stale pending hold from the calendar and the ledger.
type Expirer interface {
	ExpireStale(ctx context.Context, bookingID string) error
}

type Option func(*Resolver)

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func WithPendingTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl > 0 {
			r.pendingTTL = ttl
		}
	}
}

// Resolver answers which days can still be booked.
type Resolver struct {
	gateway    calendar.Gateway
	expirer    Expirer
	loc        *time.Location
	pendingTTL time.Duration
	now        func() time.Time
}

func NewResolver(gateway calendar.Gateway, expirer Expirer, loc *time.Location, opts ...Option) (*Resolver, error) {
	if gateway == nil {
		return nil, errors.New("calendar gateway is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	r := &Resolver{
		gateway:    gateway,
		expirer:    expirer,
		loc:        loc,
		pendingTTL: DefaultPendingTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

func (r *Resolver) Location() *time.Location {
	return r.loc
}

func (r *Resolver) PendingTTL() time.Duration {
	return r.pendingTTL
}

// FreeDaysInMonth lists the bookable days of a month from today on. Expired
// pending holds are ignored here but only removed by IsDayFullyFree.
func (r *Resolver) FreeDaysInMonth(ctx context.Context, year int, month time.Month) ([]int, error) {
	now := r.now().In(r.loc)
	first := time.Date(year, month, 1, 0, 0, 0, 0, r.loc)
	next := first.AddDate(0, 1, 0)
	today := booking.DayStart(now, r.loc)
	if !next.After(today) {
		return nil, nil
	}

	events, err := r.gateway.ListEvents(ctx, first, next)
	if err != nil {
		return nil, fmt.Errorf("free days %d-%02d: %w", year, month, err)
	}

	occupied := make(map[int]struct{}, len(events))
	for _, ev := range events {
		if ev.ExpiredPending(now, r.pendingTTL) {
			continue
		}
		start := ev.Start.In(r.loc)
		if start.Year() == year && start.Month() == month {
			occupied[start.Day()] = struct{}{}
		}
	}

	var free []int
	for day := first; day.Before(next); day = day.AddDate(0, 0, 1) {
		if day.Before(today) {
			continue
		}
		if _, taken := occupied[day.Day()]; taken {
			continue
		}
		free = append(free, day.Day())
	}
	return free, nil
}

// IsDayFullyFree is the check run right before a booking write. Expired
// pending holds found on the day are removed as a side effect. Any gateway
// failure reports the day as occupied.
func (r *Resolver) IsDayFullyFree(ctx context.Context, day time.Time) bool {
	start := booking.DayStart(day, r.loc)
	end := start.AddDate(0, 0, 1)

	events, err := r.gateway.ListEvents(ctx, start, end)
	if err != nil {
		log.Warn().Err(err).Str("day", start.Format(booking.DateLayout)).Msg("day check failed, treating day as occupied")
		return false
	}

	now := r.now()
	valid := 0
	for _, ev := range events {
		if !ev.ExpiredPending(now, r.pendingTTL) {
			valid++
			continue
		}
		log.Info().Str("booking_id", ev.ID).Time("created", ev.Created).Msg("removing expired pending hold")
		if r.expirer == nil {
			continue
		}
		if err := r.expirer.ExpireStale(ctx, ev.ID); err != nil {
			log.Warn().Err(err).Str("booking_id", ev.ID).Msg("expired hold cleanup failed")
		}
	}
	return valid == 0
}
