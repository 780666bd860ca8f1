package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/chative-party-booking/booking"
	"github.com/tanpawarit/chative-party-booking/booking/availability"
	"github.com/tanpawarit/chative-party-booking/booking/calendar"
	"github.com/tanpawarit/chative-party-booking/booking/ledger"
	"github.com/tanpawarit/chative-party-booking/bot/catalog"
)

var (
	ErrDayUnavailable    = errors.New("day is no longer available")
	ErrInconsistentWrite = errors.New("calendar and ledger diverged")
	ErrNotFound          = errors.New("reservation not found")
	ErrInvalidRequest    = errors.New("invalid reservation request")
)

type Config struct {
	Duration   time.Duration `split_words:"true" default:"4h"`
	PendingTTL time.Duration `split_words:"true" default:"24h"`
	FuelPrice  float64       `split_words:"true" default:"5.60"`
	KmPerLiter float64       `split_words:"true" default:"3.5"`
	TimeZone   string        `split_words:"true" default:"America/Sao_Paulo"`
}

func (c Config) withDefaults() Config {
	if c.Duration <= 0 {
		c.Duration = 4 * time.Hour
	}
	if c.PendingTTL <= 0 {
		c.PendingTTL = availability.DefaultPendingTTL
	}
	if c.KmPerLiter <= 0 {
		c.KmPerLiter = 3.5
	}
	if c.FuelPrice <= 0 {
		c.FuelPrice = 5.60
	}
	return c
}

// Request carries everything needed to place a pending hold.
type Request struct {
	Day          time.Time
	Clock        string
	CustomerName string
	TaxID        string
	Address      string
	Cart         []catalog.CartItem
	Freight      float64
	DistanceKm   float64
}

// Financials are computed once, when the hold is created.
type Financials struct {
	Gross           float64
	OperationalCost float64
	Freight         float64
	FuelCost        float64
	NetProfit       float64
}

func (c Config) Financials(cart []catalog.CartItem, freight, distanceKm float64) Financials {
	c = c.withDefaults()
	items, cost := catalog.Totals(cart)
	fuel := (distanceKm * 2 / c.KmPerLiter) * c.FuelPrice
	gross := items + freight
	return Financials{
		Gross:           gross,
		OperationalCost: cost,
		Freight:         freight,
		FuelCost:        fuel,
		NetProfit:       gross - cost - fuel,
	}
}

// Booking is a reservation as seen from the calendar.
type Booking struct {
	ID     string
	Title  string
	Start  time.Time
	End    time.Time
	Status booking.Status
}

// DayLocker serializes booking writes for one date across processes.
type DayLocker interface {
	Lock(ctx context.Context, day time.Time) (unlock func(), err error)
}

type Option func(*Manager)

func WithLocker(l DayLocker) Option {
	return func(m *Manager) {
		m.locker = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager owns the reservation lifecycle: pending hold, confirmation,
// cancellation, reschedule and expiry. The calendar is authoritative; ledger
// failures are logged and never fail the operation.
type Manager struct {
	gateway  calendar.Gateway
	ledger   ledger.Ledger
	resolver *availability.Resolver
	locker   DayLocker
	cfg      Config
	loc      *time.Location
	now      func() time.Time
}

func NewManager(gateway calendar.Gateway, l ledger.Ledger, cfg Config, opts ...Option) (*Manager, error) {
	if gateway == nil {
		return nil, errors.New("calendar gateway is required")
	}
	if l == nil {
		return nil, errors.New("ledger is required")
	}
	cfg = cfg.withDefaults()

	tz := strings.TrimSpace(cfg.TimeZone)
	if tz == "" {
		tz = "America/Sao_Paulo"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load booking time zone: %w", err)
	}

	m := &Manager{
		gateway: gateway,
		ledger:  l,
		cfg:     cfg,
		loc:     loc,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	m.resolver, err = availability.NewResolver(gateway, m, loc,
		availability.WithClock(m.now),
		availability.WithPendingTTL(cfg.PendingTTL),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) Availability() *availability.Resolver {
	return m.resolver
}

func (m *Manager) Location() *time.Location {
	return m.loc
}

// CreatePending re-checks the day right before inserting the hold, then
// writes the ledger row with the calendar id as join key.
func (m *Manager) CreatePending(ctx context.Context, req Request) (string, error) {
	start, err := booking.At(req.Day, req.Clock, m.loc)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if len(req.Cart) == 0 {
		return "", fmt.Errorf("%w: empty cart", ErrInvalidRequest)
	}

	unlock, err := m.lockDay(ctx, start)
	if err != nil {
		return "", err
	}
	defer unlock()

	if !m.resolver.IsDayFullyFree(ctx, start) {
		return "", fmt.Errorf("%w: %s", ErrDayUnavailable, start.Format(booking.DateLayout))
	}

	fin := m.cfg.Financials(req.Cart, req.Freight, req.DistanceKm)
	ev := calendar.NewEvent(calendar.Details{
		CustomerName: req.CustomerName,
		TaxID:        req.TaxID,
		Address:      req.Address,
		Items:        catalog.DescribeItems(req.Cart),
		Total:        fin.Gross,
		Status:       booking.StatusPending,
		Start:        start,
		End:          start.Add(m.cfg.Duration),
	})
	id, err := m.gateway.InsertEvent(ctx, ev)
	if err != nil {
		return "", err
	}

	snapshot, err := catalog.EncodeSnapshot(req.Cart)
	if err != nil {
		m.inconsistent("encode snapshot", id, err)
		return id, nil
	}
	rec := &ledger.Record{
		BookingID:       id,
		CreatedAt:       m.now().UTC(),
		EventDate:       booking.DayStart(start, m.loc),
		EventTime:       start.Format(booking.TimeLayout),
		CustomerName:    req.CustomerName,
		CustomerTaxID:   req.TaxID,
		Address:         req.Address,
		ItemsSnapshot:   snapshot,
		GrossRevenue:    fin.Gross,
		OperationalCost: fin.OperationalCost,
		FreightCost:     fin.Freight,
		FuelCost:        fin.FuelCost,
		NetProfit:       fin.NetProfit,
		DistanceKm:      req.DistanceKm,
		Status:          booking.StatusPending,
	}
	if err := m.ledger.Record(ctx, rec); err != nil {
		m.inconsistent("record sale", id, err)
	}

	log.Info().Str("booking_id", id).Time("start", start).Msg("pending hold created")
	return id, nil
}

// ConfirmPayment promotes a pending hold. Confirming twice is a no-op.
func (m *Manager) ConfirmPayment(ctx context.Context, bookingID string) error {
	ev, err := m.gateway.GetEvent(ctx, bookingID)
	if err != nil {
		if errors.Is(err, calendar.ErrEventNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, bookingID)
		}
		return err
	}
	if ev.Meta.Status == booking.StatusConfirmed {
		return nil
	}

	if err := m.gateway.UpdateEvent(ctx, calendar.Confirm(ev)); err != nil {
		return err
	}
	if err := m.ledger.SetStatus(ctx, bookingID, booking.StatusConfirmed); err != nil {
		m.inconsistent("confirm sale", bookingID, err)
	}
	log.Info().Str("booking_id", bookingID).Msg("booking confirmed")
	return nil
}

// Cancel frees the date. The ledger keeps a zeroed CANCELED row for audit.
func (m *Manager) Cancel(ctx context.Context, bookingID string) error {
	if err := m.gateway.DeleteEvent(ctx, bookingID); err != nil && !errors.Is(err, calendar.ErrEventNotFound) {
		return err
	}
	if err := m.ledger.Cancel(ctx, bookingID); err != nil {
		m.inconsistent("cancel sale", bookingID, err)
	}
	log.Info().Str("booking_id", bookingID).Msg("booking canceled")
	return nil
}

// Reschedule moves the event in place, keeping its id. The original booking
// is untouched when the target day is taken.
func (m *Manager) Reschedule(ctx context.Context, bookingID string, day time.Time, clock string) error {
	start, err := booking.At(day, clock, m.loc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	unlock, err := m.lockDay(ctx, start)
	if err != nil {
		return err
	}
	defer unlock()

	if !m.resolver.IsDayFullyFree(ctx, start) {
		return fmt.Errorf("%w: %s", ErrDayUnavailable, start.Format(booking.DateLayout))
	}

	ev, err := m.gateway.GetEvent(ctx, bookingID)
	if err != nil {
		if errors.Is(err, calendar.ErrEventNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, bookingID)
		}
		return err
	}
	ev.Start = start
	ev.End = start.Add(m.cfg.Duration)
	if err := m.gateway.UpdateEvent(ctx, ev); err != nil {
		return err
	}

	if err := m.ledger.Reschedule(ctx, bookingID, booking.DayStart(start, m.loc), start.Format(booking.TimeLayout)); err != nil {
		m.inconsistent("reschedule sale", bookingID, err)
	}
	log.Info().Str("booking_id", bookingID).Time("start", start).Msg("booking rescheduled")
	return nil
}

// ExpireStale removes an unpaid hold from both systems, leaving no ledger row.
func (m *Manager) ExpireStale(ctx context.Context, bookingID string) error {
	if err := m.gateway.DeleteEvent(ctx, bookingID); err != nil && !errors.Is(err, calendar.ErrEventNotFound) {
		return err
	}
	if err := m.ledger.Delete(ctx, bookingID); err != nil && !errors.Is(err, ledger.ErrRecordNotFound) {
		m.inconsistent("delete sale", bookingID, err)
	}
	return nil
}

// Release undoes a hold whose payment link could not be produced, so the
// customer can retry the same day.
func (m *Manager) Release(ctx context.Context, bookingID string) error {
	log.Info().Str("booking_id", bookingID).Msg("releasing pending hold")
	return m.ExpireStale(ctx, bookingID)
}

// FindByTaxID lists upcoming bookings carrying the tax ID, skipping expired holds.
func (m *Manager) FindByTaxID(ctx context.Context, taxID string) ([]Booking, error) {
	now := m.now()
	events, err := m.gateway.SearchEvents(ctx, now, calendar.TaxIDKey(taxID))
	if err != nil {
		return nil, err
	}

	var out []Booking
	for _, ev := range events {
		if ev.Meta.TaxID != taxID || ev.ExpiredPending(now, m.cfg.PendingTTL) {
			continue
		}
		out = append(out, Booking{
			ID:     ev.ID,
			Title:  ev.Title,
			Start:  ev.Start.In(m.loc),
			End:    ev.End.In(m.loc),
			Status: ev.Meta.Status,
		})
	}
	return out, nil
}

// Reconcile cancels active ledger rows whose calendar event is gone. An
// unreachable calendar counts as "event exists".
func (m *Manager) Reconcile(ctx context.Context) (int, error) {
	records, err := m.ledger.Active(ctx)
	if err != nil {
		return 0, err
	}

	fixed := 0
	for _, rec := range records {
		_, err := m.gateway.GetEvent(ctx, rec.BookingID)
		switch {
		case err == nil:
			continue
		case errors.Is(err, calendar.ErrEventNotFound):
			if err := m.ledger.Cancel(ctx, rec.BookingID); err != nil {
				log.Warn().Err(err).Str("booking_id", rec.BookingID).Msg("reconcile cancel failed")
				continue
			}
			fixed++
		default:
			log.Warn().Err(err).Str("booking_id", rec.BookingID).Msg("reconcile skipped, calendar unreachable")
		}
	}
	return fixed, nil
}

func (m *Manager) lockDay(ctx context.Context, day time.Time) (func(), error) {
	if m.locker == nil {
		return func() {}, nil
	}
	return m.locker.Lock(ctx, booking.DayStart(day, m.loc))
}

func (m *Manager) inconsistent(op, bookingID string, err error) {
	log.Error().
		Err(fmt.Errorf("%w: %s: %w", ErrInconsistentWrite, op, err)).
		Str("booking_id", bookingID).
		Msg("ledger out of sync with calendar")
}
