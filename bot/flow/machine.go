package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tanpawarit/chative-party-booking/booking"
	"github.com/tanpawarit/chative-party-booking/booking/freight"
	"github.com/tanpawarit/chative-party-booking/booking/payment"
	"github.com/tanpawarit/chative-party-booking/booking/reservation"
	"github.com/tanpawarit/chative-party-booking/bot/catalog"
	"github.com/tanpawarit/chative-party-booking/bot/contract"
	"github.com/tanpawarit/chative-party-booking/bot/state"
)

// Availability lists bookable days.
type Availability interface {
	FreeDaysInMonth(ctx context.Context, year int, month time.Month) ([]int, error)
}

// Reservations is the booking lifecycle the dialogue drives.
type Reservations interface {
	CreatePending(ctx context.Context, req reservation.Request) (string, error)
	Release(ctx context.Context, bookingID string) error
	Cancel(ctx context.Context, bookingID string) error
	Reschedule(ctx context.Context, bookingID string, day time.Time, clock string) error
	FindByTaxID(ctx context.Context, taxID string) ([]reservation.Booking, error)
}

// Config holds the dialogue knobs that come from the environment.
type Config struct {
	OpenAt       string  `split_words:"true" default:"08:00"`
	CloseAt      string  `split_words:"true" default:"17:00"`
	DepositRatio float64 `split_words:"true" default:"0.5"`
	MonthsAhead  int     `split_words:"true" default:"12"`
	MaxListed    int     `split_words:"true" default:"10"`
}

type Deps struct {
	Catalog      catalog.Catalog
	Availability Availability
	Reservations Reservations
	Distance     freight.Provider
	Rates        freight.Rates
	Payments     payment.Gateway
	Reports      contract.ReportTrigger
	Location     *time.Location
	Now          func() time.Time
	Config       Config
}

// Machine maps (message, session) to (response, session'). It holds no
// per-user state; every turn works on the session it is handed.
type Machine struct {
	catalog      catalog.Catalog
	availability Availability
	reservations Reservations
	distance     freight.Provider
	rates        freight.Rates
	payments     payment.Gateway
	reports      contract.ReportTrigger
	loc          *time.Location
	now          func() time.Time
	cfg          Config
	openMin      int
	closeMin     int

	handlers map[state.State]handler
}

type handler func(ctx context.Context, s *state.Session, in input) (contract.Response, error)

func New(d Deps) (*Machine, error) {
	if d.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if d.Availability == nil {
		return nil, errors.New("availability is required")
	}
	if d.Reservations == nil {
		return nil, errors.New("reservations are required")
	}
	if d.Payments == nil {
		return nil, errors.New("payment gateway is required")
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Rates == (freight.Rates{}) {
		d.Rates = freight.DefaultRates
	}

	cfg := d.Config
	if cfg.OpenAt == "" {
		cfg.OpenAt = "08:00"
	}
	if cfg.CloseAt == "" {
		cfg.CloseAt = "17:00"
	}
	if cfg.DepositRatio <= 0 || cfg.DepositRatio > 1 {
		cfg.DepositRatio = 0.5
	}
	if cfg.MonthsAhead <= 0 {
		cfg.MonthsAhead = 12
	}
	if cfg.MaxListed <= 0 {
		cfg.MaxListed = 10
	}
	openH, openM, err := booking.ParseClock(cfg.OpenAt)
	if err != nil {
		return nil, fmt.Errorf("open time: %w", err)
	}
	closeH, closeM, err := booking.ParseClock(cfg.CloseAt)
	if err != nil {
		return nil, fmt.Errorf("close time: %w", err)
	}

	m := &Machine{
		catalog:      d.Catalog,
		availability: d.Availability,
		reservations: d.Reservations,
		distance:     d.Distance,
		rates:        d.Rates,
		payments:     d.Payments,
		reports:      d.Reports,
		loc:          d.Location,
		now:          d.Now,
		cfg:          cfg,
		openMin:      openH*60 + openM,
		closeMin:     closeH*60 + closeM,
	}
	if m.openMin > m.closeMin {
		return nil, fmt.Errorf("service window %s-%s is inverted", cfg.OpenAt, cfg.CloseAt)
	}

	m.handlers = map[state.State]handler{
		state.MainMenu:          m.onMainMenu,
		state.BrowseCategories:  m.onBrowseCategories,
		state.BrowseItems:       m.onBrowseItems,
		state.ChooseCombo:       m.onChooseCombo,
		state.BuildCombo:        m.onBuildCombo,
		state.CollectPostalCode: m.onPostalCode,
		state.CollectAddress:    m.onAddress,
		state.CollectComplement: m.onComplement,
		state.ConfirmFreight:    m.onConfirmFreight,
		state.CollectName:       m.onName,
		state.CollectTaxID:      m.onTaxID,
		state.ConfirmTaxID:      m.onConfirmTaxID,
		state.BookMonth:         m.onBookMonth,
		state.BookDay:           m.onBookDay,
		state.BookHour:          m.onBookHour,
		state.ConfirmOrder:      m.onConfirmOrder,
		state.AwaitPayment:      m.onAwaitPayment,
		state.ManageTaxID:       m.onManageTaxID,
		state.ManageSelect:      m.onManageSelect,
		state.ManageOptions:     m.onManageOptions,
		state.ConfirmCancel:     m.onConfirmCancel,
		state.RescheduleMonth:   m.onRescheduleMonth,
		state.RescheduleDay:     m.onRescheduleDay,
		state.RescheduleHour:    m.onRescheduleHour,
		state.ConfirmReschedule: m.onConfirmReschedule,
	}
	return m, nil
}

// Step consumes one message. The session is mutated in place; callers that
// need to roll back a failed turn pass a clone.
func (m *Machine) Step(ctx context.Context, msg contract.InboundMessage, s *state.Session) (contract.Response, error) {
	if s == nil {
		return contract.Response{}, state.ErrNilSession
	}
	in := newInput(msg.Text)

	if s.IsIdle() || in.is(greetings) {
		s.Reset()
		return m.mainMenu(""), nil
	}

	if s.State != state.AwaitPayment {
		if resp, ok := m.global(ctx, s, in); ok {
			return resp, nil
		}
	}

	h, ok := m.handlers[s.State]
	if !ok {
		s.Reset()
		return m.mainMenu("I lost track of our conversation, let's start over."), nil
	}
	return h(ctx, s, in)
}

// global handles the commands accepted in any state except payment wait.
func (m *Machine) global(ctx context.Context, s *state.Session, in input) (contract.Response, bool) {
	if in.is(reports) {
		return m.triggerReport(ctx, s), true
	}
	if args, ok := in.argsAfter(addPrefixes); ok {
		return m.addToCart(s, args), true
	}
	if args, ok := in.argsAfter(removePrefixes); ok {
		return m.removeFromCart(s, args), true
	}
	if in.is(viewCart) {
		return m.cartView(s, ""), true
	}
	if in.is(finalize) {
		return m.startCheckout(s), true
	}
	return contract.Response{}, false
}

func (m *Machine) today() time.Time {
	return booking.DayStart(m.now(), m.loc)
}
