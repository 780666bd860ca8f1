package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/chative-party-booking/booking"
	"github.com/tanpawarit/chative-party-booking/booking/calendar"
	"github.com/tanpawarit/chative-party-booking/booking/reservation"
	"github.com/tanpawarit/chative-party-booking/bot/contract"
	"github.com/tanpawarit/chative-party-booking/bot/state"
)

const manageTaxIDPrompt = "Please send the *CPF* (numbers only) used when booking, or *back*."

func (m *Machine) onManageTaxID(ctx context.Context, s *state.Session, in input) (contract.Response, error) {
	if in.is(backWords) {
		s.Enter(state.MainMenu)
		return m.mainMenu(""), nil
	}
	taxID := digitsOnly(in.raw)
	if len(taxID) != 11 {
		return contract.Response{Body: invalidTaxID}, nil
	}

	found, err := m.reservations.FindByTaxID(ctx, taxID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", s.UserID).Msg("Booking lookup failed")
		return contract.Response{Body: join(calendarDown, manageTaxIDPrompt)}, nil
	}
	if len(found) == 0 {
		return contract.Response{
			Body:         fmt.Sprintf("I couldn't find any upcoming booking for CPF *%s*. 😕\n\n%s", formatTaxID(taxID), manageTaxIDPrompt),
			QuickReplies: []string{"back"},
		}, nil
	}
	if len(found) > m.cfg.MaxListed {
		found = found[:m.cfg.MaxListed]
	}

	refs := make([]state.BookingRef, 0, len(found))
	for _, b := range found {
		refs = append(refs, state.BookingRef{ID: b.ID, Title: b.Title, Start: b.Start})
	}
	s.Manage = &state.Manage{TaxID: taxID, Bookings: refs}
	s.Enter(state.ManageSelect)
	return m.bookingsMenu(refs, "I found these bookings:"), nil
}

func (m *Machine) bookingsMenu(refs []state.BookingRef, prefix string) contract.Response {
	opts := make([]contract.MenuOption, 0, len(refs)+1)
	for i, r := range refs {
		opts = append(opts, contract.MenuOption{
			ID:    strconv.Itoa(i + 1),
			Label: fmt.Sprintf("%s - %s", r.Start.In(m.loc).Format(dayLayout+" "+booking.TimeLayout), strings.TrimSpace(r.Title)),
		})
	}
	opts = append(opts, backOption)
	return contract.Response{Body: join(prefix, "Which booking would you like to manage?"), MenuOptions: opts}
}

func (m *Machine) onManageSelect(_ context.Context, s *state.Session, in input) (contract.Response, error) {
	if in.is(backWords) {
		s.Manage = &state.Manage{}
		s.Enter(state.ManageTaxID)
		return contract.Response{Body: manageTaxIDPrompt}, nil
	}
	n, err := strconv.Atoi(in.lower)
	if err != nil || n < 1 || n > len(s.Manage.Bookings) {
		return m.bookingsMenu(s.Manage.Bookings, invalidChoice), nil
	}
	sel := s.Manage.Bookings[n-1]
	s.Manage.Selected = &sel
	s.Enter(state.ManageOptions)
	return m.manageOptions(sel, ""), nil
}

func (m *Machine) manageOptions(ref state.BookingRef, prefix string) contract.Response {
	return contract.Response{
		Body: join(prefix, fmt.Sprintf("Booking on *%s*.\n\nWhat would you like to do?",
			ref.Start.In(m.loc).Format(dayLayout+" "+booking.TimeLayout))),
		MenuOptions: []contract.MenuOption{
			{ID: "1", Label: "1️⃣ Cancel booking ❌"},
			{ID: "2", Label: "2️⃣ Change date 🗓️"},
			backOption,
		},
	}
}

func (m *Machine) onManageOptions(_ context.Context, s *state.Session, in input) (contract.Response, error) {
	sel := s.Manage.Selected
	switch {
	case in.is(backWords) || sel == nil:
		s.Manage.Selected = nil
		s.Enter(state.ManageSelect)
		return m.bookingsMenu(s.Manage.Bookings, ""), nil
	case in.lower == "1":
		s.Enter(state.ConfirmCancel)
		return contract.Response{
			Body: fmt.Sprintf("Are you sure you want to *cancel* the booking on *%s*?\n\n"+
				"This cannot be undone.", sel.Start.In(m.loc).Format(dayLayout)),
			QuickReplies: yesNo(),
		}, nil
	case in.lower == "2":
		s.Enter(state.RescheduleMonth)
		s.Schedule = &state.Schedule{Months: m.months()}
		return m.monthsMenu(s.Schedule.Months, "Let's pick the new date."), nil
	default:
		return m.manageOptions(*sel, invalidChoice), nil
	}
}

func (m *Machine) onConfirmCancel(ctx context.Context, s *state.Session, in input) (contract.Response, error) {
	sel := s.Manage.Selected
	switch {
	case in.is(noWords) || in.is(backWords):
		s.Enter(state.ManageOptions)
		return m.manageOptions(*sel, "OK, nothing was canceled."), nil
	case in.is(yesWords):
		if err := m.reservations.Cancel(ctx, sel.ID); err != nil {
			log.Error().Err(err).Str("booking_id", sel.ID).Msg("Cancel failed")
			return contract.Response{Body: "I couldn't cancel the booking right now. 😕 Please try again.", QuickReplies: yesNo()}, nil
		}
		s.Finish()
		return contract.Response{
			Body: fmt.Sprintf("Your booking on *%s* was canceled. ✅\n\nIf you need anything else, just send 'hi'. 👋",
				sel.Start.In(m.loc).Format(dayLayout)),
			QuickReplies: []string{"hi"},
		}, nil
	default:
		return contract.Response{Body: "Invalid option. Please confirm the cancellation.", QuickReplies: yesNo()}, nil
	}
}

func (m *Machine) onRescheduleMonth(ctx context.Context, s *state.Session, in input) (contract.Response, error) {
	if in.is(backWords) {
		s.Enter(state.ManageOptions)
		return m.manageOptions(*s.Manage.Selected, ""), nil
	}
	resp, ok, err := m.pickMonth(ctx, s.Schedule, in)
	if err != nil {
		return contract.Response{}, err
	}
	if ok {
		s.Enter(state.RescheduleDay)
	}
	return resp, nil
}

func (m *Machine) onRescheduleDay(ctx context.Context, s *state.Session, in input) (contract.Response, error) {
	if in.is(backWords) {
		s.Enter(state.RescheduleMonth)
		return m.monthsMenu(s.Schedule.Months, ""), nil
	}
	day, ok := m.pickDay(s.Schedule, in)
	if !ok {
		return m.refreshDays(ctx, s.Schedule, "Invalid or unavailable day 😕. Please send a *day* from the list above or *back*."), nil
	}
	if current := s.Manage.Selected.Start.In(m.loc).Format(booking.DateLayout); day == current {
		return m.refreshDays(ctx, s.Schedule, "That is already the date of your booking. Please choose a different day."), nil
	}
	s.Schedule.Day = day
	s.Enter(state.RescheduleHour)
	return m.hourPrompt(day, ""), nil
}

func (m *Machine) onRescheduleHour(ctx context.Context, s *state.Session, in input) (contract.Response, error) {
	if in.is(backWords) {
		s.Schedule.Day = ""
		s.Enter(state.RescheduleDay)
		return m.refreshDays(ctx, s.Schedule, ""), nil
	}
	clock, ok := m.pickClock(in)
	if !ok {
		return m.invalidHour(), nil
	}
	s.Schedule.Clock = clock
	s.Enter(state.ConfirmReschedule)
	return m.rescheduleSummary(s), nil
}

func (m *Machine) rescheduleSummary(s *state.Session) contract.Response {
	return contract.Response{
		Body: fmt.Sprintf("Move your booking from *%s* to *%s at %s*?",
			s.Manage.Selected.Start.In(m.loc).Format(dayLayout+" "+booking.TimeLayout),
			displayDay(s.Schedule.Day, m.loc), s.Schedule.Clock),
		QuickReplies: yesNo(),
	}
}

func (m *Machine) onConfirmReschedule(ctx context.Context, s *state.Session, in input) (contract.Response, error) {
	switch {
	case in.is(noWords) || in.is(backWords):
		s.Schedule.Clock = ""
		s.Enter(state.RescheduleHour)
		return m.hourPrompt(s.Schedule.Day, "OK, back to choosing the time."), nil
	case !in.is(yesWords):
		return contract.Response{Body: "Invalid option. Please confirm the new date.", QuickReplies: yesNo()}, nil
	}

	day, err := time.ParseInLocation(booking.DateLayout, s.Schedule.Day, m.loc)
	if err != nil {
		return contract.Response{}, fmt.Errorf("reschedule day %q: %w", s.Schedule.Day, err)
	}
	sel := s.Manage.Selected
	err = m.reservations.Reschedule(ctx, sel.ID, day, s.Schedule.Clock)
	switch {
	case errors.Is(err, reservation.ErrDayUnavailable):
		s.Schedule.Day, s.Schedule.Clock = "", ""
		s.Enter(state.RescheduleDay)
		return m.refreshDays(ctx, s.Schedule, fmt.Sprintf(
			"Oh no! 😕 The day *%s* was just booked by someone else. Your booking was not changed.\n\nLet's try again:",
			day.Format(shortDay))), nil
	case errors.Is(err, reservation.ErrNotFound):
		s.Finish()
		return contract.Response{Body: "I couldn't find this booking anymore. It may have been canceled or expired.", QuickReplies: []string{"hi"}}, nil
	case errors.Is(err, reservation.ErrLockUnavailable) || errors.Is(err, calendar.ErrUnavailable):
		log.Warn().Err(err).Str("booking_id", sel.ID).Msg("Reschedule not applied")
		return contract.Response{Body: "I couldn't reach our calendar right now. 😕 Please try confirming again.", QuickReplies: yesNo()}, nil
	case err != nil:
		return contract.Response{}, fmt.Errorf("reschedule %s: %w", sel.ID, err)
	}

	when := fmt.Sprintf("%s at %s", displayDay(s.Schedule.Day, m.loc), s.Schedule.Clock)
	s.Finish()
	return contract.Response{
		Body:         fmt.Sprintf("Done! ✅ Your booking was moved to *%s*.\n\nIf you need anything else, just send 'hi'. 👋", when),
		QuickReplies: []string{"hi"},
	}, nil
}
