package flow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/chative-party-booking/booking"
	"github.com/tanpawarit/chative-party-booking/booking/calendar"
	"github.com/tanpawarit/chative-party-booking/booking/freight"
	"github.com/tanpawarit/chative-party-booking/booking/payment"
	"github.com/tanpawarit/chative-party-booking/booking/reservation"
	"github.com/tanpawarit/chative-party-booking/bot/catalog"
	"github.com/tanpawarit/chative-party-booking/bot/contract"
	"github.com/tanpawarit/chative-party-booking/bot/state"
)

const calendarDown = "Our calendar is unavailable right now. 😕 Please try again in a moment or send *back*."

func (m *Machine) onPostalCode(_ context.Context, s *state.Session, in input) (contract.Response, error) {
	if in.is(backWords) {
		s.Enter(state.MainMenu)
		return m.cartView(s, ""), nil
	}
	if digitsOnly(in.raw) == "" {
		return contract.Response{Body: "Invalid postal code 😕. Please send a valid CEP or *back* to cancel."}, nil
	}
	s.Checkout.PostalCode = in.raw
	s.Enter(state.CollectAddress)
	return contract.Response{Body: fmt.Sprintf("Postal code `%s` received! 👍\n\n"+
		"Now please send the rest of the address (*street, number, neighborhood and city*).", in.raw)}, nil
}

func addressPrompt(prefix string) contract.Response {
	return contract.Response{Body: join(prefix,
		"Please send the *full address* (street, number, neighborhood and city).")}
}

func (m *Machine) onAddress(ctx context.Context, s *state.Session, in input) (contract.Response, error) {
	if in.is(backWords) {
		s.Enter(state.CollectPostalCode)
		return contract.Response{Body: "OK, going back. Please send the *postal code (CEP)* of the party venue again."}, nil
	}
	if in.raw == "" {
		return addressPrompt(""), nil
	}
	if m.distance == nil {
		return contract.Response{Body: "Sorry, delivery quotes are not available right now. 😕 Please try again later or send *back*."}, nil
	}

	address := in.raw
	if s.Checkout.PostalCode != "" {
		address += ", " + s.Checkout.PostalCode
	}
	dist, err := m.distance.Distance(ctx, address)
	if err != nil {
		log.Warn().Err(err).Str("user_id", s.UserID).Msg("Distance lookup failed")
		if errors.Is(err, freight.ErrUnavailable) {
			return contract.Response{Body: "Our delivery calculator is unavailable right now. 😕\n\n" +
				"Please send the address again in a moment or *back*."}, nil
		}
		return contract.Response{Body: "Sorry, I couldn't calculate delivery to this address. 😕\n\n" +
			"Please check it is complete (street, number, neighborhood, city, CEP) and send it again, or *back*."}, nil
	}

	s.Checkout.Address = address
	s.Checkout.Complement = ""
	s.Freight = &state.FreightQuote{
		Fee:          freight.Quote(dist.Km, catalog.HasCombo(s.Cart), m.rates),
		DistanceKm:   dist.Km,
		DistanceText: dist.Text,
	}
	s.Enter(state.CollectComplement)
	return complementPrompt("Main address received! 👍"), nil
}

func complementPrompt(prefix string) contract.Response {
	return contract.Response{Body: join(prefix,
		"Now please send the *complement* (e.g. Apt 101, Block B, party hall, landmark).\n\n"+
			"If there is none, send `none`.")}
}

func (m *Machine) onComplement(_ context.Context, s *state.Session, in input) (contract.Response, error) {
	if in.is(backWords) {
		s.Freight = nil
		s.Checkout.Complement = ""
		s.Enter(state.CollectAddress)
		return addressPrompt("OK, going back."), nil
	}
	if s.Freight == nil {
		s.Enter(state.CollectAddress)
		return addressPrompt("I lost the delivery quote, let's calculate it again."), nil
	}

	s.Checkout.Complement = ""
	if !in.is(noExtras) {
		s.Checkout.Complement = in.raw
	}
	s.Enter(state.ConfirmFreight)
	return m.freightSummary(s, "Great! Complement noted."), nil
}

func (m *Machine) freightSummary(s *state.Session, prefix string) contract.Response {
	q := s.Freight
	hasCombo := catalog.HasCombo(s.Cart)
	text := q.DistanceText
	if text == "" {
		text = fmt.Sprintf("%.1f km", q.DistanceKm)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The distance from our base to the venue is *%s*.\n\n", text)
	if q.Fee == 0 {
		if hasCombo {
			fmt.Fprintf(&b, "Orders with a combo ship free up to %.0f km. *Delivery is on us*! 🎉\n\n", m.rates.ComboFreeKm)
		} else {
			fmt.Fprintf(&b, "Since the distance is under %.0f km, *delivery is FREE*! 🎉\n\n", m.rates.FreeUnderKm)
		}
		b.WriteString("Shall we continue with the order?")
		return contract.Response{Body: join(prefix, b.String()), QuickReplies: []string{"yes", "back"}}
	}
	if hasCombo {
		fmt.Fprintf(&b, "Orders with a combo ship free up to %.0f km. Your distance exceeds that, so only the extra kilometers are charged.\n\n"+
			"The additional delivery fee is *%s*.\n\n", m.rates.ComboFreeKm, catalog.FormatBRL(q.Fee))
	} else {
		fmt.Fprintf(&b, "The delivery fee is *%s*.\n\n", catalog.FormatBRL(q.Fee))
	}
	b.WriteString("Can we add this amount to the order?")
	return contract.Response{Body: join(prefix, b.String()), QuickReplies: []string{"yes", "no", "back"}}
}

func (m *Machine) onConfirmFreight(_ context.Context, s *state.Session, in input) (contract.Response, error) {
	switch {
	case in.is(backWords):
		s.Enter(state.CollectComplement)
		return complementPrompt("OK, going back."), nil
	case in.is(yesWords):
		s.Enter(state.CollectName)
		confirmed := "Perfect! Delivery fee added. 👍"
		if s.Freight != nil && s.Freight.Fee == 0 {
			confirmed = "Perfect! Free delivery confirmed. 👍"
		}
		return contract.Response{Body: join(confirmed,
			"Now, what is the *full name* of the person responsible for the booking?")}, nil
	case in.is(noWords) && s.Freight != nil && s.Freight.Fee > 0:
		s.Finish()
		return contract.Response{
			Body: "Understood. Delivery is required for the rental.\n\n" +
				"Your order was canceled. If you want to try again, just send 'hi'. 👋",
			QuickReplies: []string{"hi"},
		}, nil
	default:
		resp := m.freightSummary(s, "")
		resp.Body = "Invalid option. Please confirm."
		return resp, nil
	}
}

func (m *Machine) onName(_ context.Context, s *state.Session, in input) (contract.Response, error) {
	if in.is(backWords) {
		s.Enter(state.ConfirmFreight)
		return m.freightSummary(s, "Going back..."), nil
	}
	if in.raw == "" {
		return contract.Response{Body: "Please send the *full name* of the person responsible."}, nil
	}
	s.Checkout.CustomerName = in.raw
	s.Enter(state.CollectTaxID)
	return contract.Response{Body: "Thank you! 🙏\n\nNow please send the *CPF* of the person responsible (numbers only)."}, nil
}

const invalidTaxID = "Invalid CPF. 😕 Please send a CPF with 11 digits (numbers only) or *back*."

func (m *Machine) onTaxID(_ context.Context, s *state.Session, in input) (contract.Response, error) {
	if in.is(backWords) {
		s.Enter(state.CollectName)
		return contract.Response{Body: "Going back... What is the *full name* of the person responsible for the booking?"}, nil
	}
	digits := digitsOnly(in.raw)
	if len(digits) != 11 {
		return contract.Response{Body: invalidTaxID}, nil
	}
	s.Checkout.PendingTaxID = digits
	s.Enter(state.ConfirmTaxID)
	return contract.Response{
		Body:         fmt.Sprintf("You typed: *%s*\n\nIs this CPF correct?", formatTaxID(digits)),
		QuickReplies: yesNo(),
	}, nil
}

func (m *Machine) onConfirmTaxID(_ context.Context, s *state.Session, in input) (contract.Response, error) {
	switch {
	case in.is(backWords) || in.is(noWords):
		s.Checkout.PendingTaxID = ""
		s.Enter(state.CollectTaxID)
		return contract.Response{Body: "Understood. Please send the correct CPF again (numbers only)."}, nil
	case in.is(yesWords):
		if s.Checkout.PendingTaxID == "" {
			s.Enter(state.CollectTaxID)
			return contract.Response{Body: "Something went wrong. Please send your CPF again."}, nil
		}
		s.Checkout.TaxID = s.Checkout.PendingTaxID
		s.Checkout.PendingTaxID = ""
		s.Enter(state.BookMonth)
		s.Schedule = &state.Schedule{Months: m.months()}
		return m.monthsMenu(s.Schedule.Months, ""), nil
	default:
		return contract.Response{Body: "Invalid option. 😕 Please confirm.", QuickReplies: yesNo()}, nil
	}
}

// months lists the current month and the following ones.
func (m *Machine) months() []state.YearMonth {
	first := m.today().AddDate(0, 0, 1-m.today().Day())
	out := make([]state.YearMonth, 0, m.cfg.MonthsAhead)
	for i := 0; i < m.cfg.MonthsAhead; i++ {
		d := first.AddDate(0, i, 0)
		out = append(out, state.YearMonth{Year: d.Year(), Month: d.Month()})
	}
	return out
}

// pickMonth stores the chosen month and its free days. ok is false when the
// message is not a listed month.
func (m *Machine) pickMonth(ctx context.Context, sch *state.Schedule, in input) (resp contract.Response, ok bool, err error) {
	n, convErr := strconv.Atoi(in.lower)
	if convErr != nil || n < 1 || n > len(sch.Months) {
		return m.monthsMenu(sch.Months, "Invalid option 😕. Please choose one of the months in the list."), false, nil
	}
	ym := sch.Months[n-1]
	days, err := m.availability.FreeDaysInMonth(ctx, ym.Year, ym.Month)
	if err != nil {
		log.Warn().Err(err).Msg("Free days lookup failed")
		return m.monthsMenu(sch.Months, calendarDown), false, nil
	}
	sch.Year, sch.Month, sch.Days = ym.Year, ym.Month, days
	sch.Day, sch.Clock = "", ""
	return daysList(ym, days, ""), true, nil
}

// refreshDays reloads the free days of the chosen month.
func (m *Machine) refreshDays(ctx context.Context, sch *state.Schedule, prefix string) contract.Response {
	ym := state.YearMonth{Year: sch.Year, Month: sch.Month}
	days, err := m.availability.FreeDaysInMonth(ctx, sch.Year, sch.Month)
	if err != nil {
		log.Warn().Err(err).Msg("Free days lookup failed")
		sch.Days = nil
		return contract.Response{Body: join(prefix, calendarDown), QuickReplies: []string{"back"}}
	}
	sch.Days = days
	return daysList(ym, days, prefix)
}

// pickDay validates a day number against the offered list and returns the
// date in DateLayout.
func (m *Machine) pickDay(sch *state.Schedule, in input) (string, bool) {
	n, err := strconv.Atoi(in.lower)
	if err != nil {
		return "", false
	}
	for _, d := range sch.Days {
		if d == n {
			return time.Date(sch.Year, sch.Month, n, 0, 0, 0, 0, m.loc).Format(booking.DateLayout), true
		}
	}
	return "", false
}

// pickClock parses HH:MM, optionally prefixed with "book", inside the
// service window.
func (m *Machine) pickClock(in input) (string, bool) {
	clock := in.lower
	if rest, ok := in.argsAfter(bookPrefixes); ok {
		clock = rest
	}
	h, mm, err := booking.ParseClock(clock)
	if err != nil {
		return "", false
	}
	minutes := h*60 + mm
	if minutes < m.openMin || minutes > m.closeMin {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, mm), true
}

func (m *Machine) onBookMonth(ctx context.Context, s *state.Session, in input) (contract.Response, error) {
	if in.is(backWords) {
		s.Checkout.PendingTaxID = s.Checkout.TaxID
		s.Checkout.TaxID = ""
		s.Enter(state.ConfirmTaxID)
		return contract.Response{
			Body:         fmt.Sprintf("Going back... Is the CPF *%s* correct?", formatTaxID(s.Checkout.PendingTaxID)),
			QuickReplies: yesNo(),
		}, nil
	}
	resp, ok, err := m.pickMonth(ctx, s.Schedule, in)
	if err != nil {
		return contract.Response{}, err
	}
	if ok {
		s.Enter(state.BookDay)
	}
	return resp, nil
}

func (m *Machine) onBookDay(ctx context.Context, s *state.Session, in input) (contract.Response, error) {
	if in.is(backWords) {
		s.Enter(state.BookMonth)
		return m.monthsMenu(s.Schedule.Months, ""), nil
	}
	day, ok := m.pickDay(s.Schedule, in)
	if !ok {
		return m.refreshDays(ctx, s.Schedule, "Invalid or unavailable day 😕. Please send a *day* from the list above or *back*."), nil
	}
	s.Schedule.Day = day
	s.Enter(state.BookHour)
	return m.hourPrompt(day, ""), nil
}

func (m *Machine) onBookHour(ctx context.Context, s *state.Session, in input) (contract.Response, error) {
	if in.is(backWords) {
		s.Schedule.Day = ""
		s.Enter(state.BookDay)
		return m.refreshDays(ctx, s.Schedule, ""), nil
	}
	clock, ok := m.pickClock(in)
	if !ok {
		return m.invalidHour(), nil
	}
	s.Schedule.Clock = clock
	s.Enter(state.ConfirmOrder)
	return m.orderSummary(s), nil
}

func (m *Machine) orderSummary(s *state.Session) contract.Response {
	itemsTotal, _ := catalog.Totals(s.Cart)
	fee := 0.0
	if s.Freight != nil {
		fee = s.Freight.Fee
	}

	freightLine := "🚚 *Delivery:* Free"
	switch {
	case fee == 0:
	case catalog.HasCombo(s.Cart):
		freightLine = fmt.Sprintf("🚚 *Additional delivery (>%.0fkm):* %s", m.rates.ComboFreeKm, catalog.FormatBRL(fee))
	default:
		freightLine = "🚚 *Delivery:* " + catalog.FormatBRL(fee)
	}

	body := fmt.Sprintf("🎉 *All set to confirm?*\n\n"+
		"Please review your order:\n\n"+
		"✨ *Items:*\n%s\n"+
		"--------------------\n"+
		"💰 *Items total:* %s\n"+
		"%s\n"+
		"--------------------\n"+
		"TOTAL: *%s*\n\n"+
		"👤 *Responsible:* %s\n"+
		"📄 *CPF:* %s\n"+
		"📍 *Address:* %s\n"+
		"🗓️ *Date:* %s\n"+
		"⏰ *Time:* %s\n\n"+
		"If everything is right, can we confirm?",
		describeCart(s.Cart),
		catalog.FormatBRL(itemsTotal),
		freightLine,
		catalog.FormatBRL(itemsTotal+fee),
		s.Checkout.CustomerName,
		formatTaxID(s.Checkout.TaxID),
		s.Checkout.FullAddress(),
		displayDay(s.Schedule.Day, m.loc),
		s.Schedule.Clock,
	)
	return contract.Response{Body: body, QuickReplies: yesNo()}
}

func (m *Machine) onConfirmOrder(ctx context.Context, s *state.Session, in input) (contract.Response, error) {
	switch {
	case in.is(yesWords):
		return m.placeOrder(ctx, s)
	case in.is(noWords) || in.is(backWords):
		s.Schedule.Clock = ""
		s.Enter(state.BookHour)
		return m.hourPrompt(s.Schedule.Day, "OK, order not confirmed. Back to choosing the time."), nil
	default:
		return contract.Response{Body: "Invalid option. Please confirm the order.", QuickReplies: yesNo()}, nil
	}
}

// placeOrder creates the pending hold and the deposit link. A hold whose
// link cannot be produced is released so the same day can be retried.
func (m *Machine) placeOrder(ctx context.Context, s *state.Session) (contract.Response, error) {
	day, err := time.ParseInLocation(booking.DateLayout, s.Schedule.Day, m.loc)
	if err != nil {
		return contract.Response{}, fmt.Errorf("scheduled day %q: %w", s.Schedule.Day, err)
	}
	var fee, km float64
	if s.Freight != nil {
		fee, km = s.Freight.Fee, s.Freight.DistanceKm
	}
	address := s.Checkout.FullAddress()

	bookingID, err := m.reservations.CreatePending(ctx, reservation.Request{
		Day:          day,
		Clock:        s.Schedule.Clock,
		CustomerName: s.Checkout.CustomerName,
		TaxID:        s.Checkout.TaxID,
		Address:      address,
		Cart:         s.Cart,
		Freight:      fee,
		DistanceKm:   km,
	})
	switch {
	case errors.Is(err, reservation.ErrDayUnavailable):
		s.Schedule.Day, s.Schedule.Clock = "", ""
		s.Enter(state.BookDay)
		return m.refreshDays(ctx, s.Schedule, fmt.Sprintf(
			"Oh no! 😕 The day *%s* was just booked by someone else.\n\nLet's try again:", day.Format(shortDay))), nil
	case errors.Is(err, reservation.ErrLockUnavailable) || errors.Is(err, calendar.ErrUnavailable):
		log.Warn().Err(err).Str("user_id", s.UserID).Msg("Pending hold not created")
		return contract.Response{Body: "I couldn't reach our calendar to reserve the date. 😕\n\nPlease try confirming again.", QuickReplies: yesNo()}, nil
	case err != nil:
		return contract.Response{}, fmt.Errorf("create pending hold: %w", err)
	}

	itemsTotal, _ := catalog.Totals(s.Cart)
	total := itemsTotal + fee
	link, err := m.payments.CreateDepositLink(ctx, payment.DepositRequest{
		Title:     fmt.Sprintf("%d%% deposit - booking %s", int(math.Round(m.cfg.DepositRatio*100)), day.Format(dayLayout)),
		Total:     total,
		UserID:    s.UserID,
		BookingID: bookingID,
	})
	if err != nil {
		log.Error().Err(err).Str("booking_id", bookingID).Msg("Deposit link failed, releasing hold")
		if relErr := m.reservations.Release(ctx, bookingID); relErr != nil {
			log.Error().Err(relErr).Str("booking_id", bookingID).Msg("Release after payment failure failed")
		}
		return contract.Response{
			Body:         "I had a problem generating your payment link. 😕\n\nPlease try confirming again.",
			QuickReplies: yesNo(),
		}, nil
	}

	pay := &state.Payment{
		BookingID: bookingID,
		Day:       s.Schedule.Day,
		Clock:     s.Schedule.Clock,
		Address:   address,
		Total:     total,
	}
	s.Enter(state.AwaitPayment)
	s.Payment = pay

	deposit := math.Round(total*m.cfg.DepositRatio*100) / 100
	return contract.Response{Body: fmt.Sprintf(
		"Perfect! Your pre-booking for *%s at %s* is done.\n\n"+
			"Total: *%s*\n"+
			"Deposit (%d%%): *%s*\n\n"+
			"To confirm, please pay the deposit through this link:\n%s\n\n"+
			"⚠️ *Attention: your booking expires in 24 hours if the payment is not confirmed.* ⚠️\n\n"+
			"I'll let you know *automatically* as soon as the payment is approved.",
		day.Format(dayLayout), pay.Clock,
		catalog.FormatBRL(total),
		int(math.Round(m.cfg.DepositRatio*100)), catalog.FormatBRL(deposit),
		link,
	)}, nil
}

func (m *Machine) onAwaitPayment(_ context.Context, s *state.Session, in input) (contract.Response, error) {
	if in.is(cancels) || in.is(backWords) {
		s.Enter(state.MainMenu)
		return m.mainMenu("Booking canceled. Back to the main menu.\n\n(Your previous pre-booking will lapse.)"), nil
	}
	return contract.Response{
		Body: "I'm just waiting for the payment confirmation... ⏳\n\n" +
			"Your date is *pre-booked* for 24 hours.\n\n" +
			"As soon as it is approved I'll send you the final confirmation here automatically.",
		QuickReplies: []string{"cancel"},
	}, nil
}

// ConfirmationMessage is sent once an approved payment confirms the booking.
func ConfirmationMessage(p *state.Payment, loc *time.Location) contract.Response {
	when := displayDay(p.Day, loc)
	if d, err := time.ParseInLocation(booking.DateLayout, p.Day, loc); err == nil {
		when = fmt.Sprintf("%s (%s)", d.Format(dayLayout), d.Weekday())
	}
	return contract.Response{Body: fmt.Sprintf(
		"Payment confirmed! 🎉\n\n"+
			"Your booking is *100%% CONFIRMED*.\n\n"+
			"🗓️ *When:* %s at %s\n"+
			"📍 *Where:* %s\n\n"+
			"Thank you for your trust! We'll be in touch soon to settle the remaining details.",
		when, p.Clock, p.Address)}
}

func displayDay(day string, loc *time.Location) string {
	d, err := time.ParseInLocation(booking.DateLayout, day, loc)
	if err != nil {
		return day
	}
	return d.Format(dayLayout)
}
