package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/chative-party-booking/booking/reservation"
	"github.com/tanpawarit/chative-party-booking/bot/contract"
	"github.com/tanpawarit/chative-party-booking/bot/flow"
	nodex "github.com/tanpawarit/chative-party-booking/bot/nodes"
	"github.com/tanpawarit/chative-party-booking/bot/state"
)

var (
	ErrInvalidMessage = contract.ErrInvalidMessage
	ErrInvalidUser    = contract.ErrInvalidUser
)

// Confirmer promotes a paid hold to a confirmed booking.
type Confirmer interface {
	ConfirmPayment(ctx context.Context, bookingID string) error
}

type Config struct {
	Location *time.Location
}

type Orchestrator struct {
	store     state.Store
	machine   nodex.Stepper
	confirmer Confirmer
	outbox    contract.Outbox

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	loc *time.Location
	now func() time.Time
}

func New(
	store state.Store,
	machine nodex.Stepper,
	confirmer Confirmer,
	outbox contract.Outbox,
	cfg Config,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if machine == nil {
		return nil, errors.New("dialogue machine is required")
	}
	if confirmer == nil {
		return nil, errors.New("payment confirmer is required")
	}
	if outbox == nil {
		return nil, errors.New("outbox is required")
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	o := &Orchestrator{
		store:     store,
		machine:   machine,
		confirmer: confirmer,
		outbox:    outbox,
		loc:       loc,
		now:       time.Now,
	}

	graphRunner, err := o.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleMessage runs one dialogue turn for userID.
func (o *Orchestrator) HandleMessage(ctx context.Context, userID string, text string) (contract.Response, error) {
	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		UserID: userID,
		Text:   text,
	})
	if err != nil {
		return contract.Response{}, err
	}
	return out.Response, nil
}

// HandlePaymentApproved confirms the booking a session is waiting on and
// pushes the confirmation to the user. Approvals for a booking the session
// is not tracking are logged and dropped.
func (o *Orchestrator) HandlePaymentApproved(ctx context.Context, userID, bookingID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrInvalidUser
	}
	logger := log.With().Str("user_id", userID).Str("booking_id", bookingID).Logger()

	s, err := o.store.Load(ctx, userID)
	if errors.Is(err, state.ErrSessionNotFound) {
		logger.Warn().Msg("Payment approved for a user without a session, ignoring")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if s.State != state.AwaitPayment || s.Payment == nil || s.Payment.BookingID != bookingID {
		logger.Warn().Str("state", string(s.State)).Msg("Payment approval does not match the session, ignoring")
		return nil
	}

	err = o.confirmer.ConfirmPayment(ctx, bookingID)
	if errors.Is(err, reservation.ErrNotFound) {
		// Paid after the hold lapsed. Retrying cannot help; the team settles it by hand.
		logger.Error().Err(err).Msg("Payment received for an expired hold, needs manual reconciliation")
		if err := o.store.Delete(ctx, userID); err != nil && !errors.Is(err, state.ErrSessionNotFound) {
			logger.Error().Err(err).Msg("Failed to clear session after expired hold")
		}
		o.deliver(ctx, userID, contract.Response{
			Body: "We received your payment, but your pre-booking had already expired. 😕\n\n" +
				"Our team will contact you shortly about your date and the payment.",
			QuickReplies: []string{"hi"},
		})
		return nil
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to confirm paid booking")
		o.deliver(ctx, userID, contract.Response{
			Body: "We received your payment, but I had a problem confirming the booking in our calendar. 😕\n\n" +
				"Our team will check it and get back to you shortly.",
		})
		return fmt.Errorf("confirm payment: %w", err)
	}

	resp := flow.ConfirmationMessage(s.Payment, o.loc)
	if err := o.store.Delete(ctx, userID); err != nil && !errors.Is(err, state.ErrSessionNotFound) {
		logger.Error().Err(err).Msg("Failed to clear session after confirmation")
	}
	o.deliver(ctx, userID, resp)
	logger.Info().Msg("Booking confirmed after payment")
	return nil
}

func (o *Orchestrator) deliver(ctx context.Context, userID string, resp contract.Response) {
	if err := o.outbox.Deliver(ctx, contract.OutboundMessage{UserID: userID, Response: resp}); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to deliver outbound message")
	}
}
