package turnnode

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/chative-party-booking/bot/contract"
	"github.com/tanpawarit/chative-party-booking/bot/state"
)

// Stepper advances a session by one message.
type Stepper interface {
	Step(ctx context.Context, msg contract.InboundMessage, s *state.Session) (contract.Response, error)
}

// Apology is returned when a turn fails; the stored session is left as it was.
var Apology = contract.Response{
	Body:         "Sorry, something went wrong on our side. 😕 Please try again, or send 'hi' to start over.",
	QuickReplies: []string{"hi"},
}

// RunFlow steps a deep copy of the stored session. A failing or panicking
// turn is answered with Apology and marked so nothing gets saved. Turns that
// already failed upstream are passed through.
func RunFlow(ctx context.Context, in *GraphState, machine Stepper) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contract.ErrTurnFailed)
	}
	if in.Failed {
		return in, nil
	}
	if in.Stored == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contract.ErrTurnFailed)
	}

	working, err := in.Stored.Clone()
	if err != nil {
		return nil, err
	}

	resp, err := step(ctx, machine, contract.InboundMessage{UserID: in.UserID, Text: in.Text}, working)
	if err != nil {
		log.Error().Err(err).Str("user_id", in.UserID).Str("state", string(in.Stored.State)).Msg("Turn failed")
		in.Failed = true
		in.Response = Apology
		return in, nil
	}

	in.Session = working
	in.Response = resp
	return in, nil
}

func step(ctx context.Context, machine Stepper, msg contract.InboundMessage, s *state.Session) (resp contract.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("stack", string(debug.Stack())).Msgf("panic in dialogue: %v", r)
			err = fmt.Errorf("%w: panic: %v", contract.ErrTurnFailed, r)
		}
	}()
	return machine.Step(ctx, msg, s)
}
