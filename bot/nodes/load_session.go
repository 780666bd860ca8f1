package turnnode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/chative-party-booking/bot/contract"
	"github.com/tanpawarit/chative-party-booking/bot/state"
)

func LoadSession(ctx context.Context, in *GraphState, store state.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contract.ErrTurnFailed)
	}

	s, err := state.LoadOrNew(ctx, store, in.UserID, in.Now)
	if err != nil {
		log.Error().Err(err).Str("user_id", in.UserID).Msg("Failed to load session")
		in.Failed = true
		in.Response = Apology
		return in, nil
	}
	in.Stored = s
	return in, nil
}
