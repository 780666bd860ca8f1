package turnnode

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/chative-party-booking/bot/contract"
	"github.com/tanpawarit/chative-party-booking/bot/state"
)

// SaveSession persists the working copy, or deletes it once the dialogue
// went idle. Failed turns persist nothing, and a store failure answers the
// apology.
func SaveSession(ctx context.Context, in *GraphState, store state.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contract.ErrTurnFailed)
	}
	if in.Failed {
		return in, nil
	}
	if in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contract.ErrTurnFailed)
	}

	if in.Session.IsIdle() {
		if err := store.Delete(ctx, in.UserID); err != nil && !errors.Is(err, state.ErrSessionNotFound) {
			return storeFailed(in, "delete", err), nil
		}
		return in, nil
	}

	in.Session.Touch(in.Now)
	if err := in.Session.Validate(); err != nil {
		log.Error().Err(err).Str("user_id", in.UserID).Msg("Refusing to save invalid session")
		in.Failed = true
		in.Response = Apology
		return in, nil
	}
	if err := store.Save(ctx, in.Session); err != nil {
		return storeFailed(in, "save", err), nil
	}
	return in, nil
}

// storeFailed turns a store error into the apology. Whatever the store
// already holds stays as it was.
func storeFailed(in *GraphState, op string, err error) *GraphState {
	log.Error().Err(err).Str("user_id", in.UserID).Str("op", op).Msg("Session store failed, answering with apology")
	in.Failed = true
	in.Response = Apology
	return in
}
