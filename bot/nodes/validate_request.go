package turnnode

import (
	"strings"
	"time"

	"github.com/tanpawarit/chative-party-booking/bot/contract"
	"github.com/tanpawarit/chative-party-booking/bot/state"
)

type GraphInput struct {
	UserID string
	Text   string
}

type GraphOutput struct {
	Response contract.Response
}

// GraphState travels through every node of one turn. Stored is the session
// as loaded; Session is the working copy the dialogue mutates.
type GraphState struct {
	UserID string
	Text   string
	Now    time.Time

	Stored  *state.Session
	Session *state.Session

	Response contract.Response
	Failed   bool
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, contract.ErrInvalidUser
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, contract.ErrInvalidMessage
	}

	return &GraphState{
		UserID: userID,
		Text:   text,
		Now:    nowFn().UTC(),
	}, nil
}
