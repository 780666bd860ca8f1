package contract

import "errors"

var (
	ErrInvalidMessage = errors.New("invalid inbound message")
	ErrInvalidUser    = errors.New("invalid user id")
	ErrTurnFailed     = errors.New("turn failed")
)
