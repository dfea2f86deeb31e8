package services

import "errors"

// Engine failure kinds. Handlers map these to HTTP statuses with errors.Is;
// wrapped variants carry the detail message.
var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionNotActive     = errors.New("session not active")
	ErrInvalidPosition      = errors.New("invalid position")
	ErrNothingToCashOut     = errors.New("nothing to cash out")
	ErrInternal             = errors.New("internal error")
)
