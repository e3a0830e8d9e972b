package store

import "errors"

var (
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrInvalidTransition = errors.New("invalid ticket status transition")
	ErrDuplicateCode     = errors.New("ticket code already exists")
	ErrSequenceExhausted = errors.New("daily ticket sequence exhausted")
)
