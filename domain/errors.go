package domain

import "errors"

var (
	UnexpectedDatabaseError = errors.New("database-error")
	ErrRoomNotFound         = errors.New("room-not-found")
	ErrPlayerNotFound       = errors.New("player-not-found")
)

// ErrContentExhausted means the filtered question pool is empty, as opposed
// to the database being unreachable. Callers reset their exclusion list and
// retry once before giving up.
var ErrContentExhausted = errors.New("content-exhausted")

var (
	UnexpectedTokenVerificationError = errors.New("token-verification-error")
	ErrInvalidSigningAlg             = errors.New("invalid-signing-method")
	ErrExpiredToken                  = errors.New("expired-token")
	ErrInvalidTokenSignature         = errors.New("invalid-token-signature")
	ErrCorruptedToken                = errors.New("corrupted-token")
)
