package domain

import "errors"

// ErrValidation marks caller errors in the inbound notification payload.
var ErrValidation = errors.New("validation error")

// ErrInvalidAppID marks devices whose app id does not belong to this gateway.
// These devices are rejected immediately, without any delivery attempt.
var ErrInvalidAppID = errors.New("invalid app id")
