package auth

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("auth: not found")
	ErrMissingInput      = errors.New("auth: missing input")
	ErrInvalidCredential = errors.New("auth: invalid credentials")
	ErrInvalidToken      = errors.New("auth: invalid token")
	ErrForbidden         = errors.New("auth: forbidden")
	ErrConflict          = errors.New("auth: conflict")
)

// ErrTokenExpired wraps ErrInvalidToken: callers that only care about the
// 401 class can match ErrInvalidToken, logging can keep the distinction.
var ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
