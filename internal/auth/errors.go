package auth

import (
	"errors"

	"github.com/predicta-labs/predicta_api/internal/user"
)

var (
	// ErrInvalidCredential is the umbrella for malformed or unverifiable login input.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrUnauthorized covers bad tokens and ownership conflicts.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidRefreshToken is returned for any refresh failure.
	ErrInvalidRefreshToken = &authError{msg: "Invalid refresh token", kind: ErrUnauthorized}
	// ErrWalletOwned is returned when the address is bound to another account.
	ErrWalletOwned = &authError{msg: "This wallet address is already connected to another account", kind: ErrUnauthorized}
	// ErrCodeNotFound is returned for unknown, superseded or expired verification codes.
	ErrCodeNotFound = &authError{msg: "Verification code not found or expired", kind: user.ErrNotFound}
)

// authError carries a client-facing message while matching a taxonomy sentinel via errors.Is.
type authError struct {
	msg  string
	kind error
}

func (e *authError) Error() string { return e.msg }

func (e *authError) Is(target error) bool { return target == e.kind }

func invalidCredential(msg string) error {
	return &authError{msg: msg, kind: ErrInvalidCredential}
}
