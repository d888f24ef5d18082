package domain

import "errors"

var (
	// Credential extraction and validation taxonomy. Missing and malformed
	// both count as "not presented" for the final verdict; they are kept
	// distinct so callers can log them separately.
	ErrMissingCredential   = errors.New("missing credential")
	ErrMalformedCredential = errors.New("malformed credential")
	ErrInvalidCredential   = errors.New("invalid credential")
	ErrExpiredToken        = errors.New("token expired")
	ErrInsufficientScope   = errors.New("insufficient scope")

	// ErrStoreUnavailable marks a backing-store I/O failure. It is never
	// folded into the unauthorized taxonomy: "can't check" must stay
	// distinguishable from "checked and failed".
	ErrStoreUnavailable = errors.New("credential store unavailable")

	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// IsAuthFailure reports whether err belongs to the authorization error
// taxonomy. Anything else coming out of a validator is an infrastructure
// failure and must not be treated as a failed credential.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrMalformedCredential) ||
		errors.Is(err, ErrInvalidCredential) ||
		errors.Is(err, ErrExpiredToken) ||
		errors.Is(err, ErrInsufficientScope)
}
