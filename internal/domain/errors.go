package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// ErrDelivery is returned when the mailer could not hand a message off.
	// A code stored before the failure stays valid.
	ErrDelivery = errors.New("delivery failed")
)

// Verification code outcomes. They are raised where detected and reach the
// request boundary unchanged.
var (
	ErrCodeNotFound    = errors.New("no pending verification")
	ErrEmptyCode       = errors.New("verification entry has no code")
	ErrCodeExpired     = errors.New("verification code expired")
	ErrCodeMismatch    = errors.New("verification code mismatch")
	ErrCodeNotVerified = errors.New("verification required before use")
)

// ErrCodeChanged is returned by conditional verification-store writes when
// the entry no longer holds the code the caller read, typically because
// another instance re-minted it. The registry translates it before it leaves
// the verification package.
var ErrCodeChanged = errors.New("verification entry changed")
