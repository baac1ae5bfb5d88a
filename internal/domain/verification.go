package domain

import "time"

// Intent names the account action a verification code unlocks.
type Intent string

const (
	IntentRegister       Intent = "register"
	IntentForgotPassword Intent = "forgot-password"
)

// Valid reports whether i is a supported intent.
func (i Intent) Valid() bool {
	return i == IntentRegister || i == IntentForgotPassword
}

// VerificationEntry is the single live one-time code for an email address.
// ExpiresAt doubles as the DynamoDB TTL attribute (Unix seconds) and the
// Redis key expiry.
type VerificationEntry struct {
	Email     string    `json:"email" dynamodbav:"email"`
	Code      string    `json:"code" dynamodbav:"code"`
	ExpiresAt time.Time `json:"expires_at" dynamodbav:"expires_at,unixtime"`
	Verified  bool      `json:"verified" dynamodbav:"verified"`
}

// Expired reports whether the entry's TTL has elapsed at now.
func (e *VerificationEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
