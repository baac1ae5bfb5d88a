package domain

import (
	"strings"
	"time"
)

// Account is a principal of the department site: a staff member who signs in
// to manage content.
type Account struct {
	AccountID    string    `json:"id" dynamodbav:"account_id"`
	Email        string    `json:"email" dynamodbav:"email"`
	Name         string    `json:"name" dynamodbav:"name"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	Role         Role      `json:"role" dynamodbav:"role"`
	Enable       bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}

// Actor is the authenticated principal performing an operation.
type Actor struct {
	AccountID string
	Role      Role
}

type CreateAccountRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required,role"`
}

type UpdateAccountRequest struct {
	Name   *string `json:"name"`
	Role   *string `json:"role"`
	Enable *bool   `json:"enable"`
}

// NormalizeEmail is the canonical form used for lookups and verification keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
