package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dept-site-api/internal/domain"
	"github.com/dept-site-api/internal/pkg/id"
	"github.com/dept-site-api/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

// CompleteInput carries the payload of the action a verified code unlocks.
// Name is only read for registration.
type CompleteInput struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token   string          `json:"token"`
	Account *domain.Account `json:"account"`
}

type requestInput struct {
	Email  string `validate:"required,email"`
	Intent string `validate:"required,intent"`
}

type registerInput struct {
	Email    string `validate:"required,email"`
	Name     string `validate:"required"`
	Password string `validate:"required,min=8,max=72"`
}

type resetInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max=72"`
}

type Service interface {
	RequestCode(ctx context.Context, email string, intent domain.Intent) error
	ConfirmCode(ctx context.Context, email, code string) (bool, error)
	CompleteAction(ctx context.Context, email string, intent domain.Intent, input CompleteInput) (*domain.Account, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
}

type codeRegistry interface {
	GenerateCode() string
	StoreCode(ctx context.Context, email, code string, ttl time.Duration) error
	VerifyCode(ctx context.Context, email, code string) (bool, error)
	UseCode(ctx context.Context, email string) (bool, error)
	TTL() time.Duration
}

type accountStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	SetPasswordHash(ctx context.Context, accountID, hash string) error
}

type mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type tokenSigner interface {
	Sign(accountID, role string) (string, error)
}

// ServiceDeps holds all dependencies for the auth service.
type ServiceDeps struct {
	Codes    codeRegistry
	Accounts accountStore
	Mailer   mailer
	Tokens   tokenSigner
	// BaseRole is assigned to self-registered accounts.
	BaseRole domain.Role
	// OnMail, if set, is called with the result of every delivery attempt.
	OnMail func(error)
}

type service struct {
	codes    codeRegistry
	accounts accountStore
	mailer   mailer
	tokens   tokenSigner
	baseRole domain.Role
	onMail   func(error)
}

func NewService(d ServiceDeps) Service {
	onMail := d.OnMail
	if onMail == nil {
		onMail = func(error) {}
	}
	return &service{
		codes:    d.Codes,
		accounts: d.Accounts,
		mailer:   d.Mailer,
		tokens:   d.Tokens,
		baseRole: d.BaseRole,
		onMail:   onMail,
	}
}

func (s *service) RequestCode(ctx context.Context, email string, intent domain.Intent) error {
	email = domain.NormalizeEmail(email)
	if err := validate.Struct(requestInput{Email: email, Intent: string(intent)}); err != nil {
		return err
	}

	switch intent {
	case domain.IntentRegister:
		_, err := s.accounts.GetByEmail(ctx, email)
		if err == nil {
			return fmt.Errorf("email %s already registered: %w", email, domain.ErrConflict)
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	case domain.IntentForgotPassword:
		if _, err := s.accounts.GetByEmail(ctx, email); err != nil {
			return err
		}
	}

	code := s.codes.GenerateCode()
	if err := s.codes.StoreCode(ctx, email, code, 0); err != nil {
		return err
	}

	subject, body := renderCodeMail(intent, code, s.codes.TTL())
	err := s.mailer.Send(ctx, email, subject, body)
	s.onMail(err)
	if err != nil {
		// The stored code stays; the caller may retry delivery by requesting again.
		slog.Warn("verification mail not delivered", "email", email, "intent", intent, "err", err)
		return fmt.Errorf("send %s code: %w: %w", intent, domain.ErrDelivery, err)
	}
	slog.Info("verification code sent", "email", email, "intent", intent)
	return nil
}

func (s *service) ConfirmCode(ctx context.Context, email, code string) (bool, error) {
	return s.codes.VerifyCode(ctx, email, code)
}

func (s *service) CompleteAction(ctx context.Context, email string, intent domain.Intent, input CompleteInput) (*domain.Account, error) {
	email = domain.NormalizeEmail(email)
	switch intent {
	case domain.IntentRegister:
		if err := validate.Struct(registerInput{Email: email, Name: input.Name, Password: input.Password}); err != nil {
			return nil, err
		}
	case domain.IntentForgotPassword:
		if err := validate.Struct(resetInput{Email: email, Password: input.Password}); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown intent %q: %w", intent, domain.ErrBadRequest)
	}

	// Everything that can fail without side effects runs before UseCode, so
	// a verified code is only consumed by a completion that will persist.
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	existing, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil && intent == domain.IntentRegister:
		return nil, fmt.Errorf("email %s already registered: %w", email, domain.ErrConflict)
	case err != nil && (intent == domain.IntentForgotPassword || !errors.Is(err, domain.ErrNotFound)):
		return nil, err
	}

	if _, err := s.codes.UseCode(ctx, email); err != nil {
		return nil, err
	}

	if intent == domain.IntentRegister {
		return s.register(ctx, email, input.Name, string(hash))
	}
	return s.resetPassword(ctx, existing, string(hash))
}

func (s *service) register(ctx context.Context, email, name, hash string) (*domain.Account, error) {
	now := time.Now().UTC()
	a := &domain.Account{
		AccountID:    id.New(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         s.baseRole,
		Enable:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, err
	}
	slog.Info("account registered", "account_id", a.AccountID, "role", a.Role)
	return a, nil
}

func (s *service) resetPassword(ctx context.Context, a *domain.Account, hash string) (*domain.Account, error) {
	if err := s.accounts.SetPasswordHash(ctx, a.AccountID, hash); err != nil {
		return nil, err
	}
	a.PasswordHash = hash
	slog.Info("password reset", "account_id", a.AccountID)
	return a, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	a, err := s.accounts.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if !a.Enable {
		return nil, fmt.Errorf("account disabled: %w", domain.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	token, err := s.tokens.Sign(a.AccountID, a.Role.String())
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &LoginResult{Token: token, Account: a}, nil
}
