package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dept-site-api/internal/application/authz"
	"github.com/dept-site-api/internal/domain"
	"github.com/dept-site-api/internal/pkg/id"
	"github.com/dept-site-api/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldName   = "name"
	fieldRole   = "role"
	fieldEnable = "enable"
)

const defaultPageSize = 50

type Service interface {
	List(ctx context.Context, limit int, cursor string) ([]domain.Account, string, error)
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	CreatableRoles(actor domain.Role) []domain.Role
	Create(ctx context.Context, actor domain.Actor, req domain.CreateAccountRequest) (*domain.Account, error)
	Update(ctx context.Context, actor domain.Actor, accountID string, req domain.UpdateAccountRequest) (*domain.Account, error)
	Delete(ctx context.Context, actor domain.Actor, accountID string) error
}

type accountStore interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	Update(ctx context.Context, accountID string, updates map[string]interface{}) error
	SoftDelete(ctx context.Context, accountID string) error
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.Account, string, error)
}

type service struct {
	repo  accountStore
	authz *authz.Authorizer
}

func NewService(repo accountStore, authorizer *authz.Authorizer) Service {
	return &service{repo: repo, authz: authorizer}
}

func (s *service) List(ctx context.Context, limit int, cursor string) ([]domain.Account, string, error) {
	if limit < 1 || limit > 200 {
		limit = defaultPageSize
	}
	return s.repo.ScanPage(ctx, int32(limit), cursor)
}

// Get returns an enabled account. Soft-deleted accounts read as not found.
func (s *service) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	a, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !a.Enable {
		return nil, fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	}
	return a, nil
}

func (s *service) CreatableRoles(actor domain.Role) []domain.Role {
	return s.authz.CreatableRoles(actor)
}

func (s *service) Create(ctx context.Context, actor domain.Actor, req domain.CreateAccountRequest) (*domain.Account, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	if !s.authz.CanCreate(actor.Role, role) {
		return nil, fmt.Errorf("%s cannot create %s: %w", actor.Role, role, domain.ErrForbidden)
	}

	email := domain.NormalizeEmail(req.Email)
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	a := &domain.Account{
		AccountID:    id.New(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		Role:         role,
		Enable:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	slog.Info("account created", "account_id", a.AccountID, "role", role, "by", actor.AccountID)
	return a, nil
}

func (s *service) Update(ctx context.Context, actor domain.Actor, accountID string, req domain.UpdateAccountRequest) (*domain.Account, error) {
	target, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !s.authz.CanModify(actor.Role, target.Role) {
		return nil, fmt.Errorf("%s cannot modify %s: %w", actor.Role, target.Role, domain.ErrForbidden)
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("name must not be empty: %w", domain.ErrBadRequest)
		}
		updates[fieldName] = name
	}
	if req.Role != nil {
		role, err := domain.ParseRole(*req.Role)
		if err != nil {
			return nil, err
		}
		if !s.authz.CanCreate(actor.Role, role) {
			return nil, fmt.Errorf("%s cannot assign %s: %w", actor.Role, role, domain.ErrForbidden)
		}
		updates[fieldRole] = role
	}
	if req.Enable != nil {
		updates[fieldEnable] = *req.Enable
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("no fields to update: %w", domain.ErrBadRequest)
	}

	if err := s.repo.Update(ctx, accountID, updates); err != nil {
		return nil, err
	}
	slog.Info("account updated", "account_id", accountID, "by", actor.AccountID)
	return s.repo.Get(ctx, accountID)
}

func (s *service) Delete(ctx context.Context, actor domain.Actor, accountID string) error {
	target, err := s.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if !s.authz.CanDelete(actor.Role, target.Role) {
		return fmt.Errorf("%s cannot delete %s: %w", actor.Role, target.Role, domain.ErrForbidden)
	}
	if err := s.repo.SoftDelete(ctx, accountID); err != nil {
		return err
	}
	slog.Info("account deleted", "account_id", accountID, "by", actor.AccountID)
	return nil
}
