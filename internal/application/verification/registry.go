package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/dept-site-api/internal/domain"
)

// DefaultTTL is how long a minted code stays verifiable.
const DefaultTTL = 10 * time.Minute

const (
	codeMin   = 100000
	codeRange = 900000 // [100000, 999999]
	lockCount = 64
)

// Outcome labels reported to an Observer.
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeEmpty       = "empty"
	OutcomeExpired     = "expired"
	OutcomeMismatch    = "mismatch"
	OutcomeNotVerified = "not_verified"
	OutcomeError       = "error"
)

// Observer receives the outcome of every VerifyCode ("verify") and UseCode
// ("use") call.
type Observer func(op, outcome string)

// Option configures a Registry.
type Option func(*Registry)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithObserver installs an outcome hook.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observe = o }
}

// Registry holds at most one live one-time code per email.
//
// Per email the lifecycle is ABSENT -> PENDING (StoreCode) -> VERIFIED
// (VerifyCode match) -> ABSENT (UseCode). An expired entry is removed the
// first time VerifyCode sees it. Re-minting always resets to PENDING.
//
// Within one process each read-modify-write holds a per-email lock. Across
// processes sharing a store, the write half of VerifyCode and UseCode is a
// conditional store write on the code that was read, so a re-mint by another
// instance is never overwritten or consumed: the stale caller gets
// domain.ErrCodeMismatch from VerifyCode or domain.ErrCodeNotVerified from
// UseCode. A re-mint landing between a caller's VerifyCode and UseCode makes
// UseCode fail with domain.ErrCodeNotVerified.
type Registry struct {
	store   Store
	ttl     time.Duration
	now     func() time.Time
	observe Observer
	locks   [lockCount]sync.Mutex
}

func NewRegistry(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:   store,
		ttl:     DefaultTTL,
		now:     time.Now,
		observe: func(string, string) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TTL returns the default lifetime of a stored code.
func (r *Registry) TTL() time.Duration { return r.ttl }

// GenerateCode returns a 6-digit code drawn uniformly from [100000, 999999].
func (r *Registry) GenerateCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		// crypto/rand does not fail on supported platforms.
		panic(fmt.Sprintf("generate verification code: %v", err))
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin)
}

// StoreCode replaces any entry for email with a fresh pending one. A ttl of
// zero or less uses the registry default.
func (r *Registry) StoreCode(ctx context.Context, email, code string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	key := normalize(email)
	mu := r.lock(key)
	mu.Lock()
	defer mu.Unlock()
	return r.store.Put(ctx, &domain.VerificationEntry{
		Email:     key,
		Code:      code,
		ExpiresAt: r.now().Add(ttl),
		Verified:  false,
	})
}

// VerifyCode checks code against the pending entry for email. A match marks
// the entry verified and keeps it; a mismatch keeps it for retry; an expired
// entry is deleted before domain.ErrCodeExpired is returned.
func (r *Registry) VerifyCode(ctx context.Context, email, code string) (bool, error) {
	key := normalize(email)
	mu := r.lock(key)
	mu.Lock()
	defer mu.Unlock()

	e, err := r.load(ctx, "verify", key)
	if err != nil {
		return false, err
	}
	if e.Expired(r.now()) {
		err := r.store.DeleteIf(ctx, key, e.Code, false)
		if err != nil && !errors.Is(err, domain.ErrCodeChanged) && !errors.Is(err, domain.ErrCodeNotFound) {
			slog.Warn("failed to delete expired verification entry", "err", err)
		}
		r.observe("verify", OutcomeExpired)
		return false, fmt.Errorf("verify code: %w", domain.ErrCodeExpired)
	}
	if code != e.Code {
		r.observe("verify", OutcomeMismatch)
		return false, fmt.Errorf("verify code: %w", domain.ErrCodeMismatch)
	}
	if !e.Verified {
		if err := r.store.MarkVerified(ctx, key, code); err != nil {
			return false, r.conditionFailed("verify", err, domain.ErrCodeMismatch, OutcomeMismatch)
		}
	}
	r.observe("verify", OutcomeOK)
	return true, nil
}

// UseCode consumes a verified entry. It succeeds at most once per mint.
func (r *Registry) UseCode(ctx context.Context, email string) (bool, error) {
	key := normalize(email)
	mu := r.lock(key)
	mu.Lock()
	defer mu.Unlock()

	e, err := r.load(ctx, "use", key)
	if err != nil {
		return false, err
	}
	if !e.Verified {
		r.observe("use", OutcomeNotVerified)
		return false, fmt.Errorf("use code: %w", domain.ErrCodeNotVerified)
	}
	if err := r.store.DeleteIf(ctx, key, e.Code, true); err != nil {
		return false, r.conditionFailed("use", err, domain.ErrCodeNotVerified, OutcomeNotVerified)
	}
	r.observe("use", OutcomeOK)
	return true, nil
}

// conditionFailed translates the error of a conditional store write. An
// entry that changed underneath the caller becomes stale; one that vanished
// reads as not found.
func (r *Registry) conditionFailed(op string, err, stale error, staleOutcome string) error {
	switch {
	case errors.Is(err, domain.ErrCodeChanged):
		r.observe(op, staleOutcome)
		return fmt.Errorf("%s code: %w", op, stale)
	case errors.Is(err, domain.ErrCodeNotFound):
		r.observe(op, OutcomeNotFound)
		return fmt.Errorf("%s code: %w", op, domain.ErrCodeNotFound)
	default:
		r.observe(op, OutcomeError)
		return fmt.Errorf("%s code: %w", op, err)
	}
}

// DeleteCode removes the entry for email if there is one.
func (r *Registry) DeleteCode(ctx context.Context, email string) error {
	key := normalize(email)
	mu := r.lock(key)
	mu.Lock()
	defer mu.Unlock()
	return r.store.Delete(ctx, key)
}

// HasCode reports whether an entry exists for email. Expiry is not checked:
// an expired entry that nothing has touched yet still counts.
func (r *Registry) HasCode(ctx context.Context, email string) bool {
	_, err := r.store.Get(ctx, normalize(email))
	return err == nil
}

// load fetches the entry and applies the not-found and empty-code checks
// shared by VerifyCode and UseCode.
func (r *Registry) load(ctx context.Context, op, key string) (*domain.VerificationEntry, error) {
	e, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrCodeNotFound) {
			r.observe(op, OutcomeNotFound)
		} else {
			r.observe(op, OutcomeError)
		}
		return nil, fmt.Errorf("%s code: %w", op, err)
	}
	if e.Code == "" {
		r.observe(op, OutcomeEmpty)
		return nil, fmt.Errorf("%s code: %w", op, domain.ErrEmptyCode)
	}
	return e, nil
}

func (r *Registry) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &r.locks[h.Sum32()%lockCount]
}

func normalize(email string) string {
	return domain.NormalizeEmail(email)
}
