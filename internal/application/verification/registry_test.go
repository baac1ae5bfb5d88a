package verification

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/dept-site-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewRegistry(store, opts...), store, clock
}

var ctx = context.Background()

func TestGenerateCode_SixDigitsInRange(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	re := regexp.MustCompile(`^[1-9][0-9]{5}$`)
	for i := 0; i < 500; i++ {
		code := r.GenerateCode()
		require.Regexp(t, re, code)
	}
}

func TestStoreThenVerify_Twice(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	require.NoError(t, r.StoreCode(ctx, "a@dept.edu", "123456", 0))

	ok, err := r.VerifyCode(ctx, "a@dept.edu", "123456")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.VerifyCode(ctx, "a@dept.edu", "123456")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_NotFound(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	_, err := r.VerifyCode(ctx, "nobody@dept.edu", "123456")
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)
}

func TestVerify_MismatchKeepsEntry(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	require.NoError(t, r.StoreCode(ctx, "a@dept.edu", "123456", 0))

	_, err := r.VerifyCode(ctx, "a@dept.edu", "654321")
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)
	assert.True(t, r.HasCode(ctx, "a@dept.edu"))

	ok, err := r.VerifyCode(ctx, "a@dept.edu", "123456")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_ExpiredDeletesEntry(t *testing.T) {
	r, _, clock := newTestRegistry(t)
	require.NoError(t, r.StoreCode(ctx, "a@dept.edu", "123456", 0))
	clock.Advance(DefaultTTL + time.Second)

	// not yet touched: HasCode does not look at expiry
	assert.True(t, r.HasCode(ctx, "a@dept.edu"))

	_, err := r.VerifyCode(ctx, "a@dept.edu", "123456")
	assert.ErrorIs(t, err, domain.ErrCodeExpired)
	assert.False(t, r.HasCode(ctx, "a@dept.edu"))

	_, err = r.VerifyCode(ctx, "a@dept.edu", "123456")
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)
}

func TestVerify_AtExactExpiryStillValid(t *testing.T) {
	r, _, clock := newTestRegistry(t)
	require.NoError(t, r.StoreCode(ctx, "a@dept.edu", "123456", time.Minute))
	clock.Advance(time.Minute)

	ok, err := r.VerifyCode(ctx, "a@dept.edu", "123456")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_EmptyStoredCode(t *testing.T) {
	r, store, clock := newTestRegistry(t)
	require.NoError(t, store.Put(ctx, &domain.VerificationEntry{
		Email:     "a@dept.edu",
		ExpiresAt: clock.Now().Add(time.Minute),
	}))

	_, err := r.VerifyCode(ctx, "a@dept.edu", "")
	assert.ErrorIs(t, err, domain.ErrEmptyCode)
	_, err = r.UseCode(ctx, "a@dept.edu")
	assert.ErrorIs(t, err, domain.ErrEmptyCode)
}

func TestUse_BeforeVerify(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	require.NoError(t, r.StoreCode(ctx, "a@dept.edu", "123456", 0))

	_, err := r.UseCode(ctx, "a@dept.edu")
	assert.ErrorIs(t, err, domain.ErrCodeNotVerified)
	assert.True(t, r.HasCode(ctx, "a@dept.edu"))
}

func TestUse_ExactlyOnce(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	require.NoError(t, r.StoreCode(ctx, "a@dept.edu", "123456", 0))
	_, err := r.VerifyCode(ctx, "a@dept.edu", "123456")
	require.NoError(t, err)

	ok, err := r.UseCode(ctx, "a@dept.edu")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = r.UseCode(ctx, "a@dept.edu")
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)
}

func TestUse_NotFound(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	_, err := r.UseCode(ctx, "a@dept.edu")
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)
}

func TestRemint_ResetsVerifiedEntry(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	require.NoError(t, r.StoreCode(ctx, "a@dept.edu", "111111", 0))
	_, err := r.VerifyCode(ctx, "a@dept.edu", "111111")
	require.NoError(t, err)

	require.NoError(t, r.StoreCode(ctx, "a@dept.edu", "222222", 0))

	_, err = r.UseCode(ctx, "a@dept.edu")
	assert.ErrorIs(t, err, domain.ErrCodeNotVerified)
	_, err = r.VerifyCode(ctx, "a@dept.edu", "111111")
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)
	ok, err := r.VerifyCode(ctx, "a@dept.edu", "222222")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteCode_Idempotent(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	require.NoError(t, r.StoreCode(ctx, "a@dept.edu", "123456", 0))
	require.NoError(t, r.DeleteCode(ctx, "a@dept.edu"))
	require.NoError(t, r.DeleteCode(ctx, "a@dept.edu"))
	assert.False(t, r.HasCode(ctx, "a@dept.edu"))
}

func TestEmailKeyIsNormalized(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	require.NoError(t, r.StoreCode(ctx, " A@Dept.EDU", "123456", 0))
	ok, err := r.VerifyCode(ctx, "a@dept.edu", "123456")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWithTTL(t *testing.T) {
	r, _, clock := newTestRegistry(t, WithTTL(2*time.Minute))
	assert.Equal(t, 2*time.Minute, r.TTL())
	require.NoError(t, r.StoreCode(ctx, "a@dept.edu", "123456", 0))
	clock.Advance(3 * time.Minute)
	_, err := r.VerifyCode(ctx, "a@dept.edu", "123456")
	assert.ErrorIs(t, err, domain.ErrCodeExpired)
}

func TestObserver_ReceivesOutcomes(t *testing.T) {
	var got []string
	r, _, _ := newTestRegistry(t, WithObserver(func(op, outcome string) {
		got = append(got, op+":"+outcome)
	}))
	_, _ = r.VerifyCode(ctx, "a@dept.edu", "1")
	require.NoError(t, r.StoreCode(ctx, "a@dept.edu", "123456", 0))
	_, _ = r.UseCode(ctx, "a@dept.edu")
	_, _ = r.VerifyCode(ctx, "a@dept.edu", "000000")
	_, _ = r.VerifyCode(ctx, "a@dept.edu", "123456")
	_, _ = r.UseCode(ctx, "a@dept.edu")

	assert.Equal(t, []string{
		"verify:not_found",
		"use:not_verified",
		"verify:mismatch",
		"verify:ok",
		"use:ok",
	}, got)
}

func TestReap_RemovesOnlyExpired(t *testing.T) {
	r, store, clock := newTestRegistry(t)
	require.NoError(t, r.StoreCode(ctx, "old@dept.edu", "111111", time.Minute))
	require.NoError(t, r.StoreCode(ctx, "new@dept.edu", "222222", time.Hour))
	clock.Advance(2 * time.Minute)

	n, err := r.Reap(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.Len())
	assert.False(t, r.HasCode(ctx, "old@dept.edu"))
	assert.True(t, r.HasCode(ctx, "new@dept.edu"))
}

func TestRunJanitor_StopsOnCancel(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	c, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.RunJanitor(c, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

// Concurrent verify/use/store on one email must never let UseCode succeed
// for an entry that was not verified under the current mint.
func TestConcurrentRemint_UseNeverSucceedsUnverified(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	require.NoError(t, r.StoreCode(ctx, "a@dept.edu", "123456", 0))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_ = r.StoreCode(ctx, "a@dept.edu", "123456", 0)
		}()
		go func() {
			defer wg.Done()
			_, _ = r.VerifyCode(ctx, "a@dept.edu", "123456")
		}()
		go func() {
			defer wg.Done()
			_, err := r.UseCode(ctx, "a@dept.edu")
			if err != nil {
				assert.True(t,
					errors.Is(err, domain.ErrCodeNotVerified) || errors.Is(err, domain.ErrCodeNotFound),
					"unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
}

// interleavingStore runs afterGet once, right after the next Get returns,
// to simulate another instance writing between a read and its write.
type interleavingStore struct {
	Store
	afterGet func()
}

func (s *interleavingStore) Get(c context.Context, email string) (*domain.VerificationEntry, error) {
	e, err := s.Store.Get(c, email)
	if hook := s.afterGet; hook != nil {
		s.afterGet = nil
		hook()
	}
	return e, err
}

func twoInstances(t *testing.T) (a *Registry, b *Registry, shared *interleavingStore) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	shared = &interleavingStore{Store: NewMemoryStore()}
	a = NewRegistry(shared, WithClock(clock.Now))
	b = NewRegistry(shared, WithClock(clock.Now))
	return a, b, shared
}

func TestSharedStore_RemintDuringVerifyWins(t *testing.T) {
	a, b, shared := twoInstances(t)
	require.NoError(t, a.StoreCode(ctx, "a@dept.edu", "111111", 0))

	shared.afterGet = func() {
		require.NoError(t, b.StoreCode(ctx, "a@dept.edu", "222222", 0))
	}
	ok, err := a.VerifyCode(ctx, "a@dept.edu", "111111")
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)

	e, err := shared.Get(ctx, "a@dept.edu")
	require.NoError(t, err)
	assert.Equal(t, "222222", e.Code)
	assert.False(t, e.Verified)

	ok, err = b.VerifyCode(ctx, "a@dept.edu", "222222")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSharedStore_RemintDuringUseIsKept(t *testing.T) {
	a, b, shared := twoInstances(t)
	require.NoError(t, a.StoreCode(ctx, "a@dept.edu", "111111", 0))
	_, err := a.VerifyCode(ctx, "a@dept.edu", "111111")
	require.NoError(t, err)

	shared.afterGet = func() {
		require.NoError(t, b.StoreCode(ctx, "a@dept.edu", "222222", 0))
	}
	ok, err := a.UseCode(ctx, "a@dept.edu")
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrCodeNotVerified)

	e, err := shared.Get(ctx, "a@dept.edu")
	require.NoError(t, err)
	assert.Equal(t, "222222", e.Code)
}

func TestSharedStore_UseRacingUseConsumesOnce(t *testing.T) {
	a, b, shared := twoInstances(t)
	require.NoError(t, a.StoreCode(ctx, "a@dept.edu", "111111", 0))
	_, err := a.VerifyCode(ctx, "a@dept.edu", "111111")
	require.NoError(t, err)

	var inner bool
	var innerErr error
	shared.afterGet = func() {
		inner, innerErr = b.UseCode(ctx, "a@dept.edu")
	}
	ok, err := a.UseCode(ctx, "a@dept.edu")
	require.NoError(t, innerErr)
	assert.True(t, inner)
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)
}

func TestSharedStore_ReapSkipsRemint(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	shared := &interleavingStore{Store: NewMemoryStore()}
	a := NewRegistry(shared, WithClock(clock.Now))
	b := NewRegistry(shared, WithClock(clock.Now))
	require.NoError(t, a.StoreCode(ctx, "a@dept.edu", "111111", time.Minute))
	clock.Advance(2 * time.Minute)

	shared.afterGet = func() {
		require.NoError(t, b.StoreCode(ctx, "a@dept.edu", "222222", 0))
	}
	n, err := a.Reap(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, a.HasCode(ctx, "a@dept.edu"))
}

func TestMemoryStore_ConditionalWrites(t *testing.T) {
	s := NewMemoryStore()
	assert.ErrorIs(t, s.MarkVerified(ctx, "a@dept.edu", "111111"), domain.ErrCodeNotFound)
	assert.ErrorIs(t, s.DeleteIf(ctx, "a@dept.edu", "111111", false), domain.ErrCodeNotFound)

	require.NoError(t, s.Put(ctx, &domain.VerificationEntry{Email: "a@dept.edu", Code: "111111"}))
	assert.ErrorIs(t, s.MarkVerified(ctx, "a@dept.edu", "999999"), domain.ErrCodeChanged)
	assert.ErrorIs(t, s.DeleteIf(ctx, "a@dept.edu", "111111", true), domain.ErrCodeChanged)

	require.NoError(t, s.MarkVerified(ctx, "a@dept.edu", "111111"))
	e, err := s.Get(ctx, "a@dept.edu")
	require.NoError(t, err)
	assert.True(t, e.Verified)

	require.NoError(t, s.DeleteIf(ctx, "a@dept.edu", "111111", true))
	assert.Equal(t, 0, s.Len())
}
