package verification

import (
	"context"
	"fmt"
	"sync"

	"github.com/dept-site-api/internal/domain"
)

// Store persists verification entries keyed by normalized email.
// Get returns domain.ErrCodeNotFound when no entry exists.
//
// MarkVerified and DeleteIf are compare-and-set writes: they only apply while
// the stored entry still holds code, so instances sharing one backend cannot
// clobber each other's re-mints. Both return domain.ErrCodeNotFound when the
// entry is gone and domain.ErrCodeChanged when the condition fails.
type Store interface {
	Get(ctx context.Context, email string) (*domain.VerificationEntry, error)
	Put(ctx context.Context, e *domain.VerificationEntry) error
	Delete(ctx context.Context, email string) error
	MarkVerified(ctx context.Context, email, code string) error
	// DeleteIf removes the entry if it holds code and, when verifiedOnly is
	// set, has been verified.
	DeleteIf(ctx context.Context, email, code string, verifiedOnly bool) error
	// Range calls fn for every stored entry until fn returns false.
	Range(ctx context.Context, fn func(domain.VerificationEntry) bool) error
}

// MemoryStore is the in-process Store. Entries are copied in and out so
// callers never share state with the map.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]domain.VerificationEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]domain.VerificationEntry)}
}

func (s *MemoryStore) Get(_ context.Context, email string) (*domain.VerificationEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[email]
	if !ok {
		return nil, fmt.Errorf("verification for %s: %w", email, domain.ErrCodeNotFound)
	}
	return &e, nil
}

func (s *MemoryStore) Put(_ context.Context, e *domain.VerificationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Email] = *e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, email)
	return nil
}

func (s *MemoryStore) MarkVerified(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[email]
	if !ok {
		return fmt.Errorf("verification for %s: %w", email, domain.ErrCodeNotFound)
	}
	if e.Code != code {
		return fmt.Errorf("verification for %s: %w", email, domain.ErrCodeChanged)
	}
	e.Verified = true
	s.entries[email] = e
	return nil
}

func (s *MemoryStore) DeleteIf(_ context.Context, email, code string, verifiedOnly bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[email]
	if !ok {
		return fmt.Errorf("verification for %s: %w", email, domain.ErrCodeNotFound)
	}
	if !matches(e, code, verifiedOnly) {
		return fmt.Errorf("verification for %s: %w", email, domain.ErrCodeChanged)
	}
	delete(s.entries, email)
	return nil
}

func matches(e domain.VerificationEntry, code string, verifiedOnly bool) bool {
	return e.Code == code && (!verifiedOnly || e.Verified)
}

func (s *MemoryStore) Range(_ context.Context, fn func(domain.VerificationEntry) bool) error {
	s.mu.RLock()
	snapshot := make([]domain.VerificationEntry, 0, len(s.entries))
	for _, e := range s.entries {
		snapshot = append(snapshot, e)
	}
	s.mu.RUnlock()
	for _, e := range snapshot {
		if !fn(e) {
			return nil
		}
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
