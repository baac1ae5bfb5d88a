package verification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dept-site-api/internal/domain"
)

// Reap deletes every entry whose TTL has elapsed and returns how many were
// removed. Entries are re-checked under their lock and deleted only if they
// still hold the expired code, so a concurrent re-mint is never deleted.
func (r *Registry) Reap(ctx context.Context) (int, error) {
	now := r.now()
	var expired []string
	err := r.store.Range(ctx, func(e domain.VerificationEntry) bool {
		if e.Expired(now) {
			expired = append(expired, e.Email)
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, key := range expired {
		if r.reapOne(ctx, key, now) {
			removed++
		}
	}
	return removed, nil
}

func (r *Registry) reapOne(ctx context.Context, key string, now time.Time) bool {
	mu := r.lock(key)
	mu.Lock()
	defer mu.Unlock()
	e, err := r.store.Get(ctx, key)
	if err != nil || !e.Expired(now) {
		return false
	}
	if err := r.store.DeleteIf(ctx, key, e.Code, false); err != nil {
		if !errors.Is(err, domain.ErrCodeChanged) && !errors.Is(err, domain.ErrCodeNotFound) {
			slog.Warn("failed to reap verification entry", "err", err)
		}
		return false
	}
	return true
}

// RunJanitor calls Reap every interval until ctx is done.
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.Reap(ctx)
			if err != nil {
				slog.Warn("verification reap failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Debug("reaped expired verification entries", "count", n)
			}
		}
	}
}
