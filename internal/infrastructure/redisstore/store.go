package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dept-site-api/internal/domain"
	redis "github.com/redis/go-redis/v9"
)

// expiryGrace keeps a key alive past ExpiresAt so the registry still sees the
// entry and reports it as expired instead of missing.
const expiryGrace = time.Minute

// casAttempts bounds WATCH retries when other clients keep touching a key.
const casAttempts = 3

// Store keeps verification entries as JSON strings under prefix+email.
type Store struct {
	client *redis.Client
	prefix string
}

// New connects to Redis and pings it before returning.
func New(ctx context.Context, addr, password string, db int, prefix string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewWithClient(client, prefix), nil
}

func NewWithClient(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(email string) string {
	return s.prefix + email
}

func (s *Store) Get(ctx context.Context, email string) (*domain.VerificationEntry, error) {
	raw, err := s.client.Get(ctx, s.key(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("verification for %s: %w", email, domain.ErrCodeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decode(raw)
}

func (s *Store) Put(ctx context.Context, e *domain.VerificationEntry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	if err := s.client.Set(ctx, s.key(e.Email), raw, keyTTL(e.ExpiresAt, time.Now())).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, s.key(email)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// MarkVerified flags the entry verified under WATCH, only while it still
// holds code. The key's remaining TTL is kept.
func (s *Store) MarkVerified(ctx context.Context, email, code string) error {
	return s.compareAndSwap(ctx, email, func(tx *redis.Tx, key string, e *domain.VerificationEntry) error {
		if e.Code != code {
			return fmt.Errorf("verification for %s: %w", email, domain.ErrCodeChanged)
		}
		e.Verified = true
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal verification: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, redis.KeepTTL)
			return nil
		})
		return err
	})
}

// DeleteIf deletes the entry under WATCH, only while it still holds code
// and, with verifiedOnly, is verified.
func (s *Store) DeleteIf(ctx context.Context, email, code string, verifiedOnly bool) error {
	return s.compareAndSwap(ctx, email, func(tx *redis.Tx, key string, e *domain.VerificationEntry) error {
		if e.Code != code || (verifiedOnly && !e.Verified) {
			return fmt.Errorf("verification for %s: %w", email, domain.ErrCodeChanged)
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	})
}

// compareAndSwap loads the entry inside a WATCH transaction and hands it to
// apply, which queues its write with TxPipelined. EXEC aborts if another
// client wrote the key after the read; the whole read-check-write is then
// retried against the fresh value.
func (s *Store) compareAndSwap(ctx context.Context, email string, apply func(tx *redis.Tx, key string, e *domain.VerificationEntry) error) error {
	key := s.key(email)
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("verification for %s: %w", email, domain.ErrCodeNotFound)
		}
		if err != nil {
			return fmt.Errorf("redis get: %w", err)
		}
		e, err := decode(raw)
		if err != nil {
			return err
		}
		return apply(tx, key, e)
	}
	for i := 0; i < casAttempts; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("verification for %s: %w", email, domain.ErrCodeChanged)
}

// Range walks prefix* with SCAN. Keys that vanish between SCAN and GET are
// skipped.
func (s *Store) Range(ctx context.Context, fn func(domain.VerificationEntry) bool) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		email := strings.TrimPrefix(iter.Val(), s.prefix)
		e, err := s.Get(ctx, email)
		if errors.Is(err, domain.ErrCodeNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if !fn(*e) {
			return nil
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	return nil
}

func keyTTL(expiresAt, now time.Time) time.Duration {
	ttl := expiresAt.Sub(now)
	if ttl < 0 {
		ttl = 0
	}
	return ttl + expiryGrace
}

func decode(raw []byte) (*domain.VerificationEntry, error) {
	var e domain.VerificationEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("unmarshal verification: %w", err)
	}
	return &e, nil
}
