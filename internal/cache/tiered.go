package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// FrontTTL caps how long a value lives in the in-process tier.
const FrontTTL = 30 * time.Second

// Tiered reads through a short-lived in-process tier before a shared backend such as
// Redis. Backend read errors degrade to a miss; counters and job status go straight to
// the backend so every replica sees the same values.
type Tiered struct {
	front *MemoryCache
	back  Cache
}

func NewTiered(back Cache) *Tiered {
	return &Tiered{front: NewMemoryCache(), back: back}
}

func (t *Tiered) Ping(ctx context.Context) error { return t.back.Ping(ctx) }

func (t *Tiered) Close() error {
	_ = t.front.Close()
	return t.back.Close()
}

func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_ = t.front.Set(ctx, key, value, frontTTL(ttl))
	return t.back.Set(ctx, key, value, ttl)
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, _ := t.front.Get(ctx, key); ok {
		return v, true, nil
	}
	v, ok, err := t.back.Get(ctx, key)
	if err != nil {
		slog.Warn("cache backend read failed", "key", key, "error", err)
		return nil, false, nil
	}
	if ok {
		_ = t.front.Set(ctx, key, v, FrontTTL)
	}
	return v, ok, nil
}

func (t *Tiered) Delete(ctx context.Context, keys ...string) error {
	_ = t.front.Delete(ctx, keys...)
	return t.back.Delete(ctx, keys...)
}

func (t *Tiered) SetJobStatus(ctx context.Context, ownerID, jobID uuid.UUID, status string, ttl time.Duration) error {
	return t.back.SetJobStatus(ctx, ownerID, jobID, status, ttl)
}

func (t *Tiered) GetJobStatus(ctx context.Context, ownerID, jobID uuid.UUID) (string, bool, error) {
	return t.back.GetJobStatus(ctx, ownerID, jobID)
}

func (t *Tiered) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	return t.back.IncrWithExpiry(ctx, key, expiry)
}

func frontTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > FrontTTL {
		return FrontTTL
	}
	return ttl
}
