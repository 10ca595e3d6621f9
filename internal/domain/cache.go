package domain

import (
	"context"
	"time"
)

// SnapshotCache mirrors the engine's reference-price snapshots so a restarted
// process keeps the same p0 values.
type SnapshotCache interface {
	Set(ctx context.Context, snap Snapshot) error
	Get(ctx context.Context, marketID string) (Snapshot, error)
	All(ctx context.Context) (map[string]Snapshot, error)
	Delete(ctx context.Context, marketID string) error
}

// RateLimiter provides distributed rate limiting for outbound provider calls.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking. Acquire returns ErrLockHeld when
// another holder owns the lock.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of detection results.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
