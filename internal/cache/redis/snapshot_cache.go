package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rickkless-King/Fingent/internal/domain"
)

const defaultSnapshotTTL = 48 * time.Hour

// SnapshotCache implements domain.SnapshotCache using Redis hashes with
// JSON-serialized snapshots. A restarted process restores its reference
// prices from here so p0 survives restarts.
//
// Key schema:
//
//	snapshot:{marketID} - hash with field "data" containing JSON
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ domain.SnapshotCache = (*SnapshotCache)(nil)

// NewSnapshotCache creates a SnapshotCache backed by the given Client. A
// non-positive TTL falls back to 48 hours.
func NewSnapshotCache(c *Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &SnapshotCache{rdb: c.Underlying(), ttl: ttl}
}

func snapshotKey(marketID string) string { return "snapshot:" + marketID }

// Set stores a snapshot with the cache's TTL.
func (sc *SnapshotCache) Set(ctx context.Context, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", snap.MarketID, err)
	}

	key := snapshotKey(snap.MarketID)
	pipe := sc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, sc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", snap.MarketID, err)
	}
	return nil
}

// Get retrieves a snapshot by market ID. It returns domain.ErrNotFound when
// the key does not exist.
func (sc *SnapshotCache) Get(ctx context.Context, marketID string) (domain.Snapshot, error) {
	data, err := sc.rdb.HGet(ctx, snapshotKey(marketID), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Snapshot{}, domain.ErrNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("redis: get snapshot %s: %w", marketID, err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("redis: unmarshal snapshot %s: %w", marketID, err)
	}
	return snap, nil
}

// All returns every cached snapshot keyed by market ID, scanning the keyspace
// incrementally so large caches do not block Redis.
func (sc *SnapshotCache) All(ctx context.Context) (map[string]domain.Snapshot, error) {
	snaps := make(map[string]domain.Snapshot)

	var cursor uint64
	for {
		keys, next, err := sc.rdb.Scan(ctx, cursor, snapshotKey("*"), 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: scan snapshots: %w", err)
		}

		for _, key := range keys {
			data, err := sc.rdb.HGet(ctx, key, "data").Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue // expired between scan and read
				}
				return nil, fmt.Errorf("redis: read snapshot %s: %w", key, err)
			}
			var snap domain.Snapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return nil, fmt.Errorf("redis: unmarshal snapshot %s: %w", key, err)
			}
			snaps[snap.MarketID] = snap
		}

		cursor = next
		if cursor == 0 {
			return snaps, nil
		}
	}
}

// Delete removes a snapshot from the cache.
func (sc *SnapshotCache) Delete(ctx context.Context, marketID string) error {
	if err := sc.rdb.Del(ctx, snapshotKey(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: delete snapshot %s: %w", marketID, err)
	}
	return nil
}
