// Package arb implements the term-structure arbitrage detection core: the
// snapshot store, the detection strategy, the risk filter, and the engine
// that sequences them.
package arb

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Rickkless-King/Fingent/internal/domain"
)

// SnapshotStore holds the first-observed quote per market. Entries are
// created at most once per market ID; p0 never changes after creation.
// Safe for concurrent use so overlapping scheduler ticks cannot corrupt it.
type SnapshotStore struct {
	provider domain.MarketDataProvider
	logger   *slog.Logger

	mu    sync.RWMutex
	snaps map[string]domain.Snapshot
}

// NewSnapshotStore creates an empty store that fetches first-observation
// quotes through the given provider.
func NewSnapshotStore(provider domain.MarketDataProvider, logger *slog.Logger) *SnapshotStore {
	return &SnapshotStore{
		provider: provider,
		logger:   logger.With(slog.String("component", "snapshot_store")),
		snaps:    make(map[string]domain.Snapshot),
	}
}

// Create records a snapshot for each market that does not already have one.
// Markets whose quote is unavailable are skipped without error. The returned
// map contains the snapshot for every market that has one after the call,
// existing entries included.
func (s *SnapshotStore) Create(ctx context.Context, markets []domain.Market, newsID string) map[string]domain.Snapshot {
	out := make(map[string]domain.Snapshot, len(markets))
	now := time.Now().UTC()

	for _, m := range markets {
		s.mu.RLock()
		existing, ok := s.snaps[m.ID]
		s.mu.RUnlock()
		if ok {
			out[m.ID] = existing
			continue
		}

		quote, err := s.provider.GetQuote(ctx, m)
		if err != nil {
			s.logger.DebugContext(ctx, "no quote for snapshot",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		snap := domain.Snapshot{
			MarketID:    m.ID,
			NewsID:      newsID,
			FirstSeenTS: now,
			P0:          quote.Mid,
			Quote0:      quote,
			Volume0:     quote.Volume24h,
		}

		s.mu.Lock()
		// Re-check under the write lock; a concurrent scan may have won the
		// race, and its p0 must be kept.
		if prior, ok := s.snaps[m.ID]; ok {
			snap = prior
		} else {
			s.snaps[m.ID] = snap
		}
		s.mu.Unlock()

		out[m.ID] = snap

		s.logger.DebugContext(ctx, "created snapshot",
			slog.String("market_id", m.ID),
			slog.Float64("p0", snap.P0),
		)
	}

	return out
}

// Get returns the snapshot for a market, if one exists.
func (s *SnapshotStore) Get(marketID string) (domain.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[marketID]
	return snap, ok
}

// All returns a copy of every stored snapshot keyed by market ID.
func (s *SnapshotStore) All() map[string]domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Snapshot, len(s.snaps))
	for k, v := range s.snaps {
		out[k] = v
	}
	return out
}

// Len returns the number of stored snapshots.
func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snaps)
}

// Restore seeds the store with previously persisted snapshots, keeping any
// entry that already exists in memory. Used to warm-start after a restart.
func (s *SnapshotStore) Restore(snaps map[string]domain.Snapshot) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	restored := 0
	for id, snap := range snaps {
		if _, ok := s.snaps[id]; ok {
			continue
		}
		s.snaps[id] = snap
		restored++
	}
	return restored
}

// Clear evicts snapshots older than the given number of hours and returns how
// many were removed. Snapshots with a zero timestamp are never removed.
func (s *SnapshotStore) Clear(olderThanHours float64) int {
	now := time.Now().UTC()
	maxAge := time.Duration(olderThanHours * float64(time.Hour))

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, snap := range s.snaps {
		age := snap.Age(now)
		if age < 0 {
			continue
		}
		if age > maxAge {
			delete(s.snaps, id)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("cleared old snapshots", slog.Int("removed", removed))
	}
	return removed
}
