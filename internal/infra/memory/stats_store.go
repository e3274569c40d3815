package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/intelogroup/usmle-trivia-sub009/internal/domain"
)

// StatsStore is an in-memory implementation of app.StatsStore with the same
// optimistic versioning contract as the Redis store.
type StatsStore struct {
	mu    sync.RWMutex
	stats map[string]domain.UserStats
}

func NewStatsStore() *StatsStore {
	return &StatsStore{
		stats: make(map[string]domain.UserStats),
	}
}

func (s *StatsStore) Get(_ context.Context, userID string) (domain.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats, ok := s.stats[userID]
	if !ok {
		return domain.UserStats{}, fmt.Errorf("user %s: %w", userID, domain.ErrUserNotFound)
	}
	return stats, nil
}

// Put inserts when the caller holds version zero and the record is absent,
// otherwise compare-and-swaps against the stored version.
func (s *StatsStore) Put(_ context.Context, stats domain.UserStats) (domain.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, exists := s.stats[stats.UserID]
	switch {
	case !exists && stats.Version != 0:
		return domain.UserStats{}, fmt.Errorf("user %s: %w", stats.UserID, domain.ErrUserNotFound)
	case exists && stored.Version != stats.Version:
		return domain.UserStats{}, fmt.Errorf("user %s version %d: %w", stats.UserID, stats.Version, domain.ErrConflict)
	}
	stats.Version++
	s.stats[stats.UserID] = stats
	return stats, nil
}

func (s *StatsStore) TopByPoints(_ context.Context, limit int) ([]domain.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.UserStats, 0, len(s.stats))
	for _, stats := range s.stats {
		all = append(all, stats)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Points != all[j].Points {
			return all[i].Points > all[j].Points
		}
		return all[i].UserID < all[j].UserID
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
