package app

import (
	"context"
	"sort"

	"github.com/intelogroup/usmle-trivia-sub009/internal/domain"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// LeaderboardAggregator derives a ranked view from user stats on demand. The
// stats store is the source of truth; any cached index only narrows the
// candidate set and this aggregator always applies the canonical order.
type LeaderboardAggregator struct {
	store StatsStore
}

func NewLeaderboardAggregator(store StatsStore) *LeaderboardAggregator {
	return &LeaderboardAggregator{store: store}
}

// Rank returns the top entries sorted by points descending with ties broken
// by user id ascending, so repeated calls over unchanged data return an
// identical ordering. Ranks are dense 1-based sequential positions: two users
// with equal points still receive distinct ranks, decided by the tie-break.
func (l *LeaderboardAggregator) Rank(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	candidates, err := l.store.TopByPoints(ctx, limit)
	if err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Points != candidates[j].Points {
			return candidates[i].Points > candidates[j].Points
		}
		return candidates[i].UserID < candidates[j].UserID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	entries := make([]domain.LeaderboardEntry, 0, len(candidates))
	for i, stats := range candidates {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:       stats.UserID,
			DisplayName:  stats.DisplayName,
			Points:       stats.Points,
			Level:        stats.Level,
			Accuracy:     stats.Accuracy,
			TotalQuizzes: stats.TotalQuizzes,
			Streak:       stats.CurrentStreak,
			Rank:         i + 1,
		})
	}
	return entries, nil
}
