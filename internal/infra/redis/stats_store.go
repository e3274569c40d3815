package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/intelogroup/usmle-trivia-sub009/internal/domain"
)

const leaderboardKey = "leaderboard:points"

// StatsStore keeps one JSON stats record per user plus a points ZSet used as
// the leaderboard candidate index. Both are written in the same MULTI block
// under WATCH, so the index can lag the records only by a failed transaction,
// never diverge from a committed one.
type StatsStore struct {
	client *redis.Client
}

func NewStatsStore(client *redis.Client) *StatsStore {
	return &StatsStore{client: client}
}

func (s *StatsStore) Get(ctx context.Context, userID string) (domain.UserStats, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.UserStats{}, fmt.Errorf("user %s: %w", userID, domain.ErrUserNotFound)
	}
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("get stats: %w", err)
	}
	var stats domain.UserStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return domain.UserStats{}, fmt.Errorf("unmarshal stats: %w", err)
	}
	return stats, nil
}

func (s *StatsStore) Put(ctx context.Context, stats domain.UserStats) (domain.UserStats, error) {
	key := s.key(stats.UserID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if stats.Version != 0 {
				return fmt.Errorf("user %s: %w", stats.UserID, domain.ErrUserNotFound)
			}
		case err != nil:
			return fmt.Errorf("get stats: %w", err)
		default:
			var stored domain.UserStats
			if err := json.Unmarshal(raw, &stored); err != nil {
				return fmt.Errorf("unmarshal stats: %w", err)
			}
			if stored.Version != stats.Version {
				return fmt.Errorf("user %s version %d: %w", stats.UserID, stats.Version, domain.ErrConflict)
			}
		}

		stats.Version++
		next, err := json.Marshal(stats)
		if err != nil {
			return fmt.Errorf("marshal stats: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			pipe.ZAdd(ctx, leaderboardKey, redis.Z{
				Score:  float64(stats.Points),
				Member: stats.UserID,
			})
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.UserStats{}, fmt.Errorf("user %s: %w", stats.UserID, domain.ErrConflict)
	}
	if err != nil {
		return domain.UserStats{}, err
	}
	return stats, nil
}

// TopByPoints reads the highest-scoring members from the ZSet index and
// resolves them to full records. Index entries without a record (mid-failure
// remnants) are skipped; the aggregator re-sorts canonically.
func (s *StatsStore) TopByPoints(ctx context.Context, limit int) ([]domain.UserStats, error) {
	if limit <= 0 {
		limit = 10
	}
	ids, err := s.client.ZRevRange(ctx, leaderboardKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard range: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	raws, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard fetch: %w", err)
	}

	out := make([]domain.UserStats, 0, len(raws))
	for _, raw := range raws {
		str, ok := raw.(string)
		if !ok {
			continue
		}
		var stats domain.UserStats
		if err := json.Unmarshal([]byte(str), &stats); err != nil {
			return nil, fmt.Errorf("unmarshal stats: %w", err)
		}
		out = append(out, stats)
	}
	return out, nil
}

func (s *StatsStore) key(userID string) string {
	return "user:stats:" + userID
}
