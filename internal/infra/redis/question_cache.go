package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/intelogroup/usmle-trivia-sub009/internal/domain"
)

// QuestionLoader fetches question records from a backing store (e.g. Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, ids []string) ([]domain.Question, error)
}

// QuestionCache caches question records in Redis, one JSON value per id, and
// falls back to the loader on cache miss. Concurrent misses for the same batch
// are collapsed through singleflight so a cold cache does not stampede the
// backing store.
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GetByIDs returns the questions in the requested order.
func (c *QuestionCache) GetByIDs(ctx context.Context, ids []string) ([]domain.Question, error) {
	found, missing, err := c.fetchCached(ctx, ids)
	if err != nil {
		return nil, err
	}

	if len(missing) > 0 {
		loadedAny, err, _ := c.sf.Do(strings.Join(missing, ","), func() (interface{}, error) {
			loaded, err := c.loader.LoadQuestions(ctx, missing)
			if err != nil {
				return nil, err
			}
			pipe := c.client.Pipeline()
			for _, q := range loaded {
				raw, err := json.Marshal(q)
				if err != nil {
					return nil, fmt.Errorf("marshal question: %w", err)
				}
				pipe.Set(ctx, c.key(q.ID), raw, c.ttlWithJitter())
			}
			_, _ = pipe.Exec(ctx)
			return loaded, nil
		})
		if err != nil {
			return nil, err
		}
		for _, q := range loadedAny.([]domain.Question) {
			found[q.ID] = q
		}
	}

	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		q, ok := found[id]
		if !ok {
			return nil, fmt.Errorf("question %s: %w", id, domain.ErrQuestionNotFound)
		}
		out = append(out, q)
	}
	return out, nil
}

func (c *QuestionCache) fetchCached(ctx context.Context, ids []string) (map[string]domain.Question, []string, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	raws, err := c.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, fmt.Errorf("question mget: %w", err)
	}

	found := make(map[string]domain.Question, len(ids))
	missing := make([]string, 0)
	for i, raw := range raws {
		str, ok := raw.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var q domain.Question
		if err := json.Unmarshal([]byte(str), &q); err != nil {
			return nil, nil, fmt.Errorf("unmarshal question: %w", err)
		}
		found[q.ID] = q
	}
	return found, missing, nil
}

func (c *QuestionCache) key(id string) string {
	return "question:" + id
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
