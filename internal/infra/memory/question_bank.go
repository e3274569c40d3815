package memory

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/intelogroup/usmle-trivia-sub009/internal/domain"
)

// QuestionLoader fetches question records from a backing store (e.g. Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, ids []string) ([]domain.Question, error)
}

// QuestionBank caches question records with TTL to avoid repeated backing
// store hits; misses for a batch of ids are collapsed through singleflight.
// Questions are immutable so staleness only matters for newly published
// content, which the TTL bounds.
type QuestionBank struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuestion
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

func NewQuestionBank(loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuestion),
	}
}

// GetByIDs returns the questions in the requested order.
func (b *QuestionBank) GetByIDs(ctx context.Context, ids []string) ([]domain.Question, error) {
	now := b.clock()

	missing := make([]string, 0)
	b.mu.RLock()
	for _, id := range ids {
		if entry, ok := b.cache[id]; !ok || !entry.expiresAt.After(now) {
			missing = append(missing, id)
		}
	}
	b.mu.RUnlock()

	if len(missing) > 0 {
		_, err, _ := b.sf.Do(strings.Join(missing, ","), func() (interface{}, error) {
			loaded, err := b.loader.LoadQuestions(ctx, missing)
			if err != nil {
				return nil, err
			}
			expiry := b.clock().Add(b.ttlWithJitter())
			b.mu.Lock()
			for _, q := range loaded {
				b.cache[q.ID] = cachedQuestion{question: q, expiresAt: expiry}
			}
			b.mu.Unlock()
			return nil, nil
		})
		if err != nil {
			return nil, err
		}
	}

	out := make([]domain.Question, 0, len(ids))
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, id := range ids {
		entry, ok := b.cache[id]
		if !ok {
			return nil, fmt.Errorf("question %s: %w", id, domain.ErrQuestionNotFound)
		}
		out = append(out, entry.question)
	}
	return out, nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader is a loader backed by an in-memory map, used for tests
// and Postgres-less dev runs.
type StaticQuestionLoader struct {
	questions map[string]domain.Question
}

func NewStaticQuestionLoader(questions map[string]domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, ids []string) ([]domain.Question, error) {
	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		q, ok := l.questions[id]
		if !ok {
			return nil, fmt.Errorf("question %s: %w", id, domain.ErrQuestionNotFound)
		}
		out = append(out, q)
	}
	return out, nil
}
