package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/intelogroup/usmle-trivia-sub009/internal/domain"
)

// QuestionBank loads question JSONB from Postgres. It satisfies the
// QuestionLoader contract of the caches and can also serve app.QuestionBank
// directly when no cache tier is configured.
type QuestionBank struct {
	pool *pgxpool.Pool
}

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

// LoadQuestions fetches the given ids in one round trip and returns them in
// the requested order. Any unknown id fails the whole batch.
func (b *QuestionBank) LoadQuestions(ctx context.Context, ids []string) ([]domain.Question, error) {
	rows, err := b.pool.Query(ctx, `SELECT data FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.Question, len(ids))
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		byID[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		q, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("question %s: %w", id, domain.ErrQuestionNotFound)
		}
		out = append(out, q)
	}
	return out, nil
}

// GetByIDs aliases LoadQuestions so the bank can be used without a cache.
func (b *QuestionBank) GetByIDs(ctx context.Context, ids []string) ([]domain.Question, error) {
	return b.LoadQuestions(ctx, ids)
}
