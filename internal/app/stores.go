package app

import (
	"context"

	"github.com/intelogroup/usmle-trivia-sub009/internal/domain"
)

// SessionStore abstracts durable keyed storage for quiz sessions (in-memory,
// Redis, etc). Update is a compare-and-swap on the record version: it fails
// with domain.ErrConflict when the stored version differs from the one the
// caller read, and bumps the version on success.
type SessionStore interface {
	Create(ctx context.Context, session domain.QuizSession) (domain.QuizSession, error)
	Get(ctx context.Context, id string) (domain.QuizSession, error)
	Update(ctx context.Context, session domain.QuizSession) (domain.QuizSession, error)
}

// StatsStore holds per-user stats records with the same CAS contract as
// SessionStore. Put with Version zero inserts; any other version must match
// the stored record or domain.ErrConflict is returned. TopByPoints returns
// the highest-scoring candidates for leaderboard assembly; implementations
// may return them loosely ordered, the aggregator applies the canonical sort.
type StatsStore interface {
	Get(ctx context.Context, userID string) (domain.UserStats, error)
	Put(ctx context.Context, stats domain.UserStats) (domain.UserStats, error)
	TopByPoints(ctx context.Context, limit int) ([]domain.UserStats, error)
}

// QuestionBank supplies immutable question records. GetByIDs returns the
// questions in the requested order and fails with domain.ErrQuestionNotFound
// if any id is unknown. The engine never writes to it.
type QuestionBank interface {
	GetByIDs(ctx context.Context, ids []string) ([]domain.Question, error)
}

// EventSink receives best-effort analytics events. Implementations must not
// block and must never return an error into the completion path.
type EventSink interface {
	SessionCompleted(event domain.SessionCompletedEvent)
}

// NopEventSink discards events; used when no analytics collaborator is wired.
type NopEventSink struct{}

func (NopEventSink) SessionCompleted(domain.SessionCompletedEvent) {}
