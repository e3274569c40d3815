package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/intelogroup/usmle-trivia-sub009/internal/domain"
	"github.com/intelogroup/usmle-trivia-sub009/internal/scoring"
)

// SessionManager owns the quiz attempt state machine:
//
//	active --applyAnswer--> active
//	active --complete-----> completed (terminal)
//	active --abandon------> abandoned (terminal)
//
// All writes go through the store's compare-and-swap so two devices racing on
// the same session cannot both win a terminal transition.
type SessionManager struct {
	sessions SessionStore
	bank     QuestionBank
	stats    *StatsAggregator
	table    scoring.PointTable
	events   EventSink
	now      func() time.Time
}

// CompleteOutcome bundles everything a caller needs after completion. Delta is
// nil when the stats apply failed; the session is completed either way and the
// aggregation is retried out-of-band.
type CompleteOutcome struct {
	Session domain.QuizSession `json:"session"`
	Result  scoring.Result     `json:"result"`
	Delta   *domain.StatsDelta `json:"delta,omitempty"`
	Stats   *domain.UserStats  `json:"stats,omitempty"`
}

func NewSessionManager(sessions SessionStore, bank QuestionBank, stats *StatsAggregator, table scoring.PointTable, events EventSink) *SessionManager {
	if events == nil {
		events = NopEventSink{}
	}
	return &SessionManager{
		sessions: sessions,
		bank:     bank,
		stats:    stats,
		table:    table,
		events:   events,
		now:      time.Now,
	}
}

// NewSessionManagerWithClock is test-only for deterministic timestamps.
func NewSessionManagerWithClock(sessions SessionStore, bank QuestionBank, stats *StatsAggregator, table scoring.PointTable, events EventSink, now func() time.Time) *SessionManager {
	m := NewSessionManager(sessions, bank, stats, table, events)
	m.now = now
	return m
}

// Create starts a new active session over a fixed question list.
func (m *SessionManager) Create(ctx context.Context, userID string, mode domain.Mode, questionIDs []string) (domain.QuizSession, error) {
	if userID == "" {
		return domain.QuizSession{}, fmt.Errorf("%w: user id is required", domain.ErrInvalidArgument)
	}
	if len(questionIDs) == 0 {
		return domain.QuizSession{}, fmt.Errorf("%w: question list is empty", domain.ErrInvalidArgument)
	}
	switch mode {
	case domain.ModeQuick, domain.ModeTimed, domain.ModeCustom:
	default:
		return domain.QuizSession{}, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidArgument, mode)
	}

	session := domain.QuizSession{
		ID:          uuid.NewString(),
		UserID:      userID,
		Mode:        mode,
		QuestionIDs: append([]string(nil), questionIDs...),
		Answers:     make([]domain.Answer, len(questionIDs)),
		Status:      domain.StatusActive,
		CreatedAt:   m.now(),
	}
	return m.sessions.Create(ctx, session)
}

// Get returns the current session record.
func (m *SessionManager) Get(ctx context.Context, sessionID string) (domain.QuizSession, error) {
	return m.sessions.Get(ctx, sessionID)
}

// ApplyAnswer records the selected option for one question slot. Resubmission
// overwrites, it never appends, so retried deliveries are harmless. Time spent
// only moves forward: the max of stored and submitted values wins, protecting
// against out-of-order retries carrying stale cumulative timers.
func (m *SessionManager) ApplyAnswer(ctx context.Context, sessionID string, questionIndex, selectedOption, cumulativeTimeSpent int) (domain.QuizSession, error) {
	if selectedOption < 0 {
		return domain.QuizSession{}, fmt.Errorf("%w: negative option index", domain.ErrInvalidArgument)
	}

	var updated domain.QuizSession
	err := withCASRetry(ctx, 0, 0, func() error {
		session, err := m.sessions.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != domain.StatusActive {
			return fmt.Errorf("%w: session is %s", domain.ErrInvalidState, session.Status)
		}
		if questionIndex < 0 || questionIndex >= len(session.QuestionIDs) {
			return fmt.Errorf("%w: question index %d out of range [0,%d)", domain.ErrInvalidArgument, questionIndex, len(session.QuestionIDs))
		}

		session.Answers[questionIndex] = domain.Answer{Option: selectedOption, Answered: true}
		if cumulativeTimeSpent > session.TimeSpentSec {
			session.TimeSpentSec = cumulativeTimeSpent
		}

		updated, err = m.sessions.Update(ctx, session)
		return err
	})
	if err != nil {
		return domain.QuizSession{}, err
	}
	return updated, nil
}

// Complete finishes an active session: grade, persist the terminal state, then
// credit user stats exactly once. The status flip is the commit point; if the
// stats apply fails afterwards the session stays completed with its score and
// the aggregation is left to out-of-band retry, never rolled back.
func (m *SessionManager) Complete(ctx context.Context, sessionID string, finalTimeSpent int) (CompleteOutcome, error) {
	var (
		completed domain.QuizSession
		result    scoring.Result
	)
	err := withCASRetry(ctx, 0, 0, func() error {
		session, err := m.sessions.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != domain.StatusActive {
			return fmt.Errorf("%w: session is %s", domain.ErrInvalidState, session.Status)
		}

		questions, err := m.bank.GetByIDs(ctx, session.QuestionIDs)
		if err != nil {
			return err
		}
		result, err = scoring.Score(session, questions, m.table)
		if err != nil {
			return err
		}

		completedAt := m.now()
		session.Status = domain.StatusCompleted
		session.Score = result.Percentage
		session.CompletedAt = &completedAt
		if finalTimeSpent > session.TimeSpentSec {
			session.TimeSpentSec = finalTimeSpent
		}

		completed, err = m.sessions.Update(ctx, session)
		return err
	})
	if err != nil {
		return CompleteOutcome{}, err
	}

	outcome := CompleteOutcome{Session: completed, Result: result}

	stats, delta, err := m.stats.Apply(ctx, completed.UserID, result)
	if err != nil {
		// Completion is already durable; losing it here would strand the
		// session as active forever. Surface through logs and reconciliation.
		log.Printf("stats apply failed for user %s session %s: %v", completed.UserID, completed.ID, err)
	} else {
		outcome.Delta = &delta
		outcome.Stats = &stats
	}

	m.events.SessionCompleted(domain.SessionCompletedEvent{
		UserID:       completed.UserID,
		SessionID:    completed.ID,
		Score:        completed.Score,
		PointsEarned: result.TotalPointsEarned,
		CompletedAt:  *completed.CompletedAt,
	})
	return outcome, nil
}

// Abandon terminates an active session without scoring or stats effects. It
// is the only cancellation path and is irreversible.
func (m *SessionManager) Abandon(ctx context.Context, sessionID string) (domain.QuizSession, error) {
	var updated domain.QuizSession
	err := withCASRetry(ctx, 0, 0, func() error {
		session, err := m.sessions.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != domain.StatusActive {
			return fmt.Errorf("%w: session is %s", domain.ErrInvalidState, session.Status)
		}
		session.Status = domain.StatusAbandoned

		updated, err = m.sessions.Update(ctx, session)
		return err
	})
	if err != nil {
		return domain.QuizSession{}, err
	}
	return updated, nil
}

// IsAlreadyDone reports whether err is the "race loser" outcome of a terminal
// transition. Callers should treat it as success-by-other-device, not retry.
func IsAlreadyDone(err error) bool {
	return errors.Is(err, domain.ErrInvalidState)
}
