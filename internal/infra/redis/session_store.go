package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/intelogroup/usmle-trivia-sub009/internal/domain"
)

// SessionStore keeps quiz sessions as JSON values, one key per session.
// Update runs under WATCH/MULTI so the version check and the write are atomic:
// if any other writer touches the key between read and EXEC the transaction
// fails and the caller sees domain.ErrConflict.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore builds a store. ttl <= 0 keeps sessions forever; retention
// is an external collaborator's job, the engine never deletes sessions.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Create(ctx context.Context, session domain.QuizSession) (domain.QuizSession, error) {
	session.Version = 1
	raw, err := json.Marshal(session)
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(session.ID), raw, s.expiry()).Result()
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return domain.QuizSession{}, fmt.Errorf("session %s exists: %w", session.ID, domain.ErrConflict)
	}
	return session, nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (domain.QuizSession, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.QuizSession{}, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("get session: %w", err)
	}
	var session domain.QuizSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.QuizSession{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}

func (s *SessionStore) Update(ctx context.Context, session domain.QuizSession) (domain.QuizSession, error) {
	key := s.key(session.ID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("session %s: %w", session.ID, domain.ErrSessionNotFound)
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		var stored domain.QuizSession
		if err := json.Unmarshal(raw, &stored); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		if stored.Version != session.Version {
			return fmt.Errorf("session %s version %d: %w", session.ID, session.Version, domain.ErrConflict)
		}

		session.Version++
		next, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, redis.KeepTTL)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.QuizSession{}, fmt.Errorf("session %s: %w", session.ID, domain.ErrConflict)
	}
	if err != nil {
		return domain.QuizSession{}, err
	}
	return session, nil
}

func (s *SessionStore) expiry() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	return s.ttl
}

func (s *SessionStore) key(id string) string {
	return "quiz:session:" + id
}
