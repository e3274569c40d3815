package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/intelogroup/usmle-trivia-sub009/internal/domain"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewSessionStore(client, time.Hour)

	created, err := store.Create(ctx, sampleSession("s1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Version)
	}
	if !mr.Exists("quiz:session:s1") {
		t.Fatalf("expected redis key to be set")
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Answers[0] = domain.Answer{Option: 2, Answered: true}
	updated, err := store.Update(ctx, got)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}

	reread, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if !reread.Answers[0].Answered || reread.Answers[0].Option != 2 {
		t.Fatalf("update not persisted: %+v", reread.Answers[0])
	}
}

func TestSessionStoreConflicts(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	store := NewSessionStore(client, time.Hour)

	if _, err := store.Create(ctx, sampleSession("s1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Create(ctx, sampleSession("s1")); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on duplicate create, got %v", err)
	}

	first, _ := store.Get(ctx, "s1")
	second, _ := store.Get(ctx, "s1")
	first.TimeSpentSec = 30
	if _, err := store.Update(ctx, first); err != nil {
		t.Fatalf("first update: %v", err)
	}
	second.TimeSpentSec = 45
	if _, err := store.Update(ctx, second); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on stale version, got %v", err)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func sampleSession(id string) domain.QuizSession {
	return domain.QuizSession{
		ID:          id,
		UserID:      "u1",
		Mode:        domain.ModeQuick,
		QuestionIDs: []string{"q1", "q2"},
		Answers:     make([]domain.Answer, 2),
		Status:      domain.StatusActive,
		CreatedAt:   time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}
