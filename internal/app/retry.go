package app

import (
	"context"
	"errors"
	"time"

	"github.com/intelogroup/usmle-trivia-sub009/internal/domain"
)

const (
	defaultCASAttempts = 5
	defaultCASBackoff  = 10 * time.Millisecond
)

// withCASRetry runs fn until it succeeds, fails with a non-conflict error, or
// the attempt budget is spent. Conflicts mean another writer won the
// compare-and-swap; the record is re-read inside fn so each attempt works on
// fresh state. Backoff doubles per attempt to let the competing writer finish.
func withCASRetry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	if attempts <= 0 {
		attempts = defaultCASAttempts
	}
	if backoff <= 0 {
		backoff = defaultCASBackoff
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, domain.ErrConflict) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff << attempt):
		}
	}
	return err
}
