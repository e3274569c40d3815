package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/intelogroup/usmle-trivia-sub009/internal/domain"
	"github.com/intelogroup/usmle-trivia-sub009/internal/scoring"
)

// dateLayout is the calendar-date form stored on stats records. Streaks
// compare UTC calendar dates, never timestamps, so a quiz at 23:59 and one at
// 00:01 the next day still count as consecutive study days.
const dateLayout = "2006-01-02"

const pointsPerLevel = 100

// ProfileDefaults seeds a stats record the first time a user is seen. Kept as
// an explicit struct so deployment-specific starting values are injected at
// construction instead of living in package globals.
type ProfileDefaults struct {
	StartingLevel int `yaml:"startingLevel"`
}

func (d ProfileDefaults) orFallback() ProfileDefaults {
	if d.StartingLevel <= 0 {
		d.StartingLevel = 1
	}
	return d
}

// StatsAggregator applies a completed session's result to the user's
// persistent profile. Every apply is a single read-modify-write under the
// store's compare-and-swap, retried with backoff, so two sessions of the same
// user completing near-simultaneously both land without lost updates.
type StatsAggregator struct {
	store    StatsStore
	defaults ProfileDefaults
	now      func() time.Time
}

func NewStatsAggregator(store StatsStore, defaults ProfileDefaults) *StatsAggregator {
	return &StatsAggregator{store: store, defaults: defaults.orFallback(), now: time.Now}
}

// NewStatsAggregatorWithClock is test-only for deterministic streak dates.
func NewStatsAggregatorWithClock(store StatsStore, defaults ProfileDefaults, now func() time.Time) *StatsAggregator {
	a := NewStatsAggregator(store, defaults)
	a.now = now
	return a
}

// EnsureProfile creates the stats record for a user if absent, seeded from the
// configured defaults, and refreshes the display name when it changed. Safe to
// call on every session create.
func (a *StatsAggregator) EnsureProfile(ctx context.Context, userID, displayName string) (domain.UserStats, error) {
	if userID == "" {
		return domain.UserStats{}, fmt.Errorf("%w: user id is required", domain.ErrInvalidArgument)
	}

	var stats domain.UserStats
	err := withCASRetry(ctx, 0, 0, func() error {
		current, err := a.store.Get(ctx, userID)
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			current = a.freshProfile(userID, displayName)
		case err != nil:
			return err
		default:
			if displayName == "" || current.DisplayName == displayName {
				stats = current
				return nil
			}
			current.DisplayName = displayName
		}

		stats, err = a.store.Put(ctx, current)
		return err
	})
	if err != nil {
		return domain.UserStats{}, err
	}
	return stats, nil
}

// Get returns the user's current stats record.
func (a *StatsAggregator) Get(ctx context.Context, userID string) (domain.UserStats, error) {
	return a.store.Get(ctx, userID)
}

// Apply credits one completed session. Points are monotone, level is derived
// from points, accuracy is a running weighted average over quiz count, and the
// streak advances by UTC calendar-date comparison. Exhausted CAS retries
// surface domain.ErrConflict; the whole apply is then safe to re-run.
func (a *StatsAggregator) Apply(ctx context.Context, userID string, result scoring.Result) (domain.UserStats, domain.StatsDelta, error) {
	if userID == "" {
		return domain.UserStats{}, domain.StatsDelta{}, fmt.Errorf("%w: user id is required", domain.ErrInvalidArgument)
	}

	var (
		stats domain.UserStats
		delta domain.StatsDelta
	)
	err := withCASRetry(ctx, 0, 0, func() error {
		current, err := a.store.Get(ctx, userID)
		if errors.Is(err, domain.ErrUserNotFound) {
			current = a.freshProfile(userID, "")
		} else if err != nil {
			return err
		}

		next, d := a.advance(current, result)
		stored, err := a.store.Put(ctx, next)
		if err != nil {
			return err
		}
		stats, delta = stored, d
		return nil
	})
	if err != nil {
		return domain.UserStats{}, domain.StatsDelta{}, err
	}
	return stats, delta, nil
}

func (a *StatsAggregator) advance(current domain.UserStats, result scoring.Result) (domain.UserStats, domain.StatsDelta) {
	next := current

	next.Points = current.Points + result.TotalPointsEarned
	next.Level = levelFor(next.Points, a.defaults.StartingLevel)
	next.TotalQuizzes = current.TotalQuizzes + 1
	if current.TotalQuizzes == 0 {
		next.Accuracy = result.Percentage
	} else {
		weighted := current.Accuracy*current.TotalQuizzes + result.Percentage
		next.Accuracy = (weighted + next.TotalQuizzes/2) / next.TotalQuizzes
	}

	today := a.now().UTC().Format(dateLayout)
	yesterday := a.now().UTC().AddDate(0, 0, -1).Format(dateLayout)
	streakContinued := false
	switch current.LastStudyDate {
	case today:
		// Several quizzes on one day never double-increment the streak.
	case yesterday:
		next.CurrentStreak = current.CurrentStreak + 1
		streakContinued = true
	default:
		next.CurrentStreak = 1
	}
	if next.CurrentStreak > next.LongestStreak {
		next.LongestStreak = next.CurrentStreak
	}
	next.LastStudyDate = today

	return next, domain.StatsDelta{
		PointsEarned:    result.TotalPointsEarned,
		LevelUp:         next.Level > current.Level,
		StreakContinued: streakContinued,
	}
}

func (a *StatsAggregator) freshProfile(userID, displayName string) domain.UserStats {
	return domain.UserStats{
		UserID:      userID,
		DisplayName: displayName,
		Level:       a.defaults.StartingLevel,
	}
}

func levelFor(points, floor int) int {
	level := points/pointsPerLevel + 1
	if level < floor {
		return floor
	}
	return level
}
