package domain

import "time"

// Difficulty tiers a question can carry. Point weights per tier live in the
// scoring package so they stay configurable.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Mode distinguishes how a quiz attempt was started.
type Mode string

const (
	ModeQuick  Mode = "quick"
	ModeTimed  Mode = "timed"
	ModeCustom Mode = "custom"
)

// Status is the session lifecycle state. Completed and abandoned are terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Question is owned by the question bank and read-only to the engine.
type Question struct {
	ID            string     `json:"id"`
	Text          string     `json:"text"`
	Options       []string   `json:"options"`
	CorrectAnswer int        `json:"correctAnswer"`
	Difficulty    Difficulty `json:"difficulty"`
	Category      string     `json:"category"`
	USMLECategory string     `json:"usmleCategory,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
}

// Answer records the selected option for one session slot. Answered
// distinguishes "not yet answered" from option index zero.
type Answer struct {
	Option   int  `json:"option"`
	Answered bool `json:"answered"`
}

// QuizSession is one quiz attempt. Answers always has the same length as
// QuestionIDs. Version backs the compare-and-swap writes in the stores.
type QuizSession struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	Mode         Mode       `json:"mode"`
	QuestionIDs  []string   `json:"questionIds"`
	Answers      []Answer   `json:"answers"`
	TimeSpentSec int        `json:"timeSpentSec"`
	Status       Status     `json:"status"`
	Score        int        `json:"score"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	Version      int64      `json:"version"`
}

// AnswerAt returns the recorded answer for slot i.
func (s *QuizSession) AnswerAt(i int) (Answer, bool) {
	if i < 0 || i >= len(s.Answers) {
		return Answer{}, false
	}
	return s.Answers[i], s.Answers[i].Answered
}

// Terminal reports whether the session can no longer change.
func (s *QuizSession) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusAbandoned
}

// UserStats is the slice of the user profile the engine owns. LastStudyDate is
// a UTC calendar date in YYYY-MM-DD form, never a timestamp, because streaks
// compare days and not instants.
type UserStats struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	Points        int    `json:"points"`
	Level         int    `json:"level"`
	TotalQuizzes  int    `json:"totalQuizzes"`
	Accuracy      int    `json:"accuracy"`
	CurrentStreak int    `json:"currentStreak"`
	LongestStreak int    `json:"longestStreak"`
	LastStudyDate string `json:"lastStudyDate,omitempty"`
	Version       int64  `json:"version"`
}

// StatsDelta is the caller feedback returned by a stats apply.
type StatsDelta struct {
	PointsEarned    int  `json:"pointsEarned"`
	LevelUp         bool `json:"levelUp"`
	StreakContinued bool `json:"streakContinued"`
}

// LeaderboardEntry is a derived ranking row, recomputed on read.
type LeaderboardEntry struct {
	UserID       string `json:"userId"`
	DisplayName  string `json:"displayName"`
	Points       int    `json:"points"`
	Level        int    `json:"level"`
	Accuracy     int    `json:"accuracy"`
	TotalQuizzes int    `json:"totalQuizzes"`
	Streak       int    `json:"streak"`
	Rank         int    `json:"rank"`
}

// SessionCompletedEvent is the best-effort analytics signal emitted after a
// completion. Delivery failures never fail the completion itself.
type SessionCompletedEvent struct {
	UserID       string    `json:"userId"`
	SessionID    string    `json:"sessionId"`
	Score        int       `json:"score"`
	PointsEarned int       `json:"pointsEarned"`
	CompletedAt  time.Time `json:"completedAt"`
}
