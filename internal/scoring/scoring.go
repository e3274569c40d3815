// Package scoring computes the result of a completed quiz attempt. All
// functions are pure: identical (session, questions) inputs always produce
// identical results so tests and replays are reproducible.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/intelogroup/usmle-trivia-sub009/internal/domain"
)

// PointTable maps a difficulty tier to the points awarded for a correct
// answer. Injected rather than hardcoded so deployments can switch tables
// without a code change.
type PointTable struct {
	Easy   int `yaml:"easy"`
	Medium int `yaml:"medium"`
	Hard   int `yaml:"hard"`
}

// DefaultPointTable is the canonical 10/15/20 scheme.
func DefaultPointTable() PointTable {
	return PointTable{Easy: 10, Medium: 15, Hard: 20}
}

// Value returns the award for a tier. Unknown tiers score like medium so a
// malformed question never zeroes out a correct answer.
func (t PointTable) Value(d domain.Difficulty) int {
	switch d {
	case domain.DifficultyEasy:
		return t.Easy
	case domain.DifficultyHard:
		return t.Hard
	default:
		return t.Medium
	}
}

// Accuracy thresholds for the strength / improvement category lists.
const (
	strengthThreshold    = 80
	improvementThreshold = 50
)

// QuestionOutcome is the per-slot breakdown of a scored session.
type QuestionOutcome struct {
	QuestionID string            `json:"questionId"`
	Answered   bool              `json:"answered"`
	Selected   int               `json:"selected"`
	Correct    bool              `json:"correct"`
	Points     int               `json:"points"`
	Difficulty domain.Difficulty `json:"difficulty"`
	Category   string            `json:"category"`
}

// GroupTally counts correct answers against attempts for one category or
// difficulty bucket.
type GroupTally struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Percent returns the bucket accuracy, 0 for an empty bucket.
func (g GroupTally) Percent() int {
	if g.Total == 0 {
		return 0
	}
	return roundedPercent(g.Correct, g.Total)
}

// Result is the value object produced by Score.
type Result struct {
	Percentage          int                              `json:"percentage"`
	CorrectCount        int                              `json:"correctCount"`
	TotalPointsEarned   int                              `json:"totalPointsEarned"`
	PerQuestion         []QuestionOutcome                `json:"perQuestion"`
	CategoryBreakdown   map[string]GroupTally            `json:"categoryBreakdown"`
	DifficultyBreakdown map[domain.Difficulty]GroupTally `json:"difficultyBreakdown"`
	StrengthAreas       []string                         `json:"strengthAreas"`
	ImprovementAreas    []string                         `json:"improvementAreas"`
}

// Score grades a session's recorded answers against the bank's questions.
// questions must be aligned with session.QuestionIDs; an unanswered slot is
// simply incorrect, never an error.
func Score(session domain.QuizSession, questions []domain.Question, table PointTable) (Result, error) {
	n := len(session.QuestionIDs)
	if n == 0 {
		return Result{}, fmt.Errorf("%w: session has no questions", domain.ErrInvalidArgument)
	}
	if len(questions) != n || len(session.Answers) != n {
		return Result{}, fmt.Errorf("%w: questions/answers misaligned with session", domain.ErrInvalidArgument)
	}

	res := Result{
		PerQuestion:         make([]QuestionOutcome, 0, n),
		CategoryBreakdown:   make(map[string]GroupTally),
		DifficultyBreakdown: make(map[domain.Difficulty]GroupTally),
	}

	for i := 0; i < n; i++ {
		q := questions[i]
		if q.ID != session.QuestionIDs[i] {
			return Result{}, fmt.Errorf("%w: question %s out of order at slot %d", domain.ErrInvalidArgument, q.ID, i)
		}
		ans := session.Answers[i]
		correct := ans.Answered && ans.Option == q.CorrectAnswer

		outcome := QuestionOutcome{
			QuestionID: q.ID,
			Answered:   ans.Answered,
			Selected:   ans.Option,
			Correct:    correct,
			Difficulty: q.Difficulty,
			Category:   q.Category,
		}
		if correct {
			outcome.Points = table.Value(q.Difficulty)
			res.CorrectCount++
			res.TotalPointsEarned += outcome.Points
		}
		res.PerQuestion = append(res.PerQuestion, outcome)

		cat := res.CategoryBreakdown[q.Category]
		cat.Total++
		if correct {
			cat.Correct++
		}
		res.CategoryBreakdown[q.Category] = cat

		diff := res.DifficultyBreakdown[q.Difficulty]
		diff.Total++
		if correct {
			diff.Correct++
		}
		res.DifficultyBreakdown[q.Difficulty] = diff
	}

	res.Percentage = roundedPercent(res.CorrectCount, n)
	res.StrengthAreas, res.ImprovementAreas = classifyCategories(res.CategoryBreakdown)
	return res, nil
}

// classifyCategories splits categories into strengths (>=80%) and improvement
// areas (<50%). Sorted so the result is stable for identical inputs.
func classifyCategories(byCategory map[string]GroupTally) (strengths, improvements []string) {
	for category, tally := range byCategory {
		pct := tally.Percent()
		switch {
		case pct >= strengthThreshold:
			strengths = append(strengths, category)
		case pct < improvementThreshold:
			improvements = append(improvements, category)
		}
	}
	sort.Strings(strengths)
	sort.Strings(improvements)
	return strengths, improvements
}

func roundedPercent(part, whole int) int {
	return int(math.Round(100 * float64(part) / float64(whole)))
}
