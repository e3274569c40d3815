package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/intelogroup/usmle-trivia-sub009/internal/domain"
)

func TestQuestionBankCaches(t *testing.T) {
	loader := &countingLoader{QuestionLoader: NewStaticQuestionLoader(sampleQuestions())}
	bank := NewQuestionBank(loader, time.Minute)

	got, err := bank.GetByIDs(context.Background(), []string{"q2", "q1"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected one loader call, got %d", loader.calls)
	}
	if got[0].ID != "q2" || got[1].ID != "q1" {
		t.Fatalf("requested order not preserved: %s, %s", got[0].ID, got[1].ID)
	}

	if _, err := bank.GetByIDs(context.Background(), []string{"q1", "q2"}); err != nil {
		t.Fatalf("get cached: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestQuestionBankUnknownID(t *testing.T) {
	bank := NewQuestionBank(NewStaticQuestionLoader(sampleQuestions()), time.Minute)
	if _, err := bank.GetByIDs(context.Background(), []string{"q1", "nope"}); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
}

type countingLoader struct {
	QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context, ids []string) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx, ids)
}

func sampleQuestions() map[string]domain.Question {
	return map[string]domain.Question{
		"q1": {
			ID:            "q1",
			Text:          "Most likely diagnosis?",
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: 1,
			Difficulty:    domain.DifficultyEasy,
			Category:      "cardiology",
		},
		"q2": {
			ID:            "q2",
			Text:          "Next best step?",
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: 2,
			Difficulty:    domain.DifficultyHard,
			Category:      "pharmacology",
		},
	}
}
