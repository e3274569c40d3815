package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"github.com/intelogroup/usmle-trivia-sub009/internal/app"
	"github.com/intelogroup/usmle-trivia-sub009/internal/domain"
	infrapg "github.com/intelogroup/usmle-trivia-sub009/internal/infra/postgres"
	pgmigrations "github.com/intelogroup/usmle-trivia-sub009/internal/infra/postgres/migrations"
	infraredis "github.com/intelogroup/usmle-trivia-sub009/internal/infra/redis"
	"github.com/intelogroup/usmle-trivia-sub009/internal/scoring"
)

func TestQuizLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuestions(t, ctx, pgURL, bankQuestions())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	bank := infraredis.NewQuestionCache(redisClient, infrapg.NewQuestionBank(pool), 5*time.Minute)
	sessionStore := infraredis.NewSessionStore(redisClient, time.Hour)
	statsStore := infraredis.NewStatsStore(redisClient)

	stats := app.NewStatsAggregator(statsStore, app.ProfileDefaults{StartingLevel: 1})
	board := app.NewLeaderboardAggregator(statsStore)
	manager := app.NewSessionManager(sessionStore, bank, stats, scoring.DefaultPointTable(), nil)

	if _, err := stats.EnsureProfile(ctx, "u1", "Alice"); err != nil {
		t.Fatalf("ensure profile: %v", err)
	}

	session, err := manager.Create(ctx, "u1", domain.ModeQuick, []string{"q-easy", "q-medium", "q-hard"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	// easy correct, medium wrong, hard correct
	for _, step := range []struct{ index, option, elapsed int }{
		{0, 1, 20},
		{1, 0, 45},
		{2, 2, 90},
	} {
		if _, err := manager.ApplyAnswer(ctx, session.ID, step.index, step.option, step.elapsed); err != nil {
			t.Fatalf("apply answer %d: %v", step.index, err)
		}
	}

	outcome, err := manager.Complete(ctx, session.ID, 120)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if outcome.Session.Score != 67 || outcome.Result.TotalPointsEarned != 30 {
		t.Fatalf("unexpected outcome: score=%d points=%d", outcome.Session.Score, outcome.Result.TotalPointsEarned)
	}

	got, err := stats.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if got.Points != 30 || got.TotalQuizzes != 1 || got.CurrentStreak != 1 {
		t.Fatalf("stats not applied: %+v", got)
	}

	entries, err := board.Rank(ctx, 10)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(entries) != 1 || entries[0].UserID != "u1" || entries[0].Rank != 1 {
		t.Fatalf("unexpected leaderboard: %+v", entries)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuestions(t *testing.T, ctx context.Context, dsn string, questions []domain.Question) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, q := range questions {
		raw, err := json.Marshal(q)
		if err != nil {
			t.Fatalf("marshal question: %v", err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO questions (id, data) VALUES (?, ?)`, q.ID, string(raw)); err != nil {
			t.Fatalf("seed question %s: %v", q.ID, err)
		}
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func bankQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            "q-easy",
			Text:          "First line treatment?",
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: 1,
			Difficulty:    domain.DifficultyEasy,
			Category:      "cardiology",
		},
		{
			ID:            "q-medium",
			Text:          "Mechanism of action?",
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: 3,
			Difficulty:    domain.DifficultyMedium,
			Category:      "pharmacology",
		},
		{
			ID:            "q-hard",
			Text:          "Most likely diagnosis?",
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: 2,
			Difficulty:    domain.DifficultyHard,
			Category:      "neurology",
		},
	}
}
