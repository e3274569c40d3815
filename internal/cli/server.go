package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/intelogroup/usmle-trivia-sub009/internal/app"
	"github.com/intelogroup/usmle-trivia-sub009/internal/config"
	"github.com/intelogroup/usmle-trivia-sub009/internal/domain"
	"github.com/intelogroup/usmle-trivia-sub009/internal/infra/memory"
	infrapg "github.com/intelogroup/usmle-trivia-sub009/internal/infra/postgres"
	infraredis "github.com/intelogroup/usmle-trivia-sub009/internal/infra/redis"
	transport "github.com/intelogroup/usmle-trivia-sub009/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to start the server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the quiz engine server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	questionTTL := config.TTLDuration(cfg.Questions.CacheTTL, 10*time.Minute)
	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
	if pool != nil {
		loader = infrapg.NewQuestionBank(pool)
	}

	var bank app.QuestionBank
	if redisClient != nil {
		bank = infraredis.NewQuestionCache(redisClient, loader, questionTTL)
	} else {
		bank = memory.NewQuestionBank(loader, questionTTL)
	}

	var sessionStore app.SessionStore
	var statsStore app.StatsStore
	if redisClient != nil {
		sessionTTL := config.TTLDuration(cfg.Redis.SessionTTL, 0)
		sessionStore = infraredis.NewSessionStore(redisClient, sessionTTL)
		statsStore = infraredis.NewStatsStore(redisClient)
	} else {
		sessionStore = memory.NewSessionStore()
		statsStore = memory.NewStatsStore()
	}

	stats := app.NewStatsAggregator(statsStore, cfg.Profile)
	board := app.NewLeaderboardAggregator(statsStore)
	feed := transport.NewLeaderboardFeed(board)
	manager := app.NewSessionManager(sessionStore, bank, stats, cfg.PointTable(), feed)
	api := transport.NewAPI(manager, stats, board, feed)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      api.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz engine on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions provides a minimal question bank for Postgres-less dev runs.
func sampleQuestions() map[string]domain.Question {
	return map[string]domain.Question{
		"demo-1": {
			ID:            "demo-1",
			Text:          "A 55-year-old presents with crushing chest pain. First diagnostic step?",
			Options:       []string{"Chest X-ray", "ECG", "Troponin", "Echocardiogram"},
			CorrectAnswer: 1,
			Difficulty:    domain.DifficultyEasy,
			Category:      "cardiology",
			USMLECategory: "Cardiovascular System",
		},
		"demo-2": {
			ID:            "demo-2",
			Text:          "Which drug class is first line for heart failure with reduced ejection fraction?",
			Options:       []string{"Beta blockers", "ACE inhibitors", "Diuretics", "Digoxin"},
			CorrectAnswer: 1,
			Difficulty:    domain.DifficultyMedium,
			Category:      "pharmacology",
			USMLECategory: "Cardiovascular System",
		},
		"demo-3": {
			ID:            "demo-3",
			Text:          "A patient on lisinopril develops a dry cough. Mechanism?",
			Options:       []string{"Histamine release", "Bradykinin accumulation", "Prostaglandin inhibition", "Substance P depletion"},
			CorrectAnswer: 1,
			Difficulty:    domain.DifficultyHard,
			Category:      "pharmacology",
			USMLECategory: "Cardiovascular System",
		},
	}
}
