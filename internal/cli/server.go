package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/hhkuy/sums-qz/internal/app"
	"github.com/hhkuy/sums-qz/internal/catalog"
	"github.com/hhkuy/sums-qz/internal/config"
	"github.com/hhkuy/sums-qz/internal/domain"
	"github.com/hhkuy/sums-qz/internal/infra/memory"
	pgcatalog "github.com/hhkuy/sums-qz/internal/infra/postgres"
	redisinfra "github.com/hhkuy/sums-qz/internal/infra/redis"
	"github.com/hhkuy/sums-qz/internal/logging"
	"github.com/hhkuy/sums-qz/internal/transport/ws"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz bot server",
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
	log := logging.New("sums-quiz")

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

	var source catalog.Gateway
	switch {
	case pool != nil:
		source = pgcatalog.NewCatalogSource(pool)
	case cfg.Catalog.BaseURL != "":
		source = catalog.NewHTTPSource(cfg.Catalog.BaseURL, nil)
	default:
		log.Warn("no catalog configured, serving built-in sample content")
		source = memory.NewStaticGateway(sampleTopics(), sampleSets())
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var gateway catalog.Gateway
	if redisClient != nil {
		gateway = redisinfra.NewCatalogCache(redisClient, source, catalogTTL)
	} else {
		gateway = memory.NewCatalogCache(source, catalogTTL)
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessionTTL := config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)
		sessions = redisinfra.NewSessionStore(redisClient, sessionTTL)
	} else {
		sessions = memory.NewSessionStore()
	}

	hub := ws.NewHub()
	service := app.NewQuizService(memory.NewDialogStore(), sessions, gateway, hub, app.Options{
		Scope:  domain.ParseScope(cfg.Quiz.Scope),
		Seed:   cfg.Quiz.Seed,
		Logger: log,
	})
	handler := ws.NewHandler(service, hub, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", handler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting quiz bot server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleTopics provides a minimal catalog for running without a content source.
func sampleTopics() []domain.Topic {
	return []domain.Topic{
		{
			Name: "General Knowledge",
			Subtopics: []domain.Subtopic{
				{Name: "Arithmetic", SetRef: "sets/arithmetic.json"},
			},
		},
	}
}

func sampleSets() map[string][]domain.QuestionRecord {
	return map[string][]domain.QuestionRecord{
		"sets/arithmetic.json": {
			{
				Text:        "What is 2 + 2?",
				Options:     []string{"3", "4", "5"},
				Answer:      1,
				AnswerText:  "4",
				Explanation: "Two plus two equals four.",
			},
			{
				Text:    "What is 9 - 3?",
				Options: []string{"6", "5", "3"},
				Answer:  0,
			},
		},
	}
}
