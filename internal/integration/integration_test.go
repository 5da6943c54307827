package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/hhkuy/sums-qz/internal/app"
	"github.com/hhkuy/sums-qz/internal/domain"
	"github.com/hhkuy/sums-qz/internal/infra/memory"
	pgcatalog "github.com/hhkuy/sums-qz/internal/infra/postgres"
	pgmigrations "github.com/hhkuy/sums-qz/internal/infra/postgres/migrations"
	redisinfra "github.com/hhkuy/sums-qz/internal/infra/redis"
)

type recordingDispatcher struct {
	mu        sync.Mutex
	questions []domain.OutboundQuestion
	texts     []string
}

func (d *recordingDispatcher) SendText(_ context.Context, _ string, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts = append(d.texts, text)
	return nil
}

func (d *recordingDispatcher) SendQuestion(_ context.Context, _ string, q domain.OutboundQuestion) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.questions = append(d.questions, q)
	return nil
}

func TestQuizFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedCatalog(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	source := pgcatalog.NewCatalogSource(pool)
	gateway := redisinfra.NewCatalogCache(redisClient, source, 5*time.Minute)
	sessions := redisinfra.NewSessionStore(redisClient, 5*time.Minute)

	log := logrus.New()
	log.SetOutput(io.Discard)

	dispatcher := &recordingDispatcher{}
	service := app.NewQuizService(memory.NewDialogStore(), sessions, gateway, dispatcher, app.Options{
		Seed:   42,
		Logger: log,
	})

	listing, err := service.BeginSelection(ctx, "chat-1")
	if err != nil {
		t.Fatalf("begin selection: %v", err)
	}
	if len(listing.Items) != 1 || listing.Items[0] != "Anatomy" {
		t.Fatalf("unexpected topics %+v", listing)
	}
	if _, err := service.ChooseTopic(ctx, "chat-1", 0); err != nil {
		t.Fatalf("choose topic: %v", err)
	}
	if _, err := service.ChooseSubtopic(ctx, "chat-1", 0); err != nil {
		t.Fatalf("choose subtopic: %v", err)
	}
	if err := service.SubmitCount(ctx, "chat-1", "u1", "5"); err != nil {
		t.Fatalf("submit count: %v", err)
	}

	// Requested 5 but only 2 valid records exist.
	if len(dispatcher.questions) != 2 {
		t.Fatalf("expected 2 dispatched questions, got %d", len(dispatcher.questions))
	}

	for _, q := range dispatcher.questions {
		service.HandleAnswer(ctx, domain.AnswerEvent{
			ConversationID: "chat-1",
			ParticipantID:  "u1",
			QuestionID:     q.ID,
			OptionIndices:  []int{0},
		})
	}

	if len(dispatcher.texts) != 1 || !strings.Contains(dispatcher.texts[0], "Final score:") {
		t.Fatalf("expected a final report, got %v", dispatcher.texts)
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

func seedCatalog(t *testing.T, ctx context.Context, dsn string) {
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

	topic := domain.Topic{
		Name: "Anatomy",
		Subtopics: []domain.Subtopic{
			{Name: "Thorax", SetRef: "sets/thorax.json"},
		},
	}
	records := []domain.QuestionRecord{
		{Text: "First?", Options: []string{"right", "wrong"}, Answer: 0},
		{Text: "Second?", Options: []string{"right", "wrong"}, Answer: 0},
		{Text: "broken", Options: []string{"only one"}, Answer: 0}, // filtered at the boundary
	}

	topicJSON, err := json.Marshal(topic)
	if err != nil {
		t.Fatalf("marshal topic: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO topics (position, data) VALUES (?, ?::jsonb)`, 0, string(topicJSON)); err != nil {
		t.Fatalf("insert topic: %v", err)
	}

	setJSON, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("marshal records: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO question_sets (ref, data) VALUES (?, ?::jsonb) ON CONFLICT (ref) DO UPDATE SET data=EXCLUDED.data`, "sets/thorax.json", string(setJSON)); err != nil {
		t.Fatalf("insert question set: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
