package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"statquiz-engine/internal/domain"
	"statquiz-engine/internal/engine"
	pgloader "statquiz-engine/internal/infra/postgres"
	pgmigrations "statquiz-engine/internal/infra/postgres/migrations"
	infraredis "statquiz-engine/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestAttemptLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedAssessment(t, ctx, pgURL, sampleAssessment())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgloader.NewAssessmentLoader(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	repo := infraredis.NewAssessmentRepository(redisClient, loader, 5*time.Minute)
	store := infraredis.NewSessionStore(redisClient, 5*time.Minute)

	ctrl, err := engine.Mount(ctx, repo, store, "stats-101", "a")
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	defer ctrl.Close()

	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := ctrl.Answer(ctx, domain.Single(2)); err != nil {
		t.Fatalf("answer q0: %v", err)
	}
	if err := ctrl.Navigate(ctx, 1); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if err := ctrl.Answer(ctx, domain.Multiple(0, 2)); err != nil {
		t.Fatalf("answer q1: %v", err)
	}
	if err := ctrl.Navigate(ctx, 2); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if err := ctrl.Answer(ctx, domain.Single(0)); err != nil {
		t.Fatalf("answer q2: %v", err)
	}
	if err := ctrl.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}

	snap := ctrl.Snapshot()
	if snap.Phase != domain.PhaseResults {
		t.Fatalf("expected results phase, got %s", snap.Phase)
	}
	if snap.Result == nil || snap.Result.Score != 2 || snap.Result.Percentage != 66.67 {
		t.Fatalf("unexpected result: %+v", snap.Result)
	}
	if snap.Result.Passed {
		t.Fatalf("66.67%% should not pass a 70%% threshold")
	}
	ctrl.Close()

	// History and resume state live in redis, so a fresh mount sees them.
	ctrl2, err := engine.Mount(ctx, repo, store, "stats-101", "a")
	if err != nil {
		t.Fatalf("remount: %v", err)
	}
	defer ctrl2.Close()
	snap = ctrl2.Snapshot()
	if snap.Phase != domain.PhaseIntro {
		t.Fatalf("completed attempt should not resume, got %s", snap.Phase)
	}
	if snap.AttemptCount != 1 || snap.BestPercentage != 66.67 {
		t.Fatalf("expected history count=1 best=66.67, got count=%d best=%v", snap.AttemptCount, snap.BestPercentage)
	}

	if err := ctrl2.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if err := ctrl2.Answer(ctx, domain.Single(2)); err != nil {
		t.Fatalf("second answer: %v", err)
	}
	ctrl2.Close()

	ctrl3, err := engine.Mount(ctx, repo, store, "stats-101", "a")
	if err != nil {
		t.Fatalf("resume mount: %v", err)
	}
	defer ctrl3.Close()
	snap = ctrl3.Snapshot()
	if snap.Phase != domain.PhaseActive {
		t.Fatalf("expected resumed active session, got %s", snap.Phase)
	}
	if len(snap.Answered) != 1 || snap.Answered[0] != 0 {
		t.Fatalf("expected answer to question 0 preserved, got %v", snap.Answered)
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

func seedAssessment(t *testing.T, ctx context.Context, dsn string, a domain.Assessment) {
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

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal assessment: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO assessments (id, variant, data) VALUES (?, ?, ?::jsonb) ON CONFLICT (id, variant) DO UPDATE SET data=EXCLUDED.data`, a.ID, a.Variant, string(data)); err != nil {
		t.Fatalf("insert assessment: %v", err)
	}
}

func sampleAssessment() domain.Assessment {
	return domain.Assessment{
		ID:      "stats-101",
		Variant: "a",
		Title:   "Descriptive Statistics",
		Questions: []domain.Question{
			{
				Prompt:  "Which measure of central tendency is robust to outliers?",
				Options: []string{"mean", "range", "median", "variance"},
				Key:     domain.Single(2),
				Topic:   "central tendency",
			},
			{
				Prompt:  "Select all measures of spread.",
				Options: []string{"range", "mean", "variance", "mode"},
				Key:     domain.Multiple(0, 2),
				Topic:   "dispersion",
			},
			{
				Prompt:  "A distribution with a long right tail is:",
				Options: []string{"left-skewed", "right-skewed", "symmetric"},
				Key:     domain.Single(1),
				Topic:   "shape",
			},
		},
		TimeLimitMinutes: 10,
		PassPercent:      70,
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
