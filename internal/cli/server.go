package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"statquiz-engine/internal/config"
	"statquiz-engine/internal/domain"
	"statquiz-engine/internal/engine"
	"statquiz-engine/internal/infra/memory"
	pgloader "statquiz-engine/internal/infra/postgres"
	redisinfra "statquiz-engine/internal/infra/redis"
	transport "statquiz-engine/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewServeCmd builds the CLI subcommand to start the server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the quiz session server",
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
	sessionTTL := config.TTLDuration(cfg.Redis.SessionTTL, 24*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.AssessmentLoader = memory.NewStaticAssessmentLoader(sampleAssessments())
	if pool != nil {
		loader = pgloader.NewAssessmentLoader(pool)
	}

	cacheTTL := config.TTLDuration(cfg.Assessment.CacheTTL, 10*time.Minute)
	var repo engine.AssessmentRepository
	if redisClient != nil {
		repo = redisinfra.NewAssessmentRepository(redisClient, loader, cacheTTL)
	} else {
		repo = memory.NewAssessmentRepository(loader, cacheTTL)
	}

	var store engine.SessionStore
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, sessionTTL)
	} else {
		store = memory.NewSessionStore()
	}

	wsHandler := transport.NewWSHandler(repo, store)
	wsHandler.WarnWindow = config.TTLDuration(cfg.Engine.WarnWindow, 2*time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz session engine on :%s", finalPort)
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

// sampleAssessments provides built-in content so the server runs with zero
// infrastructure; production deployments load from Postgres instead.
func sampleAssessments() []domain.Assessment {
	return []domain.Assessment{
		{
			ID:      "descriptive-stats",
			Variant: "a",
			Title:   "Descriptive Statistics",
			Questions: []domain.Question{
				{
					Prompt:  "Which measure of central tendency is robust to outliers?",
					Options: []string{"mean", "range", "median", "variance"},
					Key:     domain.Single(2),
					Explanation: "The median depends only on rank order, so extreme " +
						"values cannot drag it around the way they drag the mean.",
					Topic: "central tendency",
				},
				{
					Prompt:  "Select all measures of spread.",
					Options: []string{"range", "mean", "variance", "mode"},
					Key:     domain.Multiple(0, 2),
					Explanation: "Range and variance describe dispersion; mean and " +
						"mode describe location.",
					Topic: "dispersion",
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
		},
	}
}
