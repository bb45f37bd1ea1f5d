package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/veridoc/veridoc/internal/api/handlers"
	"github.com/veridoc/veridoc/internal/config"
	"github.com/veridoc/veridoc/internal/llm"
	"github.com/veridoc/veridoc/internal/repository"
	"github.com/veridoc/veridoc/internal/rerank"
	"github.com/veridoc/veridoc/internal/server"
	"github.com/veridoc/veridoc/internal/service"
	"github.com/veridoc/veridoc/internal/storage"
	"github.com/veridoc/veridoc/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the veridoc API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	chunkRepo := repository.NewChunkRepository(pool)

	generator := &generatorAdapter{client: llm.NewClient(llm.Config{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.ChatModel,
	})}
	embedder := llm.NewEmbedder(llm.EmbedderConfig{
		BaseURL:    cfg.LLMBaseURL,
		APIKey:     cfg.LLMAPIKey,
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDims,
	})

	var reranker service.Reranker
	if cfg.HasRerank() {
		reranker = rerank.NewClient(rerank.Config{URL: cfg.RerankURL})
		log.Printf("reranking enabled via %s", cfg.RerankURL)
	} else {
		log.Println("reranking disabled, using similarity ordering")
	}

	var archive service.ArchiveStore
	var signer handlers.ArchiveURLSigner
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		archive = s3Client
		signer = s3Client
	}

	var planner service.QueryPlanner
	if cfg.PlannerStrategy == "iterative" {
		planner = service.NewIterativeRefinementPlanner(generator, cfg.ResearchRounds)
		log.Printf("iterative planner enabled (%d rounds)", cfg.ResearchRounds)
	} else {
		planner = service.NewSinglePassPlanner(generator)
	}

	answerSvc := service.NewAnswerService(
		planner,
		service.NewRetriever(embedder, chunkRepo, generator),
		service.NewRanker(reranker),
		service.NewHistorySummarizer(generator),
		generator,
		chunkRepo,
		cfg.MaxContextChunks,
	)
	ingestSvc := service.NewIngestService(embedder, chunkRepo, archive, service.DefaultChunkingConfig())

	router := server.NewRouter(server.RouterConfig{
		APIKey:           cfg.APIKey,
		AskHandler:       handlers.NewAskHandler(answerSvc),
		DocumentsHandler: handlers.NewDocumentsHandler(ingestSvc, signer),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// generatorAdapter bridges the llm client's concrete types to the
// pipeline's Generator interface.
type generatorAdapter struct {
	client *llm.Client
}

func (a *generatorAdapter) Complete(ctx context.Context, prompt string, opts service.GenOptions) (string, error) {
	return a.client.Complete(ctx, prompt, llm.Options{Temperature: opts.Temperature, MaxTokens: opts.MaxTokens})
}

func (a *generatorAdapter) CompleteJSON(ctx context.Context, prompt string) (json.RawMessage, error) {
	return a.client.CompleteJSON(ctx, prompt)
}

func (a *generatorAdapter) Stream(ctx context.Context, prompt string, opts service.GenOptions) (service.TokenStream, error) {
	return a.client.Stream(ctx, prompt, llm.Options{Temperature: opts.Temperature, MaxTokens: opts.MaxTokens})
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
