package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/smileright/dental-frontdesk/internal/api/router"
	"github.com/smileright/dental-frontdesk/internal/calendar"
	"github.com/smileright/dental-frontdesk/internal/clinic"
	appconfig "github.com/smileright/dental-frontdesk/internal/config"
	"github.com/smileright/dental-frontdesk/internal/conversation"
	"github.com/smileright/dental-frontdesk/internal/http/handlers"
	"github.com/smileright/dental-frontdesk/internal/knowledge"
	"github.com/smileright/dental-frontdesk/internal/ledger"
	"github.com/smileright/dental-frontdesk/internal/observability/metrics"
	"github.com/smileright/dental-frontdesk/internal/patients"
	"github.com/smileright/dental-frontdesk/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dental front desk", "env", cfg.Env, "port", cfg.Port)

	ctx := context.Background()
	clinicCfg := clinic.Default()
	catalog := knowledge.NewCatalog(nil)
	frontDeskMetrics := metrics.NewFrontDesk(prometheus.DefaultRegisterer)

	// Storage: Postgres when configured, in-memory otherwise.
	var (
		directory patients.Directory
		calStore  calendar.Store
		sink      ledger.Sink
		reader    handlers.TranscriptReader
		recorder  calendar.BookingRecorder
	)
	switch {
	case cfg.DatabaseURL != "":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		directory = patients.NewPostgresDirectory(pool)
		calStore = calendar.NewPostgresStore(pool)

		// Ledger flushes go through database/sql; the conversational hot
		// path stays on the pgx pool.
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open ledger db", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		pgSink := ledger.NewPostgresSink(db)
		sink = pgSink
		reader = pgSink
	default:
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		memDir := patients.NewMemoryDirectory()
		directory = memDir
		recorder = memDir
		calStore = calendar.NewMemoryStore()
		memSink := ledger.NewMemorySink()
		sink = memSink
		reader = memSink
	}

	if !cfg.RecordingEnabled {
		logger.Info("recording disabled, session ledger writes are discarded")
		sink = ledger.DiscardSink{}
		reader = nil
	}

	led := ledger.New(sink, ledger.Config{
		BatchSize:     cfg.LedgerBatchSize,
		FlushInterval: cfg.LedgerFlushInterval,
		BufferCap:     cfg.LedgerBufferCap,
		ShutdownGrace: cfg.LedgerShutdownGrace,
	}, logger, frontDeskMetrics)

	// Session snapshots for crash recovery.
	var snapshots *conversation.SnapshotStore
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(opts)
		defer func() { _ = redisClient.Close() }()
		snapshots = conversation.NewSnapshotStore(redisClient, nil)
	}
	manager := conversation.NewManager(snapshots)

	cal := calendar.NewService(clinicCfg, calStore, catalog, calendar.Options{
		SlotStepMinutes:        cfg.SlotStepMinutes,
		DefaultDurationMinutes: cfg.DefaultDurationMinutes,
		SuggestDaysAhead:       cfg.SuggestDaysAhead,
		Recorder:               recorder,
	}, logger)

	machineOpts := []conversation.MachineOption{
		conversation.WithLogger(logger),
		conversation.WithMetrics(frontDeskMetrics),
		conversation.WithToolTimeout(cfg.ToolTimeout),
	}
	if planner := buildPlanner(ctx, cfg, logger); planner != nil {
		machineOpts = append(machineOpts, conversation.WithPlanner(planner))
	}
	machine := conversation.NewMachine(directory, cal, catalog, clinicCfg, led, machineOpts...)

	// Turn dispatch: in-memory queue for single-process deployments, SQS when
	// a voice gateway feeds turns from another process.
	var worker *conversation.Worker
	var publisher *conversation.Publisher
	liveFeed := handlers.NewLiveFeed(logger)
	if cfg.UseMemoryQueue {
		memQueue := conversation.NewMemoryQueue(256)
		publisher = conversation.NewPublisher(memQueue, logger)
		worker = conversation.NewWorker(machine, manager, memQueue, logger,
			conversation.WithWorkerCount(cfg.WorkerCount),
			conversation.WithReplySink(liveFeed),
		)
	} else {
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		sqsQueue := conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.TurnQueueURL)
		publisher = conversation.NewPublisher(sqsQueue, logger)
		worker = conversation.NewWorker(machine, manager, sqsQueue, logger,
			conversation.WithWorkerCount(cfg.WorkerCount),
			conversation.WithReplySink(liveFeed),
		)
	}

	workerCtx, stopWorker := context.WithCancel(ctx)
	worker.Start(workerCtx)

	r := router.New(&router.Config{
		Logger:             logger,
		CallsHandler:       handlers.NewCallsHandler(machine, manager, publisher, logger),
		AdminSessions:      handlers.NewAdminSessionsHandler(manager, reader, directory, cal, logger),
		LiveFeed:           liveFeed,
		MetricsHandler:     promhttp.Handler(),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	stopWorker()
	worker.Wait()

	if err := led.Close(shutdownCtx); err != nil {
		logger.Error("ledger close failed", "error", err)
	}

	logger.Info("stopped")
}

// buildPlanner assembles the LLM utterance planner when a model is
// configured; otherwise the machine speaks its scripted utterances.
func buildPlanner(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) conversation.UtterancePlanner {
	var primary, fallback conversation.LLMClient
	model := cfg.BedrockModelID

	if cfg.BedrockModelID != "" {
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config for bedrock", "error", err)
		} else {
			primary = conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
		}
	}

	if cfg.GeminiAPIKey != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to initialize gemini client", "error", err)
		} else if primary == nil {
			primary = gemini
			model = cfg.GeminiModelID
		} else {
			fallback = gemini
		}
	}

	if primary == nil {
		return nil
	}
	client := conversation.NewFallbackLLMClient(primary, fallback, nil)
	return conversation.NewLLMPlanner(client, model, cfg.ToolTimeout, logger)
}
