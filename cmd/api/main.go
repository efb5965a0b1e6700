package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/oncall-agent/engine/internal/agent"
	"github.com/oncall-agent/engine/internal/api"
	"github.com/oncall-agent/engine/internal/api/handlers"
	"github.com/oncall-agent/engine/internal/broadcast"
	"github.com/oncall-agent/engine/internal/integrations/anthropic"
	"github.com/oncall-agent/engine/internal/integrations/github"
	"github.com/oncall-agent/engine/internal/integrations/parallelai"
	"github.com/oncall-agent/engine/internal/integrations/railway"
	"github.com/oncall-agent/engine/internal/monitor"
	"github.com/oncall-agent/engine/internal/queue/tasks"
	"github.com/oncall-agent/engine/internal/repository"
	"github.com/oncall-agent/engine/internal/services"
	"github.com/oncall-agent/engine/pkg/config"
	"github.com/oncall-agent/engine/pkg/database"
	"github.com/oncall-agent/engine/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()

	// Initialize logger
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("Starting oncall agent engine",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
	)

	// Connect to database
	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Repositories
	repoRepo := repository.NewRepositoryRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	invRepo := repository.NewInvestigationRepository(db)

	// Step broadcaster is process-local, so the investigation runner has to
	// execute in this process for websocket observers to see events.
	bcast := broadcast.New()

	// External providers. Each is optional; an unset key degrades the
	// matching evidence source to empty results.
	var source agent.SourceControl
	if cfg.GitHubToken != "" {
		source = github.New("", cfg.GitHubToken, cfg.ProviderTimeout)
	} else {
		log.Warn("GITHUB_TOKEN not set, commit evidence disabled")
	}
	var search agent.WebSearcher
	if cfg.ParallelAPIKey != "" {
		search = parallelai.New("", cfg.ParallelAPIKey, cfg.ProviderTimeout)
	} else {
		log.Warn("PARALLEL_API_KEY not set, web search evidence disabled")
	}
	var llm agent.Completer
	if cfg.AnthropicAPIKey != "" {
		llm = anthropic.New("", cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AnalysisTimeout)
	} else {
		log.Warn("ANTHROPIC_API_KEY not set, analysis will report hard failure")
	}

	gatherer := agent.NewGatherer(source, search, cfg.ProviderTimeout, log.Named("gatherer"))
	analyzer := agent.NewAnalyzer(llm, log.Named("analyzer"))
	runner := tasks.NewInvestigateRunner(invRepo, repoRepo, docRepo, gatherer, analyzer, bcast, cfg.AnalysisTimeout)

	// Optional asynq queue. Without Redis, runs dispatch on plain goroutines.
	var asynqClient *asynq.Client
	var asynqServer *asynq.Server
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("redis connection failed", zap.Error(err))
		}
		_ = rdb.Close()

		redisOpt := asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		}
		asynqClient = asynq.NewClient(redisOpt)
		asynqServer = asynq.NewServer(redisOpt, asynq.Config{Concurrency: cfg.AsynqConcurrency})

		mux := asynq.NewServeMux()
		mux.HandleFunc(tasks.TypeInvestigationRun, runner.HandleRun)
		go func() {
			log.Info("asynq worker starting", zap.Int("concurrency", cfg.AsynqConcurrency))
			if err := asynqServer.Run(mux); err != nil {
				log.Error("asynq worker stopped", zap.Error(err))
			}
		}()
	} else {
		log.Info("REDIS_ADDR not set, running investigations in-process")
	}

	invService := services.NewInvestigationService(invRepo, repoRepo, runner, asynqClient)

	// Deployment monitor
	var railwayClient *railway.Client
	var provider monitor.DeploymentProvider
	if cfg.RailwayAPIKey != "" {
		railwayClient = railway.New("", cfg.RailwayAPIKey, cfg.ProviderTimeout)
		provider = railwayClient
	}
	mon := monitor.New(provider, repoRepo, invService, monitor.Options{
		Interval:      cfg.MonitorInterval,
		StartupDelay:  cfg.MonitorStartupDelay,
		OutageBackoff: cfg.MonitorOutageBackoff,
	}, log.Named("monitor"))

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	go mon.Run(monitorCtx)

	// Handlers
	v := validator.New(validator.WithRequiredStructEnabled())
	router := api.NewRouter(api.Dependencies{
		CORSOrigin:            cfg.CORSOrigin,
		RepositoriesHandler:   handlers.NewRepositoriesHandler(repoRepo, v),
		DocumentsHandler:      handlers.NewDocumentsHandler(repoRepo, docRepo, cfg.UploadDir),
		InvestigationsHandler: handlers.NewInvestigationsHandler(invService, v),
		RailwayHandler:        handlers.NewRailwayHandler(railwayClient),
		StreamHandler:         handlers.NewStreamHandler(bcast),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	stopMonitor()
	if asynqServer != nil {
		asynqServer.Shutdown()
	}
	if asynqClient != nil {
		_ = asynqClient.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
