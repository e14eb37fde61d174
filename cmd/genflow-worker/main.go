// Genflow Worker — выполняет jobs генерации.
//
// Worker:
//   - Получает jobs из RabbitMQ (jobs.ready)
//   - Выполняет через RetryableRunner (circuit breaker + retry policy)
//   - Обновляет steps и generations в PostgreSQL, публикует доменные события
//   - Отправляет результат, повтор или dead letter обратно в RabbitMQ
//   - Отдаёт служебный HTTP API (/api/v1), /healthz и /metrics
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Genflow/internal/api"
	"github.com/shaiso/Genflow/internal/config"
	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/events"
	"github.com/shaiso/Genflow/internal/jobqueue"
	"github.com/shaiso/Genflow/internal/lifecycle"
	"github.com/shaiso/Genflow/internal/llm"
	"github.com/shaiso/Genflow/internal/mq"
	"github.com/shaiso/Genflow/internal/repo"
	"github.com/shaiso/Genflow/internal/telemetry"
	"github.com/shaiso/Genflow/internal/worker"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting genflow-worker")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.DBURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	store := repo.NewStore(pool, lifecycle.NewGenerationStateMachine(nil), logger)

	// RabbitMQ
	mqConn, err := mq.NewConnection(mq.ConnectionConfig{URL: cfg.RabbitMQURL, Logger: logger})
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("rabbitmq connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	publisher := mq.NewPublisher(mqConn, logger)

	// Воркеры
	registry := worker.NewRegistry(&worker.FormatFixWorker{})
	if cfg.LLMEnabled() {
		gen, err := llm.NewOpenAIGenerator(llm.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to create llm client", "error", err)
			os.Exit(1)
		}
		registry.Register(worker.NewTextWorker(gen, cfg.LLMTimeout))
		logger.Info("text worker enabled", "model", gen.Model())
	} else {
		logger.Warn("OPENAI_API_KEY not set, text jobs will fail with worker_not_found")
	}

	// Доменные события
	dispatcher := events.NewDispatcher(logger)
	finalTypes := make([]domain.JobType, len(cfg.FinalJobTypes))
	for i, t := range cfg.FinalJobTypes {
		finalTypes[i] = domain.JobType(t)
	}
	integration := events.NewIntegration(events.IntegrationConfig{
		Dispatcher:    dispatcher,
		Store:         store,
		FinalJobTypes: finalTypes,
		Logger:        logger,
	})

	policy := worker.RetryPolicy{
		Backoff:      cfg.RetryBackoff,
		InitialDelay: cfg.RetryInitialDelay,
		MaxDelay:     cfg.RetryMaxDelay,
	}
	runner := worker.NewRetryableRunner(worker.RetryableConfig{
		Runner:     worker.NewRunner(worker.RunnerConfig{Registry: registry, Logger: logger}),
		Policy:     &policy,
		Breaker:    worker.NewCircuitBreaker(cfg.BreakerFailureThreshold, cfg.BreakerWindow),
		OnComplete: integration.HandleJobResult,
		Logger:     logger,
	})

	svc := jobqueue.New(jobqueue.Config{
		Runner:            runner,
		Publisher:         publisher,
		Conn:              mqConn,
		Dispatcher:        dispatcher,
		Prefetch:          cfg.Prefetch,
		BreakerRetryDelay: cfg.BreakerRetryDelay,
		Logger:            logger,
	})

	if err := svc.Start(ctx); err != nil {
		logger.Error("failed to start job queue", "error", err)
		os.Exit(1)
	}

	// HTTP: /healthz, /metrics, /api/v1
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !mqConn.IsConnected() {
			http.Error(w, "rabbitmq disconnected", http.StatusServiceUnavailable)
			return
		}
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	api.NewHandler(api.Config{
		Store:             store,
		Publisher:         publisher,
		Dispatcher:        dispatcher,
		DefaultMaxRetries: cfg.DefaultMaxRetries,
		Logger:            logger,
	}).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              ":" + cfg.WorkerPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", "error", err)
	}

	svc.Stop()
	logger.Info("genflow-worker stopped")
}
