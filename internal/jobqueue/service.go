package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/events"
	"github.com/shaiso/Genflow/internal/mq"
	"github.com/shaiso/Genflow/internal/telemetry"
	"github.com/shaiso/Genflow/internal/worker"
)

// Default configuration values.
const (
	defaultPrefetch          = 5
	defaultBreakerRetryDelay = 10 * time.Second
)

// Publisher — исходящая сторона транспорта (реализация: mq.Publisher).
type Publisher interface {
	PublishJobResult(ctx context.Context, job *domain.Job, result *domain.JobResult) error
	PublishJobRetry(ctx context.Context, job *domain.Job, delay time.Duration) error
	PublishDeadJob(ctx context.Context, job *domain.Job, result *domain.JobResult, reason string) error
	PublishEvent(ctx context.Context, name string, event any) error
}

// Service — хост для RetryableRunner поверх RabbitMQ.
//
// Для каждого сообщения из jobs.ready:
//   - декодирует и валидирует Job (невалидный → invalid_job, ack)
//   - вызывает RetryableRunner.Run
//   - публикует JobResult в jobs.results
//   - retry=true → Job с retries+1 в jobs.retry с задержкой RetryPolicy.Delay
//   - final=true → Job в dlq.jobs
//   - circuit_breaker_open → тот же Job в jobs.retry без увеличения retries
//
// Доменные события из Dispatcher пересылаются в genflow.events.
type Service struct {
	runner     *worker.RetryableRunner
	publisher  Publisher
	conn       *mq.Connection
	dispatcher *events.Dispatcher

	prefetch          int
	breakerRetryDelay time.Duration

	consumer *mq.Consumer
	subID    events.SubscriptionID
	logger   *slog.Logger

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Service.
type Config struct {
	// Runner — исполнитель попыток (обязателен).
	Runner *worker.RetryableRunner

	// Publisher — публикация результатов, повторов и событий (обязателен).
	Publisher Publisher

	// Conn — соединение для consumer'а jobs.ready.
	Conn *mq.Connection

	// Dispatcher — источник доменных событий для пересылки (опционально).
	Dispatcher *events.Dispatcher

	// Prefetch — число job в обработке одновременно (default: 5).
	Prefetch int

	// BreakerRetryDelay — задержка повторной доставки, если breaker открыт
	// (default: 10s).
	BreakerRetryDelay time.Duration

	// Logger
	Logger *slog.Logger
}

// New создаёт Service.
func New(cfg Config) *Service {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	breakerDelay := cfg.BreakerRetryDelay
	if breakerDelay <= 0 {
		breakerDelay = defaultBreakerRetryDelay
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		runner:            cfg.Runner,
		publisher:         cfg.Publisher,
		conn:              cfg.Conn,
		dispatcher:        cfg.Dispatcher,
		prefetch:          prefetch,
		breakerRetryDelay: breakerDelay,
		logger:            logger,
	}
}

// Start подписывает пересылку событий и запускает consumer jobs.ready.
func (s *Service) Start(ctx context.Context) error {
	if s.conn == nil {
		return errors.New("jobqueue: connection is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	if s.dispatcher != nil {
		s.subID = s.dispatcher.Subscribe(s.forwardEvent)
	}

	s.consumer = mq.NewConsumer(s.conn, s.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueJobsReady),
		Handler:  s.handleJobReady,
		Prefetch: s.prefetch,
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("job consumer error", "error", err)
		}
	}()

	s.logger.Info("job queue service started", "prefetch", s.prefetch)
	return nil
}

// Stop останавливает consumer и ждёт завершения обработки.
func (s *Service) Stop() {
	s.logger.Info("stopping job queue service...")

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	if s.consumer != nil {
		s.consumer.Stop()
	}
	if s.dispatcher != nil && s.subID != 0 {
		s.dispatcher.Unsubscribe(s.subID)
	}

	s.wg.Wait()
	s.logger.Info("job queue service stopped")
}

// handleJobReady обрабатывает сообщение из jobs.ready.
func (s *Service) handleJobReady(ctx context.Context, delivery *mq.Delivery) error {
	job, err := mq.ParsePayload[domain.Job](&delivery.Message)
	if err != nil {
		return fmt.Errorf("%w: decode job: %v", mq.ErrReject, err)
	}
	return s.processJob(ctx, &job)
}

// processJob выполняет одну попытку job и публикует её итог.
// Ошибка возвращается только если не удалось запланировать повтор:
// тогда сообщение вернётся в очередь.
func (s *Service) processJob(ctx context.Context, job *domain.Job) error {
	logger := telemetry.WithJob(s.logger, job)
	ctx = telemetry.WithLogger(ctx, logger)

	if err := job.Validate(); err != nil {
		logger.Warn("invalid job", "error", err)
		if job.ID == uuid.Nil {
			// Без ID результат не к чему привязать
			return fmt.Errorf("%w: %v", mq.ErrReject, err)
		}
		result := domain.NewFailureResult(job.ID, domain.ErrorCodeInvalidJob, err.Error()).
			WithDetails(map[string]any{"error_type": fmt.Sprintf("%T", err)})
		result.Final = true
		s.publishResult(ctx, logger, job, result)
		return nil
	}

	result := s.runner.Run(ctx, job)
	s.publishResult(ctx, logger, job, result)

	switch {
	case result.ErrorCode() == domain.ErrorCodeCircuitBreakerOpen:
		if err := s.publisher.PublishJobRetry(ctx, job, s.breakerRetryDelay); err != nil {
			return fmt.Errorf("reschedule job %s: %w", job.ID, err)
		}
		logger.Info("job rescheduled, circuit breaker open", "delay", s.breakerRetryDelay)

	case result.Retry:
		next, err := job.NextAttempt()
		if err != nil {
			return fmt.Errorf("next attempt for job %s: %w", job.ID, err)
		}
		delay := s.runner.Policy().Delay(result.Retries)
		if err := s.publisher.PublishJobRetry(ctx, next, delay); err != nil {
			return fmt.Errorf("reschedule job %s: %w", job.ID, err)
		}
		logger.Info("job scheduled for retry",
			"retries", next.Retries,
			"max_retries", next.MaxRetries,
			"delay", delay,
		)

	case result.Final:
		if err := s.publisher.PublishDeadJob(ctx, job, result, "retries exhausted"); err != nil {
			logger.Error("failed to publish dead job", "error", err)
		}
	}

	return nil
}

// publishResult публикует результат. Ошибка публикации логируется:
// job уже выполнен, повтор сообщения выполнил бы его ещё раз.
func (s *Service) publishResult(ctx context.Context, logger *slog.Logger, job *domain.Job, result *domain.JobResult) {
	if err := s.publisher.PublishJobResult(ctx, job, result); err != nil {
		logger.Warn("failed to publish job result", "error", err)
	}
}

// forwardEvent пересылает доменное событие в genflow.events.
func (s *Service) forwardEvent(ctx context.Context, event events.Event) error {
	return s.publisher.PublishEvent(ctx, event.EventName(), event)
}
