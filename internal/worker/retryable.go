package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/telemetry"
)

// CompletionFunc — колбэк после попытки job (успешной или нет).
// Ошибка колбэка логируется и не влияет на результат.
type CompletionFunc func(ctx context.Context, job *domain.Job, result *domain.JobResult) error

// RetryableRunner — единая точка выполнения одной попытки job.
//
// Порядок:
//  1. Breaker открыт → circuit_breaker_open, воркер не вызывается.
//  2. Runner.Run.
//  3. Успех → RecordSuccess, колбэк, результат без изменений.
//  4. Неудача → RecordFailure, аннотации retry/retries/max_retries/final,
//     колбэк.
//
// Сам job повторно не ставится в очередь: retry=true — сигнал транспорту.
type RetryableRunner struct {
	runner     *Runner
	policy     RetryPolicy
	breaker    *CircuitBreaker
	onComplete CompletionFunc
	logger     *slog.Logger
}

// RetryableConfig — конфигурация RetryableRunner.
type RetryableConfig struct {
	// Runner — исполнитель попытки (обязателен).
	Runner *Runner

	// Policy — политика повторов (default: DefaultRetryPolicy()).
	Policy *RetryPolicy

	// Breaker — circuit breaker (default: 5 неудач за 60s).
	Breaker *CircuitBreaker

	// OnComplete — колбэк после попытки (опционально).
	OnComplete CompletionFunc

	// Logger
	Logger *slog.Logger
}

// NewRetryableRunner создаёт RetryableRunner.
func NewRetryableRunner(cfg RetryableConfig) *RetryableRunner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runner := cfg.Runner
	if runner == nil {
		runner = NewRunner(RunnerConfig{Logger: logger})
	}

	policy := DefaultRetryPolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}

	breaker := cfg.Breaker
	if breaker == nil {
		breaker = NewCircuitBreaker(defaultFailureThreshold, defaultBreakerWindow)
	}

	return &RetryableRunner{
		runner:     runner,
		policy:     policy,
		breaker:    breaker,
		onComplete: cfg.OnComplete,
		logger:     logger,
	}
}

// Policy возвращает политику повторов (транспорт берёт из неё Delay).
func (r *RetryableRunner) Policy() RetryPolicy {
	return r.policy
}

// Breaker возвращает circuit breaker.
func (r *RetryableRunner) Breaker() *CircuitBreaker {
	return r.breaker
}

// Run выполняет одну попытку job и всегда возвращает корректный JobResult.
// job.Retries не изменяется: его увеличивает транспорт при повторной доставке.
func (r *RetryableRunner) Run(ctx context.Context, job *domain.Job) *domain.JobResult {
	jobType := string(job.Type)

	if r.breaker.IsOpen() {
		telemetry.CircuitBreakerRejections.Inc()
		telemetry.JobsTotal.WithLabelValues(jobType, telemetry.OutcomeRejected).Inc()
		r.logger.Warn("circuit breaker open, job rejected",
			"job_id", job.ID,
			"type", job.Type,
		)
		return domain.NewFailureResult(job.ID, domain.ErrorCodeCircuitBreakerOpen, "circuit breaker is open")
	}

	result := r.runner.Run(ctx, job)

	if result.Success {
		r.breaker.RecordSuccess()
		telemetry.JobsTotal.WithLabelValues(jobType, telemetry.OutcomeSucceeded).Inc()
		r.logger.Info("job succeeded",
			"job_id", job.ID,
			"type", job.Type,
			"generation_id", job.GenerationID,
			"duration", job.Duration(),
		)
		r.complete(ctx, job, result)
		return result
	}

	r.breaker.RecordFailure()

	retries := job.Retries + 1
	retry := r.policy.ShouldRetry(job, result.Error)

	result.Retry = retry
	result.Retries = retries
	result.MaxRetries = job.MaxRetries
	result.Final = !retry

	if retry {
		job.Status = domain.JobStatusRetry
		telemetry.JobsTotal.WithLabelValues(jobType, telemetry.OutcomeRetry).Inc()
	} else {
		job.Status = domain.JobStatusFailed
		telemetry.JobsTotal.WithLabelValues(jobType, telemetry.OutcomeFinal).Inc()
	}

	r.logger.Warn("job failed",
		"job_id", job.ID,
		"type", job.Type,
		"generation_id", job.GenerationID,
		"code", result.ErrorCode(),
		"retries", retries,
		"max_retries", job.MaxRetries,
		"retry", retry,
	)

	r.complete(ctx, job, result)
	return result
}

// complete вызывает колбэк, изолируя его ошибки и panic.
func (r *RetryableRunner) complete(ctx context.Context, job *domain.Job, result *domain.JobResult) {
	if r.onComplete == nil {
		return
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("completion callback panicked",
				"job_id", job.ID,
				"panic", fmt.Sprint(p),
			)
		}
	}()

	if err := r.onComplete(ctx, job, result); err != nil {
		r.logger.Error("completion callback failed",
			"job_id", job.ID,
			"error", err,
		)
	}
}
