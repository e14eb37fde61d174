package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/telemetry"
)

// Runner — выполнение одной попытки job.
//
// Готовит job (RUNNING, started_at), находит воркер через Registry,
// вызывает Execute и нормализует любую ошибку или panic в failed
// JobResult. Наружу ошибки не выходят никогда.
type Runner struct {
	registry *Registry
	now      func() time.Time
	logger   *slog.Logger
}

// RunnerConfig — конфигурация Runner.
type RunnerConfig struct {
	// Registry — реестр воркеров (обязателен).
	Registry *Registry

	// Clock — источник времени (default: time.Now().UTC()).
	Clock func() time.Time

	// Logger
	Logger *slog.Logger
}

// NewRunner создаёт Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		registry: registry,
		now:      clock,
		logger:   logger,
	}
}

// Run выполняет job и возвращает результат попытки.
//
// Job мутируется: статус RUNNING и started_at (только если не задан),
// после выполнения — finished_at и SUCCEEDED/FAILED.
func (r *Runner) Run(ctx context.Context, job *domain.Job) *domain.JobResult {
	if job.Status != domain.JobStatusRunning {
		job.Status = domain.JobStatusRunning
	}
	if job.StartedAt == nil {
		started := r.now()
		job.StartedAt = &started
	}
	job.FinishedAt = nil

	result := r.execute(ctx, job)

	finished := r.now()
	if finished.Before(*job.StartedAt) {
		finished = *job.StartedAt
	}
	job.FinishedAt = &finished

	if result.Success {
		job.Status = domain.JobStatusSucceeded
	} else {
		job.Status = domain.JobStatusFailed
	}

	return result
}

// execute разрешает воркер и вызывает Execute с перехватом panic.
func (r *Runner) execute(ctx context.Context, job *domain.Job) (result *domain.JobResult) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("worker panicked",
				"job_id", job.ID,
				"type", job.Type,
				"panic", p,
				"stack", string(debug.Stack()),
			)
			result = domain.NewFailureResult(job.ID, domain.ErrorCodeExecution, fmt.Sprintf("panic: %v", p)).
				WithDetails(map[string]any{"error_type": "panic"})
		}
	}()

	w, err := r.registry.Resolve(job)
	if err != nil {
		r.logger.Warn("no worker for job", "job_id", job.ID, "type", job.Type)
		return errorResult(job.ID, domain.ErrorCodeWorkerNotFound, err)
	}

	start := time.Now()
	res, err := w.Execute(ctx, job)
	telemetry.JobDuration.WithLabelValues(string(job.Type)).Observe(time.Since(start).Seconds())

	if err != nil {
		r.logger.Warn("worker execution failed",
			"job_id", job.ID,
			"type", job.Type,
			"error", err,
		)
		return errorResult(job.ID, domain.ErrorCodeExecution, err)
	}

	return normalizeResult(job, res)
}

// normalizeResult проверяет контракт результата воркера.
// Пустой JobID заполняется; чужой JobID и нарушение пар success/error —
// execution_error.
func normalizeResult(job *domain.Job, res *domain.JobResult) *domain.JobResult {
	if res == nil {
		return errorResult(job.ID, domain.ErrorCodeExecution, fmt.Errorf("%w: nil result", ErrInvalidResult))
	}
	if res.JobID == uuid.Nil {
		res.JobID = job.ID
	}
	if res.JobID != job.ID {
		return errorResult(job.ID, domain.ErrorCodeExecution,
			fmt.Errorf("%w: job_id %s does not match job %s", ErrInvalidResult, res.JobID, job.ID))
	}
	if err := res.Validate(); err != nil {
		return errorResult(job.ID, domain.ErrorCodeExecution, fmt.Errorf("%w: %w", ErrInvalidResult, err))
	}
	return res
}

// errorResult создаёт failed JobResult с сохранением типа исходной ошибки.
func errorResult(jobID uuid.UUID, code string, err error) *domain.JobResult {
	return domain.NewFailureResult(jobID, code, err.Error()).
		WithDetails(map[string]any{"error_type": fmt.Sprintf("%T", err)})
}
