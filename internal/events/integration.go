package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/lifecycle"
	"github.com/shaiso/Genflow/internal/telemetry"
)

// DefaultFinalJobTypes — типы job, успех которых завершает генерацию.
func DefaultFinalJobTypes() []domain.JobType {
	return []domain.JobType{
		domain.JobTypeRefineText,
		domain.JobTypeFixFormat,
	}
}

// Integration превращает JobResult в обновления хранилища и доменные события.
//
// Успех:
//   - шаг → SUCCEEDED, progress=100, StepUpdated
//   - генерация → GENERATED (финальный тип job) или RUNNING, GenerationUpdated
//
// Неудача:
//   - шаг → FAILED, progress=0, StepUpdated
//   - генерация не меняется
//
// Если Store умеет GetStep, переход шага проверяется через
// lifecycle.StepLifecycle. Завершённый шаг не трогается, и генерация
// по такому результату тоже не меняется.
type Integration struct {
	dispatcher *Dispatcher
	store      Store
	steps      *lifecycle.StepLifecycle
	final      map[domain.JobType]struct{}
	now        func() time.Time
	logger     *slog.Logger
}

// IntegrationConfig — конфигурация Integration.
type IntegrationConfig struct {
	// Dispatcher — куда публикуются события (обязателен).
	Dispatcher *Dispatcher

	// Store — хранилище (default: NoopStore, только события).
	Store Store

	// FinalJobTypes — типы job, завершающие генерацию
	// (default: DefaultFinalJobTypes()).
	FinalJobTypes []domain.JobType

	// Clock — источник времени (default: time.Now().UTC()).
	Clock func() time.Time

	// Logger
	Logger *slog.Logger
}

// NewIntegration создаёт Integration.
func NewIntegration(cfg IntegrationConfig) *Integration {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dispatcher := cfg.Dispatcher
	if dispatcher == nil {
		dispatcher = NewDispatcher(logger)
	}

	store := cfg.Store
	if store == nil {
		store = NoopStore{}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	finalTypes := cfg.FinalJobTypes
	if len(finalTypes) == 0 {
		finalTypes = DefaultFinalJobTypes()
	}
	final := make(map[domain.JobType]struct{}, len(finalTypes))
	for _, t := range finalTypes {
		final[t] = struct{}{}
	}

	return &Integration{
		dispatcher: dispatcher,
		store:      store,
		steps:      lifecycle.NewStepLifecycle(lifecycle.Clock(clock)),
		final:      final,
		now:        clock,
		logger:     logger,
	}
}

// IsFinal сообщает, завершает ли успех job этого типа генерацию.
func (i *Integration) IsFinal(t domain.JobType) bool {
	_, ok := i.final[t]
	return ok
}

// GenerationStatusFor возвращает статус генерации после успеха job.
func (i *Integration) GenerationStatusFor(t domain.JobType) domain.GenerationStatus {
	if i.IsFinal(t) {
		return domain.GenerationStatusGenerated
	}
	return domain.GenerationStatusRunning
}

// HandleJobResult применяет результат попытки к шагу и генерации.
// Сигнатура совпадает с worker.CompletionFunc.
//
// Ошибка хранилища возвращается; события по неудавшемуся обновлению
// не публикуются.
func (i *Integration) HandleJobResult(ctx context.Context, job *domain.Job, result *domain.JobResult) error {
	if job == nil {
		return domain.NewValidationError("job", "required")
	}
	if result == nil {
		return domain.NewValidationError("result", "required")
	}

	logger := telemetry.WithJob(i.logger, job)

	if job.StepID != nil {
		applied, err := i.handleStep(ctx, logger, job, *job.StepID, result)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
	}

	if !result.Success {
		return nil
	}

	status := i.GenerationStatusFor(job.Type)
	fields := GenerationFields{
		Status:    status,
		UpdatedAt: i.now(),
	}
	if status == domain.GenerationStatusGenerated {
		fields.Result = result.Output
	}

	if err := i.store.UpdateGeneration(ctx, job.GenerationID, fields); err != nil {
		return fmt.Errorf("update generation %s: %w", job.GenerationID, err)
	}

	i.dispatcher.Publish(ctx, GenerationUpdated{
		GenerationID: job.GenerationID,
		Status:       status,
		OccurredAt:   fields.UpdatedAt,
	})

	logger.Debug("generation updated", "status", status)
	return nil
}

// handleStep обновляет шаг и публикует StepUpdated.
// applied=false — шаг уже завершён, результат не применён.
func (i *Integration) handleStep(ctx context.Context, logger *slog.Logger, job *domain.Job, stepID uuid.UUID, result *domain.JobResult) (bool, error) {
	fields, ok, err := i.stepFields(ctx, logger, stepID, result)
	if err != nil {
		return false, fmt.Errorf("step %s: %w", stepID, err)
	}
	if !ok {
		return false, nil
	}

	err = i.store.UpdateStep(ctx, stepID, fields)
	switch {
	case errors.Is(err, lifecycle.ErrAlreadyFinished):
		// другой результат успел завершить шаг после чтения
		logger.Warn("step finished concurrently, update skipped", "error", err)
		return false, nil
	case err != nil:
		return false, fmt.Errorf("update step %s: %w", stepID, err)
	}

	i.dispatcher.Publish(ctx, StepUpdated{
		StepID:       stepID,
		GenerationID: job.GenerationID,
		Status:       fields.Status,
		Progress:     fields.Progress,
		OccurredAt:   i.now(),
	})

	logger.Debug("step updated", "status", fields.Status)
	return true, nil
}

// stepFields вычисляет новое состояние шага.
// ok=false — шаг уже завершён, обновлять нечего.
func (i *Integration) stepFields(ctx context.Context, logger *slog.Logger, stepID uuid.UUID, result *domain.JobResult) (StepFields, bool, error) {
	step, err := i.store.GetStep(ctx, stepID)
	switch {
	case errors.Is(err, errors.ErrUnsupported):
		return i.directStepFields(result), true, nil
	case err != nil:
		return StepFields{}, false, fmt.Errorf("get step: %w", err)
	}

	if step.IsFinished() {
		logger.Warn("step already finished, update skipped", "status", step.Status)
		return StepFields{}, false, nil
	}

	next, err := i.advanceStep(step, result)
	if err != nil {
		return StepFields{}, false, err
	}

	return StepFields{
		Status:     next.Status,
		Progress:   next.Progress,
		Output:     next.Output,
		Error:      next.Error,
		StartedAt:  next.StartedAt,
		FinishedAt: next.FinishedAt,
	}, true, nil
}

// advanceStep проводит незавершённый шаг через StepLifecycle.
// PENDING сначала стартует, NEED_USER возобновляется.
func (i *Integration) advanceStep(step domain.Step, result *domain.JobResult) (domain.Step, error) {
	var err error
	switch step.Status {
	case domain.StepStatusPending:
		step, err = i.steps.Start(step)
	case domain.StepStatusNeedUser:
		step, err = i.steps.Resume(step)
	}
	if err != nil {
		return step, err
	}

	if result.Success {
		return i.steps.Complete(step, result.Output)
	}

	step, err = i.steps.Fail(step, result.Error)
	if err != nil {
		return step, err
	}
	step.Progress = 0
	return step, nil
}

// directStepFields — состояние шага без чтения из хранилища.
func (i *Integration) directStepFields(result *domain.JobResult) StepFields {
	now := i.now()
	if result.Success {
		return StepFields{
			Status:     domain.StepStatusSucceeded,
			Progress:   100,
			Output:     result.Output,
			FinishedAt: &now,
		}
	}
	return StepFields{
		Status:     domain.StepStatusFailed,
		Progress:   0,
		Error:      result.Error,
		FinishedAt: &now,
	}
}
