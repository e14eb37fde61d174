package repo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/events"
	"github.com/shaiso/Genflow/internal/lifecycle"
)

// Store — PostgreSQL-реализация events.Store.
//
// Статус генерации меняется только через GenerationStateMachine внутри
// транзакции с блокировкой строки, поэтому конкурентные воркеры не могут
// записать недопустимый переход.
type Store struct {
	pool   *pgxpool.Pool
	sm     *lifecycle.GenerationStateMachine
	steps  *StepRepo
	logger *slog.Logger
}

// NewStore создаёт Store.
func NewStore(pool *pgxpool.Pool, sm *lifecycle.GenerationStateMachine, logger *slog.Logger) *Store {
	if sm == nil {
		sm = lifecycle.NewGenerationStateMachine(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		pool:   pool,
		sm:     sm,
		steps:  NewStepRepo(pool),
		logger: logger,
	}
}

var _ events.Store = (*Store)(nil)

// GetStep реализует events.Store.
func (s *Store) GetStep(ctx context.Context, id uuid.UUID) (domain.Step, error) {
	step, err := s.steps.GetByID(ctx, id)
	if err != nil {
		return domain.Step{}, err
	}
	return *step, nil
}

// GetGeneration возвращает генерацию по ID.
func (s *Store) GetGeneration(ctx context.Context, id uuid.UUID) (*domain.Generation, error) {
	return NewGenerationRepo(s.pool).GetByID(ctx, id)
}

// ListSteps возвращает шаги генерации.
func (s *Store) ListSteps(ctx context.Context, generationID uuid.UUID) ([]domain.Step, error) {
	return s.steps.ListByGeneration(ctx, generationID)
}

// UpdateStep реализует events.Store.
// Финальность проверяется повторно под блокировкой строки.
func (s *Store) UpdateStep(ctx context.Context, id uuid.UUID, fields events.StepFields) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		steps := NewStepRepo(tx)

		step, err := steps.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		next, err := nextStep(*step, fields)
		if err != nil {
			return err
		}
		return steps.Update(ctx, &next)
	})
}

// nextStep проверяет заблокированную строку и строит новое состояние шага.
// Завершённый шаг не перезаписывается: конкурентный результат для того же
// шага получает *lifecycle.AlreadyFinishedError.
func nextStep(step domain.Step, fields events.StepFields) (domain.Step, error) {
	if step.IsFinished() {
		return step, &lifecycle.AlreadyFinishedError{
			StepID:    step.ID,
			Status:    string(step.Status),
			Operation: "update",
		}
	}

	next := applyStepFields(step, fields)
	if err := next.Validate(); err != nil {
		return step, fmt.Errorf("step %s: %w", step.ID, err)
	}
	return next, nil
}

// UpdateGeneration реализует events.Store.
func (s *Store) UpdateGeneration(ctx context.Context, id uuid.UUID, fields events.GenerationFields) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		generations := NewGenerationRepo(tx)

		g, err := generations.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		next, err := s.sm.Transition(*g, fields.Status)
		if err != nil {
			return err
		}
		if fields.Result != nil {
			next.Result = fields.Result
		}

		if err := generations.Update(ctx, &next); err != nil {
			return err
		}

		s.logger.Debug("generation updated",
			"generation_id", id,
			"from", g.Status,
			"to", next.Status,
		)
		return nil
	})
}

// applyStepFields переносит новое состояние на шаг.
// Nil-поля не затирают сохранённые значения.
func applyStepFields(step domain.Step, fields events.StepFields) domain.Step {
	step.Status = fields.Status
	step.Progress = fields.Progress
	if fields.Output != nil {
		step.Output = fields.Output
	}
	if fields.Error != nil {
		step.Error = fields.Error
	}
	if fields.StartedAt != nil {
		step.StartedAt = fields.StartedAt
	}
	if fields.FinishedAt != nil {
		step.FinishedAt = fields.FinishedAt
	}
	if step.Status == domain.StepStatusSucceeded {
		step.Error = nil
	}
	return step
}
