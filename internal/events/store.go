package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Genflow/internal/domain"
)

// GenerationFields — изменения генерации, которые просит применить Integration.
type GenerationFields struct {
	Status    domain.GenerationStatus `json:"status"`
	Result    map[string]any          `json:"result,omitempty"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// StepFields — новое состояние шага.
type StepFields struct {
	Status     domain.StepStatus `json:"status"`
	Progress   int               `json:"progress"`
	Output     map[string]any    `json:"output,omitempty"`
	Error      *domain.JobError  `json:"error,omitempty"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// Store — хранилище генераций и шагов со стороны хост-приложения.
//
// GetStep возвращает errors.ErrUnsupported, если хранилище не умеет
// читать шаги: тогда Integration не проверяет жизненный цикл шага.
type Store interface {
	GetStep(ctx context.Context, id uuid.UUID) (domain.Step, error)
	UpdateGeneration(ctx context.Context, id uuid.UUID, fields GenerationFields) error
	UpdateStep(ctx context.Context, id uuid.UUID, fields StepFields) error
}

// NoopStore — режим «только события»: ничего не читает и не пишет.
type NoopStore struct{}

// GetStep реализует Store.
func (NoopStore) GetStep(context.Context, uuid.UUID) (domain.Step, error) {
	return domain.Step{}, errors.ErrUnsupported
}

// UpdateGeneration реализует Store.
func (NoopStore) UpdateGeneration(context.Context, uuid.UUID, GenerationFields) error { return nil }

// UpdateStep реализует Store.
func (NoopStore) UpdateStep(context.Context, uuid.UUID, StepFields) error { return nil }

// StoreFuncs собирает Store из отдельных функций. Любая может быть nil:
// отсутствующее обновление пропускается, отсутствующий GetStep
// возвращает errors.ErrUnsupported.
type StoreFuncs struct {
	GetStepFunc          func(ctx context.Context, id uuid.UUID) (domain.Step, error)
	UpdateGenerationFunc func(ctx context.Context, id uuid.UUID, fields GenerationFields) error
	UpdateStepFunc       func(ctx context.Context, id uuid.UUID, fields StepFields) error
}

// GetStep реализует Store.
func (s StoreFuncs) GetStep(ctx context.Context, id uuid.UUID) (domain.Step, error) {
	if s.GetStepFunc == nil {
		return domain.Step{}, errors.ErrUnsupported
	}
	return s.GetStepFunc(ctx, id)
}

// UpdateGeneration реализует Store.
func (s StoreFuncs) UpdateGeneration(ctx context.Context, id uuid.UUID, fields GenerationFields) error {
	if s.UpdateGenerationFunc == nil {
		return nil
	}
	return s.UpdateGenerationFunc(ctx, id, fields)
}

// UpdateStep реализует Store.
func (s StoreFuncs) UpdateStep(ctx context.Context, id uuid.UUID, fields StepFields) error {
	if s.UpdateStepFunc == nil {
		return nil
	}
	return s.UpdateStepFunc(ctx, id, fields)
}
