package domain

import (
	"time"

	"github.com/google/uuid"
)

// Step — шаг генерации со своим жизненным циклом.
//
// Меняется только через lifecycle.StepLifecycle. После входа в
// SUCCEEDED/FAILED/SKIPPED шаг неизменяем.
type Step struct {
	// ID — уникальный идентификатор шага.
	ID uuid.UUID `json:"id"`

	// GenerationID — родительская генерация.
	GenerationID uuid.UUID `json:"generation_id"`

	// Type — тип шага (обычно совпадает с JobType, который его выполняет).
	Type string `json:"type"`

	// Status — текущий статус шага.
	Status StepStatus `json:"status"`

	// Progress — прогресс в процентах (0–100).
	Progress int `json:"progress"`

	// InputHash — хэш входных данных для дедупликации повторных запусков.
	// См. lifecycle.CalculateInputHash.
	InputHash string `json:"input_hash,omitempty"`

	// Output — результат шага. Обязателен для SUCCEEDED.
	Output map[string]any `json:"output,omitempty"`

	// Error — ошибка шага. Обязательна для FAILED.
	Error *JobError `json:"error,omitempty"`

	// Reason — причина для NEED_USER или SKIPPED.
	Reason string `json:"reason,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewStep создаёт шаг в статусе PENDING.
func NewStep(generationID uuid.UUID, stepType, inputHash string) Step {
	return Step{
		ID:           uuid.New(),
		GenerationID: generationID,
		Type:         stepType,
		Status:       StepStatusPending,
		InputHash:    inputHash,
	}
}

// IsFinished возвращает true, если шаг в финальном статусе.
func (s Step) IsFinished() bool {
	return s.Status.IsTerminal()
}

// Validate проверяет инварианты шага.
func (s Step) Validate() error {
	if !s.Status.IsValid() {
		return newValidationError("status", "unknown step status "+string(s.Status))
	}
	if s.Progress < 0 || s.Progress > 100 {
		return newValidationError("progress", "must be within 0..100")
	}
	if s.Status == StepStatusSucceeded && s.Output == nil {
		return newValidationError("output", "required for SUCCEEDED step")
	}
	if s.Status == StepStatusFailed && s.Error == nil {
		return newValidationError("error", "required for FAILED step")
	}
	if s.StartedAt != nil && s.FinishedAt != nil && s.FinishedAt.Before(*s.StartedAt) {
		return newValidationError("finished_at", "must not be before started_at")
	}
	return nil
}
