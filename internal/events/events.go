package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Genflow/internal/domain"
)

// Имена событий (routing key при публикации в RabbitMQ).
const (
	NameGenerationUpdated = "generation.updated"
	NameStepUpdated       = "step.updated"
)

// Event — доменное событие.
type Event interface {
	// EventName возвращает имя события.
	EventName() string
}

// GenerationUpdated — статус генерации изменился.
type GenerationUpdated struct {
	GenerationID uuid.UUID               `json:"generation_id"`
	Status       domain.GenerationStatus `json:"status"`
	OccurredAt   time.Time               `json:"occurred_at"`
}

// EventName реализует Event.
func (GenerationUpdated) EventName() string { return NameGenerationUpdated }

// StepUpdated — статус или прогресс шага изменился.
type StepUpdated struct {
	StepID       uuid.UUID         `json:"step_id"`
	GenerationID uuid.UUID         `json:"generation_id"`
	Status       domain.StepStatus `json:"status"`
	Progress     int               `json:"progress"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

// EventName реализует Event.
func (StepUpdated) EventName() string { return NameStepUpdated }
