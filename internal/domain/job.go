package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType — тег, по которому воркер решает, может ли он выполнить job.
type JobType string

// Известные типы jobs.
const (
	// JobTypeStructureText — разбор исходного текста в структуру (разделы, пункты).
	JobTypeStructureText JobType = "structure_text"

	// JobTypeSolveTasks — решение задач из входного материала.
	JobTypeSolveTasks JobType = "solve_tasks"

	// JobTypeRefineText — финальная редактура текста.
	JobTypeRefineText JobType = "refine_text"

	// JobTypeFixFormat — нормализация форматирования готового текста.
	JobTypeFixFormat JobType = "fix_format"
)

// KnownJobTypes возвращает все известные типы jobs в порядке pipeline.
func KnownJobTypes() []JobType {
	return []JobType{
		JobTypeStructureText,
		JobTypeSolveTasks,
		JobTypeRefineText,
		JobTypeFixFormat,
	}
}

// IsKnown проверяет, что тип job известен.
func (t JobType) IsKnown() bool {
	switch t {
	case JobTypeStructureText, JobTypeSolveTasks, JobTypeRefineText, JobTypeFixFormat:
		return true
	default:
		return false
	}
}

// DefaultMaxRetries — лимит повторов, если продюсер его не задал.
const DefaultMaxRetries = 3

// Job — единица асинхронной работы в pipeline генерации.
//
// Job создаётся продюсером и передаётся через внешний транспорт.
// Ядро не сохраняет job: меняет только статус и временные метки
// (это делает worker.Runner), остальное — забота вызывающего кода.
type Job struct {
	// ID — уникальный идентификатор job.
	ID uuid.UUID `json:"id"`

	// Type — тип job, по нему выбирается воркер.
	Type JobType `json:"type"`

	// GenerationID — генерация, к которой относится job.
	GenerationID uuid.UUID `json:"generation_id"`

	// StepID — шаг генерации (опционально).
	StepID *uuid.UUID `json:"step_id,omitempty"`

	// Payload — входные данные для воркера (JSON-объект).
	Payload map[string]any `json:"payload,omitempty"`

	// Status — текущий статус job.
	Status JobStatus `json:"status"`

	// Retries — сколько повторов уже было.
	Retries int `json:"retries"`

	// MaxRetries — максимально допустимое число повторов.
	MaxRetries int `json:"max_retries"`

	// CreatedAt — время создания job продюсером.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt — время первого запуска. Не сбрасывается при повторах.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения последней попытки.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewJob создаёт job в статусе PENDING и проверяет контракт.
//
// maxRetries < 0 считается ошибкой; 0 означает «без повторов».
func NewJob(jobType JobType, generationID uuid.UUID, stepID *uuid.UUID, payload map[string]any, maxRetries int) (*Job, error) {
	if payload == nil {
		payload = make(map[string]any)
	}

	job := &Job{
		ID:           uuid.New(),
		Type:         jobType,
		GenerationID: generationID,
		StepID:       stepID,
		Payload:      payload,
		Status:       JobStatusPending,
		MaxRetries:   maxRetries,
		CreatedAt:    time.Now().UTC(),
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// Validate проверяет инварианты job.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return newValidationError("id", "must not be empty")
	}
	if !j.Type.IsKnown() {
		return newValidationError("type", fmt.Sprintf("unknown job type %q", j.Type))
	}
	if j.GenerationID == uuid.Nil {
		return newValidationError("generation_id", "must not be empty")
	}
	if !j.Status.IsValid() {
		return newValidationError("status", fmt.Sprintf("unknown status %q", j.Status))
	}
	if j.Retries < 0 || j.MaxRetries < 0 {
		return newValidationError("retries", "must not be negative")
	}
	if j.Retries > j.MaxRetries {
		return newValidationError("retries", fmt.Sprintf("retries %d exceed max_retries %d", j.Retries, j.MaxRetries))
	}
	if j.StartedAt != nil && j.FinishedAt != nil && j.FinishedAt.Before(*j.StartedAt) {
		return newValidationError("finished_at", "must not be before started_at")
	}
	return nil
}

// Duration возвращает продолжительность последней попытки.
// Возвращает 0, если job ещё не завершён.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}

// NextAttempt возвращает копию job для повторной доставки:
// retries+1, статус RETRY, payload и StartedAt сохраняются.
//
// Возвращает ошибку валидации, если лимит повторов уже исчерпан.
func (j *Job) NextAttempt() (*Job, error) {
	next := *j
	next.Retries = j.Retries + 1
	next.Status = JobStatusRetry
	next.FinishedAt = nil
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return &next, nil
}
