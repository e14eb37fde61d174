package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Genflow/internal/domain"
)

// Generation DTOs

// GenerationResponse — генерация вместе с шагами.
type GenerationResponse struct {
	ID         uuid.UUID      `json:"id"`
	UserID     uuid.UUID      `json:"user_id"`
	ModuleType string         `json:"module_type"`
	Status     string         `json:"status"`
	Result     map[string]any `json:"result,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Steps      []StepResponse `json:"steps"`
}

// StepResponse — шаг генерации.
type StepResponse struct {
	ID         uuid.UUID        `json:"id"`
	Type       string           `json:"type"`
	Status     string           `json:"status"`
	Progress   int              `json:"progress"`
	InputHash  string           `json:"input_hash,omitempty"`
	Output     map[string]any   `json:"output,omitempty"`
	Error      *domain.JobError `json:"error,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

// GenerationFromDomain конвертирует domain.Generation и шаги в GenerationResponse.
func GenerationFromDomain(g domain.Generation, steps []domain.Step) GenerationResponse {
	resp := GenerationResponse{
		ID:         g.ID,
		UserID:     g.UserID,
		ModuleType: g.ModuleType,
		Status:     string(g.Status),
		Result:     g.Result,
		CreatedAt:  g.CreatedAt,
		UpdatedAt:  g.UpdatedAt,
		StartedAt:  g.StartedAt,
		FinishedAt: g.FinishedAt,
		Steps:      make([]StepResponse, len(steps)),
	}
	for i, s := range steps {
		resp.Steps[i] = StepFromDomain(s)
	}
	return resp
}

// StepFromDomain конвертирует domain.Step в StepResponse.
func StepFromDomain(s domain.Step) StepResponse {
	return StepResponse{
		ID:         s.ID,
		Type:       s.Type,
		Status:     string(s.Status),
		Progress:   s.Progress,
		InputHash:  s.InputHash,
		Output:     s.Output,
		Error:      s.Error,
		Reason:     s.Reason,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
}

// TransitionRequest — запрос на смену статуса генерации.
type TransitionRequest struct {
	Status string `json:"status"`
}

// Job DTOs

// EnqueueJobRequest — запрос на постановку job в очередь.
type EnqueueJobRequest struct {
	Type         string         `json:"type"`
	GenerationID uuid.UUID      `json:"generation_id"`
	StepID       *uuid.UUID     `json:"step_id,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	MaxRetries   *int           `json:"max_retries,omitempty"`
}

// JobResponse — поставленный в очередь job.
type JobResponse struct {
	ID           uuid.UUID  `json:"id"`
	Type         string     `json:"type"`
	GenerationID uuid.UUID  `json:"generation_id"`
	StepID       *uuid.UUID `json:"step_id,omitempty"`
	MaxRetries   int        `json:"max_retries"`
	CreatedAt    time.Time  `json:"created_at"`
}

// JobFromDomain конвертирует domain.Job в JobResponse.
func JobFromDomain(j *domain.Job) JobResponse {
	return JobResponse{
		ID:           j.ID,
		Type:         string(j.Type),
		GenerationID: j.GenerationID,
		StepID:       j.StepID,
		MaxRetries:   j.MaxRetries,
		CreatedAt:    j.CreatedAt,
	}
}

// HashResponse — input_hash payload.
type HashResponse struct {
	InputHash string `json:"input_hash"`
}
