package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Коды ошибок в JobResult.
const (
	// ErrorCodeWorkerNotFound — ни один воркер не взял job этого типа.
	ErrorCodeWorkerNotFound = "worker_not_found"

	// ErrorCodeExecution — воркер вернул ошибку или упал с panic.
	ErrorCodeExecution = "execution_error"

	// ErrorCodeCircuitBreakerOpen — circuit breaker открыт, воркер не вызывался.
	ErrorCodeCircuitBreakerOpen = "circuit_breaker_open"

	// ErrorCodeInvalidJob — транспорт доставил job, не прошедший валидацию.
	ErrorCodeInvalidJob = "invalid_job"
)

// JobError — структурированная ошибка выполнения job.
type JobError struct {
	// Code — машиночитаемый код ошибки.
	Code string `json:"code"`

	// Message — сообщение для диагностики.
	Message string `json:"message"`

	// Details — дополнительный контекст (тип исходной ошибки и т.п.).
	Details map[string]any `json:"details,omitempty"`
}

// Error реализует интерфейс error.
func (e *JobError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// JobResult — результат одной попытки выполнения job.
//
// Ровно одна из пар допустима: Success=true + Output,
// либо Success=false + Error.
type JobResult struct {
	// JobID — job, к которому относится результат.
	JobID uuid.UUID `json:"job_id"`

	// Success — успешна ли попытка.
	Success bool `json:"success"`

	// Output — выходные данные (только при успехе).
	Output map[string]any `json:"output,omitempty"`

	// Error — ошибка (только при неудаче).
	Error *JobError `json:"error,omitempty"`

	// --- Retry (заполняется worker.RetryableRunner при неудаче) ---
	// У неуспешного результата retry, retries и max_retries попадают
	// в JSON всегда, final — только когда true. См. MarshalJSON.

	// Retry — стоит ли транспорту доставить job повторно.
	Retry bool `json:"retry,omitempty"`

	// Retries — номер попытки после этой неудачи (job.retries + 1).
	Retries int `json:"retries,omitempty"`

	// MaxRetries — лимит повторов job.
	MaxRetries int `json:"max_retries,omitempty"`

	// Final — попытки исчерпаны, повторов не будет.
	Final bool `json:"final,omitempty"`
}

// MarshalJSON пишет аннотации повтора у неуспешного результата даже
// при нулевых значениях: транспорт читает "retry": false как «не повторять».
func (r JobResult) MarshalJSON() ([]byte, error) {
	type plain JobResult
	if r.Success {
		return json.Marshal(plain(r))
	}
	return json.Marshal(struct {
		plain
		Retry      bool `json:"retry"`
		Retries    int  `json:"retries"`
		MaxRetries int  `json:"max_retries"`
	}{
		plain:      plain(r),
		Retry:      r.Retry,
		Retries:    r.Retries,
		MaxRetries: r.MaxRetries,
	})
}

// NewSuccessResult создаёт успешный результат.
// nil output заменяется пустым объектом, чтобы сохранить инвариант.
func NewSuccessResult(jobID uuid.UUID, output map[string]any) *JobResult {
	if output == nil {
		output = make(map[string]any)
	}
	return &JobResult{
		JobID:   jobID,
		Success: true,
		Output:  output,
	}
}

// NewFailureResult создаёт неуспешный результат с кодом и сообщением.
func NewFailureResult(jobID uuid.UUID, code, message string) *JobResult {
	return &JobResult{
		JobID:   jobID,
		Success: false,
		Error:   &JobError{Code: code, Message: message},
	}
}

// WithDetails добавляет детали к ошибке результата и возвращает его же.
func (r *JobResult) WithDetails(details map[string]any) *JobResult {
	if r.Error != nil {
		r.Error.Details = details
	}
	return r
}

// Validate проверяет взаимоисключающие пары success/output и failure/error.
func (r *JobResult) Validate() error {
	if r.JobID == uuid.Nil {
		return newValidationError("job_id", "must not be empty")
	}
	if r.Success {
		if r.Output == nil {
			return newValidationError("output", "required when success is true")
		}
		if r.Error != nil {
			return newValidationError("error", "must be empty when success is true")
		}
		return nil
	}
	if r.Error == nil {
		return newValidationError("error", "required when success is false")
	}
	if r.Error.Code == "" {
		return newValidationError("error.code", "must not be empty")
	}
	if r.Output != nil {
		return newValidationError("output", "must be empty when success is false")
	}
	return nil
}

// ErrorCode возвращает код ошибки или пустую строку для успешного результата.
func (r *JobResult) ErrorCode() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Code
}
