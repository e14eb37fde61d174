package worker

import (
	"errors"
	"fmt"

	"github.com/shaiso/Genflow/internal/domain"
)

// Ошибки воркера.
var (
	// ErrWorkerNotFound — ни один зарегистрированный воркер не взял job.
	ErrWorkerNotFound = errors.New("worker not found")

	// ErrEmptyInput — в payload нет текста для обработки.
	ErrEmptyInput = errors.New("empty input")

	// ErrEmptyCompletion — генератор вернул пустой ответ.
	ErrEmptyCompletion = errors.New("empty completion")

	// ErrInvalidResult — воркер вернул результат, нарушающий контракт JobResult.
	ErrInvalidResult = errors.New("invalid worker result")
)

// WorkerNotFoundError — ошибка разрешения воркера для типа job.
type WorkerNotFoundError struct {
	JobType domain.JobType
}

func (e *WorkerNotFoundError) Error() string {
	return fmt.Sprintf("no worker registered for job type %q", e.JobType)
}

func (e *WorkerNotFoundError) Unwrap() error {
	return ErrWorkerNotFound
}
