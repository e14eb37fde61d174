package lifecycle

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Ошибки жизненного цикла.
var (
	// ErrInvalidTransition — переход между статусами запрещён.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrAlreadyFinished — шаг уже в финальном статусе и не может меняться.
	ErrAlreadyFinished = errors.New("step already finished")
)

// InvalidTransitionError — запрещённый переход с контекстом.
type InvalidTransitionError struct {
	Entity string // "generation" или "step"
	ID     uuid.UUID
	From   string
	To     string
}

// Error реализует интерфейс error.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %s: invalid transition %s -> %s", e.Entity, e.ID, e.From, e.To)
}

// Unwrap возвращает ErrInvalidTransition.
func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// AlreadyFinishedError — операция над завершённым шагом.
type AlreadyFinishedError struct {
	StepID    uuid.UUID
	Status    string
	Operation string
}

// Error реализует интерфейс error.
func (e *AlreadyFinishedError) Error() string {
	return fmt.Sprintf("step %s: cannot %s, already finished with status %s", e.StepID, e.Operation, e.Status)
}

// Unwrap возвращает ErrAlreadyFinished.
func (e *AlreadyFinishedError) Unwrap() error {
	return ErrAlreadyFinished
}
