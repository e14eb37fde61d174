package lifecycle

import (
	"time"

	"github.com/shaiso/Genflow/internal/domain"
)

// StepLifecycle — явные операции над шагом.
//
// Каждая операция — функция Step → Step. Сначала проверяется
// финальность (AlreadyFinishedError, какая бы операция ни вызывалась),
// затем допустимость исходного статуса (InvalidTransitionError).
type StepLifecycle struct {
	now Clock
}

// NewStepLifecycle создаёт StepLifecycle.
// Если clock == nil, используется системное время в UTC.
func NewStepLifecycle(clock Clock) *StepLifecycle {
	if clock == nil {
		clock = systemClock
	}
	return &StepLifecycle{now: clock}
}

// Start переводит шаг PENDING → RUNNING и ставит started_at.
func (l *StepLifecycle) Start(s domain.Step) (domain.Step, error) {
	if err := l.check(s, "start", domain.StepStatusRunning, domain.StepStatusPending); err != nil {
		return s, err
	}

	next := s
	next.Status = domain.StepStatusRunning
	next.StartedAt = timePtr(l.now())
	return next, nil
}

// Complete переводит шаг RUNNING → SUCCEEDED, сохраняет output,
// ставит finished_at и progress=100.
func (l *StepLifecycle) Complete(s domain.Step, output map[string]any) (domain.Step, error) {
	if err := l.check(s, "complete", domain.StepStatusSucceeded, domain.StepStatusRunning); err != nil {
		return s, err
	}
	if output == nil {
		output = make(map[string]any)
	}

	next := s
	next.Status = domain.StepStatusSucceeded
	next.Output = output
	next.Error = nil
	next.Progress = 100
	next.FinishedAt = l.finishedAt(s)
	return next, nil
}

// Fail переводит шаг RUNNING → FAILED, сохраняет ошибку и ставит finished_at.
// jobErr обязателен: FAILED без ошибки нарушает инвариант шага.
func (l *StepLifecycle) Fail(s domain.Step, jobErr *domain.JobError) (domain.Step, error) {
	if err := l.check(s, "fail", domain.StepStatusFailed, domain.StepStatusRunning); err != nil {
		return s, err
	}
	if jobErr == nil {
		return s, domain.NewValidationError("error", "required to fail a step")
	}

	next := s
	next.Status = domain.StepStatusFailed
	next.Error = jobErr
	next.FinishedAt = l.finishedAt(s)
	return next, nil
}

// MarkNeedUser переводит шаг RUNNING → NEED_USER.
// Пустой reason не сохраняется.
func (l *StepLifecycle) MarkNeedUser(s domain.Step, reason string) (domain.Step, error) {
	if err := l.check(s, "mark need user", domain.StepStatusNeedUser, domain.StepStatusRunning); err != nil {
		return s, err
	}

	next := s
	next.Status = domain.StepStatusNeedUser
	if reason != "" {
		next.Reason = reason
	}
	return next, nil
}

// Resume возвращает шаг NEED_USER → RUNNING после ответа пользователя.
// started_at сохраняется.
func (l *StepLifecycle) Resume(s domain.Step) (domain.Step, error) {
	if err := l.check(s, "resume", domain.StepStatusRunning, domain.StepStatusNeedUser); err != nil {
		return s, err
	}

	next := s
	next.Status = domain.StepStatusRunning
	next.Reason = ""
	if next.StartedAt == nil {
		next.StartedAt = timePtr(l.now())
	}
	return next, nil
}

// Skip переводит шаг PENDING | RUNNING → SKIPPED и ставит finished_at.
func (l *StepLifecycle) Skip(s domain.Step, reason string) (domain.Step, error) {
	if err := l.check(s, "skip", domain.StepStatusSkipped, domain.StepStatusPending, domain.StepStatusRunning); err != nil {
		return s, err
	}

	next := s
	next.Status = domain.StepStatusSkipped
	if reason != "" {
		next.Reason = reason
	}
	next.FinishedAt = l.finishedAt(s)
	return next, nil
}

// check проверяет финальность, затем допустимость исходного статуса.
func (l *StepLifecycle) check(s domain.Step, op string, to domain.StepStatus, from ...domain.StepStatus) error {
	if s.Status.IsTerminal() {
		return &AlreadyFinishedError{
			StepID:    s.ID,
			Status:    string(s.Status),
			Operation: op,
		}
	}
	for _, st := range from {
		if s.Status == st {
			return nil
		}
	}
	return &InvalidTransitionError{
		Entity: "step",
		ID:     s.ID,
		From:   string(s.Status),
		To:     string(to),
	}
}

// finishedAt возвращает now, но не раньше started_at
// (часы могут отличаться у разных процессов).
func (l *StepLifecycle) finishedAt(s domain.Step) *time.Time {
	now := l.now()
	if s.StartedAt != nil && now.Before(*s.StartedAt) {
		now = *s.StartedAt
	}
	return timePtr(now)
}
