package lifecycle

import (
	"sort"
	"time"

	"github.com/shaiso/Genflow/internal/domain"
)

// Clock возвращает текущее время.
type Clock func() time.Time

// systemClock — время по умолчанию (UTC).
func systemClock() time.Time {
	return time.Now().UTC()
}

// generationTransitions — таблица допустимых переходов Generation.
// Переход в тот же статус проверяется отдельно.
var generationTransitions = map[domain.GenerationStatus][]domain.GenerationStatus{
	domain.GenerationStatusDraft: {
		domain.GenerationStatusRunning,
		domain.GenerationStatusCanceled,
	},
	domain.GenerationStatusRunning: {
		domain.GenerationStatusWaitingUser,
		domain.GenerationStatusGenerated,
		domain.GenerationStatusFailed,
		domain.GenerationStatusCanceled,
	},
	domain.GenerationStatusWaitingUser: {
		domain.GenerationStatusRunning,
		domain.GenerationStatusFailed,
		domain.GenerationStatusCanceled,
	},
	domain.GenerationStatusGenerated: {
		domain.GenerationStatusExported,
		domain.GenerationStatusCanceled,
	},
	domain.GenerationStatusExported: {
		domain.GenerationStatusCanceled,
	},
	domain.GenerationStatusFailed: {
		domain.GenerationStatusRunning,
		domain.GenerationStatusCanceled,
	},
	domain.GenerationStatusCanceled: {},
}

// GenerationStateMachine — чистая функция переходов Generation.
//
// Не хранит состояние кроме часов, безопасна для конкурентного использования.
type GenerationStateMachine struct {
	now Clock
}

// NewGenerationStateMachine создаёт машину состояний.
// Если clock == nil, используется системное время в UTC.
func NewGenerationStateMachine(clock Clock) *GenerationStateMachine {
	if clock == nil {
		clock = systemClock
	}
	return &GenerationStateMachine{now: clock}
}

// CanTransition проверяет переход по таблице.
// Переход в тот же (известный) статус разрешён всегда.
func (m *GenerationStateMachine) CanTransition(from, to domain.GenerationStatus) bool {
	return CanTransitionGeneration(from, to)
}

// CanTransitionGeneration — то же, что CanTransition, без экземпляра машины.
func CanTransitionGeneration(from, to domain.GenerationStatus) bool {
	allowed, ok := generationTransitions[from]
	if !ok || !to.IsValid() {
		return false
	}
	if from == to {
		return true
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTransitions возвращает отсортированный список статусов,
// в которые можно перейти из from (без перехода в самого себя).
func AllowedTransitions(from domain.GenerationStatus) []domain.GenerationStatus {
	allowed := generationTransitions[from]
	out := make([]domain.GenerationStatus, len(allowed))
	copy(out, allowed)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// GenerationStatuses возвращает все статусы в порядке жизненного цикла.
func GenerationStatuses() []domain.GenerationStatus {
	return []domain.GenerationStatus{
		domain.GenerationStatusDraft,
		domain.GenerationStatusRunning,
		domain.GenerationStatusWaitingUser,
		domain.GenerationStatusGenerated,
		domain.GenerationStatusExported,
		domain.GenerationStatusFailed,
		domain.GenerationStatusCanceled,
	}
}

// Transition возвращает новую Generation в статусе to.
//
// Правила временных меток:
//   - updated_at = now всегда
//   - to == RUNNING: started_at ставится, если не был задан; finished_at сбрасывается (retry)
//   - to терминальный (GENERATED, EXPORTED, FAILED, CANCELED): finished_at = now
//
// Переход в тот же статус меняет только updated_at.
// Входное значение не изменяется.
func (m *GenerationStateMachine) Transition(g domain.Generation, to domain.GenerationStatus) (domain.Generation, error) {
	if !m.CanTransition(g.Status, to) {
		return g, &InvalidTransitionError{
			Entity: "generation",
			ID:     g.ID,
			From:   string(g.Status),
			To:     string(to),
		}
	}

	now := m.now()
	next := g
	next.UpdatedAt = now

	if g.Status == to {
		return next, nil
	}

	next.Status = to

	if to == domain.GenerationStatusRunning {
		if next.StartedAt == nil {
			next.StartedAt = timePtr(now)
		}
		next.FinishedAt = nil
	}

	if to.IsTerminal() {
		next.FinishedAt = timePtr(now)
	}

	return next, nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}
