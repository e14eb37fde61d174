package domain

import (
	"time"

	"github.com/google/uuid"
)

// Generation — верхнеуровневая единица работы по генерации контента.
//
// Generation — значение: ядро читает его один раз и возвращает новое
// значение через lifecycle.GenerationStateMachine. Хранение — забота
// вызывающего кода (см. repo.GenerationRepo).
type Generation struct {
	// ID — уникальный идентификатор генерации.
	ID uuid.UUID `json:"id"`

	// UserID — владелец генерации.
	UserID uuid.UUID `json:"user_id"`

	// ModuleType — тип модуля (вид документа), который генерируется.
	ModuleType string `json:"module_type"`

	// Status — текущий статус.
	Status GenerationStatus `json:"status"`

	// Input — входные параметры генерации. Ядро их не интерпретирует.
	Input map[string]any `json:"input,omitempty"`

	// Result — итоговые данные генерации. Ядро их не интерпретирует.
	Result map[string]any `json:"result,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения статуса.
	UpdatedAt time.Time `json:"updated_at"`

	// StartedAt — время первого перехода в RUNNING.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время входа в терминальный статус.
	// Сбрасывается при повторном запуске (FAILED → RUNNING).
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewGeneration создаёт генерацию в статусе DRAFT.
func NewGeneration(userID uuid.UUID, moduleType string, input map[string]any) Generation {
	now := time.Now().UTC()
	return Generation{
		ID:         uuid.New(),
		UserID:     userID,
		ModuleType: moduleType,
		Status:     GenerationStatusDraft,
		Input:      input,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate проверяет инварианты временных меток и статуса.
func (g Generation) Validate() error {
	if !g.Status.IsValid() {
		return newValidationError("status", "unknown generation status "+string(g.Status))
	}
	if g.UpdatedAt.Before(g.CreatedAt) {
		return newValidationError("updated_at", "must not be before created_at")
	}
	if g.StartedAt != nil && g.FinishedAt != nil && g.FinishedAt.Before(*g.StartedAt) {
		return newValidationError("finished_at", "must not be before started_at")
	}
	return nil
}

// IsFinished возвращает true, если генерация в терминальном статусе.
func (g Generation) IsFinished() bool {
	return g.Status.IsTerminal()
}

// Duration возвращает продолжительность генерации.
// Возвращает 0, если генерация ещё не завершена.
func (g Generation) Duration() time.Duration {
	if g.StartedAt == nil || g.FinishedAt == nil {
		return 0
	}
	return g.FinishedAt.Sub(*g.StartedAt)
}
