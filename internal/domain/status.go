package domain

// JobStatus — статус выполнения job.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	                  ↘ RETRY → RUNNING (повторная доставка транспортом)
type JobStatus string

const (
	// JobStatusPending — job создан продюсером, ещё не выполнялся.
	JobStatusPending JobStatus = "PENDING"

	// JobStatusRunning — job выполняется воркером.
	JobStatusRunning JobStatus = "RUNNING"

	// JobStatusSucceeded — job успешно выполнен.
	JobStatusSucceeded JobStatus = "SUCCEEDED"

	// JobStatusFailed — job завершился ошибкой, попытки исчерпаны.
	JobStatusFailed JobStatus = "FAILED"

	// JobStatusRetry — попытка упала, транспорт доставит job повторно.
	JobStatusRetry JobStatus = "RETRY"
)

// IsValid проверяет, что статус входит в известный набор.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusSucceeded, JobStatusFailed, JobStatusRetry:
		return true
	default:
		return false
	}
}

// GenerationStatus — статус генерации.
//
// Жизненный цикл (полная таблица — lifecycle.GenerationStateMachine):
//
//	DRAFT → RUNNING ⇄ WAITING_USER
//	        RUNNING → GENERATED → EXPORTED
//	        RUNNING → FAILED → RUNNING (retry)
//	(любой, кроме CANCELED) → CANCELED
type GenerationStatus string

const (
	GenerationStatusDraft       GenerationStatus = "DRAFT"
	GenerationStatusRunning     GenerationStatus = "RUNNING"
	GenerationStatusWaitingUser GenerationStatus = "WAITING_USER"
	GenerationStatusGenerated   GenerationStatus = "GENERATED"
	GenerationStatusExported    GenerationStatus = "EXPORTED"
	GenerationStatusFailed      GenerationStatus = "FAILED"
	GenerationStatusCanceled    GenerationStatus = "CANCELED"
)

// IsTerminal возвращает true для статусов, при входе в которые
// проставляется finished_at.
//
// FAILED и GENERATED всё ещё допускают переходы (retry, export),
// поэтому «терминальный» здесь означает «работа завершена», а не «заморожен».
func (s GenerationStatus) IsTerminal() bool {
	switch s {
	case GenerationStatusGenerated, GenerationStatusExported,
		GenerationStatusFailed, GenerationStatusCanceled:
		return true
	default:
		return false
	}
}

// IsValid проверяет, что статус входит в известный набор.
func (s GenerationStatus) IsValid() bool {
	switch s {
	case GenerationStatusDraft, GenerationStatusRunning, GenerationStatusWaitingUser,
		GenerationStatusGenerated, GenerationStatusExported,
		GenerationStatusFailed, GenerationStatusCanceled:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление GenerationStatus.
func (s GenerationStatus) String() string {
	return string(s)
}

// ParseGenerationStatus парсит строку в GenerationStatus.
// Возвращает false, если строка не является известным статусом.
func ParseGenerationStatus(s string) (GenerationStatus, bool) {
	status := GenerationStatus(s)
	return status, status.IsValid()
}

// StepStatus — статус шага генерации.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	                  ↘ NEED_USER
//	PENDING | RUNNING → SKIPPED
type StepStatus string

const (
	StepStatusPending   StepStatus = "PENDING"
	StepStatusRunning   StepStatus = "RUNNING"
	StepStatusNeedUser  StepStatus = "NEED_USER"
	StepStatusSucceeded StepStatus = "SUCCEEDED"
	StepStatusFailed    StepStatus = "FAILED"
	StepStatusSkipped   StepStatus = "SKIPPED"
)

// IsTerminal возвращает true, если шаг завершён и больше не может меняться.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusSucceeded, StepStatusFailed, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// IsValid проверяет, что статус входит в известный набор.
func (s StepStatus) IsValid() bool {
	switch s {
	case StepStatusPending, StepStatusRunning, StepStatusNeedUser,
		StepStatusSucceeded, StepStatusFailed, StepStatusSkipped:
		return true
	default:
		return false
	}
}
