// Package lifecycle содержит чистые функции переходов для Generation и Step.
//
// # Обзор
//
// Сущности из пакета domain — неизменяемые значения. Единственный
// допустимый способ поменять их статус — функции этого пакета,
// которые принимают значение и возвращают новое:
//
//   - GenerationStateMachine.Transition — переход по фиксированной таблице
//   - StepLifecycle.Start/Complete/Fail/MarkNeedUser/Skip/Resume — операции над шагом
//   - CalculateInputHash — стабильный хэш входных данных шага
//
// # Таблица переходов Generation
//
//	DRAFT        → RUNNING, CANCELED
//	RUNNING      → WAITING_USER, GENERATED, FAILED, CANCELED
//	WAITING_USER → RUNNING, FAILED, CANCELED
//	GENERATED    → EXPORTED, CANCELED
//	EXPORTED     → CANCELED
//	FAILED       → RUNNING, CANCELED
//	CANCELED     → (нет)
//
// Переход в тот же статус разрешён всегда и обновляет только updated_at.
//
// # Временные метки
//
// Время берётся из Clock, переданного в конструктор (nil — системное UTC).
// Это позволяет тестам проверять метки без sleep.
//
// # Ошибки
//
// Нарушения контракта возвращаются как значения:
//
//   - *InvalidTransitionError (errors.Is(err, ErrInvalidTransition))
//   - *AlreadyFinishedError (errors.Is(err, ErrAlreadyFinished))
//
// Это ошибки вызывающего кода, их не ретраят.
package lifecycle
