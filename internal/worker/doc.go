// Package worker выполняет job генерации.
//
// # Обзор
//
// Пакет — ядро асинхронного выполнения: получает Job от транспорта,
// находит воркер, который может его выполнить, и возвращает JobResult.
// Собственного пула горутин нет: конкурентность задаёт вызывающий код
// (consumer RabbitMQ с prefetch в jobqueue.Service).
//
// # Ключевые компоненты
//
// ## Worker и Registry
//
//	type Worker interface {
//	    CanHandle(job *domain.Job) bool
//	    Execute(ctx context.Context, job *domain.Job) (*domain.JobResult, error)
//	}
//
// Registry хранит воркеры в порядке регистрации и отдаёт первый,
// чей CanHandle вернул true. Регистрируйте указатели: повторная
// регистрация того же экземпляра игнорируется.
//
// Реализации:
//   - TextWorker — structure_text, solve_tasks, refine_text через TextGenerator
//   - FormatFixWorker — fix_format, детерминированная нормализация текста
//
// ## Runner
//
// Одна попытка: RUNNING + started_at, Resolve, Execute. Ошибки
// и panic превращаются в failed JobResult:
//   - worker_not_found — ни один воркер не взял job
//   - execution_error — Execute вернул error, упал или нарушил контракт результата
//
// details.error_type хранит Go-тип исходной ошибки.
//
// ## RetryableRunner
//
// Единая точка входа для транспорта:
//
//	rr := worker.NewRetryableRunner(worker.RetryableConfig{
//	    Runner:     worker.NewRunner(worker.RunnerConfig{Registry: registry}),
//	    Breaker:    worker.NewCircuitBreaker(5, time.Minute),
//	    OnComplete: integration.HandleJobResult,
//	})
//	result := rr.Run(ctx, job)
//
// При неудаче результат аннотируется полями retry, retries
// (job.retries + 1), max_retries и final. Повторную доставку делает
// транспорт, RetryableRunner ничего не ставит в очередь.
//
// ## CircuitBreaker
//
// Скользящее окно неудач: открывается при failure_threshold неудачах
// за window, закрывается сам, когда окно неудач пустеет.
//
// # Retry
//
// RetryPolicy.ShouldRetry = job.retries < job.max_retries.
// RetryPolicy.Delay — подсказка для задержки повторной доставки:
//   - "exponential": delay = initialDelay * 2^(attempt-1), capped at maxDelay
//   - "fixed": delay = initialDelay
package worker
