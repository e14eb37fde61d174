// Package events — доменные события Genflow и их связь с результатами job.
//
// Dispatcher — синхронный publish/subscribe внутри процесса. Создаётся
// в main и передаётся зависимостям; глобального экземпляра нет.
//
// Integration.HandleJobResult подключается к worker.RetryableRunner
// как колбэк завершения и публикует:
//   - StepUpdated — при любом результате job с step_id
//   - GenerationUpdated — только при успехе
//
// Хранилище подключается через Store. NoopStore и StoreFuncs
// без функций дают режим «только события».
package events
