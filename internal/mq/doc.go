// Package mq предоставляет транспорт Genflow поверх RabbitMQ.
//
// Структура:
//   - connection.go — соединение с reconnect и уведомлением consumer'ов
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация job, результатов, событий и DLQ
//   - consumer.go   — потребление с prefetch и пулом обработчиков
//
// Типы сообщений:
//   - job.ready     — job готов к выполнению
//   - job.result    — результат попытки
//   - job.dead      — job с исчерпанными повторами
//   - domain.event  — GenerationUpdated / StepUpdated
//
// Exchanges:
//   - genflow.jobs    — jobs.ready, jobs.retry, jobs.results
//   - genflow.events  — доменные события (topic по имени события)
//   - genflow.dlq     — dead letter queue
//
// Повтор с задержкой: job публикуется в jobs.retry с TTL, после
// истечения RabbitMQ перекладывает его в jobs.ready.
package mq
