// Package jobqueue связывает транспорт RabbitMQ с ядром выполнения job.
//
// Service потребляет jobs.ready, вызывает worker.RetryableRunner и
// по аннотациям результата решает, что делать с сообщением дальше:
// повтор с задержкой через jobs.retry, dlq.jobs или ничего. Сам
// RetryableRunner ничего не ставит в очередь.
package jobqueue
