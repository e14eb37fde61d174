// Package api содержит служебный HTTP API genflow-worker.
//
// Структура:
//   - handler.go            — Handler с DI (хранилище, publisher, logger)
//   - routes.go             — регистрация маршрутов
//   - middleware.go         — middleware (logging, recovery)
//   - response.go           — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                — Data Transfer Objects (request/response)
//   - generation_handler.go — /generations, /transitions
//   - job_handler.go        — /jobs, /hash
//
// API позволяет посмотреть генерацию с шагами, сменить её статус через
// машину состояний и поставить job в очередь без CLI.
package api
