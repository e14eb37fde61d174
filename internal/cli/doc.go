// Package cli реализует инструмент командной строки Genflow.
//
// # Обзор
//
// CLI — утилита для разработки и эксплуатации: ставит jobs в очередь,
// выполняет их локально, создаёт генерации и шаги, считает input_hash
// и печатает таблицу переходов статусов.
//
// # Ключевые компоненты
//
// ## Client
//
// Ленивые подключения к PostgreSQL (repo) и RabbitMQ (mq). Команды,
// которым инфраструктура не нужна, её не открывают.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr:
//
//	genflow hash '{"text":"..."}' --json | jq -r .input_hash
//
// ## Commands
//
//   - job: enqueue, run, types
//   - generation: create, show, transition, transitions
//   - step: create
//   - hash
//
// Группы создаются фабричными функциями (NewJobCmd и т.д.), принимающими
// clientFn и outputFn — замыкания для ленивого создания Client и Output
// после парсинга PersistentFlags.
package cli
