// Package llm содержит клиентов LLM-провайдеров для TextWorker.
//
// OpenAIGenerator реализует worker.TextGenerator через Chat Completions API.
// Ответ 429 повторяется внутри Generate с экспоненциальной задержкой;
// остальные ошибки уходят в RetryableRunner как ошибки выполнения job.
package llm
