package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/telemetry"
)

// TextGenerator — источник текста для TextWorker (LLM-провайдер).
// Реализация: llm.OpenAIGenerator.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Шаблоны промптов по типу job. Первый %s — дополнительные указания
// (может быть пустым), второй — исходный текст.
var textPrompts = map[domain.JobType]string{
	domain.JobTypeStructureText: "Structure the following text into a clear outline with headings and short sections. Keep the original language.\n%s\nText:\n%s",
	domain.JobTypeSolveTasks:    "Solve each of the following tasks. Show the reasoning briefly and give a final answer for every task.\n%s\nTasks:\n%s",
	domain.JobTypeRefineText:    "Refine the following text: fix grammar, improve clarity and flow, keep the meaning and the language.\n%s\nText:\n%s",
}

// TextWorker — воркер для structure_text, solve_tasks и refine_text.
//
// Config (из job.Payload):
//   - text (string): исходный текст (обязательно; для solve_tasks можно tasks)
//   - tasks ([]string): список задач для solve_tasks
//   - instructions (string): дополнительные указания
//   - timeout_sec (number): таймаут вызова генератора
//
// Output:
//   - text (string): сгенерированный текст
//   - type (string): тип job
type TextWorker struct {
	gen     TextGenerator
	timeout time.Duration
}

// NewTextWorker создаёт TextWorker. timeout <= 0 — без таймаута
// (кроме timeout_sec из payload).
func NewTextWorker(gen TextGenerator, timeout time.Duration) *TextWorker {
	return &TextWorker{gen: gen, timeout: timeout}
}

// CanHandle возвращает true для текстовых типов job.
func (w *TextWorker) CanHandle(job *domain.Job) bool {
	_, ok := textPrompts[job.Type]
	return ok
}

// Execute строит промпт и вызывает генератор.
func (w *TextWorker) Execute(ctx context.Context, job *domain.Job) (*domain.JobResult, error) {
	template, ok := textPrompts[job.Type]
	if !ok {
		return nil, &WorkerNotFoundError{JobType: job.Type}
	}

	input := textInput(job)
	if input == "" {
		return nil, fmt.Errorf("%w: payload.text is required for %s", ErrEmptyInput, job.Type)
	}

	instructions := getString(job.Payload, "instructions", "")
	if instructions != "" {
		instructions = "Additional instructions: " + instructions + "\n"
	}

	if timeout := getTimeout(job.Payload, w.timeout); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	telemetry.FromContext(ctx).Debug("generating text", "type", job.Type, "input_len", len(input))

	text, err := w.gen.Generate(ctx, fmt.Sprintf(template, instructions, input))
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", job.Type, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("generate %s: %w", job.Type, ErrEmptyCompletion)
	}

	return domain.NewSuccessResult(job.ID, map[string]any{
		"text": text,
		"type": string(job.Type),
	}), nil
}

// textInput извлекает текст из payload. Для solve_tasks
// список tasks превращается в нумерованный список.
func textInput(job *domain.Job) string {
	if text := strings.TrimSpace(getString(job.Payload, "text", "")); text != "" {
		return text
	}
	if job.Type != domain.JobTypeSolveTasks {
		return ""
	}

	var tasks []string
	switch v := job.Payload["tasks"].(type) {
	case []string:
		tasks = v
	case []any:
		for _, t := range v {
			if s, ok := t.(string); ok {
				tasks = append(tasks, s)
			}
		}
	}

	var b strings.Builder
	n := 0
	for _, t := range tasks {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. %s\n", n, t)
	}
	return strings.TrimSpace(b.String())
}

// getString извлекает строку из payload.
func getString(m map[string]any, key, defaultVal string) string {
	if val, ok := m[key]; ok {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return defaultVal
}

// getTimeout извлекает timeout_sec из payload.
func getTimeout(payload map[string]any, defaultVal time.Duration) time.Duration {
	if val, ok := payload["timeout_sec"]; ok {
		switch v := val.(type) {
		case float64:
			if v > 0 {
				return time.Duration(v * float64(time.Second))
			}
		case int:
			if v > 0 {
				return time.Duration(v) * time.Second
			}
		}
	}
	return defaultVal
}
