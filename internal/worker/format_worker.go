package worker

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shaiso/Genflow/internal/domain"
)

var (
	multiSpace       = regexp.MustCompile(`[ \t]{2,}`)
	spaceBeforePunct = regexp.MustCompile(`[ \t]+([,.;:!?])`)
	manyBlankLines   = regexp.MustCompile(`\n{3,}`)
)

// FormatFixWorker — детерминированная нормализация форматирования (fix_format).
//
// Не вызывает внешних сервисов:
//   - CRLF/CR → LF
//   - пробелы в конце строк удаляются
//   - повторяющиеся пробелы внутри строки схлопываются (отступы сохраняются)
//   - пробелы перед знаками препинания удаляются
//   - не больше одной пустой строки подряд, ровно один перевод строки в конце
//
// Config (из job.Payload):
//   - text (string): исходный текст (обязательно)
//
// Output:
//   - text (string): исправленный текст
//   - changed (bool): отличается ли результат от входа
type FormatFixWorker struct{}

// CanHandle возвращает true для fix_format.
func (w *FormatFixWorker) CanHandle(job *domain.Job) bool {
	return job.Type == domain.JobTypeFixFormat
}

// Execute нормализует текст.
func (w *FormatFixWorker) Execute(_ context.Context, job *domain.Job) (*domain.JobResult, error) {
	text := getString(job.Payload, "text", "")
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: payload.text is required for %s", ErrEmptyInput, job.Type)
	}

	fixed := FixFormat(text)

	return domain.NewSuccessResult(job.ID, map[string]any{
		"text":    fixed,
		"changed": fixed != text,
	}), nil
}

// FixFormat применяет правила FormatFixWorker к тексту.
func FixFormat(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, " \t")
		body := strings.TrimLeft(line, " \t")
		indent := line[:len(line)-len(body)]
		body = multiSpace.ReplaceAllString(body, " ")
		body = spaceBeforePunct.ReplaceAllString(body, "$1")
		lines[i] = indent + body
	}

	text = strings.Join(lines, "\n")
	text = manyBlankLines.ReplaceAllString(text, "\n\n")
	text = strings.Trim(text, "\n")
	return text + "\n"
}
