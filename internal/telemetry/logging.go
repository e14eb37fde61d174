package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/shaiso/Genflow/internal/domain"
)

// LoggerOptions — параметры корневого логгера процесса.
type LoggerOptions struct {
	// Level — минимальный уровень. На DEBUG в записи добавляется source.
	Level slog.Level

	// JSON — формат вывода: JSON для production, text для разработки.
	JSON bool
}

// LoggerOptionsFromEnv читает LOG_LEVEL (DEBUG/INFO/WARN/ERROR, регистр
// не важен) и LOG_FORMAT (json по умолчанию, text).
//
// Логгер нужен раньше конфигурации, чтобы было куда писать ошибки
// config.Load, поэтому переменные читаются напрямую.
func LoggerOptionsFromEnv() LoggerOptions {
	return LoggerOptions{
		Level: ParseLevel(os.Getenv("LOG_LEVEL")),
		JSON:  !strings.EqualFold(os.Getenv("LOG_FORMAT"), "text"),
	}
}

// ParseLevel переводит имя уровня в slog.Level. Неизвестное имя — INFO.
func ParseLevel(name string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger создаёт логгер, пишущий в w.
func NewLogger(w io.Writer, opts LoggerOptions) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{
		Level:     opts.Level,
		AddSource: opts.Level <= slog.LevelDebug,
	}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// SetupLogger создаёт логгер процесса из окружения (stdout)
// и делает его глобальным.
func SetupLogger() *slog.Logger {
	logger := NewLogger(os.Stdout, LoggerOptionsFromEnv())
	slog.SetDefault(logger)
	return logger
}

type loggerKey struct{}

// WithLogger кладёт логгер в контекст. Воркеры достают его через FromContext
// и получают атрибуты job, добавленные транспортом.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext возвращает логгер из контекста или slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithJob добавляет к логгеру атрибуты job: job_id, job_type,
// generation_id, номер попытки и step_id, если job привязан к шагу.
func WithJob(logger *slog.Logger, job *domain.Job) *slog.Logger {
	if job == nil {
		return logger
	}
	attrs := []any{
		"job_id", job.ID,
		"job_type", job.Type,
		"generation_id", job.GenerationID,
		"attempt", job.Retries + 1,
	}
	if job.StepID != nil {
		attrs = append(attrs, "step_id", *job.StepID)
	}
	return logger.With(attrs...)
}
