package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Genflow/internal/domain"
	"github.com/shaiso/Genflow/internal/events"
)

// GenerationStore — чтение генераций и шагов, смена статуса генерации.
// Реализация: repo.Store.
type GenerationStore interface {
	GetGeneration(ctx context.Context, id uuid.UUID) (*domain.Generation, error)
	ListSteps(ctx context.Context, generationID uuid.UUID) ([]domain.Step, error)
	UpdateGeneration(ctx context.Context, id uuid.UUID, fields events.GenerationFields) error
}

// JobPublisher — постановка job в очередь. Реализация: mq.Publisher.
type JobPublisher interface {
	PublishJob(ctx context.Context, job *domain.Job) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	store             GenerationStore
	publisher         JobPublisher
	dispatcher        *events.Dispatcher
	defaultMaxRetries int
	logger            *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Store     GenerationStore
	Publisher JobPublisher

	// Dispatcher — куда публикуется GenerationUpdated после смены статуса
	// (default: новый Dispatcher без подписчиков).
	Dispatcher *events.Dispatcher

	// DefaultMaxRetries — max_retries для job без явного значения.
	DefaultMaxRetries int

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dispatcher := cfg.Dispatcher
	if dispatcher == nil {
		dispatcher = events.NewDispatcher(logger)
	}
	return &Handler{
		store:             cfg.Store,
		publisher:         cfg.Publisher,
		dispatcher:        dispatcher,
		defaultMaxRetries: cfg.DefaultMaxRetries,
		logger:            logger,
	}
}
