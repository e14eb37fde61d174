package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shaiso/Genflow/internal/domain"
)

const generationColumns = `id, user_id, module_type, status, input, result,
		       created_at, updated_at, started_at, finished_at`

// GenerationRepo — репозиторий для работы с generations.
type GenerationRepo struct {
	db querier
}

// NewGenerationRepo создаёт новый GenerationRepo поверх пула или транзакции.
func NewGenerationRepo(db querier) *GenerationRepo {
	return &GenerationRepo{db: db}
}

// Create создаёт новую генерацию.
func (r *GenerationRepo) Create(ctx context.Context, g *domain.Generation) error {
	inputJSON, err := marshalObject(g.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	resultJSON, err := marshalNullableObject(g.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	query := `
		INSERT INTO generations (id, user_id, module_type, status, input, result,
		                         created_at, updated_at, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.Exec(ctx, query,
		g.ID,
		g.UserID,
		g.ModuleType,
		g.Status,
		inputJSON,
		resultJSON,
		g.CreatedAt,
		g.UpdatedAt,
		g.StartedAt,
		g.FinishedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

// GetByID возвращает генерацию по ID.
func (r *GenerationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE id = $1`
	return scanGeneration(r.db.QueryRow(ctx, query, id))
}

// GetForUpdate возвращает генерацию с блокировкой строки (SELECT ... FOR UPDATE).
// Имеет смысл только внутри транзакции.
func (r *GenerationRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE id = $1 FOR UPDATE`
	return scanGeneration(r.db.QueryRow(ctx, query, id))
}

// Update сохраняет статус, результат и временные метки генерации.
func (r *GenerationRepo) Update(ctx context.Context, g *domain.Generation) error {
	resultJSON, err := marshalNullableObject(g.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	query := `
		UPDATE generations
		SET status = $2, result = $3, updated_at = $4, started_at = $5, finished_at = $6
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		g.ID,
		g.Status,
		resultJSON,
		g.UpdatedAt,
		g.StartedAt,
		g.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update generation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func scanGeneration(row pgx.Row) (*domain.Generation, error) {
	var g domain.Generation
	var inputJSON, resultJSON []byte

	err := row.Scan(
		&g.ID,
		&g.UserID,
		&g.ModuleType,
		&g.Status,
		&inputJSON,
		&resultJSON,
		&g.CreatedAt,
		&g.UpdatedAt,
		&g.StartedAt,
		&g.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan generation: %w", err)
	}

	if err := unmarshalObject(inputJSON, &g.Input); err != nil {
		return nil, fmt.Errorf("unmarshal input: %w", err)
	}
	if err := unmarshalObject(resultJSON, &g.Result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &g, nil
}

// marshalObject сериализует map в JSON; nil → {}.
func marshalObject(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// marshalNullableObject сериализует map в JSON; nil → SQL NULL.
func marshalNullableObject(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// marshalNullable сериализует значение в JSON; nil → SQL NULL.
func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// unmarshalObject десериализует JSON-колонку; NULL оставляет нулевое значение.
func unmarshalObject(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
