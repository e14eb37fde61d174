package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shaiso/Genflow/internal/domain"
)

const stepColumns = `id, generation_id, type, status, progress, input_hash, output, error,
		       reason, started_at, finished_at`

// StepRepo — репозиторий для работы со steps.
type StepRepo struct {
	db querier
}

// NewStepRepo создаёт новый StepRepo поверх пула или транзакции.
func NewStepRepo(db querier) *StepRepo {
	return &StepRepo{db: db}
}

// Create создаёт новый шаг.
func (r *StepRepo) Create(ctx context.Context, s *domain.Step) error {
	outputJSON, err := marshalNullableObject(s.Output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	errorJSON, err := marshalNullable(s.Error)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	query := `
		INSERT INTO steps (id, generation_id, type, status, progress, input_hash, output, error,
		                   reason, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.db.Exec(ctx, query,
		s.ID,
		s.GenerationID,
		s.Type,
		s.Status,
		s.Progress,
		s.InputHash,
		outputJSON,
		errorJSON,
		nullString(s.Reason),
		s.StartedAt,
		s.FinishedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

// GetByID возвращает шаг по ID.
func (r *StepRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM steps WHERE id = $1`
	return scanStep(r.db.QueryRow(ctx, query, id))
}

// GetForUpdate возвращает шаг с блокировкой строки.
func (r *StepRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Step, error) {
	query := `SELECT ` + stepColumns + ` FROM steps WHERE id = $1 FOR UPDATE`
	return scanStep(r.db.QueryRow(ctx, query, id))
}

// FindSucceededByHash ищет успешный шаг того же типа с тем же input_hash
// в рамках генерации (дедупликация повторных запусков).
func (r *StepRepo) FindSucceededByHash(ctx context.Context, generationID uuid.UUID, stepType, inputHash string) (*domain.Step, error) {
	query := `SELECT ` + stepColumns + `
		FROM steps
		WHERE generation_id = $1 AND type = $2 AND input_hash = $3 AND status = 'SUCCEEDED'
		ORDER BY finished_at DESC
		LIMIT 1
	`
	return scanStep(r.db.QueryRow(ctx, query, generationID, stepType, inputHash))
}

// ListByGeneration возвращает шаги генерации.
func (r *StepRepo) ListByGeneration(ctx context.Context, generationID uuid.UUID) ([]domain.Step, error) {
	query := `SELECT ` + stepColumns + `
		FROM steps
		WHERE generation_id = $1
		ORDER BY started_at ASC NULLS LAST
	`
	rows, err := r.db.Query(ctx, query, generationID)
	if err != nil {
		return nil, fmt.Errorf("list steps by generation_id: %w", err)
	}
	defer rows.Close()

	var steps []domain.Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, *step)
	}
	return steps, rows.Err()
}

// Update сохраняет состояние шага.
func (r *StepRepo) Update(ctx context.Context, s *domain.Step) error {
	outputJSON, err := marshalNullableObject(s.Output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	errorJSON, err := marshalNullable(s.Error)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	query := `
		UPDATE steps
		SET status = $2, progress = $3, output = $4, error = $5, reason = $6,
		    started_at = $7, finished_at = $8
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		s.ID,
		s.Status,
		s.Progress,
		outputJSON,
		errorJSON,
		nullString(s.Reason),
		s.StartedAt,
		s.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func scanStep(row pgx.Row) (*domain.Step, error) {
	var s domain.Step
	var outputJSON, errorJSON []byte
	var reason *string

	err := row.Scan(
		&s.ID,
		&s.GenerationID,
		&s.Type,
		&s.Status,
		&s.Progress,
		&s.InputHash,
		&outputJSON,
		&errorJSON,
		&reason,
		&s.StartedAt,
		&s.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan step: %w", err)
	}

	if err := unmarshalObject(outputJSON, &s.Output); err != nil {
		return nil, fmt.Errorf("unmarshal output: %w", err)
	}
	if len(errorJSON) > 0 {
		s.Error = &domain.JobError{}
		if err := unmarshalObject(errorJSON, s.Error); err != nil {
			return nil, fmt.Errorf("unmarshal error: %w", err)
		}
	}
	if reason != nil {
		s.Reason = *reason
	}
	return &s, nil
}

// nullString возвращает nil для пустой строки.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
