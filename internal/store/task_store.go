package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskStore is the persistence boundary the dispatch service and the
// reconciliation loop talk to. DeleteTask is a soft delete; GetTask never
// returns soft-deleted rows.
type TaskStore interface {
	CreateTask(ctx context.Context, input CreateTaskInput) (*Task, error)
	GetTask(ctx context.Context, id string) (*Task, error)
	UpdateTask(ctx context.Context, id string, update TaskUpdate) (*Task, error)
	DeleteTask(ctx context.Context, id string) error
	IncrementModelUsage(ctx context.Context, modelID string) error
}

const taskColumns = `id, model_id, user_id, prompt, input_images, number_of_outputs, parameters,
	       status, progress, results, error_message, provider_task_id, duration_ms,
	       completed_at, created_at, updated_at`

// PostgresTaskStore implements TaskStore on a pgx connection pool
type PostgresTaskStore struct {
	pool *pgxpool.Pool
}

// NewPostgresTaskStore creates a task store backed by PostgreSQL
func NewPostgresTaskStore(pool *pgxpool.Pool) *PostgresTaskStore {
	return &PostgresTaskStore{pool: pool}
}

// CreateTask inserts a new task in PENDING state
func (s *PostgresTaskStore) CreateTask(ctx context.Context, input CreateTaskInput) (*Task, error) {
	inputImages, err := json.Marshal(input.InputImages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input images: %w", err)
	}
	parameters, err := json.Marshal(input.Parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parameters: %w", err)
	}

	numberOfOutputs := input.NumberOfOutputs
	if numberOfOutputs <= 0 {
		numberOfOutputs = 1
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO generation_tasks (id, model_id, user_id, prompt, input_images, number_of_outputs, parameters, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 'PENDING')
		 RETURNING `+taskColumns,
		uuid.New().String(), input.ModelID, input.UserID, input.Prompt,
		inputImages, numberOfOutputs, parameters,
	)

	task, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// GetTask retrieves a task by id, excluding soft-deleted rows
func (s *PostgresTaskStore) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+`
		 FROM generation_tasks
		 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)

	task, err := scanTask(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// UpdateTask applies a partial update and returns the fresh row
func (s *PostgresTaskStore) UpdateTask(ctx context.Context, id string, update TaskUpdate) (*Task, error) {
	setClauses := []string{"updated_at = NOW()"}
	args := []interface{}{id}

	addArg := func(clause string, value interface{}) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf(clause, len(args)))
	}

	if update.Status != nil {
		addArg("status = $%d", *update.Status)
	}
	if update.Progress != nil {
		addArg("progress = $%d", *update.Progress)
	}
	if update.Results != nil {
		results, err := json.Marshal(update.Results)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal results: %w", err)
		}
		addArg("results = $%d", results)
	}
	if update.ErrorMessage != nil {
		addArg("error_message = $%d", *update.ErrorMessage)
	}
	if update.ProviderTaskID != nil {
		addArg("provider_task_id = $%d", *update.ProviderTaskID)
	}
	if update.DurationMs != nil {
		addArg("duration_ms = $%d", *update.DurationMs)
	}
	if update.CompletedAt != nil {
		addArg("completed_at = $%d", *update.CompletedAt)
	}

	query := fmt.Sprintf(
		`UPDATE generation_tasks SET %s WHERE id = $1 AND deleted_at IS NULL RETURNING %s`,
		strings.Join(setClauses, ", "), taskColumns,
	)

	task, err := scanTask(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// DeleteTask soft-deletes a task. Deleting an in-flight task doubles as
// cancellation: the reconciliation loop retires on its next guard check.
func (s *PostgresTaskStore) DeleteTask(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE generation_tasks SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// IncrementModelUsage bumps a model's usage counter after a successful run
func (s *PostgresTaskStore) IncrementModelUsage(ctx context.Context, modelID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE generation_models SET usage_count = usage_count + 1, updated_at = NOW()
		 WHERE id = $1`,
		modelID,
	)
	if err != nil {
		return fmt.Errorf("failed to increment model usage: %w", err)
	}
	return nil
}

// scanTask maps one row onto a Task, unpacking the jsonb columns
func scanTask(row pgx.Row) (*Task, error) {
	var task Task
	var inputImages, parameters, results []byte
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&task.ID, &task.ModelID, &task.UserID, &task.Prompt,
		&inputImages, &task.NumberOfOutputs, &parameters,
		&task.Status, &task.Progress, &results, &task.ErrorMessage,
		&task.ProviderTaskID, &task.DurationMs, &task.CompletedAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.CreatedAt = createdAt
	task.UpdatedAt = updatedAt

	if len(inputImages) > 0 {
		if err := json.Unmarshal(inputImages, &task.InputImages); err != nil {
			return nil, fmt.Errorf("failed to unmarshal input images: %w", err)
		}
	}
	if len(parameters) > 0 {
		if err := json.Unmarshal(parameters, &task.Parameters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
		}
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &task.Results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal results: %w", err)
		}
	}

	return &task, nil
}
