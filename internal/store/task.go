package store

import (
	"errors"
	"time"

	"github.com/framefoundry/media-studio/gen-orchestrator/internal/generation"
)

// ErrTaskNotFound is returned when a task does not exist or was soft-deleted
var ErrTaskNotFound = errors.New("generation task not found")

// ErrModelNotFound is returned when a model id or slug resolves to nothing
var ErrModelNotFound = errors.New("generation model not found")

// TaskStatus is the lifecycle state of a generation task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusSuccess    TaskStatus = "SUCCESS"
	TaskStatusFailed     TaskStatus = "FAILED"
)

// IsTerminal reports whether no further transitions are permitted
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFailed
}

// Task is a generation job tracked by the orchestrator. Created PENDING;
// moved to PROCESSING/SUCCESS/FAILED by the dispatch service or the
// reconciliation loop, never reopened once terminal.
type Task struct {
	ID              string                        `json:"id" db:"id"`
	ModelID         string                        `json:"model_id" db:"model_id"`
	UserID          string                        `json:"user_id" db:"user_id"`
	Prompt          string                        `json:"prompt" db:"prompt"`
	InputImages     []string                      `json:"input_images,omitempty" db:"input_images"`
	NumberOfOutputs int                           `json:"number_of_outputs" db:"number_of_outputs"`
	Parameters      map[string]interface{}        `json:"parameters,omitempty" db:"parameters"`
	Status          TaskStatus                    `json:"status" db:"status"`
	Progress        *float64                      `json:"progress,omitempty" db:"progress"`
	Results         []generation.GenerationResult `json:"results,omitempty" db:"results"`
	ErrorMessage    *string                       `json:"error_message,omitempty" db:"error_message"`
	ProviderTaskID  *string                       `json:"provider_task_id,omitempty" db:"provider_task_id"`
	DurationMs      *int64                        `json:"duration_ms,omitempty" db:"duration_ms"`
	CompletedAt     *time.Time                    `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt       time.Time                     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time                     `json:"updated_at" db:"updated_at"`
}

// CreateTaskInput carries the fields the caller controls at creation time
type CreateTaskInput struct {
	ModelID         string
	UserID          string
	Prompt          string
	InputImages     []string
	NumberOfOutputs int
	Parameters      map[string]interface{}
}

// TaskUpdate is a partial update; nil fields are left untouched
type TaskUpdate struct {
	Status         *TaskStatus
	Progress       *float64
	Results        []generation.GenerationResult
	ErrorMessage   *string
	ProviderTaskID *string
	DurationMs     *int64
	CompletedAt    *time.Time
}
