package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/framefoundry/media-studio/gen-orchestrator/internal/generation"
	"github.com/framefoundry/media-studio/gen-orchestrator/internal/generation/providers"
	"github.com/framefoundry/media-studio/gen-orchestrator/internal/metrics"
	"github.com/framefoundry/media-studio/gen-orchestrator/internal/store"
)

// AdapterFactory resolves a model binding to an adapter; the default is
// the provider registry. Overridable so tests can inject scripted adapters.
type AdapterFactory func(generation.ModelConfig) (generation.Adapter, error)

// Service owns the dispatch flow: create a task, resolve its adapter,
// submit once, and either finalize synchronously or hand the task to a
// reconciliation loop.
type Service struct {
	tasks          store.TaskStore
	models         store.ModelStore
	metrics        *metrics.TaskMetrics
	alerts         AlertSink
	poller         *Poller
	adapterFactory AdapterFactory
	tracer         trace.Tracer
}

// NewService creates an orchestration service with production defaults
func NewService(tasks store.TaskStore, models store.ModelStore, taskMetrics *metrics.TaskMetrics) *Service {
	alerts := LogAlertSink{}
	return &Service{
		tasks:          tasks,
		models:         models,
		metrics:        taskMetrics,
		alerts:         alerts,
		poller:         NewPoller(tasks, taskMetrics, alerts, DefaultPollerConfig()),
		adapterFactory: providers.NewAdapter,
		tracer:         otel.Tracer("orchestration-service"),
	}
}

// CreateGenerationInput is the canonical request entering the core
type CreateGenerationInput struct {
	ModelID         string
	ModelSlug       string
	UserID          string
	Prompt          string
	InputImages     []string
	NumberOfOutputs int
	Parameters      map[string]interface{}
}

// CreateGeneration creates a task and dispatches it. The returned task
// reflects the state after the single dispatch call: SUCCESS/FAILED for
// synchronous outcomes, PROCESSING when a reconciliation loop took over.
func (s *Service) CreateGeneration(ctx context.Context, input CreateGenerationInput) (*store.Task, error) {
	ctx, span := s.tracer.Start(ctx, "orchestration.create_generation")
	defer span.End()

	model, err := s.resolveModel(ctx, input)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("model.id", model.Config.ID),
		attribute.String("model.adapter", model.Config.AdapterName),
	)

	task, err := s.tasks.CreateTask(ctx, store.CreateTaskInput{
		ModelID:         model.Config.ID,
		UserID:          input.UserID,
		Prompt:          input.Prompt,
		InputImages:     input.InputImages,
		NumberOfOutputs: input.NumberOfOutputs,
		Parameters:      input.Parameters,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordTaskCreated(ctx, model.Config.ID)
	}

	adapter, err := s.adapterFactory(model.Config)
	if err != nil {
		// Configuration failure: fail the task before it ever reaches a provider
		return s.finishFailed(ctx, task, model.Config.ID, err.Error()), nil
	}

	req := &generation.GenerationRequest{
		Prompt:          input.Prompt,
		InputImages:     input.InputImages,
		NumberOfOutputs: input.NumberOfOutputs,
		Parameters:      input.Parameters,
	}

	resp := adapter.Dispatch(ctx, req)
	if err := resp.Validate(); err != nil {
		return s.finishFailed(ctx, task, model.Config.ID,
			fmt.Sprintf("adapter %s returned a malformed response: %v", adapter.Name(), err)), nil
	}

	switch resp.Status {
	case generation.StatusSuccess:
		return s.finishSucceeded(ctx, task, model.Config.ID, resp.Results), nil

	case generation.StatusError:
		return s.finishFailed(ctx, task, model.Config.ID, resp.Error.Message), nil

	default: // PROCESSING
		status := store.TaskStatusProcessing
		updated, err := s.tasks.UpdateTask(ctx, task.ID, store.TaskUpdate{
			Status:         &status,
			ProviderTaskID: &resp.ProviderTaskID,
			Progress:       resp.Progress,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to mark task processing: %w", err)
		}

		log.Printf(`{"level":"info","message":"Generation task dispatched","task_id":"%s","model_id":"%s","provider_task_id":"%s"}`,
			task.ID, model.Config.ID, resp.ProviderTaskID)

		// The loop owns the task from here; it runs detached from the
		// request context so a closed HTTP connection cannot cancel it.
		go s.poller.Run(context.Background(), adapter, task.ID, model.Config.ID, resp.ProviderTaskID)
		return updated, nil
	}
}

// GetGeneration retrieves a task by id
func (s *Service) GetGeneration(ctx context.Context, taskID string) (*store.Task, error) {
	return s.tasks.GetTask(ctx, taskID)
}

// DeleteGeneration soft-deletes a task; an in-flight reconciliation loop
// observes the deletion on its next guard check and retires.
func (s *Service) DeleteGeneration(ctx context.Context, taskID string) error {
	return s.tasks.DeleteTask(ctx, taskID)
}

// ListModels returns the model catalog
func (s *Service) ListModels(ctx context.Context) ([]*store.Model, error) {
	return s.models.ListModels(ctx)
}

// ListAdapters returns the registered adapter names
func (s *Service) ListAdapters() []string {
	return providers.ListAdapters()
}

// resolveModel looks a model up by id, falling back to slug
func (s *Service) resolveModel(ctx context.Context, input CreateGenerationInput) (*store.Model, error) {
	switch {
	case input.ModelID != "":
		return s.models.GetModel(ctx, input.ModelID)
	case input.ModelSlug != "":
		return s.models.GetModelBySlug(ctx, input.ModelSlug)
	default:
		return nil, errors.New("model id or slug is required")
	}
}

func (s *Service) finishSucceeded(ctx context.Context, task *store.Task, modelID string, results []generation.GenerationResult) *store.Task {
	now := time.Now()
	status := store.TaskStatusSuccess
	durationMs := now.Sub(task.CreatedAt).Milliseconds()

	updated, err := s.tasks.UpdateTask(ctx, task.ID, store.TaskUpdate{
		Status:      &status,
		Results:     results,
		CompletedAt: &now,
		DurationMs:  &durationMs,
	})
	if err != nil {
		s.alerts.OnError(ctx, "task_completion_write_failed", map[string]interface{}{
			"task_id": task.ID,
			"error":   err.Error(),
		})
		return task
	}

	if err := s.tasks.IncrementModelUsage(ctx, modelID); err != nil {
		s.alerts.OnWarn(ctx, "model_usage_increment_failed", map[string]interface{}{
			"model_id": modelID,
			"error":    err.Error(),
		})
	}
	if s.metrics != nil {
		s.metrics.RecordTaskCompleted(ctx, modelID, time.Duration(durationMs)*time.Millisecond)
	}
	return updated
}

func (s *Service) finishFailed(ctx context.Context, task *store.Task, modelID, message string) *store.Task {
	now := time.Now()
	status := store.TaskStatusFailed

	updated, err := s.tasks.UpdateTask(ctx, task.ID, store.TaskUpdate{
		Status:       &status,
		ErrorMessage: &message,
		CompletedAt:  &now,
	})
	if err != nil {
		s.alerts.OnError(ctx, "task_failure_write_failed", map[string]interface{}{
			"task_id": task.ID,
			"error":   err.Error(),
		})
		return task
	}

	if s.metrics != nil {
		s.metrics.RecordTaskFailed(ctx, modelID, "dispatch")
	}

	log.Printf(`{"level":"warn","message":"Generation dispatch failed","task_id":"%s","model_id":"%s","reason":"%s"}`,
		task.ID, modelID, message)
	return updated
}
