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
	"github.com/framefoundry/media-studio/gen-orchestrator/internal/metrics"
	"github.com/framefoundry/media-studio/gen-orchestrator/internal/store"
)

// maxConsecutivePollFailures caps how long a flaky network can keep a
// task stuck in PROCESSING: after this many back-to-back transport
// failures the loop gives up and fails the task.
const maxConsecutivePollFailures = 3

// PollerConfig bounds one reconciliation loop. MaxAttempts and
// MaxDuration are enforced independently; whichever trips first wins.
type PollerConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
	MaxDuration  time.Duration
}

// DefaultPollerConfig returns the production bounds: attempts x interval
// roughly equals the duration cap.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		PollInterval: 5 * time.Second,
		MaxAttempts:  180,
		MaxDuration:  30 * time.Minute,
	}
}

// Poller drives one asynchronous provider job to a terminal task state.
// Each in-flight task gets its own goroutine running Run; loops share
// nothing but the task store.
type Poller struct {
	store   store.TaskStore
	metrics *metrics.TaskMetrics
	alerts  AlertSink
	config  PollerConfig
	tracer  trace.Tracer
}

// NewPoller creates a poller. A nil alerts sink falls back to structured
// log lines; a nil metrics collector disables metric recording.
func NewPoller(taskStore store.TaskStore, taskMetrics *metrics.TaskMetrics, alerts AlertSink, config PollerConfig) *Poller {
	if alerts == nil {
		alerts = LogAlertSink{}
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollerConfig().PollInterval
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultPollerConfig().MaxAttempts
	}
	if config.MaxDuration <= 0 {
		config.MaxDuration = DefaultPollerConfig().MaxDuration
	}
	return &Poller{
		store:   taskStore,
		metrics: taskMetrics,
		alerts:  alerts,
		config:  config,
		tracer:  otel.Tracer("generation-poller"),
	}
}

// Run polls the adapter until the task reaches a terminal state, a bound
// trips, or the loop discovers it no longer owns the task. It always
// terminates in bounded time.
func (p *Poller) Run(ctx context.Context, adapter generation.Adapter, taskID, modelID, providerTaskID string) {
	ctx, span := p.tracer.Start(ctx, "poller.run")
	defer span.End()

	span.SetAttributes(
		attribute.String("task.id", taskID),
		attribute.String("model.id", modelID),
		attribute.String("provider_task.id", providerTaskID),
	)

	checker, ok := adapter.(generation.StatusChecker)
	if !ok {
		// Configuration defect: an async dispatch against a sync-only adapter
		p.failTask(ctx, taskID, modelID, fmt.Sprintf(
			"adapter %s does not support async polling", adapter.Name()))
		return
	}

	start := time.Now()
	attempts := 0
	consecutiveFailures := 0

	for {
		// Guard: re-read the task; never overwrite a state the loop does not own
		task, err := p.store.GetTask(ctx, taskID)
		if err != nil {
			if errors.Is(err, store.ErrTaskNotFound) {
				log.Printf(`{"level":"info","message":"Task deleted mid-poll, retiring loop","task_id":"%s"}`, taskID)
				p.retireTask(ctx, modelID)
				return
			}
			p.alerts.OnWarn(ctx, "poll_store_read_failed", map[string]interface{}{
				"task_id": taskID,
				"error":   err.Error(),
			})
			p.retireTask(ctx, modelID)
			return
		}
		if task.Status != store.TaskStatusPending && task.Status != store.TaskStatusProcessing {
			log.Printf(`{"level":"info","message":"Task status changed externally, retiring loop","task_id":"%s","status":"%s"}`,
				taskID, task.Status)
			p.retireTask(ctx, modelID)
			return
		}

		if elapsed := time.Since(start); elapsed > p.config.MaxDuration {
			message := fmt.Sprintf("generation timed out after %s", elapsed.Truncate(time.Second))
			p.failTask(ctx, taskID, modelID, message)
			p.alerts.OnError(ctx, "poll_timeout", map[string]interface{}{
				"task_id":          taskID,
				"model_id":         modelID,
				"provider_task_id": providerTaskID,
				"elapsed_ms":       elapsed.Milliseconds(),
			})
			return
		}

		if attempts >= p.config.MaxAttempts {
			p.failTask(ctx, taskID, modelID, fmt.Sprintf(
				"exceeded maximum of %d polling attempts", p.config.MaxAttempts))
			return
		}

		attempts++
		resp, err := checker.CheckTaskStatus(ctx, providerTaskID)
		if err != nil {
			consecutiveFailures++
			p.alerts.OnWarn(ctx, "poll_attempt_failed", map[string]interface{}{
				"task_id":              taskID,
				"provider_task_id":     providerTaskID,
				"attempt":              attempts,
				"consecutive_failures": consecutiveFailures,
				"error":                err.Error(),
			})
			if consecutiveFailures >= maxConsecutivePollFailures {
				p.failTask(ctx, taskID, modelID, fmt.Sprintf(
					"%d consecutive poll failures, last error: %v", maxConsecutivePollFailures, err))
				return
			}
			if !p.sleep(ctx) {
				return
			}
			continue
		}
		consecutiveFailures = 0

		if validationErr := resp.Validate(); validationErr != nil {
			// An adapter handing back a malformed response is treated like a
			// transport failure so one bad payload cannot kill the task
			consecutiveFailures++
			p.alerts.OnWarn(ctx, "poll_response_invalid", map[string]interface{}{
				"task_id": taskID,
				"error":   validationErr.Error(),
			})
			if consecutiveFailures >= maxConsecutivePollFailures {
				p.failTask(ctx, taskID, modelID, fmt.Sprintf(
					"adapter returned %d consecutive malformed responses", maxConsecutivePollFailures))
				return
			}
			if !p.sleep(ctx) {
				return
			}
			continue
		}

		switch resp.Status {
		case generation.StatusSuccess:
			p.completeTask(ctx, task, modelID, resp.Results)
			return

		case generation.StatusError:
			// Terminal from the loop's perspective; IsRetryable is advisory
			// metadata for resubmission, never a reason to re-poll a dead job
			p.failTask(ctx, taskID, modelID, resp.Error.Message)
			return

		case generation.StatusProcessing:
			update := store.TaskUpdate{Progress: resp.Progress}
			if _, err := p.store.UpdateTask(ctx, taskID, update); err != nil && !errors.Is(err, store.ErrTaskNotFound) {
				p.alerts.OnWarn(ctx, "poll_progress_write_failed", map[string]interface{}{
					"task_id": taskID,
					"error":   err.Error(),
				})
			}
			if !p.sleep(ctx) {
				return
			}
		}
	}
}

// completeTask finalizes a successful task and bumps the model usage counter
func (p *Poller) completeTask(ctx context.Context, task *store.Task, modelID string, results []generation.GenerationResult) {
	now := time.Now()
	status := store.TaskStatusSuccess
	durationMs := now.Sub(task.CreatedAt).Milliseconds()

	_, err := p.store.UpdateTask(ctx, task.ID, store.TaskUpdate{
		Status:      &status,
		Results:     results,
		CompletedAt: &now,
		DurationMs:  &durationMs,
	})
	if err != nil {
		p.alerts.OnError(ctx, "task_completion_write_failed", map[string]interface{}{
			"task_id": task.ID,
			"error":   err.Error(),
		})
		p.retireTask(ctx, modelID)
		return
	}

	if err := p.store.IncrementModelUsage(ctx, modelID); err != nil {
		p.alerts.OnWarn(ctx, "model_usage_increment_failed", map[string]interface{}{
			"model_id": modelID,
			"error":    err.Error(),
		})
	}

	if p.metrics != nil {
		p.metrics.RecordTaskCompleted(ctx, modelID, time.Duration(durationMs)*time.Millisecond)
	}

	log.Printf(`{"level":"info","message":"Generation task succeeded","task_id":"%s","model_id":"%s","results":%d,"duration_ms":%d}`,
		task.ID, modelID, len(results), durationMs)
}

// failTask moves a task to FAILED with a human-readable message. A task
// that vanished underneath us is left alone.
func (p *Poller) failTask(ctx context.Context, taskID, modelID, message string) {
	now := time.Now()
	status := store.TaskStatusFailed

	_, err := p.store.UpdateTask(ctx, taskID, store.TaskUpdate{
		Status:       &status,
		ErrorMessage: &message,
		CompletedAt:  &now,
	})
	if err != nil {
		if !errors.Is(err, store.ErrTaskNotFound) {
			p.alerts.OnError(ctx, "task_failure_write_failed", map[string]interface{}{
				"task_id": taskID,
				"error":   err.Error(),
			})
		}
		p.retireTask(ctx, modelID)
		return
	}

	if p.metrics != nil {
		p.metrics.RecordTaskFailed(ctx, modelID, "poll")
	}

	log.Printf(`{"level":"warn","message":"Generation task failed","task_id":"%s","model_id":"%s","reason":"%s"}`,
		taskID, modelID, message)
}

// retireTask removes a task from the active gauge when the loop stops
// watching it without writing a terminal state itself. Completion and
// failure recording already decrement; every other loop exit goes here.
func (p *Poller) retireTask(ctx context.Context, modelID string) {
	if p.metrics != nil {
		p.metrics.RecordTaskRetired(ctx, modelID)
	}
}

// sleep waits one poll interval; returns false when the context is done
func (p *Poller) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(p.config.PollInterval):
		return true
	}
}
