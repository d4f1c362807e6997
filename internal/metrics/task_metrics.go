package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("generation-task-metrics")

// TaskMetrics provides metrics collection for generation task execution
type TaskMetrics struct {
	tasksCreatedCounter   metric.Int64Counter
	tasksCompletedCounter metric.Int64Counter
	tasksFailedCounter    metric.Int64Counter
	taskDurationHistogram metric.Float64Histogram
	tasksActiveGauge      metric.Int64UpDownCounter
}

// NewTaskMetrics creates a new generation task metrics collector
func NewTaskMetrics() (*TaskMetrics, error) {
	tasksCreatedCounter, err := meter.Int64Counter(
		"media_studio.generation_tasks.created",
		metric.WithDescription("Total number of generation tasks created"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	tasksCompletedCounter, err := meter.Int64Counter(
		"media_studio.generation_tasks.completed",
		metric.WithDescription("Total number of generation tasks completed successfully"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	tasksFailedCounter, err := meter.Int64Counter(
		"media_studio.generation_tasks.failed",
		metric.WithDescription("Total number of generation tasks that failed"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	taskDurationHistogram, err := meter.Float64Histogram(
		"media_studio.generation_task.duration",
		metric.WithDescription("Duration of generation task execution in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tasksActiveGauge, err := meter.Int64UpDownCounter(
		"media_studio.generation_tasks.active",
		metric.WithDescription("Number of currently in-flight generation tasks"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	return &TaskMetrics{
		tasksCreatedCounter:   tasksCreatedCounter,
		tasksCompletedCounter: tasksCompletedCounter,
		tasksFailedCounter:    tasksFailedCounter,
		taskDurationHistogram: taskDurationHistogram,
		tasksActiveGauge:      tasksActiveGauge,
	}, nil
}

// RecordTaskCreated records a new generation task
func (tm *TaskMetrics) RecordTaskCreated(ctx context.Context, modelID string) {
	tm.tasksCreatedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("model.id", modelID),
		),
	)
	tm.tasksActiveGauge.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("model.id", modelID),
		),
	)
}

// RecordTaskCompleted records a successful task completion
func (tm *TaskMetrics) RecordTaskCompleted(ctx context.Context, modelID string, duration time.Duration) {
	tm.tasksCompletedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("model.id", modelID),
			attribute.String("status", "success"),
		),
	)
	tm.taskDurationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("model.id", modelID),
			attribute.String("status", "success"),
		),
	)
	tm.tasksActiveGauge.Add(ctx, -1,
		metric.WithAttributes(
			attribute.String("model.id", modelID),
		),
	)
}

// RecordTaskRetired records a task the poller stopped watching without
// resolving it, such as a task cancelled mid-flight. The task leaves the
// active set without counting as completed or failed.
func (tm *TaskMetrics) RecordTaskRetired(ctx context.Context, modelID string) {
	tm.tasksActiveGauge.Add(ctx, -1,
		metric.WithAttributes(
			attribute.String("model.id", modelID),
		),
	)
}

// RecordTaskFailed records a failed task. Stage distinguishes dispatch
// failures from poll failures so operators can tell where tasks die.
func (tm *TaskMetrics) RecordTaskFailed(ctx context.Context, modelID, stage string) {
	tm.tasksFailedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("model.id", modelID),
			attribute.String("status", "failed"),
			attribute.String("stage", stage),
		),
	)
	tm.tasksActiveGauge.Add(ctx, -1,
		metric.WithAttributes(
			attribute.String("model.id", modelID),
		),
	)
}
