package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskMetrics_Creation(t *testing.T) {
	t.Run("successfully create task metrics", func(t *testing.T) {
		metrics, err := NewTaskMetrics()
		require.NoError(t, err)
		assert.NotNil(t, metrics)
		assert.NotNil(t, metrics.tasksCreatedCounter)
		assert.NotNil(t, metrics.tasksCompletedCounter)
		assert.NotNil(t, metrics.tasksFailedCounter)
		assert.NotNil(t, metrics.taskDurationHistogram)
		assert.NotNil(t, metrics.tasksActiveGauge)
	})
}

func TestTaskMetrics_RecordTaskCreated(t *testing.T) {
	metrics, err := NewTaskMetrics()
	require.NoError(t, err)

	t.Run("record task creation", func(t *testing.T) {
		ctx := context.Background()

		assert.NotPanics(t, func() {
			metrics.RecordTaskCreated(ctx, "model-123")
		})
	})

	t.Run("record multiple task creations", func(t *testing.T) {
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			metrics.RecordTaskCreated(ctx, fmt.Sprintf("model-%d", i))
		}
	})
}

func TestTaskMetrics_RecordTaskCompleted(t *testing.T) {
	metrics, err := NewTaskMetrics()
	require.NoError(t, err)

	t.Run("record task completion with duration", func(t *testing.T) {
		ctx := context.Background()

		assert.NotPanics(t, func() {
			metrics.RecordTaskCompleted(ctx, "model-123", 5*time.Second)
		})
	})

	t.Run("record completion with various durations", func(t *testing.T) {
		ctx := context.Background()
		durations := []time.Duration{
			100 * time.Millisecond,
			1 * time.Second,
			30 * time.Second,
			5 * time.Minute,
		}

		for i, duration := range durations {
			metrics.RecordTaskCompleted(ctx, fmt.Sprintf("model-%d", i), duration)
		}
	})
}

func TestTaskMetrics_RecordTaskFailed(t *testing.T) {
	metrics, err := NewTaskMetrics()
	require.NoError(t, err)

	t.Run("record task failure with stage", func(t *testing.T) {
		ctx := context.Background()

		assert.NotPanics(t, func() {
			metrics.RecordTaskFailed(ctx, "model-123", "dispatch")
		})
	})

	t.Run("record failures at different stages", func(t *testing.T) {
		ctx := context.Background()
		stages := []string{"dispatch", "poll", "timeout"}

		for i, stage := range stages {
			metrics.RecordTaskFailed(ctx, fmt.Sprintf("model-%d", i), stage)
		}
	})
}

func TestTaskMetrics_ActiveTasksGauge(t *testing.T) {
	metrics, err := NewTaskMetrics()
	require.NoError(t, err)

	t.Run("active tasks counter increments and decrements", func(t *testing.T) {
		ctx := context.Background()

		metrics.RecordTaskCreated(ctx, "model-123")
		metrics.RecordTaskCompleted(ctx, "model-123", 2*time.Second)
	})

	t.Run("active tasks with failures", func(t *testing.T) {
		ctx := context.Background()

		metrics.RecordTaskCreated(ctx, "model-456")
		metrics.RecordTaskFailed(ctx, "model-456", "poll")
	})
}

func TestTaskMetrics_ConcurrentRecording(t *testing.T) {
	metrics, err := NewTaskMetrics()
	require.NoError(t, err)

	t.Run("handle concurrent metric recording", func(t *testing.T) {
		ctx := context.Background()
		done := make(chan bool)

		for i := 0; i < 10; i++ {
			go func(id int) {
				modelID := fmt.Sprintf("concurrent-model-%d", id)

				metrics.RecordTaskCreated(ctx, modelID)

				if id%2 == 0 {
					metrics.RecordTaskCompleted(ctx, modelID, time.Duration(id)*100*time.Millisecond)
				} else {
					metrics.RecordTaskFailed(ctx, modelID, "poll")
				}

				done <- true
			}(i)
		}

		for i := 0; i < 10; i++ {
			<-done
		}
	})
}
