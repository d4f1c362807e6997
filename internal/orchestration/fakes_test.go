package orchestration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/framefoundry/media-studio/gen-orchestrator/internal/generation"
	"github.com/framefoundry/media-studio/gen-orchestrator/internal/store"
)

// memoryTaskStore is an in-memory TaskStore for exercising the dispatch
// service and the reconciliation loop without a database.
type memoryTaskStore struct {
	mu          sync.Mutex
	tasks       map[string]*store.Task
	nextID      int
	getErr      error
	updateErr   error
	updateCalls int
	usageCounts map[string]int
}

func newMemoryTaskStore() *memoryTaskStore {
	return &memoryTaskStore{
		tasks:       make(map[string]*store.Task),
		usageCounts: make(map[string]int),
	}
}

func (m *memoryTaskStore) CreateTask(ctx context.Context, input store.CreateTaskInput) (*store.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	numberOfOutputs := input.NumberOfOutputs
	if numberOfOutputs <= 0 {
		numberOfOutputs = 1
	}
	task := &store.Task{
		ID:              fmt.Sprintf("task-%d", m.nextID),
		ModelID:         input.ModelID,
		UserID:          input.UserID,
		Prompt:          input.Prompt,
		InputImages:     input.InputImages,
		NumberOfOutputs: numberOfOutputs,
		Parameters:      input.Parameters,
		Status:          store.TaskStatusPending,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	m.tasks[task.ID] = task
	copied := *task
	return &copied, nil
}

func (m *memoryTaskStore) GetTask(ctx context.Context, id string) (*store.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	task, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (m *memoryTaskStore) UpdateTask(ctx context.Context, id string, update store.TaskUpdate) (*store.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updateCalls++
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	task, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	if update.Status != nil {
		task.Status = *update.Status
	}
	if update.Progress != nil {
		task.Progress = update.Progress
	}
	if update.Results != nil {
		task.Results = update.Results
	}
	if update.ErrorMessage != nil {
		task.ErrorMessage = update.ErrorMessage
	}
	if update.ProviderTaskID != nil {
		task.ProviderTaskID = update.ProviderTaskID
	}
	if update.DurationMs != nil {
		task.DurationMs = update.DurationMs
	}
	if update.CompletedAt != nil {
		task.CompletedAt = update.CompletedAt
	}
	task.UpdatedAt = time.Now()
	copied := *task
	return &copied, nil
}

func (m *memoryTaskStore) DeleteTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *memoryTaskStore) IncrementModelUsage(ctx context.Context, modelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.usageCounts[modelID]++
	return nil
}

// seed inserts a task directly, bypassing CreateTask
func (m *memoryTaskStore) seed(task *store.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *task
	m.tasks[task.ID] = &copied
}

func (m *memoryTaskStore) get(id string) *store.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil
	}
	copied := *task
	return &copied
}

func (m *memoryTaskStore) updates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateCalls
}

func (m *memoryTaskStore) usage(modelID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usageCounts[modelID]
}

// memoryModelStore resolves models from a fixed map
type memoryModelStore struct {
	models map[string]*store.Model
}

func newMemoryModelStore(models ...*store.Model) *memoryModelStore {
	byID := make(map[string]*store.Model, len(models))
	for _, model := range models {
		byID[model.Config.ID] = model
	}
	return &memoryModelStore{models: byID}
}

func (m *memoryModelStore) GetModel(ctx context.Context, id string) (*store.Model, error) {
	model, ok := m.models[id]
	if !ok {
		return nil, store.ErrModelNotFound
	}
	return model, nil
}

func (m *memoryModelStore) GetModelBySlug(ctx context.Context, slug string) (*store.Model, error) {
	for _, model := range m.models {
		if model.Config.Slug == slug {
			return model, nil
		}
	}
	return nil, store.ErrModelNotFound
}

func (m *memoryModelStore) ListModels(ctx context.Context) ([]*store.Model, error) {
	out := make([]*store.Model, 0, len(m.models))
	for _, model := range m.models {
		out = append(out, model)
	}
	return out, nil
}

// pollStep is one scripted CheckTaskStatus outcome
type pollStep struct {
	resp *generation.AdapterResponse
	err  error
}

// scriptedAdapter plays back a fixed Dispatch response and a sequence of
// poll outcomes; the last step repeats once the script runs out.
type scriptedAdapter struct {
	mu           sync.Mutex
	name         string
	dispatchResp *generation.AdapterResponse
	steps        []pollStep
	pollCalls    int
}

func (a *scriptedAdapter) Name() string {
	if a.name != "" {
		return a.name
	}
	return "scripted"
}

func (a *scriptedAdapter) Dispatch(ctx context.Context, req *generation.GenerationRequest) *generation.AdapterResponse {
	return a.dispatchResp
}

func (a *scriptedAdapter) CheckTaskStatus(ctx context.Context, providerTaskID string) (*generation.AdapterResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	index := a.pollCalls
	if index >= len(a.steps) {
		index = len(a.steps) - 1
	}
	a.pollCalls++
	step := a.steps[index]
	return step.resp, step.err
}

func (a *scriptedAdapter) polls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pollCalls
}

// syncOnlyAdapter deliberately lacks CheckTaskStatus
type syncOnlyAdapter struct {
	resp *generation.AdapterResponse
}

func (a *syncOnlyAdapter) Name() string { return "sync-only" }

func (a *syncOnlyAdapter) Dispatch(ctx context.Context, req *generation.GenerationRequest) *generation.AdapterResponse {
	return a.resp
}

// recordingAlertSink captures alert events for assertions
type recordingAlertSink struct {
	mu     sync.Mutex
	warns  []string
	errors []string
}

func (s *recordingAlertSink) OnWarn(ctx context.Context, event string, fields map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warns = append(s.warns, event)
}

func (s *recordingAlertSink) OnError(ctx context.Context, event string, fields map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, event)
}

func (s *recordingAlertSink) warnEvents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.warns...)
}

func (s *recordingAlertSink) errorEvents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.errors...)
}
