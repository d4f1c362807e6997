package generation

// Factory constructs an adapter for one model binding. Factories must be
// cheap: one is invoked per dispatch/poll cycle.
type Factory func(ModelConfig) Adapter
