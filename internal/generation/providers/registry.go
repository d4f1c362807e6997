package providers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/framefoundry/media-studio/gen-orchestrator/internal/generation"
)

// registry is the single source of truth for adapter resolution. Adding a
// provider is a one-line registration here; nothing in the orchestration
// layer branches on adapter names.
var registry = map[string]generation.Factory{
	AdapterNameKie:        newKieAdapter,
	AdapterNameReplicate:  newReplicateAdapter,
	AdapterNamePollo:      newPolloAdapter,
	AdapterNameVolcengine: newVolcengineAdapter,
	AdapterNameTuzi:       newTuziAdapter,
	AdapterNameOpenAI:     newOpenAIAdapter,
	AdapterNameElevenLabs: newElevenLabsAdapter,
	AdapterNameGemini:     newGeminiAdapter,
}

// Registered adapter names
const (
	AdapterNameKie        = "kie"
	AdapterNameReplicate  = "replicate"
	AdapterNamePollo      = "pollo"
	AdapterNameVolcengine = "volcengine"
	AdapterNameTuzi       = "tuzi"
	AdapterNameOpenAI     = "openai"
	AdapterNameElevenLabs = "elevenlabs"
	AdapterNameGemini     = "gemini"
)

// UnknownAdapterError is returned when a model config names an adapter
// that was never registered. Its message lists every registered name so
// a misconfigured model is diagnosable from the error alone.
type UnknownAdapterError struct {
	Name       string
	Registered []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter %q (registered adapters: %s)",
		e.Name, strings.Join(e.Registered, ", "))
}

// NewAdapter resolves a model config to a constructed adapter instance
func NewAdapter(cfg generation.ModelConfig) (generation.Adapter, error) {
	factory, ok := registry[cfg.AdapterName]
	if !ok {
		return nil, &UnknownAdapterError{Name: cfg.AdapterName, Registered: ListAdapters()}
	}
	return factory(cfg), nil
}

// IsAdapterAvailable reports whether an adapter name is registered
func IsAdapterAvailable(name string) bool {
	_, ok := registry[name]
	return ok
}

// ListAdapters returns the registered adapter names, sorted
func ListAdapters() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
