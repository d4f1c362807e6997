package providers

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framefoundry/media-studio/gen-orchestrator/internal/generation"
)

func TestNewAdapter(t *testing.T) {
	t.Run("resolves every registered adapter", func(t *testing.T) {
		for _, name := range ListAdapters() {
			adapter, err := NewAdapter(generation.ModelConfig{AdapterName: name})
			require.NoError(t, err, "adapter %s", name)
			require.NotNil(t, adapter)
			assert.Equal(t, name, adapter.Name())
		}
	})

	t.Run("unknown adapter returns typed error listing registered names", func(t *testing.T) {
		adapter, err := NewAdapter(generation.ModelConfig{AdapterName: "dall-e-9000"})
		assert.Nil(t, adapter)
		require.Error(t, err)

		var unknownErr *UnknownAdapterError
		require.ErrorAs(t, err, &unknownErr)
		assert.Equal(t, "dall-e-9000", unknownErr.Name)
		assert.Contains(t, err.Error(), `unknown adapter "dall-e-9000"`)
		for _, name := range ListAdapters() {
			assert.Contains(t, err.Error(), name)
		}
	})

	t.Run("empty adapter name is unknown", func(t *testing.T) {
		_, err := NewAdapter(generation.ModelConfig{})
		assert.Error(t, err)
	})
}

func TestIsAdapterAvailable(t *testing.T) {
	assert.True(t, IsAdapterAvailable(AdapterNameKie))
	assert.True(t, IsAdapterAvailable(AdapterNameOpenAI))
	assert.False(t, IsAdapterAvailable("midjourney-direct"))
	assert.False(t, IsAdapterAvailable(""))
}

func TestListAdapters(t *testing.T) {
	names := ListAdapters()
	assert.Len(t, names, 8)
	assert.True(t, sort.StringsAreSorted(names))
	assert.Contains(t, names, AdapterNameVolcengine)
	assert.Contains(t, names, AdapterNameElevenLabs)
}

func TestStatusCheckerCapability(t *testing.T) {
	// Async providers expose status polling; synchronous providers must not.
	asyncNames := []string{AdapterNameKie, AdapterNameReplicate, AdapterNamePollo, AdapterNameVolcengine, AdapterNameTuzi}
	syncNames := []string{AdapterNameOpenAI, AdapterNameElevenLabs, AdapterNameGemini}

	for _, name := range asyncNames {
		t.Run(name+" supports polling", func(t *testing.T) {
			adapter, err := NewAdapter(generation.ModelConfig{AdapterName: name})
			require.NoError(t, err)
			_, ok := adapter.(generation.StatusChecker)
			assert.True(t, ok)
		})
	}

	for _, name := range syncNames {
		t.Run(name+" is synchronous", func(t *testing.T) {
			adapter, err := NewAdapter(generation.ModelConfig{AdapterName: name})
			require.NoError(t, err)
			_, ok := adapter.(generation.StatusChecker)
			assert.False(t, ok)
		})
	}
}
