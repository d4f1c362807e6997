package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framefoundry/media-studio/gen-orchestrator/internal/generation"
)

func volcengineTestConfig(endpoint string) generation.ModelConfig {
	return generation.ModelConfig{
		ID:          "model-2",
		Slug:        "jimeng_vgfm_t2v_l20",
		AdapterName: AdapterNameVolcengine,
		OutputType:  generation.ResultTypeVideo,
		Provider: generation.ProviderConfig{
			Slug:         "volc-test",
			APIKeyID:     "AKID-test",
			APIKeySecret: "secret-test",
			APIEndpoint:  endpoint,
		},
	}
}

func TestVolcengineAdapter_Dispatch(t *testing.T) {
	t.Run("submits signed request and returns processing", func(t *testing.T) {
		var gotQuery url.Values
		var gotAuth, gotDate, gotContentSHA string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query()
			gotAuth = r.Header.Get("Authorization")
			gotDate = r.Header.Get("X-Date")
			gotContentSHA = r.Header.Get("X-Content-Sha256")

			json.NewEncoder(w).Encode(map[string]interface{}{
				"code": 10000,
				"data": map[string]interface{}{"task_id": "volc-task-7"},
			})
		}))
		defer server.Close()

		adapter := newVolcengineAdapter(volcengineTestConfig(server.URL))
		resp := adapter.Dispatch(context.Background(), &generation.GenerationRequest{
			Prompt: "a sailboat in a storm",
		})

		require.NoError(t, resp.Validate())
		assert.Equal(t, generation.StatusProcessing, resp.Status)
		assert.Equal(t, "volc-task-7", resp.ProviderTaskID)

		assert.Equal(t, "CVSync2AsyncSubmitTask", gotQuery.Get("Action"))
		assert.Equal(t, "2022-08-31", gotQuery.Get("Version"))
		assert.NotEmpty(t, gotDate)
		assert.NotEmpty(t, gotContentSHA)
		assert.Contains(t, gotAuth, "HMAC-SHA256 Credential=AKID-test/")
		assert.Contains(t, gotAuth, "SignedHeaders=content-type;host;x-content-sha256;x-date")
		assert.Contains(t, gotAuth, "Signature=")
	})

	t.Run("missing key pair fails without network call", func(t *testing.T) {
		t.Setenv("GENERATION_VOLC_TEST_API_KEY", "")

		cfg := volcengineTestConfig("http://unreachable.invalid")
		cfg.Provider.APIKeyID = ""
		cfg.Provider.APIKeySecret = ""

		adapter := newVolcengineAdapter(cfg)
		resp := adapter.Dispatch(context.Background(), &generation.GenerationRequest{Prompt: "hi"})

		require.NoError(t, resp.Validate())
		assert.Equal(t, generation.ErrCodeMissingAPIKey, resp.Error.Code)
	})

	t.Run("envelope error code is terminal", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"code":    50411,
				"message": "input image audit failed",
			})
		}))
		defer server.Close()

		adapter := newVolcengineAdapter(volcengineTestConfig(server.URL))
		resp := adapter.Dispatch(context.Background(), &generation.GenerationRequest{Prompt: "hi"})

		require.NoError(t, resp.Validate())
		assert.Equal(t, generation.StatusError, resp.Status)
		assert.False(t, resp.Error.IsRetryable)
		assert.Contains(t, resp.Error.Message, "50411")
	})
}

func TestVolcengineAdapter_CheckTaskStatus(t *testing.T) {
	statusServer := func(taskStatus string, imageURLs []string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "CVSync2AsyncGetResult", r.URL.Query().Get("Action"))

			var payload map[string]interface{}
			json.NewDecoder(r.Body).Decode(&payload)
			assert.Equal(t, "volc-task-7", payload["task_id"])

			json.NewEncoder(w).Encode(map[string]interface{}{
				"code": 10000,
				"data": map[string]interface{}{
					"task_id":    "volc-task-7",
					"status":     taskStatus,
					"image_urls": imageURLs,
				},
			})
		}))
	}

	checker := func(endpoint string) generation.StatusChecker {
		return newVolcengineAdapter(volcengineTestConfig(endpoint)).(generation.StatusChecker)
	}

	t.Run("in_queue maps to processing", func(t *testing.T) {
		server := statusServer("in_queue", nil)
		defer server.Close()

		resp, err := checker(server.URL).CheckTaskStatus(context.Background(), "volc-task-7")
		require.NoError(t, err)
		require.NoError(t, resp.Validate())
		assert.Equal(t, generation.StatusProcessing, resp.Status)
	})

	t.Run("done maps to success with typed results", func(t *testing.T) {
		server := statusServer("done", []string{"https://cdn.volc.example/out.mp4"})
		defer server.Close()

		resp, err := checker(server.URL).CheckTaskStatus(context.Background(), "volc-task-7")
		require.NoError(t, err)
		require.NoError(t, resp.Validate())
		assert.Equal(t, generation.StatusSuccess, resp.Status)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, generation.ResultTypeVideo, resp.Results[0].Type)
	})

	t.Run("done without urls is a terminal error", func(t *testing.T) {
		server := statusServer("done", nil)
		defer server.Close()

		resp, err := checker(server.URL).CheckTaskStatus(context.Background(), "volc-task-7")
		require.NoError(t, err)
		assert.Equal(t, generation.StatusError, resp.Status)
	})

	t.Run("expired task is a terminal error", func(t *testing.T) {
		server := statusServer("expired", nil)
		defer server.Close()

		resp, err := checker(server.URL).CheckTaskStatus(context.Background(), "volc-task-7")
		require.NoError(t, err)
		require.NoError(t, resp.Validate())
		assert.Equal(t, generation.StatusError, resp.Status)
		assert.Equal(t, "VOLCENGINE_TASK_EXPIRED", resp.Error.Code)
		assert.False(t, resp.Error.IsRetryable)
	})
}

func TestVolcengineAdapter_Signing(t *testing.T) {
	t.Run("signature is deterministic for fixed time and payload", func(t *testing.T) {
		cfg := volcengineTestConfig("")
		adapter := newVolcengineAdapter(cfg).(*volcengineAdapter)
		fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
		adapter.now = func() time.Time { return fixed }

		creds := generation.Credentials{KeyID: "AKID-test", KeySecret: "secret-test"}
		body := []byte(`{"prompt":"x","req_key":"jimeng_vgfm_t2v_l20"}`)

		first := adapter.signRequest(creds, http.MethodPost, "Action=CVSync2AsyncSubmitTask&Version=2022-08-31", body)
		second := adapter.signRequest(creds, http.MethodPost, "Action=CVSync2AsyncSubmitTask&Version=2022-08-31", body)

		assert.Equal(t, first.Get("Authorization"), second.Get("Authorization"))
		assert.Equal(t, "20260314T092653Z", first.Get("X-Date"))
	})

	t.Run("signature changes with the secret", func(t *testing.T) {
		adapter := newVolcengineAdapter(volcengineTestConfig("")).(*volcengineAdapter)
		fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
		adapter.now = func() time.Time { return fixed }

		body := []byte(`{"prompt":"x"}`)
		a := adapter.signRequest(generation.Credentials{KeyID: "k", KeySecret: "one"}, http.MethodPost, "", body)
		b := adapter.signRequest(generation.Credentials{KeyID: "k", KeySecret: "two"}, http.MethodPost, "", body)

		assert.NotEqual(t, a.Get("Authorization"), b.Get("Authorization"))
	})
}
