package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/framefoundry/media-studio/gen-orchestrator/internal/generation"
)

const openaiDefaultBaseURL = "https://api.openai.com"

// openaiAdapter drives the OpenAI images API. OpenAI image generation is
// synchronous, so this adapter deliberately does not implement
// StatusChecker: Dispatch returns the final results in one call.
type openaiAdapter struct {
	cfg    generation.ModelConfig
	client *apiClient
}

func newOpenAIAdapter(cfg generation.ModelConfig) generation.Adapter {
	return &openaiAdapter{cfg: cfg, client: newAPIClient(AdapterNameOpenAI)}
}

func (a *openaiAdapter) Name() string { return AdapterNameOpenAI }

func (a *openaiAdapter) baseURL() string {
	if a.cfg.Provider.APIEndpoint != "" {
		return a.cfg.Provider.APIEndpoint
	}
	return openaiDefaultBaseURL
}

type openaiImagesResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *openaiAdapter) Dispatch(ctx context.Context, req *generation.GenerationRequest) *generation.AdapterResponse {
	creds := generation.ResolveCredentials(a.cfg.Provider)
	if creds.APIKey == "" {
		return generation.MissingAPIKeyResponse(a.cfg.Provider.Slug)
	}

	if req.Prompt == "" {
		return generation.ErrorResponse(generation.ErrCodeInvalidRequest,
			"openai requires a non-empty prompt", false)
	}

	payload := map[string]interface{}{
		"model":  a.cfg.Slug,
		"prompt": req.Prompt,
	}
	if req.NumberOfOutputs > 0 {
		payload["n"] = req.NumberOfOutputs
	}
	for key, value := range req.Parameters {
		payload[key] = value
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+creds.APIKey)

	body, status, err := a.client.doJSON(ctx, http.MethodPost, a.baseURL()+"/v1/images/generations", header, payload)
	if err != nil {
		return transportErrorResponse(AdapterNameOpenAI, err)
	}
	if status != http.StatusOK {
		// OpenAI error payloads are informative; prefer their message
		var resp openaiImagesResponse
		if json.Unmarshal(body, &resp) == nil && resp.Error != nil {
			retryable := status == http.StatusTooManyRequests || status >= 500
			code := "OPENAI_" + resp.Error.Type
			if status == http.StatusTooManyRequests {
				code = generation.ErrCodeRateLimited
			}
			return generation.ErrorResponse(code, resp.Error.Message, retryable)
		}
		return statusErrorResponse(AdapterNameOpenAI, status, body)
	}

	var resp openaiImagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return generation.ErrorResponse(generation.ErrCodeProviderError,
			fmt.Sprintf("openai returned unparseable response: %v", err), true)
	}
	if len(resp.Data) == 0 {
		return generation.ErrorResponse(generation.ErrCodeProviderError,
			"openai returned no images", true)
	}

	results := make([]generation.GenerationResult, 0, len(resp.Data))
	for _, image := range resp.Data {
		resultURL := image.URL
		if resultURL == "" && image.B64JSON != "" {
			resultURL = "data:image/png;base64," + image.B64JSON
		}
		if resultURL == "" {
			continue
		}
		results = append(results, generation.GenerationResult{
			Type: generation.ResultTypeImage,
			URL:  resultURL,
		})
	}
	if len(results) == 0 {
		return generation.ErrorResponse(generation.ErrCodeProviderError,
			"openai returned images without url or b64_json", true)
	}

	return generation.SuccessResponse(results)
}
