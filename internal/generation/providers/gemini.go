package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/framefoundry/media-studio/gen-orchestrator/internal/generation"
)

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com"

// geminiAdapter drives Google's generateContent endpoint for image-output
// models. Auth travels as a query-string key; the call is synchronous and
// images come back inline as base64 parts, so there is no StatusChecker.
type geminiAdapter struct {
	cfg    generation.ModelConfig
	client *apiClient
}

func newGeminiAdapter(cfg generation.ModelConfig) generation.Adapter {
	return &geminiAdapter{cfg: cfg, client: newAPIClient(AdapterNameGemini)}
}

func (a *geminiAdapter) Name() string { return AdapterNameGemini }

func (a *geminiAdapter) baseURL() string {
	if a.cfg.Provider.APIEndpoint != "" {
		return a.cfg.Provider.APIEndpoint
	}
	return geminiDefaultBaseURL
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text       string `json:"text,omitempty"`
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData,omitempty"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *geminiAdapter) Dispatch(ctx context.Context, req *generation.GenerationRequest) *generation.AdapterResponse {
	creds := generation.ResolveCredentials(a.cfg.Provider)
	if creds.APIKey == "" {
		return generation.MissingAPIKeyResponse(a.cfg.Provider.Slug)
	}

	if req.Prompt == "" {
		return generation.ErrorResponse(generation.ErrCodeInvalidRequest,
			"gemini requires a non-empty prompt", false)
	}

	parts := []map[string]interface{}{
		{"text": req.Prompt},
	}
	for _, image := range req.InputImages {
		inline, err := dataURIToInlineData(image)
		if err != nil {
			return generation.ErrorResponse(generation.ErrCodeInvalidRequest,
				fmt.Sprintf("gemini input images must be data URIs: %v", err), false)
		}
		parts = append(parts, map[string]interface{}{"inlineData": inline})
	}

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": parts},
		},
		"generationConfig": map[string]interface{}{
			"responseModalities": []string{"IMAGE"},
		},
	}

	dispatchURL := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		a.baseURL(), a.cfg.Slug, url.QueryEscape(creds.APIKey))

	body, status, err := a.client.doJSON(ctx, http.MethodPost, dispatchURL, nil, payload)
	if err != nil {
		return transportErrorResponse(AdapterNameGemini, err)
	}
	if status != http.StatusOK {
		var resp geminiGenerateResponse
		if json.Unmarshal(body, &resp) == nil && resp.Error != nil {
			retryable := status == http.StatusTooManyRequests || status >= 500
			code := "GEMINI_" + resp.Error.Status
			if status == http.StatusTooManyRequests {
				code = generation.ErrCodeRateLimited
			}
			return generation.ErrorResponse(code, resp.Error.Message, retryable)
		}
		return statusErrorResponse(AdapterNameGemini, status, body)
	}

	var resp geminiGenerateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return generation.ErrorResponse(generation.ErrCodeProviderError,
			fmt.Sprintf("gemini returned unparseable response: %v", err), true)
	}

	var results []generation.GenerationResult
	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			mimeType := part.InlineData.MimeType
			if mimeType == "" {
				mimeType = "image/png"
			}
			results = append(results, generation.GenerationResult{
				Type: generation.ResultTypeImage,
				URL:  "data:" + mimeType + ";base64," + part.InlineData.Data,
			})
		}
	}
	if len(results) == 0 {
		return generation.ErrorResponse(generation.ErrCodeProviderError,
			"gemini returned no inline image data", false)
	}

	return generation.SuccessResponse(results)
}

// dataURIToInlineData splits "data:<mime>;base64,<data>" into the
// inlineData shape generateContent expects
func dataURIToInlineData(uri string) (map[string]string, error) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, fmt.Errorf("not a data URI")
	}
	meta, data, found := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !found {
		return nil, fmt.Errorf("malformed data URI")
	}
	mimeType := strings.TrimSuffix(meta, ";base64")
	if mimeType == "" || mimeType == meta {
		return nil, fmt.Errorf("data URI must be base64-encoded")
	}
	return map[string]string{"mimeType": mimeType, "data": data}, nil
}
