package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/framefoundry/media-studio/gen-orchestrator/internal/generation"
)

const polloDefaultBaseURL = "https://pollo.ai"

// polloAdapter drives Pollo's platform generation API (video models).
// Auth is an x-api-key header; task status uses the
// waiting/queuing/generating/succeed/failed vocabulary.
type polloAdapter struct {
	cfg    generation.ModelConfig
	client *apiClient
}

func newPolloAdapter(cfg generation.ModelConfig) generation.Adapter {
	return &polloAdapter{cfg: cfg, client: newAPIClient(AdapterNamePollo)}
}

func (a *polloAdapter) Name() string { return AdapterNamePollo }

func (a *polloAdapter) baseURL() string {
	if a.cfg.Provider.APIEndpoint != "" {
		return a.cfg.Provider.APIEndpoint
	}
	return polloDefaultBaseURL
}

func (a *polloAdapter) authHeader(creds generation.Credentials) http.Header {
	header := http.Header{}
	header.Set("x-api-key", creds.APIKey)
	return header
}

type polloTaskEnvelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID      string `json:"taskId"`
		Status      string `json:"status"` // pending, processing, succeed, failed
		Progress    *int   `json:"progress,omitempty"`
		FailReason  string `json:"failReason,omitempty"`
		Generations []struct {
			URL string `json:"url"`
		} `json:"generations,omitempty"`
	} `json:"data"`
}

func (a *polloAdapter) Dispatch(ctx context.Context, req *generation.GenerationRequest) *generation.AdapterResponse {
	creds := generation.ResolveCredentials(a.cfg.Provider)
	if creds.APIKey == "" {
		return generation.MissingAPIKeyResponse(a.cfg.Provider.Slug)
	}

	if req.Prompt == "" && len(req.InputImages) == 0 {
		return generation.ErrorResponse(generation.ErrCodeInvalidRequest,
			"pollo requires a prompt or an input image", false)
	}

	input := map[string]interface{}{
		"prompt": req.Prompt,
	}
	if len(req.InputImages) > 0 {
		input["image"] = req.InputImages[0]
	}
	for key, value := range req.Parameters {
		input[key] = value
	}

	payload := map[string]interface{}{"input": input}
	dispatchURL := fmt.Sprintf("%s/api/platform/generation/%s", a.baseURL(), a.cfg.Slug)

	body, status, err := a.client.doJSON(ctx, http.MethodPost, dispatchURL, a.authHeader(creds), payload)
	if err != nil {
		return transportErrorResponse(AdapterNamePollo, err)
	}
	if status != http.StatusOK {
		return statusErrorResponse(AdapterNamePollo, status, body)
	}

	var envelope polloTaskEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return generation.ErrorResponse(generation.ErrCodeProviderError,
			fmt.Sprintf("pollo returned unparseable response: %v", err), true)
	}
	if envelope.Data.TaskID == "" {
		return generation.ErrorResponse(generation.ErrCodeProviderError,
			fmt.Sprintf("pollo returned no taskId: %s", envelope.Msg), true)
	}

	return generation.ProcessingResponse(envelope.Data.TaskID)
}

func (a *polloAdapter) CheckTaskStatus(ctx context.Context, providerTaskID string) (*generation.AdapterResponse, error) {
	creds := generation.ResolveCredentials(a.cfg.Provider)
	if creds.APIKey == "" {
		return generation.MissingAPIKeyResponse(a.cfg.Provider.Slug), nil
	}

	pollURL := fmt.Sprintf("%s/api/platform/generation/%s/status", a.baseURL(), providerTaskID)
	body, status, err := a.client.doJSON(ctx, http.MethodGet, pollURL, a.authHeader(creds), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return pollStatusResult(AdapterNamePollo, status, body)
	}

	var envelope polloTaskEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("pollo returned unparseable status response: %w", err)
	}

	switch envelope.Data.Status {
	case "succeed":
		if len(envelope.Data.Generations) == 0 {
			return generation.ErrorResponse(generation.ErrCodeProviderError,
				"pollo reported succeed but returned no generations", false), nil
		}
		results := make([]generation.GenerationResult, 0, len(envelope.Data.Generations))
		for _, gen := range envelope.Data.Generations {
			results = append(results, generation.GenerationResult{
				Type: a.cfg.OutputType,
				URL:  gen.URL,
			})
		}
		return generation.SuccessResponse(results), nil
	case "failed":
		message := envelope.Data.FailReason
		if message == "" {
			message = "pollo task failed without a reason"
		}
		return generation.ErrorResponse("POLLO_GENERATION_FAILED", message, false), nil
	case "pending", "processing":
		resp := generation.ProcessingResponse(providerTaskID).WithMessage("pollo status: " + envelope.Data.Status)
		if envelope.Data.Progress != nil {
			resp = resp.WithProgress(float64(*envelope.Data.Progress) / 100)
		}
		return resp, nil
	default:
		return nil, fmt.Errorf("pollo returned unknown task status %q", envelope.Data.Status)
	}
}
