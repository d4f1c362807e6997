package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/framefoundry/media-studio/gen-orchestrator/internal/generation"
)

const replicateDefaultBaseURL = "https://api.replicate.com"

// replicateAdapter drives Replicate's predictions API. The model slug is
// the pinned version identifier; output is either a single URL or an
// array of URLs depending on the model.
type replicateAdapter struct {
	cfg    generation.ModelConfig
	client *apiClient
}

func newReplicateAdapter(cfg generation.ModelConfig) generation.Adapter {
	return &replicateAdapter{cfg: cfg, client: newAPIClient(AdapterNameReplicate)}
}

func (a *replicateAdapter) Name() string { return AdapterNameReplicate }

func (a *replicateAdapter) baseURL() string {
	if a.cfg.Provider.APIEndpoint != "" {
		return a.cfg.Provider.APIEndpoint
	}
	return replicateDefaultBaseURL
}

func (a *replicateAdapter) authHeader(creds generation.Credentials) http.Header {
	header := http.Header{}
	header.Set("Authorization", "Token "+creds.APIKey)
	return header
}

type replicatePrediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"` // starting, processing, succeeded, failed, canceled
	Output json.RawMessage `json:"output"`
	Error  *string         `json:"error"`
	Detail string          `json:"detail"`
}

func (a *replicateAdapter) Dispatch(ctx context.Context, req *generation.GenerationRequest) *generation.AdapterResponse {
	creds := generation.ResolveCredentials(a.cfg.Provider)
	if creds.APIKey == "" {
		return generation.MissingAPIKeyResponse(a.cfg.Provider.Slug)
	}

	input := map[string]interface{}{
		"prompt": req.Prompt,
	}
	if len(req.InputImages) > 0 {
		input["image"] = req.InputImages[0]
	}
	if req.NumberOfOutputs > 0 {
		input["num_outputs"] = req.NumberOfOutputs
	}
	for key, value := range req.Parameters {
		input[key] = value
	}

	payload := map[string]interface{}{
		"version": a.cfg.Slug,
		"input":   input,
	}

	body, status, err := a.client.doJSON(ctx, http.MethodPost, a.baseURL()+"/v1/predictions", a.authHeader(creds), payload)
	if err != nil {
		return transportErrorResponse(AdapterNameReplicate, err)
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return statusErrorResponse(AdapterNameReplicate, status, body)
	}

	var prediction replicatePrediction
	if err := json.Unmarshal(body, &prediction); err != nil {
		return generation.ErrorResponse(generation.ErrCodeProviderError,
			fmt.Sprintf("replicate returned unparseable response: %v", err), true)
	}
	if prediction.ID == "" {
		return generation.ErrorResponse(generation.ErrCodeProviderError,
			"replicate returned no prediction id", true)
	}

	// Some models resolve synchronously when the prediction is cached
	if prediction.Status == "succeeded" {
		return a.toSuccess(&prediction)
	}

	return generation.ProcessingResponse(prediction.ID)
}

func (a *replicateAdapter) CheckTaskStatus(ctx context.Context, providerTaskID string) (*generation.AdapterResponse, error) {
	creds := generation.ResolveCredentials(a.cfg.Provider)
	if creds.APIKey == "" {
		return generation.MissingAPIKeyResponse(a.cfg.Provider.Slug), nil
	}

	pollURL := fmt.Sprintf("%s/v1/predictions/%s", a.baseURL(), providerTaskID)
	body, status, err := a.client.doJSON(ctx, http.MethodGet, pollURL, a.authHeader(creds), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return pollStatusResult(AdapterNameReplicate, status, body)
	}

	var prediction replicatePrediction
	if err := json.Unmarshal(body, &prediction); err != nil {
		return nil, fmt.Errorf("replicate returned unparseable status response: %w", err)
	}

	switch prediction.Status {
	case "succeeded":
		return a.toSuccess(&prediction), nil
	case "failed":
		message := "replicate prediction failed"
		if prediction.Error != nil && *prediction.Error != "" {
			message = *prediction.Error
		}
		return generation.ErrorResponse("REPLICATE_PREDICTION_FAILED", message, false), nil
	case "canceled":
		return generation.ErrorResponse("REPLICATE_PREDICTION_CANCELED",
			"replicate prediction was canceled", false), nil
	case "starting", "processing":
		return generation.ProcessingResponse(providerTaskID).WithMessage("replicate status: " + prediction.Status), nil
	default:
		return nil, fmt.Errorf("replicate returned unknown prediction status %q", prediction.Status)
	}
}

// toSuccess normalizes replicate output, which is either a JSON string or
// an array of strings depending on the model
func (a *replicateAdapter) toSuccess(prediction *replicatePrediction) *generation.AdapterResponse {
	var urls []string
	if err := json.Unmarshal(prediction.Output, &urls); err != nil {
		var single string
		if err := json.Unmarshal(prediction.Output, &single); err != nil || single == "" {
			return generation.ErrorResponse(generation.ErrCodeProviderError,
				"replicate prediction succeeded but output is unreadable", false)
		}
		urls = []string{single}
	}
	if len(urls) == 0 {
		return generation.ErrorResponse(generation.ErrCodeProviderError,
			"replicate prediction succeeded with empty output", false)
	}

	results := make([]generation.GenerationResult, 0, len(urls))
	for _, outputURL := range urls {
		results = append(results, generation.GenerationResult{
			Type: a.cfg.OutputType,
			URL:  outputURL,
		})
	}
	return generation.SuccessResponse(results)
}
