package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/framefoundry/media-studio/gen-orchestrator/internal/generation"
)

const (
	kieDefaultBaseURL = "https://api.kie.ai"
	kieMaxInputImages = 5
)

// kieAdapter drives Kie.ai's unified jobs API. Kie is fully asynchronous:
// createTask returns a taskId, recordInfo reports state.
type kieAdapter struct {
	cfg    generation.ModelConfig
	client *apiClient
}

func newKieAdapter(cfg generation.ModelConfig) generation.Adapter {
	return &kieAdapter{cfg: cfg, client: newAPIClient(AdapterNameKie)}
}

func (a *kieAdapter) Name() string { return AdapterNameKie }

func (a *kieAdapter) baseURL() string {
	if a.cfg.Provider.APIEndpoint != "" {
		return a.cfg.Provider.APIEndpoint
	}
	return kieDefaultBaseURL
}

func (a *kieAdapter) authHeader(creds generation.Credentials) http.Header {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+creds.APIKey)
	return header
}

type kieCreateTaskResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
}

type kieRecordInfoResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID     string `json:"taskId"`
		State      string `json:"state"` // waiting, queuing, generating, success, fail
		FailMsg    string `json:"failMsg"`
		ResultJSON string `json:"resultJson"`
	} `json:"data"`
}

func (a *kieAdapter) Dispatch(ctx context.Context, req *generation.GenerationRequest) *generation.AdapterResponse {
	creds := generation.ResolveCredentials(a.cfg.Provider)
	if creds.APIKey == "" {
		return generation.MissingAPIKeyResponse(a.cfg.Provider.Slug)
	}

	if len(req.InputImages) > kieMaxInputImages {
		return generation.ErrorResponse(
			generation.ErrCodeInvalidRequest,
			fmt.Sprintf("kie accepts at most %d input images, got %d", kieMaxInputImages, len(req.InputImages)),
			false,
		)
	}

	input := map[string]interface{}{
		"prompt": req.Prompt,
	}
	if len(req.InputImages) > 0 {
		input["image_urls"] = req.InputImages
	}
	if req.NumberOfOutputs > 0 {
		input["output_count"] = req.NumberOfOutputs
	}
	for key, value := range req.Parameters {
		input[key] = value
	}

	payload := map[string]interface{}{
		"model": a.cfg.Slug,
		"input": input,
	}

	body, status, err := a.client.doJSON(ctx, http.MethodPost, a.baseURL()+"/api/v1/jobs/createTask", a.authHeader(creds), payload)
	if err != nil {
		return transportErrorResponse(AdapterNameKie, err)
	}
	if status != http.StatusOK {
		return statusErrorResponse(AdapterNameKie, status, body)
	}

	var resp kieCreateTaskResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return generation.ErrorResponse(generation.ErrCodeProviderError,
			fmt.Sprintf("kie returned unparseable response: %v", err), true)
	}

	// Kie wraps API-level errors in a 200 envelope
	if resp.Code != 200 {
		retryable := resp.Code == 429 || resp.Code >= 500
		code := "KIE_ERROR"
		if resp.Code == 429 {
			code = generation.ErrCodeRateLimited
		}
		return generation.ErrorResponse(code,
			fmt.Sprintf("kie createTask failed (code %d): %s", resp.Code, resp.Msg), retryable)
	}
	if resp.Data.TaskID == "" {
		return generation.ErrorResponse(generation.ErrCodeProviderError,
			"kie createTask returned no taskId", true)
	}

	return generation.ProcessingResponse(resp.Data.TaskID)
}

func (a *kieAdapter) CheckTaskStatus(ctx context.Context, providerTaskID string) (*generation.AdapterResponse, error) {
	creds := generation.ResolveCredentials(a.cfg.Provider)
	if creds.APIKey == "" {
		return generation.MissingAPIKeyResponse(a.cfg.Provider.Slug), nil
	}

	pollURL := fmt.Sprintf("%s/api/v1/jobs/recordInfo?taskId=%s", a.baseURL(), url.QueryEscape(providerTaskID))
	body, status, err := a.client.doJSON(ctx, http.MethodGet, pollURL, a.authHeader(creds), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return pollStatusResult(AdapterNameKie, status, body)
	}

	var resp kieRecordInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("kie returned unparseable status response: %w", err)
	}

	switch resp.Data.State {
	case "success":
		results, err := a.parseResults(resp.Data.ResultJSON)
		if err != nil {
			return generation.ErrorResponse(generation.ErrCodeProviderError,
				fmt.Sprintf("kie reported success but results are unreadable: %v", err), false), nil
		}
		return generation.SuccessResponse(results), nil
	case "fail":
		message := resp.Data.FailMsg
		if message == "" {
			message = "kie task failed without a message"
		}
		return generation.ErrorResponse("KIE_GENERATION_FAILED", message, false), nil
	case "waiting", "queuing", "generating":
		return generation.ProcessingResponse(providerTaskID).WithMessage("kie state: " + resp.Data.State), nil
	default:
		return nil, fmt.Errorf("kie returned unknown task state %q", resp.Data.State)
	}
}

// parseResults unwraps Kie's resultJson envelope ({"resultUrls": [...]})
func (a *kieAdapter) parseResults(resultJSON string) ([]generation.GenerationResult, error) {
	var parsed struct {
		ResultURLs []string `json:"resultUrls"`
	}
	if err := json.Unmarshal([]byte(resultJSON), &parsed); err != nil {
		return nil, err
	}
	if len(parsed.ResultURLs) == 0 {
		return nil, fmt.Errorf("resultJson carries no resultUrls")
	}

	results := make([]generation.GenerationResult, 0, len(parsed.ResultURLs))
	for _, resultURL := range parsed.ResultURLs {
		results = append(results, generation.GenerationResult{
			Type: a.cfg.OutputType,
			URL:  resultURL,
		})
	}
	return results, nil
}
