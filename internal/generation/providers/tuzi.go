package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/framefoundry/media-studio/gen-orchestrator/internal/generation"
)

const tuziDefaultBaseURL = "https://api.tu-zi.com"

// tuziAdapter drives TuZi's Midjourney-compatible relay. Submission and
// polling use the mj-proxy shape: numeric result code on submit, then a
// fetch endpoint with NOT_START/SUBMITTED/IN_PROGRESS/SUCCESS/FAILURE
// status and a "NN%" progress string.
type tuziAdapter struct {
	cfg    generation.ModelConfig
	client *apiClient
}

func newTuziAdapter(cfg generation.ModelConfig) generation.Adapter {
	return &tuziAdapter{cfg: cfg, client: newAPIClient(AdapterNameTuzi)}
}

func (a *tuziAdapter) Name() string { return AdapterNameTuzi }

func (a *tuziAdapter) baseURL() string {
	if a.cfg.Provider.APIEndpoint != "" {
		return a.cfg.Provider.APIEndpoint
	}
	return tuziDefaultBaseURL
}

func (a *tuziAdapter) authHeader(creds generation.Credentials) http.Header {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+creds.APIKey)
	return header
}

type tuziSubmitResponse struct {
	Code        int    `json:"code"` // 1 = queued, 21 = exists, 22 = queued with warning
	Description string `json:"description"`
	Result      string `json:"result"` // the task id
}

type tuziFetchResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"` // NOT_START, SUBMITTED, IN_PROGRESS, SUCCESS, FAILURE
	Progress   string `json:"progress"`
	ImageURL   string `json:"imageUrl"`
	FailReason string `json:"failReason"`
}

func (a *tuziAdapter) Dispatch(ctx context.Context, req *generation.GenerationRequest) *generation.AdapterResponse {
	creds := generation.ResolveCredentials(a.cfg.Provider)
	if creds.APIKey == "" {
		return generation.MissingAPIKeyResponse(a.cfg.Provider.Slug)
	}

	if req.Prompt == "" {
		return generation.ErrorResponse(generation.ErrCodeInvalidRequest,
			"tuzi requires a non-empty prompt", false)
	}

	payload := map[string]interface{}{
		"prompt": req.Prompt,
	}
	if len(req.InputImages) > 0 {
		payload["base64Array"] = req.InputImages
	}
	for key, value := range req.Parameters {
		payload[key] = value
	}

	body, status, err := a.client.doJSON(ctx, http.MethodPost, a.baseURL()+"/mj/submit/imagine", a.authHeader(creds), payload)
	if err != nil {
		return transportErrorResponse(AdapterNameTuzi, err)
	}
	if status != http.StatusOK {
		return statusErrorResponse(AdapterNameTuzi, status, body)
	}

	var resp tuziSubmitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return generation.ErrorResponse(generation.ErrCodeProviderError,
			fmt.Sprintf("tuzi returned unparseable response: %v", err), true)
	}

	switch resp.Code {
	case 1, 21, 22:
		if resp.Result == "" {
			return generation.ErrorResponse(generation.ErrCodeProviderError,
				"tuzi accepted the job but returned no task id", true)
		}
		return generation.ProcessingResponse(resp.Result)
	default:
		return generation.ErrorResponse("TUZI_SUBMIT_REJECTED",
			fmt.Sprintf("tuzi rejected the submission (code %d): %s", resp.Code, resp.Description), false)
	}
}

func (a *tuziAdapter) CheckTaskStatus(ctx context.Context, providerTaskID string) (*generation.AdapterResponse, error) {
	creds := generation.ResolveCredentials(a.cfg.Provider)
	if creds.APIKey == "" {
		return generation.MissingAPIKeyResponse(a.cfg.Provider.Slug), nil
	}

	pollURL := fmt.Sprintf("%s/mj/task/%s/fetch", a.baseURL(), providerTaskID)
	body, status, err := a.client.doJSON(ctx, http.MethodGet, pollURL, a.authHeader(creds), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return pollStatusResult(AdapterNameTuzi, status, body)
	}

	var resp tuziFetchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("tuzi returned unparseable status response: %w", err)
	}

	switch resp.Status {
	case "SUCCESS":
		if resp.ImageURL == "" {
			return generation.ErrorResponse(generation.ErrCodeProviderError,
				"tuzi reported SUCCESS but returned no imageUrl", false), nil
		}
		return generation.SuccessResponse([]generation.GenerationResult{{
			Type: a.cfg.OutputType,
			URL:  resp.ImageURL,
		}}), nil
	case "FAILURE":
		message := resp.FailReason
		if message == "" {
			message = "tuzi task failed without a reason"
		}
		retryable := strings.Contains(strings.ToLower(message), "queue is full")
		return generation.ErrorResponse("TUZI_GENERATION_FAILED", message, retryable), nil
	case "NOT_START", "SUBMITTED", "IN_PROGRESS":
		out := generation.ProcessingResponse(providerTaskID).WithMessage("tuzi status: " + resp.Status)
		if progress, ok := parsePercent(resp.Progress); ok {
			out = out.WithProgress(progress)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("tuzi returned unknown task status %q", resp.Status)
	}
}

// parsePercent converts tuzi's "45%" progress strings to a fraction
func parsePercent(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 || value > 100 {
		return 0, false
	}
	return value / 100, true
}
