package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/framefoundry/media-studio/gen-orchestrator/internal/generation"
)

const (
	volcengineDefaultHost = "visual.volcengineapi.com"
	volcengineRegion      = "cn-north-1"
	volcengineService     = "cv"
	volcengineVersion     = "2022-08-31"

	volcengineSubmitAction = "CVSync2AsyncSubmitTask"
	volcengineResultAction = "CVSync2AsyncGetResult"

	// API-level success code inside the HTTP 200 envelope
	volcengineCodeOK = 10000
)

// volcengineAdapter drives Volcengine's visual (Jimeng) API. Every call
// is HMAC-SHA256 signed with a key-id/secret pair; credentials therefore
// resolve to the KeyID/KeySecret arm rather than a bearer key.
type volcengineAdapter struct {
	cfg    generation.ModelConfig
	client *apiClient
	now    func() time.Time
}

func newVolcengineAdapter(cfg generation.ModelConfig) generation.Adapter {
	return &volcengineAdapter{cfg: cfg, client: newAPIClient(AdapterNameVolcengine), now: time.Now}
}

func (a *volcengineAdapter) Name() string { return AdapterNameVolcengine }

func (a *volcengineAdapter) host() string {
	if a.cfg.Provider.APIEndpoint != "" {
		if u, err := url.Parse(a.cfg.Provider.APIEndpoint); err == nil && u.Host != "" {
			return u.Host
		}
		return a.cfg.Provider.APIEndpoint
	}
	return volcengineDefaultHost
}

func (a *volcengineAdapter) scheme() string {
	if strings.HasPrefix(a.cfg.Provider.APIEndpoint, "http://") {
		return "http"
	}
	return "https"
}

type volcengineEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID    string   `json:"task_id"`
		Status    string   `json:"status"` // in_queue, generating, done, not_found, expired
		ImageURLs []string `json:"image_urls"`
	} `json:"data"`
}

func (a *volcengineAdapter) Dispatch(ctx context.Context, req *generation.GenerationRequest) *generation.AdapterResponse {
	creds := generation.ResolveCredentials(a.cfg.Provider)
	if creds.KeyID == "" || creds.KeySecret == "" {
		return generation.MissingAPIKeyResponse(a.cfg.Provider.Slug)
	}

	payload := map[string]interface{}{
		"req_key": a.cfg.Slug,
		"prompt":  req.Prompt,
	}
	if len(req.InputImages) > 0 {
		payload["image_urls"] = req.InputImages
	}
	for key, value := range req.Parameters {
		payload[key] = value
	}

	body, status, err := a.signedCall(ctx, creds, volcengineSubmitAction, payload)
	if err != nil {
		return transportErrorResponse(AdapterNameVolcengine, err)
	}
	if status != http.StatusOK {
		return statusErrorResponse(AdapterNameVolcengine, status, body)
	}

	var envelope volcengineEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return generation.ErrorResponse(generation.ErrCodeProviderError,
			fmt.Sprintf("volcengine returned unparseable response: %v", err), true)
	}
	if envelope.Code != volcengineCodeOK {
		return generation.ErrorResponse("VOLCENGINE_ERROR",
			fmt.Sprintf("volcengine submit failed (code %d): %s", envelope.Code, envelope.Message), false)
	}
	if envelope.Data.TaskID == "" {
		return generation.ErrorResponse(generation.ErrCodeProviderError,
			"volcengine submit returned no task_id", true)
	}

	return generation.ProcessingResponse(envelope.Data.TaskID)
}

func (a *volcengineAdapter) CheckTaskStatus(ctx context.Context, providerTaskID string) (*generation.AdapterResponse, error) {
	creds := generation.ResolveCredentials(a.cfg.Provider)
	if creds.KeyID == "" || creds.KeySecret == "" {
		return generation.MissingAPIKeyResponse(a.cfg.Provider.Slug), nil
	}

	payload := map[string]interface{}{
		"req_key": a.cfg.Slug,
		"task_id": providerTaskID,
	}

	body, status, err := a.signedCall(ctx, creds, volcengineResultAction, payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return pollStatusResult(AdapterNameVolcengine, status, body)
	}

	var envelope volcengineEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("volcengine returned unparseable status response: %w", err)
	}
	if envelope.Code != volcengineCodeOK {
		return generation.ErrorResponse("VOLCENGINE_ERROR",
			fmt.Sprintf("volcengine result query failed (code %d): %s", envelope.Code, envelope.Message), false), nil
	}

	switch envelope.Data.Status {
	case "done":
		if len(envelope.Data.ImageURLs) == 0 {
			return generation.ErrorResponse(generation.ErrCodeProviderError,
				"volcengine reported done but returned no image_urls", false), nil
		}
		results := make([]generation.GenerationResult, 0, len(envelope.Data.ImageURLs))
		for _, imageURL := range envelope.Data.ImageURLs {
			results = append(results, generation.GenerationResult{
				Type: a.cfg.OutputType,
				URL:  imageURL,
			})
		}
		return generation.SuccessResponse(results), nil
	case "not_found", "expired":
		return generation.ErrorResponse("VOLCENGINE_TASK_"+strings.ToUpper(envelope.Data.Status),
			fmt.Sprintf("volcengine task is %s", envelope.Data.Status), false), nil
	case "in_queue", "generating":
		return generation.ProcessingResponse(providerTaskID).WithMessage("volcengine status: " + envelope.Data.Status), nil
	default:
		return nil, fmt.Errorf("volcengine returned unknown task status %q", envelope.Data.Status)
	}
}

// signedCall issues one signed POST against the visual API
func (a *volcengineAdapter) signedCall(ctx context.Context, creds generation.Credentials, action string, payload map[string]interface{}) ([]byte, int, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal volcengine payload: %w", err)
	}

	query := url.Values{}
	query.Set("Action", action)
	query.Set("Version", volcengineVersion)
	rawQuery := query.Encode()

	header := a.signRequest(creds, http.MethodPost, rawQuery, jsonBody)

	callURL := fmt.Sprintf("%s://%s/?%s", a.scheme(), a.host(), rawQuery)

	// payload re-marshals identically inside doJSON; the signature covers it
	return a.client.doJSON(ctx, http.MethodPost, callURL, header, payload)
}

// signRequest produces the HMAC-SHA256 signature headers the visual API
// expects (V4-style: date-scoped signing key over a canonical request).
func (a *volcengineAdapter) signRequest(creds generation.Credentials, method, rawQuery string, body []byte) http.Header {
	now := a.now().UTC()
	date := now.Format("20060102T150405Z")
	shortDate := now.Format("20060102")

	payloadHash := hexSHA256(body)

	canonicalHeaders := strings.Join([]string{
		"content-type:application/json",
		"host:" + a.host(),
		"x-content-sha256:" + payloadHash,
		"x-date:" + date,
	}, "\n") + "\n"
	signedHeaders := "content-type;host;x-content-sha256;x-date"

	canonicalRequest := strings.Join([]string{
		method,
		"/",
		rawQuery,
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	scope := strings.Join([]string{shortDate, volcengineRegion, volcengineService, "request"}, "/")
	stringToSign := strings.Join([]string{
		"HMAC-SHA256",
		date,
		scope,
		hexSHA256([]byte(canonicalRequest)),
	}, "\n")

	kDate := hmacSHA256([]byte(creds.KeySecret), shortDate)
	kRegion := hmacSHA256(kDate, volcengineRegion)
	kService := hmacSHA256(kRegion, volcengineService)
	kSigning := hmacSHA256(kService, "request")
	signature := hex.EncodeToString(hmacSHA256(kSigning, stringToSign))

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Host", a.host())
	header.Set("X-Date", date)
	header.Set("X-Content-Sha256", payloadHash)
	header.Set("Authorization", fmt.Sprintf(
		"HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		creds.KeyID, scope, signedHeaders, signature))
	return header
}

func hexSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
