package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/framefoundry/media-studio/gen-orchestrator/internal/generation"
)

var tracer = otel.Tracer("generation-providers")

// Circuit breakers are shared per provider name so breaker state survives
// the short-lived adapter instances the registry hands out.
var (
	breakersMu sync.Mutex
	breakers   = map[string]*gobreaker.CircuitBreaker{}
)

func breakerFor(provider string) *gobreaker.CircuitBreaker {
	breakersMu.Lock()
	defer breakersMu.Unlock()

	if cb, ok := breakers[provider]; ok {
		return cb
	}

	settings := gobreaker.Settings{
		Name:        provider,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf(`{"level":"warn","message":"Provider circuit breaker state change","provider":"%s","from":"%s","to":"%s"}`,
				name, from, to)
		},
	}
	cb := gobreaker.NewCircuitBreaker(settings)
	breakers[provider] = cb
	return cb
}

// apiClient is the HTTP scaffolding every adapter composes: tracing,
// circuit breaking, and JSON plumbing. Vendor-specific auth headers and
// payload shapes stay in the adapters themselves.
type apiClient struct {
	provider   string
	httpClient *http.Client
	tracer     trace.Tracer
	breaker    *gobreaker.CircuitBreaker
}

func newAPIClient(provider string) *apiClient {
	return &apiClient{
		provider: provider,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		tracer:  tracer,
		breaker: breakerFor(provider),
	}
}

// doJSON issues one HTTP request with an optional JSON body and returns
// the raw response body and status code. A non-2xx status is not an
// error here; adapters classify it via classifyStatus so provider error
// payloads stay readable.
func (c *apiClient) doJSON(ctx context.Context, method, url string, header http.Header, body interface{}) ([]byte, int, error) {
	ctx, span := c.tracer.Start(ctx, fmt.Sprintf("provider.%s.request", c.provider))
	defer span.End()

	span.SetAttributes(
		attribute.String("provider", c.provider),
		attribute.String("http.method", method),
	)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doJSONInternal(ctx, method, url, header, body)
	})

	if err != nil {
		span.RecordError(err)
		return nil, 0, err
	}

	r := result.(*rawResponse)
	span.SetAttributes(attribute.Int("http.status_code", r.status))
	return r.body, r.status, nil
}

type rawResponse struct {
	body   []byte
	status int
}

func (c *apiClient) doJSONInternal(ctx context.Context, method, url string, header http.Header, body interface{}) (*rawResponse, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", c.provider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", c.provider, err)
	}

	return &rawResponse{body: respBody, status: resp.StatusCode}, nil
}

// classifyStatus maps a non-2xx provider status to the normalized error
// shape. 429 is surfaced distinctly so callers can back off harder; 5xx
// is retryable transport-class; remaining 4xx is a terminal rejection.
func classifyStatus(provider string, status int, body []byte) *generation.AdapterError {
	detail := truncate(string(body), 512)
	switch {
	case status == http.StatusTooManyRequests:
		return &generation.AdapterError{
			Code:        generation.ErrCodeRateLimited,
			Message:     fmt.Sprintf("%s rate limited the request: %s", provider, detail),
			IsRetryable: true,
		}
	case status >= 500:
		return &generation.AdapterError{
			Code:        generation.ErrCodeProviderError,
			Message:     fmt.Sprintf("%s returned status %d: %s", provider, status, detail),
			IsRetryable: true,
		}
	default:
		return &generation.AdapterError{
			Code:        generation.ErrCodeProviderRejected,
			Message:     fmt.Sprintf("%s rejected the request with status %d: %s", provider, status, detail),
			IsRetryable: false,
		}
	}
}

// transportErrorResponse folds a dispatch-time transport failure into the
// contract. Dispatch does not retry; the retryable flag tells the caller
// a fresh dispatch may succeed.
func transportErrorResponse(provider string, err error) *generation.AdapterResponse {
	return generation.ErrorResponse(
		generation.ErrCodeNetworkError,
		fmt.Sprintf("request to %s failed: %v", provider, err),
		true,
	)
}

func statusErrorResponse(provider string, status int, body []byte) *generation.AdapterResponse {
	return &generation.AdapterResponse{
		Status: generation.StatusError,
		Error:  classifyStatus(provider, status, body),
	}
}

// pollStatusResult classifies a non-2xx status during a status poll.
// 5xx and 429 come back as a plain error so the reconciliation loop
// counts them as transient transport failures instead of killing the
// task; remaining 4xx is a provider-declared terminal rejection.
func pollStatusResult(provider string, status int, body []byte) (*generation.AdapterResponse, error) {
	if status >= 500 || status == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%s status poll returned %d: %s", provider, status, truncate(string(body), 256))
	}
	return statusErrorResponse(provider, status, body), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
