package generation

import (
	"fmt"
)

// ResponseStatus is the outcome of a single adapter call
type ResponseStatus string

const (
	// StatusProcessing means the provider accepted the job and will finish it asynchronously
	StatusProcessing ResponseStatus = "PROCESSING"
	// StatusSuccess means the provider produced final results
	StatusSuccess ResponseStatus = "SUCCESS"
	// StatusError means the provider rejected or failed the job
	StatusError ResponseStatus = "ERROR"
)

// ResultType identifies the kind of media a result points at
type ResultType string

const (
	ResultTypeImage ResultType = "image"
	ResultTypeVideo ResultType = "video"
	ResultTypeAudio ResultType = "audio"
)

// GenerationRequest is the canonical request shape every adapter accepts.
// It is immutable once handed to Dispatch; provider-specific knobs travel
// in Parameters and are validated per-adapter.
type GenerationRequest struct {
	Prompt          string                 `json:"prompt"`
	InputImages     []string               `json:"input_images,omitempty"` // URLs or data URIs, order-significant
	NumberOfOutputs int                    `json:"number_of_outputs,omitempty"`
	Parameters      map[string]interface{} `json:"parameters,omitempty"`
}

// GenerationResult is a single generated artifact
type GenerationResult struct {
	Type     ResultType             `json:"type"`
	URL      string                 `json:"url"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// AdapterError is the normalized error shape adapters return.
// Code values are adapter-defined strings; the core normalizes the shape
// of errors, not their vocabulary.
type AdapterError struct {
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	IsRetryable bool                   `json:"is_retryable"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AdapterResponse is the tagged union every adapter call resolves to.
// Exactly one of the three arms holds: PROCESSING carries a provider task
// id, SUCCESS carries non-empty results, ERROR carries an error object.
type AdapterResponse struct {
	Status         ResponseStatus     `json:"status"`
	ProviderTaskID string             `json:"provider_task_id,omitempty"`
	Message        string             `json:"message,omitempty"`
	Progress       *float64           `json:"progress,omitempty"` // [0,1]
	Results        []GenerationResult `json:"results,omitempty"`
	Error          *AdapterError      `json:"error,omitempty"`
}

// ProcessingResponse builds a PROCESSING response around a provider task id
func ProcessingResponse(providerTaskID string) *AdapterResponse {
	return &AdapterResponse{
		Status:         StatusProcessing,
		ProviderTaskID: providerTaskID,
	}
}

// SuccessResponse builds a SUCCESS response around final results
func SuccessResponse(results []GenerationResult) *AdapterResponse {
	return &AdapterResponse{
		Status:  StatusSuccess,
		Results: results,
	}
}

// ErrorResponse builds an ERROR response
func ErrorResponse(code, message string, retryable bool) *AdapterResponse {
	return &AdapterResponse{
		Status: StatusError,
		Error: &AdapterError{
			Code:        code,
			Message:     message,
			IsRetryable: retryable,
		},
	}
}

// WithProgress attaches a progress fraction to a PROCESSING response
func (r *AdapterResponse) WithProgress(progress float64) *AdapterResponse {
	r.Progress = &progress
	return r
}

// WithMessage attaches a human-readable message
func (r *AdapterResponse) WithMessage(message string) *AdapterResponse {
	r.Message = message
	return r
}

// Validate enforces the shape invariant of the tagged union
func (r *AdapterResponse) Validate() error {
	switch r.Status {
	case StatusProcessing:
		if r.ProviderTaskID == "" {
			return fmt.Errorf("PROCESSING response requires a provider task id")
		}
	case StatusSuccess:
		if len(r.Results) == 0 {
			return fmt.Errorf("SUCCESS response requires at least one result")
		}
	case StatusError:
		if r.Error == nil {
			return fmt.Errorf("ERROR response requires an error object")
		}
	default:
		return fmt.Errorf("unknown response status: %s", r.Status)
	}
	if r.Progress != nil && (*r.Progress < 0 || *r.Progress > 1) {
		return fmt.Errorf("progress must be within [0,1], got %f", *r.Progress)
	}
	return nil
}

// ProviderConfig is the provider half of a model binding. Credential
// fields are optional; resolution falls back to environment variables
// derived from the slug.
type ProviderConfig struct {
	ID           string `json:"id"`
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	APIKey       string `json:"-"`
	APIEndpoint  string `json:"api_endpoint,omitempty"`
	APIKeyID     string `json:"-"`
	APIKeySecret string `json:"-"`
}

// ModelConfig statically binds a logical model to one adapter.
// Resolved once per dispatch/poll cycle, read-only afterwards.
type ModelConfig struct {
	ID          string         `json:"id"`
	Slug        string         `json:"slug"`
	Name        string         `json:"name"`
	Provider    ProviderConfig `json:"provider"`
	OutputType  ResultType     `json:"output_type"`
	AdapterName string         `json:"adapter_name"`
}
