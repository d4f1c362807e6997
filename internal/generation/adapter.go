package generation

import (
	"context"
)

// Adapter translates the canonical generation contract into one vendor's
// HTTP protocol. Adapters never touch the task store; they are pure
// request/response translators.
//
// Dispatch makes exactly one outbound call to create a remote job (or,
// for synchronous providers, the full generation call) and never polls
// internally. It does not return a Go error: every failure, including a
// missing credential, is folded into an ERROR AdapterResponse so nothing
// escapes the adapter boundary.
type Adapter interface {
	// Name returns the adapter's registry identifier
	Name() string

	// Dispatch submits a generation request to the provider
	Dispatch(ctx context.Context, req *GenerationRequest) *AdapterResponse
}

// StatusChecker is the optional async capability. Adapters for inherently
// synchronous providers simply do not implement it; absence is signaled by
// a failed type assertion, not a sentinel error.
//
// CheckTaskStatus must be idempotent and read-only against the provider.
// The Go error return is reserved for transport failures (network error,
// unreadable body); a provider-declared failure comes back as an ERROR
// AdapterResponse with a nil error.
type StatusChecker interface {
	CheckTaskStatus(ctx context.Context, providerTaskID string) (*AdapterResponse, error)
}

// Error codes shared across adapters. The set is deliberately small:
// anything vendor-specific stays an adapter-defined string.
const (
	ErrCodeMissingAPIKey    = "MISSING_API_KEY"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeProviderError    = "PROVIDER_ERROR"
	ErrCodeProviderRejected = "PROVIDER_REJECTED"
	ErrCodeNetworkError     = "NETWORK_ERROR"
)

// MissingAPIKeyResponse is the uniform terminal response for unresolvable
// credentials. Always non-retryable.
func MissingAPIKeyResponse(providerSlug string) *AdapterResponse {
	return ErrorResponse(
		ErrCodeMissingAPIKey,
		"no API key configured for provider "+providerSlug+" (set "+EnvKeyName(providerSlug)+")",
		false,
	)
}
