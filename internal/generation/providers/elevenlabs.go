package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/framefoundry/media-studio/gen-orchestrator/internal/generation"
)

const (
	elevenlabsDefaultBaseURL = "https://api.elevenlabs.io"
	elevenlabsDefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
)

// elevenlabsAdapter drives ElevenLabs text-to-speech. The API is
// synchronous and answers with raw MPEG audio, which this adapter folds
// into a data URI result; there is no StatusChecker.
type elevenlabsAdapter struct {
	cfg    generation.ModelConfig
	client *apiClient
}

func newElevenLabsAdapter(cfg generation.ModelConfig) generation.Adapter {
	return &elevenlabsAdapter{cfg: cfg, client: newAPIClient(AdapterNameElevenLabs)}
}

func (a *elevenlabsAdapter) Name() string { return AdapterNameElevenLabs }

func (a *elevenlabsAdapter) baseURL() string {
	if a.cfg.Provider.APIEndpoint != "" {
		return a.cfg.Provider.APIEndpoint
	}
	return elevenlabsDefaultBaseURL
}

func (a *elevenlabsAdapter) Dispatch(ctx context.Context, req *generation.GenerationRequest) *generation.AdapterResponse {
	creds := generation.ResolveCredentials(a.cfg.Provider)
	if creds.APIKey == "" {
		return generation.MissingAPIKeyResponse(a.cfg.Provider.Slug)
	}

	if req.Prompt == "" {
		return generation.ErrorResponse(generation.ErrCodeInvalidRequest,
			"elevenlabs requires text to synthesize", false)
	}

	voiceID := elevenlabsDefaultVoiceID
	if v, ok := req.Parameters["voice_id"].(string); ok && v != "" {
		voiceID = v
	}

	payload := map[string]interface{}{
		"text":     req.Prompt,
		"model_id": a.cfg.Slug,
	}
	if settings, ok := req.Parameters["voice_settings"]; ok {
		payload["voice_settings"] = settings
	}

	header := http.Header{}
	header.Set("xi-api-key", creds.APIKey)
	header.Set("Accept", "audio/mpeg")

	dispatchURL := fmt.Sprintf("%s/v1/text-to-speech/%s", a.baseURL(), voiceID)
	body, status, err := a.client.doJSON(ctx, http.MethodPost, dispatchURL, header, payload)
	if err != nil {
		return transportErrorResponse(AdapterNameElevenLabs, err)
	}
	if status != http.StatusOK {
		return statusErrorResponse(AdapterNameElevenLabs, status, body)
	}
	if len(body) == 0 {
		return generation.ErrorResponse(generation.ErrCodeProviderError,
			"elevenlabs returned empty audio", true)
	}

	return generation.SuccessResponse([]generation.GenerationResult{{
		Type: generation.ResultTypeAudio,
		URL:  "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(body),
		Metadata: map[string]interface{}{
			"voice_id":   voiceID,
			"size_bytes": len(body),
		},
	}})
}
