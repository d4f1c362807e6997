package generation

import (
	"encoding/json"
	"os"
	"strings"
)

// Credentials is the resolved credential material for one provider.
// Most providers use APIKey alone; signature-based providers (Volcengine)
// use the KeyID/KeySecret pair.
type Credentials struct {
	APIKey    string
	KeyID     string
	KeySecret string
}

// IsZero reports whether no credential material resolved at all
func (c Credentials) IsZero() bool {
	return c.APIKey == "" && c.KeyID == "" && c.KeySecret == ""
}

// EnvKeyName derives the environment variable consulted for a provider's
// credentials from its slug: "kie-ai" -> "GENERATION_KIE_AI_API_KEY".
func EnvKeyName(providerSlug string) string {
	slug := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(providerSlug))
	return "GENERATION_" + slug + "_API_KEY"
}

// ResolveCredentials resolves provider credentials with a fixed precedence:
//
//  1. explicit APIKey on the provider record
//  2. explicit APIKeyID + APIKeySecret pair on the provider record
//  3. the environment variable named by EnvKeyName(slug), which accepts a
//     raw key, a colon-separated "keyID:keySecret" pair, or a JSON blob
//     {"api_key":...} / {"api_key_id":...,"api_key_secret":...}
//
// The function is pure apart from the single os.Getenv read.
func ResolveCredentials(provider ProviderConfig) Credentials {
	if provider.APIKey != "" {
		return Credentials{APIKey: provider.APIKey}
	}
	if provider.APIKeyID != "" && provider.APIKeySecret != "" {
		return Credentials{KeyID: provider.APIKeyID, KeySecret: provider.APIKeySecret}
	}
	return parseEnvCredential(os.Getenv(EnvKeyName(provider.Slug)))
}

// parseEnvCredential interprets the three accepted env var formats
func parseEnvCredential(raw string) Credentials {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Credentials{}
	}

	// JSON blob format
	if strings.HasPrefix(raw, "{") {
		var blob struct {
			APIKey       string `json:"api_key"`
			APIKeyID     string `json:"api_key_id"`
			APIKeySecret string `json:"api_key_secret"`
		}
		if err := json.Unmarshal([]byte(raw), &blob); err == nil {
			if blob.APIKey != "" {
				return Credentials{APIKey: blob.APIKey}
			}
			if blob.APIKeyID != "" && blob.APIKeySecret != "" {
				return Credentials{KeyID: blob.APIKeyID, KeySecret: blob.APIKeySecret}
			}
		}
		return Credentials{}
	}

	// Colon-separated "keyID:keySecret" pair
	if id, secret, found := strings.Cut(raw, ":"); found && id != "" && secret != "" {
		return Credentials{KeyID: id, KeySecret: secret}
	}

	return Credentials{APIKey: raw}
}
