package helpers

import (
	"encoding/json"
)

// TestUser represents a test user fixture
type TestUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TestModel represents a generation model fixture
type TestModel struct {
	Slug        string `json:"slug"`
	AdapterName string `json:"adapter_name"`
	OutputType  string `json:"output_type"`
}

// Default test fixtures
var (
	DefaultTestUser = TestUser{
		Email:    "test@example.com",
		Password: "test-password-123",
	}

	DefaultTestModel = TestModel{
		Slug:        "test-flux-image",
		AdapterName: "kie",
		OutputType:  "image",
	}
)

// ToJSON converts a fixture to JSON string
func ToJSON(fixture interface{}) string {
	data, _ := json.Marshal(fixture)
	return string(data)
}

// FromJSON parses JSON string to map
func FromJSON(jsonStr string) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal([]byte(jsonStr), &result)
	return result
}

// CreateTestLoginRequest creates a login request payload
func CreateTestLoginRequest(email, password string) map[string]interface{} {
	return map[string]interface{}{
		"email":    email,
		"password": password,
	}
}

// CreateTestGenerationRequest creates a generation creation request payload
func CreateTestGenerationRequest(modelSlug, prompt string) map[string]interface{} {
	return map[string]interface{}{
		"model_slug": modelSlug,
		"prompt":     prompt,
	}
}
