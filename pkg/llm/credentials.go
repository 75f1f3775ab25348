package llm

import (
	"fmt"
	"strings"
)

// Credentials carries the authentication material a provider factory needs.
// Implementations are small structs so configuration wiring can construct
// them directly from resolved config values.
type Credentials interface {
	// Validate reports whether the credentials are structurally usable.
	// It does not call the provider.
	Validate() error

	// Redacted returns a loggable description with secrets masked.
	Redacted() string
}

// APIKeyCredentials authenticates with a bearer or header API key.
// Used by the claude, codex, and gemini providers.
type APIKeyCredentials struct {
	// Key is the API key.
	Key string

	// BaseURL overrides the provider's default endpoint when set.
	BaseURL string

	// Model is the default model or tier for this provider instance.
	Model string
}

// Validate implements Credentials.
func (c *APIKeyCredentials) Validate() error {
	if c.Key == "" {
		return fmt.Errorf("api key is required")
	}
	return nil
}

// Redacted implements Credentials.
func (c *APIKeyCredentials) Redacted() string {
	return fmt.Sprintf("api-key:%s", maskSecret(c.Key))
}

// ServiceAccountCredentials authenticates via a Google service-account key
// file using the JWT bearer grant. Used by the gemini provider when no API
// key is configured.
type ServiceAccountCredentials struct {
	// KeyFile is the path to the service-account JSON key.
	KeyFile string

	// BaseURL overrides the provider's default endpoint when set.
	BaseURL string

	// Model is the default model or tier for this provider instance.
	Model string
}

// Validate implements Credentials.
func (c *ServiceAccountCredentials) Validate() error {
	if c.KeyFile == "" {
		return fmt.Errorf("service account key file is required")
	}
	return nil
}

// Redacted implements Credentials.
func (c *ServiceAccountCredentials) Redacted() string {
	return fmt.Sprintf("service-account:%s", c.KeyFile)
}

// AWSCredentials authenticates through the ambient AWS credential chain
// (environment, shared config, instance role). Used by the bedrock provider.
type AWSCredentials struct {
	// Region is the AWS region hosting the Bedrock runtime. Required.
	Region string

	// Model is the default model or tier for this provider instance.
	Model string
}

// Validate implements Credentials.
func (c *AWSCredentials) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("aws region is required")
	}
	return nil
}

// Redacted implements Credentials.
func (c *AWSCredentials) Redacted() string {
	return fmt.Sprintf("aws:%s", c.Region)
}

// maskSecret keeps just enough of a secret visible to identify it in logs.
func maskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + "***" + s[len(s)-4:]
}
