package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// EnvState captures the CODI_* tunables. A nil field means the variable was unset.
type EnvState struct {
	Provider   *string        `env:"CODI_PROVIDER,noinit"`
	Model      *string        `env:"CODI_MODEL,noinit"`
	Timeout    *time.Duration `env:"CODI_TIMEOUT,noinit"`
	Retries    *int           `env:"CODI_RETRIES,noinit"`
	Addr       *string        `env:"CODI_ADDR,noinit"`
	Store      *string        `env:"CODI_STORE,noinit"`
	HistoryDir *string        `env:"CODI_HISTORY_DIR,noinit"`
}

// Credentials holds API keys and tokens. These are only read from the environment.
type Credentials struct {
	OpenAIAPIKey        string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `env:"OPENAI_BASE_URL"`
	AnthropicAPIKey     string `env:"ANTHROPIC_API_KEY"`
	GeminiAPIKey        string `env:"GEMINI_API_KEY"`
	GoogleAPIKey        string `env:"GOOGLE_API_KEY"`
	SlackBotToken       string `env:"SLACK_BOT_TOKEN"`
	SlackAppToken       string `env:"SLACK_APP_TOKEN"`
	GitHubToken         string `env:"GITHUB_TOKEN"`
	GitHubRepo          string `env:"GITHUB_REPO"`
	GitHubWebhookSecret string `env:"GITHUB_WEBHOOK_SECRET"`
	// GitHubAPIURL points the client at GitHub Enterprise.
	GitHubAPIURL string `env:"GITHUB_API_URL"`
}

// GeminiKey returns GEMINI_API_KEY, falling back to GOOGLE_API_KEY.
func (c Credentials) GeminiKey() string {
	if c.GeminiAPIKey != "" {
		return c.GeminiAPIKey
	}
	return c.GoogleAPIKey
}

// APIKeyFor returns the API key for the named provider.
func (c Credentials) APIKeyFor(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiKey()
	}
	return ""
}

// LoadEnvState reads the CODI_* variables from the process environment.
func LoadEnvState(ctx context.Context) (EnvState, error) {
	return LoadEnvStateFrom(ctx, envconfig.OsLookuper())
}

// LoadEnvStateFrom reads the CODI_* variables through the given lookuper.
func LoadEnvStateFrom(ctx context.Context, l envconfig.Lookuper) (EnvState, error) {
	var state EnvState
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &state, Lookuper: l}); err != nil {
		return EnvState{}, fmt.Errorf("invalid environment: %w", err)
	}
	return state, nil
}

// LoadCredentials reads credentials from the process environment.
func LoadCredentials(ctx context.Context) (Credentials, error) {
	return LoadCredentialsFrom(ctx, envconfig.OsLookuper())
}

// LoadCredentialsFrom reads credentials through the given lookuper.
func LoadCredentialsFrom(ctx context.Context, l envconfig.Lookuper) (Credentials, error) {
	var creds Credentials
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &creds, Lookuper: l}); err != nil {
		return Credentials{}, fmt.Errorf("invalid environment: %w", err)
	}
	return creds, nil
}
