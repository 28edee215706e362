// Package llm provides completion providers backed by hosted language models.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tognete/codi/internal/domain"
)

var (
	// ErrEmptyCompletion is returned when the provider answers with no text.
	ErrEmptyCompletion = errors.New("model returned an empty completion")
	// ErrMissingAPIKey is returned when a provider is built without credentials.
	ErrMissingAPIKey = errors.New("API key is required")
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// SupportedProviders lists all valid provider names.
var SupportedProviders = []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini}

// DefaultProvider is used when no provider is configured.
const DefaultProvider = ProviderOpenAI

// DefaultMaxTokens caps completions for providers that require a limit.
const DefaultMaxTokens = 4096

// Request is a single completion request.
type Request struct {
	// System holds system prompts, sent in order before the conversation.
	System []string
	// Messages is the conversation. System-role messages are folded into System.
	Messages    []domain.Message
	Temperature float64
	MaxTokens   int
}

// Response is the provider's answer to a Request.
type Response struct {
	Text             string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
}

// Provider is implemented by each model backend.
type Provider interface {
	// Name returns the provider name (openai, anthropic, gemini).
	Name() string
	// Model returns the model the provider sends requests to.
	Model() string
	// Complete sends the request and returns the model's text.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Options configures a provider.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	// HTTPClient overrides the transport. Used by tests.
	HTTPClient *http.Client
}

// New creates a Provider by name.
// Supported providers: openai, anthropic, gemini
func New(ctx context.Context, name string, opts Options) (Provider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%s: %w (set %s)", name, ErrMissingAPIKey, APIKeyEnv(name))
	}
	switch name {
	case ProviderOpenAI:
		return NewOpenAI(opts), nil
	case ProviderAnthropic:
		return NewAnthropic(opts), nil
	case ProviderGemini:
		return NewGemini(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown provider %q, supported: %s", name, strings.Join(SupportedProviders, ", "))
	}
}

// APIKeyEnv returns the environment variable that holds the provider's API key.
func APIKeyEnv(name string) string {
	switch name {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	}
	return ""
}

// splitSystem returns the system prompts of req, including any system-role
// messages, and the remaining conversation.
func splitSystem(req Request) ([]string, []domain.Message) {
	system := make([]string, 0, len(req.System))
	for _, s := range req.System {
		if strings.TrimSpace(s) != "" {
			system = append(system, s)
		}
	}
	msgs := make([]domain.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == domain.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		msgs = append(msgs, m)
	}
	return system, msgs
}
