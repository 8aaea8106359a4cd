package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// Provider constants for LLM provider selection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const defaultMaxTokens = 1500

// Config holds LLM client configuration.
type Config struct {
	Provider string // "openai" or "anthropic"
	APIKey   string // Required: API key for the provider
	BaseURL  string // Optional: custom API endpoint
	Model    string // Model name (e.g., "gpt-4.1", "claude-sonnet-4-5")
}

// VisionClient sends a single-turn prompt, optionally with images, and
// returns the model's text.
type VisionClient interface {
	Complete(ctx context.Context, req VisionRequest) (*Response, error)
	Model() string
}

// Image is an inline image attached to a user turn.
type Image struct {
	MediaType string // e.g. "image/png"
	Data      []byte
}

type VisionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Images       []Image
	MaxTokens    int
	Temperature  *float64 // nil = model default
}

type Response struct {
	Content          string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

// ErrEmptyCompletion is returned when the provider answers without any text.
var ErrEmptyCompletion = errors.New("llm returned no content")

// NewVisionClient selects the provider implementation from cfg.Provider.
// Defaults to OpenAI if no provider is specified.
func NewVisionClient(cfg Config) (VisionClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}

	switch provider {
	case ProviderOpenAI:
		return newOpenAIClient(cfg), nil
	case ProviderAnthropic:
		return newAnthropicClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// DataURL encodes an image as a data: URL, the form OpenAI accepts for inline images.
func DataURL(img Image) string {
	return fmt.Sprintf("data:%s;base64,%s", img.MediaType, base64.StdEncoding.EncodeToString(img.Data))
}

func Temp(t float64) *float64 {
	return &t
}

func maxTokensOrDefault(n int) int64 {
	if n <= 0 {
		return defaultMaxTokens
	}
	return int64(n)
}

// IsRetryable reports whether err looks transient (rate limit, 5xx, network).
// Nothing in the service retries today; the classification feeds the logs so
// operators can tell quota problems from bad requests.
func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	status := 0
	var openaiErr *openai.Error
	var anthropicErr *anthropic.Error
	switch {
	case errors.As(err, &openaiErr):
		status = openaiErr.StatusCode
	case errors.As(err, &anthropicErr):
		status = anthropicErr.StatusCode
	case errors.Is(err, ErrEmptyCompletion):
		return false
	default:
		slog.DebugContext(ctx, "llm network error", "error", err)
		return true
	}

	switch {
	case status == 429:
		slog.WarnContext(ctx, "llm rate limited", "status_code", status)
		return true
	case status >= 500:
		slog.WarnContext(ctx, "llm server error", "status_code", status)
		return true
	default:
		return false
	}
}
