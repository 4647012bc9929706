// Package backend wraps the generative model APIs behind a single
// Invoker interface. The pipeline treats the backend as a black box that
// may return free text, a parsed object, or a transport error; everything
// above this package is responsible for turning that into a usable
// artifact.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/coderforge/solverd/internal/schema"
)

// Default configuration values.
const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-2.0-flash"
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultTimeout       = 60 * time.Second
	defaultMaxRetries    = 2
	defaultBaseBackoff   = 1 * time.Second
	defaultMaxTokens     = 4000
)

// Rate limiter defaults: 50 requests per minute.
const (
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

// Supported providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config configures a backend client. It is passed explicitly at
// construction; there is no process-wide provider state.
type Config struct {
	// Provider selects the client: "gemini" or "openai".
	Provider string `koanf:"provider"`

	// Model is the provider model identifier.
	Model string `koanf:"model"`

	// APIKey authenticates against the provider.
	APIKey string `koanf:"api_key"`

	// BaseURL overrides the provider endpoint, mainly for tests.
	BaseURL string `koanf:"base_url"`

	// Timeout is the per-call deadline in seconds.
	Timeout int `koanf:"timeout"`

	// MaxRetries bounds transport-level retries inside one Invoke call.
	MaxRetries int `koanf:"max_retries"`
}

// Response is one backend reply. Exactly one of Text or Object is
// populated: Object when the provider produced schema-constrained output
// natively, Text otherwise.
type Response struct {
	Text   string
	Object map[string]any
}

// Invoker is a single backend invocation. The schema is advisory; the
// backend may ignore it and reply with free text.
type Invoker interface {
	// Invoke sends prompt to the backend. A non-nil error is always a
	// transport-level failure (unreachable endpoint, deadline exceeded,
	// provider 5xx after retries); malformed output is not an error.
	Invoke(ctx context.Context, prompt string, s *schema.Schema) (*Response, error)
}

// New creates a backend client for the configured provider.
func New(cfg Config) (Invoker, error) {
	switch cfg.Provider {
	case ProviderGemini, "":
		return newGeminiClient(cfg)
	case ProviderOpenAI:
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unknown backend provider: %s", cfg.Provider)
	}
}

// retryableError wraps an error to indicate the call may be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryableError checks whether err or anything it wraps is retryable.
func isRetryableError(err error) bool {
	for e := err; e != nil; {
		if _, ok := e.(*retryableError); ok {
			return true
		}
		if unwrapper, ok := e.(interface{ Unwrap() error }); ok {
			e = unwrapper.Unwrap()
		} else {
			break
		}
	}
	return false
}

// backoffFor returns the exponential backoff delay before retry attempt.
func backoffFor(attempt int) time.Duration {
	return defaultBaseBackoff * time.Duration(1<<(attempt-1))
}

// timeoutFor resolves the per-call deadline from config.
func timeoutFor(cfg Config) time.Duration {
	if cfg.Timeout > 0 {
		return time.Duration(cfg.Timeout) * time.Second
	}
	return defaultTimeout
}

// retriesFor resolves the retry budget from config.
func retriesFor(cfg Config) int {
	if cfg.MaxRetries > 0 {
		return cfg.MaxRetries
	}
	return defaultMaxRetries
}
