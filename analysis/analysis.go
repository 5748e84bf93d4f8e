// Package analysis asks a language model to explain a test failure.
//
// An [Analyzer] takes the failing output and a rendered code window and
// returns a [Result]. Providers never return Go errors: a missing key, a
// failed client or a failed request all surface as Result{OK: false}.
// API keys are read from the environment on every call, so a server picks
// up a key exported after start-up.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Provider names accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// ErrUnknownProvider is returned by New for an unrecognized provider name.
var ErrUnknownProvider = errors.New("analysis: unknown provider")

// Result is the outcome of an analysis request.
type Result struct {
	OK       bool   `json:"ok"`
	Analysis string `json:"analysis,omitempty"`
	Error    string `json:"error,omitempty"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Analyzer explains a failure given its output and surrounding code.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Analyze must honor cancellation and deadlines.
// - Errors: failures are reported in Result, never panicked.
type Analyzer interface {
	Analyze(ctx context.Context, errorMessage, codeContext string) Result
}

// Generator produces a completion for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EnvSource looks up an environment variable.
type EnvSource func(key string) (string, bool)

// Logger is the interface for logging.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// BuildPrompt renders the request sent to every provider.
func BuildPrompt(errorMessage, codeContext string) string {
	prompt := fmt.Sprintf(`
I have a Python test failure.

Error message:
%s

Code context:
%s

Please explain why this error is happening and suggest a fix.
`, errorMessage, codeContext)
	return strings.TrimSpace(prompt)
}

// Config selects and configures a provider.
type Config struct {
	// Provider is ProviderGemini or ProviderOpenAI. Defaults to ProviderGemini.
	Provider string

	// GeminiModel defaults to DefaultGeminiModel.
	GeminiModel string

	// OpenAIModel defaults to DefaultOpenAIModel.
	OpenAIModel string

	// OpenAIBaseURL points the OpenAI client at a compatible endpoint.
	OpenAIBaseURL string

	// Env defaults to os.LookupEnv.
	Env EnvSource

	// Logger is optional.
	Logger Logger
}

// New returns the analyzer named by cfg.Provider.
func New(cfg Config) (Analyzer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGemini:
		return NewGemini(GeminiConfig{
			Model:  cfg.GeminiModel,
			Env:    cfg.Env,
			Logger: cfg.Logger,
		}), nil
	case ProviderOpenAI:
		return NewOpenAI(OpenAIConfig{
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Env:     cfg.Env,
			Logger:  cfg.Logger,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// lookupKey returns the trimmed value of key, or "" when unset.
func lookupKey(env EnvSource, key string) string {
	if env == nil {
		env = os.LookupEnv
	}
	v, _ := env(key)
	return strings.TrimSpace(v)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
