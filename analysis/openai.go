package analysis

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI defaults.
const (
	DefaultOpenAIModel  = "gpt-4o-mini"
	DefaultOpenAIKeyEnv = "OPENAI_API_KEY"
)

const errOpenAIUnavailable = "OpenAI API key not configured"

// OpenAIConfig configures an OpenAI-compatible analyzer.
type OpenAIConfig struct {
	// Model defaults to DefaultOpenAIModel.
	Model string

	// BaseURL overrides the API endpoint, e.g. for a local server.
	BaseURL string

	// KeyEnv names the API key variable. Defaults to DefaultOpenAIKeyEnv.
	KeyEnv string

	// Env defaults to os.LookupEnv.
	Env EnvSource

	// Logger is optional.
	Logger Logger
}

// OpenAI analyzes failures through the chat completions API.
type OpenAI struct {
	model   string
	baseURL string
	keyEnv  string
	env     EnvSource
	logger  Logger
}

// NewOpenAI returns an OpenAI analyzer. No client is created until Analyze.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	o := &OpenAI{
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
		keyEnv:  cfg.KeyEnv,
		env:     cfg.Env,
		logger:  cfg.Logger,
	}
	if o.model == "" {
		o.model = DefaultOpenAIModel
	}
	if o.keyEnv == "" {
		o.keyEnv = DefaultOpenAIKeyEnv
	}
	if o.logger == nil {
		o.logger = nopLogger{}
	}
	return o
}

// Analyze implements Analyzer.
func (o *OpenAI) Analyze(ctx context.Context, errorMessage, codeContext string) Result {
	res := Result{Provider: ProviderOpenAI, Model: o.model}

	key := lookupKey(o.env, o.keyEnv)
	if key == "" {
		res.Error = errOpenAIUnavailable
		return res
	}

	text, err := o.generate(ctx, key, BuildPrompt(errorMessage, codeContext))
	if err != nil {
		o.logger.Warn("OpenAI API call failed", "error", err)
		res.Error = err.Error()
		return res
	}
	res.OK = true
	res.Analysis = text
	return res
}

func (o *OpenAI) generate(ctx context.Context, key, prompt string) (string, error) {
	cfg := openai.DefaultConfig(key)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	client := openai.NewClientWithConfig(cfg)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("OpenAI returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
