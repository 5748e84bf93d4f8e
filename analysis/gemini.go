package analysis

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini defaults.
const (
	DefaultGeminiModel  = "gemini-2.5-flash"
	DefaultGeminiKeyEnv = "GEMINI_API_KEY"
)

// errGeminiUnavailable is reported when no client can be built.
const errGeminiUnavailable = "Gemini API Key not configured or model init failed"

// GeminiConfig configures a Gemini analyzer.
type GeminiConfig struct {
	// Model defaults to DefaultGeminiModel.
	Model string

	// KeyEnv names the API key variable. Defaults to DefaultGeminiKeyEnv.
	KeyEnv string

	// Env defaults to os.LookupEnv.
	Env EnvSource

	// Connect builds a Generator for an API key. Defaults to a genai client.
	Connect func(ctx context.Context, apiKey, model string) (Generator, error)

	// Logger is optional.
	Logger Logger
}

// Gemini analyzes failures with Google's Gemini API.
type Gemini struct {
	model   string
	keyEnv  string
	env     EnvSource
	connect func(ctx context.Context, apiKey, model string) (Generator, error)
	logger  Logger
}

// NewGemini returns a Gemini analyzer. No client is created until Analyze.
func NewGemini(cfg GeminiConfig) *Gemini {
	g := &Gemini{
		model:   cfg.Model,
		keyEnv:  cfg.KeyEnv,
		env:     cfg.Env,
		connect: cfg.Connect,
		logger:  cfg.Logger,
	}
	if g.model == "" {
		g.model = DefaultGeminiModel
	}
	if g.keyEnv == "" {
		g.keyEnv = DefaultGeminiKeyEnv
	}
	if g.connect == nil {
		g.connect = connectGenAI
	}
	if g.logger == nil {
		g.logger = nopLogger{}
	}
	return g
}

// Analyze implements Analyzer.
func (g *Gemini) Analyze(ctx context.Context, errorMessage, codeContext string) Result {
	res := Result{Provider: ProviderGemini, Model: g.model}

	key := lookupKey(g.env, g.keyEnv)
	if key == "" {
		res.Error = errGeminiUnavailable
		return res
	}
	gen, err := g.connect(ctx, key, g.model)
	if err != nil {
		g.logger.Warn("failed to init Gemini model", "error", err)
		res.Error = errGeminiUnavailable
		return res
	}

	text, err := gen.Generate(ctx, BuildPrompt(errorMessage, codeContext))
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.OK = true
	res.Analysis = text
	return res
}

type genaiGenerator struct {
	client *genai.Client
	model  string
}

func connectGenAI(ctx context.Context, apiKey, model string) (Generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &genaiGenerator{client: client, model: model}, nil
}

func (g *genaiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	return resp.Text(), nil
}
