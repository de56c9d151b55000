// Package anyllm provides a sentiment [sentiment.Engine] backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and more.
//
// Usage:
//
//	e, err := anyllm.New("anthropic", "claude-3-5-haiku-latest", anyllmlib.WithAPIKey("sk-ant-..."))
//	e, err := anyllm.New("ollama", "llama3.2", anyllmlib.WithBaseURL("http://localhost:11434"))
package anyllm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/anikdutta/voterpulse/pkg/sentiment"
)

// Compile-time interface check.
var _ sentiment.Engine = (*Engine)(nil)

// systemPrompt mirrors the OpenAI engine's prompt so the two are
// interchangeable in a fallback chain.
const systemPrompt = `You are a sentiment classifier for political news transcripts.
The text may be in Bengali, Hindi, English, or a mixture.
Respond with a single JSON object and nothing else:
{"sentiment": "positive"|"negative"|"neutral", "polarity": <number between -1 and 1>}`

// Engine implements sentiment.Engine by wrapping any-llm-go.
type Engine struct {
	backend anyllmlib.Provider
	model   string
}

// New creates a new Engine backed by the given LLM provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "deepseek", "mistral", "groq". model is the specific model to use.
// opts are any-llm-go options (anyllmlib.WithAPIKey, anyllmlib.WithBaseURL);
// without an API key option the provider falls back to its usual environment
// variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...).
func New(providerName, model string, opts ...anyllmlib.Option) (*Engine, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}
	return &Engine{backend: backend, model: model}, nil
}

// createBackend creates the underlying any-llm-go provider for the given name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unknown provider %q", providerName)
	}
}

// verdict is the JSON object the model is asked to produce.
type verdict struct {
	Sentiment string  `json:"sentiment"`
	Polarity  float64 `json:"polarity"`
}

// Analyze implements sentiment.Engine.
func (e *Engine) Analyze(ctx context.Context, text string) (sentiment.Analysis, error) {
	temp := 0.0
	maxTokens := 64
	params := anyllmlib.CompletionParams{
		Model: e.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: systemPrompt},
			{Role: anyllmlib.RoleUser, Content: text},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	}

	resp, err := e.backend.Completion(ctx, params)
	if err != nil {
		return sentiment.Analysis{}, fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return sentiment.Analysis{}, fmt.Errorf("anyllm: empty choices in response")
	}

	return parseVerdict(resp.Choices[0].Message.ContentString())
}

// parseVerdict decodes the model's JSON verdict, stripping any markdown code
// fences around it.
func parseVerdict(content string) (sentiment.Analysis, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var v verdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return sentiment.Analysis{}, fmt.Errorf("anyllm: malformed verdict %q: %w", content, err)
	}

	label := sentiment.Label(strings.ToLower(v.Sentiment))
	if !label.IsValid() {
		return sentiment.Analysis{}, fmt.Errorf("anyllm: unknown sentiment label %q", v.Sentiment)
	}
	return sentiment.Analysis{Polarity: v.Polarity, Label: label}, nil
}
