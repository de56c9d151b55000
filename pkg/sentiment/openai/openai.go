// Package openai provides a sentiment [sentiment.Engine] backed by the
// OpenAI chat completions API.
//
// The engine sends one short classification prompt per call and expects a
// strict JSON verdict back. Malformed responses are surfaced as errors so the
// tagger's fallback chain can take over.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/anikdutta/voterpulse/pkg/sentiment"
)

// Compile-time interface check.
var _ sentiment.Engine = (*Engine)(nil)

const defaultModel = "gpt-4o-mini"

// systemPrompt instructs the model to classify political broadcast speech.
// The transcript text may be Bengali, Hindi, English, or a mix.
const systemPrompt = `You are a sentiment classifier for political news transcripts.
The text may be in Bengali, Hindi, English, or a mixture.
Respond with a single JSON object and nothing else:
{"sentiment": "positive"|"negative"|"neutral", "polarity": <number between -1 and 1>}`

// Engine implements sentiment.Engine using the OpenAI API.
type Engine struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the engine.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Engine.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Primarily used in
// tests to point at a local mock server.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a new OpenAI sentiment Engine. model may be empty, in which
// case a small default chat model is used.
func New(apiKey string, model string, opts ...Option) (*Engine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		model = defaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Engine{client: oai.NewClient(reqOpts...), model: model}, nil
}

// verdict is the JSON object the model is asked to produce.
type verdict struct {
	Sentiment string  `json:"sentiment"`
	Polarity  float64 `json:"polarity"`
}

// Analyze implements sentiment.Engine.
func (e *Engine) Analyze(ctx context.Context, text string) (sentiment.Analysis, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(e.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(text),
		},
		Temperature:         param.NewOpt(0.0),
		MaxCompletionTokens: param.NewOpt(int64(64)),
	}

	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return sentiment.Analysis{}, fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return sentiment.Analysis{}, fmt.Errorf("openai: empty choices in response")
	}

	return parseVerdict(resp.Choices[0].Message.Content)
}

// parseVerdict decodes the model's JSON verdict, tolerating surrounding
// markdown code fences some models insist on adding.
func parseVerdict(content string) (sentiment.Analysis, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var v verdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return sentiment.Analysis{}, fmt.Errorf("openai: malformed verdict %q: %w", content, err)
	}

	label := sentiment.Label(strings.ToLower(v.Sentiment))
	if !label.IsValid() {
		return sentiment.Analysis{}, fmt.Errorf("openai: unknown sentiment label %q", v.Sentiment)
	}
	return sentiment.Analysis{Polarity: v.Polarity, Label: label}, nil
}
