package config

import (
	"errors"
	"fmt"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/anikdutta/voterpulse/pkg/sentiment"
	"github.com/anikdutta/voterpulse/pkg/sentiment/anyllm"
	"github.com/anikdutta/voterpulse/pkg/sentiment/lexicon"
	"github.com/anikdutta/voterpulse/pkg/sentiment/openai"
)

// ErrEngineNotRegistered is returned by [Registry.Create] when no factory has
// been registered under the requested engine name.
var ErrEngineNotRegistered = errors.New("config: engine not registered")

// EngineFactory builds a sentiment engine from its config entry.
type EngineFactory func(EngineEntry) (sentiment.Engine, error)

// Registry maps engine names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]EngineFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]EngineFactory)}
}

// DefaultRegistry returns a [Registry] with the built-in engines registered:
// "openai", "anyllm", and "lexicon".
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("openai", newOpenAIEngine)
	r.Register("anyllm", newAnyLLMEngine)
	r.Register("lexicon", newLexiconEngine)
	return r
}

// Register adds or replaces the factory for the given engine name.
func (r *Registry) Register(name string, factory EngineFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[name] = factory
}

// Create builds the sentiment engine selected by entry.Name.
func (r *Registry) Create(entry EngineEntry) (sentiment.Engine, error) {
	r.mu.RLock()
	factory, ok := r.engines[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEngineNotRegistered, entry.Name)
	}
	e, err := factory(entry)
	if err != nil {
		return nil, fmt.Errorf("config: create engine %q: %w", entry.Name, err)
	}
	return e, nil
}

// Names returns the registered engine names in unspecified order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	return names
}

func newOpenAIEngine(entry EngineEntry) (sentiment.Engine, error) {
	var opts []openai.Option
	if entry.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(entry.BaseURL))
	}
	return openai.New(entry.APIKey, entry.Model, opts...)
}

func newAnyLLMEngine(entry EngineEntry) (sentiment.Engine, error) {
	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return anyllm.New(entry.Provider, entry.Model, opts...)
}

func newLexiconEngine(EngineEntry) (sentiment.Engine, error) {
	return lexicon.New(), nil
}
