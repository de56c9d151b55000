package config

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/anikdutta/voterpulse/pkg/sentiment"
)

func TestDefaultRegistry_Names(t *testing.T) {
	t.Parallel()

	names := DefaultRegistry().Names()
	slices.Sort(names)
	want := []string{"anyllm", "lexicon", "openai"}
	if !slices.Equal(names, want) {
		t.Errorf("Names() = %v, want %v", names, want)
	}
}

func TestRegistry_CreateLexicon(t *testing.T) {
	t.Parallel()

	eng, err := DefaultRegistry().Create(EngineEntry{Name: "lexicon"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// The lexicon engine works offline; exercise it end to end.
	a, err := eng.Analyze(context.Background(), "excellent turnout at the rally")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.Label != sentiment.LabelPositive {
		t.Errorf("label = %v, want positive", a.Label)
	}
}

func TestRegistry_CreateUnknown(t *testing.T) {
	t.Parallel()

	_, err := DefaultRegistry().Create(EngineEntry{Name: "quantum"})
	if !errors.Is(err, ErrEngineNotRegistered) {
		t.Errorf("err = %v, want ErrEngineNotRegistered", err)
	}
}

func TestRegistry_CreateOpenAIWithoutKey(t *testing.T) {
	t.Parallel()

	_, err := DefaultRegistry().Create(EngineEntry{Name: "openai"})
	if err == nil {
		t.Fatal("expected error for openai engine without api key")
	}
}

func TestRegistry_CreateAnyLLM(t *testing.T) {
	t.Parallel()

	eng, err := DefaultRegistry().Create(EngineEntry{
		Name:     "anyllm",
		Provider: "ollama",
		Model:    "llama3.2",
		BaseURL:  "http://localhost:11434",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if eng == nil {
		t.Fatal("Create returned nil engine")
	}
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("stub", func(EngineEntry) (sentiment.Engine, error) {
		return nil, errors.New("first")
	})
	r.Register("stub", func(EngineEntry) (sentiment.Engine, error) {
		return nil, errors.New("second")
	})

	_, err := r.Create(EngineEntry{Name: "stub"})
	if err == nil {
		t.Fatal("expected factory error")
	}
	if !strings.Contains(err.Error(), "second") {
		t.Errorf("err = %q, want the replacing factory's error", err)
	}
}
