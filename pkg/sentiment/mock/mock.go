// Package mock provides a configurable test double for [sentiment.Engine].
package mock

import (
	"context"
	"sync"

	"github.com/anikdutta/voterpulse/pkg/sentiment"
)

// Compile-time interface check.
var _ sentiment.Engine = (*Engine)(nil)

// Engine is a mock sentiment engine. Configure the result fields or
// AnalyzeFunc before use; calls are recorded for assertions.
type Engine struct {
	mu sync.Mutex

	// AnalyzeFunc, when non-nil, fully controls Analyze's behaviour.
	AnalyzeFunc func(ctx context.Context, text string) (sentiment.Analysis, error)

	// AnalysisResult and Err are returned when AnalyzeFunc is nil.
	AnalysisResult sentiment.Analysis
	Err            error

	// Texts records every analysed input in call order.
	Texts []string
}

// Analyze implements sentiment.Engine.
func (e *Engine) Analyze(ctx context.Context, text string) (sentiment.Analysis, error) {
	e.mu.Lock()
	e.Texts = append(e.Texts, text)
	fn := e.AnalyzeFunc
	res, err := e.AnalysisResult, e.Err
	e.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return res, err
}

// Calls returns how many times Analyze has been invoked.
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Texts)
}
