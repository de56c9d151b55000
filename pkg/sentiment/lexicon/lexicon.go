// Package lexicon provides an offline, dependency-free sentiment
// [sentiment.Engine] based on weighted wordlists.
//
// It exists as the last entry of the engine fallback chain: it never needs a
// network, never times out, and never fails, so the tagger always has a
// defensible verdict even when every hosted model is unreachable. Accuracy is
// coarse — the lists cover common English political-coverage vocabulary plus
// frequent Hindi and Bengali terms in native script and transliteration.
package lexicon

import (
	"context"
	"strings"

	"github.com/anikdutta/voterpulse/pkg/sentiment"
)

// Compile-time interface check.
var _ sentiment.Engine = (*Engine)(nil)

// Default wordlists. Matching is case-insensitive substring matching, which
// works for the Indic scripts too since they carry no case.
var (
	defaultPositive = []string{
		"good", "great", "excellent", "win", "victory", "development",
		"progress", "welfare", "support", "success", "improve", "benefit",
		"growth", "achievement", "prosperity", "hope", "celebrate",
		// Hindi
		"विकास", "जीत", "प्रगति", "सफलता", "अच्छा", "समर्थन", "vikas", "jeet",
		// Bengali
		"উন্নয়ন", "জয়", "সাফল্য", "ভালো", "সমর্থন", "unnayan", "joy", "bhalo",
	}
	defaultNegative = []string{
		"bad", "corruption", "scam", "fail", "failure", "violence", "attack",
		"protest", "crisis", "decline", "loss", "fraud", "scandal", "anger",
		"unemployment", "poverty", "defeat", "blame", "riot",
		// Hindi
		"भ्रष्टाचार", "घोटाला", "हिंसा", "विफल", "गरीबी", "bhrashtachar", "ghotala",
		// Bengali
		"দুর্নীতি", "ব্যর্থ", "সহিংসতা", "দারিদ্র", "durniti", "byartho",
	}
)

// Engine is a lexicon-based scorer. The zero value is not usable; call [New].
// Safe for concurrent use — the wordlists are read-only after construction.
type Engine struct {
	positive []string
	negative []string
}

// Option is a functional option for Engine.
type Option func(*Engine)

// WithWordlists replaces the built-in wordlists entirely. Terms should be
// lowercase; matching is substring-based.
func WithWordlists(positive, negative []string) Option {
	return func(e *Engine) {
		e.positive = positive
		e.negative = negative
	}
}

// New returns a lexicon Engine using the built-in wordlists unless overridden.
func New(opts ...Option) *Engine {
	e := &Engine{
		positive: defaultPositive,
		negative: defaultNegative,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Analyze implements sentiment.Engine. It never returns an error but keeps
// the error slot for interface compatibility; ctx is accepted for symmetry
// and is not consulted since scoring is purely local.
func (e *Engine) Analyze(_ context.Context, text string) (sentiment.Analysis, error) {
	lower := strings.ToLower(text)

	var pos, neg int
	for _, w := range e.positive {
		pos += strings.Count(lower, w)
	}
	for _, w := range e.negative {
		neg += strings.Count(lower, w)
	}

	total := pos + neg
	if total == 0 {
		return sentiment.Analysis{Polarity: 0, Label: sentiment.LabelNeutral}, nil
	}

	polarity := float64(pos-neg) / float64(total)
	label := sentiment.LabelNeutral
	switch {
	case polarity > 0.2:
		label = sentiment.LabelPositive
	case polarity < -0.2:
		label = sentiment.LabelNegative
	}
	return sentiment.Analysis{Polarity: polarity, Label: label}, nil
}
