// Package sentiment defines the Engine interface for sentiment analysis
// backends.
//
// An engine wraps a remote model API (OpenAI, any-llm-go multi-provider) or a
// local lexicon scorer and exposes a uniform Analyze call. Engines are
// swappable at configuration time and composable into a fallback chain; the
// tagger guarantees that total engine unavailability degrades to a neutral
// verdict rather than an error.
//
// Implementations must be safe for concurrent use and must respect context
// cancellation and deadlines — a hung engine call is capped by the caller's
// timeout, never by the engine itself.
package sentiment

import "context"

// Label is the discrete sentiment classification an engine returns.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
)

// IsValid reports whether l is a recognised label.
func (l Label) IsValid() bool {
	return l == LabelPositive || l == LabelNegative || l == LabelNeutral
}

// Analysis is the result of analysing one text.
type Analysis struct {
	// Polarity is the signed sentiment strength on a [-1, 1] scale:
	// -1 strongly negative, 0 neutral, +1 strongly positive.
	Polarity float64

	// Label is the discrete classification. Engines must keep Label
	// consistent with the sign of Polarity.
	Label Label
}

// Score converts Polarity to the [0, 1] scale used in persisted records,
// clamping out-of-range engine outputs. The midpoint 0.5 is the neutral
// fallback value.
func (a Analysis) Score() float64 {
	p := a.Polarity
	if p < -1 {
		p = -1
	}
	if p > 1 {
		p = 1
	}
	return (p + 1) / 2
}

// Engine analyses the sentiment of short multilingual transcript text.
type Engine interface {
	// Analyze classifies text. It must return a fully populated Analysis
	// or an error — never a partial result. Implementations must honour
	// ctx deadlines.
	Analyze(ctx context.Context, text string) (Analysis, error)
}
