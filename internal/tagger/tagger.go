// Package tagger assigns sentiment labels and party mention flags to raw
// transcript text.
//
// Tagging is best-effort by contract: [Tagger.Tag] never returns an error and
// never blocks indefinitely. Mention detection is local keyword matching;
// sentiment delegates to a chain of analysis engines with a per-call timeout,
// substituting a neutral verdict (and the midpoint score 0.5) when every
// engine fails. A tagging failure must never block persistence or delivery of
// the underlying line.
package tagger

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/anikdutta/voterpulse/internal/observe"
	"github.com/anikdutta/voterpulse/internal/resilience"
	"github.com/anikdutta/voterpulse/internal/transcript"
	"github.com/anikdutta/voterpulse/pkg/sentiment"
)

// defaultEngineTimeout bounds a single sentiment-engine call. A hung engine
// must not stall the tagging of subsequent lines.
const defaultEngineTimeout = 5 * time.Second

// neutralScore is the midpoint of the [0, 1] score scale, substituted when
// sentiment analysis fails.
const neutralScore = 0.5

// Tagger derives tags from raw multilingual text. It is safe for concurrent
// use; the keyword set can be swapped live via [Tagger.SetKeywords].
type Tagger struct {
	keywords atomic.Pointer[KeywordSet]
	engines  *resilience.Chain[sentiment.Engine]
	timeout  time.Duration
	metrics  *observe.Metrics
}

// Option is a functional option for [New].
type Option func(*Tagger)

// WithEngineTimeout overrides the per-call sentiment engine timeout.
func WithEngineTimeout(d time.Duration) Option {
	return func(t *Tagger) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithMetrics records engine latency and fallback counts on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(t *Tagger) { t.metrics = m }
}

// New creates a Tagger. keywords must not be nil; engines may be nil, in
// which case sentiment is always neutral (mention detection still runs).
func New(keywords *KeywordSet, engines *resilience.Chain[sentiment.Engine], opts ...Option) *Tagger {
	t := &Tagger{
		engines: engines,
		timeout: defaultEngineTimeout,
	}
	t.keywords.Store(keywords)
	for _, o := range opts {
		o(t)
	}
	return t
}

// SetKeywords swaps the keyword set used for mention detection. In-flight
// calls finish with the set they started with.
func (t *Tagger) SetKeywords(keywords *KeywordSet) {
	if keywords != nil {
		t.keywords.Store(keywords)
	}
}

// Detect runs keyword-only mention detection, without touching the sentiment
// engines. Used by callers that already hold a sentiment for the text.
func (t *Tagger) Detect(text string) (bjp, tmc bool) {
	return t.keywords.Load().Detect(text)
}

// Tag analyses text and returns fully populated [transcript.Tags]. It never
// fails: engine errors and timeouts collapse to a neutral sentiment while the
// keyword-derived mention flags are always exact.
func (t *Tagger) Tag(ctx context.Context, text string) transcript.Tags {
	bjp, tmc := t.keywords.Load().Detect(text)

	tags := transcript.Tags{
		Sentiment:  transcript.SentimentNeutral,
		Score:      neutralScore,
		BJPMention: bjp,
		TMCMention: tmc,
	}

	if t.engines == nil || text == "" {
		return tags
	}

	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	analysis, err := resilience.RunWithResult(t.engines, func(e sentiment.Engine) (sentiment.Analysis, error) {
		return e.Analyze(callCtx, text)
	})
	elapsed := time.Since(start)

	if err != nil {
		// Recovered locally: the caller proceeds as if tagging succeeded.
		slog.Debug("sentiment analysis failed, using neutral",
			"error", err, "elapsed", elapsed)
		t.record(ctx, elapsed, "fallback")
		return tags
	}

	tags.Sentiment = transcript.Sentiment(analysis.Label)
	tags.Score = analysis.Score()
	t.record(ctx, elapsed, "ok")
	return tags
}

// record emits engine metrics when a Metrics instance is attached.
func (t *Tagger) record(ctx context.Context, elapsed time.Duration, status string) {
	if t.metrics == nil {
		return
	}
	t.metrics.EngineDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("status", status)))
	if status == "fallback" {
		t.metrics.EngineFallbacks.Add(ctx, 1)
	}
}
