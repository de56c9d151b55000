package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [Chain] fails or has an open
// breaker.
var ErrAllFailed = errors.New("all engines failed")

// ChainConfig configures the per-entry breaker created for each engine in a
// [Chain].
type ChainConfig struct {
	Breaker BreakerConfig
}

// chainEntry pairs an engine value with its dedicated breaker.
type chainEntry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Chain wraps a primary and zero or more fallback instances of the same
// engine type. When the primary fails (or its breaker is open), the next
// healthy fallback is tried in registration order.
//
// Chain is safe for concurrent use.
type Chain[T any] struct {
	entries []chainEntry[T]
	cfg     ChainConfig
}

// NewChain creates a [Chain] with primary as the first entry. Further
// fallbacks are registered via [Chain.AddFallback].
func NewChain[T any](primary T, primaryName string, cfg ChainConfig) *Chain[T] {
	bCfg := cfg.Breaker
	bCfg.Name = primaryName
	return &Chain[T]{
		entries: []chainEntry[T]{
			{name: primaryName, value: primary, breaker: NewBreaker(bCfg)},
		},
		cfg: cfg,
	}
}

// AddFallback appends a fallback engine. Fallbacks are tried in the order
// they are added, after the primary.
func (c *Chain[T]) AddFallback(name string, fallback T) {
	bCfg := c.cfg.Breaker
	bCfg.Name = name
	c.entries = append(c.entries, chainEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewBreaker(bCfg),
	})
}

// Names returns the entry names in trial order. Useful for logging the
// configured chain at startup.
func (c *Chain[T]) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.name
	}
	return names
}

// Run tries fn against each entry in order until one succeeds. Entries with
// an open breaker are skipped. Returns [ErrAllFailed] wrapped with the last
// error when every entry fails.
func (c *Chain[T]) Run(fn func(T) error) error {
	var lastErr error
	for i := range c.entries {
		entry := &c.entries[i]
		err := entry.breaker.Do(func() error {
			return fn(entry.value)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrOpen) {
			slog.Debug("skipping engine (breaker open)", "engine", entry.name)
		} else {
			slog.Warn("engine failed, trying next", "engine", entry.name, "error", err)
		}
	}
	return fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// RunWithResult tries fn against each entry until one succeeds, returning the
// result value. A package-level function because Go does not support
// method-level type parameters.
func RunWithResult[T any, R any](c *Chain[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range c.entries {
		entry := &c.entries[i]
		var result R
		err := entry.breaker.Do(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrOpen) {
			slog.Debug("skipping engine (breaker open)", "engine", entry.name)
		} else {
			slog.Warn("engine failed, trying next", "engine", entry.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
