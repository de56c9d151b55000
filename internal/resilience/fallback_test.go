package resilience

import (
	"errors"
	"testing"
	"time"
)

// countingEngine is a minimal stand-in for a sentiment engine.
type countingEngine struct {
	calls int
	err   error
	out   string
}

func (e *countingEngine) analyze() (string, error) {
	e.calls++
	return e.out, e.err
}

func newChain(primary *countingEngine, fallbacks ...*countingEngine) *Chain[*countingEngine] {
	c := NewChain(primary, "primary", ChainConfig{
		Breaker: BreakerConfig{MaxFailures: 2, CoolDown: time.Hour},
	})
	for i, fb := range fallbacks {
		c.AddFallback("fallback-"+string(rune('a'+i)), fb)
	}
	return c
}

func TestChain_PrimarySucceeds(t *testing.T) {
	t.Parallel()

	primary := &countingEngine{out: "primary"}
	fallback := &countingEngine{out: "fallback"}
	c := newChain(primary, fallback)

	got, err := RunWithResult(c, func(e *countingEngine) (string, error) { return e.analyze() })
	if err != nil {
		t.Fatalf("RunWithResult: %v", err)
	}
	if got != "primary" {
		t.Errorf("result = %q, want %q", got, "primary")
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times, want 0", fallback.calls)
	}
}

func TestChain_FallsBackOnFailure(t *testing.T) {
	t.Parallel()

	primary := &countingEngine{err: errBoom}
	fallback := &countingEngine{out: "fallback"}
	c := newChain(primary, fallback)

	got, err := RunWithResult(c, func(e *countingEngine) (string, error) { return e.analyze() })
	if err != nil {
		t.Fatalf("RunWithResult: %v", err)
	}
	if got != "fallback" {
		t.Errorf("result = %q, want %q", got, "fallback")
	}
	if primary.calls != 1 {
		t.Errorf("primary called %d times, want 1", primary.calls)
	}
}

func TestChain_AllFail(t *testing.T) {
	t.Parallel()

	c := newChain(&countingEngine{err: errBoom}, &countingEngine{err: errBoom})

	_, err := RunWithResult(c, func(e *countingEngine) (string, error) { return e.analyze() })
	if !errors.Is(err, ErrAllFailed) {
		t.Errorf("err = %v, want ErrAllFailed", err)
	}
}

func TestChain_OpenBreakerSkipsPrimary(t *testing.T) {
	t.Parallel()

	primary := &countingEngine{err: errBoom}
	fallback := &countingEngine{out: "fallback"}
	c := newChain(primary, fallback)

	run := func() (string, error) {
		return RunWithResult(c, func(e *countingEngine) (string, error) { return e.analyze() })
	}

	// Two failures trip the primary's breaker (MaxFailures: 2).
	for i := 0; i < 2; i++ {
		if _, err := run(); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	callsBefore := primary.calls

	if got, err := run(); err != nil || got != "fallback" {
		t.Fatalf("run = (%q, %v), want fallback", got, err)
	}
	if primary.calls != callsBefore {
		t.Errorf("primary called with open breaker (calls %d -> %d)", callsBefore, primary.calls)
	}
}

func TestChain_Run(t *testing.T) {
	t.Parallel()

	primary := &countingEngine{err: errBoom}
	fallback := &countingEngine{}
	c := newChain(primary, fallback)

	if err := c.Run(func(e *countingEngine) error { _, err := e.analyze(); return err }); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fallback.calls != 1 {
		t.Errorf("fallback calls = %d, want 1", fallback.calls)
	}
}

func TestChain_Names(t *testing.T) {
	t.Parallel()

	c := newChain(&countingEngine{}, &countingEngine{}, &countingEngine{})
	want := []string{"primary", "fallback-a", "fallback-b"}
	got := c.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
