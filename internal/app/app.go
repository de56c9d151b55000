// Package app wires all VoterPulse subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the HTTP server and blocks until the context is
// cancelled, and Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithStore, WithRelay, etc.). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/anikdutta/voterpulse/internal/config"
	"github.com/anikdutta/voterpulse/internal/health"
	"github.com/anikdutta/voterpulse/internal/observe"
	"github.com/anikdutta/voterpulse/internal/panel"
	"github.com/anikdutta/voterpulse/internal/relay"
	"github.com/anikdutta/voterpulse/internal/resilience"
	"github.com/anikdutta/voterpulse/internal/tagger"
	"github.com/anikdutta/voterpulse/internal/transcript"
	"github.com/anikdutta/voterpulse/pkg/sentiment"
)

// httpShutdownTimeout bounds the graceful drain of in-flight HTTP requests.
const httpShutdownTimeout = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg      *config.Config
	registry *config.Registry
	metrics  *observe.Metrics

	// Subsystems, initialised in New, torn down in Shutdown.
	pool   *pgxpool.Pool
	store  transcript.Store
	tagger *tagger.Tagger
	relay  panel.Relay
	panel  *panel.Panel
	srv    *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a transcript store instead of connecting to PostgreSQL.
func WithStore(s transcript.Store) Option {
	return func(a *App) { a.store = s }
}

// WithRelay injects a relay client instead of creating one from config.
func WithRelay(r panel.Relay) Option {
	return func(a *App) { a.relay = r }
}

// WithRegistry overrides the sentiment engine registry.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithMetrics injects a metrics instance instead of creating one from the
// global meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together: metrics, the tagger
// with its engine fallback chain, the PostgreSQL archive, the relay client,
// the presentation panel, and the HTTP server. Use Option functions to
// inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:      cfg,
		registry: config.DefaultRegistry(),
	}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		m, err := observe.NewMetrics(otel.GetMeterProvider())
		if err != nil {
			return nil, fmt.Errorf("app: init metrics: %w", err)
		}
		a.metrics = m
	}

	if err := a.initTagger(); err != nil {
		return nil, fmt.Errorf("app: init tagger: %w", err)
	}
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	a.initRelay()
	a.initPanel()
	a.initHTTP()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initTagger builds the keyword set and the sentiment engine chain.
func (a *App) initTagger() error {
	keywords := tagger.NewKeywordSet(a.cfg.Keywords.BJP, a.cfg.Keywords.TMC, keywordOpts(a.cfg.Keywords)...)

	chain, err := a.buildEngineChain()
	if err != nil {
		return err
	}

	tagOpts := []tagger.Option{tagger.WithMetrics(a.metrics)}
	if d := a.cfg.Sentiment.Timeout.Std(); d > 0 {
		tagOpts = append(tagOpts, tagger.WithEngineTimeout(d))
	}
	a.tagger = tagger.New(keywords, chain, tagOpts...)
	return nil
}

// buildEngineChain creates the configured primary engine and its fallbacks.
// Returns nil when no engine is configured; the tagger then reports every
// line as neutral.
func (a *App) buildEngineChain() (*resilience.Chain[sentiment.Engine], error) {
	primary := a.cfg.Sentiment.Primary
	if primary.Name == "" {
		return nil, nil
	}

	engine, err := a.registry.Create(primary)
	if err != nil {
		return nil, fmt.Errorf("create primary engine: %w", err)
	}
	chain := resilience.NewChain(engine, primary.Name, resilience.ChainConfig{
		Breaker: resilience.BreakerConfig{Name: primary.Name},
	})

	for i, entry := range a.cfg.Sentiment.Fallback {
		fb, err := a.registry.Create(entry)
		if err != nil {
			return nil, fmt.Errorf("create fallback engine %d: %w", i, err)
		}
		chain.AddFallback(entry.Name, fb)
	}
	return chain, nil
}

// initStore connects to PostgreSQL, runs the schema migration, and wraps the
// pool in a tagging store. With no DSN configured the app runs view-only.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil // injected
	}

	dsn := a.cfg.Database.PostgresDSN
	if dsn == "" {
		slog.Warn("no database configured, running view-only")
		return nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})

	store := transcript.NewPostgresStore(pool, a.tagger, transcript.WithStoreMetrics(a.metrics))
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	a.store = store
	return nil
}

// initRelay creates the WebSocket relay client if one wasn't injected.
func (a *App) initRelay() {
	if a.relay != nil {
		return
	}
	relayOpts := []relay.Option{relay.WithMetrics(a.metrics)}
	if d := a.cfg.Relay.DialTimeout.Std(); d > 0 {
		relayOpts = append(relayOpts, relay.WithDialTimeout(d))
	}
	client := relay.New(a.cfg.Relay.URL, relayOpts...)
	a.relay = client
	a.closers = append(a.closers, func() error {
		client.Disconnect()
		return nil
	})
}

// initPanel wires the presentation panel over the relay and store.
func (a *App) initPanel() {
	panelOpts := []panel.Option{panel.WithMetrics(a.metrics)}
	if n := a.cfg.Panel.BufferSize; n > 0 {
		panelOpts = append(panelOpts, panel.WithBufferCapacity(n))
	}
	if d := a.cfg.Panel.RestartPause.Std(); d > 0 {
		panelOpts = append(panelOpts, panel.WithRestartPause(d))
	}
	if a.cfg.Panel.AutoSave {
		panelOpts = append(panelOpts, panel.WithAutoSave())
	}
	a.panel = panel.New(a.relay, a.store, panelOpts...)
}

// initHTTP assembles the mux: health probes and the Prometheus scrape
// endpoint, all behind the telemetry middleware.
func (a *App) initHTTP() {
	checkers := []health.Checker{a.relayChecker()}
	if a.pool != nil {
		checkers = append(checkers, health.DatabaseChecker(a.pool))
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.srv = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// relayChecker reports the relay's connection state for /readyz. An idle or
// connected relay is ready; only the errored state fails the probe.
func (a *App) relayChecker() health.Checker {
	return health.RelayChecker(func() (string, bool) {
		client, ok := a.relay.(*relay.Client)
		if !ok {
			return "injected", true
		}
		state := client.State()
		return state.String(), state != relay.StateErrored
	})
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Panel returns the presentation panel.
func (a *App) Panel() *panel.Panel { return a.panel }

// Store returns the transcript store, or nil when running view-only.
func (a *App) Store() transcript.Store { return a.store }

// Tagger returns the line tagger.
func (a *App) Tagger() *tagger.Tagger { return a.tagger }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and blocks until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("app running", "addr", a.cfg.Server.ListenAddr, "relay", a.cfg.Relay.URL)

	select {
	case err := <-errCh:
		return fmt.Errorf("app: http server: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ApplyConfigChange applies a hot-reloadable config diff to the running app.
// Changes that require a restart are logged and skipped.
func (a *App) ApplyConfigChange(diff config.ConfigDiff, cfg *config.Config) {
	if diff.KeywordsChanged {
		a.tagger.SetKeywords(tagger.NewKeywordSet(cfg.Keywords.BJP, cfg.Keywords.TMC, keywordOpts(cfg.Keywords)...))
		slog.Info("applied keyword config change")
	}
	if diff.AutoSaveChanged {
		a.panel.SetAutoSave(diff.NewAutoSave)
		slog.Info("applied auto-save config change", "auto_save", diff.NewAutoSave)
	}
	if diff.RestartRequired {
		slog.Warn("config change requires a restart to take effect")
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the panel session, drains the HTTP server, and tears down
// all subsystems in reverse-init order. It respects the context deadline: if
// ctx expires before all closers finish, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		stopCtx, cancel := context.WithTimeout(ctx, httpShutdownTimeout)
		defer cancel()

		if err := a.panel.Stop(stopCtx); err != nil {
			slog.Warn("panel stop error", "err", err)
		}
		if err := a.srv.Shutdown(stopCtx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// keywordOpts translates the keywords config block into keyword set options.
func keywordOpts(kc config.KeywordsConfig) []tagger.KeywordOption {
	if kc.Fuzzy {
		return []tagger.KeywordOption{tagger.WithFuzzyMatching()}
	}
	return nil
}
