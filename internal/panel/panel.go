// Package panel implements the UI-facing controller for the live transcript
// view: connection lifecycle, a bounded buffer of recent lines, client-side
// search, auto-persist toggling, and server-side filter renegotiation.
//
// Rendering is out of scope — the panel exposes state and snapshots for a
// frontend to poll or bind to. Connection status and save status are meant to
// be shown as small persistent indicators: the line stream keeps rendering
// regardless of persistence outcome, and a failed save never removes a line
// from the buffer or interrupts the stream.
package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/anikdutta/voterpulse/internal/observe"
	"github.com/anikdutta/voterpulse/internal/transcript"
)

// ErrAlreadyStreaming is returned by Start while a session is running.
var ErrAlreadyStreaming = errors.New("panel: session already running")

// defaultRestartPause is the brief gap between stop and start when the
// political filter is renegotiated with the server.
const defaultRestartPause = 500 * time.Millisecond

// State is the panel's connection state. The history-loading flag is
// orthogonal and reported separately by [Panel.LoadingHistory].
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// SaveState is the auto-persist indicator shown next to the stream.
type SaveState int

const (
	SaveOff SaveState = iota
	SaveIdle
	SaveSaving
	SaveError
)

// String returns the human-readable name of the save state.
func (s SaveState) String() string {
	switch s {
	case SaveOff:
		return "off"
	case SaveIdle:
		return "on"
	case SaveSaving:
		return "saving"
	case SaveError:
		return "error"
	default:
		return "unknown"
	}
}

// Relay is the subset of the relay client the panel drives.
// Satisfied by *relay.Client.
type Relay interface {
	Connect(ctx context.Context) error
	StartTranscription(ctx context.Context, channelID string, filterPolitical bool) error
	StopTranscription(ctx context.Context) error
	Disconnect()
	OnTranscript(fn func(transcript.Line)) (unsubscribe func())
	OnStatus(fn func(transcript.Status)) (unsubscribe func())
	OnError(fn func(error)) (unsubscribe func())
}

// Panel owns the live-view state machine. All methods are safe for
// concurrent use.
type Panel struct {
	relay   Relay
	store   transcript.Store
	buffer  *Buffer
	metrics *observe.Metrics

	restartPause time.Duration

	mu             sync.Mutex
	state          State
	saveState      SaveState
	autoSave       bool
	political      bool
	channelName    string
	channelID      string
	loadingHistory bool
	lastStatus     transcript.Status
	lastErr        error
	unsubs         []func()
	runCtx         context.Context
	runCancel      context.CancelFunc

	// saves tracks in-flight auto-persist goroutines so Stop (and tests)
	// can wait for them.
	saves sync.WaitGroup
}

// Option is a functional option for [New].
type Option func(*Panel)

// WithBufferCapacity overrides the retained-line count (default 50).
func WithBufferCapacity(n int) Option {
	return func(p *Panel) { p.buffer = NewBuffer(n) }
}

// WithRestartPause overrides the stop/start gap used when the political
// filter is toggled mid-session.
func WithRestartPause(d time.Duration) Option {
	return func(p *Panel) {
		if d > 0 {
			p.restartPause = d
		}
	}
}

// WithAutoSave enables auto-persist from construction.
func WithAutoSave() Option {
	return func(p *Panel) {
		p.autoSave = true
		p.saveState = SaveIdle
	}
}

// WithMetrics records buffered-line counts on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Panel) { p.metrics = m }
}

// New creates an idle Panel. store may be nil when persistence is not
// wanted; auto-save then stays off.
func New(relay Relay, store transcript.Store, opts ...Option) *Panel {
	p := &Panel{
		relay:        relay,
		store:        store,
		buffer:       NewBuffer(DefaultBufferCapacity),
		restartPause: defaultRestartPause,
		state:        StateIdle,
		saveState:    SaveOff,
	}
	for _, o := range opts {
		o(p)
	}
	if p.store == nil {
		p.autoSave = false
		p.saveState = SaveOff
	}
	return p
}

// Start begins a live session on the given channel: it clears the buffer,
// connects the relay, subscribes, and issues the start command. Incoming
// lines accumulate in the buffer from the moment the session is streaming.
func (p *Panel) Start(ctx context.Context, channelName, channelID string, politicalOnly bool) error {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return ErrAlreadyStreaming
	}
	p.state = StateConnecting
	p.channelName = channelName
	p.channelID = channelID
	p.political = politicalOnly
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.runCtx = runCtx
	p.runCancel = cancel
	p.mu.Unlock()

	p.dropBuffered()

	if err := p.relay.Connect(ctx); err != nil {
		p.mu.Lock()
		p.state = StateIdle
		p.lastErr = err
		cancel()
		p.mu.Unlock()
		return fmt.Errorf("panel: connect: %w", err)
	}

	unsubs := []func(){
		p.relay.OnTranscript(p.onLine),
		p.relay.OnStatus(p.onStatus),
		p.relay.OnError(p.onError),
	}

	if err := p.relay.StartTranscription(ctx, channelID, politicalOnly); err != nil {
		for _, u := range unsubs {
			u()
		}
		p.relay.Disconnect()
		p.mu.Lock()
		p.state = StateIdle
		p.lastErr = err
		cancel()
		p.mu.Unlock()
		return fmt.Errorf("panel: start transcription: %w", err)
	}

	p.mu.Lock()
	p.unsubs = unsubs
	p.state = StateStreaming
	p.mu.Unlock()
	return nil
}

// Stop ends the live session: stop command, unsubscribe, disconnect. The
// buffer keeps its contents so the last lines stay visible. Pending
// auto-saves are awaited before returning.
func (p *Panel) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.state == StateIdle {
		p.mu.Unlock()
		return nil
	}
	unsubs := p.unsubs
	p.unsubs = nil
	cancel := p.runCancel
	p.mu.Unlock()

	err := p.relay.StopTranscription(ctx)
	for _, u := range unsubs {
		u()
	}
	p.relay.Disconnect()

	p.saves.Wait()
	if cancel != nil {
		cancel()
	}

	p.mu.Lock()
	p.state = StateIdle
	p.mu.Unlock()

	if err != nil {
		return fmt.Errorf("panel: stop: %w", err)
	}
	return nil
}

// SetAutoSave toggles auto-persist. Enabling requires a store.
func (p *Panel) SetAutoSave(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if on && p.store == nil {
		return
	}
	p.autoSave = on
	if on {
		if p.saveState == SaveOff {
			p.saveState = SaveIdle
		}
	} else {
		p.saveState = SaveOff
	}
}

// SetPoliticalFilter renegotiates the server-side filter. The panel does not
// filter client-side: while streaming it stops the session, waits a brief
// pause, and starts again with the new flag on the same connection.
func (p *Panel) SetPoliticalFilter(ctx context.Context, politicalOnly bool) error {
	p.mu.Lock()
	if p.political == politicalOnly {
		p.mu.Unlock()
		return nil
	}
	p.political = politicalOnly
	streaming := p.state == StateStreaming
	channelID := p.channelID
	p.mu.Unlock()

	if !streaming {
		return nil
	}

	if err := p.relay.StopTranscription(ctx); err != nil {
		return fmt.Errorf("panel: filter restart stop: %w", err)
	}

	select {
	case <-time.After(p.restartPause):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := p.relay.StartTranscription(ctx, channelID, politicalOnly); err != nil {
		return fmt.Errorf("panel: filter restart start: %w", err)
	}
	return nil
}

// LoadHistory backfills the buffer from the store, newest records first from
// the query, re-ordered oldest-first for display. A nil result set from a
// failed read means "unavailable": the buffer is left untouched.
func (p *Panel) LoadHistory(ctx context.Context, opts transcript.QueryOptions) error {
	p.mu.Lock()
	if p.store == nil {
		p.mu.Unlock()
		return errors.New("panel: no store configured")
	}
	p.loadingHistory = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.loadingHistory = false
		p.mu.Unlock()
	}()

	records, err := p.store.Query(ctx, opts)
	if err != nil {
		return fmt.Errorf("panel: load history: %w", err)
	}

	p.dropBuffered()
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		bjp, tmc := rec.BJPMention, rec.TMCMention
		p.addToBuffer(transcript.Line{
			Timestamp:  rec.TranscriptTime,
			Bengali:    rec.BengaliText,
			Hindi:      rec.HindiText,
			English:    rec.EnglishText,
			Sentiment:  rec.Sentiment,
			BJPMention: &bjp,
			TMCMention: &tmc,
		})
	}
	return nil
}

// Search returns the buffered lines whose Bengali, Hindi, or English text
// contains query (case-insensitive). It only filters the rendered view; the
// underlying buffer is untouched and the store is never consulted. An empty
// query returns the full buffer.
func (p *Panel) Search(query string) []transcript.Line {
	lines := p.buffer.Lines()
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return lines
	}

	out := lines[:0:0]
	for _, l := range lines {
		if strings.Contains(strings.ToLower(l.Bengali), query) ||
			strings.Contains(strings.ToLower(l.Hindi), query) ||
			strings.Contains(strings.ToLower(l.English), query) {
			out = append(out, l)
		}
	}
	return out
}

// Lines returns the buffered lines oldest-first.
func (p *Panel) Lines() []transcript.Line { return p.buffer.Lines() }

// State reports the connection state.
func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SaveState reports the auto-persist indicator state.
func (p *Panel) SaveState() SaveState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saveState
}

// LoadingHistory reports whether a history backfill is in flight.
func (p *Panel) LoadingHistory() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadingHistory
}

// LastStatus returns the most recent session status event.
func (p *Panel) LastStatus() transcript.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastStatus
}

// LastError returns the most recent relay or save error, if any.
func (p *Panel) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// WaitSaves blocks until all in-flight auto-saves complete. For tests.
func (p *Panel) WaitSaves() { p.saves.Wait() }

// onLine buffers an incoming line and, when auto-persist is on, spawns a
// save task decoupled from the delivery path. The line stays buffered no
// matter how the save turns out.
func (p *Panel) onLine(line transcript.Line) {
	p.addToBuffer(line)

	p.mu.Lock()
	save := p.autoSave && p.store != nil
	if save {
		p.saveState = SaveSaving
	}
	channelName, channelID := p.channelName, p.channelID
	ctx := p.runCtx
	p.mu.Unlock()

	if !save {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	p.saves.Add(1)
	go func() {
		defer p.saves.Done()
		err := p.store.Save(ctx, channelName, channelID, line)

		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.autoSave {
			return
		}
		if err != nil {
			// Transient indicator only; the stream keeps going.
			p.saveState = SaveError
			p.lastErr = err
			slog.Warn("auto-save failed", "channel", channelName, "error", err)
			return
		}
		if p.saveState == SaveSaving {
			p.saveState = SaveIdle
		}
	}()
}

// onStatus records the latest session status.
func (p *Panel) onStatus(st transcript.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastStatus = st
}

// onError records relay errors for the status indicator.
func (p *Panel) onError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
}

// addToBuffer adds a line and keeps the buffered-lines gauge in step.
func (p *Panel) addToBuffer(line transcript.Line) {
	evicted := p.buffer.Add(line)
	if p.metrics != nil && !evicted {
		p.metrics.BufferedLines.Add(context.Background(), 1)
	}
}

// dropBuffered clears the buffer and the gauge together.
func (p *Panel) dropBuffered() {
	n := p.buffer.Clear()
	if p.metrics != nil && n > 0 {
		p.metrics.BufferedLines.Add(context.Background(), int64(-n))
	}
}
