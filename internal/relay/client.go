// Package relay implements the persistent-connection client for the live
// transcription relay.
//
// A [Client] joins a single logical channel transcription session over a
// WebSocket, receives inbound line and status events, fans them out
// synchronously to registered subscribers in transport-receipt order, and
// issues start/stop control commands. The client does not auto-reconnect:
// transport failures surface through the error topic and recovery is the
// caller's responsibility via an explicit [Client.Connect] retry.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/anikdutta/voterpulse/internal/observe"
	"github.com/anikdutta/voterpulse/internal/transcript"
)

// ErrNotConnected is returned by control commands issued while the client is
// not connected. Commands are not queued — checking connection state first is
// a caller precondition.
var ErrNotConnected = errors.New("relay: not connected")

// defaultDialTimeout bounds connection establishment. A connect attempt must
// fail into the error state rather than hang indefinitely.
const defaultDialTimeout = 10 * time.Second

// displayClock is the locale-style clock format stamped onto lines the
// server delivers without a timestamp. Display-only, never sorted on.
const displayClock = "3:04:05 PM"

// ConnState is the relay client's connection state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateErrored
)

// String returns the human-readable name of the state.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateErrored:
		return "error"
	default:
		return "unknown"
	}
}

// Client is a relay client over a single persistent WebSocket connection.
//
// Construct one per application with [New] and pass it by reference to
// whatever consumes it; its lifecycle belongs to the composition root. All
// methods are safe for concurrent use.
type Client struct {
	url         string
	dialTimeout time.Duration
	metrics     *observe.Metrics

	lines    *Topic[transcript.Line]
	statuses *Topic[transcript.Status]
	errs     *Topic[error]

	mu            sync.Mutex
	state         ConnState
	conn          *websocket.Conn
	activeChannel string
	readCancel    context.CancelFunc

	// Injected in tests.
	now   func() time.Time
	newID func() string
}

// Option is a functional option for [New].
type Option func(*Client)

// WithDialTimeout overrides the connection establishment timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithMetrics records relay event and subscriber metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a disconnected Client for the given WebSocket URL.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:         url,
		dialTimeout: defaultDialTimeout,
		lines:       NewTopic[transcript.Line](),
		statuses:    NewTopic[transcript.Status](),
		errs:        NewTopic[error](),
		state:       StateDisconnected,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State reports the connection state at the time of the call.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActiveChannel returns the channel id of the running transcription session,
// or the empty string when none is active.
func (c *Client) ActiveChannel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeChannel
}

// Connect establishes the persistent connection. It returns only once the
// transport confirms the connection is live, and fails into the error state
// when the dial does not complete within the configured timeout. Calling
// Connect while already connected is a no-op that returns immediately
// without a second handshake.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.url, nil)
	if err != nil {
		c.mu.Lock()
		c.state = StateErrored
		c.mu.Unlock()
		return fmt.Errorf("relay: dial %s: %w", c.url, err)
	}

	// The read loop outlives the dial context; it stops on Disconnect.
	readCtx, readCancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.conn = conn
	c.readCancel = readCancel
	c.state = StateConnected
	c.mu.Unlock()

	go c.receiveLoop(readCtx, conn)

	slog.Info("relay connected", "url", c.url)
	return nil
}

// StartTranscription records channelID as the active channel and issues the
// start control message. Valid only once connected; it is the caller's
// responsibility not to call this before Connect returns.
func (c *Client) StartTranscription(ctx context.Context, channelID string, filterPolitical bool) error {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.Unlock()

	err := writeJSON(ctx, conn, envelope{
		Type:            msgStartTranscription,
		ChannelID:       channelID,
		FilterPolitical: filterPolitical,
	})
	if err != nil {
		return fmt.Errorf("relay: start transcription: %w", err)
	}

	c.mu.Lock()
	c.activeChannel = channelID
	c.mu.Unlock()

	slog.Info("transcription started", "channel_id", channelID, "political_only", filterPolitical)
	return nil
}

// StopTranscription issues the stop control message for the active channel
// and clears the active-channel record. It is a safe no-op when no channel is
// active — no control message is emitted.
func (c *Client) StopTranscription(ctx context.Context) error {
	c.mu.Lock()
	if c.activeChannel == "" {
		c.mu.Unlock()
		return nil
	}
	channelID := c.activeChannel
	conn := c.conn
	c.activeChannel = ""
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := writeJSON(ctx, conn, envelope{Type: msgStopTranscription, ChannelID: channelID}); err != nil {
		return fmt.Errorf("relay: stop transcription: %w", err)
	}
	slog.Info("transcription stopped", "channel_id", channelID)
	return nil
}

// Disconnect tears down the transport unconditionally. Registered
// subscriptions survive but receive no further events until a new Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	readCancel := c.readCancel
	c.conn = nil
	c.readCancel = nil
	c.activeChannel = ""
	c.state = StateDisconnected
	c.mu.Unlock()

	if readCancel != nil {
		readCancel()
	}
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
}

// OnTranscript registers fn for inbound transcript lines and returns its
// idempotent unsubscribe function.
func (c *Client) OnTranscript(fn func(transcript.Line)) (unsubscribe func()) {
	return subscribeCounted(c, c.lines, fn)
}

// OnStatus registers fn for session status events.
func (c *Client) OnStatus(fn func(transcript.Status)) (unsubscribe func()) {
	return subscribeCounted(c, c.statuses, fn)
}

// OnError registers fn for transport and session errors. Errors surface
// here, never as panics or as failures of already-returned calls.
func (c *Client) OnError(fn func(error)) (unsubscribe func()) {
	return subscribeCounted(c, c.errs, fn)
}

// subscribeCounted wraps Topic.Subscribe with subscriber-count accounting.
// A package-level function because Go does not support method-level type
// parameters.
func subscribeCounted[T any](c *Client, t *Topic[T], fn func(T)) func() {
	unsub := t.Subscribe(fn)
	if c.metrics != nil {
		c.metrics.ActiveSubscribers.Add(context.Background(), 1)
	}
	var once sync.Once
	return func() {
		unsub()
		once.Do(func() {
			if c.metrics != nil {
				c.metrics.ActiveSubscribers.Add(context.Background(), -1)
			}
		})
	}
}

// receiveLoop reads frames until the connection drops or Disconnect cancels
// ctx. Events are dispatched synchronously in receipt order; persistence and
// tagging happen in subscriber goroutines, never here, so delivery of the
// next event is never blocked by a pending save.
func (c *Client) receiveLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Deliberate disconnect.
				return
			}
			c.mu.Lock()
			// Only transition if this loop's conn is still current.
			if c.conn == conn {
				c.state = StateErrored
				c.conn = nil
				c.activeChannel = ""
			}
			c.mu.Unlock()

			slog.Warn("relay connection lost", "error", err)
			c.errs.Publish(fmt.Errorf("relay: connection lost: %w", err))
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Debug("relay: dropping malformed frame", "error", err)
			continue
		}
		c.dispatch(env)
	}
}

// dispatch fans one inbound envelope out to the matching topic.
func (c *Client) dispatch(env envelope) {
	switch env.Type {
	case msgTranscript:
		if env.Line == nil {
			return
		}
		line := *env.Line
		if line.ID == "" {
			line.ID = c.newID()
		}
		if line.Timestamp == "" {
			line.Timestamp = c.now().Format(displayClock)
		}
		c.count("transcript")
		c.lines.Publish(line)

	case msgTranscriptionState:
		if env.Status == nil {
			return
		}
		c.count("status")
		c.statuses.Publish(*env.Status)

	case msgTranscriptionError:
		c.count("error")
		c.errs.Publish(fmt.Errorf("relay: channel %s: %s", env.ChannelID, env.Error))

	case msgError:
		c.count("error")
		c.errs.Publish(fmt.Errorf("relay: server error: %s", env.Message))

	default:
		slog.Debug("relay: unknown event type", "type", env.Type)
	}
}

// count increments the relay event counter when metrics are attached.
func (c *Client) count(kind string) {
	if c.metrics == nil {
		return
	}
	c.metrics.RelayEvents.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", kind)))
}

// writeJSON marshals v and writes it as a text WebSocket message.
func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
