package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Horlarhyinka/ai-classroom/speech"
)

// State is the connection lifecycle phase.
type State int

const (
	// Disconnected means no session is open and none is being dialed.
	Disconnected State = iota
	// Connecting means a dial or redial is in flight.
	Connecting
	// Connected means frames flow in both directions.
	Connected
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Handler receives connection lifecycle callbacks and inbound frames.
// Callbacks run on the connection goroutine; handlers must not block.
type Handler interface {
	HandleConnect()
	HandleFrame(Frame)
	HandleDisconnect(err error)
}

// RetryConfig controls redial backoff after a dropped connection.
type RetryConfig struct {
	MaxAttempts int           // Attempts per outage before giving up
	Backoff     time.Duration // Initial backoff between attempts
	Multiplier  float64       // Exponential growth factor
	MaxBackoff  time.Duration // Backoff ceiling
}

// DefaultRetryConfig returns the redial policy used when none is given.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		Backoff:     1 * time.Second,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
	}
}

// Conn is the single connection manager for one realtime channel. It dials
// through the transport, redials with exponential backoff after drops, and
// hands every inbound frame to the handler. At most one session is live at
// a time.
type Conn struct {
	transport Transport
	handler   Handler
	retry     RetryConfig
	logger    *log.Logger

	mu      sync.Mutex
	state   State
	session Session
}

// NewConn builds a connection manager. Run must be called to start it.
func NewConn(transport Transport, handler Handler, retry RetryConfig, logger *log.Logger) *Conn {
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Conn{
		transport: transport,
		handler:   handler,
		retry:     retry,
		logger:    logger.With("component", "stream-conn"),
	}
}

// State returns the current lifecycle phase.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send marshals v and writes it on the live session. Returns a connection
// error when no session is open; callers buffer and replay on reconnect.
func (c *Conn) Send(event string, v any) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return &speech.Error{Kind: speech.KindConnection, Op: "send", Err: speech.ErrNotConnected}
	}

	frame, err := NewFrame(event, v)
	if err != nil {
		return err
	}
	if err := session.Send(frame); err != nil {
		return &speech.Error{Kind: speech.KindConnection, Op: "send", Err: err}
	}
	return nil
}

// Run dials and serves the connection until ctx is canceled or an outage
// outlasts the retry budget. Each successful connection resets the budget.
func (c *Conn) Run(ctx context.Context) error {
	defer c.setState(Disconnected, nil)

	for {
		session, err := c.dial(ctx)
		if err != nil {
			return err
		}

		c.setState(Connected, session)
		c.logger.Info("connected")
		c.handler.HandleConnect()

		err = c.serve(ctx, session)
		c.setState(Disconnected, nil)
		_ = session.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("connection lost", "error", err)
		c.handler.HandleDisconnect(err)
	}
}

// dial attempts to open a session with exponential backoff, in the shape of
// a bounded retry loop.
func (c *Conn) dial(ctx context.Context) (Session, error) {
	c.setState(Connecting, nil)

	backoff := c.retry.Backoff
	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		session, err := c.transport.Dial(ctx)
		if err == nil {
			return session, nil
		}
		lastErr = err

		if attempt < c.retry.MaxAttempts-1 {
			c.logger.Warn("dial failed, retrying",
				"attempt", attempt+1, "max", c.retry.MaxAttempts,
				"backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * c.retry.Multiplier)
				if backoff > c.retry.MaxBackoff {
					backoff = c.retry.MaxBackoff
				}
			}
		}
	}

	return nil, &speech.Error{
		Kind: speech.KindConnection,
		Op:   "dial",
		Err:  fmt.Errorf("gave up after %d attempts: %w", c.retry.MaxAttempts, lastErr),
	}
}

// serve reads frames until the session fails or ctx is canceled.
func (c *Conn) serve(ctx context.Context, session Session) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-done:
		}
	}()

	for {
		frame, err := session.Receive()
		if err != nil {
			return err
		}
		c.handler.HandleFrame(frame)
	}
}

func (c *Conn) setState(state State, session Session) {
	c.mu.Lock()
	c.state = state
	c.session = session
	c.mu.Unlock()
}
