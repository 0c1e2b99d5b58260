package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	// Max bytes per websocket frame read (hard limit).
	maxFrameBytes = 64 << 10 // 64 KiB

	defaultRetryDelay  = 1000 * time.Millisecond
	defaultDialTimeout = 10 * time.Second
	defaultEventBuffer = 64
)

var (
	// ErrNotConnected is returned by Send while no transport is connected.
	ErrNotConnected = errors.New("client: not connected")

	// ErrConnSuperseded is returned by a Connect whose connection was torn
	// down by a newer Connect or by Disconnect before it went live.
	ErrConnSuperseded = errors.New("client: connection superseded")
)

// ConnState is the transport connection state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// EventKind discriminates transport events.
type EventKind int

const (
	// EventOpened: a transport connection went live.
	EventOpened EventKind = iota
	// EventFrame: one inbound frame, delivered in arrival order.
	EventFrame
	// EventClosed: the transport connection ended. Unexpected closes
	// schedule a reconnect; manual ones do not.
	EventClosed
)

// Event is one transport event. Events for a single connection are emitted
// in order: Opened, zero or more Frames, then a Closed when the connection
// ends on its own. A connection superseded by a newer Connect emits no
// Closed of its own; the new connection's events take over.
type Event struct {
	Kind       EventKind
	Frame      []byte
	Unexpected bool
}

// Conn is one live transport connection.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, frame []byte) error
	Close() error
}

// Dialer establishes transport connections. The production implementation
// wraps coder/websocket; tests substitute fakes.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials the relay's upgrade endpoint.
type WebsocketDialer struct{}

func (WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c.SetReadLimit(maxFrameBytes)
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w *wsConn) Write(ctx context.Context, frame []byte) error {
	return w.c.Write(ctx, websocket.MessageText, frame)
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "bye")
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// URL of the relay upgrade endpoint (ws:// or wss:// per page scheme).
	URL string
	// RetryDelay is the fixed delay before each automatic reconnect.
	// There is no growth and no attempt cap.
	RetryDelay time.Duration
	// DialTimeout bounds a single dial attempt.
	DialTimeout time.Duration
	// EventBuffer sizes the event channel.
	EventBuffer int
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = defaultEventBuffer
	}
	return c
}

// Manager owns exactly one logical transport connection at a time.
//
// Establishing a new connection always tears down the prior one first. An
// unexpected close schedules a reconnect after the fixed RetryDelay,
// unconditionally and unbounded, until Disconnect marks the close as
// manual. The owner must drain Events while the manager is in use.
type Manager struct {
	cfg    ManagerConfig
	log    *slog.Logger
	dialer Dialer

	events chan Event

	mu          sync.Mutex
	state       ConnState
	conn        Conn
	gen         int
	manualClose bool
	retryTimer  *time.Timer
}

// NewManager constructs a Manager. A nil dialer uses WebsocketDialer.
func NewManager(cfg ManagerConfig, log *slog.Logger, dialer Dialer) *Manager {
	if dialer == nil {
		dialer = WebsocketDialer{}
	}
	return &Manager{
		cfg:    cfg.withDefaults(),
		log:    log,
		dialer: dialer,
		events: make(chan Event, cfg.withDefaults().EventBuffer),
	}
}

// Events returns the ordered transport event stream.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// State reports the current connection state.
func (m *Manager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect tears down any live or in-progress connection and establishes a
// new one. On success the connection is live and an Opened event has been
// emitted. On dial failure a reconnect is scheduled exactly as for an
// unexpected close.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	m.teardownLocked()
	m.manualClose = false
	m.state = StateConnecting
	gen := m.gen
	m.mu.Unlock()

	m.log.Debug("conn.dial", "url", m.cfg.URL)

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	conn, err := m.dialer.Dial(dialCtx, m.cfg.URL)
	cancel()

	if err != nil {
		m.log.Warn("conn.dial.fail", "err", err)
		m.closed(gen)
		return err
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		_ = conn.Close()
		return ErrConnSuperseded
	}
	m.conn = conn
	m.state = StateConnected
	m.mu.Unlock()

	m.log.Info("conn.open", "url", m.cfg.URL)
	m.events <- Event{Kind: EventOpened}

	go m.readPump(gen, conn)
	return nil
}

// Disconnect marks the close as manual, closes any live connection, and
// cancels any pending reconnect. The manager stays Disconnected until the
// owner calls Connect again.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.manualClose = true
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	conn := m.conn
	if conn == nil {
		// No live connection to report a close for; settle the state here.
		m.state = StateDisconnected
		m.gen++
	}
	m.mu.Unlock()

	if conn != nil {
		// The read pump observes the close and reports it as expected.
		_ = conn.Close()
	}
	m.log.Info("conn.manual_close")
}

// Send writes one frame on the live connection.
func (m *Manager) Send(ctx context.Context, frame []byte) error {
	m.mu.Lock()
	if m.state != StateConnected || m.conn == nil {
		m.mu.Unlock()
		return ErrNotConnected
	}
	conn := m.conn
	m.mu.Unlock()

	return conn.Write(ctx, frame)
}

// readPump delivers inbound frames in order until the connection ends.
// Transport errors are treated as closes.
func (m *Manager) readPump(gen int, conn Conn) {
	for {
		data, err := conn.Read(context.Background())
		if err != nil {
			m.mu.Lock()
			stale := m.gen != gen
			m.mu.Unlock()
			if stale {
				return
			}
			_ = conn.Close()
			m.closed(gen)
			return
		}
		m.events <- Event{Kind: EventFrame, Frame: data}
	}
}

// closed settles state after a connection (or dial attempt) ended and
// schedules the reconnect when the close was unexpected.
func (m *Manager) closed(gen int) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.conn = nil
	m.state = StateDisconnected
	unexpected := !m.manualClose
	if unexpected {
		m.retryTimer = time.AfterFunc(m.cfg.RetryDelay, m.retry)
	}
	m.mu.Unlock()

	if unexpected {
		m.log.Warn("conn.closed.unexpected", "retry_in", m.cfg.RetryDelay)
	} else {
		m.log.Info("conn.closed")
	}
	m.events <- Event{Kind: EventClosed, Unexpected: unexpected}
}

// retry runs at timer fire. Disconnect may have happened after scheduling;
// the manualClose flag is re-checked here so a cancelled reconnect stays
// cancelled even if the timer already fired.
func (m *Manager) retry() {
	m.mu.Lock()
	if m.manualClose || m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.log.Info("conn.retry")
	_ = m.Connect(context.Background())
}

// teardownLocked invalidates the current connection generation and closes
// any live connection. Callers hold m.mu.
func (m *Manager) teardownLocked() {
	m.gen++
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.state = StateDisconnected
}
