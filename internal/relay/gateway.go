package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"

	wire "linkshare/contracts/wire/v1"
)

const (
	wsDefaultSendQueueSize = 64
	wsMinSendQueueSize     = 16

	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 5 * time.Minute
	wsCloseGrace          = 1 * time.Second

	wsHeartbeatInterval = 30 * time.Second
	wsHeartbeatTimeout  = 10 * time.Second
	wsMaxPingFailures   = 3
)

// GatewayConfig tunes the WebSocket endpoint. Zero values fall back to
// the defaults above.
type GatewayConfig struct {
	WriteTimeout      time.Duration
	ReadIdleTimeout   time.Duration
	SendQueueSize     int
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	RateEvents        int
	RateWindow        time.Duration

	// OriginPatterns are host patterns accepted for cross-origin upgrades.
	// Empty means same-host only.
	OriginPatterns []string

	// DevInsecure disables origin verification entirely. Dev-only knob.
	DevInsecure bool
}

func (c GatewayConfig) withDefaults() GatewayConfig {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = wsDefaultWriteTimeout
	}
	if c.ReadIdleTimeout <= 0 {
		c.ReadIdleTimeout = wsDefaultReadIdle
	}
	if c.SendQueueSize < wsMinSendQueueSize {
		c.SendQueueSize = wsDefaultSendQueueSize
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = wsHeartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = wsHeartbeatTimeout
	}
	if c.RateEvents <= 0 {
		c.RateEvents = rateLimitEvents
	}
	if c.RateWindow <= 0 {
		c.RateWindow = rateLimitWindow
	}
	return c
}

// Gateway is the WebSocket entrypoint. Each accepted socket becomes a
// session: it is issued a share token, registered for lookup, and can
// pair with exactly one other session through a rendezvous.
type Gateway struct {
	log *slog.Logger
	reg *Registry
	cfg GatewayConfig
}

// NewGateway constructs a gateway. A nil registry gets a fresh one.
func NewGateway(log *slog.Logger, reg *Registry, cfg GatewayConfig) *Gateway {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if reg == nil {
		reg = NewRegistry(log)
	}
	return &Gateway{log: log, reg: reg, cfg: cfg.withDefaults()}
}

// Registry exposes the token registry, mostly for readiness checks.
func (g *Gateway) Registry() *Registry { return g.reg }

// ServeHTTP adapter so the gateway mounts as a plain http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades the request and runs the session loop until either
// side disconnects.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     g.cfg.OriginPatterns,
		InsecureSkipVerify: g.cfg.DevInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	conn.SetReadLimit(maxFrameBytes)

	token, err := g.reg.IssueToken()
	if err != nil {
		g.log.Error("ws.token.exhausted", "err", err)
		_ = conn.Close(websocket.StatusTryAgainLater, "no tokens available")
		return
	}

	sessionID, err := NewSessionID(time.Now())
	if err != nil {
		g.log.Error("ws.session.id.fail", "err", err)
		g.reg.Remove(token)
		_ = conn.Close(websocket.StatusInternalError, "session setup failed")
		return
	}

	sess := NewSession(sessionID, token, g.cfg.SendQueueSize)
	g.reg.Register(sess)

	RegisterMetrics()
	wsConnections.Inc()
	defer wsConnections.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var closeOnce sync.Once

	// shutdown is idempotent. It does NOT close sess.Send, so concurrent
	// rendezvous broadcasts stay panic-free.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			g.teardown(sess)
			sess.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	rl := NewRateLimiter(g.cfg.RateEvents, g.cfg.RateWindow)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-sess.Done():
				// Flush frames enqueued just before close, such as the
				// disconnect notice sent to a surviving peer, then close
				// the socket so the read loop unblocks.
				g.flush(ctx, conn, sess)
				shutdown(websocket.StatusNormalClosure, "link ended")
				return
			case frame := <-sess.Send:
				if err := g.writeFrame(ctx, conn, frame); err != nil {
					g.log.Info("ws.write.fail", "session_id", sess.ID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.cfg.HeartbeatInterval)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-sess.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("ws.ping.fail", "session_id", sess.ID, "failures", failures, "err", err)
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

	g.log.Info("ws.session.open", "session_id", sess.ID, "token", sess.Token, "remote", r.RemoteAddr)

	// The first thing a fresh session hears is its own token.
	g.enqueue(sess, wire.Refresh{Token: sess.Token})

readLoop:
	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.cfg.ReadIdleTimeout)
		frame, err := readFrame(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
			default:
				g.log.Info("ws.read.fail", "session_id", sess.ID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
			}
			break readLoop
		}

		now := time.Now().UTC()
		if !rl.Allow(now) {
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			break readLoop
		}

		msg, err := wire.Decode(frame)
		if err != nil {
			g.log.Info("ws.frame.malformed", "session_id", sess.ID, "err", err)
			continue readLoop
		}

		switch m := msg.(type) {
		case wire.Pair:
			recordFrame(wire.TypePair)
			g.onPair(sess, m)

		case wire.Content:
			recordFrame(wire.TypeContent)
			g.onContent(sess, m)

		case wire.StateChange:
			recordFrame(wire.TypeState)
			g.onStateChange(sess, m)

		case wire.Unknown:
			g.log.Info("ws.frame.unknown", "session_id", sess.ID, "type", m.Type)

		default:
			// Server-origin types arriving from a client carry no meaning.
			g.log.Info("ws.frame.unexpected", "session_id", sess.ID)
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}

	g.log.Info("ws.session.close", "session_id", sess.ID, "token", sess.Token)
}

// ---- handlers ----

func (g *Gateway) onPair(sess *Session, m wire.Pair) {
	peer := g.reg.Lookup(m.Target)
	if peer == nil {
		recordPairOutcome("not_found")
		g.enqueue(sess, wire.CodeNotFound{Code: m.Target})
		return
	}

	if peer.ID == sess.ID {
		// A session cannot pair with its own code.
		recordPairOutcome("self")
		g.log.Info("pair.self", "session_id", sess.ID, "token", sess.Token)
		return
	}

	if sess.Rendezvous() != nil || peer.Rendezvous() != nil {
		recordPairOutcome("busy")
		g.log.Info("pair.busy", "session_id", sess.ID, "peer_id", peer.ID)
		g.enqueue(sess, wire.CodeNotFound{Code: m.Target})
		return
	}

	rv := NewRendezvous(g.log)
	rv.Join(peer)
	rv.Join(sess)
	activeRendezvous.Inc()

	recordPairOutcome("paired")
	g.log.Info("pair.ok", "rendezvous_id", rv.ID, "session_id", sess.ID, "peer_id", peer.ID)

	g.enqueue(sess, wire.Connected{})
	g.enqueue(peer, wire.Connected{})
}

func (g *Gateway) onContent(sess *Session, m wire.Content) {
	rv := sess.Rendezvous()
	if rv == nil {
		g.log.Info("content.unpaired", "session_id", sess.ID)
		return
	}

	if len([]rune(m.Content)) > maxContentChars {
		g.log.Info("content.too_long", "session_id", sess.ID, "chars", len([]rune(m.Content)))
		return
	}

	// The relay is authoritative for attribution: whatever sender the
	// client claimed is replaced with its own token.
	out, err := wire.Encode(wire.Content{Content: m.Content, Sender: sess.Token})
	if err != nil {
		g.log.Error("content.encode.fail", "session_id", sess.ID, "err", err)
		return
	}
	rv.Broadcast(out, sess.ID)
}

func (g *Gateway) onStateChange(sess *Session, m wire.StateChange) {
	rv := sess.Rendezvous()
	if rv == nil {
		return
	}
	out, err := wire.Encode(m)
	if err != nil {
		g.log.Error("state.encode.fail", "session_id", sess.ID, "err", err)
		return
	}
	rv.Broadcast(out, sess.ID)
}

// teardown unregisters the session and dissolves its rendezvous. Each
// surviving peer is told the link ended, then closed: a pairing does
// not outlive either member.
func (g *Gateway) teardown(sess *Session) {
	g.reg.Remove(sess.Token)

	rv := sess.Rendezvous()
	if rv == nil {
		return
	}

	survivors := rv.Dispose(sess)
	activeRendezvous.Dec()

	for _, peer := range survivors {
		g.enqueue(peer, wire.Disconnected{})
		peer.Close()
	}
}

// ---- send helpers ----

func (g *Gateway) enqueue(sess *Session, msg wire.Message) {
	frame, err := wire.Encode(msg)
	if err != nil {
		g.log.Error("ws.encode.fail", "session_id", sess.ID, "err", err)
		return
	}
	if !sess.enqueue(frame) {
		g.log.Warn("ws.enqueue.drop", "session_id", sess.ID)
	}
}

func (g *Gateway) flush(ctx context.Context, conn *websocket.Conn, sess *Session) {
	for {
		select {
		case frame := <-sess.Send:
			if err := g.writeFrame(ctx, conn, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

// ---- frame IO ----

func readFrame(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	if mt != websocket.MessageText {
		return nil, errors.New("unsupported message type")
	}
	return data, nil
}

func (g *Gateway) writeFrame(parent context.Context, conn *websocket.Conn, frame []byte) error {
	ctx, cancel := context.WithTimeout(parent, g.cfg.WriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, frame)
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}
	return readErrUnknown
}
