package client

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	wire "linkshare/contracts/wire/v1"
)

// Role is which side of the pairing handshake this session plays.
type Role int

const (
	RoleUnset Role = iota
	// RoleReceiver was issued a token and displays it.
	RoleReceiver
	// RoleSender supplies a token to request pairing.
	RoleSender
)

func (r Role) String() string {
	switch r {
	case RoleReceiver:
		return "receiver"
	case RoleSender:
		return "sender"
	default:
		return "unset"
	}
}

// PairingStatus is the session's pairing state. Owned exclusively by Session.
type PairingStatus int

const (
	AwaitingToken PairingStatus = iota
	TokenDisplayed
	PairRequestSent
	Paired
	CodeRejected
)

func (p PairingStatus) String() string {
	switch p {
	case TokenDisplayed:
		return "token_displayed"
	case PairRequestSent:
		return "pair_request_sent"
	case Paired:
		return "paired"
	case CodeRejected:
		return "code_rejected"
	default:
		return "awaiting_token"
	}
}

// Transport is the connection surface the session drives. *Manager
// implements it; tests substitute fakes.
type Transport interface {
	Events() <-chan Event
	Send(ctx context.Context, frame []byte) error
	Disconnect()
}

const (
	chanSubmitCode  = "submit-code"
	chanSendContent = "send-content"

	defaultSubmitWindow = 500 * time.Millisecond
	defaultScanWindow   = 1000 * time.Millisecond
	defaultSendWindow   = 500 * time.Millisecond

	intentBuffer = 16
)

// SessionConfig configures a Session.
type SessionConfig struct {
	// ShareBaseURL is the page URL share links are built from; the token
	// rides in the fragment.
	ShareBaseURL string
	// InitialLink is the address the page was loaded with. A token in its
	// fragment is consumed once as an immediate pairing attempt.
	InitialLink string

	// Throttle windows for user-triggered actions.
	SubmitWindow time.Duration
	ScanWindow   time.Duration
	SendWindow   time.Duration

	// Clock drives throttling and transcript timestamps. Nil uses time.Now.
	Clock func() time.Time
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.SubmitWindow <= 0 {
		c.SubmitWindow = defaultSubmitWindow
	}
	if c.ScanWindow <= 0 {
		c.ScanWindow = defaultScanWindow
	}
	if c.SendWindow <= 0 {
		c.SendWindow = defaultSendWindow
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

type intentKind int

const (
	intentSubmitCode intentKind = iota
	intentScanResult
	intentSendContent
	intentSwitchRole
	intentDisconnect
	intentAttachScanner
	intentSnapshot
)

type intent struct {
	kind    intentKind
	text    string
	role    Role
	scanner Scanner
	reply   chan SessionSnapshot
}

// SessionSnapshot is a loop-consistent view of the session aggregate.
type SessionSnapshot struct {
	Role         Role
	Token        Token
	Pairing      PairingStatus
	PairInFlight bool
}

// Session is the pairing protocol orchestrator. It owns the session
// aggregate (role, token, pairing status, in-flight guard) and is its only
// writer: all transport events and user intents are dispatched on the
// single Run goroutine, which preserves in-order processing without locks.
type Session struct {
	cfg      SessionConfig
	log      *slog.Logger
	conn     Transport
	renderer Renderer
	gate     *Gate

	intents chan intent

	// Aggregate state below is touched only from Run.
	role          Role
	token         Token
	pairing       PairingStatus
	pendingTarget Token
	initialTarget Token
	scanner       Scanner
}

// NewSession constructs a Session. A token in cfg.InitialLink's fragment
// is remembered for one auto-pair attempt on the first refresh.
func NewSession(cfg SessionConfig, log *slog.Logger, conn Transport, renderer Renderer) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		cfg:      cfg,
		log:      log,
		conn:     conn,
		renderer: renderer,
		gate:     NewGate(cfg.Clock),
		intents:  make(chan intent, intentBuffer),
	}
	if cfg.InitialLink != "" {
		if tok, err := TokenFromShareURL(cfg.InitialLink); err == nil {
			s.initialTarget = tok
		}
	}
	return s
}

// Run dispatches transport events and user intents until ctx is done.
func (s *Session) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.stopScanner()
			return
		case ev := <-s.conn.Events():
			s.onTransportEvent(ev)
		case in := <-s.intents:
			s.onIntent(in)
		}
	}
}

// ---- intents (called from UI goroutines) ----

// SubmitCode is the manual code-entry intent.
func (s *Session) SubmitCode(text string) {
	s.gate.Guard(chanSubmitCode, s.cfg.SubmitWindow, func() {
		s.enqueue(intent{kind: intentSubmitCode, text: text})
	})
}

// ScanResult is the camera-decode intent. Duplicate decode frames for the
// same glyph collapse in the throttle window; the in-flight guard covers
// duplicates arriving outside it.
func (s *Session) ScanResult(payload string) {
	s.gate.Guard(chanSubmitCode, s.cfg.ScanWindow, func() {
		s.enqueue(intent{kind: intentScanResult, text: payload})
	})
}

// SendContent is the send-snippet intent.
func (s *Session) SendContent(text string) {
	s.gate.Guard(chanSendContent, s.cfg.SendWindow, func() {
		s.enqueue(intent{kind: intentSendContent, text: text})
	})
}

// SwitchRole declares an explicit local role to the relay.
func (s *Session) SwitchRole(role Role) {
	s.enqueue(intent{kind: intentSwitchRole, role: role})
}

// RequestDisconnect asks the transport for a manual close.
func (s *Session) RequestDisconnect() {
	s.enqueue(intent{kind: intentDisconnect})
}

// AttachScanner registers a scan-in-progress collaborator so the session
// can tear it down when pairing completes.
func (s *Session) AttachScanner(sc Scanner) {
	s.enqueue(intent{kind: intentAttachScanner, scanner: sc})
}

// Snapshot returns a loop-consistent view of the aggregate.
func (s *Session) Snapshot() SessionSnapshot {
	reply := make(chan SessionSnapshot, 1)
	s.intents <- intent{kind: intentSnapshot, reply: reply}
	return <-reply
}

func (s *Session) enqueue(in intent) {
	select {
	case s.intents <- in:
	default:
		s.log.Warn("session.intent.dropped", "kind", in.kind)
	}
}

// ---- dispatch loop ----

func (s *Session) onTransportEvent(ev Event) {
	switch ev.Kind {
	case EventOpened:
		// No domain action until the relay's first message arrives.
		s.log.Debug("session.transport.open")
	case EventClosed:
		if !ev.Unexpected {
			s.log.Info("session.transport.closed.manual")
			return
		}
		// The token died with the connection; the reconnect will bring a
		// fresh refresh.
		s.token = ""
		s.pendingTarget = ""
		s.role = RoleUnset
		s.pairing = AwaitingToken
		s.renderer.ShowConnecting()
	case EventFrame:
		msg, err := wire.Decode(ev.Frame)
		if err != nil {
			s.log.Warn("session.decode.fail", "err", err)
			return
		}
		s.onMessage(msg)
	}
}

func (s *Session) onMessage(msg wire.Message) {
	switch m := msg.(type) {
	case wire.Refresh:
		s.onRefresh(m)
	case wire.Connected:
		s.onConnected()
	case wire.CodeNotFound:
		s.onCodeNotFound(m)
	case wire.Content:
		s.onContent(m)
	case wire.Disconnected:
		s.log.Info("session.peer.disconnected")
		s.renderer.ShowNotice("Peer disconnected")
	case wire.Unknown:
		s.log.Warn("session.message.unknown", "type", m.Type)
	default:
		// Outbound-only variants have no inbound handling.
		s.log.Warn("session.message.unhandled")
	}
}

// onRefresh supersedes the prior token: any in-flight pairing attempt is
// stale from here on.
func (s *Session) onRefresh(m wire.Refresh) {
	s.pendingTarget = ""
	s.pairing = AwaitingToken
	s.role = RoleUnset
	s.token = Token(NormalizeToken(m.Token))
	s.renderer.ClearErrors()

	s.log.Info("session.refresh", "token", s.token)

	if s.initialTarget != "" {
		// A share link carried a token: pair immediately instead of
		// displaying our own. Consumed once.
		target := s.initialTarget
		s.initialTarget = ""
		s.pairWith(target)
		return
	}

	s.role = RoleReceiver
	s.pairing = TokenDisplayed
	s.renderer.ShowToken(s.token, s.shareURL())
}

func (s *Session) onConnected() {
	s.pendingTarget = ""
	s.pairing = Paired
	s.stopScanner()
	s.renderer.ClearErrors()
	s.renderer.ShowPairedSurface()
	s.log.Info("session.paired", "role", s.role)
}

func (s *Session) onCodeNotFound(m wire.CodeNotFound) {
	code := Token(NormalizeToken(m.Code))
	if s.pendingTarget == "" || code != s.pendingTarget {
		// Stale relative to a newer token/session; must not clobber the
		// current UI.
		s.log.Info("session.code_not_found.stale", "code", code)
		return
	}
	s.pendingTarget = ""
	s.pairing = CodeRejected
	s.renderer.ClearErrors()
	s.renderer.ShowError(m.Code)
	s.log.Info("session.code_not_found", "code", code)
}

func (s *Session) onContent(m wire.Content) {
	now := s.cfg.Clock()
	s.renderer.ShowTranscriptEntry(TranscriptEntry{
		ID:      newEntryID(now),
		Sender:  m.Sender,
		Content: m.Content,
		At:      now,
	})
}

func (s *Session) onIntent(in intent) {
	switch in.kind {
	case intentSubmitCode:
		s.onPairingIntent(ParseToken(in.text))
	case intentScanResult:
		s.onPairingIntent(TokenFromScanPayload(in.text))
	case intentSendContent:
		s.onSendContent(in.text)
	case intentSwitchRole:
		s.onSwitchRole(in.role)
	case intentDisconnect:
		s.conn.Disconnect()
	case intentAttachScanner:
		s.stopScanner()
		s.scanner = in.scanner
	case intentSnapshot:
		in.reply <- SessionSnapshot{
			Role:         s.role,
			Token:        s.token,
			Pairing:      s.pairing,
			PairInFlight: s.pendingTarget != "",
		}
	}
}

func (s *Session) onPairingIntent(target Token, err error) {
	if err != nil {
		if errors.Is(err, ErrEmptyInput) {
			// Treated as "no input", not an error surfaced to the user.
			return
		}
		s.log.Info("session.token.invalid", "err", err)
		s.renderer.ShowNotice("That does not look like a pairing code")
		return
	}
	if s.pairing == Paired {
		// Late scan/submit after pairing completed; drop it.
		s.log.Debug("session.pair.late", "target", target)
		return
	}
	s.pairWith(target)
}

func (s *Session) pairWith(target Token) {
	if s.token != "" && target == s.token {
		s.renderer.ClearErrors()
		s.renderer.ShowNotice("This is your own code")
		return
	}
	if s.pendingTarget != "" {
		// One pair request may be awaiting resolution at a time.
		s.log.Debug("session.pair.inflight", "target", target)
		return
	}

	frame, err := wire.Encode(wire.Pair{Target: string(target)})
	if err != nil {
		s.log.Error("session.pair.encode.fail", "err", err)
		return
	}

	// Guard set before the send so a second intent interleaved with a slow
	// write still cannot emit a second pair request.
	prev := s.pairing
	s.pendingTarget = target
	s.role = RoleSender
	s.pairing = PairRequestSent

	if err := s.conn.Send(context.Background(), frame); err != nil {
		s.pendingTarget = ""
		s.pairing = prev
		s.log.Warn("session.pair.send.fail", "err", err)
		s.renderer.ShowNotice("Not connected yet, try again")
		return
	}
	s.log.Info("session.pair.sent", "target", target)
}

func (s *Session) onSendContent(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if s.pairing != Paired {
		s.log.Debug("session.send.unpaired")
		return
	}

	frame, err := wire.Encode(wire.Content{Content: text})
	if err != nil {
		s.log.Error("session.send.encode.fail", "err", err)
		return
	}
	if err := s.conn.Send(context.Background(), frame); err != nil {
		s.log.Warn("session.send.fail", "err", err)
		s.renderer.ShowNotice("Send failed")
		return
	}

	now := s.cfg.Clock()
	s.renderer.ShowTranscriptEntry(TranscriptEntry{
		ID:      newEntryID(now),
		Sender:  "You",
		Content: text,
		At:      now,
	})
	s.renderer.ShowNotice("Sent!")
}

func (s *Session) onSwitchRole(role Role) {
	frame, err := wire.Encode(wire.StateChange{State: role.String()})
	if err != nil {
		s.log.Error("session.state.encode.fail", "err", err)
		return
	}
	if err := s.conn.Send(context.Background(), frame); err != nil {
		s.log.Warn("session.state.send.fail", "err", err)
		return
	}
	s.role = role
}

func (s *Session) stopScanner() {
	if s.scanner != nil {
		s.scanner.Stop()
		s.scanner = nil
	}
}

func (s *Session) shareURL() string {
	if s.cfg.ShareBaseURL == "" || s.token == "" {
		return ""
	}
	return strings.TrimRight(s.cfg.ShareBaseURL, "#") + "#" + string(s.token)
}
