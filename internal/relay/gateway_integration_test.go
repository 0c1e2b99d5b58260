package relay

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	wire "linkshare/contracts/wire/v1"
)

func startGatewayServer(t *testing.T) *httptest.Server {
	t.Helper()
	gw := NewGateway(testLogger(), nil, GatewayConfig{
		WriteTimeout:    2 * time.Second,
		ReadIdleTimeout: 10 * time.Second,
	})
	ts := httptest.NewServer(gw)
	t.Cleanup(ts.Close)
	return ts
}

func dialGateway(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, ts.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) wire.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := wire.Decode(data)
	if err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return msg
}

func writeMsg(t *testing.T, conn *websocket.Conn, msg wire.Message) {
	t.Helper()
	frame, err := wire.Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readToken(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	msg := readMsg(t, conn)
	rf, ok := msg.(wire.Refresh)
	if !ok {
		t.Fatalf("first frame = %T, want refresh", msg)
	}
	return rf.Token
}

func TestGatewayIssuesTokenOnConnect(t *testing.T) {
	t.Parallel()

	ts := startGatewayServer(t)
	conn := dialGateway(t, ts)

	token := readToken(t, conn)
	if len(token) != wire.TokenLength {
		t.Fatalf("token length = %d, want %d (%q)", len(token), wire.TokenLength, token)
	}
	for _, r := range token {
		if !strings.ContainsRune(tokenAlphabet, r) {
			t.Fatalf("token %q contains %q outside alphabet", token, r)
		}
	}
}

func TestGatewayPairRelayAndDisconnect(t *testing.T) {
	t.Parallel()

	ts := startGatewayServer(t)
	sender := dialGateway(t, ts)
	receiver := dialGateway(t, ts)

	senderToken := readToken(t, sender)
	receiverToken := readToken(t, receiver)
	if senderToken == receiverToken {
		t.Fatalf("both sessions issued token %q", senderToken)
	}

	writeMsg(t, sender, wire.Pair{Target: receiverToken})

	if msg := readMsg(t, sender); msg != (wire.Connected{}) {
		t.Fatalf("sender frame = %#v, want connected", msg)
	}
	if msg := readMsg(t, receiver); msg != (wire.Connected{}) {
		t.Fatalf("receiver frame = %#v, want connected", msg)
	}

	// Claimed sender identity is overwritten with the session's token.
	writeMsg(t, sender, wire.Content{Content: "fmt.Println(42)", Sender: "spoofed"})

	got := readMsg(t, receiver)
	content, ok := got.(wire.Content)
	if !ok {
		t.Fatalf("receiver frame = %#v, want content", got)
	}
	if content.Content != "fmt.Println(42)" {
		t.Fatalf("content = %q, want %q", content.Content, "fmt.Println(42)")
	}
	if content.Sender != senderToken {
		t.Fatalf("sender attribution = %q, want %q", content.Sender, senderToken)
	}

	// One side leaving dissolves the pairing: the survivor is told and
	// its socket is closed by the relay.
	_ = sender.Close(websocket.StatusNormalClosure, "done")

	if msg := readMsg(t, receiver); msg != (wire.Disconnected{}) {
		t.Fatalf("survivor frame = %#v, want disconnected", msg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, _, err := receiver.Read(ctx); err == nil {
		t.Fatalf("survivor socket still open after pairing dissolved")
	}
}

func TestGatewayCodeNotFound(t *testing.T) {
	t.Parallel()

	ts := startGatewayServer(t)
	conn := dialGateway(t, ts)
	_ = readToken(t, conn)

	writeMsg(t, conn, wire.Pair{Target: "ZZZZ99"})

	msg := readMsg(t, conn)
	nf, ok := msg.(wire.CodeNotFound)
	if !ok {
		t.Fatalf("frame = %#v, want code-not-found", msg)
	}
	if nf.Code != "ZZZZ99" {
		t.Fatalf("code = %q, want %q", nf.Code, "ZZZZ99")
	}
}

func TestGatewaySelfPairProducesNothing(t *testing.T) {
	t.Parallel()

	ts := startGatewayServer(t)
	conn := dialGateway(t, ts)
	token := readToken(t, conn)

	// A self-pair is silently ignored. The not-found reply for the probe
	// sent right after proves no frame was queued in between.
	writeMsg(t, conn, wire.Pair{Target: token})
	writeMsg(t, conn, wire.Pair{Target: "ZZZZ99"})

	msg := readMsg(t, conn)
	nf, ok := msg.(wire.CodeNotFound)
	if !ok {
		t.Fatalf("frame after self-pair = %#v, want code-not-found for probe", msg)
	}
	if nf.Code != "ZZZZ99" {
		t.Fatalf("code = %q, want probe code", nf.Code)
	}
}

func TestGatewayMalformedFrameIgnored(t *testing.T) {
	t.Parallel()

	ts := startGatewayServer(t)
	conn := dialGateway(t, ts)
	_ = readToken(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"@type":`)); err != nil {
		t.Fatalf("write malformed: %v", err)
	}

	// Session survives the malformed frame and still answers lookups.
	writeMsg(t, conn, wire.Pair{Target: "ZZZZ99"})
	if _, ok := readMsg(t, conn).(wire.CodeNotFound); !ok {
		t.Fatalf("session did not survive malformed frame")
	}
}
