package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	mu     sync.Mutex
	writes [][]byte

	done     chan struct{}
	doneOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{done: make(chan struct{})}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, errors.New("fake conn closed")
	}
}

func (c *fakeConn) Write(_ context.Context, frame []byte) error {
	select {
	case <-c.done:
		return errors.New("fake conn closed")
	default:
	}
	c.mu.Lock()
	c.writes = append(c.writes, frame)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.doneOnce.Do(func() { close(c.done) })
	return nil
}

// drop simulates the remote side tearing the connection down.
func (c *fakeConn) drop() { _ = c.Close() }

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

type fakeDialer struct {
	dialed chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (Conn, error) {
	c := newFakeConn()
	d.dialed <- c
	return c, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitDial(t *testing.T, d *fakeDialer) *fakeConn {
	t.Helper()
	select {
	case c := <-d.dialed:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for dial")
		return nil
	}
}

func waitEvent(t *testing.T, m *Manager, want EventKind) Event {
	t.Helper()
	select {
	case ev := <-m.Events():
		if ev.Kind != want {
			t.Fatalf("event kind=%v want=%v", ev.Kind, want)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event kind=%v", want)
		return Event{}
	}
}

func newTestManager(d Dialer) *Manager {
	return NewManager(ManagerConfig{
		URL:        "ws://test/ws/new",
		RetryDelay: 5 * time.Millisecond,
	}, testLogger(), d)
}

func TestReconnectAfterUnexpectedClose(t *testing.T) {
	t.Parallel()

	d := newFakeDialer()
	m := newTestManager(d)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	c1 := waitDial(t, d)
	waitEvent(t, m, EventOpened)

	// Three consecutive unexpected closes must yield three reconnects,
	// each after the fixed delay.
	prev := c1
	for i := 0; i < 3; i++ {
		prev.drop()
		ev := waitEvent(t, m, EventClosed)
		if !ev.Unexpected {
			t.Fatalf("close %d: Unexpected=false want true", i)
		}
		prev = waitDial(t, d)
		waitEvent(t, m, EventOpened)
	}

	m.Disconnect()
	ev := waitEvent(t, m, EventClosed)
	if ev.Unexpected {
		t.Fatalf("manual close reported as unexpected")
	}

	// No reconnect may follow a manual disconnect.
	select {
	case <-d.dialed:
		t.Fatalf("reconnect scheduled after manual disconnect")
	case <-time.After(50 * time.Millisecond):
	}
	if got := m.State(); got != StateDisconnected {
		t.Fatalf("state=%v want=%v", got, StateDisconnected)
	}
}

func TestConnectTearsDownPriorConnection(t *testing.T) {
	t.Parallel()

	d := newFakeDialer()
	m := newTestManager(d)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	c1 := waitDial(t, d)
	waitEvent(t, m, EventOpened)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	c2 := waitDial(t, d)
	// The superseded connection is closed and does not emit its own Closed.
	waitEvent(t, m, EventOpened)

	if !c1.isClosed() {
		t.Fatalf("prior connection left open")
	}
	if c2.isClosed() {
		t.Fatalf("new connection is not live")
	}
	if got := m.State(); got != StateConnected {
		t.Fatalf("state=%v want=%v", got, StateConnected)
	}
}

func TestSendRequiresConnected(t *testing.T) {
	t.Parallel()

	d := newFakeDialer()
	m := newTestManager(d)

	if err := m.Send(context.Background(), []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err=%v want ErrNotConnected", err)
	}

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	c := waitDial(t, d)
	waitEvent(t, m, EventOpened)

	if err := m.Send(context.Background(), []byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	c.mu.Lock()
	n := len(c.writes)
	c.mu.Unlock()
	if n != 1 {
		t.Fatalf("writes=%d want=1", n)
	}

	m.Disconnect()
	waitEvent(t, m, EventClosed)
	if err := m.Send(context.Background(), []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("after disconnect: err=%v want ErrNotConnected", err)
	}
}

func TestDialFailureSchedulesRetry(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	fails := 2
	dials := 0
	inner := newFakeDialer()

	d := dialFunc(func(ctx context.Context, url string) (Conn, error) {
		mu.Lock()
		dials++
		failing := dials <= fails
		mu.Unlock()
		if failing {
			return nil, errors.New("dial refused")
		}
		return inner.Dial(ctx, url)
	})

	m := newTestManager(d)
	if err := m.Connect(context.Background()); err == nil {
		t.Fatalf("first Connect should fail")
	}
	waitEvent(t, m, EventClosed)

	// The retry loop keeps dialing on the fixed delay until one succeeds.
	waitEvent(t, m, EventClosed)
	waitDial(t, inner)
	waitEvent(t, m, EventOpened)

	mu.Lock()
	total := dials
	mu.Unlock()
	if total != fails+1 {
		t.Fatalf("dials=%d want=%d", total, fails+1)
	}
}

type dialFunc func(ctx context.Context, url string) (Conn, error)

func (f dialFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}
