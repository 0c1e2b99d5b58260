package relay

import (
	"testing"
	"time"
)

func recvFrame(t *testing.T, s *Session) []byte {
	t.Helper()
	select {
	case frame := <-s.Send:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame on session %s", s.ID)
		return nil
	}
}

func TestRendezvousBroadcastSkipsOriginator(t *testing.T) {
	t.Parallel()

	rv := NewRendezvous(testLogger())
	a := NewSession("01A", "AAAAAA", 8)
	b := NewSession("01B", "BBBBBB", 8)
	rv.Join(a)
	rv.Join(b)

	if rv.Size() != 2 {
		t.Fatalf("Size = %d, want 2", rv.Size())
	}
	if a.Rendezvous() != rv || b.Rendezvous() != rv {
		t.Fatalf("members not back-linked to rendezvous")
	}

	rv.Broadcast([]byte("hello"), a.ID)

	if got := string(recvFrame(t, b)); got != "hello" {
		t.Fatalf("peer got %q, want %q", got, "hello")
	}
	select {
	case frame := <-a.Send:
		t.Fatalf("originator received its own broadcast: %q", frame)
	default:
	}
}

func TestRendezvousBroadcastDropsOnBackpressure(t *testing.T) {
	t.Parallel()

	rv := NewRendezvous(testLogger())
	a := NewSession("01A", "AAAAAA", 8)
	b := NewSession("01B", "BBBBBB", 1)
	rv.Join(a)
	rv.Join(b)

	// Fill b's queue, then broadcast again: must not block.
	rv.Broadcast([]byte("one"), a.ID)
	done := make(chan struct{})
	go func() {
		rv.Broadcast([]byte("two"), a.ID)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Broadcast blocked on full queue")
	}

	if got := string(recvFrame(t, b)); got != "one" {
		t.Fatalf("queued frame = %q, want %q", got, "one")
	}
	select {
	case frame := <-b.Send:
		t.Fatalf("dropped frame was delivered: %q", frame)
	default:
	}
}

func TestRendezvousDisposeReturnsSurvivors(t *testing.T) {
	t.Parallel()

	rv := NewRendezvous(testLogger())
	a := NewSession("01A", "AAAAAA", 8)
	b := NewSession("01B", "BBBBBB", 8)
	rv.Join(a)
	rv.Join(b)

	rest := rv.Dispose(a)
	if len(rest) != 1 || rest[0] != b {
		t.Fatalf("Dispose survivors = %v, want [b]", rest)
	}
	if a.Rendezvous() != nil || b.Rendezvous() != nil {
		t.Fatalf("Dispose left back-links in place")
	}
	if rv.Size() != 0 {
		t.Fatalf("Size after Dispose = %d, want 0", rv.Size())
	}

	// A dissolved rendezvous is inert.
	rv.Broadcast([]byte("late"), a.ID)
	select {
	case frame := <-b.Send:
		t.Fatalf("dissolved rendezvous delivered %q", frame)
	default:
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(3, time.Minute)
	base := time.Unix(1_700_000_000, 0)

	for i := 0; i < 3; i++ {
		if !rl.Allow(base.Add(time.Duration(i) * time.Second)) {
			t.Fatalf("event %d denied under limit", i)
		}
	}
	if rl.Allow(base.Add(3 * time.Second)) {
		t.Fatalf("event over limit allowed")
	}
	// After the window slides past the first events, capacity returns.
	if !rl.Allow(base.Add(2 * time.Minute)) {
		t.Fatalf("event after window slid denied")
	}
}
