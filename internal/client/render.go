package client

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// TranscriptEntry is one exchanged snippet.
type TranscriptEntry struct {
	ID      string
	Sender  string
	Content string
	At      time.Time
}

// Renderer is the UI-rendering collaborator contract. The session emits
// render commands through it and never touches presentation itself.
//
// Implementations are called from the session's dispatch goroutine and
// must not block on it.
type Renderer interface {
	// ShowToken displays the session's own pairing token and its share link.
	ShowToken(token Token, shareURL string)
	// ShowConnecting indicates the transport is (re)connecting.
	ShowConnecting()
	// ShowPairedSurface switches to the exchange surface after pairing.
	ShowPairedSurface()
	// ShowTranscriptEntry appends one transcript entry.
	ShowTranscriptEntry(entry TranscriptEntry)
	// ShowError surfaces a rejected pairing code.
	ShowError(code string)
	// ShowNotice surfaces a transient, dismissible notice.
	ShowNotice(text string)
	// ClearErrors removes previously shown pairing errors.
	ClearErrors()
}

// Scanner is a camera-scan collaborator in progress. The session stops it
// when the pairing surface is torn down so late decode callbacks cannot
// act on a session that has moved on.
type Scanner interface {
	Stop()
}

// newEntryID returns a ULID for a transcript entry.
// ULID is preferable to random hex for ordering in logs and transcripts.
func newEntryID(now time.Time) string {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return ""
	}
	return id.String()
}
