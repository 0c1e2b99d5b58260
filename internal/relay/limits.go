package relay

import "time"

// Security/performance limits for the relay.
const (
	// Max bytes per websocket frame read (hard limit).
	maxFrameBytes = 64 << 10 // 64 KiB

	// Max content length (runes) for a relayed snippet.
	maxContentChars = 32000

	// Attempts at generating an unassigned token before giving up on the
	// connection.
	tokenIssueAttempts = 10
)

const (
	// Per-connection rate limits (events per window).
	rateLimitEvents = 120
	rateLimitWindow = 10 * time.Second
)
