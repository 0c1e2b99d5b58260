package relay

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/oklog/ulid/v2"

	wire "linkshare/contracts/wire/v1"
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewSessionID returns a ULID used as the relay-side session id.
// ULID is preferable to random hex for tracing and ordering in logs.
func NewSessionID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewToken returns a cryptographically random pairing token in canonical
// form: uppercase alphanumeric, fixed length.
func NewToken() (string, error) {
	out := make([]byte, wire.TokenLength)
	max := big.NewInt(int64(len(tokenAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = tokenAlphabet[n.Int64()]
	}
	return string(out), nil
}
