package client

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	wire "linkshare/contracts/wire/v1"
)

// TokenLength is the fixed length of a pairing token.
const TokenLength = wire.TokenLength

var (
	// ErrEmptyInput marks empty/whitespace-only input. Callers treat it as
	// "no input" and stay silent rather than surfacing an error.
	ErrEmptyInput = errors.New("client: empty token input")

	// ErrInvalidToken marks input that is present but not a well-formed
	// token. Surfaced as an inline notice; the session is unaffected.
	ErrInvalidToken = errors.New("client: invalid token")
)

// Token is a pairing code in canonical form: trimmed, uppercase,
// TokenLength alphanumeric characters. Two tokens are equal iff their
// canonical forms are equal, so canonical Tokens compare with ==.
type Token string

// NormalizeToken returns the canonical form of raw: surrounding whitespace
// trimmed, letters uppercased. It does not validate format.
func NormalizeToken(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ParseToken normalizes and validates a candidate token.
// Empty/whitespace input returns ErrEmptyInput; format violations return
// an error wrapping ErrInvalidToken.
func ParseToken(raw string) (Token, error) {
	s := NormalizeToken(raw)
	if s == "" {
		return "", ErrEmptyInput
	}
	if len(s) != TokenLength {
		return "", fmt.Errorf("%w: %q is not %d characters", ErrInvalidToken, s, TokenLength)
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidToken, s, r)
		}
	}
	return Token(s), nil
}

// TokenFromScanPayload extracts a token from a decoded QR payload.
//
// The canonical payload is a share URL whose fragment carries the token
// (what the receiver side encodes into its QR). Raw decoded text that is
// itself a token is accepted as a fallback for simpler encoders.
func TokenFromScanPayload(payload string) (Token, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", ErrEmptyInput
	}
	if u, err := url.Parse(payload); err == nil && u.Scheme != "" && u.Fragment != "" {
		return ParseToken(u.Fragment)
	}
	return ParseToken(payload)
}

// TokenFromShareURL extracts the token carried in a share link's fragment.
// A link without a fragment returns ErrEmptyInput: there is nothing to
// auto-pair against.
func TokenFromShareURL(raw string) (Token, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if u.Fragment == "" {
		return "", ErrEmptyInput
	}
	return ParseToken(u.Fragment)
}
