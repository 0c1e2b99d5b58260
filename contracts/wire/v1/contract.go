// Package v1 defines the LinkShare pairing protocol contract.
//
// This package is intentionally stable and dependency-light.
// It is shared between the relay and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TokenLength is the fixed length of a pairing token. Tokens are uppercase
// alphanumeric; comparison is on canonical (trimmed, uppercase) form.
const TokenLength = 6

// Type constants (wire-stable). The discriminator field on every message is "@type".
const (
	// TypeRefresh issues a fresh session token (relay -> client).
	TypeRefresh = "refresh"
	// TypeConnected signals that pairing succeeded and the relay is ready (relay -> client).
	TypeConnected = "connected"
	// TypeContent carries a text payload (both directions; the relay attaches sender).
	TypeContent = "content"
	// TypeCodeNotFound rejects a pair request whose target is unknown (relay -> client).
	TypeCodeNotFound = "code-not-found"
	// TypeDisconnected notifies the surviving peer that its rendezvous was disposed (relay -> client).
	TypeDisconnected = "disconnected"

	// TypePair requests pairing with the given target token (client -> relay).
	TypePair = "pair"
	// TypeState declares the local role/mode (client -> relay, role-switcher dialect).
	TypeState = "state"
)

var (
	// ErrDecode wraps any malformed payload: unparsable JSON, missing
	// discriminator, or missing/mistyped variant fields. Callers log and
	// discard; it is never fatal.
	ErrDecode = errors.New("wire: decode")

	// ErrEncode wraps attempts to encode a message that has no wire form.
	ErrEncode = errors.New("wire: encode")
)

// Message is the decoded wire message. Exactly one concrete type per
// discriminator, plus Unknown for discriminators this version does not know.
type Message interface {
	wireType() string
}

// Refresh supersedes the prior session token.
type Refresh struct {
	Token string
}

// Connected reports a completed pairing handshake. It carries no fields.
type Connected struct{}

// Content is one relayed text payload. Sender is attached by the relay on
// inbound messages and absent on outbound ones.
type Content struct {
	Content string
	Sender  string
}

// CodeNotFound rejects a pair request; Code echoes the offending target.
type CodeNotFound struct {
	Code string
}

// Disconnected notifies that the peer side of the rendezvous went away.
type Disconnected struct{}

// Pair asks the relay to pair this session with Target.
type Pair struct {
	Target string
}

// StateChange declares the local role/mode.
type StateChange struct {
	State string
}

// Unknown is the sentinel for discriminators this version does not recognize.
// The dispatcher must tolerate it without failing.
type Unknown struct {
	Type string
}

func (Refresh) wireType() string      { return TypeRefresh }
func (Connected) wireType() string    { return TypeConnected }
func (Content) wireType() string      { return TypeContent }
func (CodeNotFound) wireType() string { return TypeCodeNotFound }
func (Disconnected) wireType() string { return TypeDisconnected }
func (Pair) wireType() string         { return TypePair }
func (StateChange) wireType() string  { return TypeState }
func (u Unknown) wireType() string    { return u.Type }

// envelope is the raw wire shape. Pointer fields distinguish "absent" from
// "present but empty" so required-field validation is exact.
type envelope struct {
	Type    *string `json:"@type,omitempty"`
	Token   *string `json:"token,omitempty"`
	Content *string `json:"content,omitempty"`
	Sender  *string `json:"sender,omitempty"`
	Code    *string `json:"code,omitempty"`
	Target  *string `json:"target,omitempty"`
	State   *string `json:"state,omitempty"`
}

// Decode parses raw into a typed Message.
//
// Unknown discriminators decode to Unknown rather than failing. Malformed
// payloads (bad JSON, missing "@type", missing or mistyped variant fields)
// return an error wrapping ErrDecode.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if env.Type == nil {
		return nil, fmt.Errorf("%w: missing @type", ErrDecode)
	}

	switch *env.Type {
	case TypeRefresh:
		if env.Token == nil {
			return nil, fmt.Errorf("%w: refresh missing token", ErrDecode)
		}
		return Refresh{Token: *env.Token}, nil
	case TypeConnected:
		return Connected{}, nil
	case TypeContent:
		if env.Content == nil {
			return nil, fmt.Errorf("%w: content missing content", ErrDecode)
		}
		msg := Content{Content: *env.Content}
		if env.Sender != nil {
			msg.Sender = *env.Sender
		}
		return msg, nil
	case TypeCodeNotFound:
		if env.Code == nil {
			return nil, fmt.Errorf("%w: code-not-found missing code", ErrDecode)
		}
		return CodeNotFound{Code: *env.Code}, nil
	case TypeDisconnected:
		return Disconnected{}, nil
	case TypePair:
		if env.Target == nil {
			return nil, fmt.Errorf("%w: pair missing target", ErrDecode)
		}
		return Pair{Target: *env.Target}, nil
	case TypeState:
		if env.State == nil {
			return nil, fmt.Errorf("%w: state missing state", ErrDecode)
		}
		return StateChange{State: *env.State}, nil
	default:
		return Unknown{Type: *env.Type}, nil
	}
}

// Encode is the strict inverse of Decode for every concrete variant.
// Encoding an Unknown (or a nil Message) has no wire form and fails.
func Encode(msg Message) ([]byte, error) {
	typ := func(s string) *string { return &s }

	var env envelope
	switch m := msg.(type) {
	case Refresh:
		env = envelope{Type: typ(TypeRefresh), Token: &m.Token}
	case Connected:
		env = envelope{Type: typ(TypeConnected)}
	case Content:
		env = envelope{Type: typ(TypeContent), Content: &m.Content}
		if m.Sender != "" {
			env.Sender = &m.Sender
		}
	case CodeNotFound:
		env = envelope{Type: typ(TypeCodeNotFound), Code: &m.Code}
	case Disconnected:
		env = envelope{Type: typ(TypeDisconnected)}
	case Pair:
		env = envelope{Type: typ(TypePair), Target: &m.Target}
	case StateChange:
		env = envelope{Type: typ(TypeState), State: &m.State}
	default:
		return nil, fmt.Errorf("%w: no wire form for %T", ErrEncode, msg)
	}
	return json.Marshal(env)
}
