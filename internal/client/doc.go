// Package client implements the LinkShare session/connection engine: the
// websocket lifecycle manager with automatic reconnection, the token-based
// pairing handshake state machine, and the tagged-message dispatcher.
//
// Rendering, clipboard, cameras and the relay itself are collaborators
// behind small interfaces; this package owns only the protocol behavior.
package client
