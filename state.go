package twist

import "github.com/twistproto/twist/internal/conn"

// State is a Connection's position in the handshake/transport
// lifecycle, observable via the Connection's State field.
type State = conn.State

const (
	StateClosed             = conn.StateClosed
	StateHandshakeSent      = conn.StateHandshakeSent
	StateHandshakeReceived  = conn.StateHandshakeReceived
	StateEstablished        = conn.StateEstablished
)
