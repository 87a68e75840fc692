package twist

import "github.com/twistproto/twist/internal/addr"

// Addr is a fixed-capacity envelope around a generic socket address
// (e.g. a serialized sockaddr_in/sockaddr_in6), used throughout the
// public API so Connections and callbacks can carry an address without
// a net.Addr interface allocation on the hot path.
type Addr = addr.Addr

// NewAddr builds an Addr from raw address bytes, truncating to
// addr.MaxLen.
func NewAddr(b []byte) Addr {
	return addr.New(b)
}
