package twist

// Environment is the set of callbacks a host supplies when creating a
// Socket. The engine never touches the network or a CSPRNG directly —
// every side effect crosses this boundary, which is what keeps the
// engine itself single-threaded, synchronous, and trivially testable.
type Environment struct {
	// SendDatagram transmits payload to addr. The engine guarantees
	// payload remains valid until the next Tick, Recv, or Destroy call
	// on the socket, which is when it releases sent packets, so an
	// implementation that merely enqueues the datagram for later
	// transmission does not need to copy it.
	SendDatagram func(address Addr, payload []byte, user interface{})

	// ReadEntropy fills dst with cryptographically strong random bytes
	// and returns how many bytes were written. Returning fewer than
	// len(dst) is treated as entropy exhaustion.
	ReadEntropy func(dst []byte, user interface{}) (int, error)

	// User is an opaque value passed through to both callbacks
	// unchanged.
	User interface{}
}
