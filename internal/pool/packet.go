package pool

import "github.com/twistproto/twist/internal/addr"

// ErrPayloadTooLarge is returned by NewPacket when payload would not
// fit in a single pool object.
type ErrPayloadTooLarge struct{}

func (ErrPayloadTooLarge) Error() string { return "pool: payload exceeds object size" }

// Packet is an addressed byte buffer pooled out of a single Pool
// object: the demultiplexer copies an incoming datagram's address and
// bytes into one, and the engine's outbound lingering-packet list is a
// singly linked chain of these.
type Packet struct {
	Addr addr.Addr
	Next *Packet

	buf []byte
	n   int
}

// NewPacket allocates a Packet from p, copying payload into the pool
// object. It fails with ErrPayloadTooLarge if payload can't fit in one
// block, or with the pool's exhaustion error if no block is available.
func (p *Pool) NewPacket(a addr.Addr, payload []byte) (*Packet, error) {
	if len(payload) > ObjectSize {
		return nil, ErrPayloadTooLarge{}
	}
	blk, err := p.Alloc()
	if err != nil {
		return nil, err
	}
	n := copy(blk, payload)
	return &Packet{Addr: a, buf: blk, n: n}, nil
}

// Bytes returns the packet's payload.
func (pk *Packet) Bytes() []byte {
	return pk.buf[:pk.n]
}

// Release returns the packet's backing block to p. The Packet must not
// be used again afterward.
func (p *Pool) Release(pk *Packet) {
	if pk.buf == nil {
		return
	}
	p.Free(pk.buf)
	pk.buf = nil
	pk.n = 0
	pk.Next = nil
}
