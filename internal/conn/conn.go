// Package conn defines the per-connection record the socket engine
// indexes, schedules, and links into its accepted-connection list:
// cookies, state, read/write streams, and the back-pointers the hash
// table, timer heap, and accept list use to find it in O(1). Chain and
// list links stay as plain pointers since Go connections are heap
// objects with stable addresses; heap_index remains a plain field the
// timer heap rewrites on every sift rather than a pointer, so Fix/
// Remove never need to search for a connection's slot.
package conn

import (
	"github.com/twistproto/twist/internal/addr"
	"github.com/twistproto/twist/internal/connindex"
	"github.com/twistproto/twist/internal/pool"
)

// State is a Connection's position in the handshake/transport
// lifecycle.
type State int

const (
	StateClosed State = iota
	StateHandshakeSent
	StateHandshakeReceived
	StateEstablished
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHandshakeSent:
		return "handshake-sent"
	case StateHandshakeReceived:
		return "handshake-received"
	case StateEstablished:
		return "established"
	default:
		return "unknown"
	}
}

// Connection is one peer relationship owned by a socket: its cookies,
// its state, its read/write streams, and the back-pointers the hash
// table, timer heap, and accept list use to locate it in O(1).
type Connection struct {
	State State

	RemoteCookie uint64
	PeerAddr     addr.Addr

	localCookie uint64

	WriteBuffer *pool.Buffer
	ReadBuffer  *pool.Buffer

	NextTickValue int64

	heapIndex int
	chain     Item

	listPrev, listNext *Connection
	inList             bool
}

// Item is an alias of connindex.Item, so the chain link's type and the
// Next/SetNext signatures below are exactly the ones the connection
// index expects. connindex does not import this package, so the alias
// creates no import cycle.
type Item = connindex.Item

// New allocates a Connection bound to local_cookie, with fresh write
// and read buffers drawn from p.
func New(p *pool.Pool, localCookie uint64) *Connection {
	return &Connection{
		localCookie: localCookie,
		WriteBuffer: pool.NewBuffer(p),
		ReadBuffer:  pool.NewBuffer(p),
	}
}

// Destroy releases the Connection's buffers back to its pool. The
// Connection must already be unlinked from the hash, heap, and accept
// list.
func (c *Connection) Destroy() {
	c.WriteBuffer.Drain()
	c.ReadBuffer.Drain()
}

// Cookie, Next, and SetNext implement connindex.Item, keying the
// connection hash by local cookie.
func (c *Connection) Cookie() uint64 { return c.localCookie }
func (c *Connection) Next() Item     { return c.chain }
func (c *Connection) SetNext(n Item) { c.chain = n }

// NextTick, LocalCookie, HeapIndex, and SetHeapIndex implement
// timerheap.Item.
func (c *Connection) NextTick() int64    { return c.NextTickValue }
func (c *Connection) LocalCookie() uint64 { return c.localCookie }
func (c *Connection) HeapIndex() int     { return c.heapIndex }
func (c *Connection) SetHeapIndex(i int) { c.heapIndex = i }

// Tick drives the connection's own clock. The transport state machine
// past the handshake (retransmit timers, keepalives, flow control) is
// out of this engine's scope, so there is nothing left to schedule once
// a connection is established: it simply stops asking for further
// wake-ups.
func (c *Connection) Tick(now int64) int64 {
	c.NextTickValue = 0
	return c.NextTickValue
}

// Recv feeds one already-routed packet to the connection. typ is 0 for
// an ordinary data packet, or a control type byte ('h'/'t') when the
// socket routed a control packet here by sub-cookie rather than
// consuming it itself. Payload bytes for a data packet are appended to
// ReadBuffer unconditionally: reassembly, ordering, and flow control
// are out of this engine's scope.
func (c *Connection) Recv(typ byte, payload []byte, now int64) int64 {
	if typ == 0 {
		_ = c.ReadBuffer.Write(payload)
	}
	c.NextTickValue = 0
	return c.NextTickValue
}
