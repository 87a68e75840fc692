// Package twist implements the core engine of a secure, connection-
// oriented transport protocol running over unreliable datagrams: a
// single-threaded, callback-driven socket that demultiplexes inbound
// traffic to Connections, drives their timers, and mints/validates the
// stateless handshake tickets that let a responder stay cookie-less
// until a peer proves it owns the address it claims.
//
// Socket's Create/Options/Params shape and its Logger/Observer
// collaborators follow the same pattern as the rest of this package:
// a public handle built around injected callbacks, with optional
// logging and metrics wired in at construction time rather than
// threaded through every call.
package twist

import (
	"github.com/twistproto/twist/internal/conn"
	"github.com/twistproto/twist/internal/connindex"
	"github.com/twistproto/twist/internal/constants"
	"github.com/twistproto/twist/internal/interfaces"
	"github.com/twistproto/twist/internal/logging"
	"github.com/twistproto/twist/internal/pool"
	"github.com/twistproto/twist/internal/prng"
	"github.com/twistproto/twist/internal/register"
	"github.com/twistproto/twist/internal/ticket"
	"github.com/twistproto/twist/internal/timerheap"
	"github.com/twistproto/twist/internal/wire"
)

// Params tunes the data structures a Socket builds at Create time. The
// zero value is not ready to use; start from DefaultParams.
type Params struct {
	// RegisterLifetime is the number of one-second buckets a handshake
	// token remains claimable for.
	RegisterLifetime int

	// PoolCapacity bounds outstanding+free pool blocks; 0 means the
	// host allocator is trusted not to run out.
	PoolCapacity int

	// PoolCullKeep is the free-list high-water mark restored after
	// every public entry.
	PoolCullKeep int
}

// DefaultParams returns the engine's recommended tuning defaults.
func DefaultParams() Params {
	return Params{
		RegisterLifetime: constants.DefaultRegisterLifetime,
		PoolCapacity:     0,
		PoolCullKeep:     constants.DefaultPoolCullKeep,
	}
}

// Options carries optional collaborators. A nil *Options, or any nil
// field within one, falls back to a no-op default.
type Options struct {
	Logger   Logger
	Observer Observer
}

// Logger is the structured-logging surface a Socket writes to.
// *logging.Logger (internal/logging) implements it, as does any type
// with the same two methods.
type Logger interface {
	Printf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Socket is the demultiplexer and timer driver owning every Connection
// on one local endpoint. It is reentrant-forbidden: the host must not
// call any public method while another is in progress on the same
// Socket, though distinct Sockets are fully independent.
type Socket struct {
	env    Environment
	params Params

	lastTick int64
	nextTick int64

	lingering *pool.Packet

	pool     *pool.Pool
	prng     *prng.PRNG
	reg      *register.Register
	index    *connindex.Index
	heap     *timerheap.Heap
	accepted conn.List

	ticketKey [32]byte

	nextCookie uint64

	logger   interfaces.Logger
	observer interfaces.Observer
}

// Create allocates and initializes a Socket. It seeds the PRNG first,
// then the pool, the strike register, a seed for the connection index
// drawn from the PRNG, the timer heap, and finally a 32-byte ticket key
// also drawn from the PRNG, which is the sole consumer of raw entropy
// past socket setup. Any failure tears down only the prefix already
// built.
func Create(env Environment, params Params, options *Options) (*Socket, error) {
	if env.SendDatagram == nil || env.ReadEntropy == nil {
		return nil, NewError("create", CodeInvalid, "environment missing required callback")
	}
	if options == nil {
		options = &Options{}
	}
	logger := options.Logger
	if logger == nil {
		logger = logging.Default()
	}
	observer := options.Observer
	if observer == nil {
		observer = NoOpObserver{}
	}
	if params.RegisterLifetime <= 0 {
		params.RegisterLifetime = constants.DefaultRegisterLifetime
	}
	if params.PoolCullKeep < 0 {
		params.PoolCullKeep = constants.DefaultPoolCullKeep
	}

	source := func(dst []byte) (int, error) {
		return env.ReadEntropy(dst, env.User)
	}

	p, err := prng.New(source)
	if err != nil {
		return nil, NewError("create", CodeEntropy, "prng seed: "+err.Error())
	}

	objPool := pool.New(params.PoolCapacity)
	reg := register.New(params.RegisterLifetime)

	var seedBytes [8]byte
	if err := p.Read(seedBytes[:]); err != nil {
		return nil, NewError("create", CodeEntropy, "index seed: "+err.Error())
	}
	seed := wire.Uint64(seedBytes[:])
	index := connindex.New(seed)

	heap := timerheap.New()

	s := &Socket{
		env:      env,
		params:   params,
		pool:     objPool,
		prng:     p,
		reg:      reg,
		index:    index,
		heap:     heap,
		logger:   logger,
		observer: observer,
	}
	if err := p.Read(s.ticketKey[:]); err != nil {
		return nil, NewError("create", CodeEntropy, "ticket key: "+err.Error())
	}
	index.SetRehashObserver(func(direction string) {
		s.observer.ObserveRehash("connindex", direction)
	})
	return s, nil
}

// Destroy tears the socket down. It fails with CodeAgain if any
// Connection is still resident, since destroying a socket out from
// under live connections would leave them dangling.
func (s *Socket) Destroy() error {
	if s.heap.Peek() != nil {
		return NewError("destroy", CodeAgain, "connections still resident")
	}
	s.drainLingering()
	return nil
}

// Add inserts c into the socket's connection index, timer heap, and
// accepted list. The caller (dial/accept, out of this engine's scope)
// must have already given c a unique local cookie; inserting a
// colliding cookie is undefined.
func (s *Socket) Add(c *conn.Connection) error {
	s.index.Add(c)
	if err := s.heap.Add(c); err != nil {
		s.index.Remove(c.Cookie())
		return WrapError("add", err)
	}
	s.accepted.PushBack(c)
	s.refreshNextTick()
	return nil
}

// Remove unlinks c from the socket's connection index, timer heap, and
// accepted list. It does not release c's buffers; callers that are
// discarding c entirely should call c.Destroy() afterward.
func (s *Socket) Remove(c *conn.Connection) {
	s.index.Remove(c.Cookie())
	s.heap.Remove(c)
	s.accepted.Remove(c)
	s.refreshNextTick()
}

// refreshNextTick resyncs the socket's cached next_tick with the timer
// heap's current top, the value every public entry returns to tell the
// host when to call Tick again.
func (s *Socket) refreshNextTick() {
	top := s.heap.Peek()
	if top == nil || top.NextTick() <= 0 {
		s.nextTick = 0
		return
	}
	s.nextTick = top.NextTick()
}

// NextCookie hands out the next unique local cookie this socket will
// assign to a new Connection. Cookies must be unique and non-zero
// (zero is reserved for control packets); this engine satisfies that
// with a monotonic counter seeded away from zero, which is simpler than
// and just as collision-free as drawing candidates from the PRNG and
// re-rolling on collision.
func (s *Socket) NextCookie() uint64 {
	s.nextCookie++
	return s.nextCookie
}

// NewConnection allocates a Connection bound to this socket's pool and
// the next unique local cookie, ready to be inserted with Add once a
// dial or accept path (out of this engine's scope) has set its peer
// address and remote cookie.
func (s *Socket) NewConnection() *conn.Connection {
	return conn.New(s.pool, s.NextCookie())
}

// TicketKey exposes the socket's 32-byte handshake-ticket key, e.g. for
// a host-level dial path that needs to mint its own client-side
// material. It must not be persisted past the socket's lifetime.
func (s *Socket) TicketKey() [32]byte {
	return s.ticketKey
}

// Register returns the socket's strike register, for a dial path that
// needs to reserve tokens outside of Recv's client-handshake branch.
func (s *Socket) Register() *register.Register {
	return s.reg
}

// Entropy draws n bytes from the socket's keystream PRNG.
func (s *Socket) Entropy(dst []byte) error {
	return s.prng.Read(dst)
}

// Tick drives the socket's clock forward to now, firing every
// Connection timer that has come due. now must never regress between
// calls; a regression fails CodeInvalid without touching any state, as
// the engine refuses to reason about time running backward.
func (s *Socket) Tick(now int64) (int64, error) {
	next, err := s.tick(now)
	s.cullPool()
	if err != nil {
		s.observer.ObserveTick(s.heap.Len())
		return 0, err
	}
	s.observer.ObserveTick(s.heap.Len())
	return next, nil
}

// cullPool restores the pool's free list to its configured high-water
// mark and reports the freed count to the observer. Every public entry
// calls this exactly once on its way out.
func (s *Socket) cullPool() {
	freed := s.pool.Cull(s.params.PoolCullKeep)
	if freed > 0 {
		s.observer.ObservePoolCull(freed)
	}
}

// tick is the public Tick's inner implementation, also called as the
// first step of Recv: every packet first catches the socket's clock up
// to now before it is demultiplexed.
func (s *Socket) tick(now int64) (int64, error) {
	s.drainLingering()

	if now < s.lastTick {
		s.logger.Debugf("tick rejected: now=%d regressed behind last=%d", now, s.lastTick)
		return 0, NewError("tick", CodeInvalid, "time regressed")
	}
	s.lastTick = now

	if s.nextTick > 0 && now < s.nextTick {
		return s.nextTick, nil
	}

	for {
		top := s.heap.Peek()
		if top == nil {
			s.nextTick = 0
			break
		}
		nt := top.NextTick()
		// A deadline at or below zero means no timer is scheduled, and
		// the heap's ordering rule sorts every such entry after all
		// positive deadlines. Seeing one at the top means nothing in
		// the heap is due, exactly like an empty heap.
		if nt <= 0 {
			s.nextTick = 0
			break
		}
		if nt > now {
			s.nextTick = nt
			break
		}
		c := top.(*conn.Connection)
		result := c.Tick(now)
		if result != c.NextTickValue {
			c.NextTickValue = result
		}
		s.heap.Fix(c)
	}
	return s.nextTick, nil
}

// Recv feeds one inbound datagram to the socket: address, raw payload,
// and the current time. It first drives the clock forward to now, then
// demultiplexes control packets (handshake minting, ticket
// verification) and data packets (lookup by destination cookie) alike.
// Malformed, hostile, or simply unknown traffic is silently discarded
// rather than surfaced as an error; only resource exhaustion and
// time-regress produce one.
func (s *Socket) Recv(address Addr, payload []byte, now int64) (int64, error) {
	_, err := s.tick(now)
	if err != nil {
		s.cullPool()
		s.observer.ObserveRecv(len(payload), false)
		return 0, err
	}

	accepted, rerr := s.receive(address, payload, now)
	s.cullPool()
	s.observer.ObserveRecv(len(payload), accepted)
	if rerr != nil {
		return 0, rerr
	}
	return s.nextTick, nil
}

// receive implements step 4 onward of the demultiplexer: decode the
// destination cookie, branch on control vs. data, and forward to the
// matched Connection (or the client-handshake ticket-minting path).
// It reports whether the packet was accepted, purely for metrics.
func (s *Socket) receive(address Addr, payload []byte, now int64) (bool, error) {
	if len(payload) < wire.ControlHeaderLen {
		return false, nil
	}

	if wire.IsControl(payload) {
		hdr, ok := wire.DecodeControlHeader(payload)
		if !ok {
			return false, nil
		}
		if hdr.Type == wire.TypeHandshake && hdr.SubCookie == 0 {
			return s.receiveClientHandshake(address, payload, now)
		}
		return s.forward(hdr.Type, hdr.SubCookie, address, payload, now)
	}

	cookie, ok := wire.DataCookie(payload)
	if !ok || cookie == 0 {
		return false, nil
	}
	return s.forward(0, cookie, address, payload, now)
}

// forward looks up a Connection by cookie and, if found, hands it the
// packet; otherwise the packet is discarded. For a data packet (typ
// 0) the 8-byte destination cookie is stripped before the connection
// ever sees the bytes, since only the payload that follows it belongs
// to the stream; a control packet forwarded by sub-cookie keeps its
// full framing, which the connection ignores past typ. On success it
// refreshes the connection's heap slot and the socket's cached
// next_tick.
func (s *Socket) forward(typ byte, cookie uint64, address Addr, payload []byte, now int64) (bool, error) {
	item := s.index.Find(cookie)
	if item == nil {
		return false, nil
	}
	c := item.(*conn.Connection)

	body := payload
	if typ == 0 {
		body = payload[8:]
	}
	pk, err := s.pool.NewPacket(address, body)
	if err != nil {
		return false, WrapError("recv", err)
	}
	s.linger(pk)

	result := c.Recv(typ, pk.Bytes(), now)
	if result != c.NextTickValue {
		c.NextTickValue = result
	}
	s.heap.Fix(c)
	s.refreshNextTick()
	return true, nil
}

// receiveClientHandshake answers an unsolicited client handshake by
// minting a ticket and sending it back to the claimed address, so a
// responder stays connection-less until the peer returns a valid
// ticket, at which point normal cookie-based forwarding (above) takes
// over.
func (s *Socket) receiveClientHandshake(address Addr, payload []byte, now int64) (bool, error) {
	env, err := ticket.Mint(s.ticketKey, s.reg, s.prng, address, now)
	if err != nil {
		s.logger.Debugf("ticket mint failed for %x: %v", address.Bytes(), err)
		s.observer.ObserveHandshake(false, false)
		return false, WrapError("recv", err)
	}
	s.logger.Debugf("minted ticket for %x", address.Bytes())

	out := make([]byte, wire.ControlHeaderLen+ticket.Size)
	wire.EncodeControlHeader(out, wire.TypeTicket, 0)
	copy(out[wire.ControlHeaderLen:], env[:])

	pk, err := s.pool.NewPacket(address, out)
	if err != nil {
		s.observer.ObserveHandshake(false, false)
		return false, WrapError("recv", err)
	}
	s.linger(pk)

	s.observer.ObserveHandshake(true, false)
	s.env.SendDatagram(address, pk.Bytes(), s.env.User)
	return true, nil
}

// VerifyTicket validates a ticket addressed to address, claiming its
// token in the strike register exactly once. A dial path (out of this
// engine's scope) calls this after receiving a ticket response to
// decide whether to proceed with a connecting handshake.
func (s *Socket) VerifyTicket(ticketBytes []byte, address Addr, now int64) bool {
	ok := ticket.Verify(s.ticketKey, s.reg, ticketBytes, address, now) == nil
	s.observer.ObserveHandshake(false, ok)
	return ok
}

// linger keeps pk alive until the next public call, per the engine's
// guarantee that bytes handed to SendDatagram (and packets allocated
// during one call) remain valid until then.
func (s *Socket) linger(pk *pool.Packet) {
	pk.Next = s.lingering
	s.lingering = pk
}

// drainLingering releases every packet queued by the previous public
// call back to the pool.
func (s *Socket) drainLingering() {
	for s.lingering != nil {
		next := s.lingering.Next
		s.pool.Release(s.lingering)
		s.lingering = next
	}
}

// NextTick reports the absolute monotonic timestamp of the next
// scheduled wake-up (0 meaning "no connection has a pending timer"),
// without driving any timers or touching any state. A host that wants
// to size its own wait without forcing a tick can poll this.
func (s *Socket) NextTick() int64 {
	return s.nextTick
}

// PendingConnections reports how many Connections are currently
// resident in the socket's timer heap.
func (s *Socket) PendingConnections() int {
	return s.heap.Len()
}

// PoolFreeCount reports the number of blocks currently sitting idle in
// the socket's object pool free list.
func (s *Socket) PoolFreeCount() int {
	return s.pool.FreeCount()
}
