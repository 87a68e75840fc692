package twist

import (
	"testing"

	"github.com/twistproto/twist/internal/wire"
)

func mustTestSocket(t *testing.T) (*Socket, *MockEnvironment) {
	t.Helper()
	menv := NewMockEnvironment(nil)
	sock, err := Create(menv.Environment(), DefaultParams(), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return sock, menv
}

func TestCreateRejectsMissingCallbacks(t *testing.T) {
	if _, err := Create(Environment{}, DefaultParams(), nil); err == nil {
		t.Fatal("expected an error for an environment with no callbacks")
	} else if !IsCode(err, CodeInvalid) {
		t.Fatalf("expected CodeInvalid, got %v", err)
	}
}

func TestDestroyEmptySocketSucceeds(t *testing.T) {
	sock, _ := mustTestSocket(t)
	if err := sock.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
}

// TestDestroyFailsWithResidentConnection grounds I1/I3 by exercising
// Add/Remove against the connection index and timer heap together.
func TestDestroyFailsWithResidentConnection(t *testing.T) {
	sock, _ := mustTestSocket(t)
	c := sock.NewConnection()
	if err := sock.Add(c); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := sock.Destroy(); !IsCode(err, CodeAgain) {
		t.Fatalf("expected CodeAgain with a resident connection, got %v", err)
	}

	sock.Remove(c)
	c.Destroy()
	if err := sock.Destroy(); err != nil {
		t.Fatalf("destroy after remove: %v", err)
	}
}

// TestTickMonotonicity grounds P8: a regressed now fails CodeInvalid
// and leaves the socket's clock untouched.
func TestTickMonotonicity(t *testing.T) {
	sock, _ := mustTestSocket(t)

	if _, err := sock.Tick(10); err != nil {
		t.Fatalf("tick(10): %v", err)
	}
	if _, err := sock.Tick(5); !IsCode(err, CodeInvalid) {
		t.Fatalf("expected CodeInvalid for a regressed tick, got %v", err)
	}
	// The clock must still be at 10: ticking forward from 10 again
	// must succeed exactly as if the regression never happened.
	if _, err := sock.Tick(10); err != nil {
		t.Fatalf("tick(10) after rejected regression: %v", err)
	}
}

// TestTickIdempotence grounds P9: calling tick(now) twice in a row
// fires no connection twice and returns the same next-tick value.
func TestTickIdempotence(t *testing.T) {
	sock, _ := mustTestSocket(t)
	c := sock.NewConnection()
	c.NextTickValue = 5
	if err := sock.Add(c); err != nil {
		t.Fatalf("add: %v", err)
	}

	first, err := sock.Tick(5)
	if err != nil {
		t.Fatalf("tick(5): %v", err)
	}
	if first != 0 {
		t.Fatalf("next tick after firing = %d, want 0 (connection hook clears its own timer)", first)
	}

	second, err := sock.Tick(5)
	if err != nil {
		t.Fatalf("tick(5) again: %v", err)
	}
	if second != first {
		t.Fatalf("second tick(5) returned %d, want %d", second, first)
	}
}

// TestRecvRoutesDataPacketByCookie exercises the demultiplexer's data
// path: a connection added to the socket receives bytes addressed to
// its own cookie.
func TestRecvRoutesDataPacketByCookie(t *testing.T) {
	sock, _ := mustTestSocket(t)
	c := sock.NewConnection()
	if err := sock.Add(c); err != nil {
		t.Fatalf("add: %v", err)
	}

	payload := make([]byte, wire.ControlHeaderLen)
	wire.PutUint64(payload[:8], c.Cookie())
	copy(payload[8:], []byte("hello"))

	peer := NewAddr([]byte("peer"))
	if _, err := sock.Recv(peer, payload, 1); err != nil {
		t.Fatalf("recv: %v", err)
	}

	wantSize := len(payload) - 8
	if c.ReadBuffer.Size() != wantSize {
		t.Fatalf("read buffer size = %d, want %d", c.ReadBuffer.Size(), wantSize)
	}
	got := make([]byte, wantSize)
	c.ReadBuffer.Read(got)
	if string(got[:5]) != "hello" {
		t.Fatalf("read buffer contents = %q, want prefix %q", got, "hello")
	}
}

// TestRecvDiscardsUnknownCookie ensures unmatched data packets never
// surface an error and never touch any connection.
func TestRecvDiscardsUnknownCookie(t *testing.T) {
	sock, _ := mustTestSocket(t)
	payload := make([]byte, wire.ControlHeaderLen)
	wire.PutUint64(payload[:8], 0xdeadbeef)
	if _, err := sock.Recv(NewAddr([]byte("x")), payload, 1); err != nil {
		t.Fatalf("recv of unknown cookie should not error: %v", err)
	}
}

// TestPoolCullAfterEveryCall grounds S6/I7: with the default
// cull-keep of 8, the pool's free count never exceeds it after any
// public entry, even after many packets have cycled through it.
func TestPoolCullAfterEveryCall(t *testing.T) {
	sock, _ := mustTestSocket(t)
	c := sock.NewConnection()
	if err := sock.Add(c); err != nil {
		t.Fatalf("add: %v", err)
	}

	payload := make([]byte, wire.ControlHeaderLen)
	wire.PutUint64(payload[:8], c.Cookie())
	peer := NewAddr([]byte("peer"))

	for i := 0; i < 50; i++ {
		if _, err := sock.Recv(peer, payload, int64(i+1)); err != nil {
			t.Fatalf("recv %d: %v", i, err)
		}
		if got := sock.PoolFreeCount(); got > DefaultPoolCullKeep {
			t.Fatalf("pool free count = %d after call %d, want <= %d", got, i, DefaultPoolCullKeep)
		}
	}
}

// TestUnsolicitedHandshakeMintsAndSendsTicket exercises the
// client-handshake branch of Recv end to end, including the socket's
// own ticket verification.
func TestUnsolicitedHandshakeMintsAndSendsTicket(t *testing.T) {
	sock, menv := mustTestSocket(t)

	client := NewAddr([]byte("client"))
	handshake := make([]byte, wire.ControlHeaderLen)
	wire.EncodeControlHeader(handshake, wire.TypeHandshake, 0)

	if _, err := sock.Recv(client, handshake, 1); err != nil {
		t.Fatalf("recv: %v", err)
	}

	sent := menv.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one outbound datagram, got %d", len(sent))
	}
	if !sent[0].Addr.Equal(client) {
		t.Fatalf("ticket sent to the wrong address")
	}
	hdr, ok := wire.DecodeControlHeader(sent[0].Payload)
	if !ok || hdr.Type != wire.TypeTicket {
		t.Fatalf("outbound datagram is not a well-formed ticket response")
	}

	ticketBytes := sent[0].Payload[wire.ControlHeaderLen:]
	if !sock.VerifyTicket(ticketBytes, client, 1) {
		t.Fatal("minted ticket should verify")
	}
	if sock.VerifyTicket(ticketBytes, client, 1) {
		t.Fatal("minted ticket should not verify twice")
	}
}

func TestRecvDiscardsMalformedControlPacket(t *testing.T) {
	sock, menv := mustTestSocket(t)
	garbage := make([]byte, wire.ControlHeaderLen)
	// Leaves the version tag zeroed instead of "twist/0".
	if _, err := sock.Recv(NewAddr([]byte("x")), garbage, 1); err != nil {
		t.Fatalf("malformed control packet should not error: %v", err)
	}
	if len(menv.Sent()) != 0 {
		t.Fatal("malformed control packet should not provoke a reply")
	}
}
