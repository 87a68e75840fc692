// Package prng implements the engine's keystream PRNG: buffered ChaCha20
// output reseeded periodically from an injected entropy source. It is
// grounded on the x/crypto/chacha20 stream-cipher API the rest of the
// retrieved corpus builds noise-protocol and WireGuard-style transports
// on top of (github.com/Nort0nChen/wireguard-go device/noise-protocol.go,
// cedws/noisysockets internal/transport), generalized here to a raw
// unauthenticated keystream rather than an AEAD, since the ticket
// envelope and the PRNG apply their own framing around it.
package prng

import (
	"errors"

	"golang.org/x/crypto/chacha20"
)

// BufferSize is the number of keystream bytes produced per refill.
const BufferSize = 1024

// ReseedInterval is the number of refills between reseeds (64 refills of
// BufferSize bytes each, i.e. 64 KiB of keystream per seed).
const ReseedInterval = 64

// KeySize is the size of the key half of a seed.
const KeySize = chacha20.KeySize

// NonceSize is the size of the nonce half of a seed. The engine's
// 8-byte nonce is zero-extended into the 12-byte IETF nonce
// golang.org/x/crypto/chacha20 requires.
const NonceSize = 8

// SeedSize is the total size of one reseed draw: key || nonce.
const SeedSize = KeySize + NonceSize

// ErrEntropyExhausted is returned when the entropy source yields fewer
// bytes than a seed requires.
var ErrEntropyExhausted = errors.New("prng: entropy source returned fewer bytes than requested")

// EntropySource draws len(dst) bytes of cryptographic randomness into
// dst and reports how many bytes were actually written. Returning fewer
// than len(dst) (with or without an error) is treated as exhaustion.
type EntropySource func(dst []byte) (int, error)

// PRNG is a buffered ChaCha20 keystream generator that periodically
// rekeys itself from an EntropySource, giving forward secrecy between
// seeds at the cost of trusting the source itself.
type PRNG struct {
	entropy EntropySource

	cipher   *chacha20.Cipher
	buf      [BufferSize]byte
	consumed int
	refills  int
}

// New constructs a PRNG, drawing its first seed immediately. It fails
// with ErrEntropyExhausted if entropy cannot supply SeedSize bytes.
func New(entropy EntropySource) (*PRNG, error) {
	p := &PRNG{entropy: entropy, consumed: BufferSize}
	if err := p.reseed(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PRNG) reseed() error {
	var seed [SeedSize]byte
	n, err := p.entropy(seed[:])
	if err != nil || n < SeedSize {
		return ErrEntropyExhausted
	}
	var nonce [chacha20.NonceSize]byte
	copy(nonce[chacha20.NonceSize-NonceSize:], seed[KeySize:])
	cipher, err := chacha20.NewUnauthenticatedCipher(seed[:KeySize], nonce[:])
	if err != nil {
		return err
	}
	p.cipher = cipher
	p.refills = ReseedInterval
	return nil
}

// refill produces the next BufferSize bytes of keystream and, once
// ReseedInterval refills have been drawn from the current cipher,
// reseeds before the next refill is needed.
func (p *PRNG) refill() error {
	for i := range p.buf {
		p.buf[i] = 0
	}
	p.cipher.XORKeyStream(p.buf[:], p.buf[:])
	p.consumed = 0
	p.refills--
	if p.refills <= 0 {
		return p.reseed()
	}
	return nil
}

// Read fills dst with keystream bytes, transparently refilling (and
// possibly reseeding) the internal buffer as needed. The only failure
// mode is entropy exhaustion during a reseed.
func (p *PRNG) Read(dst []byte) error {
	off := 0
	for off < len(dst) {
		if p.consumed >= BufferSize {
			if err := p.refill(); err != nil {
				return err
			}
		}
		n := copy(dst[off:], p.buf[p.consumed:])
		p.consumed += n
		off += n
	}
	return nil
}
