// Package ticket implements the handshake ticket: a 64-byte envelope
// binding a strike-register token to a peer address, so a responder can
// stay stateless until the peer proves it owns the address it claims.
// It is grounded on the x/crypto chacha20/hmac primitives the
// noise-protocol style transports in the retrieved corpus build their
// handshakes on (cedws/noisysockets, Nort0nChen/wireguard-go), adapted
// here to HChaCha20 sub-key derivation plus a detached HMAC-SHA-512 tag
// rather than an AEAD, since the token being encrypted is only 8 bytes
// and the tag must cover the peer address as associated data.
package ticket

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/chacha20"

	"github.com/twistproto/twist/internal/addr"
	"github.com/twistproto/twist/internal/register"
)

const (
	ivSize       = 24
	tokenOffset  = ivSize
	tokenSize    = 8
	tagOffset    = tokenOffset + tokenSize
	tagSize      = 32
	// Size is the total length of a minted ticket.
	Size = tagOffset + tagSize

	subKeyNonceSize = 16
	streamNonceSize = 8
)

// ErrRejected is returned by Verify for any ticket that fails its tag
// check, fails to decode, or whose token has already been claimed or
// has expired.
var ErrRejected = errors.New("ticket: rejected")

// KeystreamSource supplies cryptographically strong bytes for a
// ticket's IV. *prng.PRNG satisfies this.
type KeystreamSource interface {
	Read(dst []byte) error
}

// Mint produces a fresh 64-byte ticket binding a newly reserved
// strike-register token to address, under ticketKey.
func Mint(ticketKey [32]byte, reg *register.Register, source KeystreamSource, address addr.Addr, nowNanos int64) ([Size]byte, error) {
	var out [Size]byte

	if err := source.Read(out[:ivSize]); err != nil {
		return out, err
	}

	tok, err := reg.Reserve(nowNanos)
	if err != nil {
		return out, err
	}
	putUint32(out[tokenOffset:tokenOffset+4], uint32(tok.Bucket))
	putUint32(out[tokenOffset+4:tokenOffset+tokenSize], tok.Index)

	if err := encryptToken(ticketKey, out[:tokenOffset+tokenSize]); err != nil {
		return out, err
	}

	tag := computeTag(ticketKey, address, out[:tagOffset])
	copy(out[tagOffset:], tag)

	return out, nil
}

// Verify checks ticket's tag and claims its embedded token. A ticket
// accepted once can never be accepted again for the same register.
func Verify(ticketKey [32]byte, reg *register.Register, ticket []byte, address addr.Addr, nowNanos int64) error {
	if len(ticket) != Size {
		return ErrRejected
	}

	wantTag := computeTag(ticketKey, address, ticket[:tagOffset])
	if subtle.ConstantTimeCompare(wantTag, ticket[tagOffset:tagOffset+tagSize]) != 1 {
		return ErrRejected
	}

	encoded := make([]byte, tokenOffset+tokenSize)
	copy(encoded, ticket[:tokenOffset+tokenSize])
	if err := encryptToken(ticketKey, encoded); err != nil {
		return ErrRejected
	}
	tok := register.Token{
		Bucket: int64(uint32FromBytes(encoded[tokenOffset : tokenOffset+4])),
		Index:  uint32FromBytes(encoded[tokenOffset+4 : tokenOffset+tokenSize]),
	}

	if err := reg.Claim(tok, nowNanos); err != nil {
		return ErrRejected
	}
	return nil
}

// encryptToken XOR-encrypts (and, applied twice, decrypts) the 8-byte
// token field in place using a sub-key derived from the first 16 bytes
// of the envelope and a stream keyed by the next 8.
func encryptToken(ticketKey [32]byte, envelope []byte) error {
	subKey, err := chacha20.HChaCha20(ticketKey[:], envelope[:subKeyNonceSize])
	if err != nil {
		return err
	}

	var nonce [chacha20.NonceSize]byte
	copy(nonce[chacha20.NonceSize-streamNonceSize:], envelope[subKeyNonceSize:subKeyNonceSize+streamNonceSize])

	cipher, err := chacha20.NewUnauthenticatedCipher(subKey, nonce[:])
	if err != nil {
		return err
	}
	field := envelope[tokenOffset : tokenOffset+tokenSize]
	cipher.XORKeyStream(field, field)
	return nil
}

func computeTag(ticketKey [32]byte, address addr.Addr, prefix []byte) []byte {
	mac := hmac.New(sha512.New, ticketKey[:])
	mac.Write(address.Bytes())
	mac.Write(prefix)
	return mac.Sum(nil)[:tagSize]
}

func putUint32(dst []byte, v uint32) {
	dst[0] = byte(v >> 24)
	dst[1] = byte(v >> 16)
	dst[2] = byte(v >> 8)
	dst[3] = byte(v)
}

func uint32FromBytes(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
