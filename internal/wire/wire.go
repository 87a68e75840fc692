// Package wire implements the engine's big-endian integer codec and the
// control-packet framing used to carry handshakes and tickets over the
// same datagram socket as data traffic: small, explicit, hand-rolled
// field packing rather than reflection, because the layouts are fixed
// and tiny.
package wire

import "encoding/binary"

// VersionTag is the literal "twist/0" tag overlapping bytes [7:14] of
// every control packet (the low seven bytes of the zero destination
// cookie).
const VersionTag = "twist/0"

// Control packet type bytes.
const (
	TypeHandshake byte = 'h'
	TypeTicket    byte = 't'
)

// Control packet layout offsets.
const (
	OffCookie     = 0  // [0:8)   destination cookie, big-endian u64
	OffVersion    = 7  // [7:14)  "twist/0" (overlaps cookie low bytes)
	OffType       = 15 // [15:16) type byte
	OffSubCookie  = 16 // [16:24) source/secondary cookie, big-endian u64
	ControlHeaderLen = 24
)

// ErrShort is returned by decoders when the buffer is too small to hold
// the field being read. Callers in this engine never surface it to the
// host: short or malformed packets are silently discarded rather than
// reported as an error.
var ErrShort = shortError("wire: buffer too short")

type shortError string

func (e shortError) Error() string { return string(e) }

// PutUint64 writes v as big-endian into dst[0:8].
func PutUint64(dst []byte, v uint64) {
	binary.BigEndian.PutUint64(dst, v)
}

// Uint64 reads a big-endian u64 from src[0:8].
func Uint64(src []byte) uint64 {
	return binary.BigEndian.Uint64(src)
}

// PutUint32 writes v as big-endian into dst[0:4].
func PutUint32(dst []byte, v uint32) {
	binary.BigEndian.PutUint32(dst, v)
}

// Uint32 reads a big-endian u32 from src[0:4].
func Uint32(src []byte) uint32 {
	return binary.BigEndian.Uint32(src)
}

// ControlHeader is the decoded form of a control packet's fixed header.
// The handshake payload that follows it (ticket + peer key material) is
// forwarded unchanged; this engine never parses past byte 24.
type ControlHeader struct {
	Cookie    uint64 // always 0 for a control packet
	Type      byte
	SubCookie uint64
}

// IsControl reports whether payload's destination cookie decodes to
// zero, i.e. this is a control packet rather than a data packet.
func IsControl(payload []byte) bool {
	if len(payload) < 8 {
		return false
	}
	return Uint64(payload[:8]) == 0
}

// DecodeControlHeader parses the fixed 24-byte control header. It
// returns ok=false (never an error) for anything that fails to parse:
// malformed and hostile traffic must not influence the host's error
// flow.
func DecodeControlHeader(payload []byte) (hdr ControlHeader, ok bool) {
	if len(payload) < ControlHeaderLen {
		return ControlHeader{}, false
	}
	if string(payload[OffVersion:OffVersion+len(VersionTag)]) != VersionTag {
		return ControlHeader{}, false
	}
	typ := payload[OffType]
	if typ != TypeHandshake && typ != TypeTicket {
		return ControlHeader{}, false
	}
	return ControlHeader{
		Cookie:    Uint64(payload[OffCookie : OffCookie+8]),
		Type:      typ,
		SubCookie: Uint64(payload[OffSubCookie : OffSubCookie+8]),
	}, true
}

// EncodeControlHeader writes the 24-byte fixed header into dst, which
// must be at least ControlHeaderLen bytes. Any payload (ticket, key
// material) follows starting at dst[ControlHeaderLen:].
func EncodeControlHeader(dst []byte, typ byte, subCookie uint64) {
	for i := range dst[:ControlHeaderLen] {
		dst[i] = 0
	}
	copy(dst[OffVersion:], VersionTag)
	dst[OffType] = typ
	PutUint64(dst[OffSubCookie:OffSubCookie+8], subCookie)
}

// DataCookie decodes the destination cookie of a data packet (non-zero
// by construction once IsControl has returned false).
func DataCookie(payload []byte) (uint64, bool) {
	if len(payload) < 8 {
		return 0, false
	}
	return Uint64(payload[:8]), true
}
