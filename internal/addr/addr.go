// Package addr provides a fixed-capacity envelope around a generic socket
// address, so Connection and Packet records can carry an address without
// an interface allocation on the hot path.
package addr

const maxLen = 30

// Addr holds up to maxLen bytes of opaque socket-address data plus its
// used length. Equality is byte-wise over the used prefix, matching the
// data model's "Address" record.
type Addr struct {
	data [maxLen]byte
	n    uint8
}

// MaxLen is the largest address payload an Addr can hold.
const MaxLen = maxLen

// New builds an Addr from raw bytes. It truncates to MaxLen; callers that
// need every byte must check len(b) <= MaxLen themselves.
func New(b []byte) Addr {
	var a Addr
	n := len(b)
	if n > maxLen {
		n = maxLen
	}
	copy(a.data[:], b[:n])
	a.n = uint8(n)
	return a
}

// Bytes returns the used prefix of the address.
func (a Addr) Bytes() []byte {
	return a.data[:a.n]
}

// Len reports the number of valid bytes in the address.
func (a Addr) Len() int {
	return int(a.n)
}

// Equal reports whether two addresses carry the same bytes.
func (a Addr) Equal(o Addr) bool {
	if a.n != o.n {
		return false
	}
	return a.data == o.data || bytesEqual(a.data[:a.n], o.data[:o.n])
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IsZero reports whether the address carries no bytes.
func (a Addr) IsZero() bool {
	return a.n == 0
}
