// Package chainhash defines the Hash type shared by transactions, blocks
// and the UTXO index, and the SHA256d digest the rest of the core hashes
// with. It is a fixed-size value type so it can be used as a map key
// without aliasing.
package chainhash

import (
	"crypto/sha256"
	"encoding/hex"

	"vulkan/corverrors"
)

// Size is the length in bytes of a Hash.
const Size = 32

// Hash is an opaque 32-byte digest. Equality is byte-equality.
type Hash [Size]byte

// Zero is the all-zero hash used as the coinbase's synthetic previous-tx
// reference and as genesis's previous-block reference.
var Zero Hash

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool { return h == Zero }

// String renders the hash as big-endian hex, matching how block explorers
// and the rest of the ecosystem display digests.
func (h Hash) String() string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, Size*2)
	for i := 0; i < Size; i++ {
		b := h[Size-1-i]
		buf[i*2] = hexDigits[b>>4]
		buf[i*2+1] = hexDigits[b&0x0f]
	}
	return string(buf)
}

// Bytes returns a fresh copy of the hash's bytes.
func (h Hash) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, h[:])
	return b
}

// SetBytes copies src into the hash, left-padding is not performed: src
// must be exactly Size bytes.
func (h *Hash) SetBytes(src []byte) {
	copy(h[:], src)
}

// NewFromBytes builds a Hash from a Size-byte slice.
func NewFromBytes(b []byte) (Hash, bool) {
	var h Hash
	if len(b) != Size {
		return h, false
	}
	copy(h[:], b)
	return h, true
}

// NewFromHex parses the reversed-byte hex form String produces, the form
// an operator pastes from a block explorer or a CLI argument.
func NewFromHex(s string) (Hash, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, corverrors.Wrap(corverrors.Codec, "decode hash hex", err)
	}
	if len(raw) != Size {
		return Hash{}, corverrors.New(corverrors.Codec, "wrong hash length")
	}
	var h Hash
	for i := 0; i < Size; i++ {
		h[Size-1-i] = raw[i]
	}
	return h, nil
}

// SHA256d computes SHA256(SHA256(data)), the double-hash used throughout
// the core for transaction and block identity.
func SHA256d(data []byte) Hash {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return Hash(second)
}
