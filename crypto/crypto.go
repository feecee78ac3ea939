// Package crypto implements the signing and addressing primitives the core
// depends on: Ed25519 over go.dedis.ch/kyber/v3's edwards25519 group, and
// base58-style address derivation using golang.org/x/crypto/ripemd160 for
// the hash160 step and github.com/btcsuite/btcd/btcutil/base58 for display.
package crypto

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcutil/base58"
	"go.dedis.ch/kyber/v3/group/edwards25519"
	"go.dedis.ch/kyber/v3/sign/eddsa"
	"go.dedis.ch/kyber/v3/util/key"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/xerrors"

	"vulkan/params"
)

// PublicKeySize and SignatureSize match the wire sizes an InputRef carries
// exactly: kyber's edwards25519 points marshal to 32 bytes and eddsa
// signatures are a standard 64-byte R||S pair.
const (
	PublicKeySize = 32
	SignatureSize = 64
)

// suite is the single group every key and signature in the core is defined
// over. It must never vary: two nodes disagreeing on the suite could not
// verify each other's signatures.
var suite = edwards25519.NewBlakeSHA256Ed25519()

// KeyPair is a signing identity: a secret scalar and the public point
// derived from it.
type KeyPair struct {
	ed *eddsa.EdDSA
}

// GenerateKeyPair draws a fresh key pair from the suite's random source.
func GenerateKeyPair() *KeyPair {
	pair := key.NewKeyPair(suite)
	return &KeyPair{ed: &eddsa.EdDSA{Secret: pair.Private, Public: pair.Public}}
}

// PublicKey returns the 32-byte marshaled public key.
func (k *KeyPair) PublicKey() ([PublicKeySize]byte, error) {
	var out [PublicKeySize]byte
	b, err := k.ed.Public.MarshalBinary()
	if err != nil {
		return out, xerrors.Errorf("marshal public key: %w", err)
	}
	if len(b) != PublicKeySize {
		return out, xerrors.Errorf("unexpected public key length %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// Sign signs msg (the transaction's signing header, see
// tx.Transaction.SigningHeader) and
// returns the 64-byte signature.
func (k *KeyPair) Sign(msg []byte) ([SignatureSize]byte, error) {
	var out [SignatureSize]byte
	sig, err := k.ed.Sign(msg)
	if err != nil {
		return out, xerrors.Errorf("sign: %w", err)
	}
	if len(sig) != SignatureSize {
		return out, xerrors.Errorf("unexpected signature length %d", len(sig))
	}
	copy(out[:], sig)
	return out, nil
}

// Verify checks sig over msg against the 32-byte public key. It never
// panics on attacker-controlled bytes: a malformed public key or signature
// is reported as a verification failure, not an error class of its own.
func Verify(pubKey [PublicKeySize]byte, msg []byte, sig [SignatureSize]byte) bool {
	point := suite.Point()
	if err := point.UnmarshalBinary(pubKey[:]); err != nil {
		return false
	}
	if err := eddsa.Verify(point, msg, sig[:]); err != nil {
		return false
	}
	return true
}

// Address versions. Mainnet is the only network this core speaks for; a
// second byte is reserved so the wire format never has to change shape to
// add one.
const (
	AddressVersionMainnet byte = 0x00
)

// Address is the 25-byte versioned, checksummed payload:
// version(1) || RIPEMD160(SHA256(pubkey))(20) || checksum(4).
type Address [params.AddressSize]byte

// DeriveAddress computes the address owning pubKey.
func DeriveAddress(version byte, pubKey [PublicKeySize]byte) Address {
	var addr Address
	addr[0] = version
	payload := hash160(pubKey[:])
	copy(addr[1:21], payload[:])
	checksum := doubleSHA256(addr[:21])
	copy(addr[21:25], checksum[:4])
	return addr
}

// Valid recomputes the checksum and compares it against the stored one.
func (a Address) Valid() bool {
	checksum := doubleSHA256(a[:21])
	return string(checksum[:4]) == string(a[21:25])
}

// String renders the address in base58, matching the display convention of
// the coins this core's ancestry is drawn from.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// ParseAddress decodes a base58 address string and checks its checksum.
func ParseAddress(s string) (Address, error) {
	var addr Address
	decoded := base58.Decode(s)
	if len(decoded) != params.AddressSize {
		return addr, xerrors.Errorf("address %q: wrong decoded length %d", s, len(decoded))
	}
	copy(addr[:], decoded)
	if !addr.Valid() {
		return addr, xerrors.Errorf("address %q: bad checksum", s)
	}
	return addr, nil
}

func hash160(data []byte) [ripemd160.Size]byte {
	shaSum := sha256.Sum256(data)
	h := ripemd160.New()
	h.Write(shaSum[:])
	var out [ripemd160.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

func doubleSHA256(data []byte) [sha256.Size]byte {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}
