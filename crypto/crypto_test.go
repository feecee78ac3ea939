package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	kp := GenerateKeyPair()
	pub, err := kp.PublicKey()
	require.NoError(t, err)

	msg := []byte("signing header bytes")
	sig, err := kp.Sign(msg)
	require.NoError(t, err)

	require.True(t, Verify(pub, msg, sig))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	kp := GenerateKeyPair()
	pub, err := kp.PublicKey()
	require.NoError(t, err)

	sig, err := kp.Sign([]byte("original"))
	require.NoError(t, err)

	require.False(t, Verify(pub, []byte("tampered"), sig))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	signer := GenerateKeyPair()
	other := GenerateKeyPair()
	otherPub, err := other.PublicKey()
	require.NoError(t, err)

	msg := []byte("whose key is this")
	sig, err := signer.Sign(msg)
	require.NoError(t, err)

	require.False(t, Verify(otherPub, msg, sig))
}

func TestVerifyNeverPanicsOnGarbageInput(t *testing.T) {
	var pub [PublicKeySize]byte
	var sig [SignatureSize]byte
	for i := range pub {
		pub[i] = 0xff
	}
	require.False(t, Verify(pub, []byte("anything"), sig))
}

func TestAddressRoundTrip(t *testing.T) {
	kp := GenerateKeyPair()
	pub, err := kp.PublicKey()
	require.NoError(t, err)

	addr := DeriveAddress(AddressVersionMainnet, pub)
	require.True(t, addr.Valid())

	parsed, err := ParseAddress(addr.String())
	require.NoError(t, err)
	require.Equal(t, addr, parsed)
}

func TestParseAddressRejectsBadChecksum(t *testing.T) {
	kp := GenerateKeyPair()
	pub, err := kp.PublicKey()
	require.NoError(t, err)
	addr := DeriveAddress(AddressVersionMainnet, pub)
	addr[24] ^= 0xff

	_, err = ParseAddress(addr.String())
	require.Error(t, err)
}

func TestDeriveAddressIsDeterministic(t *testing.T) {
	kp := GenerateKeyPair()
	pub, err := kp.PublicKey()
	require.NoError(t, err)

	a := DeriveAddress(AddressVersionMainnet, pub)
	b := DeriveAddress(AddressVersionMainnet, pub)
	require.Equal(t, a, b)
}
