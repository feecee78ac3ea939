package chainhash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSHA256dMatchesDoubleHash(t *testing.T) {
	h1 := SHA256d([]byte("vulkan"))
	h2 := SHA256d([]byte("vulkan"))
	require.Equal(t, h1, h2)
	require.NotEqual(t, Zero, h1)
}

func TestSHA256dDiffersOnDifferentInput(t *testing.T) {
	require.NotEqual(t, SHA256d([]byte("a")), SHA256d([]byte("b")))
}

func TestIsZero(t *testing.T) {
	require.True(t, Zero.IsZero())
	require.False(t, SHA256d([]byte("x")).IsZero())
}

func TestBytesAndSetBytesRoundTrip(t *testing.T) {
	h := SHA256d([]byte("round trip"))
	var other Hash
	other.SetBytes(h.Bytes())
	require.Equal(t, h, other)
}

func TestNewFromBytesRejectsWrongLength(t *testing.T) {
	_, ok := NewFromBytes([]byte{1, 2, 3})
	require.False(t, ok)

	h, ok := NewFromBytes(make([]byte, Size))
	require.True(t, ok)
	require.Equal(t, Zero, h)
}

func TestStringIsBigEndianHex(t *testing.T) {
	var h Hash
	h[Size-1] = 0xab
	require.Equal(t, "ab", h.String()[:2])
}

func TestNewFromHexRoundTripsWithString(t *testing.T) {
	h := SHA256d([]byte("round trip hex"))
	parsed, err := NewFromHex(h.String())
	require.NoError(t, err)
	require.Equal(t, h, parsed)
}

func TestNewFromHexRejectsBadInput(t *testing.T) {
	_, err := NewFromHex("not hex")
	require.Error(t, err)

	_, err = NewFromHex("ab")
	require.Error(t, err)
}
