package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"vulkan/corverrors"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	e.WriteU8(7)
	e.WriteU32(1234567)
	e.WriteU64(9999999999)
	e.WriteFixed([]byte{1, 2, 3, 4})
	e.WriteBytes([]byte("variable length payload"))
	require.NoError(t, e.Err())

	d := NewDecoder(&buf)
	require.Equal(t, uint8(7), d.ReadU8())
	require.Equal(t, uint32(1234567), d.ReadU32())
	require.Equal(t, uint64(9999999999), d.ReadU64())
	require.Equal(t, []byte{1, 2, 3, 4}, d.ReadFixed(4))
	require.Equal(t, []byte("variable length payload"), d.ReadBytes())
	require.NoError(t, d.Err())
}

func TestDecodePrematureEOF(t *testing.T) {
	d := NewDecoder(bytes.NewReader([]byte{1, 2}))
	_ = d.ReadU32()
	require.Error(t, d.Err())
	require.True(t, corverrors.Is(d.Err(), corverrors.Codec))
}

func TestDecodeRejectsOversizedLengthPrefix(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	e.WriteU32(maxVarBytes + 1)

	d := NewDecoder(&buf)
	got := d.ReadBytes()
	require.Nil(t, got)
	require.Error(t, d.Err())
	require.True(t, corverrors.Is(d.Err(), corverrors.Codec))
}

func TestDecodeStopsAfterFirstError(t *testing.T) {
	d := NewDecoder(bytes.NewReader(nil))
	_ = d.ReadU32()
	require.Error(t, d.Err())
	// Further reads must not panic and must leave err untouched.
	firstErr := d.Err()
	_ = d.ReadU64()
	require.Equal(t, firstErr, d.Err())
}

func TestReadCountBound(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	e.WriteU32(maxVarBytes + 1)

	d := NewDecoder(&buf)
	require.Equal(t, uint32(0), d.ReadCount())
	require.Error(t, d.Err())
}
