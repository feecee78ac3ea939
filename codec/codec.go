// Package codec implements the deterministic binary encoding the core's
// blocks and transactions use: little-endian fixed-width integers, verbatim
// fixed-length byte strings, and u32-length-prefixed variable fields. The
// same layout backs both wire transport and hashing, so there is exactly
// one way to encode any logical value — encoders never choose between
// equivalent representations.
//
// The style is a small io.Writer/io.Reader-based primitive set rather than
// reflection-based marshaling, built as a reusable encoder/decoder pair
// instead of one binary.Write call per field.
package codec

import (
	"encoding/binary"
	"io"

	"vulkan/corverrors"
)

// Encoder writes primitives in the canonical little-endian layout.
type Encoder struct {
	w   io.Writer
	err error
}

// NewEncoder wraps w.
func NewEncoder(w io.Writer) *Encoder { return &Encoder{w: w} }

// Err returns the first error encountered by any Write call, if any.
func (e *Encoder) Err() error { return e.err }

func (e *Encoder) write(b []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(b)
}

// WriteU8 writes a single byte.
func (e *Encoder) WriteU8(v uint8) { e.write([]byte{v}) }

// WriteU32 writes a little-endian uint32.
func (e *Encoder) WriteU32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	e.write(buf[:])
}

// WriteU64 writes a little-endian uint64.
func (e *Encoder) WriteU64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	e.write(buf[:])
}

// WriteFixed writes b verbatim. b's length is not recorded: the caller and
// the decoder must agree on it out of band (used for hashes, keys,
// signatures, and addresses, all of which are fixed-size by spec).
func (e *Encoder) WriteFixed(b []byte) { e.write(b) }

// WriteBytes writes a u32 length prefix followed by b.
func (e *Encoder) WriteBytes(b []byte) {
	e.WriteU32(uint32(len(b)))
	e.write(b)
}

// Decoder reads primitives in the canonical little-endian layout and fails
// closed: any premature EOF or count that would overrun a sane bound is a
// corverrors.Codec error, never a panic.
type Decoder struct {
	r   io.Reader
	err error
}

// NewDecoder wraps r.
func NewDecoder(r io.Reader) *Decoder { return &Decoder{r: r} }

// Err returns the first error encountered by any Read call, if any.
func (d *Decoder) Err() error { return d.err }

func (d *Decoder) read(b []byte) {
	if d.err != nil {
		return
	}
	if _, err := io.ReadFull(d.r, b); err != nil {
		d.err = corverrors.Wrap(corverrors.Codec, "premature eof", err)
	}
}

// ReadU8 reads a single byte.
func (d *Decoder) ReadU8() uint8 {
	var buf [1]byte
	d.read(buf[:])
	return buf[0]
}

// ReadU32 reads a little-endian uint32.
func (d *Decoder) ReadU32() uint32 {
	var buf [4]byte
	d.read(buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

// ReadU64 reads a little-endian uint64.
func (d *Decoder) ReadU64() uint64 {
	var buf [8]byte
	d.read(buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}

// ReadFixed reads exactly n bytes verbatim.
func (d *Decoder) ReadFixed(n int) []byte {
	buf := make([]byte, n)
	d.read(buf)
	return buf
}

// maxVarBytes bounds a single length-prefixed field so a hostile length
// word cannot trigger an unbounded allocation.
const maxVarBytes = 64 << 20

// ReadBytes reads a u32 length prefix followed by that many bytes.
func (d *Decoder) ReadBytes() []byte {
	n := d.ReadU32()
	if d.err != nil {
		return nil
	}
	if n > maxVarBytes {
		d.err = corverrors.New(corverrors.Codec, "length prefix too large")
		return nil
	}
	return d.ReadFixed(int(n))
}

// ReadCount reads a u32 array count, bounded the same way as ReadBytes so a
// hostile count cannot be used to pre-size an unbounded slice.
func (d *Decoder) ReadCount() uint32 {
	n := d.ReadU32()
	if d.err != nil {
		return 0
	}
	if n > maxVarBytes {
		d.err = corverrors.New(corverrors.Codec, "count overflow")
		return 0
	}
	return n
}
