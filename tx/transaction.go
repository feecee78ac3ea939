// Package tx implements the transaction data model and its context-free
// validation. Context-sensitive checks — UTXO presence, value
// conservation, coinbase amount — live in package chain, which is the
// only component holding a blockchain view.
package tx

import (
	"bytes"

	"vulkan/chainhash"
	"vulkan/codec"
	"vulkan/corverrors"
	"vulkan/crypto"
)

// InputRef identifies a consumed output and carries the proof that the
// spender is entitled to consume it.
type InputRef struct {
	PrevTxHash   chainhash.Hash
	PrevOutIndex uint32
	Signature    [crypto.SignatureSize]byte
	PublicKey    [crypto.PublicKeySize]byte
}

// Output is a payment of Amount (atomic units) to Address.
type Output struct {
	Amount  uint64
	Address crypto.Address
}

// Transaction is an ordered set of inputs and outputs plus the id that
// must equal SHA256d(signing header).
type Transaction struct {
	ID      chainhash.Hash
	Inputs  []InputRef
	Outputs []Output
}

// IsCoinbase reports whether tx is a coinbase: exactly one input whose
// PrevTxHash is the all-zero hash. Coinbase inputs skip signature checks.
func (t *Transaction) IsCoinbase() bool {
	return len(t.Inputs) == 1 && t.Inputs[0].PrevTxHash.IsZero()
}

// SigningHeader returns the bytes every non-coinbase input's signature
// covers: each input's (prev_tx_hash || prev_txout_index) followed by each
// output's (amount || address). Signatures and public keys are excluded —
// including them would make a signature cover itself.
func (t *Transaction) SigningHeader() []byte {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf)
	for _, in := range t.Inputs {
		enc.WriteFixed(in.PrevTxHash[:])
		enc.WriteU32(in.PrevOutIndex)
	}
	for _, out := range t.Outputs {
		enc.WriteU64(out.Amount)
		enc.WriteFixed(out.Address[:])
	}
	return buf.Bytes()
}

// ComputeID returns SHA256d(SigningHeader(t)), the canonical transaction id.
func (t *Transaction) ComputeID() chainhash.Hash {
	return chainhash.SHA256d(t.SigningHeader())
}

// Encode writes the full wire representation: id, inputs (with signature
// and public key), outputs.
func (t *Transaction) Encode(e *codec.Encoder) {
	e.WriteFixed(t.ID[:])
	e.WriteU32(uint32(len(t.Inputs)))
	for _, in := range t.Inputs {
		e.WriteFixed(in.PrevTxHash[:])
		e.WriteU32(in.PrevOutIndex)
		e.WriteFixed(in.Signature[:])
		e.WriteFixed(in.PublicKey[:])
	}
	e.WriteU32(uint32(len(t.Outputs)))
	for _, out := range t.Outputs {
		e.WriteU64(out.Amount)
		e.WriteFixed(out.Address[:])
	}
}

// DecodeBytes decodes a single transaction from raw, the wire
// representation produced by Encode/Bytes, and fails closed on trailing
// bytes: a caller that asks for one transaction must get exactly one,
// never a transaction plus whatever followed it.
func DecodeBytes(raw []byte) (*Transaction, error) {
	r := bytes.NewReader(raw)
	d := codec.NewDecoder(r)
	t := Decode(d)
	if d.Err() != nil {
		return nil, d.Err()
	}
	if r.Len() != 0 {
		return nil, corverrors.New(corverrors.Codec, "trailing bytes after transaction")
	}
	return t, nil
}

// Bytes returns the full wire representation of t.
func (t *Transaction) Bytes() []byte {
	var buf bytes.Buffer
	e := codec.NewEncoder(&buf)
	t.Encode(e)
	return buf.Bytes()
}

// Decode reads the full wire representation produced by Encode.
func Decode(d *codec.Decoder) *Transaction {
	t := &Transaction{}
	copy(t.ID[:], d.ReadFixed(chainhash.Size))

	inCount := d.ReadCount()
	t.Inputs = make([]InputRef, 0, inCount)
	for i := uint32(0); i < inCount && d.Err() == nil; i++ {
		var in InputRef
		copy(in.PrevTxHash[:], d.ReadFixed(chainhash.Size))
		in.PrevOutIndex = d.ReadU32()
		copy(in.Signature[:], d.ReadFixed(crypto.SignatureSize))
		copy(in.PublicKey[:], d.ReadFixed(crypto.PublicKeySize))
		t.Inputs = append(t.Inputs, in)
	}

	outCount := d.ReadCount()
	t.Outputs = make([]Output, 0, outCount)
	for i := uint32(0); i < outCount && d.Err() == nil; i++ {
		var out Output
		out.Amount = d.ReadU64()
		copy(out.Address[:], d.ReadFixed(len(out.Address)))
		t.Outputs = append(t.Outputs, out)
	}
	return t
}

// Validate runs the context-free checks: shape, self-consistency, id
// derivation, and signatures. It never consults a blockchain view.
func Validate(t *Transaction) *corverrors.Error {
	if len(t.Inputs) == 0 {
		return corverrors.New(corverrors.InvalidTransaction, "no inputs")
	}
	if len(t.Outputs) == 0 {
		return corverrors.New(corverrors.InvalidTransaction, "no outputs")
	}

	coinbase := t.IsCoinbase()

	if !coinbase {
		for _, out := range t.Outputs {
			if out.Amount == 0 {
				return corverrors.New(corverrors.InvalidTransaction, "zero amount output")
			}
		}
	}

	seen := make(map[[36]byte]struct{}, len(t.Inputs))
	for _, in := range t.Inputs {
		var key [36]byte
		copy(key[:32], in.PrevTxHash[:])
		key[32] = byte(in.PrevOutIndex)
		key[33] = byte(in.PrevOutIndex >> 8)
		key[34] = byte(in.PrevOutIndex >> 16)
		key[35] = byte(in.PrevOutIndex >> 24)
		if _, dup := seen[key]; dup {
			return corverrors.New(corverrors.InvalidTransaction, "duplicate input")
		}
		seen[key] = struct{}{}
	}

	if t.ComputeID() != t.ID {
		return corverrors.New(corverrors.InvalidTransaction, "id mismatch")
	}

	if !coinbase {
		header := t.SigningHeader()
		for _, in := range t.Inputs {
			if in.PrevTxHash.IsZero() {
				return corverrors.New(corverrors.InvalidTransaction, "zero prev hash in non-coinbase input")
			}
			if !crypto.Verify(in.PublicKey, header, in.Signature) {
				return corverrors.New(corverrors.InvalidTransaction, "signature verification failed")
			}
		}
	}

	return nil
}
