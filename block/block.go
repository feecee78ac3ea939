// Package block implements the block data model and its context-free
// validation. Context-sensitive checks — parent linkage, retarget
// agreement, coinbase amount — live in package chain.
package block

import (
	"bytes"
	"time"

	"vulkan/chainhash"
	"vulkan/codec"
	"vulkan/corverrors"
	"vulkan/merkle"
	"vulkan/params"
	"vulkan/pow"
	"vulkan/tx"
)

// Header is the block header exactly as hashed, in field order:
// version || timestamp || nonce || bits || cumulative_emission ||
// previous_hash(32) || merkle_root(32).
type Header struct {
	Version            uint32
	Timestamp          uint32
	Nonce              uint32
	Bits               uint32
	CumulativeEmission uint64
	PreviousHash       chainhash.Hash
	MerkleRoot         chainhash.Hash
}

// Block is a header plus its cached hash and ordered transactions.
type Block struct {
	Header
	Hash         chainhash.Hash
	Transactions []*tx.Transaction
}

// EncodeHeader writes the bytes that are hashed to produce Hash.
func (h *Header) EncodeHeader(e *codec.Encoder) {
	e.WriteU32(h.Version)
	e.WriteU32(h.Timestamp)
	e.WriteU32(h.Nonce)
	e.WriteU32(h.Bits)
	e.WriteU64(h.CumulativeEmission)
	e.WriteFixed(h.PreviousHash[:])
	e.WriteFixed(h.MerkleRoot[:])
}

// HeaderBytes returns the canonical serialized header.
func (h *Header) HeaderBytes() []byte {
	var buf bytes.Buffer
	e := codec.NewEncoder(&buf)
	h.EncodeHeader(e)
	return buf.Bytes()
}

// ComputeHash returns SHA256d(HeaderBytes()).
func (h *Header) ComputeHash() chainhash.Hash {
	return chainhash.SHA256d(h.HeaderBytes())
}

// DecodeHeader reads a Header in the order EncodeHeader wrote it.
func DecodeHeader(d *codec.Decoder) Header {
	var h Header
	h.Version = d.ReadU32()
	h.Timestamp = d.ReadU32()
	h.Nonce = d.ReadU32()
	h.Bits = d.ReadU32()
	h.CumulativeEmission = d.ReadU64()
	copy(h.PreviousHash[:], d.ReadFixed(chainhash.Size))
	copy(h.MerkleRoot[:], d.ReadFixed(chainhash.Size))
	return h
}

// Encode writes the full wire representation: header, hash,
// transaction_count, then the transactions in order.
func (b *Block) Encode(e *codec.Encoder) {
	b.Header.EncodeHeader(e)
	e.WriteFixed(b.Hash[:])
	e.WriteU32(uint32(len(b.Transactions)))
	for _, t := range b.Transactions {
		t.Encode(e)
	}
}

// Bytes returns the full wire representation of b.
func (b *Block) Bytes() []byte {
	var buf bytes.Buffer
	e := codec.NewEncoder(&buf)
	b.Encode(e)
	return buf.Bytes()
}

// DecodeBytes decodes a single block from raw and fails closed on
// trailing bytes, the same contract tx.DecodeBytes gives transactions.
func DecodeBytes(raw []byte) (*Block, error) {
	r := bytes.NewReader(raw)
	d := codec.NewDecoder(r)
	b := Decode(d)
	if d.Err() != nil {
		return nil, d.Err()
	}
	if r.Len() != 0 {
		return nil, corverrors.New(corverrors.Codec, "trailing bytes after block")
	}
	return b, nil
}

// Decode reads the full wire representation produced by Encode.
func Decode(d *codec.Decoder) *Block {
	b := &Block{Header: DecodeHeader(d)}
	copy(b.Hash[:], d.ReadFixed(chainhash.Size))
	count := d.ReadCount()
	b.Transactions = make([]*tx.Transaction, 0, count)
	for i := uint32(0); i < count && d.Err() == nil; i++ {
		b.Transactions = append(b.Transactions, tx.Decode(d))
	}
	return b
}

// now is a var so tests can pin "the present" without sleeping.
var now = func() time.Time { return time.Now() }

// Validate runs the context-free checks, cheapest first, stopping at the
// first failure.
func Validate(b *Block) *corverrors.Error {
	maxFuture := now().Add(params.MaxFutureBlockTime * time.Second).Unix()
	if int64(b.Timestamp) > maxFuture {
		return corverrors.New(corverrors.InvalidBlock, "timestamp too far in future")
	}

	if len(b.Transactions) == 0 {
		return corverrors.New(corverrors.InvalidBlock, "no transactions")
	}

	if !b.Transactions[0].IsCoinbase() {
		return corverrors.New(corverrors.InvalidBlock, "first transaction not coinbase")
	}
	for _, t := range b.Transactions[1:] {
		if t.IsCoinbase() {
			return corverrors.New(corverrors.InvalidBlock, "extra coinbase transaction")
		}
	}

	if err := checkNoIntraBlockDoubleSpend(b.Transactions); err != nil {
		return err
	}

	for _, t := range b.Transactions {
		if verr := tx.Validate(t); verr != nil {
			return corverrors.Wrap(corverrors.InvalidBlock, "transaction invalid", verr)
		}
	}

	if len(b.Bytes()) > params.MaxBlockSize {
		return corverrors.New(corverrors.InvalidBlock, "block too large")
	}

	computedHash := b.Header.ComputeHash()
	if computedHash != b.Hash {
		return corverrors.New(corverrors.InvalidBlock, "hash mismatch")
	}
	if !pow.CheckProofOfWork(b.Hash, b.Bits) {
		return corverrors.New(corverrors.InvalidBlock, "pow_fail")
	}

	ids := make([]chainhash.Hash, len(b.Transactions))
	for i, t := range b.Transactions {
		ids[i] = t.ID
	}
	if merkle.Root(ids) != b.MerkleRoot {
		return corverrors.New(corverrors.InvalidBlock, "merkle_mismatch")
	}

	return nil
}

func checkNoIntraBlockDoubleSpend(txs []*tx.Transaction) *corverrors.Error {
	seenIDs := make(map[chainhash.Hash]struct{}, len(txs))
	type outpoint struct {
		hash chainhash.Hash
		idx  uint32
	}
	seenOutpoints := make(map[outpoint]struct{})
	for _, t := range txs {
		if _, dup := seenIDs[t.ID]; dup {
			return corverrors.New(corverrors.InvalidBlock, "duplicate transaction id")
		}
		seenIDs[t.ID] = struct{}{}
		for _, in := range t.Inputs {
			op := outpoint{hash: in.PrevTxHash, idx: in.PrevOutIndex}
			if _, dup := seenOutpoints[op]; dup {
				return corverrors.New(corverrors.InvalidBlock, "intra-block double spend")
			}
			seenOutpoints[op] = struct{}{}
		}
	}
	return nil
}
