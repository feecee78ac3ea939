// Package utxo implements the persisted unspent-output set and its
// atomic per-block apply/undo. It owns only the 'U' (UTXO) and 'X' (undo
// record) key ranges; package chain composes the ops this package builds
// with its own block-storage/height/tip ops into a single write batch per
// block.
package utxo

import (
	"bytes"
	"encoding/binary"
	"sort"

	"vulkan/block"
	"vulkan/chainhash"
	"vulkan/codec"
	"vulkan/corverrors"
	"vulkan/store"
	"vulkan/tx"
)

// Index is a read accessor over the persisted UTXO set. Mutation happens
// only through BuildApplyOps/BuildUndoOps, so that every mutation is part
// of the caller's single atomic write batch.
type Index struct {
	kv store.KV
}

// New wraps kv as a UTXO index.
func New(kv store.KV) *Index { return &Index{kv: kv} }

// Entry is an unspent output read back from the index.
type Entry struct {
	TxHash chainhash.Hash
	Index  uint32
	Output tx.Output
}

// Get looks up a single UTXO entry. A nil, nil result means the output
// does not exist (never created, or already spent).
func (idx *Index) Get(txHash chainhash.Hash, outIndex uint32) (*tx.Output, error) {
	raw, err := idx.kv.Get(store.UTXOKey(txHash, outIndex))
	if err != nil {
		return nil, corverrors.Wrap(corverrors.Storage, "get utxo", err)
	}
	if raw == nil {
		return nil, nil
	}
	out := decodeOutput(raw)
	return &out, nil
}

// OutputsForTx returns every currently unspent output of txHash, ordered
// by index, letting a caller inspect what a transaction still has live
// without knowing which indices survived being partially spent.
func (idx *Index) OutputsForTx(txHash chainhash.Hash) ([]Entry, error) {
	var entries []Entry
	err := idx.kv.Iterate(store.UTXOPrefixForTx(txHash), func(key, value []byte) error {
		if len(key) != 1+chainhash.Size+4 {
			return corverrors.New(corverrors.Codec, "malformed utxo key")
		}
		index := binary.LittleEndian.Uint32(key[1+chainhash.Size:])
		entries = append(entries, Entry{TxHash: txHash, Index: index, Output: decodeOutput(value)})
		return nil
	})
	if err != nil {
		return nil, corverrors.Wrap(corverrors.Storage, "scan utxo range for tx", err)
	}
	// Keys carry the index little-endian, so key order is not index order.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })
	return entries, nil
}

func encodeOutput(o tx.Output) []byte {
	var buf bytes.Buffer
	e := codec.NewEncoder(&buf)
	e.WriteU64(o.Amount)
	e.WriteFixed(o.Address[:])
	return buf.Bytes()
}

func decodeOutput(b []byte) tx.Output {
	d := codec.NewDecoder(bytes.NewReader(b))
	var out tx.Output
	out.Amount = d.ReadU64()
	copy(out.Address[:], d.ReadFixed(len(out.Address)))
	return out
}

// UndoEntry records one output removed by applying a block, so it can be
// restored verbatim if the block is later undone.
type UndoEntry struct {
	TxHash chainhash.Hash
	Index  uint32
	Output tx.Output
}

// EncodeUndoRecord serializes entries in order: count(u32) followed by
// (tx_hash(32) || index(u32) || amount(u64) || address(25)) per entry.
func EncodeUndoRecord(entries []UndoEntry) []byte {
	var buf bytes.Buffer
	e := codec.NewEncoder(&buf)
	e.WriteU32(uint32(len(entries)))
	for _, ent := range entries {
		e.WriteFixed(ent.TxHash[:])
		e.WriteU32(ent.Index)
		e.WriteU64(ent.Output.Amount)
		e.WriteFixed(ent.Output.Address[:])
	}
	return buf.Bytes()
}

// DecodeUndoRecord is the inverse of EncodeUndoRecord.
func DecodeUndoRecord(raw []byte) []UndoEntry {
	d := codec.NewDecoder(bytes.NewReader(raw))
	count := d.ReadCount()
	entries := make([]UndoEntry, 0, count)
	for i := uint32(0); i < count && d.Err() == nil; i++ {
		var ent UndoEntry
		copy(ent.TxHash[:], d.ReadFixed(chainhash.Size))
		ent.Index = d.ReadU32()
		ent.Output.Amount = d.ReadU64()
		copy(ent.Output.Address[:], d.ReadFixed(len(ent.Output.Address)))
		entries = append(entries, ent)
	}
	return entries
}

// BuildApplyOps computes the UTXO mutations for connecting b: delete every
// output consumed by a non-coinbase input, insert every output the block's
// transactions produce. It also returns the undo record needed to invert
// those mutations later. Reads happen against idx's current view, which
// under the single-writer chain model is never concurrently mutated
// between this call and the caller committing its batch.
func (idx *Index) BuildApplyOps(b *block.Block) (ops []store.Op, undo []UndoEntry, err error) {
	for _, t := range b.Transactions {
		if t.IsCoinbase() {
			continue
		}
		for _, in := range t.Inputs {
			out, gerr := idx.Get(in.PrevTxHash, in.PrevOutIndex)
			if gerr != nil {
				return nil, nil, gerr
			}
			if out == nil {
				return nil, nil, corverrors.New(corverrors.Context, "spent output not found in utxo set")
			}
			ops = append(ops, store.Delete(store.UTXOKey(in.PrevTxHash, in.PrevOutIndex)))
			undo = append(undo, UndoEntry{TxHash: in.PrevTxHash, Index: in.PrevOutIndex, Output: *out})
		}
	}
	for _, t := range b.Transactions {
		for i, out := range t.Outputs {
			ops = append(ops, store.Put(store.UTXOKey(t.ID, uint32(i)), encodeOutput(out)))
		}
	}
	ops = append(ops, store.Put(store.UndoKey(b.Hash), EncodeUndoRecord(undo)))
	return ops, undo, nil
}

// BuildUndoOps computes the UTXO mutations that invert a previously
// applied block b: remove every output it produced, restore every output
// it consumed (from the stored undo record), and remove the undo record
// itself.
func (idx *Index) BuildUndoOps(b *block.Block) ([]store.Op, error) {
	raw, err := idx.kv.Get(store.UndoKey(b.Hash))
	if err != nil {
		return nil, corverrors.Wrap(corverrors.Storage, "get undo record", err)
	}
	if raw == nil {
		return nil, corverrors.New(corverrors.Storage, "missing undo record")
	}
	entries := DecodeUndoRecord(raw)

	var ops []store.Op
	for _, t := range b.Transactions {
		for i := range t.Outputs {
			ops = append(ops, store.Delete(store.UTXOKey(t.ID, uint32(i))))
		}
	}
	for _, ent := range entries {
		ops = append(ops, store.Put(store.UTXOKey(ent.TxHash, ent.Index), encodeOutput(ent.Output)))
	}
	ops = append(ops, store.Delete(store.UndoKey(b.Hash)))
	return ops, nil
}
