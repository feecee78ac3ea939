package chain

import (
	"bytes"
	"math/big"

	"vulkan/chainhash"
	"vulkan/codec"
	"vulkan/corverrors"
	"vulkan/store"
)

// blockMeta is bookkeeping kept per stored block (connected or merely
// known, e.g. an alt-fork candidate): its height above genesis and the
// chain's cumulative work up to and including it. Keeping this beside the
// block avoids re-walking a branch back to genesis on every comparison of
// two competing chains' cumulative work.
type blockMeta struct {
	Height uint32
	Work   *big.Int
}

func encodeMeta(m blockMeta) []byte {
	var buf bytes.Buffer
	e := codec.NewEncoder(&buf)
	e.WriteU32(m.Height)
	e.WriteBytes(m.Work.Bytes())
	return buf.Bytes()
}

func decodeMeta(raw []byte) blockMeta {
	d := codec.NewDecoder(bytes.NewReader(raw))
	height := d.ReadU32()
	workBytes := d.ReadBytes()
	return blockMeta{Height: height, Work: new(big.Int).SetBytes(workBytes)}
}

func (m *Manager) getMeta(hash chainhash.Hash) (*blockMeta, error) {
	raw, err := m.kv.Get(store.BlockMetaKey(hash))
	if err != nil {
		return nil, corverrors.Wrap(corverrors.Storage, "get block meta", err)
	}
	if raw == nil {
		return nil, nil
	}
	meta := decodeMeta(raw)
	return &meta, nil
}

func putMetaOp(hash chainhash.Hash, meta blockMeta) store.Op {
	return store.Put(store.BlockMetaKey(hash), encodeMeta(meta))
}
