// Key layout for the store's prefixed key ranges.
package store

import (
	"encoding/binary"

	"vulkan/chainhash"
)

const (
	prefixUTXO        = 'U'
	prefixBlock       = 'B'
	prefixHeight      = 'H'
	prefixTip         = 'T'
	prefixUndo        = 'X'
	prefixMempoolTx   = 'M'
	prefixInvalidMark = 'I'
	prefixBlockMeta   = 'N'
)

// UTXOKey builds the key for output index of transaction txHash:
// 'U' || tx_hash(32) || index(u32 LE).
func UTXOKey(txHash chainhash.Hash, index uint32) []byte {
	key := make([]byte, 1+chainhash.Size+4)
	key[0] = prefixUTXO
	copy(key[1:], txHash[:])
	binary.LittleEndian.PutUint32(key[1+chainhash.Size:], index)
	return key
}

// UTXOPrefixForTx returns the prefix covering every output of txHash, used
// to range-scan a transaction's outputs.
func UTXOPrefixForTx(txHash chainhash.Hash) []byte {
	key := make([]byte, 1+chainhash.Size)
	key[0] = prefixUTXO
	copy(key[1:], txHash[:])
	return key
}

// BlockKey builds the key for a stored block: 'B' || block_hash(32).
func BlockKey(hash chainhash.Hash) []byte {
	key := make([]byte, 1+chainhash.Size)
	key[0] = prefixBlock
	copy(key[1:], hash[:])
	return key
}

// HeightKey builds the key for the height index: 'H' || height(u32 LE).
func HeightKey(height uint32) []byte {
	key := make([]byte, 5)
	key[0] = prefixHeight
	binary.LittleEndian.PutUint32(key[1:], height)
	return key
}

// TipKey is the single key holding the current tip's block hash: 'T'.
func TipKey() []byte { return []byte{prefixTip} }

// UndoKey builds the key for a block's undo record: 'X' || block_hash(32).
func UndoKey(hash chainhash.Hash) []byte {
	key := make([]byte, 1+chainhash.Size)
	key[0] = prefixUndo
	copy(key[1:], hash[:])
	return key
}

// MempoolTxKey builds the key for a mempool-shadow transaction: 'M' || tx_hash(32).
func MempoolTxKey(hash chainhash.Hash) []byte {
	key := make([]byte, 1+chainhash.Size)
	key[0] = prefixMempoolTx
	copy(key[1:], hash[:])
	return key
}

// MempoolPrefix returns the prefix covering every mirrored mempool
// transaction, used to range-scan the whole mirror on persist and restore.
func MempoolPrefix() []byte { return []byte{prefixMempoolTx} }

// InvalidMarkKey builds the key marking a block hash as permanently
// invalid, so future descendants are rejected without re-validating.
func InvalidMarkKey(hash chainhash.Hash) []byte {
	key := make([]byte, 1+chainhash.Size)
	key[0] = prefixInvalidMark
	copy(key[1:], hash[:])
	return key
}

// BlockMetaKey builds the key for a stored block's bookkeeping metadata
// (height and cumulative work), used by the chain manager to compare fork
// branches without re-walking each one back to genesis on every submit.
// This is implementation bookkeeping, not part of the canonical chain
// state; it is derivable from the 'B' chain alone.
func BlockMetaKey(hash chainhash.Hash) []byte {
	key := make([]byte, 1+chainhash.Size)
	key[0] = prefixBlockMeta
	copy(key[1:], hash[:])
	return key
}
