// Package genesis holds the compiled-in genesis block: the chain cannot
// start without it. Its hash and nonce are literal constants, precomputed
// offline once and then frozen, never recomputed at startup.
package genesis

import (
	"vulkan/block"
	"vulkan/chainhash"
	"vulkan/crypto"
	"vulkan/params"
	"vulkan/tx"
)

// genesisAddress is the fixed payout address of the genesis coinbase. It
// does not correspond to any wallet's signing key: genesis coin is not
// intended to ever move.
var genesisAddress = crypto.Address{
	0x00, 0x99, 0x2c, 0x59, 0x92, 0x8f, 0x46, 0xf0, 0xd3, 0xb6,
	0x4b, 0x00, 0xf2, 0x9d, 0x8d, 0x62, 0x1d, 0x10, 0x53, 0x46,
	0x8a, 0xb0, 0xb6, 0x20, 0x71,
}

var genesisTxID = chainhash.Hash{
	0xb1, 0x46, 0x07, 0x03, 0x04, 0x22, 0x18, 0xa1, 0x71, 0x24,
	0x55, 0x21, 0xd6, 0x90, 0x09, 0x68, 0xd3, 0x2c, 0xc7, 0x4e,
	0x18, 0xad, 0x68, 0x9b, 0x67, 0x6f, 0x2f, 0x15, 0xab, 0x98,
	0x7f, 0x32,
}

var genesisBlockHash = chainhash.Hash{
	0x22, 0x77, 0xd3, 0x85, 0xd7, 0x86, 0x91, 0x57, 0xc8, 0xad,
	0xc0, 0x5b, 0x7a, 0xb9, 0xaf, 0xc4, 0xee, 0x8a, 0x4f, 0x29,
	0xc3, 0x7f, 0x1f, 0xcf, 0xfd, 0xb9, 0x3f, 0x51, 0xcc, 0x3b,
	0x00, 0x00,
}

const (
	genesisTimestamp = 1577836800 // 2020-01-01T00:00:00Z
	genesisBits      = 0x1f00ffff
	genesisNonce     = 18511
	genesisAmount    = params.BaseEmission
)

// Block returns the genesis block: a single coinbase transaction paying
// genesisAmount to genesisAddress, whose previous_hash is the all-zero
// hash.
func Block() *block.Block {
	coinbase := &tx.Transaction{
		Inputs: []tx.InputRef{{
			PrevTxHash:   chainhash.Zero,
			PrevOutIndex: 0xffffffff,
		}},
		Outputs: []tx.Output{{
			Amount:  genesisAmount,
			Address: genesisAddress,
		}},
	}
	coinbase.ID = genesisTxID

	b := &block.Block{
		Header: block.Header{
			Version:            params.BlockVersion,
			Timestamp:          genesisTimestamp,
			Nonce:              genesisNonce,
			Bits:               genesisBits,
			CumulativeEmission: genesisAmount,
			PreviousHash:       chainhash.Zero,
			MerkleRoot:         genesisTxID,
		},
		Hash:         genesisBlockHash,
		Transactions: []*tx.Transaction{coinbase},
	}
	return b
}

// Hash returns the genesis block's hash without building the full block.
func Hash() chainhash.Hash { return genesisBlockHash }
