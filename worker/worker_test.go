package worker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vulkan/block"
	"vulkan/chain"
	"vulkan/chainhash"
	"vulkan/crypto"
	"vulkan/genesis"
	"vulkan/mempool"
	"vulkan/merkle"
	"vulkan/params"
	"vulkan/pow"
	"vulkan/store"
	"vulkan/tx"
)

func mineChild(t *testing.T, prev *block.Block) *block.Block {
	kp := crypto.GenerateKeyPair()
	pub, err := kp.PublicKey()
	require.NoError(t, err)
	addr := crypto.DeriveAddress(crypto.AddressVersionMainnet, pub)

	coinbase := &tx.Transaction{
		Inputs:  []tx.InputRef{{PrevTxHash: chainhash.Zero, PrevOutIndex: 0xffffffff}},
		Outputs: []tx.Output{{Amount: params.BaseEmission, Address: addr}},
	}
	coinbase.ID = coinbase.ComputeID()

	h := block.Header{
		Version:            params.BlockVersion,
		Timestamp:          uint32(time.Now().Unix()),
		PreviousHash:       prev.Hash,
		MerkleRoot:         merkle.Root([]chainhash.Hash{coinbase.ID}),
		Bits:               prev.Bits,
		CumulativeEmission: prev.CumulativeEmission + params.BaseEmission,
	}
	for nonce := uint32(0); ; nonce++ {
		h.Nonce = nonce
		hash := h.ComputeHash()
		if pow.CheckProofOfWork(hash, h.Bits) {
			b := &block.Block{Header: h, Transactions: []*tx.Transaction{coinbase}}
			b.Hash = hash
			return b
		}
	}
}

func newTestWorker(t *testing.T) *Worker {
	m, err := chain.Open(store.NewMem())
	require.NoError(t, err)
	pool := mempool.New(m.UTXO(), 0)
	pool.Attach(m)
	return New(m, pool)
}

func TestStartStopIsIdempotent(t *testing.T) {
	w := newTestWorker(t)
	w.Start()
	w.Start()
	w.Stop()
	w.Stop()
}

func TestSubmitBlockRunsThroughWorker(t *testing.T) {
	w := newTestWorker(t)
	w.Start()
	defer w.Stop()

	b1 := mineChild(t, genesis.Block())
	require.NoError(t, w.SubmitBlock(b1))

	var tip chainhash.Hash
	w.Query(func() { tip = w.mgr.Tip() })
	require.Equal(t, b1.Hash, tip)
}

func TestQueryRunsSerializedAgainstSubmit(t *testing.T) {
	w := newTestWorker(t)
	w.Start()
	defer w.Stop()

	var heightBeforeSubmit uint32
	w.Query(func() { heightBeforeSubmit = w.mgr.Height() })
	require.Equal(t, uint32(0), heightBeforeSubmit)

	b1 := mineChild(t, genesis.Block())
	require.NoError(t, w.SubmitBlock(b1))

	var heightAfterSubmit uint32
	w.Query(func() { heightAfterSubmit = w.mgr.Height() })
	require.Equal(t, uint32(1), heightAfterSubmit)
}

func TestGracefulShutdownDrainsBufferedMessages(t *testing.T) {
	w := newTestWorker(t)
	w.Start()

	var processed int32
	results := make([]chan error, 5)
	for i := range results {
		msg := &message{kind: msgQuery, query: func() { atomic.AddInt32(&processed, 1) }, result: make(chan error, 1)}
		results[i] = msg.result
		w.msgs <- msg
	}

	w.Stop()

	for _, r := range results {
		require.NoError(t, <-r)
	}
	require.EqualValues(t, 5, atomic.LoadInt32(&processed))
}
