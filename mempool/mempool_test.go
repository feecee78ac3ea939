package mempool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vulkan/block"
	"vulkan/chainhash"
	"vulkan/corverrors"
	"vulkan/crypto"
	"vulkan/store"
	"vulkan/tx"
	"vulkan/utxo"
)

// seedUTXO commits a single-output coinbase so tests have a spendable
// outpoint to build transactions against.
func seedUTXO(t *testing.T, kv store.KV, idx *utxo.Index, amount uint64, addr crypto.Address) chainhash.Hash {
	coinbase := &tx.Transaction{
		Inputs:  []tx.InputRef{{PrevTxHash: chainhash.Zero, PrevOutIndex: 0xffffffff}},
		Outputs: []tx.Output{{Amount: amount, Address: addr}},
	}
	coinbase.ID = coinbase.ComputeID()
	b := &block.Block{Transactions: []*tx.Transaction{coinbase}}
	b.Hash = chainhash.SHA256d([]byte("seed"))

	ops, _, err := idx.BuildApplyOps(b)
	require.NoError(t, err)
	require.NoError(t, kv.WriteBatch(ops, true))
	return coinbase.ID
}

func spendingTx(t *testing.T, kp *crypto.KeyPair, prevHash chainhash.Hash, prevIndex uint32, payout uint64) *tx.Transaction {
	pub, err := kp.PublicKey()
	require.NoError(t, err)
	txn := &tx.Transaction{
		Inputs:  []tx.InputRef{{PrevTxHash: prevHash, PrevOutIndex: prevIndex, PublicKey: pub}},
		Outputs: []tx.Output{{Amount: payout, Address: crypto.Address{}}},
	}
	header := txn.SigningHeader()
	sig, err := kp.Sign(header)
	require.NoError(t, err)
	txn.Inputs[0].Signature = sig
	txn.ID = txn.ComputeID()
	return txn
}

func TestAdmitAcceptsSpendableTransaction(t *testing.T) {
	kv := store.NewMem()
	idx := utxo.New(kv)
	kp := crypto.GenerateKeyPair()
	pub, err := kp.PublicKey()
	require.NoError(t, err)
	addr := crypto.DeriveAddress(crypto.AddressVersionMainnet, pub)
	prevID := seedUTXO(t, kv, idx, 100, addr)

	p := New(idx, 0)
	spend := spendingTx(t, kp, prevID, 0, 90)
	require.Nil(t, p.Admit(spend))
	require.True(t, p.Has(spend.ID))
}

func TestAdmitRejectsCoinbase(t *testing.T) {
	kv := store.NewMem()
	idx := utxo.New(kv)
	p := New(idx, 0)

	coinbase := &tx.Transaction{
		Inputs:  []tx.InputRef{{PrevTxHash: chainhash.Zero, PrevOutIndex: 0xffffffff}},
		Outputs: []tx.Output{{Amount: 1, Address: crypto.Address{}}},
	}
	coinbase.ID = coinbase.ComputeID()

	verr := p.Admit(coinbase)
	require.NotNil(t, verr)
	require.Equal(t, corverrors.InvalidTransaction, verr.Kind)
}

func TestAdmitRejectsDuplicate(t *testing.T) {
	kv := store.NewMem()
	idx := utxo.New(kv)
	kp := crypto.GenerateKeyPair()
	pub, err := kp.PublicKey()
	require.NoError(t, err)
	addr := crypto.DeriveAddress(crypto.AddressVersionMainnet, pub)
	prevID := seedUTXO(t, kv, idx, 100, addr)

	p := New(idx, 0)
	spend := spendingTx(t, kp, prevID, 0, 90)
	require.Nil(t, p.Admit(spend))

	verr := p.Admit(spend)
	require.NotNil(t, verr)
	require.Equal(t, corverrors.DuplicateTransaction, verr.Kind)
}

func TestAdmitRejectsClaimedOutpointConflict(t *testing.T) {
	kv := store.NewMem()
	idx := utxo.New(kv)
	kp := crypto.GenerateKeyPair()
	pub, err := kp.PublicKey()
	require.NoError(t, err)
	addr := crypto.DeriveAddress(crypto.AddressVersionMainnet, pub)
	prevID := seedUTXO(t, kv, idx, 100, addr)

	p := New(idx, 0)
	first := spendingTx(t, kp, prevID, 0, 90)
	require.Nil(t, p.Admit(first))

	second := spendingTx(t, kp, prevID, 0, 80)
	verr := p.Admit(second)
	require.NotNil(t, verr)
	require.Equal(t, corverrors.Context, verr.Kind)
}

func TestAdmitRejectsUnknownInput(t *testing.T) {
	kv := store.NewMem()
	idx := utxo.New(kv)
	p := New(idx, 0)

	kp := crypto.GenerateKeyPair()
	spend := spendingTx(t, kp, chainhash.SHA256d([]byte("ghost")), 0, 1)
	verr := p.Admit(spend)
	require.NotNil(t, verr)
	require.Equal(t, corverrors.Context, verr.Kind)
}

func TestAdmitEvictsLowestFeeRateWhenOverCapacity(t *testing.T) {
	kv := store.NewMem()
	idx := utxo.New(kv)

	kpLow := crypto.GenerateKeyPair()
	pubLow, err := kpLow.PublicKey()
	require.NoError(t, err)
	addrLow := crypto.DeriveAddress(crypto.AddressVersionMainnet, pubLow)
	lowPrev := seedUTXO(t, kv, idx, 100, addrLow)

	kpHigh := crypto.GenerateKeyPair()
	pubHigh, err := kpHigh.PublicKey()
	require.NoError(t, err)
	addrHigh := crypto.DeriveAddress(crypto.AddressVersionMainnet, pubHigh)
	highPrev := seedUTXO(t, kv, idx, 100, addrHigh)

	low := spendingTx(t, kpLow, lowPrev, 0, 99) // fee 1, low fee-rate
	high := spendingTx(t, kpHigh, highPrev, 0, 1) // fee 99, high fee-rate

	maxBytes := len(low.Bytes()) + len(high.Bytes()) - 1
	p := New(idx, maxBytes)

	require.Nil(t, p.Admit(low))
	require.Nil(t, p.Admit(high))

	require.False(t, p.Has(low.ID), "lowest fee-rate transaction should have been evicted")
	require.True(t, p.Has(high.ID))
}

func TestBlockConnectedRemovesConfirmedAndConflicting(t *testing.T) {
	kv := store.NewMem()
	idx := utxo.New(kv)
	kp := crypto.GenerateKeyPair()
	pub, err := kp.PublicKey()
	require.NoError(t, err)
	addr := crypto.DeriveAddress(crypto.AddressVersionMainnet, pub)
	prevID := seedUTXO(t, kv, idx, 100, addr)

	p := New(idx, 0)
	confirmed := spendingTx(t, kp, prevID, 0, 90)
	require.Nil(t, p.Admit(confirmed))

	b := &block.Block{Transactions: []*tx.Transaction{confirmed}}
	b.Hash = chainhash.SHA256d([]byte("block"))
	p.BlockConnected(b)

	require.False(t, p.Has(confirmed.ID))
}

func TestBlockDisconnectedReAdmitsTransactions(t *testing.T) {
	kv := store.NewMem()
	idx := utxo.New(kv)
	kp := crypto.GenerateKeyPair()
	pub, err := kp.PublicKey()
	require.NoError(t, err)
	addr := crypto.DeriveAddress(crypto.AddressVersionMainnet, pub)
	prevID := seedUTXO(t, kv, idx, 100, addr)

	p := New(idx, 0)
	spend := spendingTx(t, kp, prevID, 0, 90)
	require.Nil(t, p.Admit(spend))

	b := &block.Block{Transactions: []*tx.Transaction{spend}}
	b.Hash = chainhash.SHA256d([]byte("block"))
	p.BlockConnected(b)
	require.False(t, p.Has(spend.ID))

	p.BlockDisconnected(b)
	require.True(t, p.Has(spend.ID))
}

func TestPersistAndRestoreRoundTrip(t *testing.T) {
	kv := store.NewMem()
	idx := utxo.New(kv)
	kp := crypto.GenerateKeyPair()
	pub, err := kp.PublicKey()
	require.NoError(t, err)
	addr := crypto.DeriveAddress(crypto.AddressVersionMainnet, pub)
	prevID := seedUTXO(t, kv, idx, 100, addr)

	p := New(idx, 0)
	spend := spendingTx(t, kp, prevID, 0, 90)
	require.Nil(t, p.Admit(spend))

	require.NoError(t, p.Persist(kv))

	restored, err := Restore(kv, idx, 0)
	require.NoError(t, err)
	require.True(t, restored.Has(spend.ID))
	require.Equal(t, spend.ID, restored.Get(spend.ID).ID)
}

func TestPersistDropsStaleMirrorEntries(t *testing.T) {
	kv := store.NewMem()
	idx := utxo.New(kv)
	kp := crypto.GenerateKeyPair()
	pub, err := kp.PublicKey()
	require.NoError(t, err)
	addr := crypto.DeriveAddress(crypto.AddressVersionMainnet, pub)
	prevID := seedUTXO(t, kv, idx, 100, addr)

	p := New(idx, 0)
	spend := spendingTx(t, kp, prevID, 0, 90)
	require.Nil(t, p.Admit(spend))
	require.NoError(t, p.Persist(kv))

	p.removeLocked(spend.ID)
	require.NoError(t, p.Persist(kv))

	restored, err := Restore(kv, idx, 0)
	require.NoError(t, err)
	require.Empty(t, restored.Txs())
}

func TestRestoreDropsTransactionsThatNoLongerClear(t *testing.T) {
	kv := store.NewMem()
	idx := utxo.New(kv)
	kp := crypto.GenerateKeyPair()
	pub, err := kp.PublicKey()
	require.NoError(t, err)
	addr := crypto.DeriveAddress(crypto.AddressVersionMainnet, pub)
	prevID := seedUTXO(t, kv, idx, 100, addr)

	p := New(idx, 0)
	spend := spendingTx(t, kp, prevID, 0, 90)
	require.Nil(t, p.Admit(spend))
	require.NoError(t, p.Persist(kv))

	// Confirm the spend into a block, removing its output from the UTXO
	// view: the mirrored copy can no longer be readmitted.
	b := &block.Block{Transactions: []*tx.Transaction{spend}}
	b.Hash = chainhash.SHA256d([]byte("block"))
	ops, _, err := idx.BuildApplyOps(b)
	require.NoError(t, err)
	require.NoError(t, kv.WriteBatch(ops, true))

	restored, err := Restore(kv, idx, 0)
	require.NoError(t, err)
	require.Empty(t, restored.Txs())
}

func TestTxsAndGet(t *testing.T) {
	kv := store.NewMem()
	idx := utxo.New(kv)
	kp := crypto.GenerateKeyPair()
	pub, err := kp.PublicKey()
	require.NoError(t, err)
	addr := crypto.DeriveAddress(crypto.AddressVersionMainnet, pub)
	prevID := seedUTXO(t, kv, idx, 100, addr)

	p := New(idx, 0)
	spend := spendingTx(t, kp, prevID, 0, 90)
	require.Nil(t, p.Admit(spend))

	require.Equal(t, []chainhash.Hash{spend.ID}, p.Txs())
	require.Equal(t, spend.ID, p.Get(spend.ID).ID)
	require.Nil(t, p.Get(chainhash.SHA256d([]byte("unknown"))))
}
