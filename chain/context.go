package chain

import (
	"vulkan/block"
	"vulkan/chainhash"
	"vulkan/corverrors"
	"vulkan/crypto"
	"vulkan/params"
	"vulkan/pow"
	"vulkan/tx"
	"vulkan/utxo"
)

// baseEmission returns the coinbase subsidy for a block at height,
// halving every params.HalvingInterval blocks until it reaches zero.
func baseEmission(height uint32) uint64 {
	halvings := height / params.HalvingInterval
	if halvings >= 64 {
		return 0
	}
	return params.BaseEmission >> halvings
}

// expectedBits returns the bits a block at height must carry, given its
// parent's bits and (only at a retarget boundary) the timestamps bounding
// the period that just elapsed.
func (m *Manager) expectedBits(height uint32, parentHash chainhash.Hash, parentBits uint32) (uint32, error) {
	if height == 0 || height%params.DifficultyPeriod != 0 {
		return parentBits, nil
	}

	periodStartHeight := height - params.DifficultyPeriod
	periodStart, err := m.getBlockByHeightOnBranch(periodStartHeight, parentHash)
	if err != nil {
		return 0, err
	}
	periodEnd, err := m.getStoredBlock(parentHash)
	if err != nil {
		return 0, err
	}
	if periodStart == nil || periodEnd == nil {
		return 0, corverrors.New(corverrors.Context, "missing retarget window block")
	}

	span := int64(periodEnd.Timestamp) - int64(periodStart.Timestamp)
	return pow.NextTarget(parentBits, span), nil
}

// getBlockByHeightOnBranch walks parent pointers from branchTip back to
// the given height. It is used only for the (rare) retarget-window lookup,
// so an O(period) walk is acceptable.
func (m *Manager) getBlockByHeightOnBranch(height uint32, branchTip chainhash.Hash) (*block.Block, error) {
	cur := branchTip
	for {
		b, err := m.getStoredBlock(cur)
		if err != nil {
			return nil, err
		}
		if b == nil {
			return nil, corverrors.New(corverrors.Context, "broken chain while walking for retarget window")
		}
		meta, err := m.getMeta(cur)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			return nil, corverrors.New(corverrors.Context, "missing metadata while walking for retarget window")
		}
		if meta.Height == height {
			return b, nil
		}
		if meta.Height < height || b.PreviousHash.IsZero() {
			return nil, corverrors.New(corverrors.Context, "retarget window predates genesis")
		}
		cur = b.PreviousHash
	}
}

// txContextCheck validates a single non-coinbase transaction against the
// given UTXO view: every input references an unspent output, the input's
// public key actually owns that output's address, and total outputs do
// not exceed total inputs. It returns the transaction's fee.
func txContextCheck(view *utxo.Index, t *tx.Transaction) (fee uint64, cerr *corverrors.Error) {
	var totalIn, totalOut uint64
	for _, in := range t.Inputs {
		out, err := view.Get(in.PrevTxHash, in.PrevOutIndex)
		if err != nil {
			return 0, corverrors.Wrap(corverrors.Storage, "utxo lookup", err)
		}
		if out == nil {
			return 0, corverrors.New(corverrors.Context, "input references unspent-set miss (unknown or already spent)")
		}
		ownerAddr := crypto.DeriveAddress(out.Address[0], in.PublicKey)
		if ownerAddr != out.Address {
			return 0, corverrors.New(corverrors.Context, "public key does not own referenced output")
		}
		totalIn += out.Amount
	}
	for _, out := range t.Outputs {
		totalOut += out.Amount
	}
	if totalOut > totalIn {
		return 0, corverrors.New(corverrors.Context, "outputs exceed inputs")
	}
	return totalIn - totalOut, nil
}

// blockContextCheck runs the context-sensitive rules block.Validate
// cannot run on its own: retarget agreement, per-transaction UTXO
// sufficiency, coinbase amount, and cumulative emission. Parent linkage is
// checked by the caller, which looks the parent up before calling it. view
// must reflect the UTXO state immediately before connecting b.
func (m *Manager) blockContextCheck(b *block.Block, height uint32, parentBits uint32, parentCumulative uint64, view *utxo.Index) *corverrors.Error {
	expected, err := m.expectedBits(height, b.PreviousHash, parentBits)
	if err != nil {
		if ce, ok := asCoreError(err); ok {
			return ce
		}
		return corverrors.Wrap(corverrors.Context, "compute expected bits", err)
	}
	if b.Bits != expected {
		return corverrors.New(corverrors.Context, "bits does not match expected retarget")
	}

	var totalFees uint64
	for _, t := range b.Transactions {
		if t.IsCoinbase() {
			continue
		}
		fee, cerr := txContextCheck(view, t)
		if cerr != nil {
			return cerr
		}
		totalFees += fee
	}

	var coinbasePayout uint64
	for _, out := range b.Transactions[0].Outputs {
		coinbasePayout += out.Amount
	}
	expectedPayout := baseEmission(height) + totalFees
	if coinbasePayout != expectedPayout {
		return corverrors.New(corverrors.Context, "coinbase amount does not match base emission plus fees")
	}

	if b.CumulativeEmission != parentCumulative+baseEmission(height) {
		return corverrors.New(corverrors.Context, "cumulative_emission does not match recomputation")
	}

	return nil
}

func asCoreError(err error) (*corverrors.Error, bool) {
	ce, ok := err.(*corverrors.Error)
	return ce, ok
}
