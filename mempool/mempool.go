// Package mempool implements the pending-transaction pool: admission
// against the current UTXO view, conflict tracking by claimed outpoint,
// and the block-connect/disconnect bookkeeping that keeps the pool
// consistent with the chain manager it subscribes to.
package mempool

import (
	"sort"
	"sync"

	"go.dedis.ch/onet/v3/log"

	"vulkan/block"
	"vulkan/chain"
	"vulkan/chainhash"
	"vulkan/corverrors"
	"vulkan/params"
	"vulkan/store"
	"vulkan/tx"
	"vulkan/utxo"
)

type outpoint struct {
	hash chainhash.Hash
	idx  uint32
}

// Pool is the pending-transaction set. It is safe for concurrent use: the
// chain worker calls admit/BlockConnected/BlockDisconnected from the single
// writer goroutine, while readers may call Txs/Has concurrently.
type Pool struct {
	mu       sync.RWMutex
	txs      map[chainhash.Hash]*tx.Transaction
	claimed  map[outpoint]chainhash.Hash
	fees     map[chainhash.Hash]uint64
	sizes    map[chainhash.Hash]int
	bytes    int
	maxBytes int

	utx *utxo.Index
}

// New builds an empty pool backed by utx for unspent-output lookups.
// maxBytes overrides params.MempoolMaxBytes when positive, letting an
// operator's config tune the eviction threshold without touching protocol
// constants.
func New(utx *utxo.Index, maxBytes int) *Pool {
	if maxBytes <= 0 {
		maxBytes = params.MempoolMaxBytes
	}
	return &Pool{
		txs:      make(map[chainhash.Hash]*tx.Transaction),
		claimed:  make(map[outpoint]chainhash.Hash),
		fees:     make(map[chainhash.Hash]uint64),
		sizes:    make(map[chainhash.Hash]int),
		maxBytes: maxBytes,
		utx:      utx,
	}
}

// Attach subscribes the pool to m's connect/disconnect events so it stays
// consistent with the main chain without the caller having to wire each
// event by hand.
func (p *Pool) Attach(m *chain.Manager) {
	m.Subscribe(func(e chain.Event) {
		switch e.Kind {
		case chain.BlockConnected:
			p.BlockConnected(e.Block)
		case chain.BlockDisconnected:
			p.BlockDisconnected(e.Block)
		}
	})
}

// Admit runs the pool's admission checks and, if they pass, adds t to the
// pool, evicting lowest-fee-rate entries if admitting it would push the
// pool past its byte cap (the maxBytes given to New).
func (p *Pool) Admit(t *tx.Transaction) *corverrors.Error {
	if verr := tx.Validate(t); verr != nil {
		return verr
	}
	if t.IsCoinbase() {
		return corverrors.New(corverrors.InvalidTransaction, "coinbase cannot enter the pool")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, known := p.txs[t.ID]; known {
		return corverrors.New(corverrors.DuplicateTransaction, "already pooled")
	}

	var totalIn, totalOut uint64
	for _, in := range t.Inputs {
		op := outpoint{hash: in.PrevTxHash, idx: in.PrevOutIndex}
		if _, claimed := p.claimed[op]; claimed {
			return corverrors.New(corverrors.Context, "input already claimed by a pooled transaction")
		}
		out, err := p.utx.Get(in.PrevTxHash, in.PrevOutIndex)
		if err != nil {
			return corverrors.Wrap(corverrors.Storage, "utxo lookup", err)
		}
		if out == nil {
			return corverrors.New(corverrors.Context, "input not unspent in current chain state")
		}
		totalIn += out.Amount
	}
	for _, out := range t.Outputs {
		totalOut += out.Amount
	}
	if totalOut > totalIn {
		return corverrors.New(corverrors.Context, "outputs exceed inputs")
	}
	fee := totalIn - totalOut

	raw := t.Bytes()
	p.insert(t, fee, len(raw))

	for p.bytes > p.maxBytes {
		if !p.evictLowestFeeRateExcept(t.ID) {
			break
		}
	}
	return nil
}

type feeRateEntry struct {
	id      chainhash.Hash
	feeRate float64
}

func (p *Pool) insert(t *tx.Transaction, fee uint64, size int) {
	p.txs[t.ID] = t
	p.bytes += size
	for _, in := range t.Inputs {
		p.claimed[outpoint{hash: in.PrevTxHash, idx: in.PrevOutIndex}] = t.ID
	}
	p.fees[t.ID] = fee
	p.sizes[t.ID] = size
}

// evictLowestFeeRateExcept removes the pooled transaction with the lowest
// fee-rate (fee per byte), never the one being admitted right now. Reports
// whether anything was evicted.
func (p *Pool) evictLowestFeeRateExcept(keep chainhash.Hash) bool {
	entries := make([]feeRateEntry, 0, len(p.txs))
	for id := range p.txs {
		if id == keep {
			continue
		}
		size := p.sizes[id]
		if size == 0 {
			continue
		}
		entries = append(entries, feeRateEntry{id: id, feeRate: float64(p.fees[id]) / float64(size)})
	}
	if len(entries) == 0 {
		return false
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].feeRate < entries[j].feeRate })
	p.removeLocked(entries[0].id)
	return true
}

func (p *Pool) removeLocked(id chainhash.Hash) {
	t, ok := p.txs[id]
	if !ok {
		return
	}
	p.bytes -= p.sizes[id]
	delete(p.txs, id)
	delete(p.fees, id)
	delete(p.sizes, id)
	for _, in := range t.Inputs {
		op := outpoint{hash: in.PrevTxHash, idx: in.PrevOutIndex}
		if p.claimed[op] == id {
			delete(p.claimed, op)
		}
	}
}

// BlockConnected drops every pooled transaction the block confirmed, and
// every pooled transaction left conflicting with an input the block spent.
func (p *Pool) BlockConnected(b *block.Block) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range b.Transactions {
		if t.IsCoinbase() {
			continue
		}
		p.removeLocked(t.ID)
		for _, in := range t.Inputs {
			op := outpoint{hash: in.PrevTxHash, idx: in.PrevOutIndex}
			if conflictID, claimed := p.claimed[op]; claimed {
				p.removeLocked(conflictID)
			}
		}
	}
}

// BlockDisconnected re-admits a disconnected block's non-coinbase
// transactions, ignoring any that no longer pass admission.
func (p *Pool) BlockDisconnected(b *block.Block) {
	for _, t := range b.Transactions {
		if t.IsCoinbase() {
			continue
		}
		if verr := p.Admit(t); verr != nil {
			log.Warnf("mempool: could not re-admit %s after disconnect: %v", t.ID, verr)
		}
	}
}

// Has reports whether id is currently pooled.
func (p *Pool) Has(id chainhash.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.txs[id]
	return ok
}

// Txs returns every currently pooled transaction id.
func (p *Pool) Txs() []chainhash.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]chainhash.Hash, 0, len(p.txs))
	for id := range p.txs {
		ids = append(ids, id)
	}
	return ids
}

// Get returns a pooled transaction by id, or nil if not pooled.
func (p *Pool) Get(id chainhash.Hash) *tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.txs[id]
}

// Persist mirrors the pool's current transaction set into kv's 'M' range,
// so a later Restore can rebuild the pool after a process restart. It
// replaces whatever was mirrored before in a single write batch: entries
// for transactions no longer pooled are dropped along with the ones
// currently held.
func (p *Pool) Persist(kv store.KV) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var stale [][]byte
	if err := kv.Iterate(store.MempoolPrefix(), func(key, _ []byte) error {
		stale = append(stale, append([]byte(nil), key...))
		return nil
	}); err != nil {
		return corverrors.Wrap(corverrors.Storage, "scan mempool mirror", err)
	}

	ops := make([]store.Op, 0, len(stale)+len(p.txs))
	for _, key := range stale {
		ops = append(ops, store.Delete(key))
	}
	for id, t := range p.txs {
		ops = append(ops, store.Put(store.MempoolTxKey(id), t.Bytes()))
	}
	if err := kv.WriteBatch(ops, true); err != nil {
		return corverrors.Wrap(corverrors.Storage, "persist mempool mirror", err)
	}
	return nil
}

// Restore rebuilds a pool from kv's mempool mirror, re-running admission
// against utx for each mirrored transaction. One that no longer clears —
// its input was spent by a block mined while the process was down, say —
// is dropped rather than failing the whole restore.
func Restore(kv store.KV, utx *utxo.Index, maxBytes int) (*Pool, error) {
	p := New(utx, maxBytes)

	var raws [][]byte
	if err := kv.Iterate(store.MempoolPrefix(), func(_, value []byte) error {
		raws = append(raws, append([]byte(nil), value...))
		return nil
	}); err != nil {
		return nil, corverrors.Wrap(corverrors.Storage, "scan mempool mirror", err)
	}

	for _, raw := range raws {
		t, err := tx.DecodeBytes(raw)
		if err != nil {
			log.Warnf("mempool: dropping unreadable mirrored transaction: %v", err)
			continue
		}
		if verr := p.Admit(t); verr != nil {
			log.Warnf("mempool: could not restore %s: %v", t.ID, verr)
		}
	}
	return p, nil
}
