// Package chain implements the chain state machine: block admission,
// context-sensitive validation, atomic apply/undo against the UTXO set,
// and fork resolution by cumulative work. It is the system's single
// writer — every exported method that mutates state takes Manager's
// mutex, so it is safe to call from a pooled RPC handler, but callers get
// single-writer semantics rather than a true concurrent-writer store.
package chain

import (
	"math/big"
	"sync"

	"go.dedis.ch/onet/v3/log"

	"vulkan/block"
	"vulkan/chainhash"
	"vulkan/corverrors"
	"vulkan/genesis"
	"vulkan/pow"
	"vulkan/store"
	"vulkan/utxo"
)

// Manager owns the canonical chain: the persisted blocks, the UTXO set
// derived from the main chain, and the in-memory bookkeeping (current tip,
// orphan buffer, listeners) needed to decide what a newly submitted block
// does to that chain.
type Manager struct {
	mu  sync.Mutex
	kv  store.KV
	utx *utxo.Index

	tip                   chainhash.Hash
	tipMeta               blockMeta
	tipCumulativeEmission uint64

	orphans         map[chainhash.Hash]*block.Block
	orphansByParent map[chainhash.Hash][]chainhash.Hash
	orphanOrder     []chainhash.Hash

	listeners []Listener
}

// Open builds a Manager over kv, bootstrapping the genesis block into an
// empty store or resuming from the persisted tip.
func Open(kv store.KV) (*Manager, error) {
	m := &Manager{
		kv:              kv,
		utx:             utxo.New(kv),
		orphans:         make(map[chainhash.Hash]*block.Block),
		orphansByParent: make(map[chainhash.Hash][]chainhash.Hash),
	}

	tipRaw, err := kv.Get(store.TipKey())
	if err != nil {
		return nil, corverrors.Wrap(corverrors.Storage, "read tip", err)
	}
	if tipRaw == nil {
		if err := m.bootstrapGenesis(); err != nil {
			return nil, err
		}
		return m, nil
	}

	var tip chainhash.Hash
	copy(tip[:], tipRaw)
	meta, err := m.getMeta(tip)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, corverrors.New(corverrors.Storage, "tip has no metadata")
	}
	b, err := m.getStoredBlock(tip)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, corverrors.New(corverrors.Storage, "tip block missing from store")
	}
	m.tip = tip
	m.tipMeta = *meta
	m.tipCumulativeEmission = b.CumulativeEmission
	return m, nil
}

func (m *Manager) bootstrapGenesis() error {
	g := genesis.Block()
	ops, _, err := m.utx.BuildApplyOps(g)
	if err != nil {
		return corverrors.Wrap(corverrors.Storage, "build genesis apply ops", err)
	}
	meta := blockMeta{Height: 0, Work: pow.Work(g.Bits)}
	ops = append(ops,
		store.Put(store.BlockKey(g.Hash), g.Bytes()),
		putMetaOp(g.Hash, meta),
		store.Put(store.HeightKey(0), g.Hash[:]),
		store.Put(store.TipKey(), g.Hash[:]),
	)
	if err := m.kv.WriteBatch(ops, true); err != nil {
		return corverrors.Wrap(corverrors.Storage, "commit genesis", err)
	}
	m.tip = g.Hash
	m.tipMeta = meta
	m.tipCumulativeEmission = g.CumulativeEmission
	return nil
}

// Tip returns the current main-chain tip hash.
func (m *Manager) Tip() chainhash.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tip
}

// Height returns the current main-chain height.
func (m *Manager) Height() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tipMeta.Height
}

// UTXO returns the index backing the main chain's unspent-output set.
func (m *Manager) UTXO() *utxo.Index { return m.utx }

// GetBlock looks up a block by hash, whether or not it is on the main
// chain.
func (m *Manager) GetBlock(hash chainhash.Hash) (*block.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getStoredBlock(hash)
}

// GetBlockByHeight looks up the main-chain block at height.
func (m *Manager) GetBlockByHeight(height uint32) (*block.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := m.kv.Get(store.HeightKey(height))
	if err != nil {
		return nil, corverrors.Wrap(corverrors.Storage, "height lookup", err)
	}
	if raw == nil {
		return nil, nil
	}
	var hash chainhash.Hash
	copy(hash[:], raw)
	return m.getStoredBlock(hash)
}

// Submit runs b through the admission decision table: reject
// known-invalid/duplicate blocks outright, extend the tip, track an
// alt-fork candidate (reorganizing if it becomes heavier), or buffer it as
// an orphan awaiting its parent.
func (m *Manager) Submit(b *block.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitLocked(b)
}

func (m *Manager) submitLocked(b *block.Block) error {
	exists, err := m.blockExists(b.Hash)
	if err != nil {
		return err
	}
	if exists {
		return corverrors.New(corverrors.DuplicateBlock, "block already known")
	}

	invalid, err := m.isMarkedInvalid(b.Hash)
	if err != nil {
		return err
	}
	if invalid {
		return corverrors.New(corverrors.InvalidBlock, "block previously rejected")
	}
	parentInvalid, err := m.isMarkedInvalid(b.PreviousHash)
	if err != nil {
		return err
	}
	if parentInvalid {
		m.markInvalid(b.Hash)
		return corverrors.New(corverrors.InvalidBlock, "descends from a previously rejected block")
	}

	if verr := block.Validate(b); verr != nil {
		m.markInvalid(b.Hash)
		return verr
	}

	if b.PreviousHash == m.tip {
		return m.extendTip(b)
	}

	parentKnown, err := m.blockExists(b.PreviousHash)
	if err != nil {
		return err
	}
	if !parentKnown {
		m.bufferOrphan(b)
		return nil
	}
	return m.considerAltFork(b)
}

// extendTip connects b directly onto the current tip.
func (m *Manager) extendTip(b *block.Block) error {
	if cerr := m.applyBlockAtomic(b); cerr != nil {
		if cerr.Kind == corverrors.InvalidBlock || cerr.Kind == corverrors.Context {
			m.markInvalid(b.Hash)
		}
		return cerr
	}
	m.emit(Event{Kind: BlockConnected, Block: b})
	m.tryResolveOrphans(b.Hash)
	return nil
}

// considerAltFork stores b off the main chain and, if its branch now
// outweighs the current tip's, reorganizes onto it. Full context-sensitive
// validation of b is deferred to reorganize, which is the only place that
// has the right UTXO view to check it against.
func (m *Manager) considerAltFork(b *block.Block) error {
	parentMeta, err := m.getMeta(b.PreviousHash)
	if err != nil {
		return err
	}
	if parentMeta == nil {
		return corverrors.New(corverrors.Context, "alt-fork parent has no metadata")
	}

	meta := blockMeta{
		Height: parentMeta.Height + 1,
		Work:   new(big.Int).Add(parentMeta.Work, pow.Work(b.Bits)),
	}
	ops := []store.Op{
		store.Put(store.BlockKey(b.Hash), b.Bytes()),
		putMetaOp(b.Hash, meta),
	}
	if err := m.kv.WriteBatch(ops, true); err != nil {
		return corverrors.Wrap(corverrors.Storage, "store alt-fork block", err)
	}

	if meta.Work.Cmp(m.tipMeta.Work) > 0 {
		if err := m.reorganize(b.Hash); err != nil {
			return err
		}
	}
	m.tryResolveOrphans(b.Hash)
	return nil
}

// reorganize makes altTip the main chain: it walks both branches back to
// their common ancestor, undoes the current chain down to that point, then
// applies the alt branch forward. A context failure partway through the
// alt branch rolls the store back to the original tip rather than leaving
// the chain on a half-applied branch.
func (m *Manager) reorganize(altTip chainhash.Hash) error {
	_, toUndo, toApply, err := m.planReorg(altTip)
	if err != nil {
		return err
	}

	var undone []*block.Block
	for _, b := range toUndo {
		if cerr := m.undoBlockAtomic(b); cerr != nil {
			m.reapplyBestEffort(reversed(undone))
			return corverrors.Wrap(corverrors.Storage, "reorg: undo main chain", cerr)
		}
		undone = append(undone, b)
	}

	var applied []*block.Block
	for _, b := range toApply {
		if cerr := m.applyBlockAtomic(b); cerr != nil {
			for i := len(applied) - 1; i >= 0; i-- {
				m.undoBlockAtomic(applied[i])
			}
			m.reapplyBestEffort(reversed(undone))
			if cerr.Kind == corverrors.InvalidBlock || cerr.Kind == corverrors.Context {
				m.markInvalid(b.Hash)
			}
			return cerr
		}
		applied = append(applied, b)
	}

	for _, b := range undone {
		m.emit(Event{Kind: BlockDisconnected, Block: b})
	}
	for _, b := range applied {
		m.emit(Event{Kind: BlockConnected, Block: b})
	}
	return nil
}

// reapplyBestEffort restores blocks (in connect order) after a reorg had to
// be abandoned partway through. A failure here means the store itself is
// broken; it is logged rather than returned since the caller is already
// unwinding a failure and has no further fallback.
func (m *Manager) reapplyBestEffort(blocks []*block.Block) {
	for _, b := range blocks {
		if cerr := m.applyBlockAtomic(b); cerr != nil {
			log.Errorf("chain: could not restore pre-reorg tip at block %s: %v", b.Hash, cerr)
			return
		}
	}
}

// planReorg finds the ancestor altTip's branch shares with the current
// tip, and the ordered lists of main-chain blocks to undo and alt-branch
// blocks to apply to pivot from one to the other.
func (m *Manager) planReorg(altTip chainhash.Hash) (forkPoint chainhash.Hash, toUndo, toApply []*block.Block, err error) {
	altCur := altTip
	altMeta, err := m.getMeta(altCur)
	if err != nil || altMeta == nil {
		return chainhash.Zero, nil, nil, corverrors.New(corverrors.Storage, "missing alt branch metadata")
	}
	mainCur := m.tip
	mainMeta := m.tipMeta

	for altMeta.Height > mainMeta.Height {
		b, gerr := m.getStoredBlock(altCur)
		if gerr != nil || b == nil {
			return chainhash.Zero, nil, nil, corverrors.New(corverrors.Storage, "broken alt branch")
		}
		toApply = append([]*block.Block{b}, toApply...)
		altCur = b.PreviousHash
		altMeta, err = m.getMeta(altCur)
		if err != nil || altMeta == nil {
			return chainhash.Zero, nil, nil, corverrors.New(corverrors.Storage, "missing alt branch metadata")
		}
	}
	for mainMeta.Height > altMeta.Height {
		b, gerr := m.getStoredBlock(mainCur)
		if gerr != nil || b == nil {
			return chainhash.Zero, nil, nil, corverrors.New(corverrors.Storage, "broken main chain")
		}
		toUndo = append(toUndo, b)
		mainCur = b.PreviousHash
		mainMeta2, gerr := m.getMeta(mainCur)
		if gerr != nil || mainMeta2 == nil {
			return chainhash.Zero, nil, nil, corverrors.New(corverrors.Storage, "missing main chain metadata")
		}
		mainMeta = *mainMeta2
	}
	for altCur != mainCur {
		ab, gerr := m.getStoredBlock(altCur)
		if gerr != nil || ab == nil {
			return chainhash.Zero, nil, nil, corverrors.New(corverrors.Storage, "broken alt branch")
		}
		toApply = append([]*block.Block{ab}, toApply...)
		altCur = ab.PreviousHash

		mb, gerr := m.getStoredBlock(mainCur)
		if gerr != nil || mb == nil {
			return chainhash.Zero, nil, nil, corverrors.New(corverrors.Storage, "broken main chain")
		}
		toUndo = append(toUndo, mb)
		mainCur = mb.PreviousHash
	}
	return altCur, toUndo, toApply, nil
}

func reversed(blocks []*block.Block) []*block.Block {
	out := make([]*block.Block, len(blocks))
	for i, b := range blocks {
		out[len(blocks)-1-i] = b
	}
	return out
}

// applyBlockAtomic runs full context-sensitive validation of b against its
// parent and the current UTXO view, then connects it: a single durable
// write batch containing every UTXO mutation plus the block/meta/height/tip
// index updates. On success it advances the in-memory tip state.
func (m *Manager) applyBlockAtomic(b *block.Block) *corverrors.Error {
	parentBlock, err := m.getStoredBlock(b.PreviousHash)
	if err != nil {
		return corverrors.Wrap(corverrors.Storage, "get parent block", err)
	}
	if parentBlock == nil {
		return corverrors.New(corverrors.Context, "unknown parent block")
	}
	parentMeta, err := m.getMeta(b.PreviousHash)
	if err != nil {
		return corverrors.Wrap(corverrors.Storage, "get parent metadata", err)
	}
	if parentMeta == nil {
		return corverrors.New(corverrors.Context, "unknown parent metadata")
	}
	height := parentMeta.Height + 1

	if cerr := m.blockContextCheck(b, height, parentBlock.Bits, parentBlock.CumulativeEmission, m.utx); cerr != nil {
		return cerr
	}

	ops, _, err := m.utx.BuildApplyOps(b)
	if err != nil {
		if ce, ok := asCoreError(err); ok {
			return ce
		}
		return corverrors.Wrap(corverrors.Storage, "build apply ops", err)
	}
	newMeta := blockMeta{Height: height, Work: new(big.Int).Add(parentMeta.Work, pow.Work(b.Bits))}
	ops = append(ops,
		store.Put(store.BlockKey(b.Hash), b.Bytes()),
		putMetaOp(b.Hash, newMeta),
		store.Put(store.HeightKey(height), b.Hash[:]),
		store.Put(store.TipKey(), b.Hash[:]),
	)
	if err := m.kv.WriteBatch(ops, true); err != nil {
		return corverrors.Wrap(corverrors.Storage, "commit apply", err)
	}

	m.tip = b.Hash
	m.tipMeta = newMeta
	m.tipCumulativeEmission = b.CumulativeEmission
	return nil
}

// undoBlockAtomic inverts a previously applied b, moving the tip back to
// its parent in a single durable write batch.
func (m *Manager) undoBlockAtomic(b *block.Block) *corverrors.Error {
	ops, err := m.utx.BuildUndoOps(b)
	if err != nil {
		if ce, ok := asCoreError(err); ok {
			return ce
		}
		return corverrors.Wrap(corverrors.Storage, "build undo ops", err)
	}
	meta, err := m.getMeta(b.Hash)
	if err != nil || meta == nil {
		return corverrors.New(corverrors.Storage, "missing metadata for block being undone")
	}
	parentBlock, err := m.getStoredBlock(b.PreviousHash)
	if err != nil || parentBlock == nil {
		return corverrors.New(corverrors.Storage, "missing parent block for undo")
	}
	parentMeta, err := m.getMeta(b.PreviousHash)
	if err != nil || parentMeta == nil {
		return corverrors.New(corverrors.Storage, "missing parent metadata for undo")
	}

	ops = append(ops,
		store.Delete(store.HeightKey(meta.Height)),
		store.Put(store.TipKey(), b.PreviousHash[:]),
	)
	if err := m.kv.WriteBatch(ops, true); err != nil {
		return corverrors.Wrap(corverrors.Storage, "commit undo", err)
	}

	m.tip = b.PreviousHash
	m.tipMeta = *parentMeta
	m.tipCumulativeEmission = parentBlock.CumulativeEmission
	return nil
}
