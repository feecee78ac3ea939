package chain

import (
	"vulkan/block"
	"vulkan/chainhash"
	"vulkan/params"
)

// bufferOrphan stores b, whose parent is unknown, for later reconsideration
// once that parent (or an ancestor of it) arrives. At params.MaxOrphans the
// oldest-buffered orphan is evicted to bound memory.
func (m *Manager) bufferOrphan(b *block.Block) {
	if _, already := m.orphans[b.Hash]; already {
		return
	}
	if len(m.orphanOrder) >= params.MaxOrphans {
		oldest := m.orphanOrder[0]
		m.orphanOrder = m.orphanOrder[1:]
		if old, ok := m.orphans[oldest]; ok {
			m.removeFromParentIndex(old)
			delete(m.orphans, oldest)
		}
	}
	m.orphans[b.Hash] = b
	m.orphanOrder = append(m.orphanOrder, b.Hash)
	m.orphansByParent[b.PreviousHash] = append(m.orphansByParent[b.PreviousHash], b.Hash)
}

func (m *Manager) removeFromParentIndex(b *block.Block) {
	siblings := m.orphansByParent[b.PreviousHash]
	for i, h := range siblings {
		if h == b.Hash {
			m.orphansByParent[b.PreviousHash] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if len(m.orphansByParent[b.PreviousHash]) == 0 {
		delete(m.orphansByParent, b.PreviousHash)
	}
}

// tryResolveOrphans resubmits every buffered orphan whose previous_hash is
// now a known block (parentHash), recursively: resolving one orphan may
// reveal the parent of another. Must be called with m.mu already held.
func (m *Manager) tryResolveOrphans(parentHash chainhash.Hash) {
	children := m.orphansByParent[parentHash]
	if len(children) == 0 {
		return
	}
	delete(m.orphansByParent, parentHash)

	for _, h := range children {
		b, ok := m.orphans[h]
		if !ok {
			continue
		}
		delete(m.orphans, h)
		for i, oh := range m.orphanOrder {
			if oh == h {
				m.orphanOrder = append(m.orphanOrder[:i], m.orphanOrder[i+1:]...)
				break
			}
		}
		_ = m.submitLocked(b)
	}
}

// OrphanCount reports how many blocks are currently buffered awaiting their
// parent. Exposed for tests and operational introspection.
func (m *Manager) OrphanCount() int {
	return len(m.orphans)
}
