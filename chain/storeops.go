package chain

import (
	"bytes"

	"go.dedis.ch/onet/v3/log"

	"vulkan/block"
	"vulkan/chainhash"
	"vulkan/codec"
	"vulkan/corverrors"
	"vulkan/store"
)

func (m *Manager) getStoredBlock(hash chainhash.Hash) (*block.Block, error) {
	raw, err := m.kv.Get(store.BlockKey(hash))
	if err != nil {
		return nil, corverrors.Wrap(corverrors.Storage, "get block", err)
	}
	if raw == nil {
		return nil, nil
	}
	return block.Decode(codec.NewDecoder(bytes.NewReader(raw))), nil
}

func (m *Manager) blockExists(hash chainhash.Hash) (bool, error) {
	raw, err := m.kv.Get(store.BlockKey(hash))
	if err != nil {
		return false, corverrors.Wrap(corverrors.Storage, "check block existence", err)
	}
	return raw != nil, nil
}

func (m *Manager) isMarkedInvalid(hash chainhash.Hash) (bool, error) {
	raw, err := m.kv.Get(store.InvalidMarkKey(hash))
	if err != nil {
		return false, corverrors.Wrap(corverrors.Storage, "check invalid mark", err)
	}
	return raw != nil, nil
}

func (m *Manager) markInvalid(hash chainhash.Hash) {
	if err := m.kv.Put(store.InvalidMarkKey(hash), []byte{1}); err != nil {
		log.Errorf("chain: mark invalid failed: %v", err)
	}
}
