// In-memory KV, so tests can inject an implementation of the store
// contract without touching disk.
package store

import (
	"bytes"
	"sort"
	"sync"
)

// MemKV is a KV backed by a plain map, guarded by a mutex. Writes copy
// their key/value so callers retaining the passed-in slices never observe
// mutation.
type MemKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMem returns an empty MemKV.
func NewMem() *MemKV {
	return &MemKV{data: make(map[string][]byte)}
}

func (m *MemKV) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemKV) Put(key, value []byte) error {
	return m.WriteBatch([]Op{Put(key, value)}, true)
}

func (m *MemKV) Delete(key []byte) error {
	return m.WriteBatch([]Op{Delete(key)}, true)
}

// WriteBatch applies ops atomically from the caller's perspective: it
// holds the lock for the whole batch, so no reader observes a partial
// application. sync is accepted for interface parity; an in-memory store
// has nothing to fsync.
func (m *MemKV) WriteBatch(ops []Op, sync bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		switch op.Kind {
		case OpPut:
			m.data[string(op.Key)] = append([]byte(nil), op.Value...)
		case OpDelete:
			delete(m.data, string(op.Key))
		}
	}
	return nil
}

func (m *MemKV) Snapshot() (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	copied := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		copied[k] = append([]byte(nil), v...)
	}
	return &memSnapshot{data: copied}, nil
}

func (m *MemKV) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = append([]byte(nil), m.data[k]...)
	}
	m.mu.RUnlock()

	for i, k := range keys {
		if err := fn([]byte(k), values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemKV) Close() error { return nil }

type memSnapshot struct {
	data map[string][]byte
}

func (s *memSnapshot) Get(key []byte) ([]byte, error) {
	v, ok := s.data[string(key)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (s *memSnapshot) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), s.data[k]); err != nil {
			return err
		}
	}
	return nil
}

func (s *memSnapshot) Close() error { return nil }
