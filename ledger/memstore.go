package ledger

import (
	"sort"
	"sync"
)

// MemStore is an in-memory Store. Writes made inside Update are staged and
// applied only when the callback succeeds.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	data := make(map[string]map[string][]byte, len(buckets))
	for _, name := range buckets {
		data[name] = make(map[string][]byte)
	}
	return &MemStore{data: data}
}

// View runs fn against a read-only snapshot.
func (s *MemStore) View(fn func(tx Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memTx{base: s.data})
}

// Update runs fn with exclusive access and commits its staged writes on success.
func (s *MemStore) Update(fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{base: s.data, staged: make(map[string]map[string][]byte), writable: true}
	if err := fn(tx); err != nil {
		return err
	}
	for bucket, kv := range tx.staged {
		dst, ok := s.data[bucket]
		if !ok {
			dst = make(map[string][]byte)
			s.data[bucket] = dst
		}
		for k, v := range kv {
			dst[k] = v
		}
	}
	return nil
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }

type memTx struct {
	base     map[string]map[string][]byte
	staged   map[string]map[string][]byte
	writable bool
}

func (t *memTx) Get(bucket string, key []byte) []byte {
	if kv, ok := t.staged[bucket]; ok {
		if v, ok := kv[string(key)]; ok {
			return cloneBytes(v)
		}
	}
	if v, ok := t.base[bucket][string(key)]; ok {
		return cloneBytes(v)
	}
	return nil
}

func (t *memTx) Put(bucket string, key, value []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	kv, ok := t.staged[bucket]
	if !ok {
		kv = make(map[string][]byte)
		t.staged[bucket] = kv
	}
	kv[string(key)] = cloneBytes(value)
	return nil
}

// ForEach visits keys in byte order, matching bbolt iteration.
func (t *memTx) ForEach(bucket string, fn func(k, v []byte) error) error {
	keys := make([]string, 0, len(t.base[bucket])+len(t.staged[bucket]))
	for k := range t.base[bucket] {
		keys = append(keys, k)
	}
	for k := range t.staged[bucket] {
		if _, ok := t.base[bucket][k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := fn([]byte(k), t.Get(bucket, []byte(k))); err != nil {
			return err
		}
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
