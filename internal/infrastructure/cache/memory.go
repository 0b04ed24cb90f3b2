package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/macrocart/v2/internal/ports/outbound"
)

// MemoryStore is an in-process KVStore with LRU eviction and lazy TTL
// expiry. It backs single-node development runs and tests where redis is
// not available. Update needs no optimistic retry here because one mutex
// serializes all writers.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	maxSize int
	now     func() time.Time
}

var _ outbound.KVStore = (*MemoryStore)(nil)

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryStore creates an in-memory store holding at most maxSize keys.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 4096
	}
	return &MemoryStore{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns a copy of the stored value or ErrKeyNotFound.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[key]
	if !ok {
		return nil, outbound.ErrKeyNotFound
	}
	entry := elem.Value.(*memoryEntry)
	if entry.expired(m.now()) {
		m.removeLocked(elem)
		return nil, outbound.ErrKeyNotFound
	}

	m.lru.MoveToFront(elem)
	return append([]byte(nil), entry.value...), nil
}

// Set stores a value. A zero TTL keeps the key until evicted.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(key, value, ttl)
	return nil
}

// SetNX stores the value only when the key is absent and reports whether
// the write happened.
func (m *MemoryStore) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		if !entry.expired(m.now()) {
			return false, nil
		}
		m.removeLocked(elem)
	}

	m.setLocked(key, value, ttl)
	return true, nil
}

// Update applies transform to the current value under the store lock.
func (m *MemoryStore) Update(_ context.Context, key string, ttl time.Duration, transform func(current []byte) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current []byte
	if elem, ok := m.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		if entry.expired(m.now()) {
			m.removeLocked(elem)
		} else {
			current = append([]byte(nil), entry.value...)
		}
	}

	next, err := transform(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}

	m.setLocked(key, next, ttl)
	return nil
}

// Delete removes a key
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[key]; ok {
		m.removeLocked(elem)
	}
	return nil
}

// Exists reports whether a live entry is present
func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if elem.Value.(*memoryEntry).expired(m.now()) {
		m.removeLocked(elem)
		return false, nil
	}
	return true, nil
}

// Len reports the number of live entries
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	count := 0
	for _, elem := range m.entries {
		if !elem.Value.(*memoryEntry).expired(now) {
			count++
		}
	}
	return count
}

func (m *MemoryStore) setLocked(key string, value []byte, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = m.now().Add(ttl)
	}
	stored := append([]byte(nil), value...)

	if elem, ok := m.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.value = stored
		entry.expiresAt = expiresAt
		m.lru.MoveToFront(elem)
		return
	}

	elem := m.lru.PushFront(&memoryEntry{key: key, value: stored, expiresAt: expiresAt})
	m.entries[key] = elem

	for len(m.entries) > m.maxSize {
		oldest := m.lru.Back()
		if oldest == nil {
			break
		}
		m.removeLocked(oldest)
	}
}

func (m *MemoryStore) removeLocked(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	m.lru.Remove(elem)
	delete(m.entries, entry.key)
}
