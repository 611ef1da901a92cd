package history

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
}

func NewMemory(capacity int) *MemoryStore {
	capacity = normalizeCapacity(capacity)
	return &MemoryStore{capacity: capacity, entries: make([]Entry, 0, capacity)}
}

func (m *MemoryStore) List(context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

func (m *MemoryStore) Append(_ context.Context, entry Entry) error {
	if err := validateEntry("history.memory.append", entry); err != nil {
		return err
	}

	entry.Keywords = append([]string{}, entry.Keywords...)

	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]Entry, 0, m.capacity)
	entries = append(entries, entry)
	for _, e := range m.entries {
		if len(entries) == m.capacity {
			break
		}
		entries = append(entries, e)
	}
	m.entries = entries
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	m.entries = m.entries[:0]
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
