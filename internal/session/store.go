package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrNotFound    = errors.New("session not found")
	ErrStoreClosed = errors.New("session store is closed")
	ErrInvalidData = errors.New("invalid session data")
)

// Store keeps serialized sessions by id.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryStore is an in-process Store. Expired items are invisible at once
// and swept by a janitor goroutine.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]memoryItem
	closed bool
	stop   chan struct{}
	now    func() time.Time
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore starts a store that sweeps expired items every interval.
func NewMemoryStore(interval time.Duration) *MemoryStore {
	ms := &MemoryStore{
		items: make(map[string]memoryItem),
		stop:  make(chan struct{}),
		now:   time.Now,
	}
	if interval <= 0 {
		interval = time.Minute
	}
	go ms.janitor(interval)
	return ms
}

func (ms *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if ms.closed {
		return nil, ErrStoreClosed
	}
	item, ok := ms.items[key]
	if !ok || ms.expired(item) {
		return nil, ErrNotFound
	}
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, nil
}

func (ms *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return ErrStoreClosed
	}
	item := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = ms.now().Add(ttl)
	}
	ms.items[key] = item
	return nil
}

func (ms *MemoryStore) Delete(_ context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return ErrStoreClosed
	}
	delete(ms.items, key)
	return nil
}

func (ms *MemoryStore) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return nil
	}
	ms.closed = true
	close(ms.stop)
	return nil
}

// Len counts stored items, expired or not.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.items)
}

func (ms *MemoryStore) expired(item memoryItem) bool {
	return !item.expiresAt.IsZero() && ms.now().After(item.expiresAt)
}

func (ms *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ms.sweep()
		case <-ms.stop:
			return
		}
	}
}

func (ms *MemoryStore) sweep() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	removed := 0
	for key, item := range ms.items {
		if ms.expired(item) {
			delete(ms.items, key)
			removed++
		}
	}
	return removed
}
