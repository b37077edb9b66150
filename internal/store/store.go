// Package store keeps recent batch results in memory for retrieval and
// export. Results expire; nothing is persisted.
package store

import (
	"container/list"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
)

// ResultStore is a thread-safe LRU of batch results with TTL expiry.
type ResultStore struct {
	mu      sync.RWMutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	order   *list.List
}

type storeEntry struct {
	id        string
	result    *domain.BatchResult
	expiresAt time.Time
}

// New creates a result store holding at most maxSize results, each kept for
// ttl after its last Put.
func New(maxSize int, ttl time.Duration) *ResultStore {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResultStore{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Put stores a result under its batch ID, evicting the least recently used
// entries when over capacity.
func (s *ResultStore) Put(result *domain.BatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[result.ID]; ok {
		s.order.MoveToFront(elem)
		entry := elem.Value.(*storeEntry)
		entry.result = result
		entry.expiresAt = time.Now().Add(s.ttl)
		return
	}

	entry := &storeEntry{
		id:        result.ID,
		result:    result,
		expiresAt: time.Now().Add(s.ttl),
	}
	elem := s.order.PushFront(entry)
	s.items[result.ID] = elem

	for s.order.Len() > s.maxSize {
		s.removeOldest()
	}

	metrics.StoreEntries.Set(float64(s.order.Len()))
}

// Get retrieves a result by batch ID. Expired entries are removed on access.
func (s *ResultStore) Get(id string) (*domain.BatchResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[id]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*storeEntry)
	if time.Now().After(entry.expiresAt) {
		s.removeElement(elem)
		metrics.StoreEntries.Set(float64(s.order.Len()))
		return nil, false
	}

	s.order.MoveToFront(elem)
	return entry.result, true
}

// Delete removes a result by batch ID.
func (s *ResultStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[id]; ok {
		s.removeElement(elem)
		metrics.StoreEntries.Set(float64(s.order.Len()))
	}
}

// Len returns the number of stored results, expired entries included.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.order.Len()
}

// Stats returns the current size and the configured capacity.
func (s *ResultStore) Stats() (size int, capacity int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.order.Len(), s.maxSize
}

func (s *ResultStore) removeElement(elem *list.Element) {
	s.order.Remove(elem)
	entry := elem.Value.(*storeEntry)
	delete(s.items, entry.id)
}

func (s *ResultStore) removeOldest() {
	elem := s.order.Back()
	if elem != nil {
		s.removeElement(elem)
	}
}
