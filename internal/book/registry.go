package book

import (
	"sort"
	"sync"
)

// Registry maps asset IDs to their order books. Entries are created on first
// event and never evicted: instrument sets in this domain are small and
// bounded. The Registry exclusively owns all OrderBook instances.
type Registry struct {
	mu         sync.RWMutex
	books      map[string]*OrderBook
	historyCap int
}

// NewRegistry creates an empty registry. historyCap bounds each book's
// best-price history (<= 0 uses DefaultHistoryCap).
func NewRegistry(historyCap int) *Registry {
	return &Registry{
		books:      make(map[string]*OrderBook),
		historyCap: historyCap,
	}
}

// GetOrCreate returns the book for the asset, creating an empty one on first
// sight. It never fails: a delta arriving before the first snapshot simply
// populates a fresh book.
func (r *Registry) GetOrCreate(assetID string) *OrderBook {
	r.mu.RLock()
	b, ok := r.books[assetID]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.books[assetID]; ok {
		return b
	}
	b = NewOrderBook(assetID, r.historyCap)
	r.books[assetID] = b
	return b
}

// Get returns the book for the asset without creating one.
func (r *Registry) Get(assetID string) (*OrderBook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[assetID]
	return b, ok
}

// AssetIDs returns the tracked asset IDs in sorted order.
func (r *Registry) AssetIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.books))
	for id := range r.books {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of tracked assets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.books)
}
