package book

import (
	"sync"

	"github.com/abdoElHodaky/hft-core/internal/wire"
)

// Manager owns one Book per symbol, auto-creating books on first update.
type Manager struct {
	mu    sync.RWMutex
	books map[string]*Book
}

// NewManager creates an empty book manager.
func NewManager() *Manager {
	return &Manager{books: make(map[string]*Book)}
}

// Get returns the book for symbol, creating it if necessary.
func (m *Manager) Get(symbol string) *Book {
	m.mu.RLock()
	b, ok := m.books[symbol]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.books[symbol]; ok {
		return b
	}
	b = New(symbol)
	m.books[symbol] = b
	return b
}

// ProcessUpdate routes u to its symbol's book, creating the book if this
// is the first update seen for it.
func (m *Manager) ProcessUpdate(u wire.OrderBookUpdate, exchangeTsNs uint64) bool {
	return m.Get(u.Symbol).ApplyUpdate(u, exchangeTsNs)
}

// Count returns the number of tracked symbols.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.books)
}

// Symbols returns the set of tracked symbols.
func (m *Manager) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.books))
	for s := range m.books {
		out = append(out, s)
	}
	return out
}
