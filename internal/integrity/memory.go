package integrity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quoteforge/quoteforge/internal/quote/model"
)

// chain is one quote's entries plus its own lock. Locking per chain keeps
// appends for different quotes from contending on anything shared.
type chain struct {
	mu      sync.Mutex
	entries []*LedgerEntry
}

// MemoryLedger is an in-memory, thread-safe Ledger implementation: an arena
// of independent per-quote chains keyed by quote id.
type MemoryLedger struct {
	key []byte

	mu     sync.RWMutex
	chains map[string]*chain
}

// NewMemoryLedger creates a MemoryLedger signing with key.
// An empty key is a construction error.
func NewMemoryLedger(key []byte) (*MemoryLedger, error) {
	if len(key) == 0 {
		return nil, ErrNoSigningKey
	}
	return &MemoryLedger{
		key:    key,
		chains: make(map[string]*chain),
	}, nil
}

// getChain returns the chain for quoteID, creating it on first use.
func (l *MemoryLedger) getChain(quoteID string) *chain {
	l.mu.RLock()
	c, ok := l.chains[quoteID]
	l.mu.RUnlock()
	if ok {
		return c
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok = l.chains[quoteID]; ok {
		return c
	}
	c = &chain{}
	l.chains[quoteID] = c
	return c
}

// Append implements Ledger.
func (l *MemoryLedger) Append(_ context.Context, q *model.Quote, action, actor string) (*LedgerEntry, error) {
	c := l.getChain(q.ID.String())
	c.mu.Lock()
	defer c.mu.Unlock()

	prevHash := ""
	if n := len(c.entries); n > 0 {
		prevHash = c.entries[n-1].EntryHash
	}

	entry := &LedgerEntry{
		EntryID:     uuid.New().String(),
		QuoteID:     q.ID.String(),
		Version:     len(c.entries) + 1,
		ContentHash: contentHash(q),
		PrevHash:    prevHash,
		Timestamp:   time.Now().UTC().Truncate(time.Second),
		ActorID:     actor,
		Action:      normalizeAction(action),
	}
	entry.EntryHash = computeEntryHash(entry)
	entry.Signature = sign(l.key, entry.EntryHash)

	c.entries = append(c.entries, entry)
	return entry, nil
}

// VerifyChain implements Ledger.
func (l *MemoryLedger) VerifyChain(_ context.Context, quoteID string) (*VerificationResult, error) {
	l.mu.RLock()
	c, ok := l.chains[quoteID]
	l.mu.RUnlock()
	if !ok {
		return verifyEntries(quoteID, l.key, nil), nil
	}

	c.mu.Lock()
	entries := make([]*LedgerEntry, len(c.entries))
	copy(entries, c.entries)
	c.mu.Unlock()

	return verifyEntries(quoteID, l.key, entries), nil
}

// Chain implements Ledger.
func (l *MemoryLedger) Chain(_ context.Context, quoteID string) ([]*LedgerEntry, error) {
	l.mu.RLock()
	c, ok := l.chains[quoteID]
	l.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entries := make([]*LedgerEntry, len(c.entries))
	copy(entries, c.entries)
	return entries, nil
}

// Entry implements Ledger.
func (l *MemoryLedger) Entry(ctx context.Context, quoteID string, version int) (*LedgerEntry, error) {
	entries, err := l.Chain(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if version < 1 || version > len(entries) {
		return nil, ErrEntryNotFound
	}
	return entries[version-1], nil
}
