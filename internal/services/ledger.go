package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/Lllllllleong/payslipflow/internal/models"
)

// LedgerStore is the durable backing of the delivery ledger. Load runs once
// before first use; Append runs after every successful delivery and must be
// flushed before it returns.
type LedgerStore interface {
	Load(ctx context.Context) ([]models.LedgerEntry, error)
	Append(ctx context.Context, entry models.LedgerEntry) error
}

// Ledger is the in-memory "already delivered" set seeded from a LedgerStore.
// It is addressed exclusively by canonical key; display filenames never enter
// the ledger, so renaming templates between runs cannot unlock re-delivery.
type Ledger struct {
	store LedgerStore

	mu        sync.RWMutex
	delivered map[string]models.LedgerEntry

	keyLocks sync.Map // canonical key -> *sync.Mutex
}

// NewLedger loads the durable ledger. A store that cannot be read is a
// run-level failure: processing must not start without the delivered set.
func NewLedger(ctx context.Context, store LedgerStore) (*Ledger, error) {
	entries, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger store unavailable: %w", err)
	}
	delivered := make(map[string]models.LedgerEntry, len(entries))
	for _, e := range entries {
		delivered[e.Key] = e
	}
	return &Ledger{store: store, delivered: delivered}, nil
}

// IsDelivered reports whether the key has ever been delivered successfully.
func (l *Ledger) IsDelivered(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.delivered[key]
	return ok
}

// Entry returns the ledger entry for a delivered key.
func (l *Ledger) Entry(key string) (models.LedgerEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.delivered[key]
	return e, ok
}

// Len returns the number of delivered keys.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.delivered)
}

// RecordSuccess appends the entry durably, then publishes it to the in-memory
// set. Readers observe either the old or the fully updated set, never a
// partial write.
func (l *Ledger) RecordSuccess(ctx context.Context, entry models.LedgerEntry) error {
	if err := l.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to persist ledger entry for %s: %w", entry.Key, err)
	}
	l.mu.Lock()
	l.delivered[entry.Key] = entry
	l.mu.Unlock()
	return nil
}

// lockKey takes the per-key delivery lock, so two attempts for the same
// canonical key can never run concurrently. The returned func releases it.
func (l *Ledger) lockKey(key string) func() {
	muAny, _ := l.keyLocks.LoadOrStore(key, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
