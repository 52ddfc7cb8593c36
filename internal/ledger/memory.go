package ledger

import (
	"context"
	"sync"
)

type accountKey struct {
	owner string
	name  string
}

type memoryBackend struct {
	mu       sync.RWMutex
	accounts map[accountKey]Account
}

// NewMemory returns a registry kept in process memory.
func NewMemory(owner string) *Registry {
	return newRegistry(owner, &memoryBackend{accounts: make(map[accountKey]Account)})
}

type memoryTxn struct {
	base    map[accountKey]Account
	pending map[accountKey]Account
}

func (t *memoryTxn) get(owner, name string) (Account, bool, error) {
	k := accountKey{owner: owner, name: name}
	if acc, ok := t.pending[k]; ok {
		return acc, true, nil
	}
	acc, ok := t.base[k]
	return acc, ok, nil
}

func (t *memoryTxn) put(acc Account) error {
	if t.pending == nil {
		t.pending = make(map[accountKey]Account)
	}
	t.pending[accountKey{owner: acc.Owner, name: acc.Name}] = acc
	return nil
}

// update stages writes and applies them only when fn succeeds.
func (b *memoryBackend) update(ctx context.Context, fn func(tx txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	tx := &memoryTxn{base: b.accounts}
	if err := fn(tx); err != nil {
		return err
	}
	for k, acc := range tx.pending {
		b.accounts[k] = acc
	}
	return nil
}

func (b *memoryBackend) view(ctx context.Context, fn func(tx txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return fn(&memoryTxn{base: b.accounts})
}

func (b *memoryBackend) close() error { return nil }
