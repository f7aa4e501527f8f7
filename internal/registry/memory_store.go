package registry

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu       sync.RWMutex
	accounts map[Address]Account
}

// NewMemoryStore builds an in-memory account store for development and tests.
func NewMemoryStore() Store {
	return &memoryStore{accounts: make(map[Address]Account)}
}

func (s *memoryStore) Update(ctx context.Context, _ []Address, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newStagedTx(s.read, false)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for _, w := range tx.writes {
		switch w.op {
		case opCreate, opPut:
			s.accounts[w.addr] = cloneAccount(w.acct)
		case opDelete:
			delete(s.accounts, w.addr)
		}
	}
	return nil
}

func (s *memoryStore) View(ctx context.Context, _ []Address, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, newStagedTx(s.read, true))
}

func (s *memoryStore) Close() error { return nil }

func (s *memoryStore) read(_ context.Context, addr Address) (Account, bool, error) {
	acct, ok := s.accounts[addr]
	if !ok {
		return Account{}, false, nil
	}
	return cloneAccount(acct), true, nil
}

func cloneAccount(acct Account) Account {
	acct.Data = append([]byte(nil), acct.Data...)
	return acct
}
