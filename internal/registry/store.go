package registry

import (
	"context"
	"fmt"
)

// Store persists accounts keyed by derived address. Implementations serialize
// Update calls that touch overlapping addresses.
type Store interface {
	// Update runs fn in a transaction. Writes staged by fn are committed
	// together once fn returns nil and discarded otherwise. accounts lists every
	// address fn may touch.
	Update(ctx context.Context, accounts []Address, fn func(ctx context.Context, tx Tx) error) error
	// View runs fn against a read-only snapshot.
	View(ctx context.Context, accounts []Address, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}

// Tx is the per-invocation view of the store.
type Tx interface {
	// Get resolves addr. found is false when no account lives there.
	Get(ctx context.Context, addr Address) (acct Account, found bool, err error)
	// Create allocates a new account and fails with ErrAlreadyExists when addr
	// is occupied.
	Create(ctx context.Context, addr Address, acct Account) error
	// Put overwrites an existing account within its allocated space.
	Put(ctx context.Context, addr Address, acct Account) error
	// Delete releases the account at addr and returns the space it held.
	Delete(ctx context.Context, addr Address) (int, error)
}

type writeOp uint8

const (
	opCreate writeOp = iota + 1
	opPut
	opDelete
)

type write struct {
	op   writeOp
	addr Address
	acct Account
}

type readFunc func(ctx context.Context, addr Address) (Account, bool, error)

// stagedTx buffers writes on top of a backend reader. Backends replay the
// resulting write set inside their own commit.
type stagedTx struct {
	read     readFunc
	readOnly bool
	writes   []write
	index    map[Address]int
}

func newStagedTx(read readFunc, readOnly bool) *stagedTx {
	return &stagedTx{read: read, readOnly: readOnly, index: make(map[Address]int)}
}

func (t *stagedTx) Get(ctx context.Context, addr Address) (Account, bool, error) {
	if i, ok := t.index[addr]; ok {
		w := t.writes[i]
		if w.op == opDelete {
			return Account{}, false, nil
		}
		return w.acct, true, nil
	}
	return t.read(ctx, addr)
}

func (t *stagedTx) Create(ctx context.Context, addr Address, acct Account) error {
	if t.readOnly {
		return ErrReadOnly
	}
	_, found, err := t.Get(ctx, addr)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("create %s account %s: %w", acct.Kind, addr, ErrAlreadyExists)
	}
	if len(acct.Data) > acct.Space {
		return fmt.Errorf("create %s account: %d bytes into %d: %w", acct.Kind, len(acct.Data), acct.Space, ErrAllocation)
	}
	t.stage(write{op: opCreate, addr: addr, acct: acct})
	return nil
}

func (t *stagedTx) Put(ctx context.Context, addr Address, acct Account) error {
	if t.readOnly {
		return ErrReadOnly
	}
	existing, found, err := t.Get(ctx, addr)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("put %s account %s: %w", acct.Kind, addr, ErrNotFound)
	}
	if acct.Kind != existing.Kind {
		return fmt.Errorf("put %s over %s account: %w", acct.Kind, existing.Kind, ErrCorruptAccount)
	}
	if len(acct.Data) > existing.Space {
		return fmt.Errorf("put %s account: %d bytes into %d: %w", acct.Kind, len(acct.Data), existing.Space, ErrAllocation)
	}
	acct.Space = existing.Space
	t.stage(write{op: opPut, addr: addr, acct: acct})
	return nil
}

func (t *stagedTx) Delete(ctx context.Context, addr Address) (int, error) {
	if t.readOnly {
		return 0, ErrReadOnly
	}
	existing, found, err := t.Get(ctx, addr)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("delete account %s: %w", addr, ErrNotFound)
	}
	t.stage(write{op: opDelete, addr: addr, acct: existing})
	return existing.Space, nil
}

// stage merges w into the write set so that each address is written once.
func (t *stagedTx) stage(w write) {
	i, ok := t.index[w.addr]
	if !ok {
		t.index[w.addr] = len(t.writes)
		t.writes = append(t.writes, w)
		return
	}
	prev := t.writes[i].op
	switch {
	case prev == opCreate && w.op == opPut:
		w.op = opCreate
	case prev == opCreate && w.op == opDelete:
		// never reached the backend; drop it
		t.writes = append(t.writes[:i], t.writes[i+1:]...)
		delete(t.index, w.addr)
		for j := i; j < len(t.writes); j++ {
			t.index[t.writes[j].addr] = j
		}
		return
	case prev == opDelete && w.op == opCreate:
		w.op = opPut
	}
	t.writes[i] = w
}
