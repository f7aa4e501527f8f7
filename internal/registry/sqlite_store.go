package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore persists accounts in a SQLite database file.
type SQLiteStore struct {
	db        *sql.DB
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path and ensures the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS registry_accounts (
			address    BLOB    PRIMARY KEY,
			kind       INTEGER NOT NULL,
			space      INTEGER NOT NULL,
			data       BLOB    NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db, writeLock: new(sync.Mutex)}, nil
}

// Update implements Store.Update with a single writer at a time.
func (s *SQLiteStore) Update(ctx context.Context, _ []Address, fn func(ctx context.Context, tx Tx) error) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	staged := newStagedTx(func(ctx context.Context, addr Address) (Account, bool, error) {
		return querySQLiteAccount(ctx, tx, addr)
	}, false)
	if err := fn(ctx, staged); err != nil {
		return err
	}

	now := time.Now().Unix()
	for _, w := range staged.writes {
		if err := applySQLiteWrite(ctx, tx, w, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// View implements Store.View.
func (s *SQLiteStore) View(ctx context.Context, _ []Address, fn func(ctx context.Context, tx Tx) error) error {
	return fn(ctx, newStagedTx(func(ctx context.Context, addr Address) (Account, bool, error) {
		return querySQLiteAccount(ctx, s.db, addr)
	}, true))
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

type sqliteQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func querySQLiteAccount(ctx context.Context, q sqliteQuerier, addr Address) (Account, bool, error) {
	var acct Account
	err := q.QueryRowContext(ctx,
		"SELECT kind, space, data FROM registry_accounts WHERE address = ?",
		addr[:],
	).Scan(&acct.Kind, &acct.Space, &acct.Data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, false, nil
		}
		return Account{}, false, fmt.Errorf("query account %s: %w", addr, err)
	}
	return acct, true, nil
}

func applySQLiteWrite(ctx context.Context, tx *sql.Tx, w write, now int64) error {
	switch w.op {
	case opCreate:
		_, err := tx.ExecContext(ctx,
			"INSERT INTO registry_accounts (address, kind, space, data, updated_at) VALUES (?, ?, ?, ?, ?)",
			w.addr[:], int(w.acct.Kind), w.acct.Space, w.acct.Data, now,
		)
		if err != nil {
			var liteErr *sqlite.Error
			if errors.As(err, &liteErr) {
				switch liteErr.Code() {
				case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
					err = errors.Join(ErrAlreadyExists, err)
				}
			}
			return fmt.Errorf("insert account %s: %w", w.addr, err)
		}
	case opPut:
		res, err := tx.ExecContext(ctx,
			"UPDATE registry_accounts SET kind = ?, space = ?, data = ?, updated_at = ? WHERE address = ?",
			int(w.acct.Kind), w.acct.Space, w.acct.Data, now, w.addr[:],
		)
		if err != nil {
			return fmt.Errorf("update account %s: %w", w.addr, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("update account %s: %w", w.addr, ErrNotFound)
		}
	case opDelete:
		res, err := tx.ExecContext(ctx, "DELETE FROM registry_accounts WHERE address = ?", w.addr[:])
		if err != nil {
			return fmt.Errorf("delete account %s: %w", w.addr, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("delete account %s: %w", w.addr, ErrNotFound)
		}
	}
	return nil
}
