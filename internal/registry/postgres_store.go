package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS registry_accounts (
    address    BYTEA PRIMARY KEY,
    kind       SMALLINT NOT NULL,
    space      INTEGER NOT NULL,
    data       BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore persists accounts in PostgreSQL, locking the touched rows for
// the duration of each update.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Postgres-backed store and ensures its table exists.
func NewPostgresStore(ctx context.Context, db *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("create registry_accounts: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Update runs fn inside a read-committed transaction with row locks on every read.
func (s *PostgresStore) Update(ctx context.Context, _ []Address, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// Serializes exclusive creates racing on a not-yet-existing row.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('registry_accounts'))`); err != nil {
		return err
	}

	staged := newStagedTx(func(ctx context.Context, addr Address) (Account, bool, error) {
		return readAccount(ctx, tx, addr, true)
	}, false)
	if err := fn(ctx, staged); err != nil {
		return err
	}

	for _, w := range staged.writes {
		if err := applyPostgresWrite(ctx, tx, w); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// View runs fn inside a read-only transaction.
func (s *PostgresStore) View(ctx context.Context, _ []Address, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	return fn(ctx, newStagedTx(func(ctx context.Context, addr Address) (Account, bool, error) {
		return readAccount(ctx, tx, addr, false)
	}, true))
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

func readAccount(ctx context.Context, tx pgx.Tx, addr Address, lock bool) (Account, bool, error) {
	query := `SELECT kind, space, data FROM registry_accounts WHERE address = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var (
		kind  int16
		space int32
		acct  Account
	)
	if err := tx.QueryRow(ctx, query, addr[:]).Scan(&kind, &space, &acct.Data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, false, nil
		}
		return Account{}, false, fmt.Errorf("read account %s: %w", addr, err)
	}
	acct.Kind = Kind(kind)
	acct.Space = int(space)
	return acct, true, nil
}

func applyPostgresWrite(ctx context.Context, tx pgx.Tx, w write) error {
	switch w.op {
	case opCreate:
		cmd, err := tx.Exec(ctx, `INSERT INTO registry_accounts (address, kind, space, data)
        VALUES ($1, $2, $3, $4) ON CONFLICT (address) DO NOTHING`, w.addr[:], int16(w.acct.Kind), int32(w.acct.Space), w.acct.Data)
		if err != nil {
			return fmt.Errorf("insert account %s: %w", w.addr, err)
		}
		if cmd.RowsAffected() == 0 {
			return fmt.Errorf("insert account %s: %w", w.addr, ErrAlreadyExists)
		}
	case opPut:
		cmd, err := tx.Exec(ctx, `UPDATE registry_accounts SET kind = $2, space = $3, data = $4, updated_at = now()
        WHERE address = $1`, w.addr[:], int16(w.acct.Kind), int32(w.acct.Space), w.acct.Data)
		if err != nil {
			return fmt.Errorf("update account %s: %w", w.addr, err)
		}
		if cmd.RowsAffected() == 0 {
			return fmt.Errorf("update account %s: %w", w.addr, ErrNotFound)
		}
	case opDelete:
		cmd, err := tx.Exec(ctx, `DELETE FROM registry_accounts WHERE address = $1`, w.addr[:])
		if err != nil {
			return fmt.Errorf("delete account %s: %w", w.addr, err)
		}
		if cmd.RowsAffected() == 0 {
			return fmt.Errorf("delete account %s: %w", w.addr, ErrNotFound)
		}
	}
	return nil
}
