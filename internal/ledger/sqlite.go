package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS agent_accounts (
    owner          TEXT    NOT NULL,
    name           TEXT    NOT NULL,
    parent         TEXT    NOT NULL DEFAULT '',
    generation     INTEGER NOT NULL,
    genome_hash    TEXT    NOT NULL,
    genome_uri     TEXT    NOT NULL,
    treasury       INTEGER NOT NULL DEFAULT 0,
    total_earnings INTEGER NOT NULL DEFAULT 0,
    total_costs    INTEGER NOT NULL DEFAULT 0,
    spawn_count    INTEGER NOT NULL DEFAULT 0,
    service_count  INTEGER NOT NULL DEFAULT 0,
    created_at     INTEGER NOT NULL,
    last_active    INTEGER NOT NULL,
    is_alive       INTEGER NOT NULL,
    PRIMARY KEY (owner, name)
);`

type sqliteBackend struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a registry database at path.
func NewSQLite(path, owner string) (*Registry, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path 不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(ledgerSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger schema: %w", err)
	}
	return newRegistry(owner, &sqliteBackend{db: db}), nil
}

type sqliteTxn struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *sqliteTxn) get(owner, name string) (Account, bool, error) {
	row := t.tx.QueryRowContext(t.ctx, `
		SELECT owner, name, parent, generation, genome_hash, genome_uri, treasury,
		       total_earnings, total_costs, spawn_count, service_count,
		       created_at, last_active, is_alive
		FROM agent_accounts WHERE owner = ? AND name = ?`, owner, name)
	var (
		acc                 Account
		createdAt, lastSeen int64
		alive               int
	)
	err := row.Scan(&acc.Owner, &acc.Name, &acc.Parent, &acc.Generation, &acc.GenomeHash, &acc.GenomeURI,
		&acc.Treasury, &acc.TotalEarnings, &acc.TotalCosts, &acc.SpawnCount, &acc.ServiceCount,
		&createdAt, &lastSeen, &alive)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, err
	}
	acc.CreatedAt = time.Unix(createdAt, 0).UTC()
	acc.LastActive = time.Unix(lastSeen, 0).UTC()
	acc.IsAlive = alive != 0
	return acc, true, nil
}

func (t *sqliteTxn) put(acc Account) error {
	alive := 0
	if acc.IsAlive {
		alive = 1
	}
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO agent_accounts (owner, name, parent, generation, genome_hash, genome_uri, treasury,
		    total_earnings, total_costs, spawn_count, service_count, created_at, last_active, is_alive)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, name) DO UPDATE SET
		    parent=excluded.parent,
		    generation=excluded.generation,
		    genome_hash=excluded.genome_hash,
		    genome_uri=excluded.genome_uri,
		    treasury=excluded.treasury,
		    total_earnings=excluded.total_earnings,
		    total_costs=excluded.total_costs,
		    spawn_count=excluded.spawn_count,
		    service_count=excluded.service_count,
		    last_active=excluded.last_active,
		    is_alive=excluded.is_alive`,
		acc.Owner, acc.Name, acc.Parent, acc.Generation, acc.GenomeHash, acc.GenomeURI, acc.Treasury,
		acc.TotalEarnings, acc.TotalCosts, acc.SpawnCount, acc.ServiceCount,
		acc.CreatedAt.Unix(), acc.LastActive.Unix(), alive)
	return err
}

func (b *sqliteBackend) update(ctx context.Context, fn func(tx txn) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&sqliteTxn{ctx: ctx, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (b *sqliteBackend) view(ctx context.Context, fn func(tx txn) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	return fn(&sqliteTxn{ctx: ctx, tx: tx})
}

func (b *sqliteBackend) close() error {
	return b.db.Close()
}
