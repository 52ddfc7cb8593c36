// Package ledger is the agent registry: one account per (owner, name)
// carrying lineage, genome reference and treasury in minor units. The
// simulation treats it as advisory; its own in-memory state stays
// authoritative.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	MaxNameLen = 32
	MaxURILen  = 128

	// MinSpawnSeed is the smallest treasury a child may be seeded with.
	MinSpawnSeed int64 = 100_000_000
	// MinOperatingReserve must remain with the parent after seeding a child.
	MinOperatingReserve int64 = 50_000_000
)

var (
	ErrAgentDead             = errors.New("agent is dead")
	ErrInsufficientTreasury  = errors.New("insufficient treasury balance")
	ErrInsufficientSpawnSeed = errors.New("insufficient seed amount for spawn")
	ErrNameTooLong           = fmt.Errorf("name too long (max %d bytes)", MaxNameLen)
	ErrURITooLong            = fmt.Errorf("uri too long (max %d bytes)", MaxURILen)
	ErrAgentExists           = errors.New("agent already exists")
	ErrAgentNotFound         = errors.New("agent not found")
	ErrInvalidAmount         = errors.New("amount must be positive")
)

type Account struct {
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	Parent        string    `json:"parent,omitempty"`
	Generation    int       `json:"generation"`
	GenomeHash    string    `json:"genomeHash"`
	GenomeURI     string    `json:"genomeUri"`
	Treasury      int64     `json:"treasury"`
	TotalEarnings int64     `json:"totalEarnings"`
	TotalCosts    int64     `json:"totalCosts"`
	SpawnCount    int       `json:"spawnCount"`
	ServiceCount  int       `json:"serviceCount"`
	CreatedAt     time.Time `json:"createdAt"`
	LastActive    time.Time `json:"lastActive"`
	IsAlive       bool      `json:"isAlive"`
}

// Ledger is the registry contract the evolution loop calls.
type Ledger interface {
	CreateAgent(ctx context.Context, name, genomeHash, genomeURI string) (Account, error)
	FundTreasury(ctx context.Context, name string, amount int64) error
	Spawn(ctx context.Context, parent, child, genomeHash, genomeURI string, seed int64) (Account, error)
	GetAgent(ctx context.Context, name string) (Account, error)
	RecordEarnings(ctx context.Context, name string, amount int64) error
	DeductCosts(ctx context.Context, name string, amount int64) error
	UpdateGenome(ctx context.Context, name, genomeHash, genomeURI string) error
	KillAgent(ctx context.Context, name string) error
	Close() error
}

// txn is the per-operation view a backend hands to the registry rules.
type txn interface {
	get(owner, name string) (Account, bool, error)
	put(acc Account) error
}

type backend interface {
	update(ctx context.Context, fn func(tx txn) error) error
	view(ctx context.Context, fn func(tx txn) error) error
	close() error
}

// Registry applies the account rules on top of a storage backend.
type Registry struct {
	owner string
	store backend
	now   func() time.Time
}

var _ Ledger = (*Registry)(nil)

func newRegistry(owner string, store backend) *Registry {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		owner = "local"
	}
	return &Registry{owner: owner, store: store, now: time.Now}
}

// SetClock replaces the time source; tests only.
func (r *Registry) SetClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

func (r *Registry) Owner() string { return r.owner }

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	if len(name) > MaxNameLen {
		return ErrNameTooLong
	}
	return nil
}

func validateURI(uri string) error {
	if len(uri) > MaxURILen {
		return ErrURITooLong
	}
	return nil
}

func (r *Registry) load(tx txn, name string) (Account, error) {
	acc, ok, err := tx.get(r.owner, name)
	if err != nil {
		return Account{}, err
	}
	if !ok {
		return Account{}, fmt.Errorf("%s: %w", name, ErrAgentNotFound)
	}
	return acc, nil
}

func (r *Registry) fresh(name, parent string, generation int, hash, uri string, treasury int64) Account {
	now := r.now().UTC()
	return Account{
		Owner:      r.owner,
		Name:       name,
		Parent:     parent,
		Generation: generation,
		GenomeHash: hash,
		GenomeURI:  uri,
		Treasury:   treasury,
		CreatedAt:  now,
		LastActive: now,
		IsAlive:    true,
	}
}

func (r *Registry) CreateAgent(ctx context.Context, name, genomeHash, genomeURI string) (Account, error) {
	if err := validateName(name); err != nil {
		return Account{}, err
	}
	if err := validateURI(genomeURI); err != nil {
		return Account{}, err
	}
	var created Account
	err := r.store.update(ctx, func(tx txn) error {
		if _, ok, err := tx.get(r.owner, name); err != nil {
			return err
		} else if ok {
			return fmt.Errorf("%s: %w", name, ErrAgentExists)
		}
		created = r.fresh(name, "", 1, genomeHash, genomeURI, 0)
		return tx.put(created)
	})
	return created, err
}

func (r *Registry) FundTreasury(ctx context.Context, name string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return r.store.update(ctx, func(tx txn) error {
		acc, err := r.load(tx, name)
		if err != nil {
			return err
		}
		acc.Treasury += amount
		return tx.put(acc)
	})
}

// Spawn seeds a child from a live parent that keeps at least
// MinOperatingReserve afterwards.
func (r *Registry) Spawn(ctx context.Context, parent, child, genomeHash, genomeURI string, seed int64) (Account, error) {
	if err := validateName(child); err != nil {
		return Account{}, err
	}
	if err := validateURI(genomeURI); err != nil {
		return Account{}, err
	}
	var created Account
	err := r.store.update(ctx, func(tx txn) error {
		p, err := r.load(tx, parent)
		if err != nil {
			return err
		}
		if !p.IsAlive {
			return fmt.Errorf("%s: %w", parent, ErrAgentDead)
		}
		if p.Treasury < seed+MinOperatingReserve {
			return fmt.Errorf("%s treasury %d < seed %d + reserve %d: %w",
				parent, p.Treasury, seed, MinOperatingReserve, ErrInsufficientTreasury)
		}
		if seed < MinSpawnSeed {
			return fmt.Errorf("seed %d < %d: %w", seed, MinSpawnSeed, ErrInsufficientSpawnSeed)
		}
		if _, ok, err := tx.get(r.owner, child); err != nil {
			return err
		} else if ok {
			return fmt.Errorf("%s: %w", child, ErrAgentExists)
		}
		created = r.fresh(child, p.Name, p.Generation+1, genomeHash, genomeURI, seed)
		p.Treasury -= seed
		p.SpawnCount++
		if err := tx.put(p); err != nil {
			return err
		}
		return tx.put(created)
	})
	return created, err
}

func (r *Registry) GetAgent(ctx context.Context, name string) (Account, error) {
	var acc Account
	err := r.store.view(ctx, func(tx txn) error {
		var err error
		acc, err = r.load(tx, name)
		return err
	})
	return acc, err
}

func (r *Registry) RecordEarnings(ctx context.Context, name string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return r.store.update(ctx, func(tx txn) error {
		acc, err := r.load(tx, name)
		if err != nil {
			return err
		}
		if !acc.IsAlive {
			return fmt.Errorf("%s: %w", name, ErrAgentDead)
		}
		acc.Treasury += amount
		acc.TotalEarnings += amount
		acc.ServiceCount++
		acc.LastActive = r.now().UTC()
		return tx.put(acc)
	})
}

// DeductCosts debits the treasury; reaching exactly zero kills the account.
func (r *Registry) DeductCosts(ctx context.Context, name string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return r.store.update(ctx, func(tx txn) error {
		acc, err := r.load(tx, name)
		if err != nil {
			return err
		}
		if !acc.IsAlive {
			return fmt.Errorf("%s: %w", name, ErrAgentDead)
		}
		if acc.Treasury < amount {
			return fmt.Errorf("%s treasury %d < %d: %w", name, acc.Treasury, amount, ErrInsufficientTreasury)
		}
		acc.Treasury -= amount
		acc.TotalCosts += amount
		acc.LastActive = r.now().UTC()
		if acc.Treasury == 0 {
			acc.IsAlive = false
		}
		return tx.put(acc)
	})
}

func (r *Registry) UpdateGenome(ctx context.Context, name, genomeHash, genomeURI string) error {
	if err := validateURI(genomeURI); err != nil {
		return err
	}
	return r.store.update(ctx, func(tx txn) error {
		acc, err := r.load(tx, name)
		if err != nil {
			return err
		}
		if !acc.IsAlive {
			return fmt.Errorf("%s: %w", name, ErrAgentDead)
		}
		acc.GenomeHash = genomeHash
		acc.GenomeURI = genomeURI
		return tx.put(acc)
	})
}

func (r *Registry) KillAgent(ctx context.Context, name string) error {
	return r.store.update(ctx, func(tx txn) error {
		acc, err := r.load(tx, name)
		if err != nil {
			return err
		}
		acc.IsAlive = false
		return tx.put(acc)
	})
}

func (r *Registry) Close() error {
	return r.store.close()
}
