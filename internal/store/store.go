// Package store defines the persistence interface for the credit manager.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/holiman/uint256"

	"github.com/rover/credit-manager/internal/model"
)

var (
	// ErrNotFound is returned when an account or the config does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists is returned when creating an account whose id is taken.
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrOverflow is returned when a commit would overflow a balance or a share
	// count. Nothing from the changeset is applied.
	ErrOverflow = errors.New("store: amount overflows")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Account registry ---

	// CreateAccount persists a new account with an empty position.
	CreateAccount(ctx context.Context, account *model.Account) error

	// GetAccount retrieves an account (and so its owner) by id.
	GetAccount(ctx context.Context, id string) (*model.Account, error)

	// --- Positions ---

	// GetPosition returns the full position of an account. Never partial.
	GetPosition(ctx context.Context, accountID string) (*model.Position, error)

	// --- Debt share totals ---

	// GetTotalDebtShares returns the total shares issued for denom, zero if
	// the denom was never borrowed.
	GetTotalDebtShares(ctx context.Context, denom string) (*uint256.Int, error)

	// ListTotalDebtShares returns the totals of every borrowed denom, sorted
	// by denom.
	ListTotalDebtShares(ctx context.Context) ([]model.CoinShares, error)

	// --- Atomic commit ---

	// Commit applies a request's changeset in one transaction: balance
	// credits and share credits to the account, share credits to the
	// denom totals. Either everything is applied or nothing is.
	Commit(ctx context.Context, cs *model.Changeset) error

	// --- Admin config ---

	// GetConfig returns the current config, ErrNotFound before bootstrap.
	GetConfig(ctx context.Context) (*model.Config, error)

	// SaveConfig replaces the config.
	SaveConfig(ctx context.Context, cfg *model.Config) error
}

// Cached is implemented by stores that serve reads from a cache in front of
// a source of truth.
type Cached interface {
	Store
	Primary() Store
}

// SourceOfTruth returns the store behind any cache layers of st. Reads that
// feed share issuance or authorization go here, never to a cache.
func SourceOfTruth(st Store) Store {
	for {
		c, ok := st.(Cached)
		if !ok {
			return st
		}
		st = c.Primary()
	}
}
