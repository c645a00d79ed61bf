package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/rover/credit-manager/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu          sync.RWMutex
	accounts    map[string]*model.Account
	positions   map[string]*model.Position
	totalShares map[string]*uint256.Int
	config      *model.Config
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:    make(map[string]*model.Account),
		positions:   make(map[string]*model.Position),
		totalShares: make(map[string]*uint256.Int),
	}
}

func (s *MemoryStore) CreateAccount(_ context.Context, a *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; ok {
		return fmt.Errorf("%w: account %s", ErrAlreadyExists, a.ID)
	}

	// Store a copy to avoid external mutation.
	copy := *a
	s.accounts[a.ID] = &copy
	s.positions[a.ID] = model.NewPosition(a.ID)
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	copy := *a
	return &copy, nil
}

func (s *MemoryStore) GetPosition(_ context.Context, accountID string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, accountID)
	}
	return p.Clone(), nil
}

func (s *MemoryStore) GetTotalDebtShares(_ context.Context, denom string) (*uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.totalShares[denom]; ok {
		return v.Clone(), nil
	}
	return new(uint256.Int), nil
}

func (s *MemoryStore) ListTotalDebtShares(_ context.Context) ([]model.CoinShares, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make([]model.CoinShares, 0, len(s.totalShares))
	for _, d := range model.SortedDenoms(s.totalShares) {
		totals = append(totals, model.CoinShares{Denom: d, Shares: s.totalShares[d].Clone()})
	}
	return totals, nil
}

// Commit computes every new value before assigning any, so an overflow
// leaves the store untouched.
func (s *MemoryStore) Commit(_ context.Context, cs *model.Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[cs.AccountID]
	if !ok {
		return fmt.Errorf("%w: account %s", ErrNotFound, cs.AccountID)
	}

	next, ok := cs.ApplyTo(pos)
	if !ok {
		return fmt.Errorf("%w: account %s", ErrOverflow, cs.AccountID)
	}

	totals := make(map[string]*uint256.Int, len(cs.Shares))
	for d, minted := range cs.Shares {
		cur, ok := s.totalShares[d]
		if !ok {
			cur = new(uint256.Int)
		}
		sum, overflow := new(uint256.Int).AddOverflow(cur, minted)
		if overflow {
			return fmt.Errorf("%w: total shares of %s", ErrOverflow, d)
		}
		totals[d] = sum
	}

	s.positions[cs.AccountID] = next
	for d, v := range totals {
		s.totalShares[d] = v
	}
	return nil
}

func (s *MemoryStore) GetConfig(_ context.Context) (*model.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.config == nil {
		return nil, fmt.Errorf("%w: config", ErrNotFound)
	}
	return cloneConfig(s.config), nil
}

func (s *MemoryStore) SaveConfig(_ context.Context, cfg *model.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config = cloneConfig(cfg)
	return nil
}

func cloneConfig(cfg *model.Config) *model.Config {
	out := *cfg
	out.AllowedCoins = append([]model.CoinParams(nil), cfg.AllowedCoins...)
	return &out
}
