package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"

	"github.com/rover/credit-manager/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
//
// A read that misses can refill a key after a concurrent commit deleted it,
// so cached values may lag the primary. Callers must serialize cache reads
// with commits, and must read anything that feeds share issuance or
// authorization from Primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// Primary returns the store behind the cache.
func (s *CachedStore) Primary() Store {
	return s.primary
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateAccount(ctx context.Context, a *model.Account) error {
	if err := s.primary.CreateAccount(ctx, a); err != nil {
		return err
	}
	s.cacheJSON(ctx, accountKey(a.ID), a)
	return nil
}

func (s *CachedStore) Commit(ctx context.Context, cs *model.Changeset) error {
	if err := s.primary.Commit(ctx, cs); err != nil {
		return err
	}
	// Invalidate; next read will re-populate.
	keys := []string{positionKey(cs.AccountID), totalsListKey}
	for d := range cs.Shares {
		keys = append(keys, totalSharesKey(d))
	}
	s.invalidate(ctx, keys...)
	return nil
}

func (s *CachedStore) SaveConfig(ctx context.Context, cfg *model.Config) error {
	if err := s.primary.SaveConfig(ctx, cfg); err != nil {
		return err
	}
	s.invalidate(ctx, configKey)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	if s.readJSON(ctx, accountKey(id), &a) {
		return &a, nil
	}

	// Cache miss: read from primary.
	acct, err := s.primary.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheJSON(ctx, accountKey(id), acct)
	return acct, nil
}

func (s *CachedStore) GetPosition(ctx context.Context, accountID string) (*model.Position, error) {
	var p model.Position
	if s.readJSON(ctx, positionKey(accountID), &p) {
		if p.Coins == nil {
			p.Coins = make(map[string]*uint256.Int)
		}
		if p.DebtShares == nil {
			p.DebtShares = make(map[string]*uint256.Int)
		}
		return &p, nil
	}

	pos, err := s.primary.GetPosition(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.cacheJSON(ctx, positionKey(accountID), pos)
	return pos, nil
}

func (s *CachedStore) GetTotalDebtShares(ctx context.Context, denom string) (*uint256.Int, error) {
	if v, err := s.rdb.Get(ctx, totalSharesKey(denom)).Result(); err == nil {
		if shares, err := uint256.FromDecimal(v); err == nil {
			return shares, nil
		}
	}

	shares, err := s.primary.GetTotalDebtShares(ctx, denom)
	if err != nil {
		return nil, err
	}
	s.rdb.Set(ctx, totalSharesKey(denom), shares.Dec(), s.ttl)
	return shares, nil
}

func (s *CachedStore) ListTotalDebtShares(ctx context.Context) ([]model.CoinShares, error) {
	var totals []model.CoinShares
	if s.readJSON(ctx, totalsListKey, &totals) {
		return totals, nil
	}

	totals, err := s.primary.ListTotalDebtShares(ctx)
	if err != nil {
		return nil, err
	}
	s.cacheJSON(ctx, totalsListKey, totals)
	return totals, nil
}

func (s *CachedStore) GetConfig(ctx context.Context) (*model.Config, error) {
	var cfg model.Config
	if s.readJSON(ctx, configKey, &cfg) {
		return &cfg, nil
	}

	c, err := s.primary.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	s.cacheJSON(ctx, configKey, c)
	return c, nil
}

// --- Cache helpers ---

func (s *CachedStore) readJSON(ctx context.Context, key string, dst any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("cache invalidation failed", "keys", keys, "err", err)
	}
}

func (s *CachedStore) cacheJSON(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

const (
	configKey     = "credit:config"
	totalsListKey = "credit:debtshares"
)

func accountKey(id string) string { return fmt.Sprintf("credit:account:%s", id) }
func positionKey(id string) string { return fmt.Sprintf("credit:position:%s", id) }
func totalSharesKey(d string) string { return fmt.Sprintf("credit:debtshares:%s", d) }
