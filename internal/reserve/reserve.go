// Package reserve is the credit manager's view of the red bank, the external
// lending pool that lends funds to the credit manager and accrues interest on
// the outstanding debt.
//
// The red bank is the source of truth for aggregate debt. Callers query Debt
// fresh for every request and never extrapolate it.
package reserve

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
)

var (
	ErrInsufficientLiquidity = errors.New("reserve: insufficient liquidity")
	ErrZeroAmount            = errors.New("reserve: amount must be positive")
	ErrRepayExceedsDebt      = errors.New("reserve: repay exceeds outstanding debt")
	ErrOverflow              = errors.New("reserve: amount overflows")
)

// Reserve is the red bank as consumed by the credit manager.
type Reserve interface {
	// Borrow moves amount of denom into the credit manager's custody and
	// increases its recorded debt by amount. It fails without side effects.
	Borrow(ctx context.Context, denom string, amount *uint256.Int) error

	// Repay returns amount of denom and decreases the recorded debt.
	Repay(ctx context.Context, denom string, amount *uint256.Int) error

	// Debt returns the credit manager's current outstanding debt for denom,
	// interest included. Zero for a denom never borrowed.
	Debt(ctx context.Context, denom string) (*uint256.Int, error)
}

// Pool is an in-memory red bank. Liquidity is supplied with Fund and interest
// is added with Accrue, standing in for the red bank's own accrual.
type Pool struct {
	mu        sync.RWMutex
	liquidity map[string]*uint256.Int
	debt      map[string]*uint256.Int
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{
		liquidity: make(map[string]*uint256.Int),
		debt:      make(map[string]*uint256.Int),
	}
}

// Fund adds lender liquidity for denom.
func (p *Pool) Fund(denom string, amount *uint256.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	sum, overflow := new(uint256.Int).AddOverflow(get(p.liquidity, denom), amount)
	if overflow {
		return ErrOverflow
	}
	p.liquidity[denom] = sum
	return nil
}

// Accrue adds interest to the outstanding debt of denom.
func (p *Pool) Accrue(denom string, interest *uint256.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	sum, overflow := new(uint256.Int).AddOverflow(get(p.debt, denom), interest)
	if overflow {
		return ErrOverflow
	}
	p.debt[denom] = sum
	return nil
}

// Liquidity returns the funds available to borrow for denom.
func (p *Pool) Liquidity(denom string) *uint256.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return get(p.liquidity, denom)
}

func (p *Pool) Borrow(_ context.Context, denom string, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	available := get(p.liquidity, denom)
	if available.Lt(amount) {
		return fmt.Errorf("%w: %s available %s, requested %s",
			ErrInsufficientLiquidity, denom, available.Dec(), amount.Dec())
	}
	debt, overflow := new(uint256.Int).AddOverflow(get(p.debt, denom), amount)
	if overflow {
		return ErrOverflow
	}

	p.liquidity[denom] = available.Sub(available, amount)
	p.debt[denom] = debt
	return nil
}

func (p *Pool) Repay(_ context.Context, denom string, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	debt := get(p.debt, denom)
	if debt.Lt(amount) {
		return fmt.Errorf("%w: %s owed %s, repaid %s", ErrRepayExceedsDebt, denom, debt.Dec(), amount.Dec())
	}
	liquidity, overflow := new(uint256.Int).AddOverflow(get(p.liquidity, denom), amount)
	if overflow {
		return ErrOverflow
	}

	p.debt[denom] = debt.Sub(debt, amount)
	p.liquidity[denom] = liquidity
	return nil
}

func (p *Pool) Debt(_ context.Context, denom string) (*uint256.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return get(p.debt, denom), nil
}

// get returns a copy of m[denom], zero when absent.
func get(m map[string]*uint256.Int, denom string) *uint256.Int {
	if v, ok := m[denom]; ok {
		return v.Clone()
	}
	return new(uint256.Int)
}
