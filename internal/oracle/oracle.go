// Package oracle supplies denom prices used to value positions.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rover/credit-manager/internal/denom"
)

var (
	ErrPriceNotFound = errors.New("oracle: no price source for denom")
	ErrInvalidPrice  = errors.New("oracle: price must not be negative")
)

// PriceSource returns the current price of one unit of a denom.
type PriceSource interface {
	Price(ctx context.Context, denom string) (decimal.Decimal, error)
}

// Feed is a PriceSource whose prices can be set by an operator.
type Feed interface {
	PriceSource
	SetPrice(denom string, price decimal.Decimal) error
}

// StaticFeed is an in-memory Feed. Prices stay fixed until set again.
type StaticFeed struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewStaticFeed creates a feed seeded with prices.
func NewStaticFeed(prices map[string]decimal.Decimal) (*StaticFeed, error) {
	f := &StaticFeed{prices: make(map[string]decimal.Decimal, len(prices))}
	for d, p := range prices {
		if err := f.SetPrice(d, p); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *StaticFeed) Price(_ context.Context, d string) (decimal.Decimal, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	p, ok := f.prices[d]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrPriceNotFound, d)
	}
	return p, nil
}

func (f *StaticFeed) SetPrice(d string, price decimal.Decimal) error {
	if err := denom.Validate(d); err != nil {
		return err
	}
	if price.IsNegative() {
		return fmt.Errorf("%w: %s=%s", ErrInvalidPrice, d, price)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[d] = price
	return nil
}
