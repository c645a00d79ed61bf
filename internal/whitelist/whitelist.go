// Package whitelist decides which denoms the credit manager accepts as
// collateral and debt, and holds the risk parameters attached to each.
//
// A denom absent from the whitelist can be neither deposited nor borrowed.
// Risk parameters are validated on load but not enforced here: solvency
// checks against max LTV and the liquidation threshold belong to the health
// and liquidation flows.
package whitelist

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rover/credit-manager/internal/denom"
	"github.com/rover/credit-manager/internal/model"
)

var (
	// ErrDuplicateDenom is returned when a denom appears twice in the list.
	ErrDuplicateDenom = errors.New("whitelist: duplicate denom")

	// ErrInvalidMaxLTV is returned when max LTV is outside (0, 1).
	ErrInvalidMaxLTV = errors.New("whitelist: max ltv must be in (0, 1)")

	// ErrInvalidLiquidationThreshold is returned when the liquidation threshold
	// is not above max LTV or is 1 or more.
	ErrInvalidLiquidationThreshold = errors.New("whitelist: liquidation threshold must be in (max ltv, 1)")
)

// NotWhitelistedError is returned for a denom that is not on the whitelist.
type NotWhitelistedError struct {
	Denom string
}

func (e *NotWhitelistedError) Error() string {
	return fmt.Sprintf("%s is not whitelisted", e.Denom)
}

// Checker answers whitelist queries for a fixed set of coins.
type Checker struct {
	coins map[string]model.CoinParams
}

// NewChecker validates coins and builds a checker over them.
func NewChecker(coins []model.CoinParams) (*Checker, error) {
	c := &Checker{coins: make(map[string]model.CoinParams, len(coins))}
	for _, p := range coins {
		if err := ValidateParams(p); err != nil {
			return nil, err
		}
		if _, ok := c.coins[p.Denom]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDenom, p.Denom)
		}
		c.coins[p.Denom] = p
	}
	return c, nil
}

// ValidateParams checks one whitelist entry.
func ValidateParams(p model.CoinParams) error {
	if err := denom.Validate(p.Denom); err != nil {
		return err
	}
	one := decimal.NewFromInt(1)
	if !p.MaxLTV.IsPositive() || p.MaxLTV.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: %s has %s", ErrInvalidMaxLTV, p.Denom, p.MaxLTV)
	}
	if p.LiquidationThreshold.LessThanOrEqual(p.MaxLTV) || p.LiquidationThreshold.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: %s has %s", ErrInvalidLiquidationThreshold, p.Denom, p.LiquidationThreshold)
	}
	return nil
}

// Check returns a *NotWhitelistedError if denom is not whitelisted.
func (c *Checker) Check(d string) error {
	if _, ok := c.coins[d]; !ok {
		return &NotWhitelistedError{Denom: d}
	}
	return nil
}

// Len returns the number of whitelisted denoms.
func (c *Checker) Len() int {
	return len(c.coins)
}
