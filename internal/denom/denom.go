// Package denom validates coin denominations and parses coin strings such as
// "300uosmo" or "1000uatom,250ibc/27394FB0".
package denom

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/holiman/uint256"

	"github.com/rover/credit-manager/internal/model"
)

// denomRegex matches: a letter followed by 2-127 of [a-zA-Z0-9/:._-].
// Denoms are case-sensitive: "uosmo" and "UOSMO" are different assets.
var denomRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9/:._-]{2,127}$`)

// coinRegex matches: {amount}{denom}, e.g. 300uosmo.
var coinRegex = regexp.MustCompile(`^([0-9]+)([a-zA-Z][a-zA-Z0-9/:._-]{2,127})$`)

var (
	ErrInvalidDenom = errors.New("denom: invalid denom")
	ErrInvalidCoin  = errors.New("denom: invalid coin")
)

// Validate checks that d is a well-formed denom.
func Validate(d string) error {
	if !denomRegex.MatchString(d) {
		return fmt.Errorf("%w: %q", ErrInvalidDenom, d)
	}
	return nil
}

// ValidateCoin checks the denom of c and that it carries an amount.
func ValidateCoin(c model.Coin) error {
	if err := Validate(c.Denom); err != nil {
		return err
	}
	if c.Amount == nil {
		return fmt.Errorf("%w: %s has no amount", ErrInvalidCoin, c.Denom)
	}
	return nil
}

// ParseCoin parses a single coin string.
// Format: {amount}{denom}, amount in base-10 without separators.
func ParseCoin(s string) (model.Coin, error) {
	s = strings.TrimSpace(s)
	matches := coinRegex.FindStringSubmatch(s)
	if matches == nil {
		return model.Coin{}, fmt.Errorf("%w: %q (expected {amount}{denom})", ErrInvalidCoin, s)
	}

	amount, err := uint256.FromDecimal(matches[1])
	if err != nil {
		return model.Coin{}, fmt.Errorf("%w: amount %s: %v", ErrInvalidCoin, matches[1], err)
	}

	return model.Coin{Denom: matches[2], Amount: amount}, nil
}

// ParseCoins parses a comma-separated list of coins. An empty string yields
// no coins. Denoms must not repeat.
func ParseCoins(s string) ([]model.Coin, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	seen := make(map[string]bool)
	var coins []model.Coin
	for _, part := range strings.Split(s, ",") {
		c, err := ParseCoin(part)
		if err != nil {
			return nil, err
		}
		if seen[c.Denom] {
			return nil, fmt.Errorf("%w: duplicate denom %s", ErrInvalidCoin, c.Denom)
		}
		seen[c.Denom] = true
		coins = append(coins, c)
	}
	return coins, nil
}
