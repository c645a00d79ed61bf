// Package debtshare implements the debt share ledger: the conversion between a
// borrowed amount and debt shares, and back from shares to the amount owed.
//
// Shares are a proportional claim on the pool of debt the credit manager owes
// to the red bank. The red bank accrues interest on that pool outside of this
// package, so the outstanding debt is always passed in by the caller, fresh
// from the red bank, and never cached here.
//
// All arithmetic is exact unsigned integer math. Products are computed with a
// 512-bit intermediate before dividing, and every division rounds down so the
// protocol never hands out more shares, or values shares at more debt, than
// the pool backs.
package debtshare

import (
	"errors"

	"github.com/holiman/uint256"
)

// DefaultDebtUnitsPerCoinBorrowed seeds the exchange rate on the first borrow
// of a denom: one unit of debt is worth this many shares. The headroom keeps
// later proportional issuance precise after interest has diluted the rate.
const DefaultDebtUnitsPerCoinBorrowed uint64 = 1_000_000

var (
	// ErrZeroAmount is returned when issuing shares for a zero amount.
	ErrZeroAmount = errors.New("debtshare: amount must be positive")

	// ErrNoOutstandingDebt is returned when shares exist for a denom but the
	// red bank reports no outstanding debt, leaving the exchange rate undefined.
	ErrNoOutstandingDebt = errors.New("debtshare: shares outstanding against zero debt")

	// ErrOverflow is returned when the minted share count does not fit in 256 bits.
	ErrOverflow = errors.New("debtshare: share amount overflows")

	scale = uint256.NewInt(DefaultDebtUnitsPerCoinBorrowed)
)

// IssueShares returns the number of shares minted for borrowing amount.
//
// totalSharesBefore and totalDebtBefore are the denom's totals immediately
// before this borrow (the borrowed amount is not yet part of the debt).
//
//	first borrow:  shares = amount * DefaultDebtUnitsPerCoinBorrowed
//	otherwise:     shares = floor(amount * totalSharesBefore / totalDebtBefore)
//
// Minting zero shares is a valid outcome once the exchange rate has been
// diluted far enough; it is not special-cased.
func IssueShares(amount, totalSharesBefore, totalDebtBefore *uint256.Int) (*uint256.Int, error) {
	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}

	if totalSharesBefore == nil || totalSharesBefore.IsZero() {
		shares, overflow := new(uint256.Int).MulOverflow(amount, scale)
		if overflow {
			return nil, ErrOverflow
		}
		return shares, nil
	}

	if totalDebtBefore == nil || totalDebtBefore.IsZero() {
		return nil, ErrNoOutstandingDebt
	}

	shares, overflow := new(uint256.Int).MulDivOverflow(amount, totalSharesBefore, totalDebtBefore)
	if overflow {
		return nil, ErrOverflow
	}
	return shares, nil
}

// ValueShares returns the amount of debt owed for accountShares:
//
//	owed = floor(totalDebtCurrent * accountShares / totalShares)
//
// It returns zero when no shares have been issued. Each account is rounded
// down independently, so the owed amounts of all holders sum to at most
// totalDebtCurrent; the remainder is rounding dust owed by nobody.
func ValueShares(accountShares, totalShares, totalDebtCurrent *uint256.Int) *uint256.Int {
	if totalShares == nil || totalShares.IsZero() ||
		accountShares == nil || accountShares.IsZero() ||
		totalDebtCurrent == nil {
		return new(uint256.Int)
	}
	// accountShares <= totalShares, so the quotient fits.
	owed, _ := new(uint256.Int).MulDivOverflow(totalDebtCurrent, accountShares, totalShares)
	return owed
}
