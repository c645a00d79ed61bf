// Package model defines the core domain types shared across the credit manager.
// Coin amounts and debt shares are exact unsigned 256-bit integers; prices and
// valuations use shopspring/decimal, never float64.
package model

import (
	"sort"
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Coin is an amount of a single denom. Denoms are case-sensitive.
type Coin struct {
	Denom  string       `json:"denom"`
	Amount *uint256.Int `json:"amount"`
}

// NewCoin builds a coin from a uint64 amount.
func NewCoin(denom string, amount uint64) Coin {
	return Coin{Denom: denom, Amount: uint256.NewInt(amount)}
}

// IsZero reports whether the coin carries no amount.
func (c Coin) IsZero() bool {
	return c.Amount == nil || c.Amount.IsZero()
}

// Account is a credit account. Exactly one owner at any time.
type Account struct {
	ID        string    `json:"id" db:"id"`
	Owner     string    `json:"owner" db:"owner"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Position is the bookkeeping of one account: coin balances held on its behalf
// and debt shares owed to the red bank, both keyed by denom.
type Position struct {
	AccountID  string                  `json:"account_id"`
	Coins      map[string]*uint256.Int `json:"coins"`
	DebtShares map[string]*uint256.Int `json:"debt_shares"`
}

// NewPosition returns an empty position for accountID.
func NewPosition(accountID string) *Position {
	return &Position{
		AccountID:  accountID,
		Coins:      make(map[string]*uint256.Int),
		DebtShares: make(map[string]*uint256.Int),
	}
}

// Balance returns the coin balance for denom, zero when absent.
func (p *Position) Balance(denom string) *uint256.Int {
	if v, ok := p.Coins[denom]; ok && v != nil {
		return v.Clone()
	}
	return new(uint256.Int)
}

// Shares returns the debt shares held for denom, zero when absent.
func (p *Position) Shares(denom string) *uint256.Int {
	if v, ok := p.DebtShares[denom]; ok && v != nil {
		return v.Clone()
	}
	return new(uint256.Int)
}

// Clone deep-copies the position so callers can't mutate stored state.
func (p *Position) Clone() *Position {
	out := NewPosition(p.AccountID)
	for d, v := range p.Coins {
		out.Coins[d] = v.Clone()
	}
	for d, v := range p.DebtShares {
		out.DebtShares[d] = v.Clone()
	}
	return out
}

// Changeset is the complete, not-yet-persisted effect of one request on one
// account. Every debt share credited to the account is credited to the denom's
// total as well, so applying a changeset keeps Σ account shares == total shares.
type Changeset struct {
	AccountID string                  `json:"account_id"`
	Credits   map[string]*uint256.Int `json:"credits"`
	Shares    map[string]*uint256.Int `json:"shares"`
}

// NewChangeset returns an empty changeset for accountID.
func NewChangeset(accountID string) *Changeset {
	return &Changeset{
		AccountID: accountID,
		Credits:   make(map[string]*uint256.Int),
		Shares:    make(map[string]*uint256.Int),
	}
}

// IsEmpty reports whether applying the changeset would change nothing.
func (c *Changeset) IsEmpty() bool {
	for _, v := range c.Credits {
		if !v.IsZero() {
			return false
		}
	}
	for _, v := range c.Shares {
		if !v.IsZero() {
			return false
		}
	}
	return true
}

// CreditBalance adds amount to the pending balance credit for denom.
// Returns false if the running credit would overflow.
func (c *Changeset) CreditBalance(denom string, amount *uint256.Int) bool {
	return addInto(c.Credits, denom, amount)
}

// RecordShares adds shares to the pending share credit for denom.
// Returns false if the running credit would overflow.
func (c *Changeset) RecordShares(denom string, shares *uint256.Int) bool {
	return addInto(c.Shares, denom, shares)
}

// ApplyTo returns a copy of p with the changeset applied. ok is false if any
// resulting balance or share count overflows; p is never modified.
func (c *Changeset) ApplyTo(p *Position) (*Position, bool) {
	out := p.Clone()
	for d, v := range c.Credits {
		if !addInto(out.Coins, d, v) {
			return nil, false
		}
	}
	for d, v := range c.Shares {
		if !addInto(out.DebtShares, d, v) {
			return nil, false
		}
	}
	return out, true
}

// SortedDenoms returns the keys of m in ascending order.
func SortedDenoms(m map[string]*uint256.Int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func addInto(m map[string]*uint256.Int, denom string, amount *uint256.Int) bool {
	if amount == nil {
		return true
	}
	cur, ok := m[denom]
	if !ok || cur == nil {
		m[denom] = amount.Clone()
		return true
	}
	sum, overflow := new(uint256.Int).AddOverflow(cur, amount)
	if overflow {
		return false
	}
	m[denom] = sum
	return true
}

// Action is one step of an account update. Exactly one field is set.
type Action struct {
	Deposit *Coin `json:"deposit,omitempty"`
	Borrow  *Coin `json:"borrow,omitempty"`
}

// Deposit builds a deposit action.
func Deposit(c Coin) Action { return Action{Deposit: &c} }

// Borrow builds a borrow action.
func Borrow(c Coin) Action { return Action{Borrow: &c} }

// Kind names the action for logs and metrics.
func (a Action) Kind() string {
	switch {
	case a.Deposit != nil && a.Borrow == nil:
		return "deposit"
	case a.Borrow != nil && a.Deposit == nil:
		return "borrow"
	default:
		return "invalid"
	}
}

// CoinParams are the risk parameters of a whitelisted denom.
type CoinParams struct {
	Denom                string          `json:"denom"`
	MaxLTV               decimal.Decimal `json:"max_ltv"`
	LiquidationThreshold decimal.Decimal `json:"liquidation_threshold"`
}

// Config is the admin-managed configuration of the credit manager.
type Config struct {
	Owner        string       `json:"owner"`
	RedBank      string       `json:"red_bank"`
	AllowedCoins []CoinParams `json:"allowed_coins"`
}

// ConfigUpdate carries optional replacements; nil fields are left unchanged.
type ConfigUpdate struct {
	Owner        *string      `json:"owner,omitempty"`
	RedBank      *string      `json:"red_bank,omitempty"`
	AllowedCoins []CoinParams `json:"allowed_coins,omitempty"`
}

// --- Query responses ---

// CoinValue is a coin balance valued at the oracle price.
type CoinValue struct {
	Denom      string          `json:"denom"`
	Amount     *uint256.Int    `json:"amount"`
	Price      decimal.Decimal `json:"price"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// CoinShares is a share count for one denom.
type CoinShares struct {
	Denom  string       `json:"denom"`
	Shares *uint256.Int `json:"shares"`
}

// CoinSharesValue is an account's debt shares with the value of the debt they
// represent (price × owed amount).
type CoinSharesValue struct {
	Denom      string          `json:"denom"`
	Shares     *uint256.Int    `json:"shares"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// PositionResponse is the external snapshot of one account.
type PositionResponse struct {
	AccountID  string            `json:"account_id"`
	CoinAssets []CoinValue       `json:"coin_assets"`
	DebtShares []CoinSharesValue `json:"debt_shares"`
}
