package credit

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/rover/credit-manager/internal/denom"
	"github.com/rover/credit-manager/internal/model"
	"github.com/rover/credit-manager/internal/store"
)

// request is the working state of one account update. Nothing in it is
// visible outside the update until the changeset is committed.
type request struct {
	accountID string
	sent      map[string]*uint256.Int // funds sent with the request
	remaining map[string]*uint256.Int // sent funds not yet claimed by a deposit
	changes   *model.Changeset
	totals    map[string]*uint256.Int // stored total shares plus shares minted so far
	borrowed  []model.Coin            // red bank borrows to undo if the request fails
}

func newRequest(accountID string, funds []model.Coin) (*request, error) {
	req := &request{
		accountID: accountID,
		sent:      make(map[string]*uint256.Int),
		remaining: make(map[string]*uint256.Int),
		changes:   model.NewChangeset(accountID),
		totals:    make(map[string]*uint256.Int),
	}
	for _, c := range funds {
		if c.IsZero() {
			continue
		}
		if err := denom.ValidateCoin(c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		cur, ok := req.sent[c.Denom]
		if !ok {
			cur = new(uint256.Int)
		}
		sum, overflow := new(uint256.Int).AddOverflow(cur, c.Amount)
		if overflow {
			return nil, ErrOverflow
		}
		req.sent[c.Denom] = sum
		req.remaining[c.Denom] = sum.Clone()
	}
	return req, nil
}

// takeFunds claims coin from the funds sent with the request.
func (r *request) takeFunds(coin model.Coin) error {
	left, ok := r.remaining[coin.Denom]
	if !ok || left.Lt(coin.Amount) {
		received := new(uint256.Int)
		if v, ok := r.sent[coin.Denom]; ok {
			received = v.Clone()
		}
		claimed := r.claimed(coin.Denom)
		expected, overflow := new(uint256.Int).AddOverflow(claimed, coin.Amount)
		if overflow {
			return ErrOverflow
		}
		return &FundsMismatchError{Denom: coin.Denom, Expected: expected, Received: received}
	}
	r.remaining[coin.Denom] = new(uint256.Int).Sub(left, coin.Amount)
	return nil
}

// claimed is how much of denom deposits have taken so far.
func (r *request) claimed(d string) *uint256.Int {
	sent, ok := r.sent[d]
	if !ok {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(sent, r.remaining[d])
}

// settleFunds fails if any sent funds were not deposited.
func (r *request) settleFunds() error {
	for _, d := range model.SortedDenoms(r.remaining) {
		if r.remaining[d].IsZero() {
			continue
		}
		return &FundsMismatchError{Denom: d, Expected: r.claimed(d), Received: r.sent[d].Clone()}
	}
	return nil
}

// totalShares returns the total debt shares of denom as this request sees
// them: the committed total plus anything minted earlier in the request.
func (r *request) totalShares(ctx context.Context, st store.Store, d string) (*uint256.Int, error) {
	if v, ok := r.totals[d]; ok {
		return v.Clone(), nil
	}
	v, err := st.GetTotalDebtShares(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("load %s total debt shares: %w", d, err)
	}
	r.totals[d] = v.Clone()
	return v, nil
}

// recordShares credits minted shares to the account and the running total.
// totalShares must have been called for d first.
func (r *request) recordShares(d string, minted *uint256.Int) bool {
	total, overflow := new(uint256.Int).AddOverflow(r.totals[d], minted)
	if overflow {
		return false
	}
	if !r.changes.RecordShares(d, minted) {
		return false
	}
	r.totals[d] = total
	return true
}
