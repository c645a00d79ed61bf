package credit

import (
	"context"
	"errors"
	"fmt"

	"github.com/rover/credit-manager/internal/model"
	"github.com/rover/credit-manager/internal/store"
)

// Gate is the single authorization point. Every state-mutating operation
// passes through it before touching anything else.
type Gate struct {
	store store.Store
}

// NewGate creates a gate resolving ownership from st.
func NewGate(st store.Store) *Gate {
	return &Gate{store: st}
}

// AccountOwner returns nil if caller owns accountID.
func (g *Gate) AccountOwner(ctx context.Context, caller, accountID string) error {
	acct, err := g.store.GetAccount(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return err
	}
	if acct.Owner != caller {
		return &NotTokenOwnerError{User: caller, AccountID: accountID}
	}
	return nil
}

// Admin returns the current config if caller is its owner.
func (g *Gate) Admin(ctx context.Context, caller string) (*model.Config, error) {
	cfg, err := g.store.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	if caller == "" || cfg.Owner != caller {
		return nil, ErrUnauthorized
	}
	return cfg, nil
}
