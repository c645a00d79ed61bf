package credit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rover/credit-manager/internal/credit"
	"github.com/rover/credit-manager/internal/debtshare"
	"github.com/rover/credit-manager/internal/model"
	"github.com/rover/credit-manager/internal/oracle"
	"github.com/rover/credit-manager/internal/reserve"
	"github.com/rover/credit-manager/internal/store"
)

const (
	admin = "admin"
	alice = "alice"
	bob   = "bob"
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func coin(d string, amount uint64) model.Coin { return model.NewCoin(d, amount) }

func scaled(v uint64) *uint256.Int {
	return new(uint256.Int).Mul(u(v), u(debtshare.DefaultDebtUnitsPerCoinBorrowed))
}

type testEnv struct {
	svc   *credit.Service
	store store.Store
	pool  *reserve.Pool
	feed  *oracle.StaticFeed
}

func params(d string) model.CoinParams {
	return model.CoinParams{
		Denom:                d,
		MaxLTV:               decimal.RequireFromString("0.7"),
		LiquidationThreshold: decimal.RequireFromString("0.8"),
	}
}

// newTestEnv wires a service over an in-memory store and red bank. uosmo and
// uatom are whitelisted and funded; ujake is priced but not whitelisted.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newServiceEnv(t, store.NewMemoryStore(), nil)
}

// newServiceEnv is newTestEnv over st, broadcasting to hub when it is not nil.
func newServiceEnv(t *testing.T, st store.Store, hub *credit.WSHub) *testEnv {
	t.Helper()
	pool := reserve.NewPool()
	require.NoError(t, pool.Fund("uosmo", u(1_000_000)))
	require.NoError(t, pool.Fund("uatom", u(1_000_000)))
	require.NoError(t, pool.Fund("ujake", u(1_000_000)))

	feed, err := oracle.NewStaticFeed(map[string]decimal.Decimal{
		"uosmo": decimal.RequireFromString("0.25"),
		"uatom": decimal.NewFromInt(1),
		"ujake": decimal.NewFromInt(2),
	})
	require.NoError(t, err)

	svc := credit.NewService(st, pool, feed, hub)
	require.NoError(t, svc.Bootstrap(context.Background(), &model.Config{
		Owner:        admin,
		RedBank:      "redbank",
		AllowedCoins: []model.CoinParams{params("uosmo"), params("uatom")},
	}))
	return &testEnv{svc: svc, store: st, pool: pool, feed: feed}
}

func (e *testEnv) account(t *testing.T, owner string) string {
	t.Helper()
	acct, err := e.svc.CreateAccount(context.Background(), owner)
	require.NoError(t, err)
	return acct.ID
}

// assertUnchanged checks the account and red bank still match their state
// before a rejected request.
func (e *testEnv) assertUnchanged(t *testing.T, accountID string, before *model.Position, debt map[string]*uint256.Int) {
	t.Helper()
	ctx := context.Background()
	after, err := e.store.GetPosition(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	for d, want := range debt {
		got, err := e.pool.Debt(ctx, d)
		require.NoError(t, err)
		assert.Equal(t, want.Dec(), got.Dec(), "red bank debt for %s", d)
	}
}

// --- Account updates ---

func TestUpdateAccount_DepositAndBorrow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.account(t, alice)

	pos, err := env.svc.UpdateAccount(ctx, alice, id,
		[]model.Action{model.Deposit(coin("uosmo", 300)), model.Borrow(coin("uosmo", 42))},
		[]model.Coin{coin("uosmo", 300)},
	)
	require.NoError(t, err)
	assert.Equal(t, "342", pos.Balance("uosmo").Dec())
	assert.Equal(t, scaled(42).Dec(), pos.Shares("uosmo").Dec())

	total, err := env.svc.TotalDebtShares(ctx, "uosmo")
	require.NoError(t, err)
	assert.Equal(t, scaled(42).Dec(), total.Shares.Dec())

	debt, err := env.pool.Debt(ctx, "uosmo")
	require.NoError(t, err)
	assert.Equal(t, "42", debt.Dec())
	assert.Equal(t, "999958", env.pool.Liquidity("uosmo").Dec())

	resp, err := env.svc.Position(ctx, id)
	require.NoError(t, err)
	require.Len(t, resp.CoinAssets, 1)
	assert.Equal(t, "342", resp.CoinAssets[0].Amount.Dec())
	assert.True(t, resp.CoinAssets[0].TotalValue.Equal(decimal.RequireFromString("85.5")),
		"coin value = 0.25 × 342, got %s", resp.CoinAssets[0].TotalValue)
	require.Len(t, resp.DebtShares, 1)
	assert.True(t, resp.DebtShares[0].TotalValue.Equal(decimal.RequireFromString("10.5")),
		"debt value = 0.25 × 42, got %s", resp.DebtShares[0].TotalValue)

	// Interest accrued by the red bank is owed by the sole borrower.
	require.NoError(t, env.pool.Accrue("uosmo", u(1)))
	resp, err = env.svc.Position(ctx, id)
	require.NoError(t, err)
	assert.True(t, resp.DebtShares[0].TotalValue.Equal(decimal.RequireFromString("10.75")),
		"debt value = 0.25 × 43, got %s", resp.DebtShares[0].TotalValue)
}

func TestUpdateAccount_SecondBorrowerDiluted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.account(t, alice)
	b := env.account(t, bob)

	_, err := env.svc.UpdateAccount(ctx, alice, a, []model.Action{model.Borrow(coin("uatom", 50))}, nil)
	require.NoError(t, err)

	require.NoError(t, env.pool.Accrue("uatom", u(1)))

	pos, err := env.svc.UpdateAccount(ctx, bob, b, []model.Action{model.Borrow(coin("uatom", 50))}, nil)
	require.NoError(t, err)
	assert.Equal(t, "49019607", pos.Shares("uatom").Dec())

	total, err := env.svc.TotalDebtShares(ctx, "uatom")
	require.NoError(t, err)
	assert.Equal(t, "99019607", total.Shares.Dec())

	respA, err := env.svc.Position(ctx, a)
	require.NoError(t, err)
	respB, err := env.svc.Position(ctx, b)
	require.NoError(t, err)

	owedA := respA.DebtShares[0].TotalValue
	owedB := respB.DebtShares[0].TotalValue
	assert.True(t, owedA.Equal(decimal.NewFromInt(51)), "alice owes %s", owedA)
	assert.True(t, owedB.Equal(decimal.NewFromInt(49)), "bob owes %s", owedB)

	debt, err := env.pool.Debt(ctx, "uatom")
	require.NoError(t, err)
	assert.True(t, owedA.Add(owedB).LessThanOrEqual(decimal.NewFromBigInt(debt.ToBig(), 0)))
}

func TestUpdateAccount_NotTokenOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.account(t, alice)
	before, err := env.store.GetPosition(ctx, id)
	require.NoError(t, err)

	_, err = env.svc.UpdateAccount(ctx, bob, id, []model.Action{model.Borrow(coin("uosmo", 10))}, nil)

	var notOwner *credit.NotTokenOwnerError
	require.ErrorAs(t, err, &notOwner)
	assert.Equal(t, bob, notOwner.User)
	assert.Equal(t, id, notOwner.AccountID)
	env.assertUnchanged(t, id, before, map[string]*uint256.Int{"uosmo": u(0)})
}

func TestUpdateAccount_NotWhitelisted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.account(t, alice)
	before, err := env.store.GetPosition(ctx, id)
	require.NoError(t, err)

	_, err = env.svc.UpdateAccount(ctx, alice, id, []model.Action{model.Borrow(coin("ujake", 10))}, nil)

	var notListed *credit.NotWhitelistedError
	require.ErrorAs(t, err, &notListed)
	assert.Equal(t, "ujake", notListed.Denom)
	env.assertUnchanged(t, id, before, map[string]*uint256.Int{"ujake": u(0)})
}

func TestUpdateAccount_DepositNotWhitelisted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.account(t, alice)

	_, err := env.svc.UpdateAccount(ctx, alice, id,
		[]model.Action{model.Deposit(coin("ujake", 10))},
		[]model.Coin{coin("ujake", 10)},
	)
	var notListed *credit.NotWhitelistedError
	require.ErrorAs(t, err, &notListed)
}

func TestUpdateAccount_ZeroAmount(t *testing.T) {
	tests := []struct {
		name    string
		actions []model.Action
	}{
		{"borrow", []model.Action{model.Borrow(coin("uosmo", 0))}},
		{"deposit", []model.Action{model.Deposit(coin("uosmo", 0))}},
		{"nil amount", []model.Action{model.Borrow(model.Coin{Denom: "uosmo"})}},
		{"after a valid borrow", []model.Action{model.Borrow(coin("uatom", 5)), model.Borrow(coin("uosmo", 0))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			id := env.account(t, alice)
			before, err := env.store.GetPosition(ctx, id)
			require.NoError(t, err)

			_, err = env.svc.UpdateAccount(ctx, alice, id, tt.actions, nil)
			require.ErrorIs(t, err, credit.ErrNoAmount)
			env.assertUnchanged(t, id, before, map[string]*uint256.Int{"uosmo": u(0), "uatom": u(0)})
		})
	}
}

func TestUpdateAccount_InvalidAction(t *testing.T) {
	env := newTestEnv(t)
	id := env.account(t, alice)

	c := coin("uosmo", 1)
	_, err := env.svc.UpdateAccount(context.Background(), alice, id,
		[]model.Action{{Deposit: &c, Borrow: &c}}, []model.Coin{c})
	require.ErrorIs(t, err, credit.ErrInvalidAction)

	_, err = env.svc.UpdateAccount(context.Background(), alice, id, []model.Action{{}}, nil)
	require.ErrorIs(t, err, credit.ErrInvalidAction)
}

func TestUpdateAccount_MalformedDenom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.account(t, alice)
	before, err := env.store.GetPosition(ctx, id)
	require.NoError(t, err)

	_, err = env.svc.UpdateAccount(ctx, alice, id,
		[]model.Action{model.Borrow(coin("uatom", 10)), model.Borrow(coin("x", 1))}, nil)
	require.ErrorIs(t, err, credit.ErrInvalidRequest)

	_, err = env.svc.UpdateAccount(ctx, alice, id,
		[]model.Action{model.Deposit(coin("u$", 1))}, []model.Coin{coin("u$", 1)})
	require.ErrorIs(t, err, credit.ErrInvalidRequest)

	env.assertUnchanged(t, id, before, map[string]*uint256.Int{"uatom": u(0)})
}

func TestUpdateAccount_AccountNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.UpdateAccount(context.Background(), alice, "missing",
		[]model.Action{model.Borrow(coin("uosmo", 1))}, nil)
	require.ErrorIs(t, err, credit.ErrAccountNotFound)
}

func TestUpdateAccount_FundsMismatch(t *testing.T) {
	tests := []struct {
		name     string
		actions  []model.Action
		funds    []model.Coin
		denom    string
		expected string
		received string
	}{
		{
			name:     "deposit without funds",
			actions:  []model.Action{model.Deposit(coin("uosmo", 100))},
			denom:    "uosmo",
			expected: "100",
			received: "0",
		},
		{
			name:     "deposit exceeds funds",
			actions:  []model.Action{model.Deposit(coin("uosmo", 60)), model.Deposit(coin("uosmo", 60))},
			funds:    []model.Coin{coin("uosmo", 100)},
			denom:    "uosmo",
			expected: "120",
			received: "100",
		},
		{
			name:     "funds left over",
			actions:  []model.Action{model.Deposit(coin("uosmo", 60))},
			funds:    []model.Coin{coin("uosmo", 100)},
			denom:    "uosmo",
			expected: "60",
			received: "100",
		},
		{
			name:     "funds never deposited",
			actions:  []model.Action{model.Borrow(coin("uosmo", 5))},
			funds:    []model.Coin{coin("uatom", 7)},
			denom:    "uatom",
			expected: "0",
			received: "7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			id := env.account(t, alice)
			before, err := env.store.GetPosition(ctx, id)
			require.NoError(t, err)

			_, err = env.svc.UpdateAccount(ctx, alice, id, tt.actions, tt.funds)

			var mismatch *credit.FundsMismatchError
			require.ErrorAs(t, err, &mismatch)
			assert.Equal(t, tt.denom, mismatch.Denom)
			assert.Equal(t, tt.expected, mismatch.Expected.Dec())
			assert.Equal(t, tt.received, mismatch.Received.Dec())
			env.assertUnchanged(t, id, before, map[string]*uint256.Int{"uosmo": u(0)})
		})
	}
}

func TestUpdateAccount_FundsSplitAcrossDeposits(t *testing.T) {
	env := newTestEnv(t)
	id := env.account(t, alice)

	pos, err := env.svc.UpdateAccount(context.Background(), alice, id,
		[]model.Action{model.Deposit(coin("uosmo", 60)), model.Deposit(coin("uosmo", 40))},
		[]model.Coin{coin("uosmo", 70), coin("uosmo", 30)},
	)
	require.NoError(t, err)
	assert.Equal(t, "100", pos.Balance("uosmo").Dec())
}

func TestUpdateAccount_TwoBorrowsSameDenom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.account(t, alice)

	pos, err := env.svc.UpdateAccount(ctx, alice, id,
		[]model.Action{model.Borrow(coin("uosmo", 10)), model.Borrow(coin("uosmo", 30))}, nil)
	require.NoError(t, err)
	assert.Equal(t, "40", pos.Balance("uosmo").Dec())
	assert.Equal(t, scaled(40).Dec(), pos.Shares("uosmo").Dec())

	total, err := env.svc.TotalDebtShares(ctx, "uosmo")
	require.NoError(t, err)
	assert.Equal(t, scaled(40).Dec(), total.Shares.Dec())
}

func TestUpdateAccount_ReserveFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.account(t, alice)
	before, err := env.store.GetPosition(ctx, id)
	require.NoError(t, err)

	// The second borrow exceeds red bank liquidity after the first succeeds.
	_, err = env.svc.UpdateAccount(ctx, alice, id,
		[]model.Action{
			model.Deposit(coin("uatom", 5)),
			model.Borrow(coin("uosmo", 400_000)),
			model.Borrow(coin("uosmo", 700_000)),
		},
		[]model.Coin{coin("uatom", 5)},
	)

	var reserveErr *credit.ReserveError
	require.ErrorAs(t, err, &reserveErr)
	assert.Equal(t, "borrow", reserveErr.Op)
	assert.ErrorIs(t, err, reserve.ErrInsufficientLiquidity)

	env.assertUnchanged(t, id, before, map[string]*uint256.Int{"uosmo": u(0)})
	assert.Equal(t, "1000000", env.pool.Liquidity("uosmo").Dec(), "first borrow returned to the red bank")

	total, err := env.svc.TotalDebtShares(ctx, "uosmo")
	require.NoError(t, err)
	assert.True(t, total.Shares.IsZero())
}

func TestUpdateAccount_LaterFailureReturnsBorrowedFunds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.account(t, alice)

	_, err := env.svc.UpdateAccount(ctx, alice, id,
		[]model.Action{model.Borrow(coin("uosmo", 10)), model.Borrow(coin("ujake", 1))}, nil)
	var notListed *credit.NotWhitelistedError
	require.ErrorAs(t, err, &notListed)

	debt, err := env.pool.Debt(ctx, "uosmo")
	require.NoError(t, err)
	assert.True(t, debt.IsZero())
	assert.Equal(t, "1000000", env.pool.Liquidity("uosmo").Dec())
}

// failingReserve fails Debt queries; borrows never get that far.
type failingReserve struct{ reserve.Reserve }

func (failingReserve) Debt(context.Context, string) (*uint256.Int, error) {
	return nil, errors.New("red bank unreachable")
}

func TestUpdateAccount_DebtQueryFailure(t *testing.T) {
	ms := store.NewMemoryStore()
	feed, err := oracle.NewStaticFeed(nil)
	require.NoError(t, err)
	svc := credit.NewService(ms, failingReserve{reserve.NewPool()}, feed, nil)
	ctx := context.Background()
	require.NoError(t, svc.Bootstrap(ctx, &model.Config{Owner: admin, AllowedCoins: []model.CoinParams{params("uosmo")}}))
	acct, err := svc.CreateAccount(ctx, alice)
	require.NoError(t, err)

	_, err = svc.UpdateAccount(ctx, alice, acct.ID, []model.Action{model.Borrow(coin("uosmo", 1))}, nil)
	var reserveErr *credit.ReserveError
	require.ErrorAs(t, err, &reserveErr)
	assert.Equal(t, "debt", reserveErr.Op)
}

func TestUpdateAccount_SharesMatchTotals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owners := []string{alice, bob, "carol"}
	ids := make([]string, len(owners))
	for i, o := range owners {
		ids[i] = env.account(t, o)
	}

	for round := uint64(1); round <= 5; round++ {
		for i, o := range owners {
			_, err := env.svc.UpdateAccount(ctx, o, ids[i],
				[]model.Action{model.Borrow(coin("uatom", round*7+uint64(i)))}, nil)
			require.NoError(t, err)
			require.NoError(t, env.pool.Accrue("uatom", u(round)))
		}
	}

	sum := new(uint256.Int)
	owed := new(uint256.Int)
	total, err := env.svc.TotalDebtShares(ctx, "uatom")
	require.NoError(t, err)
	debt, err := env.pool.Debt(ctx, "uatom")
	require.NoError(t, err)
	for _, id := range ids {
		pos, err := env.store.GetPosition(ctx, id)
		require.NoError(t, err)
		sum.Add(sum, pos.Shares("uatom"))
		owed.Add(owed, debtshare.ValueShares(pos.Shares("uatom"), total.Shares, debt))
	}
	assert.Equal(t, total.Shares.Dec(), sum.Dec())
	assert.False(t, owed.Gt(debt), "owed %s exceeds debt %s", owed.Dec(), debt.Dec())
}

func TestUpdateAccount_NoActions(t *testing.T) {
	env := newTestEnv(t)
	id := env.account(t, alice)

	pos, err := env.svc.UpdateAccount(context.Background(), alice, id, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, pos.Coins)
	assert.Empty(t, pos.DebtShares)
}

// --- Accounts ---

func TestCreateAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	acct, err := env.svc.CreateAccount(ctx, alice)
	require.NoError(t, err)
	assert.NotEmpty(t, acct.ID)
	assert.Equal(t, alice, acct.Owner)

	other, err := env.svc.CreateAccount(ctx, alice)
	require.NoError(t, err)
	assert.NotEqual(t, acct.ID, other.ID)

	_, err = env.svc.CreateAccount(ctx, "  ")
	require.ErrorIs(t, err, credit.ErrInvalidRequest)
}

// --- Admin ---

func TestUpdateConfig(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.UpdateConfig(ctx, alice, model.ConfigUpdate{AllowedCoins: []model.CoinParams{params("ujake")}})
	require.ErrorIs(t, err, credit.ErrUnauthorized)

	cfg, err := env.svc.UpdateConfig(ctx, admin, model.ConfigUpdate{
		AllowedCoins: []model.CoinParams{params("uosmo"), params("ujake")},
	})
	require.NoError(t, err)
	assert.Len(t, cfg.AllowedCoins, 2)
	assert.Equal(t, "redbank", cfg.RedBank)

	// The new whitelist applies to the next request.
	id := env.account(t, alice)
	_, err = env.svc.UpdateAccount(ctx, alice, id, []model.Action{model.Borrow(coin("ujake", 3))}, nil)
	require.NoError(t, err)
	_, err = env.svc.UpdateAccount(ctx, alice, id, []model.Action{model.Borrow(coin("uatom", 3))}, nil)
	var notListed *credit.NotWhitelistedError
	require.ErrorAs(t, err, &notListed)
}

func TestUpdateConfig_Invalid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dup := []model.CoinParams{params("uosmo"), params("uosmo")}
	_, err := env.svc.UpdateConfig(ctx, admin, model.ConfigUpdate{AllowedCoins: dup})
	require.ErrorIs(t, err, credit.ErrInvalidRequest)

	empty := ""
	_, err = env.svc.UpdateConfig(ctx, admin, model.ConfigUpdate{Owner: &empty})
	require.ErrorIs(t, err, credit.ErrInvalidRequest)
}

func TestUpdateConfig_TransferOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	next := "treasury"
	_, err := env.svc.UpdateConfig(ctx, admin, model.ConfigUpdate{Owner: &next})
	require.NoError(t, err)

	_, err = env.svc.UpdateConfig(ctx, admin, model.ConfigUpdate{})
	require.ErrorIs(t, err, credit.ErrUnauthorized)
	_, err = env.svc.UpdateConfig(ctx, next, model.ConfigUpdate{})
	require.NoError(t, err)
}

func TestSetPrice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.ErrorIs(t, env.svc.SetPrice(ctx, alice, "uosmo", decimal.NewFromInt(3)), credit.ErrUnauthorized)
	require.NoError(t, env.svc.SetPrice(ctx, admin, "uosmo", decimal.NewFromInt(3)))

	price, err := env.feed.Price(ctx, "uosmo")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(3)))

	require.ErrorIs(t, env.svc.SetPrice(ctx, admin, "uosmo", decimal.NewFromInt(-1)), credit.ErrInvalidRequest)
}

func TestBootstrap_KeepsExistingConfig(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.svc.Bootstrap(ctx, &model.Config{Owner: "someone-else"}))
	cfg, err := env.svc.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, admin, cfg.Owner)
}

// --- Queries ---

func TestPosition_Empty(t *testing.T) {
	env := newTestEnv(t)
	id := env.account(t, alice)

	resp, err := env.svc.Position(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, resp.AccountID)
	assert.Empty(t, resp.CoinAssets)
	assert.Empty(t, resp.DebtShares)
}

func TestPosition_SortedByDenom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.account(t, alice)

	_, err := env.svc.UpdateAccount(ctx, alice, id,
		[]model.Action{model.Borrow(coin("uosmo", 4)), model.Borrow(coin("uatom", 2))}, nil)
	require.NoError(t, err)

	resp, err := env.svc.Position(ctx, id)
	require.NoError(t, err)
	require.Len(t, resp.CoinAssets, 2)
	assert.Equal(t, "uatom", resp.CoinAssets[0].Denom)
	assert.Equal(t, "uosmo", resp.CoinAssets[1].Denom)
	require.Len(t, resp.DebtShares, 2)
	assert.Equal(t, "uatom", resp.DebtShares[0].Denom)
}

func TestPosition_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Position(context.Background(), "missing")
	require.ErrorIs(t, err, credit.ErrAccountNotFound)
}

func TestAllTotalDebtShares(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.account(t, alice)

	totals, err := env.svc.AllTotalDebtShares(ctx)
	require.NoError(t, err)
	assert.Empty(t, totals)

	_, err = env.svc.UpdateAccount(ctx, alice, id,
		[]model.Action{model.Borrow(coin("uosmo", 1)), model.Borrow(coin("uatom", 2))}, nil)
	require.NoError(t, err)

	totals, err = env.svc.AllTotalDebtShares(ctx)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, "uatom", totals[0].Denom)
	assert.Equal(t, scaled(2).Dec(), totals[0].Shares.Dec())
	assert.Equal(t, "uosmo", totals[1].Denom)
}

func TestTotalDebtShares_NeverBorrowed(t *testing.T) {
	env := newTestEnv(t)
	total, err := env.svc.TotalDebtShares(context.Background(), "uatom")
	require.NoError(t, err)
	assert.True(t, total.Shares.IsZero())
}
