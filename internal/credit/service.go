// Package credit implements credit accounts: ordered deposit and borrow
// actions executed against one account and committed atomically, plus the
// queries that value positions and report debt share totals.
//
// Borrowed funds come from the red bank. Each borrow mints debt shares through
// the debtshare ledger against the red bank's freshly queried outstanding
// debt, so accounts own a proportional claim on a debt pool whose interest
// accrues outside this package.
package credit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/rover/credit-manager/internal/debtshare"
	"github.com/rover/credit-manager/internal/denom"
	"github.com/rover/credit-manager/internal/metrics"
	"github.com/rover/credit-manager/internal/model"
	"github.com/rover/credit-manager/internal/oracle"
	"github.com/rover/credit-manager/internal/reserve"
	"github.com/rover/credit-manager/internal/store"
	"github.com/rover/credit-manager/internal/whitelist"
)

// Service executes account updates. A mutex serializes requests so each one
// runs to completion before the next starts and never observes another
// request's intermediate state. Queries take the same mutex, so a read-through
// cache is only ever filled between commits.
type Service struct {
	store   store.Store // writes and cacheable queries
	ledger  store.Store // source of truth for issuance, valuation and authorization
	reserve reserve.Reserve
	prices  oracle.Feed
	gate    *Gate
	mu      sync.Mutex
	wsHub   *WSHub // optional WebSocket hub for committed updates
}

// NewService creates a new credit service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, rb reserve.Reserve, prices oracle.Feed, hub *WSHub) *Service {
	ledger := store.SourceOfTruth(st)
	return &Service{
		store:   st,
		ledger:  ledger,
		reserve: rb,
		prices:  prices,
		gate:    NewGate(ledger),
		wsHub:   hub,
	}
}

// Bootstrap saves cfg as the initial config unless one already exists.
func (s *Service) Bootstrap(ctx context.Context, cfg *model.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.ledger.GetConfig(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if strings.TrimSpace(cfg.Owner) == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidRequest)
	}
	checker, err := whitelist.NewChecker(cfg.AllowedCoins)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := s.store.SaveConfig(ctx, cfg); err != nil {
		return err
	}
	slog.Info("config bootstrapped", "owner", cfg.Owner, "allowed_coins", checker.Len())
	return nil
}

// CreateAccount opens a credit account for owner with an empty position.
func (s *Service) CreateAccount(ctx context.Context, owner string) (*model.Account, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidRequest)
	}

	acct := &model.Account{
		ID:        uuid.New().String(),
		Owner:     owner,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, acct); err != nil {
		return nil, err
	}

	metrics.AccountsCreated.Inc()
	slog.Info("credit account created", "account", acct.ID, "owner", owner)
	return acct, nil
}

// UpdateAccount runs actions in order against accountID on behalf of caller.
// funds are the coins the caller sends along; deposits must account for all
// of them. The request is all-or-nothing: on any failure no balance or share
// change is persisted and funds already borrowed from the red bank are
// returned to it.
func (s *Service) UpdateAccount(ctx context.Context, caller, accountID string, actions []model.Action, funds []model.Coin) (*model.Position, error) {
	start := time.Now()

	// Serialize account updates.
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, err := s.updateAccount(ctx, caller, accountID, actions, funds)
	metrics.UpdateLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpdatesTotal.WithLabelValues(reason(err)).Inc()
		slog.Warn("account update rejected",
			"account", accountID,
			"caller", caller,
			"reason", reason(err),
			"err", err,
		)
		return nil, err
	}
	metrics.UpdatesTotal.WithLabelValues("committed").Inc()
	return pos, nil
}

func (s *Service) updateAccount(ctx context.Context, caller, accountID string, actions []model.Action, funds []model.Coin) (*model.Position, error) {
	if err := s.gate.AccountOwner(ctx, caller, accountID); err != nil {
		return nil, err
	}

	cfg, err := s.ledger.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	checker, err := whitelist.NewChecker(cfg.AllowedCoins)
	if err != nil {
		return nil, fmt.Errorf("load whitelist: %w", err)
	}
	slog.Debug("whitelist loaded", "account", accountID, "allowed_coins", checker.Len())

	before, err := s.ledger.GetPosition(ctx, accountID)
	if err != nil {
		return nil, err
	}

	req, err := newRequest(accountID, funds)
	if err != nil {
		return nil, err
	}

	for i, action := range actions {
		if err := s.apply(ctx, req, checker, action); err != nil {
			slog.Debug("action failed", "account", accountID, "index", i, "kind", action.Kind(), "err", err)
			s.compensate(ctx, req)
			return nil, err
		}
	}

	if err := req.settleFunds(); err != nil {
		s.compensate(ctx, req)
		return nil, err
	}

	after, ok := req.changes.ApplyTo(before)
	if !ok {
		s.compensate(ctx, req)
		return nil, ErrOverflow
	}

	if !req.changes.IsEmpty() {
		if err := s.store.Commit(ctx, req.changes); err != nil {
			s.compensate(ctx, req)
			if errors.Is(err, store.ErrOverflow) {
				return nil, fmt.Errorf("%w: %v", ErrOverflow, err)
			}
			return nil, fmt.Errorf("commit account %s: %w", accountID, err)
		}
	}

	for _, action := range actions {
		metrics.ActionsTotal.WithLabelValues(action.Kind()).Inc()
	}
	for _, c := range req.borrowed {
		metrics.BorrowVolume.WithLabelValues(c.Denom).Add(toDecimal(c.Amount).InexactFloat64())
	}

	slog.Info("account updated",
		"account", accountID,
		"actions", len(actions),
		"borrows", len(req.borrowed),
	)
	s.broadcast(accountID, actions, req)

	return after, nil
}

func (s *Service) apply(ctx context.Context, req *request, checker *whitelist.Checker, action model.Action) error {
	switch action.Kind() {
	case "deposit":
		return s.deposit(req, checker, *action.Deposit)
	case "borrow":
		return s.borrow(ctx, req, checker, *action.Borrow)
	default:
		return ErrInvalidAction
	}
}

// deposit credits coins sent with the request to the account.
func (s *Service) deposit(req *request, checker *whitelist.Checker, coin model.Coin) error {
	if coin.IsZero() {
		return ErrNoAmount
	}
	if err := denom.ValidateCoin(coin); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := checker.Check(coin.Denom); err != nil {
		return err
	}
	if err := req.takeFunds(coin); err != nil {
		return err
	}
	if !req.changes.CreditBalance(coin.Denom, coin.Amount) {
		return ErrOverflow
	}
	return nil
}

// borrow draws coin from the red bank into the account and mints the debt
// shares it is worth at the current exchange rate.
func (s *Service) borrow(ctx context.Context, req *request, checker *whitelist.Checker, coin model.Coin) error {
	if coin.IsZero() {
		return ErrNoAmount
	}
	if err := denom.ValidateCoin(coin); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := checker.Check(coin.Denom); err != nil {
		return err
	}

	totalShares, err := req.totalShares(ctx, s.ledger, coin.Denom)
	if err != nil {
		return err
	}
	totalDebt, err := s.reserve.Debt(ctx, coin.Denom)
	if err != nil {
		metrics.ReserveFailures.WithLabelValues("debt").Inc()
		return &ReserveError{Op: "debt", Denom: coin.Denom, Err: err}
	}

	minted, err := debtshare.IssueShares(coin.Amount, totalShares, totalDebt)
	if err != nil {
		return fmt.Errorf("issue %s debt shares: %w", coin.Denom, err)
	}

	if err := s.reserve.Borrow(ctx, coin.Denom, coin.Amount); err != nil {
		metrics.ReserveFailures.WithLabelValues("borrow").Inc()
		return &ReserveError{Op: "borrow", Denom: coin.Denom, Err: err}
	}
	req.borrowed = append(req.borrowed, coin)

	if !req.recordShares(coin.Denom, minted) || !req.changes.CreditBalance(coin.Denom, coin.Amount) {
		return ErrOverflow
	}

	slog.Debug("borrow executed",
		"account", req.accountID,
		"denom", coin.Denom,
		"amount", coin.Amount.Dec(),
		"shares_minted", minted.Dec(),
		"total_shares_before", totalShares.Dec(),
		"total_debt_before", totalDebt.Dec(),
	)
	return nil
}

// compensate returns funds borrowed by a failed request to the red bank, most
// recent first. It runs even if the request context was cancelled.
func (s *Service) compensate(ctx context.Context, req *request) {
	ctx = context.WithoutCancel(ctx)
	for i := len(req.borrowed) - 1; i >= 0; i-- {
		c := req.borrowed[i]
		if err := s.reserve.Repay(ctx, c.Denom, c.Amount); err != nil {
			metrics.ReserveFailures.WithLabelValues("repay").Inc()
			slog.Error("failed to return borrowed funds to red bank",
				"account", req.accountID,
				"denom", c.Denom,
				"amount", c.Amount.Dec(),
				"err", err,
			)
		}
	}
	req.borrowed = nil
}

func (s *Service) broadcast(accountID string, actions []model.Action, req *request) {
	if s.wsHub == nil {
		return
	}
	kinds := make([]string, 0, len(actions))
	for _, a := range actions {
		kinds = append(kinds, a.Kind())
	}
	s.wsHub.Broadcast(WSMessage{
		Type:      "account_updated",
		AccountID: accountID,
		Actions:   kinds,
		Borrowed:  req.borrowed,
	})
}

// --- Admin ---

// UpdateConfig applies upd on behalf of caller, who must be the config owner.
func (s *Service) UpdateConfig(ctx context.Context, caller string, upd model.ConfigUpdate) (*model.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.gate.Admin(ctx, caller)
	if err != nil {
		return nil, err
	}

	if upd.Owner != nil {
		if strings.TrimSpace(*upd.Owner) == "" {
			return nil, fmt.Errorf("%w: owner must not be empty", ErrInvalidRequest)
		}
		cfg.Owner = *upd.Owner
	}
	if upd.RedBank != nil {
		cfg.RedBank = *upd.RedBank
	}
	if upd.AllowedCoins != nil {
		if _, err := whitelist.NewChecker(upd.AllowedCoins); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		cfg.AllowedCoins = upd.AllowedCoins
	}

	if err := s.store.SaveConfig(ctx, cfg); err != nil {
		return nil, err
	}
	slog.Info("config updated", "caller", caller, "owner", cfg.Owner, "allowed_coins", len(cfg.AllowedCoins))
	return cfg, nil
}

// SetPrice sets the oracle price of a denom. Owner only.
func (s *Service) SetPrice(ctx context.Context, caller, d string, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.gate.Admin(ctx, caller); err != nil {
		return err
	}
	if err := s.prices.SetPrice(d, price); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	slog.Info("price set", "denom", d, "price", price.String())
	return nil
}

// --- Queries ---

// Config returns the current config.
func (s *Service) Config(ctx context.Context) (*model.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.GetConfig(ctx)
}

// Position values every balance and debt share of accountID at oracle prices.
// Debt shares are valued against the red bank's current debt, so the owed
// amount grows as interest accrues.
func (s *Service) Position(ctx context.Context, accountID string) (*model.PositionResponse, error) {
	// Read committed state only.
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, err := s.store.GetPosition(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return nil, err
	}

	resp := &model.PositionResponse{
		AccountID:  accountID,
		CoinAssets: []model.CoinValue{},
		DebtShares: []model.CoinSharesValue{},
	}

	for _, d := range model.SortedDenoms(pos.Coins) {
		amount := pos.Coins[d]
		if amount.IsZero() {
			continue
		}
		price, err := s.prices.Price(ctx, d)
		if err != nil {
			return nil, err
		}
		resp.CoinAssets = append(resp.CoinAssets, model.CoinValue{
			Denom:      d,
			Amount:     amount,
			Price:      price,
			TotalValue: price.Mul(toDecimal(amount)),
		})
	}

	for _, d := range model.SortedDenoms(pos.DebtShares) {
		shares := pos.DebtShares[d]
		if shares.IsZero() {
			continue
		}
		owed, err := s.owed(ctx, d, shares)
		if err != nil {
			return nil, err
		}
		price, err := s.prices.Price(ctx, d)
		if err != nil {
			return nil, err
		}
		resp.DebtShares = append(resp.DebtShares, model.CoinSharesValue{
			Denom:      d,
			Shares:     shares,
			TotalValue: price.Mul(toDecimal(owed)),
		})
	}

	return resp, nil
}

// owed values shares of denom against the red bank's current debt.
func (s *Service) owed(ctx context.Context, d string, shares *uint256.Int) (*uint256.Int, error) {
	total, err := s.ledger.GetTotalDebtShares(ctx, d)
	if err != nil {
		return nil, err
	}
	debt, err := s.reserve.Debt(ctx, d)
	if err != nil {
		metrics.ReserveFailures.WithLabelValues("debt").Inc()
		return nil, &ReserveError{Op: "debt", Denom: d, Err: err}
	}
	return debtshare.ValueShares(shares, total, debt), nil
}

// TotalDebtShares returns the total debt shares issued for denom.
func (s *Service) TotalDebtShares(ctx context.Context, d string) (model.CoinShares, error) {
	if err := denom.Validate(d); err != nil {
		return model.CoinShares{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	shares, err := s.store.GetTotalDebtShares(ctx, d)
	if err != nil {
		return model.CoinShares{}, err
	}
	return model.CoinShares{Denom: d, Shares: shares}, nil
}

// AllTotalDebtShares returns the totals of every borrowed denom.
func (s *Service) AllTotalDebtShares(ctx context.Context) ([]model.CoinShares, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ListTotalDebtShares(ctx)
}

func toDecimal(v *uint256.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v.ToBig(), 0)
}
