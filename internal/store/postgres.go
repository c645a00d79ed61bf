package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rover/credit-manager/internal/model"
)

// maxUint256 bounds every NUMERIC column so a value that would not fit back
// into a uint256 fails the transaction instead of being stored.
const maxUint256 = "115792089237316195423570985008687907853269984665640564039457584007913129639935"

// Schema creates the credit manager tables. Safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id         TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS coin_balances (
	account_id TEXT NOT NULL REFERENCES accounts(id),
	denom      TEXT NOT NULL,
	amount     NUMERIC(78, 0) NOT NULL CHECK (amount >= 0 AND amount <= ` + maxUint256 + `),
	PRIMARY KEY (account_id, denom)
);

CREATE TABLE IF NOT EXISTS debt_shares (
	account_id TEXT NOT NULL REFERENCES accounts(id),
	denom      TEXT NOT NULL,
	shares     NUMERIC(78, 0) NOT NULL CHECK (shares >= 0 AND shares <= ` + maxUint256 + `),
	PRIMARY KEY (account_id, denom)
);

CREATE TABLE IF NOT EXISTS total_debt_shares (
	denom  TEXT PRIMARY KEY,
	shares NUMERIC(78, 0) NOT NULL CHECK (shares >= 0 AND shares <= ` + maxUint256 + `)
);

CREATE TABLE IF NOT EXISTS config (
	id            BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
	owner         TEXT NOT NULL,
	red_bank      TEXT NOT NULL,
	allowed_coins JSONB NOT NULL
);
`

// Postgres error codes.
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Amounts and shares are stored as NUMERIC(78,0) and moved as decimal text
// so no precision is lost on the way in or out.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *PostgresStore) CreateAccount(ctx context.Context, a *model.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, owner, created_at) VALUES ($1, $2, $3)`,
		a.ID, a.Owner, a.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: account %s", ErrAlreadyExists, a.ID)
	}
	return err
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner, created_at FROM accounts WHERE id = $1`, id).
		Scan(&a.ID, &a.Owner, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return &a, nil
}

// GetPosition reads balances and shares in one repeatable-read snapshot.
func (s *PostgresStore) GetPosition(ctx context.Context, accountID string) (*model.Position, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, accountID)
	}

	pos := model.NewPosition(accountID)

	rows, err := tx.Query(ctx,
		`SELECT denom, amount::TEXT FROM coin_balances WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, err
	}
	if err := scanAmounts(rows, pos.Coins); err != nil {
		return nil, fmt.Errorf("scan balances of %s: %w", accountID, err)
	}

	rows, err = tx.Query(ctx,
		`SELECT denom, shares::TEXT FROM debt_shares WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, err
	}
	if err := scanAmounts(rows, pos.DebtShares); err != nil {
		return nil, fmt.Errorf("scan debt shares of %s: %w", accountID, err)
	}

	return pos, tx.Commit(ctx)
}

func (s *PostgresStore) GetTotalDebtShares(ctx context.Context, denom string) (*uint256.Int, error) {
	var sharesS string
	err := s.pool.QueryRow(ctx,
		`SELECT shares::TEXT FROM total_debt_shares WHERE denom = $1`, denom).Scan(&sharesS)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get total debt shares %s: %w", denom, err)
	}
	return uint256.FromDecimal(sharesS)
}

func (s *PostgresStore) ListTotalDebtShares(ctx context.Context) ([]model.CoinShares, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT denom, shares::TEXT FROM total_debt_shares ORDER BY denom`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := []model.CoinShares{}
	for rows.Next() {
		var d, sharesS string
		if err := rows.Scan(&d, &sharesS); err != nil {
			return nil, err
		}
		shares, err := uint256.FromDecimal(sharesS)
		if err != nil {
			return nil, fmt.Errorf("total debt shares %s: %w", d, err)
		}
		totals = append(totals, model.CoinShares{Denom: d, Shares: shares})
	}
	return totals, rows.Err()
}

// Commit applies the changeset inside one transaction. The account row is
// locked first so concurrent commits for the same account serialize.
func (s *PostgresStore) Commit(ctx context.Context, cs *model.Changeset) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var id string
	err = tx.QueryRow(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, cs.AccountID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: account %s", ErrNotFound, cs.AccountID)
	}
	if err != nil {
		return err
	}

	for _, d := range model.SortedDenoms(cs.Credits) {
		if _, err := tx.Exec(ctx,
			`INSERT INTO coin_balances (account_id, denom, amount) VALUES ($1, $2, $3::TEXT::NUMERIC)
			 ON CONFLICT (account_id, denom) DO UPDATE SET amount = coin_balances.amount + EXCLUDED.amount`,
			cs.AccountID, d, cs.Credits[d].Dec()); err != nil {
			return commitErr(err, "credit balance", d)
		}
	}

	for _, d := range model.SortedDenoms(cs.Shares) {
		minted := cs.Shares[d].Dec()
		if _, err := tx.Exec(ctx,
			`INSERT INTO debt_shares (account_id, denom, shares) VALUES ($1, $2, $3::TEXT::NUMERIC)
			 ON CONFLICT (account_id, denom) DO UPDATE SET shares = debt_shares.shares + EXCLUDED.shares`,
			cs.AccountID, d, minted); err != nil {
			return commitErr(err, "record shares", d)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO total_debt_shares (denom, shares) VALUES ($1, $2::TEXT::NUMERIC)
			 ON CONFLICT (denom) DO UPDATE SET shares = total_debt_shares.shares + EXCLUDED.shares`,
			d, minted); err != nil {
			return commitErr(err, "total shares", d)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetConfig(ctx context.Context) (*model.Config, error) {
	var cfg model.Config
	var coinsJSON string
	err := s.pool.QueryRow(ctx,
		`SELECT owner, red_bank, allowed_coins::TEXT FROM config WHERE id`).
		Scan(&cfg.Owner, &cfg.RedBank, &coinsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: config", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	if err := json.Unmarshal([]byte(coinsJSON), &cfg.AllowedCoins); err != nil {
		return nil, fmt.Errorf("decode allowed coins: %w", err)
	}
	return &cfg, nil
}

func (s *PostgresStore) SaveConfig(ctx context.Context, cfg *model.Config) error {
	coins := cfg.AllowedCoins
	if coins == nil {
		coins = []model.CoinParams{}
	}
	coinsJSON, err := json.Marshal(coins)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO config (id, owner, red_bank, allowed_coins) VALUES (TRUE, $1, $2, $3::JSONB)
		 ON CONFLICT (id) DO UPDATE
		 SET owner = EXCLUDED.owner, red_bank = EXCLUDED.red_bank, allowed_coins = EXCLUDED.allowed_coins`,
		cfg.Owner, cfg.RedBank, string(coinsJSON),
	)
	return err
}

func commitErr(err error, op, denom string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation {
		return fmt.Errorf("%w: %s %s", ErrOverflow, op, denom)
	}
	return fmt.Errorf("%s %s: %w", op, denom, err)
}

// scanAmounts reads (denom, decimal text) rows into dst and closes rows.
func scanAmounts(rows pgx.Rows, dst map[string]*uint256.Int) error {
	defer rows.Close()
	for rows.Next() {
		var d, amountS string
		if err := rows.Scan(&d, &amountS); err != nil {
			return err
		}
		amount, err := uint256.FromDecimal(amountS)
		if err != nil {
			return fmt.Errorf("%s: %w", d, err)
		}
		dst[d] = amount
	}
	return rows.Err()
}
