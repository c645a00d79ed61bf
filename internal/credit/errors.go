package credit

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/rover/credit-manager/internal/whitelist"
)

var (
	// ErrNoAmount is returned for a deposit or borrow of zero. The request
	// fails and nothing is changed.
	ErrNoAmount = errors.New("no amount specified")

	// ErrUnauthorized is returned when a non-owner calls an admin operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAccountNotFound is returned for an unknown credit account id.
	ErrAccountNotFound = errors.New("credit account not found")

	// ErrInvalidAction is returned for an action with zero or several kinds set.
	ErrInvalidAction = errors.New("action must specify exactly one of deposit or borrow")

	// ErrInvalidRequest is returned for malformed input such as a missing
	// owner or an unparseable coin.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrOverflow is returned when a request would overflow a balance or share count.
	ErrOverflow = errors.New("amount overflows")
)

// NotWhitelistedError is returned for a denom outside the whitelist.
type NotWhitelistedError = whitelist.NotWhitelistedError

// NotTokenOwnerError is returned when the caller does not own the account.
type NotTokenOwnerError struct {
	User      string
	AccountID string
}

func (e *NotTokenOwnerError) Error() string {
	return fmt.Sprintf("%s is not the owner of account %s", e.User, e.AccountID)
}

// FundsMismatchError is returned when the funds sent with a request do not
// match what its deposits account for.
type FundsMismatchError struct {
	Denom    string
	Expected *uint256.Int
	Received *uint256.Int
}

func (e *FundsMismatchError) Error() string {
	return fmt.Sprintf("funds mismatch for %s: expected %s, received %s",
		e.Denom, e.Expected.Dec(), e.Received.Dec())
}

// ReserveError wraps a failed red bank call. The request is aborted and the
// failure is not retried.
type ReserveError struct {
	Op    string
	Denom string
	Err   error
}

func (e *ReserveError) Error() string {
	return fmt.Sprintf("red bank %s %s: %v", e.Op, e.Denom, e.Err)
}

func (e *ReserveError) Unwrap() error { return e.Err }

// reason maps an error to a short, low-cardinality label for metrics and logs.
func reason(err error) string {
	var (
		notOwner     *NotTokenOwnerError
		notListed    *NotWhitelistedError
		mismatch     *FundsMismatchError
		reserveError *ReserveError
	)
	switch {
	case errors.As(err, &notOwner):
		return "not_token_owner"
	case errors.As(err, &notListed):
		return "not_whitelisted"
	case errors.Is(err, ErrNoAmount):
		return "no_amount"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.As(err, &mismatch):
		return "funds_mismatch"
	case errors.As(err, &reserveError):
		return "reserve_failure"
	case errors.Is(err, ErrInvalidAction), errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return "internal"
	}
}
