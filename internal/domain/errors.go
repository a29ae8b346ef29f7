package domain

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Ledger error kinds. The transport layer maps these to user-facing messages
// and status codes; the ledger itself never formats text for users.
var (
	// ErrQuoteUnavailable means the market-data lookup failed or the token
	// was not found. No account state was changed.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrTokenNotFound is returned by the market-data provider when no
	// matching pair exists for the token at all.
	ErrTokenNotFound = errors.New("token not found")

	// ErrNoSuchPosition means a sell was requested for a token the user
	// holds no position in.
	ErrNoSuchPosition = errors.New("no open position for token")

	// ErrInvalidInput covers non-positive quantities and malformed token
	// addresses, rejected before any lookup.
	ErrInvalidInput = errors.New("invalid input")
)

// InsufficientBalanceError is returned when a buy costs more than the account
// holds. Carries required vs available so callers can render suggestions.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: need %s SOL, have %s SOL",
		e.Required.String(), e.Available.String())
}

// InsufficientQuantityError is returned when a sell asks for more tokens than
// the position holds.
type InsufficientQuantityError struct {
	Held      decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("insufficient quantity: hold %s, tried to sell %s",
		e.Held.String(), e.Requested.String())
}
