package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a user's virtual trading account. The balance is denominated in
// SOL and must never go negative; the ledger rejects any buy that would
// overdraw it before mutating anything.
type Account struct {
	UserID     int64
	Balance    decimal.Decimal
	Positions  []*Position
	TradeCount int
	CreatedAt  time.Time
}

// NewAccount creates a fresh account funded with the starting balance.
func NewAccount(userID int64, startingBalance decimal.Decimal) *Account {
	return &Account{
		UserID:    userID,
		Balance:   startingBalance,
		Positions: make([]*Position, 0),
		CreatedAt: time.Now(),
	}
}

// Position returns the open position for the token, or nil. At most one
// position per token exists in an account.
func (a *Account) Position(tokenAddress string) *Position {
	for _, p := range a.Positions {
		if p.TokenAddress == tokenAddress {
			return p
		}
	}
	return nil
}

// AddPosition appends a newly opened position.
func (a *Account) AddPosition(p *Position) {
	a.Positions = append(a.Positions, p)
}

// RemovePosition drops the position for the token, preserving order of the
// remaining ones.
func (a *Account) RemovePosition(tokenAddress string) {
	for i, p := range a.Positions {
		if p.TokenAddress == tokenAddress {
			a.Positions = append(a.Positions[:i], a.Positions[i+1:]...)
			return
		}
	}
}

// Clone returns a deep copy safe to hand outside the ledger.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Positions = make([]*Position, len(a.Positions))
	for i, p := range a.Positions {
		clone.Positions[i] = p.Clone()
	}
	return &clone
}
