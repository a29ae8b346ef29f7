package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Position represents an open holding in one token: quantity held plus the
// weighted-average cost basis in USD per token.
type Position struct {
	Symbol       string
	TokenAddress string
	Amount       decimal.Decimal
	EntryPrice   decimal.Decimal
	OpenedAt     time.Time
}

// NewPosition opens a position with the first purchased lot.
func NewPosition(symbol, tokenAddress string, amount, entryPrice decimal.Decimal, openedAt time.Time) (*Position, error) {
	if tokenAddress == "" {
		return nil, errors.New("position token address is required")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("position amount must be greater than zero")
	}
	if entryPrice.IsNegative() {
		return nil, errors.New("entry price must not be negative")
	}

	return &Position{
		Symbol:       symbol,
		TokenAddress: tokenAddress,
		Amount:       amount,
		EntryPrice:   entryPrice,
		OpenedAt:     openedAt,
	}, nil
}

// AddLot folds an additional purchase into the position, recomputing the
// entry price as the weighted average over the combined quantity:
//
//	entry = (oldAmount*oldEntry + amount*price) / (oldAmount+amount)
//
// OpenedAt is not touched, it marks the first purchase only.
func (p *Position) AddLot(amount, priceUSD decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("lot amount must be greater than zero")
	}

	total := p.Amount.Add(amount)
	existingNotional := p.EntryPrice.Mul(p.Amount)
	addedNotional := priceUSD.Mul(amount)
	p.EntryPrice = existingNotional.Add(addedNotional).Div(total)
	p.Amount = total
	return nil
}

// Reduce removes a sold slice from the position. The entry price is left
// unchanged: the cost basis of the remaining tokens stays at the prior
// weighted average. Returns true when the position is fully closed.
func (p *Position) Reduce(amount decimal.Decimal) (closed bool, err error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return false, errors.New("reduce amount must be greater than zero")
	}
	if amount.GreaterThan(p.Amount) {
		return false, errors.Errorf("reduce amount %s exceeds position amount %s", amount.String(), p.Amount.String())
	}

	p.Amount = p.Amount.Sub(amount)
	return p.Amount.IsZero(), nil
}

// PnL calculates profit and loss in USD against the given market price.
func (p *Position) PnL(currentPriceUSD decimal.Decimal) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return currentPriceUSD.Sub(p.EntryPrice).Mul(p.Amount)
}

// MarketValue returns the position value in USD at the given price.
func (p *Position) MarketValue(currentPriceUSD decimal.Decimal) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return p.Amount.Mul(currentPriceUSD)
}

// Clone returns an independent copy.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
