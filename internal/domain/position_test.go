package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAddress = strings.Repeat("A", 44)

func TestNewPosition_Validation(t *testing.T) {
	now := time.Now()

	_, err := NewPosition("TEST", "", decimal.NewFromInt(1), decimal.NewFromInt(1), now)
	assert.Error(t, err)

	_, err = NewPosition("TEST", testAddress, decimal.Zero, decimal.NewFromInt(1), now)
	assert.Error(t, err)

	_, err = NewPosition("TEST", testAddress, decimal.NewFromInt(1), decimal.NewFromInt(-1), now)
	assert.Error(t, err)

	// zero entry price is allowed, upstream data can legitimately report it
	pos, err := NewPosition("TEST", testAddress, decimal.NewFromInt(1), decimal.Zero, now)
	require.NoError(t, err)
	assert.True(t, pos.EntryPrice.IsZero())
}

func TestPosition_AddLot_WeightedAverage(t *testing.T) {
	pos, err := NewPosition("TEST", testAddress,
		decimal.NewFromInt(100), decimal.RequireFromString("0.01"), time.Now())
	require.NoError(t, err)
	openedAt := pos.OpenedAt

	require.NoError(t, pos.AddLot(decimal.NewFromInt(300), decimal.RequireFromString("0.03")))

	// (100*0.01 + 300*0.03) / 400 = 0.025
	assert.True(t, pos.EntryPrice.Equal(decimal.RequireFromString("0.025")))
	assert.True(t, pos.Amount.Equal(decimal.NewFromInt(400)))
	assert.True(t, pos.OpenedAt.Equal(openedAt), "OpenedAt marks the first purchase only")
}

func TestPosition_Reduce(t *testing.T) {
	pos, err := NewPosition("TEST", testAddress,
		decimal.NewFromInt(100), decimal.RequireFromString("0.01"), time.Now())
	require.NoError(t, err)

	closed, err := pos.Reduce(decimal.NewFromInt(40))
	require.NoError(t, err)
	assert.False(t, closed)
	assert.True(t, pos.Amount.Equal(decimal.NewFromInt(60)))
	assert.True(t, pos.EntryPrice.Equal(decimal.RequireFromString("0.01")), "sells never move the cost basis")

	closed, err = pos.Reduce(decimal.NewFromInt(60))
	require.NoError(t, err)
	assert.True(t, closed)
	assert.True(t, pos.Amount.IsZero())

	_, err = pos.Reduce(decimal.NewFromInt(1))
	assert.Error(t, err)
}

func TestPosition_PnL(t *testing.T) {
	pos, err := NewPosition("TEST", testAddress,
		decimal.NewFromInt(500), decimal.RequireFromString("0.01"), time.Now())
	require.NoError(t, err)

	pnl := pos.PnL(decimal.RequireFromString("0.02"))
	assert.True(t, pnl.Equal(decimal.NewFromInt(5)))

	pnl = pos.PnL(decimal.RequireFromString("0.005"))
	assert.True(t, pnl.Equal(decimal.RequireFromString("-2.5")))
}

func TestAccount_PositionLookupAndRemoval(t *testing.T) {
	account := NewAccount(42, decimal.NewFromInt(10))
	other := strings.Repeat("B", 44)

	p1, err := NewPosition("AAA", testAddress, decimal.NewFromInt(1), decimal.NewFromInt(1), time.Now())
	require.NoError(t, err)
	p2, err := NewPosition("BBB", other, decimal.NewFromInt(2), decimal.NewFromInt(2), time.Now())
	require.NoError(t, err)
	account.AddPosition(p1)
	account.AddPosition(p2)

	assert.Equal(t, p1, account.Position(testAddress))
	assert.Nil(t, account.Position(strings.Repeat("C", 44)))

	account.RemovePosition(testAddress)
	assert.Nil(t, account.Position(testAddress))
	require.Len(t, account.Positions, 1)
	assert.Equal(t, "BBB", account.Positions[0].Symbol)
}

func TestAccount_CloneIsDeep(t *testing.T) {
	account := NewAccount(42, decimal.NewFromInt(10))
	pos, err := NewPosition("AAA", testAddress, decimal.NewFromInt(5), decimal.NewFromInt(1), time.Now())
	require.NoError(t, err)
	account.AddPosition(pos)

	clone := account.Clone()
	clone.Balance = decimal.Zero
	clone.Positions[0].Amount = decimal.NewFromInt(999)

	assert.True(t, account.Balance.Equal(decimal.NewFromInt(10)))
	assert.True(t, account.Positions[0].Amount.Equal(decimal.NewFromInt(5)))
}
