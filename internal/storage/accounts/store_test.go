package accounts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/solpaper/solpaper/internal/domain"
)

func tempStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trading_data.json")
	store, err := NewStore(path, zap.NewNop())
	require.NoError(t, err)
	return store, path
}

func TestStore_LoadMissingFileReturnsEmpty(t *testing.T) {
	store, _ := tempStore(t)

	accounts, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestStore_RoundTrip(t *testing.T) {
	store, _ := tempStore(t)

	addrA := strings.Repeat("A", 44)
	addrB := strings.Repeat("B", 44)

	alice := domain.NewAccount(1001, decimal.RequireFromString("9.876543210123456789"))
	alice.TradeCount = 13
	posA, err := domain.NewPosition("BONK", addrA,
		decimal.RequireFromString("1234.5678"), decimal.RequireFromString("0.00001234"), time.Now().UTC())
	require.NoError(t, err)
	posB, err := domain.NewPosition("WIF", addrB,
		decimal.RequireFromString("0.5"), decimal.RequireFromString("2.75"), time.Now().UTC())
	require.NoError(t, err)
	alice.AddPosition(posA)
	alice.AddPosition(posB)

	bob := domain.NewAccount(1002, decimal.Zero)

	require.NoError(t, store.Save(map[int64]*domain.Account{
		1001: alice,
		1002: bob,
	}))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	gotAlice := loaded[1001]
	require.NotNil(t, gotAlice)
	assert.True(t, gotAlice.Balance.Equal(alice.Balance), "decimal balances must round-trip exactly")
	assert.Equal(t, 13, gotAlice.TradeCount)
	require.Len(t, gotAlice.Positions, 2)

	gotPos := gotAlice.Position(addrA)
	require.NotNil(t, gotPos)
	assert.Equal(t, "BONK", gotPos.Symbol)
	assert.True(t, gotPos.Amount.Equal(posA.Amount))
	assert.True(t, gotPos.EntryPrice.Equal(posA.EntryPrice))
	assert.True(t, gotPos.OpenedAt.Equal(posA.OpenedAt))

	gotBob := loaded[1002]
	require.NotNil(t, gotBob)
	assert.True(t, gotBob.Balance.IsZero())
	assert.Empty(t, gotBob.Positions)
}

func TestStore_CorruptFileLogsAndReturnsEmpty(t *testing.T) {
	store, path := tempStore(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	accounts, err := store.Load()
	require.NoError(t, err, "corrupt snapshot must not fail startup")
	assert.Empty(t, accounts)
}

func TestStore_MalformedRecordsAreSkipped(t *testing.T) {
	store, path := tempStore(t)

	payload := `{
  "1001": {"user_id": 1001, "sol_balance": "5.5", "positions": [], "total_trades": 1, "created_at": "2026-01-02T03:04:05Z"},
  "1002": {"user_id": 1002, "sol_balance": "not-a-number", "positions": [], "total_trades": 0, "created_at": "2026-01-02T03:04:05Z"},
  "oops": {"user_id": 0, "sol_balance": "1", "positions": [], "total_trades": 0, "created_at": "2026-01-02T03:04:05Z"}
}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	accounts, err := store.Load()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.True(t, accounts[1001].Balance.Equal(decimal.RequireFromString("5.5")))
}

func TestStore_SaveIsAtomic(t *testing.T) {
	store, path := tempStore(t)

	require.NoError(t, store.Save(map[int64]*domain.Account{
		1: domain.NewAccount(1, decimal.NewFromInt(10)),
	}))

	// no temp file left behind after a successful save
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
