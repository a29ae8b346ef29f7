package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_Defaults(t *testing.T) {
	cfg, err := Get("")
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultDataFile, cfg.DataFile)
	assert.Equal(t, DefaultTradeLogDir, cfg.TradeLogDir)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.True(t, cfg.StartingBalance.Equal(decimal.RequireFromString("10.0")))
	assert.True(t, cfg.SolPriceUSD.Equal(decimal.NewFromInt(100)))
}

func TestGet_YamlOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	payload := `listen_addr: ":9090"
data_file: /tmp/accounts.json
starting_balance: "25.5"
sol_price_usd: "150"
`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	cfg, err := Get(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/accounts.json", cfg.DataFile)
	assert.True(t, cfg.StartingBalance.Equal(decimal.RequireFromString("25.5")))
	assert.True(t, cfg.SolPriceUSD.Equal(decimal.NewFromInt(150)))
	// untouched keys keep their defaults
	assert.Equal(t, DefaultTradeLogDir, cfg.TradeLogDir)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
}

func TestGet_EnvOverridesYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`starting_balance: "25.5"`), 0o644))

	t.Setenv("STARTING_BALANCE", "42")
	t.Setenv("SOL_PRICE_USD", "200")
	t.Setenv("LISTEN_ADDR", ":7070")

	cfg, err := Get(path)
	require.NoError(t, err)

	assert.True(t, cfg.StartingBalance.Equal(decimal.NewFromInt(42)))
	assert.True(t, cfg.SolPriceUSD.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, ":7070", cfg.ListenAddr)
}

func TestGet_Validation(t *testing.T) {
	t.Run("negative starting balance", func(t *testing.T) {
		t.Setenv("STARTING_BALANCE", "-1")
		_, err := Get("")
		assert.Error(t, err)
	})

	t.Run("zero sol price", func(t *testing.T) {
		t.Setenv("SOL_PRICE_USD", "0")
		_, err := Get("")
		assert.Error(t, err)
	})

	t.Run("unparseable env value", func(t *testing.T) {
		t.Setenv("STARTING_BALANCE", "ten")
		_, err := Get("")
		assert.Error(t, err)
	})
}

func TestGet_BadYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("starting_balance: [oops"), 0o644))

	_, err := Get(path)
	assert.Error(t, err)

	_, err = Get(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	src := Config{
		ListenAddr:      ":9999",
		DataFile:        "data.json",
		TradeLogDir:     "./wal",
		StartingBalance: decimal.RequireFromString("12.34"),
		SolPriceUSD:     decimal.NewFromInt(90),
		RequestTimeout:  7 * time.Second,
	}
	require.NoError(t, src.Write(path))

	cfg, err := Get(path)
	require.NoError(t, err)
	assert.Equal(t, src.ListenAddr, cfg.ListenAddr)
	assert.Equal(t, src.DataFile, cfg.DataFile)
	assert.Equal(t, src.TradeLogDir, cfg.TradeLogDir)
	assert.True(t, cfg.StartingBalance.Equal(src.StartingBalance))
	assert.True(t, cfg.SolPriceUSD.Equal(src.SolPriceUSD))
	assert.Equal(t, src.RequestTimeout, cfg.RequestTimeout)
}
