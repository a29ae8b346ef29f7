package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/solpaper/solpaper/internal/domain"
	"github.com/solpaper/solpaper/pkg/retrier"
)

const bonkAddress = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

const tokenPayload = `{
  "pairs": [
    {
      "chainId": "ethereum",
      "dexId": "uniswap",
      "baseToken": {"address": "0xabc", "name": "Wrong Chain", "symbol": "WC"},
      "priceUsd": "99",
      "liquidity": {"usd": 9999999}
    },
    {
      "chainId": "solana",
      "dexId": "raydium",
      "pairAddress": "pair-deep",
      "baseToken": {"address": "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", "name": "Bonk", "symbol": "BONK"},
      "priceUsd": "0.0000123",
      "priceChange": {"h24": 4.2},
      "volume": {"h24": 150000},
      "liquidity": {"usd": 500000},
      "marketCap": 800000000,
      "fdv": 900000000,
      "pairCreatedAt": 1700000000000
    },
    {
      "chainId": "solana",
      "dexId": "orca",
      "pairAddress": "pair-shallow",
      "baseToken": {"address": "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", "name": "Bonk", "symbol": "BONK"},
      "priceUsd": "0.0000100",
      "liquidity": {"usd": 1000}
    }
  ]
}`

const searchPayload = `{
  "pairs": [
    {
      "chainId": "solana",
      "dexId": "raydium",
      "baseToken": {"address": "addr-small", "name": "Small", "symbol": "SML"},
      "priceUsd": "1",
      "marketCap": 1000
    },
    {
      "chainId": "bsc",
      "dexId": "pancake",
      "baseToken": {"address": "addr-bsc", "name": "Off Chain", "symbol": "OFF"},
      "priceUsd": "5",
      "marketCap": 99999999
    },
    {
      "chainId": "solana",
      "dexId": "orca",
      "baseToken": {"address": "addr-big", "name": "Big", "symbol": "BIG"},
      "priceUsd": "2",
      "marketCap": 5000000
    }
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *DexScreenerClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewDexScreenerClient(server.URL, 0, zap.NewNop())
}

func TestDexScreenerClient_Quote_PicksDeepestSolanaPair(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tokens/"+bonkAddress, r.URL.Path)
		w.Write([]byte(tokenPayload))
	})

	quote, err := client.Quote(context.Background(), bonkAddress)
	require.NoError(t, err)

	assert.Equal(t, "BONK", quote.Symbol)
	assert.Equal(t, "raydium", quote.DexName)
	assert.Equal(t, "pair-deep", quote.PairAddress)
	assert.True(t, quote.PriceUSD.Equal(decimal.RequireFromString("0.0000123")))
	assert.True(t, quote.LiquidityUSD.Equal(decimal.NewFromInt(500000)))
	assert.True(t, quote.MarketCapUSD.Equal(decimal.NewFromInt(800000000)))
	assert.Equal(t, int64(1700000000000), quote.PairCreatedAt)
}

func TestDexScreenerClient_Quote_MissingFieldsDefaultToZero(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pairs": [{"chainId": "solana", "baseToken": {"address": "x"}}]}`))
	})

	quote, err := client.Quote(context.Background(), bonkAddress)
	require.NoError(t, err)

	assert.True(t, quote.PriceUSD.IsZero())
	assert.True(t, quote.Volume24hUSD.IsZero())
	assert.True(t, quote.LiquidityUSD.IsZero())
	assert.True(t, quote.MarketCapUSD.IsZero())
	assert.Equal(t, "Unknown", quote.Symbol)
	assert.Equal(t, "Unknown", quote.Name)
}

func TestDexScreenerClient_Quote_NotFound(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no pairs at all", `{"pairs": []}`},
		{"null pairs", `{"pairs": null}`},
		{"no solana pairs", `{"pairs": [{"chainId": "ethereum", "priceUsd": "1"}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			})
			_, err := client.Quote(context.Background(), bonkAddress)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrTokenNotFound)
		})
	}
}

func TestDexScreenerClient_Search_SortedByMarketCap(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/", r.URL.Path)
		assert.Equal(t, "bonk", r.URL.Query().Get("q"))
		w.Write([]byte(searchPayload))
	})

	quotes, err := client.Search(context.Background(), "bonk")
	require.NoError(t, err)
	require.Len(t, quotes, 2, "non-solana pairs are filtered out")

	assert.Equal(t, "BIG", quotes[0].Symbol)
	assert.Equal(t, "SML", quotes[1].Symbol)
	assert.True(t, quotes[0].MarketCapUSD.GreaterThan(quotes[1].MarketCapUSD))
}

func TestDexScreenerClient_Search_AddressQueryResolvesDirectly(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/tokens/"))
		w.Write([]byte(tokenPayload))
	})

	quotes, err := client.Search(context.Background(), bonkAddress)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "BONK", quotes[0].Symbol)
}

func TestDexScreenerClient_Search_AddressQueryNotFoundYieldsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pairs": []}`))
	})

	quotes, err := client.Search(context.Background(), bonkAddress)
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestDexScreenerClient_UpstreamErrorIsReported(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	// no backoff pauses against a local server
	client.retrier = retrier.New(retrier.WithMaxRetries(0))

	_, err := client.Quote(context.Background(), bonkAddress)
	require.Error(t, err)
}
