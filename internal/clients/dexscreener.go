// Package clients contains integrations with external market-data APIs.
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/solpaper/solpaper/internal/domain"
	"github.com/solpaper/solpaper/pkg/retrier"
	"github.com/solpaper/solpaper/pkg/validate"
)

const (
	DefaultBaseURL = "https://api.dexscreener.com/latest/dex"

	defaultTimeout = 10 * time.Second
	searchFetchCap = 10
	solanaChainID  = "solana"
)

// DexScreenerClient resolves token quotes from the DexScreener API. Missing
// or null upstream fields are defaulted to zero, mirroring what the API
// actually sends for thin markets; only a token with no pairs at all is
// reported as not found.
type DexScreenerClient struct {
	baseURL    string
	httpClient *http.Client
	retrier    *retrier.Retrier
	logger     *zap.Logger
}

// NewDexScreenerClient creates a client for the given API base URL.
func NewDexScreenerClient(baseURL string, timeout time.Duration, logger *zap.Logger) *DexScreenerClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DexScreenerClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		retrier:    retrier.New(),
		logger:     logger,
	}
}

// dexPair is the wire shape of one trading pair in DexScreener responses.
// priceUsd arrives as a string, the rest of the numbers as JSON floats.
type dexPair struct {
	ChainID   string `json:"chainId"`
	DexID     string `json:"dexId"`
	PairAddr  string `json:"pairAddress"`
	BaseToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUsd    string `json:"priceUsd"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	MarketCap     float64 `json:"marketCap"`
	Fdv           float64 `json:"fdv"`
	PairCreatedAt int64   `json:"pairCreatedAt"`
}

type dexResponse struct {
	Pairs []dexPair `json:"pairs"`
}

// Quote fetches the token's current market data, picking the Solana pair with
// the deepest liquidity when several exist.
func (c *DexScreenerClient) Quote(ctx context.Context, tokenAddress string) (*domain.TokenQuote, error) {
	addr := fmt.Sprintf("%s/tokens/%s", c.baseURL, tokenAddress)

	resp, err := retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) (*dexResponse, error) {
		return c.get(ctx, addr)
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetch token pairs")
	}

	var best *dexPair
	for i := range resp.Pairs {
		pair := &resp.Pairs[i]
		if pair.ChainID != solanaChainID {
			continue
		}
		if best == nil || pair.Liquidity.USD > best.Liquidity.USD {
			best = pair
		}
	}
	if best == nil {
		return nil, errors.Wrapf(domain.ErrTokenNotFound, "no solana pairs for %s", tokenAddress)
	}

	quote := pairToQuote(best)
	if quote.Address == "" {
		quote.Address = tokenAddress
	}
	return quote, nil
}

// Search finds tokens matching a free-text query, ordered by descending
// market capitalization. A query that already looks like a token address is
// resolved directly instead.
func (c *DexScreenerClient) Search(ctx context.Context, query string) ([]domain.TokenQuote, error) {
	if validate.IsTokenAddress(query) {
		quote, err := c.Quote(ctx, query)
		if err != nil {
			if errors.Is(err, domain.ErrTokenNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return []domain.TokenQuote{*quote}, nil
	}

	addr := fmt.Sprintf("%s/search/?q=%s", c.baseURL, url.QueryEscape(query))

	resp, err := retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) (*dexResponse, error) {
		return c.get(ctx, addr)
	})
	if err != nil {
		return nil, errors.Wrap(err, "search tokens")
	}

	quotes := make([]domain.TokenQuote, 0, searchFetchCap)
	for i := range resp.Pairs {
		if len(quotes) == searchFetchCap {
			break
		}
		pair := &resp.Pairs[i]
		if pair.ChainID != solanaChainID {
			continue
		}
		quotes = append(quotes, *pairToQuote(pair))
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].MarketCapUSD.GreaterThan(quotes[j].MarketCapUSD)
	})

	return quotes, nil
}

func (c *DexScreenerClient) get(ctx context.Context, addr string) (*dexResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "http get")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("dexscreener API error",
			zap.String("url", addr),
			zap.Int("status", resp.StatusCode))
		return nil, errors.Errorf("dexscreener: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}

	var parsed dexResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	return &parsed, nil
}

func pairToQuote(pair *dexPair) *domain.TokenQuote {
	return &domain.TokenQuote{
		Symbol:         orUnknown(pair.BaseToken.Symbol),
		Name:           orUnknown(pair.BaseToken.Name),
		Address:        pair.BaseToken.Address,
		PriceUSD:       decimalFromString(pair.PriceUsd),
		PriceChange24h: decimal.NewFromFloat(pair.PriceChange.H24),
		Volume24hUSD:   decimal.NewFromFloat(pair.Volume.H24),
		LiquidityUSD:   decimal.NewFromFloat(pair.Liquidity.USD),
		MarketCapUSD:   decimal.NewFromFloat(pair.MarketCap),
		FDVUSD:         decimal.NewFromFloat(pair.Fdv),
		DexName:        orUnknown(pair.DexID),
		PairAddress:    pair.PairAddr,
		PairCreatedAt:  pair.PairCreatedAt,
	}
}

// decimalFromString parses upstream decimal strings, defaulting to zero for
// anything missing or malformed.
func decimalFromString(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
