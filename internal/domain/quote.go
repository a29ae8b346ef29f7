package domain

import "github.com/shopspring/decimal"

// TokenQuote is a point-in-time snapshot of a token's market data as reported
// by the market-data source. Missing upstream fields are zero, never an error;
// only a token with no matching pair at all is reported as not found.
type TokenQuote struct {
	Symbol         string
	Name           string
	Address        string
	PriceUSD       decimal.Decimal
	PriceChange24h decimal.Decimal
	Volume24hUSD   decimal.Decimal
	LiquidityUSD   decimal.Decimal
	MarketCapUSD   decimal.Decimal
	FDVUSD         decimal.Decimal
	DexName        string
	PairAddress    string
	PairCreatedAt  int64
}
