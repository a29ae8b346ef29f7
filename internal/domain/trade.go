package domain

import "time"

// TradeSide marks a trade record as a buy or a sell.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// TradeRecord is an executed paper trade as written to the trade journal.
// Monetary fields are string-encoded decimals so they survive serialization
// without precision loss.
type TradeRecord struct {
	ID             string    `json:"id"`
	UserID         int64     `json:"user_id"`
	Side           TradeSide `json:"side"`
	TokenAddress   string    `json:"token_address"`
	Symbol         string    `json:"symbol"`
	Amount         string    `json:"amount"`
	PriceUSD       string    `json:"price_usd"`
	ValueSOL       string    `json:"value_sol"`
	RealizedPnLUSD string    `json:"realized_pnl_usd,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TradeRecordEntry bundles a journal record with its WAL index so streaming
// readers can resume from where they left off.
type TradeRecordEntry struct {
	Index  uint64
	Record TradeRecord
}
