// Package web exposes the ledger's command surface as a small JSON API plus
// an SSE stream over the trade journal. It is a thin adapter: all trading
// rules live in the ledger.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/solpaper/solpaper/internal/domain"
	"github.com/solpaper/solpaper/internal/services/ledger"
)

const tradePollInterval = 2 * time.Second

type tradeReader interface {
	TradesAfter(index uint64) ([]domain.TradeRecordEntry, error)
}

// Server routes HTTP commands to the ledger.
type Server struct {
	addr   string
	ledger *ledger.Ledger
	trades tradeReader
	logger *zap.Logger
}

// NewServer creates the API server. trades may be nil when no journal is
// configured; the stream endpoint then reports unavailability.
func NewServer(addr string, l *ledger.Ledger, trades tradeReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{addr: addr, ledger: l, trades: trades, logger: logger}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /buy", s.handleBuy)
	mux.HandleFunc("POST /sell", s.handleSell)
	mux.HandleFunc("GET /account", s.handleAccount)
	mux.HandleFunc("GET /portfolio", s.handlePortfolio)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /quote", s.handleQuote)
	mux.HandleFunc("GET /trades/stream", s.handleTradeStream)

	server := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type tradeRequest struct {
	UserID       int64  `json:"user_id"`
	TokenAddress string `json:"token_address"`
	Amount       string `json:"amount"`
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	userID, token, amount, ok := s.decodeTradeRequest(w, r)
	if !ok {
		return
	}

	result, err := s.ledger.Buy(r.Context(), userID, token, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"symbol":        result.Symbol,
		"token_address": result.TokenAddress,
		"amount":        result.Amount.String(),
		"price_usd":     result.PriceUSD.String(),
		"cost_usd":      result.CostUSD.String(),
		"cost_sol":      result.CostSOL.String(),
		"new_balance":   result.NewBalance.String(),
		"total_trades":  result.TradeCount,
		"warning":       result.Warning,
	})
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	userID, token, amount, ok := s.decodeTradeRequest(w, r)
	if !ok {
		return
	}

	result, err := s.ledger.Sell(r.Context(), userID, token, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"symbol":           result.Symbol,
		"token_address":    result.TokenAddress,
		"amount":           result.Amount.String(),
		"price_usd":        result.PriceUSD.String(),
		"proceeds_usd":     result.ProceedsUSD.String(),
		"proceeds_sol":     result.ProceedsSOL.String(),
		"realized_pnl_usd": result.RealizedPnLUSD.String(),
		"new_balance":      result.NewBalance.String(),
		"total_trades":     result.TradeCount,
		"position_closed":  result.PositionClosed,
		"warning":          result.Warning,
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDParam(w, r)
	if !ok {
		return
	}

	account := s.ledger.GetOrCreateAccount(userID)
	positions := make([]map[string]any, 0, len(account.Positions))
	for _, p := range account.Positions {
		positions = append(positions, map[string]any{
			"symbol":        p.Symbol,
			"token_address": p.TokenAddress,
			"amount":        p.Amount.String(),
			"entry_price":   p.EntryPrice.String(),
			"opened_at":     p.OpenedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"user_id":      account.UserID,
		"sol_balance":  account.Balance.String(),
		"positions":    positions,
		"total_trades": account.TradeCount,
		"created_at":   account.CreatedAt,
	})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDParam(w, r)
	if !ok {
		return
	}

	value, err := s.ledger.Valuation(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	positions := make([]map[string]any, 0, len(value.Positions))
	for _, pv := range value.Positions {
		entry := map[string]any{
			"symbol":            pv.Symbol,
			"token_address":     pv.TokenAddress,
			"amount":            pv.Amount.String(),
			"entry_price":       pv.EntryPrice.String(),
			"price_unavailable": pv.PriceUnavailable,
		}
		if !pv.PriceUnavailable {
			entry["current_price_usd"] = pv.CurrentPriceUSD.String()
			entry["market_value_usd"] = pv.MarketValueUSD.String()
			entry["unrealized_pnl_usd"] = pv.UnrealizedPnLUSD.String()
		}
		positions = append(positions, entry)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"user_id":            value.UserID,
		"sol_balance":        value.Balance.String(),
		"total_value_sol":    value.TotalValueSOL.String(),
		"unrealized_pnl_usd": value.UnrealizedPnLUSD.String(),
		"total_trades":       value.TradeCount,
		"positions":          positions,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	quotes, err := s.ledger.SearchTokens(r.Context(), query)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(quotes))
	for i := range quotes {
		out = append(out, quoteJSON(&quotes[i]))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tokens": out})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	quote, err := s.ledger.GetQuote(r.Context(), token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, quoteJSON(quote))
}

func (s *Server) handleTradeStream(w http.ResponseWriter, r *http.Request) {
	if s.trades == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "trade journal not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// comment heartbeat every 30s so proxies keep the connection
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(tradePollInterval)
	defer pollTicker.Stop()

	lastIndex := uint64(0)
	sendTrades := func() error {
		entries, err := s.trades.TradesAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			payload, err := json.Marshal(entry.Record)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "event: trade\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = entry.Index
		}
		return nil
	}

	if err := sendTrades(); err != nil {
		http.Error(w, "failed to load trades", http.StatusInternalServerError)
		s.logger.Error("trade stream initial load", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendTrades(); err != nil {
				s.logger.Warn("trade stream poll", zap.Error(err))
			}
		}
	}
}

func (s *Server) decodeTradeRequest(w http.ResponseWriter, r *http.Request) (userID int64, token string, amount decimal.Decimal, ok bool) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed request body"})
		return 0, "", decimal.Zero, false
	}
	if req.UserID <= 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "user_id is required"})
		return 0, "", decimal.Zero, false
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "amount must be a decimal string"})
		return 0, "", decimal.Zero, false
	}
	return req.UserID, req.TokenAddress, amount, true
}

func (s *Server) userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("user_id")
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "user_id must be a positive integer"})
		return 0, false
	}
	return userID, true
}

// writeError maps ledger error kinds to HTTP statuses. The payload carries
// the machine-readable kind so chat frontends can pick their own wording.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var insufficientBalance *domain.InsufficientBalanceError
	var insufficientQuantity *domain.InsufficientQuantityError

	switch {
	case errors.As(err, &insufficientBalance):
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":     insufficientBalance.Error(),
			"kind":      "insufficient_balance",
			"required":  insufficientBalance.Required.String(),
			"available": insufficientBalance.Available.String(),
		})
	case errors.As(err, &insufficientQuantity):
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":     insufficientQuantity.Error(),
			"kind":      "insufficient_quantity",
			"held":      insufficientQuantity.Held.String(),
			"requested": insufficientQuantity.Requested.String(),
		})
	case errors.Is(err, domain.ErrNoSuchPosition):
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error(), "kind": "no_such_position"})
	case errors.Is(err, domain.ErrInvalidInput):
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "kind": "invalid_input"})
	case errors.Is(err, domain.ErrQuoteUnavailable):
		s.writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "kind": "quote_unavailable"})
	default:
		s.logger.Error("unexpected error", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error", "kind": "internal"})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

func quoteJSON(q *domain.TokenQuote) map[string]any {
	return map[string]any{
		"symbol":           q.Symbol,
		"name":             q.Name,
		"address":          q.Address,
		"price_usd":        q.PriceUSD.String(),
		"price_change_24h": q.PriceChange24h.String(),
		"volume_24h_usd":   q.Volume24hUSD.String(),
		"liquidity_usd":    q.LiquidityUSD.String(),
		"market_cap_usd":   q.MarketCapUSD.String(),
		"fdv_usd":          q.FDVUSD.String(),
		"dex":              q.DexName,
		"pair_address":     q.PairAddress,
	}
}
