// Package ledger is the single authority over virtual account state. All
// balance and position mutations happen here, serialized per user account;
// everything above it only renders results.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/solpaper/solpaper/internal/domain"
	"github.com/solpaper/solpaper/pkg/validate"
)

// MarketDataProvider resolves token quotes. Quote returns
// domain.ErrTokenNotFound when no pair matches the address at all.
type MarketDataProvider interface {
	Quote(ctx context.Context, tokenAddress string) (*domain.TokenQuote, error)
	Search(ctx context.Context, query string) ([]domain.TokenQuote, error)
}

// AccountStore persists the full account map across restarts.
type AccountStore interface {
	Load() (map[int64]*domain.Account, error)
	Save(all map[int64]*domain.Account) error
}

// TradeJournal receives every executed trade. Journal failures never fail the
// trade itself.
type TradeJournal interface {
	Save(record domain.TradeRecord) error
}

// Ledger owns the in-memory account map and the persistence handle. Construct
// one per process and pass it to the transport layer; there is no package
// level state.
type Ledger struct {
	mu        sync.Mutex
	accounts  map[int64]*domain.Account
	userLocks map[int64]*sync.Mutex

	provider MarketDataProvider
	store    AccountStore
	journal  TradeJournal
	logger   *zap.Logger

	startingBalance decimal.Decimal
	solPriceUSD     decimal.Decimal
}

// New creates a Ledger, loading previously persisted accounts from the store.
func New(provider MarketDataProvider, store AccountStore, journal TradeJournal,
	startingBalance, solPriceUSD decimal.Decimal, logger *zap.Logger) (*Ledger, error) {
	if provider == nil {
		return nil, errors.New("market data provider is required")
	}
	if store == nil {
		return nil, errors.New("account store is required")
	}
	if startingBalance.IsNegative() {
		return nil, errors.New("starting balance must not be negative")
	}
	if solPriceUSD.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("sol price must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	accounts, err := store.Load()
	if err != nil {
		return nil, errors.Wrap(err, "load accounts")
	}

	return &Ledger{
		accounts:        accounts,
		userLocks:       make(map[int64]*sync.Mutex),
		provider:        provider,
		store:           store,
		journal:         journal,
		logger:          logger,
		startingBalance: startingBalance,
		solPriceUSD:     solPriceUSD,
	}, nil
}

// BuyResult carries everything the caller needs to confirm an executed buy
// without re-querying the ledger.
type BuyResult struct {
	Symbol       string
	TokenAddress string
	Amount       decimal.Decimal
	PriceUSD     decimal.Decimal
	CostUSD      decimal.Decimal
	CostSOL      decimal.Decimal
	NewBalance   decimal.Decimal
	TradeCount   int
	// Warning is set when the trade succeeded but the snapshot write failed.
	Warning string
}

// SellResult reports an executed sell with the realized PnL of the sold slice.
type SellResult struct {
	Symbol         string
	TokenAddress   string
	Amount         decimal.Decimal
	PriceUSD       decimal.Decimal
	ProceedsUSD    decimal.Decimal
	ProceedsSOL    decimal.Decimal
	RealizedPnLUSD decimal.Decimal
	NewBalance     decimal.Decimal
	TradeCount     int
	PositionClosed bool
	Warning        string
}

// PositionValue is one position inside a portfolio valuation. When the quote
// fetch fails the position is reported with PriceUnavailable set and excluded
// from aggregate totals rather than counted as zero.
type PositionValue struct {
	Symbol           string
	TokenAddress     string
	Amount           decimal.Decimal
	EntryPrice       decimal.Decimal
	CurrentPriceUSD  decimal.Decimal
	MarketValueUSD   decimal.Decimal
	UnrealizedPnLUSD decimal.Decimal
	PriceUnavailable bool
}

// PortfolioValue aggregates an account with fresh market values.
type PortfolioValue struct {
	UserID           int64
	Balance          decimal.Decimal
	TotalValueSOL    decimal.Decimal
	UnrealizedPnLUSD decimal.Decimal
	TradeCount       int
	Positions        []PositionValue
}

// GetOrCreateAccount returns a snapshot of the user's account, creating and
// persisting a fresh one funded with the starting balance on first contact.
func (l *Ledger) GetOrCreateAccount(userID int64) *domain.Account {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	account, created := l.getOrCreate(userID)
	if created {
		if err := l.persist(); err != nil {
			l.logger.Warn("failed to persist new account", zap.Int64("user_id", userID), zap.Error(err))
		}
		l.logger.Info("account created",
			zap.Int64("user_id", userID),
			zap.String("balance", account.Balance.String()))
	}
	return account.Clone()
}

// Buy executes a simulated market buy of quantity tokens. The quote is
// fetched before any mutation, so a failed lookup leaves the account
// byte-for-byte unchanged.
func (l *Ledger) Buy(ctx context.Context, userID int64, tokenAddress string, quantity decimal.Decimal) (*BuyResult, error) {
	if err := validateTradeInput(tokenAddress, quantity); err != nil {
		return nil, err
	}

	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	account, _ := l.getOrCreate(userID)

	quote, err := l.provider.Quote(ctx, tokenAddress)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrQuoteUnavailable, "token %s: %v", tokenAddress, err)
	}

	costUSD := quantity.Mul(quote.PriceUSD)
	costSOL := costUSD.Div(l.solPriceUSD)

	if costSOL.GreaterThan(account.Balance) {
		return nil, &domain.InsufficientBalanceError{
			Required:  costSOL,
			Available: account.Balance,
		}
	}

	// Everything that can fail is done before the first mutation, so the
	// account is either fully updated or untouched.
	existing := account.Position(tokenAddress)
	var opened *domain.Position
	if existing == nil {
		opened, err = domain.NewPosition(quote.Symbol, tokenAddress, quantity, quote.PriceUSD, time.Now())
		if err != nil {
			return nil, err
		}
	}

	l.mu.Lock()
	account.Balance = account.Balance.Sub(costSOL)
	account.TradeCount++
	if existing != nil {
		_ = existing.AddLot(quantity, quote.PriceUSD)
		existing.Symbol = quote.Symbol
	} else {
		account.AddPosition(opened)
	}
	l.mu.Unlock()

	result := &BuyResult{
		Symbol:       quote.Symbol,
		TokenAddress: tokenAddress,
		Amount:       quantity,
		PriceUSD:     quote.PriceUSD,
		CostUSD:      costUSD,
		CostSOL:      costSOL,
		NewBalance:   account.Balance,
		TradeCount:   account.TradeCount,
	}

	if err := l.persist(); err != nil {
		l.logger.Warn("trade executed but snapshot write failed",
			zap.Int64("user_id", userID), zap.Error(err))
		result.Warning = "trade executed, but saving state failed: " + err.Error()
	}

	l.journalTrade(domain.TradeRecord{
		ID:           uuid.NewString(),
		UserID:       userID,
		Side:         domain.TradeSideBuy,
		TokenAddress: tokenAddress,
		Symbol:       quote.Symbol,
		Amount:       quantity.String(),
		PriceUSD:     quote.PriceUSD.String(),
		ValueSOL:     costSOL.String(),
		CreatedAt:    time.Now(),
	})

	l.logger.Info("buy executed",
		zap.Int64("user_id", userID),
		zap.String("token", tokenAddress),
		zap.String("amount", quantity.String()),
		zap.String("price_usd", quote.PriceUSD.String()),
		zap.String("balance", account.Balance.String()))

	return result, nil
}

// Sell executes a simulated market sell of quantity tokens from the user's
// open position. The remaining position keeps its prior weighted-average
// entry price; a fully sold position is removed from the account.
func (l *Ledger) Sell(ctx context.Context, userID int64, tokenAddress string, quantity decimal.Decimal) (*SellResult, error) {
	if err := validateTradeInput(tokenAddress, quantity); err != nil {
		return nil, err
	}

	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	account, _ := l.getOrCreate(userID)

	pos := account.Position(tokenAddress)
	if pos == nil {
		return nil, errors.Wrapf(domain.ErrNoSuchPosition, "token %s", tokenAddress)
	}
	if quantity.GreaterThan(pos.Amount) {
		return nil, &domain.InsufficientQuantityError{
			Held:      pos.Amount,
			Requested: quantity,
		}
	}

	quote, err := l.provider.Quote(ctx, tokenAddress)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrQuoteUnavailable, "token %s: %v", tokenAddress, err)
	}

	proceedsUSD := quantity.Mul(quote.PriceUSD)
	proceedsSOL := proceedsUSD.Div(l.solPriceUSD)
	realizedPnL := quote.PriceUSD.Sub(pos.EntryPrice).Mul(quantity)

	l.mu.Lock()
	account.Balance = account.Balance.Add(proceedsSOL)
	account.TradeCount++
	closed, _ := pos.Reduce(quantity)
	if closed {
		account.RemovePosition(tokenAddress)
	}
	l.mu.Unlock()

	result := &SellResult{
		Symbol:         pos.Symbol,
		TokenAddress:   tokenAddress,
		Amount:         quantity,
		PriceUSD:       quote.PriceUSD,
		ProceedsUSD:    proceedsUSD,
		ProceedsSOL:    proceedsSOL,
		RealizedPnLUSD: realizedPnL,
		NewBalance:     account.Balance,
		TradeCount:     account.TradeCount,
		PositionClosed: closed,
	}

	if err := l.persist(); err != nil {
		l.logger.Warn("trade executed but snapshot write failed",
			zap.Int64("user_id", userID), zap.Error(err))
		result.Warning = "trade executed, but saving state failed: " + err.Error()
	}

	l.journalTrade(domain.TradeRecord{
		ID:             uuid.NewString(),
		UserID:         userID,
		Side:           domain.TradeSideSell,
		TokenAddress:   tokenAddress,
		Symbol:         pos.Symbol,
		Amount:         quantity.String(),
		PriceUSD:       quote.PriceUSD.String(),
		ValueSOL:       proceedsSOL.String(),
		RealizedPnLUSD: realizedPnL.String(),
		CreatedAt:      time.Now(),
	})

	l.logger.Info("sell executed",
		zap.Int64("user_id", userID),
		zap.String("token", tokenAddress),
		zap.String("amount", quantity.String()),
		zap.String("price_usd", quote.PriceUSD.String()),
		zap.String("realized_pnl_usd", realizedPnL.String()),
		zap.String("balance", account.Balance.String()))

	return result, nil
}

// Valuation prices every open position with a fresh quote. Positions whose
// quote cannot be fetched are marked unavailable and left out of the totals;
// they are never valued at zero.
func (l *Ledger) Valuation(ctx context.Context, userID int64) (*PortfolioValue, error) {
	lock := l.userLock(userID)
	lock.Lock()
	account, created := l.getOrCreate(userID)
	if created {
		if err := l.persist(); err != nil {
			l.logger.Warn("failed to persist new account", zap.Int64("user_id", userID), zap.Error(err))
		}
	}
	snapshot := account.Clone()
	lock.Unlock()

	value := &PortfolioValue{
		UserID:        userID,
		Balance:       snapshot.Balance,
		TotalValueSOL: snapshot.Balance,
		TradeCount:    snapshot.TradeCount,
		Positions:     make([]PositionValue, 0, len(snapshot.Positions)),
	}

	for _, pos := range snapshot.Positions {
		pv := PositionValue{
			Symbol:       pos.Symbol,
			TokenAddress: pos.TokenAddress,
			Amount:       pos.Amount,
			EntryPrice:   pos.EntryPrice,
		}

		quote, err := l.provider.Quote(ctx, pos.TokenAddress)
		if err != nil {
			l.logger.Warn("quote unavailable during valuation",
				zap.Int64("user_id", userID),
				zap.String("token", pos.TokenAddress),
				zap.Error(err))
			pv.PriceUnavailable = true
			value.Positions = append(value.Positions, pv)
			continue
		}

		pv.CurrentPriceUSD = quote.PriceUSD
		pv.MarketValueUSD = pos.MarketValue(quote.PriceUSD)
		pv.UnrealizedPnLUSD = pos.PnL(quote.PriceUSD)

		value.TotalValueSOL = value.TotalValueSOL.Add(pv.MarketValueUSD.Div(l.solPriceUSD))
		value.UnrealizedPnLUSD = value.UnrealizedPnLUSD.Add(pv.UnrealizedPnLUSD)
		value.Positions = append(value.Positions, pv)
	}

	return value, nil
}

// SearchTokens finds tokens matching the query, ordered by descending market
// capitalization.
func (l *Ledger) SearchTokens(ctx context.Context, query string) ([]domain.TokenQuote, error) {
	query = validate.SanitizeQuery(query)
	if query == "" {
		return nil, errors.Wrap(domain.ErrInvalidInput, "empty search query")
	}
	return l.provider.Search(ctx, query)
}

// GetQuote fetches a fresh quote for a single token.
func (l *Ledger) GetQuote(ctx context.Context, tokenAddress string) (*domain.TokenQuote, error) {
	if !validate.IsTokenAddress(tokenAddress) {
		return nil, errors.Wrapf(domain.ErrInvalidInput, "malformed token address %q", tokenAddress)
	}
	quote, err := l.provider.Quote(ctx, tokenAddress)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrQuoteUnavailable, "token %s: %v", tokenAddress, err)
	}
	return quote, nil
}

func validateTradeInput(tokenAddress string, quantity decimal.Decimal) error {
	if !validate.IsTokenAddress(tokenAddress) {
		return errors.Wrapf(domain.ErrInvalidInput, "malformed token address %q", tokenAddress)
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return errors.Wrapf(domain.ErrInvalidInput, "quantity must be positive, got %s", quantity.String())
	}
	return nil
}

// userLock returns the mutex serializing all operations on one account.
// Cross-user operations run fully in parallel.
func (l *Ledger) userLock(userID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.userLocks[userID] = lock
	}
	return lock
}

func (l *Ledger) getOrCreate(userID int64) (account *domain.Account, created bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	account, ok := l.accounts[userID]
	if !ok {
		account = domain.NewAccount(userID, l.startingBalance)
		l.accounts[userID] = account
		created = true
	}
	return account, created
}

// persist writes a deep copy of the full account map so concurrent operations
// on other accounts cannot race with serialization. The store serializes the
// actual file writes behind its own lock.
func (l *Ledger) persist() error {
	l.mu.Lock()
	snapshot := make(map[int64]*domain.Account, len(l.accounts))
	for userID, account := range l.accounts {
		snapshot[userID] = account.Clone()
	}
	l.mu.Unlock()

	return l.store.Save(snapshot)
}

func (l *Ledger) journalTrade(record domain.TradeRecord) {
	if l.journal == nil {
		return
	}
	if err := l.journal.Save(record); err != nil {
		l.logger.Warn("failed to journal trade", zap.String("trade_id", record.ID), zap.Error(err))
	}
}
