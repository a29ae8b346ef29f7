// Package accounts persists the full set of user accounts as a JSON snapshot
// so restarts keep balances, positions and trade counters.
package accounts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/solpaper/solpaper/internal/domain"
)

// Store writes the account map to a single file, whole-snapshot per save.
// All monetary fields are string-encoded decimals; floating point never
// touches the persisted form.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// NewStore creates an account store backed by the given file path.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("account store path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create account store dir")
		}
	}
	return &Store{path: path, logger: logger}, nil
}

// storedAccount mirrors domain.Account in its serialized form.
type storedAccount struct {
	UserID      int64            `json:"user_id"`
	SolBalance  string           `json:"sol_balance"`
	Positions   []storedPosition `json:"positions"`
	TotalTrades int              `json:"total_trades"`
	CreatedAt   time.Time        `json:"created_at"`
}

type storedPosition struct {
	Symbol       string    `json:"symbol"`
	TokenAddress string    `json:"token_address"`
	Amount       string    `json:"amount"`
	EntryPrice   string    `json:"entry_price"`
	Timestamp    time.Time `json:"timestamp"`
}

// Load reads the snapshot from disk. A missing file yields an empty map.
// A corrupt file is logged and also yields an empty map: losing paper-trading
// state is preferable to refusing to start.
func (s *Store) Load() (map[int64]*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[int64]*domain.Account)

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, nil
		}
		s.logger.Error("failed to read account snapshot, starting empty",
			zap.String("path", s.path), zap.Error(err))
		return result, nil
	}
	if len(payload) == 0 {
		return result, nil
	}

	var raw map[string]storedAccount
	if err := json.Unmarshal(payload, &raw); err != nil {
		s.logger.Error("corrupt account snapshot, starting empty",
			zap.String("path", s.path), zap.Error(err))
		return result, nil
	}

	for key, stored := range raw {
		userID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			s.logger.Warn("skipping account with malformed user id", zap.String("key", key))
			continue
		}
		account, err := stored.toAccount(userID)
		if err != nil {
			s.logger.Warn("skipping malformed account record",
				zap.Int64("user_id", userID), zap.Error(err))
			continue
		}
		result[userID] = account
	}

	return result, nil
}

// Save serializes all accounts and atomically replaces the snapshot file via
// a temp file plus rename, so a crash never leaves a truncated snapshot.
func (s *Store) Save(all map[int64]*domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := make(map[string]storedAccount, len(all))
	for userID, account := range all {
		raw[strconv.FormatInt(userID, 10)] = newStoredAccount(account)
	}

	payload, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode account snapshot")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write account snapshot temp file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist account snapshot")
	}
	return nil
}

func newStoredAccount(a *domain.Account) storedAccount {
	positions := make([]storedPosition, 0, len(a.Positions))
	for _, p := range a.Positions {
		positions = append(positions, storedPosition{
			Symbol:       p.Symbol,
			TokenAddress: p.TokenAddress,
			Amount:       p.Amount.String(),
			EntryPrice:   p.EntryPrice.String(),
			Timestamp:    p.OpenedAt,
		})
	}
	// stable position order keeps snapshots diffable
	sort.SliceStable(positions, func(i, j int) bool {
		return positions[i].Timestamp.Before(positions[j].Timestamp)
	})

	return storedAccount{
		UserID:      a.UserID,
		SolBalance:  a.Balance.String(),
		Positions:   positions,
		TotalTrades: a.TradeCount,
		CreatedAt:   a.CreatedAt,
	}
}

func (sa storedAccount) toAccount(userID int64) (*domain.Account, error) {
	balance, err := decimal.NewFromString(sa.SolBalance)
	if err != nil {
		return nil, errors.Wrap(err, "decode sol balance")
	}
	if balance.IsNegative() {
		return nil, errors.Errorf("negative balance %s", sa.SolBalance)
	}

	positions := make([]*domain.Position, 0, len(sa.Positions))
	for _, sp := range sa.Positions {
		pos, err := sp.toPosition()
		if err != nil {
			return nil, errors.Wrapf(err, "decode position %s", sp.TokenAddress)
		}
		positions = append(positions, pos)
	}

	return &domain.Account{
		UserID:     userID,
		Balance:    balance,
		Positions:  positions,
		TradeCount: sa.TotalTrades,
		CreatedAt:  sa.CreatedAt,
	}, nil
}

func (sp storedPosition) toPosition() (*domain.Position, error) {
	amount, err := decimal.NewFromString(sp.Amount)
	if err != nil {
		return nil, errors.Wrap(err, "decode amount")
	}
	entryPrice, err := decimal.NewFromString(sp.EntryPrice)
	if err != nil {
		return nil, errors.Wrap(err, "decode entry price")
	}
	return domain.NewPosition(sp.Symbol, sp.TokenAddress, amount, entryPrice, sp.Timestamp)
}
