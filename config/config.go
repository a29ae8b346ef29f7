package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Defaults mirror the stock paper-trading setup: every new user starts with
// 10 virtual SOL and costs are converted at a fixed 100 USD per SOL.
const (
	DefaultListenAddr      = ":8080"
	DefaultDataFile        = "trading_data.json"
	DefaultTradeLogDir     = "./wal/trades"
	DefaultStartingBalance = "10.0"
	DefaultSolPriceUSD     = "100"
	DefaultRequestTimeout  = 10 * time.Second
)

// Config holds everything the process needs to run.
type Config struct {
	ListenAddr      string
	DataFile        string
	TradeLogDir     string
	StartingBalance decimal.Decimal
	// SolPriceUSD is the fixed USD-per-SOL conversion rate used consistently
	// within every single trade. It is configuration, not a live price.
	SolPriceUSD    decimal.Decimal
	DexScreenerURL string
	RequestTimeout time.Duration
}

type configTmp struct {
	ListenAddr         string        `yaml:"listen_addr,omitempty"`
	DataFile           string        `yaml:"data_file,omitempty"`
	TradeLogDir        string        `yaml:"trade_log_dir,omitempty"`
	StartingBalanceStr string        `yaml:"starting_balance,omitempty"`
	SolPriceUSDStr     string        `yaml:"sol_price_usd,omitempty"`
	DexScreenerURL     string        `yaml:"dexscreener_url,omitempty"`
	RequestTimeout     time.Duration `yaml:"request_timeout,omitempty"`
}

// Get loads the configuration: defaults, then the YAML file (when a path is
// given), then environment variable overrides.
func Get(path string) (Config, error) {
	cfg := Config{
		ListenAddr:     DefaultListenAddr,
		DataFile:       DefaultDataFile,
		TradeLogDir:    DefaultTradeLogDir,
		RequestTimeout: DefaultRequestTimeout,
	}
	cfg.StartingBalance, _ = decimal.NewFromString(DefaultStartingBalance)
	cfg.SolPriceUSD, _ = decimal.NewFromString(DefaultSolPriceUSD)

	if path != "" {
		if err := applyYaml(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.StartingBalance.IsNegative() {
		return Config{}, errors.Errorf("starting balance must not be negative, got %s", cfg.StartingBalance.String())
	}
	if cfg.SolPriceUSD.LessThanOrEqual(decimal.Zero) {
		return Config{}, errors.Errorf("sol price must be positive, got %s", cfg.SolPriceUSD.String())
	}

	return cfg, nil
}

func applyYaml(cfg *Config, path string) error {
	f, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config file")
	}

	var tmp configTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return errors.Wrap(err, "parse config file")
	}

	if tmp.ListenAddr != "" {
		cfg.ListenAddr = tmp.ListenAddr
	}
	if tmp.DataFile != "" {
		cfg.DataFile = tmp.DataFile
	}
	if tmp.TradeLogDir != "" {
		cfg.TradeLogDir = tmp.TradeLogDir
	}
	if tmp.DexScreenerURL != "" {
		cfg.DexScreenerURL = tmp.DexScreenerURL
	}
	if tmp.RequestTimeout > 0 {
		cfg.RequestTimeout = tmp.RequestTimeout
	}
	if tmp.StartingBalanceStr != "" {
		cfg.StartingBalance, err = decimal.NewFromString(tmp.StartingBalanceStr)
		if err != nil {
			return errors.Wrap(err, "incorrect 'starting_balance' param in yaml config")
		}
	}
	if tmp.SolPriceUSDStr != "" {
		cfg.SolPriceUSD, err = decimal.NewFromString(tmp.SolPriceUSDStr)
		if err != nil {
			return errors.Wrap(err, "incorrect 'sol_price_usd' param in yaml config")
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("STARTING_BALANCE"); v != "" {
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return errors.Wrap(err, "incorrect STARTING_BALANCE env")
		}
		cfg.StartingBalance = parsed
	}
	if v := os.Getenv("SOL_PRICE_USD"); v != "" {
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return errors.Wrap(err, "incorrect SOL_PRICE_USD env")
		}
		cfg.SolPriceUSD = parsed
	}
	if v := os.Getenv("DATA_FILE"); v != "" {
		cfg.DataFile = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	return nil
}

// Write saves the configuration as YAML, used by the setup wizard.
func (c Config) Write(path string) error {
	tmp := configTmp{
		ListenAddr:         c.ListenAddr,
		DataFile:           c.DataFile,
		TradeLogDir:        c.TradeLogDir,
		StartingBalanceStr: c.StartingBalance.String(),
		SolPriceUSDStr:     c.SolPriceUSD.String(),
		DexScreenerURL:     c.DexScreenerURL,
		RequestTimeout:     c.RequestTimeout,
	}
	payload, err := yaml.Marshal(tmp)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return errors.Wrap(os.WriteFile(path, payload, 0o644), "write config file")
}
