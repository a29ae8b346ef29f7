// Command solpaper runs the paper-trading ledger service for Solana tokens.
// Users get a virtual SOL balance and trade real market prices from
// DexScreener without touching the chain.
//
// Usage:
//
//	solpaper --config config.yaml
//	solpaper --setup    (interactive configuration wizard)
//
// Optional environment overrides (also read from .env):
//
//	STARTING_BALANCE, SOL_PRICE_USD, DATA_FILE, LISTEN_ADDR
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/solpaper/solpaper/config"
	"github.com/solpaper/solpaper/internal/clients"
	"github.com/solpaper/solpaper/internal/services/ledger"
	"github.com/solpaper/solpaper/internal/setup"
	"github.com/solpaper/solpaper/internal/storage/accounts"
	"github.com/solpaper/solpaper/internal/storage/tradelog"
	"github.com/solpaper/solpaper/internal/web"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config")
	runSetup := flag.Bool("setup", false, "run the interactive configuration wizard")
	flag.Parse()

	if *runSetup {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}

	_ = godotenv.Load()

	cfg, err := config.Get(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	store, err := accounts.NewStore(cfg.DataFile, logger)
	if err != nil {
		logger.Fatal("failed to init account store", zap.Error(err))
	}

	journal, err := tradelog.NewWALStore(cfg.TradeLogDir)
	if err != nil {
		logger.Fatal("failed to init trade journal", zap.Error(err))
	}
	defer journal.Close()

	provider := clients.NewDexScreenerClient(cfg.DexScreenerURL, cfg.RequestTimeout, logger)

	book, err := ledger.New(provider, store, journal, cfg.StartingBalance, cfg.SolPriceUSD, logger)
	if err != nil {
		logger.Fatal("failed to init ledger", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := web.NewServer(cfg.ListenAddr, book, journal, logger)
	logger.Info("solpaper started",
		zap.String("addr", cfg.ListenAddr),
		zap.String("data_file", cfg.DataFile),
		zap.String("starting_balance", cfg.StartingBalance.String()),
		zap.String("sol_price_usd", cfg.SolPriceUSD.String()))

	if err := server.Start(ctx); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
