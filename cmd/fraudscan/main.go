// Command fraudscan counts flagged transactions created in a trailing window and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/storage"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("WLG_CONFIG"), "path to config file")
	window := flag.Duration("window", 0, "trailing window to scan (default fraud.scan_window)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.Component(logger.New(cfg.Log.Level, cfg.Log.Pretty), "fraudscan")

	if *window <= 0 {
		*window = cfg.Fraud.ScanWindow
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	dbCfg := cfg.Database
	dbCfg.AutoMigrate = false
	store, err := storage.Open(ctx, dbCfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger store")
	}
	defer store.Close()

	reportingSvc := service.NewReportingService(store.Transactions, store.Wallets, log)
	result, err := reportingSvc.FraudScan(ctx, *window)
	if err != nil {
		log.Error().Err(err).Msg("Fraud scan failed")
		store.Close()
		os.Exit(1)
	}

	fmt.Println(dto.FraudScanMessage(result.FlaggedCount))
}
