package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token-swap/internal/node"
	"github.com/rovshanmuradov/token-swap/internal/utils/logger"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the swap program behind the HTTP API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.String("listen-addr", "", "HTTP bind address")
	f.String("ledger.backend", "", "ledger backend: memory, redis or postgres")
	f.String("ledger.redis-addr", "", "redis address")
	f.Int("ledger.redis-db", 0, "redis database")
	f.String("ledger.postgres-url", "", "postgres URL")
	f.Int("ledger.max-retries", 0, "attempts per conflicting unit of work")
	f.Uint16("pool.max-fee-rate-bps", 0, "largest fee rate a pool may be created with")
	f.Bool("faucet-enabled", false, "expose the test token faucet")
	f.String("api-key", "", "API key required on mutating routes")
	f.Float64("rate-limit-rps", 0, "per-client rate on mutating routes")
	f.Int("rate-burst", 0, "rate limiter burst")
	f.Bool("debug-logging", false, "debug logs and error details in responses")
	f.String("log-file", "", "rotated JSON log file, empty for console only")
	f.Bool("log-pretty", false, "coloured console output")
	f.String("swap-tape-file", "", "append every swap to this CSV file")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	logCfg.Pretty = cfg.LogPretty
	log, err := logger.New(logCfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := node.New(ctx, cfg, log.Logger)
	if err != nil {
		log.LogError("Failed to start", err)
		return err
	}
	if err := n.Run(ctx); err != nil {
		log.Error("Stopped with error", zap.Error(err))
		return err
	}
	log.Info("Stopped")
	return nil
}
