package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"crucible/config"
	"crucible/native/exchange"
	"crucible/observability/logging"
	"crucible/observability/otel"
	"crucible/rpc"
	"crucible/storage/exchangedb"
)

const genesisPathEnv = "CRUCIBLE_GENESIS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to the genesis manifest (overrides CRUCIBLE_GENESIS and config GenesisFile)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("CRUCIBLE_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("crucibled", env, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if endpoint := strings.TrimSpace(cfg.Telemetry.OTLPEndpoint); endpoint != "" {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "crucibled",
			Environment: env,
			Endpoint:    endpoint,
			Insecure:    cfg.Telemetry.Insecure,
		})
		if err != nil {
			logger.Error("Failed to initialise telemetry", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("Telemetry shutdown failed", slog.Any("error", err))
			}
		}()
	}

	genesisPath, err := resolveGenesisPath(*genesisFlag, cfg.GenesisFile, os.LookupEnv)
	if err != nil {
		logger.Error("Failed to resolve genesis path", slog.Any("error", err))
		os.Exit(1)
	}

	genesis, err := config.LoadGenesis(genesisPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load genesis manifest: %v", err))
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		panic(fmt.Sprintf("Failed to prepare data directory: %v", err))
	}
	ledger, err := exchangedb.Open(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open ledger database: %v", err))
	}
	defer ledger.Close()

	// Token custody is in-process; an external settlement bank plugs in behind
	// the same interface.
	bank := exchange.NewMemoryBank(genesis.Stablecoin)

	engine, err := genesis.NewEngine(ledger, bank)
	if err != nil {
		panic(fmt.Sprintf("Failed to build exchange engine: %v", err))
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
	server := rpc.NewServer(engine, logger, limiter)

	public := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	admin := &http.Server{
		Addr:              cfg.AdminAddress,
		Handler:           server.AdminRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("Starting JSON-RPC server", slog.String("address", cfg.RPCAddress))
		if err := public.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("rpc server: %w", err)
		}
	}()
	go func() {
		logger.Info("Starting admin server", slog.String("address", cfg.AdminAddress))
		if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("admin server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		logger.Error("Server failed", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := public.Shutdown(shutdownCtx); err != nil {
		logger.Warn("RPC server shutdown failed", slog.Any("error", err))
	}
	if err := admin.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Admin server shutdown failed", slog.Any("error", err))
	}
	logger.Info("Shutdown complete")
}

// resolveGenesisPath picks the genesis manifest location: CLI flag first, then
// the environment variable, then the config file entry.
func resolveGenesisPath(flagValue, configValue string, lookup func(string) (string, bool)) (string, error) {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		return trimmed, nil
	}
	if raw, ok := lookup(genesisPathEnv); ok {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			return trimmed, nil
		}
	}
	if trimmed := strings.TrimSpace(configValue); trimmed != "" {
		return trimmed, nil
	}
	return "", fmt.Errorf("no genesis manifest configured: set --genesis, %s, or GenesisFile", genesisPathEnv)
}
