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
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"lendvault/config"
	"lendvault/core"
	"lendvault/core/events"
	"lendvault/crypto"
	"lendvault/explorer"
	"lendvault/gateway/middleware"
	"lendvault/gateway/routes"
	"lendvault/native/lending"
	"lendvault/observability/logging"
	"lendvault/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup("lendvaultd", cfg.Environment, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})

	if err := run(cfg, logger); err != nil {
		logger.Error("daemon exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	admin, err := cfg.Admin()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("prepare data directory: %w", err)
	}
	db, err := storage.NewLevelDB(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	node, err := core.NewNode(db, cfg.Lending, admin, logger)
	if err != nil {
		return err
	}

	manual, err := bindOracle(cfg, node)
	if err != nil {
		return err
	}

	if err := applyGenesis(cfg, node, logger); err != nil {
		return err
	}

	emitter := events.NewFanOut()
	if cfg.Indexer.Enabled {
		indexer, err := openIndexer(cfg.Indexer.Path, logger)
		if err != nil {
			return err
		}
		emitter.Register(indexer)
		logger.Info("event indexer enabled", "path", cfg.Indexer.Path)
	}
	node.SetEmitter(emitter)

	observability := middleware.NewObservability(logger)
	handler := routes.NewRouter(routes.Config{
		Node:         node,
		OverrideFeed: manual,
		Auth: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:  cfg.Gateway.AuthEnabled,
			Secret:   cfg.Gateway.AuthSecret,
			Issuer:   cfg.Gateway.AuthIssuer,
			Audience: cfg.Gateway.AuthAudience,
		}, logger),
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: cfg.Gateway.RequestsPerMinute,
			Burst:             cfg.Gateway.Burst,
		}),
		Observability: observability,
	})

	apiServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           http.TimeoutHandler(handler, cfg.Gateway.RequestTimeout.Duration, "request timed out"),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.Handle("/metrics/gateway", observability.MetricsHandler())
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddress,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gateway listening", "address", cfg.ListenAddress)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("gateway server: %w", err)
		}
	}()
	go func() {
		logger.Info("metrics listening", "address", cfg.MetricsAddress)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Warn("gateway shutdown", slog.Any("error", err))
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Warn("metrics shutdown", slog.Any("error", err))
	}
	return nil
}

// bindOracle wires the configured price sources into every pool. The manual
// feed is always registered so operators can override prices through the admin
// surface during incidents.
func bindOracle(cfg *config.Config, node *core.Node) (*lending.ManualFeed, error) {
	manual := lending.NewManualFeed()
	now := time.Now()
	for _, entry := range cfg.Oracle.Prices {
		price, err := entry.ParsedPrice()
		if err != nil {
			return nil, err
		}
		manual.Set(entry.Asset, price, now)
	}

	aggregator := lending.NewFeedAggregator(cfg.Lending.FeedPriority, cfg.Oracle.MaxQuoteAge.Duration)
	aggregator.Register("manual", manual)
	for _, pool := range node.Manager().Pools() {
		node.Manager().BindPriceFeed(pool.Asset(), aggregator)
	}
	return manual, nil
}

// applyGenesis credits configured balances. Each credit is skipped once the
// account already holds the asset, so restarts do not double-fund.
func applyGenesis(cfg *config.Config, node *core.Node, logger *slog.Logger) error {
	for _, balance := range cfg.Genesis {
		account, err := crypto.DecodeAddress(strings.TrimSpace(balance.Account))
		if err != nil {
			return fmt.Errorf("genesis account %q: %w", balance.Account, err)
		}
		if node.Funds().BalanceOf(balance.Asset, account).Sign() > 0 {
			continue
		}
		amount, err := balance.ParsedAmount()
		if err != nil {
			return err
		}
		if err := node.Credit(balance.Asset, account, amount); err != nil {
			return fmt.Errorf("genesis credit for %s: %w", balance.Account, err)
		}
		logger.Info("genesis balance credited", "asset", balance.Asset, "account", balance.Account, "amount", amount.String())
	}
	return nil
}

func openIndexer(path string, logger *slog.Logger) (*explorer.Indexer, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open indexer database: %w", err)
	}
	return explorer.NewIndexer(gdb, logger)
}
