package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/api"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/app/httpserver"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/bridge"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/config"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/custody"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/fee"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/guard"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/pgutil"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/registry"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/store"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub004/pkg/transfer"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting bridge daemon",
		zap.Uint32("chain_code", cfg.Chain.Code),
		zap.String("chain_label", cfg.Chain.Label))

	// Initialize audit database
	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	audit := store.NewStore(db)
	logger.Info("Database connection established",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database))

	// Register counterparty chains
	chains := registry.NewChainRegistry()
	for _, entry := range cfg.Chains {
		if _, err := chains.Add(transfer.ChainCode(entry.Code), entry.Label); err != nil {
			logger.Fatal("Failed to register chain",
				zap.Uint32("code", entry.Code), zap.Error(err))
		}
	}

	// In-memory custody ledger wrapped with balance-delta verification.
	// Chain-specific adapters replace the ledger in production deployments.
	ledger := custody.NewLedger()
	strict := custody.NewStrict(ledger, ledger, ledger)

	// Register tokens and their destination mappings
	tokens := registry.NewTokenRegistry()
	for _, entry := range cfg.Tokens {
		addr, err := parseAddr("tokens.address", entry.Address)
		if err != nil {
			logger.Fatal("Invalid token address", zap.Error(err))
		}
		if err := tokens.Register(addr, transfer.CustodyType(entry.Custody), entry.Decimals); err != nil {
			logger.Fatal("Failed to register token",
				zap.String("token", entry.Address), zap.Error(err))
		}
		for _, dest := range entry.Destinations {
			destToken, err := parseTokenID("tokens.destinations.token", dest.Token)
			if err != nil {
				logger.Fatal("Invalid destination token", zap.Error(err))
			}
			if err := tokens.SetDestination(addr, transfer.ChainCode(dest.ChainCode), destToken, dest.Decimals); err != nil {
				logger.Fatal("Failed to map token destination",
					zap.String("token", entry.Address),
					zap.Uint32("chain_code", dest.ChainCode),
					zap.Error(err))
			}
		}
	}

	// Fee engine
	fees, err := buildFeeEngine(&cfg.Fee, ledger.BalanceOf)
	if err != nil {
		logger.Fatal("Failed to build fee engine", zap.Error(err))
	}

	// Guard chain: blacklist gates every action class, the rate limiter
	// gates amount-moving actions against live total supply.
	guards := guard.NewChain()
	blacklist := guard.NewBlacklist()
	guards.RegisterAccount(blacklist)
	guards.RegisterDeposit(blacklist)
	guards.RegisterWithdraw(blacklist)

	limiter := guard.NewRateLimiter(guard.RateLimiterConfig{
		Window:            cfg.RateLimit.Window,
		SupplyFractionBps: cfg.RateLimit.SupplyFractionBps,
		FallbackLimit:     parseAmountOrZero(cfg.RateLimit.FallbackLimit),
	}, ledger.TotalSupply)
	guards.RegisterDeposit(limiter)
	guards.RegisterWithdraw(limiter)

	// Bridge core
	b, err := bridge.New(bridge.Config{
		ChainCode:    transfer.ChainCode(cfg.Chain.Code),
		CancelWindow: cfg.Withdraw.CancelWindow,
	}, bridge.Deps{
		Chains:       chains,
		Tokens:       tokens,
		Fees:         fees,
		Guards:       guards,
		LockUnlock:   strict,
		MintBurn:     strict,
		FeeCollector: ledger,
		Tips:         ledger,
		Recorder:     audit,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal("Failed to create bridge", zap.Error(err))
	}

	// Seed access roles
	for _, raw := range cfg.Roles.Operators {
		addr, err := parseAddr("roles.operators", raw)
		if err != nil {
			logger.Fatal("Invalid operator address", zap.Error(err))
		}
		b.AddOperator(addr)
	}
	for _, raw := range cfg.Roles.Cancelers {
		addr, err := parseAddr("roles.cancelers", raw)
		if err != nil {
			logger.Fatal("Invalid canceler address", zap.Error(err))
		}
		b.AddCanceler(addr)
	}
	logger.Info("Bridge initialized",
		zap.Duration("cancel_window", b.CancelWindow()),
		zap.Int("chains", len(cfg.Chains)),
		zap.Int("tokens", len(cfg.Tokens)),
		zap.Int("operators", len(cfg.Roles.Operators)),
		zap.Int("cancelers", len(cfg.Roles.Cancelers)))

	// Metrics server
	if cfg.Monitoring.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Monitoring.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info("Metrics server listening", zap.String("address", metricsAddr))
			if err := http.ListenAndServe(metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server error", zap.Error(err))
			}
		}()
	}

	// API server
	apiServer := api.NewServer(b, tokens, logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := httpserver.ServeAndWait(ctx, logger, srv, cfg.Shutdown.Timeout); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}

	logger.Info("Bridge daemon stopped")
}

func buildFeeEngine(cfg *config.FeeConfig, balanceOf fee.BalanceFunc) (*fee.Engine, error) {
	engineCfg := fee.Config{
		StandardBps: cfg.StandardBps,
		DiscountBps: cfg.DiscountBps,
	}
	if cfg.Recipient != "" {
		recipient, err := parseAddr("fee.recipient", cfg.Recipient)
		if err != nil {
			return nil, err
		}
		engineCfg.Recipient = recipient
	}
	if cfg.DiscountToken != "" {
		token, err := parseAddr("fee.discount_token", cfg.DiscountToken)
		if err != nil {
			return nil, err
		}
		engineCfg.DiscountToken = token
	}
	if cfg.DiscountThreshold != "" {
		threshold, ok := new(big.Int).SetString(cfg.DiscountThreshold, 10)
		if !ok {
			return nil, fmt.Errorf("fee.discount_threshold: not a decimal integer: %q", cfg.DiscountThreshold)
		}
		engineCfg.DiscountThreshold = threshold
	}
	return fee.NewEngine(engineCfg, balanceOf)
}

func parseAddr(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: not a valid hex address: %q", field, value)
	}
	return common.HexToAddress(value), nil
}

// parseTokenID accepts a 20-byte address or a full 32-byte hex identifier.
func parseTokenID(field, value string) (transfer.TokenID, error) {
	if common.IsHexAddress(value) {
		return transfer.TokenIDFromAddress(common.HexToAddress(value)), nil
	}
	if len(value) == 2+2*common.HashLength && (value[:2] == "0x" || value[:2] == "0X") {
		return transfer.TokenID(common.HexToHash(value)), nil
	}
	return transfer.TokenID{}, fmt.Errorf("%s: expected 20-byte address or 32-byte hex value: %q", field, value)
}

func parseAmountOrZero(value string) *big.Int {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return big.NewInt(0)
	}
	return amount
}
