package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ringdex/ringdex/params"
	"github.com/ringdex/ringdex/pkg/api"
	"github.com/ringdex/ringdex/pkg/app/core/balance"
	"github.com/ringdex/ringdex/pkg/app/core/token"
	"github.com/ringdex/ringdex/pkg/app/settle"
	"github.com/ringdex/ringdex/pkg/storage"
	"github.com/ringdex/ringdex/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (write to both console and file)
	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.LogFile)

	// ---- Storage ----
	store, err := storage.NewStore(cfg.Storage.DBPath)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.Storage.DBPath, "err", err)
	}
	defer store.Close()
	sugar.Infow("store_opened", "path", cfg.Storage.DBPath)

	// ---- Core state ----
	balances := balance.NewManager(store)

	tokens, err := token.NewRegistry(store)
	if err != nil {
		sugar.Fatalw("token_registry_failed", "err", err)
	}
	sugar.Infow("token_registry_loaded", "tokens", tokens.Count())

	// ---- Settlement app ----
	app := settle.NewApp(settle.Config{
		ChainID:        cfg.Settlement.ChainID,
		FeeHolder:      common.HexToAddress(cfg.Settlement.FeeHolder),
		WalletSplitPct: cfg.Settlement.WalletSplitPct,
	}, balances, tokens, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- API Server ----
	apiServer := api.NewServer(app, cfg.Server.AllowedOrigins, sugar)

	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.Server.APIAddr)
		if err := apiServer.Start(cfg.Server.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("relayd_started",
		"chain_id", cfg.Settlement.ChainID,
		"fee_holder", cfg.Settlement.FeeHolder,
		"wallet_split_pct", cfg.Settlement.WalletSplitPct)

	<-ctx.Done()
	sugar.Info("relayd_shutting_down")
}
