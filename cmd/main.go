package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"mint-dashboard/config"
	"mint-dashboard/db"
	"mint-dashboard/gateway"
	"mint-dashboard/handlers"
	"mint-dashboard/logger"
	"mint-dashboard/repository"
	"mint-dashboard/routers"
	"mint-dashboard/session"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Println("Config file error:", err)
		os.Exit(1)
	}

	if err := logger.InitLogger(cfg.AppLogFile, cfg.LogLevel); err != nil {
		fmt.Println("Failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Logger.Sync()

	logger.Logger.Info("Starting mint dashboard...")

	// Session-scoped activity journal
	ldb, err := db.NewLevelDB(cfg.LevelDBPath)
	if err != nil {
		logger.Logger.Fatal("Failed to open leveldb", zap.Error(err))
	}
	defer ldb.Close()
	journal := repository.NewActivityRepository(ldb)

	// Chain gateway
	key, err := gateway.LoadKey(cfg.PrivateKey)
	if err != nil {
		logger.Logger.Fatal("Wallet key unavailable", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	client, err := gateway.Dial(ctx, cfg.RPCURL)
	if err != nil {
		cancel()
		logger.Logger.Fatal("Failed to dial node", zap.Error(err))
	}
	defer client.Close()

	var chainID *big.Int
	if cfg.ChainID > 0 {
		chainID = big.NewInt(cfg.ChainID)
	}
	gw, err := gateway.NewEthereum(ctx, gateway.Config{
		Backend:        client,
		Contract:       common.HexToAddress(cfg.ContractAddress),
		Key:            key,
		ChainID:        chainID,
		ConfirmTimeout: cfg.ConfirmTimeout,
	})
	cancel()
	if err != nil {
		logger.Logger.Fatal("Failed to initialize gateway", zap.Error(err))
	}

	sessions, err := session.NewManager(session.Config{
		Wallet:       gw,
		Journal:      journal,
		TickInterval: cfg.TickInterval,
		PollInterval: cfg.PollInterval,
		Decimals:     cfg.TokenDecimals,
	})
	if err != nil {
		logger.Logger.Fatal("Failed to initialize sessions", zap.Error(err))
	}

	// Initialize HTTP handlers
	h := handlers.NewHandler(sessions, journal)

	// Setup router
	r := mux.NewRouter()
	routers.RegisterRoutes(r, h)

	// HTTP Server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Logger.Info("Server stopped", zap.Error(err))
		}
	}()

	logger.Logger.Info("Server running on port", zap.Int("port", cfg.ServerPort))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Logger.Info("Shutdown signal received, exiting...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Warn("Server shutdown", zap.Error(err))
	}
	sessions.Close(shutdownCtx)
}
