package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/wx-shi/utxo-rest/internal/chain"
	"github.com/wx-shi/utxo-rest/internal/config"
	"github.com/wx-shi/utxo-rest/internal/db"
	"github.com/wx-shi/utxo-rest/internal/indexer"
	"github.com/wx-shi/utxo-rest/internal/mempool"
	"github.com/wx-shi/utxo-rest/internal/server"
	"github.com/wx-shi/utxo-rest/pkg"
	"go.uber.org/zap"
)

var (
	flagconf string
)

func init() {
	flag.StringVar(&flagconf, "conf", "./config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(flagconf)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	params, _ := cfg.ChainParams()

	// Initialize logger
	logger, err := pkg.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Open the chain store
	store, err := db.NewDB(cfg.DB, logger, db.WithPruneDepth(cfg.Indexer.PruneDepth))
	if err != nil {
		logger.Fatal("Error initializing DB", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("DB::Close", zap.Error(err))
		}
	}()

	node := chain.NewNode(store, mempool.New(), params, logger, chain.WithMempoolSync(cfg.Mempool.Enabled))

	// Initialize Bitcoin JSON-RPC client
	btcClient, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.RPC.URL,
		User:         cfg.RPC.User,
		Pass:         cfg.RPC.Password,
		HTTPPostMode: true, // Bitcoin core only supports HTTP POST mode
		DisableTLS:   true, // Bitcoin core does not provide TLS by default
	}, nil)
	if err != nil {
		logger.Fatal("Error initializing Bitcoin RPC client", zap.Error(err))
	}
	defer btcClient.Shutdown()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())

	// Setup signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start block indexer
	idx := indexer.NewIndexer(ctx, cfg.Indexer, logger, btcClient, node)
	if err := idx.Sync(); err != nil {
		logger.Fatal("Indexer::Sync", zap.Error(err))
	}

	// Start mempool mirror
	var syncer *mempool.Syncer
	if cfg.Mempool.Enabled {
		syncer = mempool.NewSyncer(cfg.Mempool, logger, btcClient, node)
		go syncer.Run(ctx)
	}

	// Start HTTP server
	httpServer := server.NewServer(cfg.Server, logger, node)
	httpServer.Run()

	// Wait for signal
	<-sigCh
	logger.Info("Shutting down...")

	// Shutdown HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", zap.Error(err))
	}

	cancel()
	<-idx.Finish // 确保没在存储时退出程序
	if syncer != nil {
		<-syncer.Finish
	}
}
