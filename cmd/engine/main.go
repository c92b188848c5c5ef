package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitos/smc_engine/internal/config"
	"github.com/vitos/smc_engine/internal/infrastructure/exchange"
	"github.com/vitos/smc_engine/internal/infrastructure/logger"
	"github.com/vitos/smc_engine/internal/infrastructure/storage"
	"github.com/vitos/smc_engine/internal/usecase"
	"github.com/vitos/smc_engine/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	envPath := flag.String("env", ".env", "path to an optional .env file")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Exchanges and Modes
	modes := make([]usecase.ModeConfig, 0, len(cfg.Engine.Modes))
	for _, m := range cfg.Engine.Modes {
		ex := cfg.Exchange(m.Exchange)
		client, err := exchange.New(m.Exchange, ex.APIKey, ex.APISecret, ex.RESTEndpoint)
		if err != nil {
			log.Fatal("Failed to init exchange", zap.String("mode", m.Name), zap.Error(err))
		}
		modes = append(modes, usecase.ModeConfig{
			Name:            m.Name,
			Symbols:         m.Symbols,
			Timeframes:      cfg.Engine.Timeframes,
			QuoteAsset:      m.QuoteAsset,
			StartingBalance: m.StartingBalance,
			Fetcher:         client,
			Balances:        client,
		})
		log.Info("Mode configured",
			zap.String("mode", m.Name),
			zap.String("exchange", m.Exchange),
			zap.Strings("symbols", m.Symbols),
			zap.Bool("live_keys", ex.APIKey != "" && ex.APISecret != ""))
	}

	// 5. Init Engine
	engine := usecase.NewEngineService(usecase.EngineConfig{
		Interval:       cfg.Engine.Interval(),
		CandleLimit:    cfg.Engine.CandleLimit,
		OpenConfidence: cfg.Engine.OpenConfidence,
		Risk:           usecase.RiskConfig{RiskPct: cfg.Risk.RiskPct, MaxOpen: cfg.Risk.MaxOpen},
		Demo:           cfg.Engine.IsDemo(),
		Weights:        cfg.Engine.Weights,
		Higher:         cfg.Engine.Higher,
	}, modes, store, log)

	for _, name := range cfg.Engine.Autostart {
		if _, err := engine.Start(name); err != nil {
			log.Error("Autostart failed", zap.String("mode", name), zap.Error(err))
		}
	}

	// 6. Init Web Server
	server := web.NewServer(web.Options{
		Port:          cfg.Server.Port,
		WebhookSecret: cfg.Server.WebhookSecret,
	}, engine, log)

	// 7. Run until a signal arrives
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Engine ready", zap.Bool("demo", cfg.Engine.IsDemo()), zap.Int("port", cfg.Server.Port))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return errors.Join(
			server.Shutdown(shutdownCtx),
			engine.Shutdown(shutdownCtx),
		)
	})

	if err := g.Wait(); err != nil {
		log.Error("Exited with error", zap.Error(err))
	}
}
