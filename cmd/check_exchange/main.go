package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vitos/smc_engine/internal/config"
	"github.com/vitos/smc_engine/internal/domain"
	"github.com/vitos/smc_engine/internal/infrastructure/exchange"
	"github.com/vitos/smc_engine/internal/strategy/smc"
	"github.com/vitos/smc_engine/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	exchangeName := flag.String("exchange", "bybit", "bybit or binance")
	symbol := flag.String("symbol", "BTCUSDT", "symbol to analyze")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath, ".env")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ex := cfg.Exchange(*exchangeName)
	client, err := exchange.New(*exchangeName, ex.APIKey, ex.APISecret, ex.RESTEndpoint)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Testing %s (%s)...\n", *exchangeName, *symbol)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 2. Check Public Endpoint (Candles)
	timeframes := smc.SortTimeframes(cfg.Engine.Timeframes)
	seriesByTF := make(map[string]domain.Series, len(timeframes))
	for _, tf := range timeframes {
		series, err := client.GetCandles(ctx, *symbol, tf, cfg.Engine.CandleLimit)
		if err != nil {
			fmt.Printf("❌ Failed to get %s candles: %v\n", tf, err)
			continue
		}
		seriesByTF[tf] = series
		last, _ := series.Last()
		fmt.Printf("✅ %s: %d candles, last close %.4f, ATR %.4f\n", tf, len(series), last.Close, smc.ATR(series))
	}

	// 3. Fused idea
	fuser := smc.NewFuser(cfg.Engine.Weights, cfg.Engine.Higher)
	idea := fuser.TradeIdea(seriesByTF)
	for _, b := range idea.Breakdown {
		fmt.Printf("   %-4s %-7s conf=%3d facts=%d\n", b.Timeframe, b.Direction, b.Confidence, len(b.Facts))
	}
	fmt.Printf("Idea: accepted=%v direction=%s confidence=%d reason=%s\n", idea.Accepted, idea.Direction, idea.Confidence, idea.Reason)
	if idea.EntryZone != nil {
		fmt.Printf("   entry zone (%s): %.4f - %.4f\n", idea.EntryZone.Timeframe, idea.EntryZone.Low, idea.EntryZone.High)
	}
	if idea.Stop != nil {
		fmt.Printf("   structural stop (%s): %.4f\n", idea.Stop.Timeframe, idea.Stop.Level)
	}

	if side, ok := domain.SideFor(idea.Direction); ok && len(timeframes) > 0 {
		bracket := usecase.DeriveStopTarget(seriesByTF[timeframes[0]], side)
		fmt.Printf("   %s bracket: sl=%.4f tp=%.4f (avg range %.4f)\n", side, bracket.StopLoss, bracket.TakeProfit, bracket.AvgRange)
	}

	// 4. Check Private Endpoint (Balances)
	balances, err := client.GetBalances(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to get balances: %v\n", err)
		return
	}
	for _, b := range balances {
		fmt.Printf("✅ Balance %s: %f\n", b.Asset, b.Free)
	}
}
