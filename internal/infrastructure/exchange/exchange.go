package exchange

import (
	"fmt"
	"strings"

	"github.com/vitos/smc_engine/internal/domain"
)

// Client is what a mode needs from an exchange: candles and, when keys are
// configured, live balances.
type Client interface {
	domain.CandleFetcher
	domain.BalanceProvider
}

// New returns the adapter for a configured exchange name.
func New(name, apiKey, apiSecret, baseURL string) (Client, error) {
	switch strings.ToLower(name) {
	case "bybit":
		return NewBybitAdapter(apiKey, apiSecret, baseURL), nil
	case "binance":
		return NewBinanceAdapter(apiKey, apiSecret, baseURL), nil
	}
	return nil, fmt.Errorf("unknown exchange %q", name)
}
