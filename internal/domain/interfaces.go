package domain

import "context"

// CandleFetcher retrieves OHLCV history from an exchange.
// Implementations must return candles in ascending time order.
type CandleFetcher interface {
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) (Series, error)
}

// BalanceProvider reads live wallet balances. It returns ErrCredentialsMissing
// when no API keys are configured.
type BalanceProvider interface {
	GetBalances(ctx context.Context) ([]Balance, error)
}

// TradeRepository defines storage operations for the trade journal.
type TradeRepository interface {
	SaveClosedPosition(ctx context.Context, closed *ClosedPosition) error
	ListClosedPositions(ctx context.Context, mode string, limit int) ([]*ClosedPosition, error)
	SaveWebhookEvent(ctx context.Context, evt *WebhookEvent) error
	ListWebhookEvents(ctx context.Context, limit int) ([]*WebhookEvent, error)
}
