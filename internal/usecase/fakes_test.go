package usecase_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/vitos/smc_engine/internal/domain"
)

// MockFetcher serves fixed series per symbol and timeframe.
type MockFetcher struct {
	mu     sync.Mutex
	series map[string]domain.Series // key: symbol + "|" + timeframe
	err    error
	panics bool
	calls  int
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{series: make(map[string]domain.Series)}
}

func (m *MockFetcher) Set(symbol, tf string, s domain.Series) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[symbol+"|"+tf] = s
}

func (m *MockFetcher) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockFetcher) GetCandles(ctx context.Context, symbol, timeframe string, limit int) (domain.Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.panics {
		panic("feed exploded")
	}
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.series[symbol+"|"+timeframe]
	if !ok {
		return nil, errors.New("no data")
	}
	if len(s) > limit {
		s = s[len(s)-limit:]
	}
	return s, nil
}

// BlockingFetcher parks every call until Release and tracks how many calls
// were in flight at once.
type BlockingFetcher struct {
	series  domain.Series
	entered chan struct{}
	release chan struct{}
	once    sync.Once

	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func NewBlockingFetcher(s domain.Series) *BlockingFetcher {
	return &BlockingFetcher{
		series:  s,
		entered: make(chan struct{}, 64),
		release: make(chan struct{}),
	}
}

func (b *BlockingFetcher) Release() { b.once.Do(func() { close(b.release) }) }

func (b *BlockingFetcher) Calls() int { return int(b.calls.Load()) }

func (b *BlockingFetcher) InFlight() int { return int(b.inFlight.Load()) }

func (b *BlockingFetcher) Peak() int { return int(b.peak.Load()) }

func (b *BlockingFetcher) GetCandles(ctx context.Context, symbol, timeframe string, limit int) (domain.Series, error) {
	b.calls.Add(1)
	n := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-b.release
	return b.series, nil
}

type MockBalances struct {
	balances []domain.Balance
	err      error
}

func (m *MockBalances) GetBalances(ctx context.Context) ([]domain.Balance, error) {
	return m.balances, m.err
}

// MockTradeRepo records everything it is asked to persist.
type MockTradeRepo struct {
	mu       sync.Mutex
	closed   []*domain.ClosedPosition
	webhooks []*domain.WebhookEvent
}

func (r *MockTradeRepo) SaveClosedPosition(ctx context.Context, p *domain.ClosedPosition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, p)
	return nil
}

func (r *MockTradeRepo) ListClosedPositions(ctx context.Context, mode string, limit int) ([]*domain.ClosedPosition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ClosedPosition
	for i := len(r.closed) - 1; i >= 0 && len(out) < limit; i-- {
		if r.closed[i].Mode == mode {
			out = append(out, r.closed[i])
		}
	}
	return out, nil
}

func (r *MockTradeRepo) SaveWebhookEvent(ctx context.Context, e *domain.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.webhooks = append(r.webhooks, e)
	return nil
}

func (r *MockTradeRepo) ListWebhookEvents(ctx context.Context, limit int) ([]*domain.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.WebhookEvent
	for i := len(r.webhooks) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.webhooks[i])
	}
	return out, nil
}

func (r *MockTradeRepo) Closed() []*domain.ClosedPosition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.ClosedPosition(nil), r.closed...)
}

// flatAt returns n candles closing at p with a range of 2.
func flatAt(n int, p float64) domain.Series {
	s := make(domain.Series, n)
	for i := range s {
		s[i] = domain.Candle{Time: int64(i) * 60_000, Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 1}
	}
	return s
}

// bullishAt ends a flat series with an order block, demand zone and bullish
// gap; shift moves every price. The last close is 103.5 + shift.
func bullishAt(n int, shift float64) domain.Series {
	s := flatAt(n, 100+shift)
	s[n-3] = domain.Candle{Time: s[n-3].Time, Open: 100 + shift, High: 100.5 + shift, Low: 99 + shift, Close: 99.2 + shift}
	s[n-2] = domain.Candle{Time: s[n-2].Time, Open: 99.2 + shift, High: 103.5 + shift, Low: 98.8 + shift, Close: 103 + shift}
	s[n-1] = domain.Candle{Time: s[n-1].Time, Open: 103 + shift, High: 104 + shift, Low: 101 + shift, Close: 103.5 + shift}
	return s
}

// bearishAt mirrors bullishAt. The last close is 96 + shift.
func bearishAt(n int, shift float64) domain.Series {
	s := flatAt(n, 100+shift)
	s[n-3] = domain.Candle{Time: s[n-3].Time, Open: 100 + shift, High: 101 + shift, Low: 99.5 + shift, Close: 100.8 + shift}
	s[n-2] = domain.Candle{Time: s[n-2].Time, Open: 100.8 + shift, High: 101 + shift, Low: 96.5 + shift, Close: 97 + shift}
	s[n-1] = domain.Candle{Time: s[n-1].Time, Open: 97 + shift, High: 99 + shift, Low: 95.5 + shift, Close: 96 + shift}
	return s
}
