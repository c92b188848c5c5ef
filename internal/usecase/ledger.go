package usecase

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/smc_engine/internal/domain"
)

// PaperLedger is a simulated spot account with at most one position per
// symbol. Longs buy base with quote. Shorts escrow their notional in quote
// and are paid back collateral plus PnL, floored at zero, so no balance can
// go negative. It is not safe for concurrent use; Mode serializes access.
type PaperLedger struct {
	quote      string
	balances   map[string]decimal.Decimal
	positions  map[string]domain.Position
	collateral map[string]decimal.Decimal
}

func NewPaperLedger(quote string, startingQuote float64) *PaperLedger {
	return &PaperLedger{
		quote:      quote,
		balances:   map[string]decimal.Decimal{quote: decimal.NewFromFloat(startingQuote)},
		positions:  make(map[string]domain.Position),
		collateral: make(map[string]decimal.Decimal),
	}
}

func (l *PaperLedger) QuoteAsset() string { return l.quote }

// BaseAsset strips the quote suffix from a symbol: BTCUSDT -> BTC.
func (l *PaperLedger) BaseAsset(symbol string) string {
	if base, ok := strings.CutSuffix(symbol, l.quote); ok && base != "" {
		return base
	}
	return symbol
}

func (l *PaperLedger) Balance(asset string) float64 {
	return l.balances[asset].InexactFloat64()
}

// Balances returns every asset ever touched, sorted by name.
func (l *PaperLedger) Balances() []domain.Balance {
	out := make([]domain.Balance, 0, len(l.balances))
	for asset, v := range l.balances {
		out = append(out, domain.Balance{Asset: asset, Free: v.InexactFloat64()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}

func (l *PaperLedger) Position(symbol string) (domain.Position, bool) {
	p, ok := l.positions[symbol]
	return p, ok
}

func (l *PaperLedger) Positions() []domain.Position {
	out := make([]domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Open books a new position at p.EntryPrice. It fails without mutating
// anything when the symbol already has a position or quote is short.
func (l *PaperLedger) Open(p domain.Position) error {
	if _, ok := l.positions[p.Symbol]; ok {
		return fmt.Errorf("%s: %w", p.Symbol, domain.ErrPositionExists)
	}
	if p.SizeBase <= 0 || p.EntryPrice <= 0 {
		return fmt.Errorf("invalid position size %v @ %v", p.SizeBase, p.EntryPrice)
	}
	if p.Side != domain.SideLong && p.Side != domain.SideShort {
		return fmt.Errorf("invalid side %q", p.Side)
	}

	notional := decimal.NewFromFloat(p.SizeBase).Mul(decimal.NewFromFloat(p.EntryPrice))
	quoteBal := l.balances[l.quote]
	if quoteBal.LessThan(notional) {
		return fmt.Errorf("need %s %s, have %s: %w", notional, l.quote, quoteBal, domain.ErrInsufficientBalance)
	}

	l.balances[l.quote] = quoteBal.Sub(notional)
	switch p.Side {
	case domain.SideLong:
		base := l.BaseAsset(p.Symbol)
		l.balances[base] = l.balances[base].Add(decimal.NewFromFloat(p.SizeBase))
	case domain.SideShort:
		l.collateral[p.Symbol] = notional
	}
	l.positions[p.Symbol] = p
	return nil
}

// Settlement is the balance effect of closing a position.
type Settlement struct {
	Position    domain.Position
	ExitPrice   float64
	QuoteCost   float64
	RealizedPnL float64
}

// Close removes the symbol's position and applies its balance effect at price.
func (l *PaperLedger) Close(symbol string, price float64) (Settlement, error) {
	p, ok := l.positions[symbol]
	if !ok {
		return Settlement{}, fmt.Errorf("%s: %w", symbol, domain.ErrNoPosition)
	}

	size := decimal.NewFromFloat(p.SizeBase)
	entry := decimal.NewFromFloat(p.EntryPrice)
	exit := decimal.NewFromFloat(price)
	cost := size.Mul(entry)

	var pnl decimal.Decimal
	switch p.Side {
	case domain.SideLong:
		base := l.BaseAsset(symbol)
		proceeds := size.Mul(exit)
		l.balances[l.quote] = l.balances[l.quote].Add(proceeds)
		l.balances[base] = l.balances[base].Sub(size)
		pnl = proceeds.Sub(cost)
	case domain.SideShort:
		escrow := l.collateral[symbol]
		payout := decimal.Max(decimal.Zero, escrow.Add(entry.Sub(exit).Mul(size)))
		l.balances[l.quote] = l.balances[l.quote].Add(payout)
		delete(l.collateral, symbol)
		pnl = payout.Sub(escrow)
	}
	delete(l.positions, symbol)

	return Settlement{
		Position:    p,
		ExitPrice:   price,
		QuoteCost:   cost.InexactFloat64(),
		RealizedPnL: pnl.InexactFloat64(),
	}, nil
}

// Equity marks the account: quote, plus every base balance at its mark, plus
// open short collateral adjusted by unrealized PnL. Assets without a mark
// contribute nothing.
func (l *PaperLedger) Equity(marks map[string]float64) float64 {
	eq := l.balances[l.quote]
	for symbol, mark := range marks {
		m := decimal.NewFromFloat(mark)
		base := l.BaseAsset(symbol)
		if base != l.quote {
			eq = eq.Add(l.balances[base].Mul(m))
		}
		if p, ok := l.positions[symbol]; ok && p.Side == domain.SideShort {
			unrl := decimal.NewFromFloat(p.EntryPrice).Sub(m).Mul(decimal.NewFromFloat(p.SizeBase))
			eq = eq.Add(decimal.Max(decimal.Zero, l.collateral[symbol].Add(unrl)))
		}
	}
	return eq.InexactFloat64()
}

// Snapshot is a read-only copy of the ledger.
func (l *PaperLedger) Snapshot() domain.Account {
	return domain.Account{Balances: l.Balances(), Positions: l.Positions()}
}

func newPosition(id, symbol string, side domain.Side, size, price float64, bracket StopTarget, at time.Time) domain.Position {
	return domain.Position{
		ID:         id,
		Symbol:     symbol,
		Side:       side,
		SizeBase:   size,
		EntryPrice: price,
		StopLoss:   bracket.StopLoss,
		TakeProfit: bracket.TakeProfit,
		OpenedAt:   at,
	}
}
