package usecase

import (
	"math"

	"github.com/vitos/smc_engine/internal/domain"
)

const (
	DefaultRiskPct  = 0.5
	MinRiskNotional = 10.0

	stopRangeMult   = 1.2
	targetRangeMult = 2.0
	rangeWindow     = 50
	fallbackRange   = 0.005
)

// RiskConfig controls position sizing. MaxOpen is carried for callers; the
// sizer itself does not look at open positions.
type RiskConfig struct {
	RiskPct float64 `yaml:"risk_pct"`
	MaxOpen int     `yaml:"max_open"`
}

type PositionSize struct {
	USDRisk  float64 `json:"usd_risk"`
	SizeBase float64 `json:"size_base"`
}

// SizePosition risks RiskPct percent of equity, never less than
// MinRiskNotional, and converts it to base units at price.
func SizePosition(quoteBal, baseBal, price float64, cfg RiskConfig) PositionSize {
	riskPct := cfg.RiskPct
	if riskPct <= 0 {
		riskPct = DefaultRiskPct
	}
	equity := quoteBal + baseBal*price
	usdRisk := math.Max(MinRiskNotional, riskPct/100*equity)
	if price <= 0 {
		return PositionSize{USDRisk: usdRisk}
	}
	return PositionSize{USDRisk: usdRisk, SizeBase: usdRisk / price}
}

// StopTarget is a derived stop-loss and take-profit bracket.
type StopTarget struct {
	StopLoss   float64 `json:"sl"`
	TakeProfit float64 `json:"tp"`
	AvgRange   float64 `json:"avg_range"`
}

// DeriveStopTarget sizes the bracket from the mean candle range of the most
// recent rangeWindow candles.
func DeriveStopTarget(s domain.Series, side domain.Side) StopTarget {
	window := s.Tail(rangeWindow)
	last, _ := window.Last()

	var avg float64
	if len(window) > 0 {
		var sum float64
		for _, c := range window {
			sum += c.High - c.Low
		}
		avg = sum / float64(len(window))
	}
	if avg == 0 {
		avg = last.Close * fallbackRange
	}

	if side == domain.SideLong {
		return StopTarget{
			StopLoss:   last.Close - stopRangeMult*avg,
			TakeProfit: last.Close + targetRangeMult*avg,
			AvgRange:   avg,
		}
	}
	return StopTarget{
		StopLoss:   last.Close + stopRangeMult*avg,
		TakeProfit: last.Close - targetRangeMult*avg,
		AvgRange:   avg,
	}
}
