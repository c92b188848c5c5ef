package smc

import (
	"math"

	"github.com/vitos/smc_engine/internal/domain"
)

const (
	// MinCandles is the shortest series the analyzer accepts.
	MinCandles = 30
	// MinConfluence is the number of facts needed before a timeframe votes.
	MinConfluence = 2

	maxFacts = 7
)

// AnalyzeTimeframe runs every detector on one series. ok is false when the
// series is too short or the feed is dead (zero ATR).
func AnalyzeTimeframe(s domain.Series, tf string) (domain.TimeframeSignal, bool) {
	if len(s) < MinCandles {
		return domain.TimeframeSignal{}, false
	}
	vol := ATR(s)
	if vol == 0 {
		return domain.TimeframeSignal{}, false
	}

	var facts []domain.Fact
	for _, detect := range detectors {
		if f, ok := detect(s); ok {
			facts = append(facts, f)
		}
	}

	if len(facts) < MinConfluence {
		return domain.TimeframeSignal{
			Timeframe:  tf,
			Direction:  domain.DirectionNeutral,
			Facts:      []domain.Fact{},
			Volatility: vol,
		}, true
	}

	var bull, bear int
	for _, f := range facts {
		if f.Bullish() {
			bull++
		}
		if f.Bearish() {
			bear++
		}
	}

	direction := domain.DirectionNeutral
	switch {
	case bull > bear:
		direction = domain.DirectionLong
	case bear > bull:
		direction = domain.DirectionShort
	}

	strength := math.Min(1, float64(len(facts))/maxFacts)
	return domain.TimeframeSignal{
		Timeframe:  tf,
		Direction:  direction,
		Strength:   strength,
		Confidence: int(math.Round(strength * 100)),
		Facts:      facts,
		Volatility: vol,
	}, true
}
