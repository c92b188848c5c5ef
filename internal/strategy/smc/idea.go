package smc

import (
	"math"
	"sort"

	"github.com/vitos/smc_engine/internal/domain"
)

// MinIdeaConfidence is the fused confidence below which no idea is proposed.
const MinIdeaConfidence = 55

// TradeIdea fuses the series and gates the result into an idea.
func (f *Fuser) TradeIdea(seriesByTF map[string]domain.Series) domain.TradeIdea {
	return f.BuildTradeIdea(f.Fuse(seriesByTF))
}

// BuildTradeIdea gates a fused signal by confidence and picks an entry zone
// and stop reference from the heaviest timeframes first.
func (f *Fuser) BuildTradeIdea(fused domain.FusedSignal) domain.TradeIdea {
	idea := domain.TradeIdea{
		Direction:  fused.Direction,
		Confidence: fused.Confidence,
		Breakdown:  fused.Breakdown,
	}
	if fused.Direction == domain.DirectionNeutral || fused.Confidence < MinIdeaConfidence {
		idea.Reason = domain.ReasonLowConfidence
		return idea
	}
	idea.Accepted = true

	ordered := make([]domain.TimeframeSignal, len(fused.Breakdown))
	copy(ordered, fused.Breakdown)
	sort.SliceStable(ordered, func(i, j int) bool {
		return f.Weight(ordered[i].Timeframe) > f.Weight(ordered[j].Timeframe)
	})

	for _, b := range ordered {
		if idea.EntryZone == nil {
			if z := firstZone(b.Facts); z != nil {
				idea.EntryZone = &domain.EntryZone{
					Timeframe: b.Timeframe,
					Low:       math.Min(z[0], z[1]),
					High:      math.Max(z[0], z[1]),
				}
			}
		}
		if idea.Stop == nil {
			for _, fact := range b.Facts {
				if fact.Kind == domain.FactSR {
					idea.Stop = &domain.StopRef{Timeframe: b.Timeframe, Level: fact.Level}
					break
				}
			}
		}
		if idea.EntryZone != nil && idea.Stop != nil {
			break
		}
	}
	return idea
}

// firstZone prefers an order block over a demand/supply zone.
func firstZone(facts []domain.Fact) *[2]float64 {
	for _, kind := range []domain.FactKind{domain.FactOrderBlock, domain.FactDemandSupply} {
		for _, f := range facts {
			if f.Kind == kind && f.Zone != nil {
				return f.Zone
			}
		}
	}
	return nil
}
