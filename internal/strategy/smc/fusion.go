package smc

import (
	"math"
	"sort"

	"github.com/vitos/smc_engine/internal/domain"
)

// DefaultWeights rank timeframes by importance; longer is stronger.
var DefaultWeights = map[string]float64{
	"1m":  0.8,
	"5m":  1.0,
	"15m": 1.4,
	"1h":  2.2,
	"4h":  3.0,
	"1d":  3.6,
}

// DefaultHigher are the timeframes allowed to veto fused confidence.
var DefaultHigher = []string{"1h", "4h", "1d"}

const (
	deadband          = 0.1
	disagreementScale = 0.6
)

// Fuser combines per-timeframe signals into one weighted decision.
type Fuser struct {
	weights map[string]float64
	higher  map[string]bool
}

// NewFuser layers custom weights over DefaultWeights. A nil higher slice
// means DefaultHigher; pass an empty slice to disable the gate.
func NewFuser(custom map[string]float64, higher []string) *Fuser {
	w := make(map[string]float64, len(DefaultWeights)+len(custom))
	for tf, v := range DefaultWeights {
		w[tf] = v
	}
	for tf, v := range custom {
		w[tf] = v
	}
	if higher == nil {
		higher = DefaultHigher
	}
	h := make(map[string]bool, len(higher))
	for _, tf := range higher {
		h[tf] = true
	}
	return &Fuser{weights: w, higher: h}
}

// Weight returns the configured weight for tf, 1 if unknown.
func (f *Fuser) Weight(tf string) float64 {
	if w, ok := f.weights[tf]; ok {
		return w
	}
	return 1
}

// orderByWeight returns the keys sorted by ascending weight, then name.
func (f *Fuser) orderByWeight(seriesByTF map[string]domain.Series) []string {
	tfs := make([]string, 0, len(seriesByTF))
	for tf := range seriesByTF {
		tfs = append(tfs, tf)
	}
	sort.Slice(tfs, func(i, j int) bool {
		wi, wj := f.Weight(tfs[i]), f.Weight(tfs[j])
		if wi != wj {
			return wi < wj
		}
		return tfs[i] < tfs[j]
	})
	return tfs
}

// Fuse analyzes each series and folds the results into a FusedSignal.
func (f *Fuser) Fuse(seriesByTF map[string]domain.Series) domain.FusedSignal {
	var (
		breakdown []domain.TimeframeSignal
		weighted  float64
		total     float64
	)

	for _, tf := range f.orderByWeight(seriesByTF) {
		series := seriesByTF[tf]
		if len(series) < MinCandles {
			continue
		}
		sig, ok := AnalyzeTimeframe(series, tf)
		if !ok {
			continue
		}
		breakdown = append(breakdown, sig)

		w := f.Weight(tf) * sig.Strength
		weighted += sig.Direction.Value() * w
		total += w
	}

	if len(breakdown) == 0 || total == 0 {
		return domain.FusedSignal{
			Direction: domain.DirectionNeutral,
			Reason:    domain.ReasonInsufficientData,
			Breakdown: []domain.TimeframeSignal{},
		}
	}

	net := weighted / total
	fused := domain.FusedSignal{
		Direction:  directionFromNet(net),
		Confidence: ConfidenceFromNet(net),
		Breakdown:  breakdown,
	}

	if f.higherDisagrees(fused.Direction, breakdown) {
		fused.Confidence = int(math.Max(0, math.Round(float64(fused.Confidence)*disagreementScale)))
		fused.Reason = domain.ReasonHTFDisagreement
	}
	return fused
}

func (f *Fuser) higherDisagrees(dir domain.Direction, breakdown []domain.TimeframeSignal) bool {
	for _, b := range breakdown {
		if !f.higher[b.Timeframe] {
			continue
		}
		if b.Direction != domain.DirectionNeutral && b.Direction != dir {
			return true
		}
	}
	return false
}

func directionFromNet(net float64) domain.Direction {
	switch {
	case net > deadband:
		return domain.DirectionLong
	case net < -deadband:
		return domain.DirectionShort
	}
	return domain.DirectionNeutral
}

// ConfidenceFromNet maps a net score in [-1, 1] to 0..100.
func ConfidenceFromNet(net float64) int {
	return int(math.Round(math.Abs(net) * 100))
}
