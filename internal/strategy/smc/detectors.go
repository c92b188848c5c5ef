package smc

import (
	"math"

	"github.com/vitos/smc_engine/internal/domain"
)

// Backward scan windows. They are tuning knobs, not invariants.
const (
	sweepLookback = 40
	bosLookback   = 60
	srLookback    = 80
	fibLookback   = 120

	fibTolerance = 0.035
)

var fibRatios = []float64{0.382, 0.5, 0.618}

// confirmIndex is the candle a setup is confirmed on: the last closed one.
func confirmIndex(s domain.Series) int { return len(s) - 2 }

// DetectLiquiditySweep looks for the confirmation candle taking out the
// nearest prior swing and closing back inside it.
func DetectLiquiditySweep(s domain.Series) (domain.Fact, bool) {
	if len(s) < 10 {
		return domain.Fact{}, false
	}
	i := confirmIndex(s)
	hi, lo := nearestSwings(s, i, sweepLookback, 0)
	if hi == -1 || lo == -1 {
		return domain.Fact{}, false
	}

	c := s[i]
	prevHigh := s[hi].High
	prevLow := s[lo].Low

	if c.High > prevHigh && c.Close < prevHigh {
		return domain.Fact{Kind: domain.FactLiquiditySweep, Dir: domain.Bear, Ref: prevHigh}, true
	}
	if c.Low < prevLow && c.Close > prevLow {
		return domain.Fact{Kind: domain.FactLiquiditySweep, Dir: domain.Bull, Ref: prevLow}, true
	}
	return domain.Fact{}, false
}

// DetectBOS reports a close through the nearest swing level that the
// previous close had not yet crossed.
func DetectBOS(s domain.Series) (domain.Fact, bool) {
	if len(s) < 10 {
		return domain.Fact{}, false
	}
	i := confirmIndex(s)
	hi, lo := nearestSwings(s, i, bosLookback, 0)
	if hi == -1 || lo == -1 {
		return domain.Fact{}, false
	}

	swingHigh := s[hi].High
	swingLow := s[lo].Low
	prevClose := s[i-1].Close
	closePrice := s[i].Close

	if prevClose <= swingHigh && closePrice > swingHigh {
		return domain.Fact{Kind: domain.FactBOS, Dir: domain.Bull, Ref: swingHigh}, true
	}
	if prevClose >= swingLow && closePrice < swingLow {
		return domain.Fact{Kind: domain.FactBOS, Dir: domain.Bear, Ref: swingLow}, true
	}
	return domain.Fact{}, false
}

// DetectFVG checks the last three candles for a wick gap.
func DetectFVG(s domain.Series) (domain.Fact, bool) {
	n := len(s)
	if n < 3 {
		return domain.Fact{}, false
	}
	a, c := s[n-3], s[n-1]
	if a.High < c.Low {
		return domain.Fact{Kind: domain.FactFVG, Dir: domain.Bull, Zone: &[2]float64{a.High, c.Low}}, true
	}
	if a.Low > c.High {
		return domain.Fact{Kind: domain.FactFVG, Dir: domain.Bear, Zone: &[2]float64{c.High, a.Low}}, true
	}
	return domain.Fact{}, false
}

// DetectOrderBlock uses a two candle proxy: the last opposite candle before
// a close beyond its open. The zone is that candle's range.
func DetectOrderBlock(s domain.Series) (domain.Fact, bool) {
	if len(s) < 4 {
		return domain.Fact{}, false
	}
	i := confirmIndex(s)
	ob, cur := s[i-1], s[i]
	zone := &[2]float64{ob.Low, ob.High}

	if ob.Close < ob.Open && cur.Close > ob.Open {
		return domain.Fact{Kind: domain.FactOrderBlock, Dir: domain.Bull, Zone: zone}, true
	}
	if ob.Close > ob.Open && cur.Close < ob.Open {
		return domain.Fact{Kind: domain.FactOrderBlock, Dir: domain.Bear, Zone: zone}, true
	}
	return domain.Fact{}, false
}

// DetectSupportResistance returns the nearest swing as a level. Whichever
// type is met first while scanning backward wins.
func DetectSupportResistance(s domain.Series) (domain.Fact, bool) {
	i := confirmIndex(s)
	stop := max(2, i-srLookback)
	for k := i - 1; k >= stop; k-- {
		if IsSwingHigh(s, k) {
			return domain.Fact{Kind: domain.FactSR, LevelType: domain.LevelResistance, Level: s[k].High}, true
		}
		if IsSwingLow(s, k) {
			return domain.Fact{Kind: domain.FactSR, LevelType: domain.LevelSupport, Level: s[k].Low}, true
		}
	}
	return domain.Fact{}, false
}

// DetectDemandSupply mirrors the order block: bull is demand, bear is supply.
func DetectDemandSupply(s domain.Series) (domain.Fact, bool) {
	ob, ok := DetectOrderBlock(s)
	if !ok {
		return domain.Fact{}, false
	}
	side := domain.SideSupply
	if ob.Dir == domain.Bull {
		side = domain.SideDemand
	}
	return domain.Fact{Kind: domain.FactDemandSupply, Side: side, Dir: ob.Dir, Zone: ob.Zone}, true
}

// DetectFibConfluence fires when the last close sits near a key retracement
// of the nearest swing range.
func DetectFibConfluence(s domain.Series) (domain.Fact, bool) {
	if len(s) == 0 {
		return domain.Fact{}, false
	}
	i := confirmIndex(s)
	hiIdx, loIdx := nearestSwings(s, i, fibLookback, 2)
	if hiIdx == -1 || loIdx == -1 {
		return domain.Fact{}, false
	}
	hi := s[hiIdx].High
	lo := s[loIdx].Low
	if hi <= lo {
		return domain.Fact{}, false
	}

	last, _ := s.Last()
	retr := (hi - last.Close) / (hi - lo) // 0 at hi, 1 at lo
	for _, r := range fibRatios {
		if math.Abs(retr-r) <= fibTolerance {
			return domain.Fact{Kind: domain.FactFib, Retracement: retr}, true
		}
	}
	return domain.Fact{}, false
}

type detector func(domain.Series) (domain.Fact, bool)

// detectors run in this order; the order is preserved in TimeframeSignal.Facts.
var detectors = []detector{
	DetectLiquiditySweep,
	DetectBOS,
	DetectOrderBlock,
	DetectDemandSupply,
	DetectFVG,
	DetectSupportResistance,
	DetectFibConfluence,
}
