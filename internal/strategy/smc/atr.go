package smc

import (
	talib "github.com/markcheno/go-talib"
	"github.com/vitos/smc_engine/internal/domain"
)

const ATRPeriod = 14

// ATR returns the latest Wilder-smoothed average true range over ATRPeriod.
// It returns 0 when the series holds fewer than ATRPeriod+1 candles.
func ATR(s domain.Series) float64 {
	if len(s) < ATRPeriod+1 {
		return 0
	}
	out := talib.Atr(s.Highs(), s.Lows(), s.Closes(), ATRPeriod)
	return out[len(out)-1]
}
