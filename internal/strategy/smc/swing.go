package smc

import "github.com/vitos/smc_engine/internal/domain"

// SwingLen is the number of neighbours on each side a swing point must beat.
const SwingLen = 2

// IsSwingHigh reports whether candle i's high is strictly above the highs of
// SwingLen candles on both sides.
func IsSwingHigh(s domain.Series, i int) bool {
	if i < SwingLen || i > len(s)-SwingLen-1 {
		return false
	}
	h := s[i].High
	for k := 1; k <= SwingLen; k++ {
		if s[i-k].High >= h || s[i+k].High >= h {
			return false
		}
	}
	return true
}

// IsSwingLow reports whether candle i's low is strictly below the lows of
// SwingLen candles on both sides.
func IsSwingLow(s domain.Series, i int) bool {
	if i < SwingLen || i > len(s)-SwingLen-1 {
		return false
	}
	l := s[i].Low
	for k := 1; k <= SwingLen; k++ {
		if s[i-k].Low <= l || s[i+k].Low <= l {
			return false
		}
	}
	return true
}

// nearestSwings scans backward from i-1 down to max(floor, i-lookback) and
// returns the index of the nearest swing high and swing low, -1 when absent.
func nearestSwings(s domain.Series, i, lookback, floor int) (hi, lo int) {
	hi, lo = -1, -1
	stop := max(floor, i-lookback)
	for k := i - 1; k >= stop; k-- {
		if hi == -1 && IsSwingHigh(s, k) {
			hi = k
		}
		if lo == -1 && IsSwingLow(s, k) {
			lo = k
		}
		if hi != -1 && lo != -1 {
			break
		}
	}
	return hi, lo
}
