package smc

import "github.com/vitos/smc_engine/internal/domain"

// flat returns n identical candles: open=close=100, high 101, low 99.
func flat(n int) domain.Series {
	s := make(domain.Series, n)
	for i := range s {
		s[i] = domain.Candle{Time: int64(i) * 60_000, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1}
	}
	return s
}

// bullish ends a flat series with a down candle, a close above its open and
// a candle gapping above the down candle's high: order block, demand and FVG.
func bullish(n int) domain.Series {
	s := flat(n)
	s[n-3] = domain.Candle{Time: s[n-3].Time, Open: 100, High: 100.5, Low: 99, Close: 99.2}
	s[n-2] = domain.Candle{Time: s[n-2].Time, Open: 99.2, High: 103.5, Low: 98.8, Close: 103}
	s[n-1] = domain.Candle{Time: s[n-1].Time, Open: 103, High: 104, Low: 101, Close: 103.5}
	return s
}

// bearish mirrors bullish.
func bearish(n int) domain.Series {
	s := flat(n)
	s[n-3] = domain.Candle{Time: s[n-3].Time, Open: 100, High: 101, Low: 99.5, Close: 100.8}
	s[n-2] = domain.Candle{Time: s[n-2].Time, Open: 100.8, High: 101, Low: 96.5, Close: 97}
	s[n-1] = domain.Candle{Time: s[n-1].Time, Open: 97, High: 99, Low: 95.5, Close: 96}
	return s
}

// structure is a 12 candle flat series with a swing low of 90 at index 3 and
// a swing high of 110 at index 5.
func structure() domain.Series {
	s := flat(12)
	s[3].Low = 90
	s[5].High = 110
	return s
}
