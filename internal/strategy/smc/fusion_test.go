package smc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/smc_engine/internal/domain"
)

func TestFuse_InsufficientData(t *testing.T) {
	fuser := NewFuser(nil, nil)

	cases := map[string]map[string]domain.Series{
		"nil map":     nil,
		"empty map":   {},
		"all short":   {"1m": bullish(29), "5m": flat(10)},
		"no strength": {"1m": flat(40), "1h": flat(40)},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			got := fuser.Fuse(in)
			assert.Equal(t, domain.DirectionNeutral, got.Direction)
			assert.Equal(t, 0, got.Confidence)
			assert.Equal(t, domain.ReasonInsufficientData, got.Reason)
			assert.Empty(t, got.Breakdown)
		})
	}
}

func TestFuse_Agreement(t *testing.T) {
	fuser := NewFuser(nil, nil)
	got := fuser.Fuse(map[string]domain.Series{
		"1m":  bullish(40),
		"5m":  bullish(40),
		"15m": bullish(40),
	})

	assert.Equal(t, domain.DirectionLong, got.Direction)
	assert.Equal(t, 100, got.Confidence)
	assert.Empty(t, got.Reason)
	require.Len(t, got.Breakdown, 3)
	assert.Equal(t, []string{"1m", "5m", "15m"}, timeframes(got.Breakdown))
}

func TestFuse_WeightedNet(t *testing.T) {
	fuser := NewFuser(nil, nil)

	// (0.8 - 1.0) / 1.8 = -0.11
	got := fuser.Fuse(map[string]domain.Series{"1m": bullish(40), "5m": bearish(40)})
	assert.Equal(t, domain.DirectionShort, got.Direction)
	assert.Equal(t, 11, got.Confidence)

	// custom weight flips the balance: (5 - 1) / 6 = 0.67
	custom := NewFuser(map[string]float64{"1m": 5}, nil)
	got = custom.Fuse(map[string]domain.Series{"1m": bullish(40), "5m": bearish(40)})
	assert.Equal(t, domain.DirectionLong, got.Direction)
	assert.Equal(t, 67, got.Confidence)
}

func TestFuse_Deadband(t *testing.T) {
	// 1.0 + 1.4 - 2.2 over 4.6 = 0.04
	fuser := NewFuser(nil, []string{})
	got := fuser.Fuse(map[string]domain.Series{
		"5m":  bullish(40),
		"15m": bullish(40),
		"1h":  bearish(40),
	})
	assert.Equal(t, domain.DirectionNeutral, got.Direction)
	assert.Equal(t, 4, got.Confidence)
}

func TestFuse_HigherTimeframeDisagreement(t *testing.T) {
	in := map[string]domain.Series{
		"1m":  bullish(40),
		"5m":  bullish(40),
		"15m": bullish(40),
		"1h":  bearish(40),
	}

	ungated := NewFuser(nil, []string{}).Fuse(in)
	gated := NewFuser(nil, nil).Fuse(in)

	// (0.8 + 1.0 + 1.4 - 2.2) / 5.4 = 0.185
	assert.Equal(t, domain.DirectionLong, ungated.Direction)
	assert.Equal(t, 19, ungated.Confidence)

	assert.Equal(t, ungated.Direction, gated.Direction, "higher timeframes never change the sign")
	assert.Equal(t, 11, gated.Confidence)
	assert.Less(t, gated.Confidence, ungated.Confidence)
	assert.Equal(t, domain.ReasonHTFDisagreement, gated.Reason)
}

func TestConfidenceFromNet_Monotonic(t *testing.T) {
	prev := -1
	for i := 0; i <= 1000; i++ {
		net := float64(i) / 1000
		c := ConfidenceFromNet(net)
		assert.GreaterOrEqual(t, c, prev)
		assert.Equal(t, c, ConfidenceFromNet(-net))
		prev = c
	}
	assert.Equal(t, 100, prev)
}

func TestSortTimeframes(t *testing.T) {
	assert.Equal(t, []string{"1m", "5m", "1h", "4h", "1d", "weird"},
		SortTimeframes([]string{"4h", "weird", "1d", "5m", "1h", "1m"}))

	d, ok := ParseTimeframe("15m")
	require.True(t, ok)
	assert.Equal(t, "15m0s", d.String())

	_, ok = ParseTimeframe("m")
	assert.False(t, ok)
}

func timeframes(b []domain.TimeframeSignal) []string {
	out := make([]string, len(b))
	for i, s := range b {
		out[i] = s.Timeframe
	}
	return out
}
