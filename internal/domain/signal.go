package domain

type Direction string

const (
	DirectionLong    Direction = "long"
	DirectionShort   Direction = "short"
	DirectionNeutral Direction = "neutral"
)

// Value maps a direction to +1, -1 or 0.
func (d Direction) Value() float64 {
	switch d {
	case DirectionLong:
		return 1
	case DirectionShort:
		return -1
	}
	return 0
}

// Opposite reports whether d and other are both directional and point different ways.
func (d Direction) Opposite(other Direction) bool {
	return (d == DirectionLong && other == DirectionShort) ||
		(d == DirectionShort && other == DirectionLong)
}

type FactKind string

const (
	FactLiquiditySweep FactKind = "liquidity_sweep"
	FactBOS            FactKind = "bos"
	FactFVG            FactKind = "fvg"
	FactOrderBlock     FactKind = "order_block"
	FactSR             FactKind = "sr"
	FactDemandSupply   FactKind = "demand_supply"
	FactFib            FactKind = "fib"
)

const (
	Bull = "bull"
	Bear = "bear"

	LevelSupport    = "support"
	LevelResistance = "resistance"

	SideDemand = "demand"
	SideSupply = "supply"
)

// Fact is a structural observation emitted by a detector. Only the tag fields
// relevant to Kind are set.
type Fact struct {
	Kind        FactKind    `json:"type"`
	Dir         string      `json:"dir,omitempty"`
	LevelType   string      `json:"level_type,omitempty"`
	Side        string      `json:"side,omitempty"`
	Ref         float64     `json:"ref,omitempty"`
	Level       float64     `json:"level,omitempty"`
	Zone        *[2]float64 `json:"zone,omitempty"`
	Retracement float64     `json:"retr,omitempty"`
}

// Bullish reports whether the fact votes for the long side.
func (f Fact) Bullish() bool {
	return f.Dir == Bull || f.Side == SideDemand || f.LevelType == LevelSupport
}

// Bearish reports whether the fact votes for the short side.
func (f Fact) Bearish() bool {
	return f.Dir == Bear || f.Side == SideSupply || f.LevelType == LevelResistance
}

type TimeframeSignal struct {
	Timeframe  string    `json:"tf"`
	Direction  Direction `json:"direction"`
	Strength   float64   `json:"strength"`
	Confidence int       `json:"confidence"`
	Facts      []Fact    `json:"facts"`
	Volatility float64   `json:"vol"`
}

const (
	ReasonInsufficientData = "insufficient_data"
	ReasonHTFDisagreement  = "htf_disagreement"
	ReasonLowConfidence    = "low_confidence"
)

type FusedSignal struct {
	Direction  Direction         `json:"direction"`
	Confidence int               `json:"confidence"`
	Reason     string            `json:"reason,omitempty"`
	Breakdown  []TimeframeSignal `json:"breakdown"`
}

type EntryZone struct {
	Timeframe string  `json:"tf"`
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
}

type StopRef struct {
	Timeframe string  `json:"tf"`
	Level     float64 `json:"level"`
}

type TradeIdea struct {
	Accepted   bool              `json:"ok"`
	Direction  Direction         `json:"direction"`
	Confidence int               `json:"confidence"`
	Reason     string            `json:"reason,omitempty"`
	EntryZone  *EntryZone        `json:"entry_zone,omitempty"`
	Stop       *StopRef          `json:"stop,omitempty"`
	Breakdown  []TimeframeSignal `json:"breakdown"`
}
