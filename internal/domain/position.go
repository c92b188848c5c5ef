package domain

import "time"

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// SideFor maps a fused direction to a position side. ok is false for neutral.
func SideFor(d Direction) (Side, bool) {
	switch d {
	case DirectionLong:
		return SideLong, true
	case DirectionShort:
		return SideShort, true
	}
	return "", false
}

// Position is an open paper position. It is never modified after opening.
type Position struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	SizeBase   float64   `json:"size_base"`
	EntryPrice float64   `json:"entry"`
	StopLoss   float64   `json:"sl"`
	TakeProfit float64   `json:"tp"`
	OpenedAt   time.Time `json:"opened_at"`
}

type CloseReason string

const (
	CloseTakeProfit CloseReason = "TP"
	CloseStopLoss   CloseReason = "SL"
	CloseFlip       CloseReason = "FLIP"
)

// ClosedPosition is a journal record of a position that left the ledger.
type ClosedPosition struct {
	Position
	Mode        string      `json:"mode"`
	ExitPrice   float64     `json:"exit"`
	QuoteCost   float64     `json:"quote_cost"`
	RealizedPnL float64     `json:"pnl"`
	Equity      float64     `json:"eq"`
	Reason      CloseReason `json:"reason"`
	ClosedAt    time.Time   `json:"closed_at"`
}

// LastAction describes the most recent ledger mutation across modes.
type LastAction struct {
	Mode   string    `json:"mode"`
	Symbol string    `json:"symbol"`
	Side   string    `json:"side"` // long, short or flat
	Price  float64   `json:"price"`
	Time   time.Time `json:"t"`
}

// Direction is the fused direction that agrees with the side.
func (s Side) Direction() Direction {
	switch s {
	case SideLong:
		return DirectionLong
	case SideShort:
		return DirectionShort
	}
	return DirectionNeutral
}
