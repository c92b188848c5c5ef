package domain

import "time"

// WebhookEvent is an external annotation. It never mutates trading state.
type WebhookEvent struct {
	Time       time.Time `json:"ts"`
	Plan       string    `json:"plan"`
	Signal     string    `json:"signal"`
	Side       string    `json:"side"`
	Symbol     string    `json:"symbol"`
	Timeframe  string    `json:"timeframe"`
	Cost       *float64  `json:"cost,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	ATRPct     *float64  `json:"atr_pct,omitempty"`
}
