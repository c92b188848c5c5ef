package domain

import "time"

// Balance is a normalized free balance for one asset.
type Balance struct {
	Asset string  `json:"asset"`
	Free  float64 `json:"free"`
}

type Account struct {
	Balances  []Balance  `json:"balances"`
	Positions []Position `json:"positions,omitempty"`
	Live      bool       `json:"live"`
}

type EquitySample struct {
	Time   time.Time `json:"t"`
	Equity float64   `json:"equity"`
}
