package usecase

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vitos/smc_engine/internal/domain"
	"github.com/vitos/smc_engine/internal/strategy/smc"
)

const (
	LogCapacity    = 40
	EquityCapacity = 4000

	recentLogLines = 6
)

// Mode states reported on the status snapshot. A stopped mode stays
// STOPPING until its in-flight tick has returned.
const (
	StateIdle     = "IDLE"
	StateRunning  = "RUNNING"
	StateStopping = "STOPPING"
)

// ModeConfig describes one isolated simulation context.
type ModeConfig struct {
	Name            string
	Symbols         []string
	Timeframes      []string
	QuoteAsset      string
	StartingBalance float64
	Fetcher         domain.CandleFetcher
	Balances        domain.BalanceProvider // optional, live account reads only
}

// Mode owns one ledger, log and equity history. Everything below mu is
// guarded by it; nothing is shared with other modes.
type Mode struct {
	name       string
	symbols    []string
	timeframes []string // fastest first
	fetcher    domain.CandleFetcher
	balances   domain.BalanceProvider

	mu      sync.Mutex
	running bool          // cooperative flag cleared by Stop
	stopCh  chan struct{}
	done    chan struct{} // closed once this loop and every earlier one exit
	ledger  *PaperLedger
	log     *Ring[string]
	equity  *Ring[domain.EquitySample]
	marks   map[string]float64
}

type ModeStatus struct {
	Running bool     `json:"running"`
	State   string   `json:"state"`
	Recent  []string `json:"recent"`
}

func newMode(cfg ModeConfig) *Mode {
	quote := cfg.QuoteAsset
	if quote == "" {
		quote = "USDT"
	}
	start := cfg.StartingBalance
	if start <= 0 {
		start = 1000
	}
	return &Mode{
		name:       strings.ToUpper(cfg.Name),
		symbols:    cfg.Symbols,
		timeframes: smc.SortTimeframes(cfg.Timeframes),
		fetcher:    cfg.Fetcher,
		balances:   cfg.Balances,
		ledger:     NewPaperLedger(quote, start),
		log:        NewRing[string](LogCapacity),
		equity:     NewRing[domain.EquitySample](EquityCapacity),
		marks:      make(map[string]float64),
	}
}

// appendLog must be called with mu held.
func (m *Mode) appendLog(at time.Time, msg string) {
	m.log.Push(fmt.Sprintf("[%s] %s - %s", at.UTC().Format(time.RFC3339), m.name, msg))
}

// state must be called with mu held.
func (m *Mode) state() string {
	if m.running {
		return StateRunning
	}
	if m.done == nil {
		return StateIdle
	}
	select {
	case <-m.done:
		return StateIdle
	default:
		return StateStopping
	}
}

func (m *Mode) status() ModeStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.state()
	return ModeStatus{Running: st != StateIdle, State: st, Recent: m.log.Recent(recentLogLines)}
}
