package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/vitos/smc_engine/internal/domain"
	"github.com/vitos/smc_engine/internal/strategy/smc"
	"go.uber.org/zap"
)

const (
	DefaultInterval       = 10 * time.Second
	DefaultCandleLimit    = 200
	DefaultOpenConfidence = 60

	maxLogErrLen = 120
)

// EngineConfig holds the knobs shared by every mode.
type EngineConfig struct {
	Interval       time.Duration
	CandleLimit    int
	OpenConfidence int
	Risk           RiskConfig
	Demo           bool
	Weights        map[string]float64
	Higher         []string
}

func (c *EngineConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.CandleLimit <= 0 {
		c.CandleLimit = DefaultCandleLimit
	}
	if c.OpenConfidence <= 0 {
		c.OpenConfidence = DefaultOpenConfidence
	}
	if c.Risk.RiskPct <= 0 {
		c.Risk.RiskPct = DefaultRiskPct
	}
}

// EngineStatus is the process-wide snapshot served on /status.
type EngineStatus struct {
	Modes      map[string]ModeStatus `json:"modes"`
	StartedAt  *time.Time            `json:"started_at,omitempty"`
	Demo       bool                  `json:"demo"`
	LastAction *domain.LastAction    `json:"last_action,omitempty"`
}

// EngineService runs one cooperative trading loop per mode.
type EngineService struct {
	cfg       EngineConfig
	fuser     *smc.Fuser
	modes     map[string]*Mode
	names     []string
	trades    domain.TradeRepository
	telemetry *WebhookTelemetry
	logger    *zap.Logger

	now   func() time.Time
	newID func() string

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	startedAt  time.Time
	lastAction *domain.LastAction
}

// NewEngineService builds an engine with every mode IDLE. trades may be nil,
// in which case closed positions and webhooks are not journaled.
func NewEngineService(cfg EngineConfig, modes []ModeConfig, trades domain.TradeRepository, logger *zap.Logger) *EngineService {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &EngineService{
		cfg:       cfg,
		fuser:     smc.NewFuser(cfg.Weights, cfg.Higher),
		modes:     make(map[string]*Mode, len(modes)),
		trades:    trades,
		telemetry: NewWebhookTelemetry(),
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, mc := range modes {
		m := newMode(mc)
		s.modes[m.name] = m
		s.names = append(s.names, m.name)
	}
	sort.Strings(s.names)
	return s
}

func (s *EngineService) mode(name string) (*Mode, error) {
	m, ok := s.modes[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, domain.ErrInvalidMode)
	}
	return m, nil
}

// ModeNames lists the configured modes in name order.
func (s *EngineService) ModeNames() []string {
	return append([]string(nil), s.names...)
}

func (s *EngineService) Telemetry() *WebhookTelemetry { return s.telemetry }

// Start moves an IDLE mode to RUNNING. It reports false when the mode was
// already running.
func (s *EngineService) Start(name string) (bool, error) {
	m, err := s.mode(name)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return false, nil
	}
	prev := m.done
	stop := make(chan struct{})
	done := make(chan struct{})
	m.running = true
	m.stopCh, m.done = stop, done
	now := s.now()
	m.appendLog(now, "started")
	m.mu.Unlock()

	s.mu.Lock()
	s.startedAt = now
	s.mu.Unlock()

	go s.run(m, prev, stop, done)
	s.logger.Info("Mode started", zap.String("mode", m.name), zap.Strings("symbols", m.symbols))
	return true, nil
}

// Stop asks a RUNNING mode to exit after its in-flight tick; the mode reports
// STOPPING until then. It returns false when no stop was pending.
func (s *EngineService) Stop(name string) (bool, error) {
	m, err := s.mode(name)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return false, nil
	}
	m.running = false
	close(m.stopCh)
	m.appendLog(s.now(), "stopped")
	s.logger.Info("Mode stopped", zap.String("mode", m.name))
	return true, nil
}

// Shutdown stops every mode and waits for the loops to return or ctx to end.
func (s *EngineService) Shutdown(ctx context.Context) error {
	defer s.cancel()
	var waits []chan struct{}
	for _, name := range s.names {
		if _, err := s.Stop(name); err != nil {
			return err
		}
		m := s.modes[name]
		m.mu.Lock()
		if m.done != nil {
			waits = append(waits, m.done)
		}
		m.mu.Unlock()
	}
	for _, done := range waits {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *EngineService) run(m *Mode, prev <-chan struct{}, stop <-chan struct{}, done chan struct{}) {
	defer close(done)
	// done must not close before prev does, or a later loop could overlap an
	// earlier one still inside its tick
	if prev != nil {
		select {
		case <-prev:
		case <-stop:
			<-prev
			return
		}
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		default:
		}

		_ = s.Tick(s.ctx, m.name)

		select {
		case <-ticker.C:
		case <-stop:
			s.logger.Info("Mode loop stopped", zap.String("mode", m.name))
			return
		case <-s.ctx.Done():
			return
		}
	}
}

// Tick runs one evaluation pass over every symbol of a mode. A failing
// symbol aborts the rest of the pass; the error is logged and returned.
func (s *EngineService) Tick(ctx context.Context, name string) (err error) {
	m, err := s.mode(name)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
		}
		if err != nil {
			s.logger.Error("Tick failed", zap.String("mode", m.name), zap.Error(err))
			m.mu.Lock()
			m.appendLog(s.now(), "error: "+truncate(err.Error(), maxLogErrLen))
			m.mu.Unlock()
		}
	}()

	for _, symbol := range m.symbols {
		if err := s.processSymbol(ctx, m, symbol); err != nil {
			return err
		}
	}
	return nil
}

func (s *EngineService) processSymbol(ctx context.Context, m *Mode, symbol string) error {
	if len(m.timeframes) == 0 {
		return fmt.Errorf("%s: no timeframes: %w", symbol, domain.ErrInsufficientData)
	}
	seriesByTF := make(map[string]domain.Series, len(m.timeframes))
	for _, tf := range m.timeframes {
		series, err := m.fetcher.GetCandles(ctx, symbol, tf, s.cfg.CandleLimit)
		if err != nil {
			return fmt.Errorf("fetch %s %s: %w", symbol, tf, err)
		}
		seriesByTF[tf] = series
	}

	fastest := seriesByTF[m.timeframes[0]]
	last, ok := fastest.Last()
	if !ok {
		return fmt.Errorf("%s %s: %w", symbol, m.timeframes[0], domain.ErrInsufficientData)
	}
	idea := s.fuser.TradeIdea(seriesByTF)
	closed := s.applyIdea(m, symbol, last.Close, fastest, idea)

	if closed != nil {
		s.logger.Info("Position closed",
			zap.String("mode", m.name),
			zap.String("symbol", symbol),
			zap.String("reason", string(closed.Reason)),
			zap.Float64("pnl", closed.RealizedPnL))
		if s.trades != nil {
			if err := s.trades.SaveClosedPosition(ctx, closed); err != nil {
				s.logger.Error("Failed to journal closed position", zap.String("mode", m.name), zap.Error(err))
			}
		}
	}
	return nil
}

// applyIdea settles exits before entries for one symbol at price and records
// an equity sample. It returns the position it closed, if any.
func (s *EngineService) applyIdea(m *Mode, symbol string, price float64, fastest domain.Series, idea domain.TradeIdea) *domain.ClosedPosition {
	now := s.now()
	var closed *domain.ClosedPosition
	acted := false

	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks[symbol] = price

	if pos, open := m.ledger.Position(symbol); open {
		if reason, hit := exitReason(pos, price, idea); hit {
			st, err := m.ledger.Close(symbol, price)
			if err != nil {
				m.appendLog(now, fmt.Sprintf("%s close failed: %v", symbol, err))
			} else {
				closed = &domain.ClosedPosition{
					Position:    st.Position,
					Mode:        m.name,
					ExitPrice:   st.ExitPrice,
					QuoteCost:   st.QuoteCost,
					RealizedPnL: st.RealizedPnL,
					Equity:      m.ledger.Equity(m.marks),
					Reason:      reason,
					ClosedAt:    now,
				}
				m.appendLog(now, fmt.Sprintf("%s close %s @ %.2f (%s) pnl %.2f",
					symbol, strings.ToUpper(string(pos.Side)), price, reason, st.RealizedPnL))
				s.recordAction(m.name, symbol, "CLOSE_"+strings.ToUpper(string(pos.Side)), price, now)
				acted = true
			}
		}
	}

	if _, open := m.ledger.Position(symbol); !open && idea.Accepted && idea.Confidence >= s.cfg.OpenConfidence {
		if side, ok := domain.SideFor(idea.Direction); ok {
			base := m.ledger.BaseAsset(symbol)
			size := SizePosition(m.ledger.Balance(m.ledger.QuoteAsset()), m.ledger.Balance(base), price, s.cfg.Risk)
			if size.SizeBase > 0 {
				bracket := DeriveStopTarget(fastest, side)
				pos := newPosition(s.newID(), symbol, side, size.SizeBase, price, bracket, now)
				if err := m.ledger.Open(pos); err != nil {
					m.appendLog(now, fmt.Sprintf("%s %s skipped: %v", symbol, strings.ToUpper(string(side)), err))
					acted = true
				} else {
					m.appendLog(now, fmt.Sprintf("%s %s entry @ %.2f size %.6f sl %.2f tp %.2f (conf %d)",
						symbol, strings.ToUpper(string(side)), price, size.SizeBase, bracket.StopLoss, bracket.TakeProfit, idea.Confidence))
					s.recordAction(m.name, symbol, strings.ToUpper(string(side)), price, now)
					acted = true
				}
			}
		}
	}

	if !acted {
		m.appendLog(now, fmt.Sprintf("%s hold: %s %d %s", symbol, idea.Direction, idea.Confidence, idea.Reason))
	}
	m.equity.Push(domain.EquitySample{Time: now, Equity: m.ledger.Equity(m.marks)})
	return closed
}

// exitReason decides whether an open position must close at price. Take
// profit wins over stop loss, which wins over a flip.
func exitReason(p domain.Position, price float64, idea domain.TradeIdea) (domain.CloseReason, bool) {
	var hitTP, hitSL bool
	switch p.Side {
	case domain.SideLong:
		hitTP = p.TakeProfit > 0 && price >= p.TakeProfit
		hitSL = p.StopLoss > 0 && price <= p.StopLoss
	case domain.SideShort:
		hitTP = p.TakeProfit > 0 && price <= p.TakeProfit
		hitSL = p.StopLoss > 0 && price >= p.StopLoss
	}
	switch {
	case hitTP:
		return domain.CloseTakeProfit, true
	case hitSL:
		return domain.CloseStopLoss, true
	case idea.Accepted && idea.Direction.Opposite(p.Side.Direction()):
		return domain.CloseFlip, true
	}
	return "", false
}

func (s *EngineService) recordAction(mode, symbol, side string, price float64, at time.Time) {
	s.mu.Lock()
	s.lastAction = &domain.LastAction{Mode: mode, Symbol: symbol, Side: side, Price: price, Time: at}
	s.mu.Unlock()
}

// Modes returns the running flag and the newest log lines of every mode.
func (s *EngineService) Modes() map[string]ModeStatus {
	out := make(map[string]ModeStatus, len(s.modes))
	for name, m := range s.modes {
		out[name] = m.status()
	}
	return out
}

func (s *EngineService) LastAction() *domain.LastAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastAction == nil {
		return nil
	}
	la := *s.lastAction
	return &la
}

func (s *EngineService) Status() EngineStatus {
	st := EngineStatus{Modes: s.Modes(), Demo: s.cfg.Demo, LastAction: s.LastAction()}
	s.mu.Lock()
	if !s.startedAt.IsZero() {
		t := s.startedAt
		st.StartedAt = &t
	}
	s.mu.Unlock()
	return st
}

// Account returns live exchange balances when the engine is not in demo
// mode and the mode has a provider with credentials; otherwise the paper
// ledger. Live failures fall back to paper.
func (s *EngineService) Account(ctx context.Context, name string) (domain.Account, error) {
	m, err := s.mode(name)
	if err != nil {
		return domain.Account{}, err
	}

	if !s.cfg.Demo && m.balances != nil {
		balances, err := m.balances.GetBalances(ctx)
		switch {
		case err == nil:
			return domain.Account{Balances: balances, Positions: []domain.Position{}, Live: true}, nil
		case errors.Is(err, domain.ErrCredentialsMissing):
		default:
			s.logger.Warn("Live balance read failed", zap.String("mode", m.name), zap.Error(err))
			m.mu.Lock()
			m.appendLog(s.now(), "balance error: "+truncate(err.Error(), maxLogErrLen))
			m.mu.Unlock()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Snapshot(), nil
}

// PnL returns the equity history of a mode, oldest first.
func (s *EngineService) PnL(name string) ([]domain.EquitySample, error) {
	m, err := s.mode(name)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.equity.Slice(), nil
}

// ClosedPositions reads the trade journal of a mode, newest first.
func (s *EngineService) ClosedPositions(ctx context.Context, name string, limit int) ([]*domain.ClosedPosition, error) {
	m, err := s.mode(name)
	if err != nil {
		return nil, err
	}
	if s.trades == nil {
		return []*domain.ClosedPosition{}, nil
	}
	return s.trades.ListClosedPositions(ctx, m.name, limit)
}

// WebhookEvents reads journaled webhook annotations, newest first.
func (s *EngineService) WebhookEvents(ctx context.Context, limit int) ([]*domain.WebhookEvent, error) {
	if s.trades == nil {
		return []*domain.WebhookEvent{}, nil
	}
	return s.trades.ListWebhookEvents(ctx, limit)
}

// InjectWebhook records an external annotation. It never touches a ledger.
func (s *EngineService) InjectWebhook(ctx context.Context, evt domain.WebhookEvent) {
	if evt.Time.IsZero() {
		evt.Time = s.now()
	}
	s.telemetry.Ingest(evt)

	if m := s.annotationMode(); m != nil {
		m.mu.Lock()
		m.appendLog(evt.Time, fmt.Sprintf("webhook: %s %s", evt.Signal, evt.Side))
		m.mu.Unlock()
	}

	if s.trades != nil {
		if err := s.trades.SaveWebhookEvent(ctx, &evt); err != nil {
			s.logger.Error("Failed to journal webhook", zap.Error(err))
		}
	}
}

// annotationMode is ALL when configured, else the first mode by name.
func (s *EngineService) annotationMode() *Mode {
	if m, ok := s.modes["ALL"]; ok {
		return m
	}
	if len(s.names) > 0 {
		return s.modes[s.names[0]]
	}
	return nil
}

// truncate keeps at most n bytes of s without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
