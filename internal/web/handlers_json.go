package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/vitos/smc_engine/internal/domain"
	"github.com/vitos/smc_engine/internal/usecase"
	"go.uber.org/zap"
)

const (
	defaultMode       = "ALL"
	defaultTradeLimit = 50
	maxTradeLimit     = 500
	maxWebhookBody    = 64 << 10
)

type envelope struct {
	OK      bool   `json:"ok"`
	Data    any    `json:"data,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{OK: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{OK: false, Code: code, Message: message})
}

// writeEngineError maps an unknown mode to 404 and everything else to status.
func (s *Server) writeEngineError(w http.ResponseWriter, err error, status int, code string) {
	if errors.Is(err, domain.ErrInvalidMode) {
		writeError(w, http.StatusNotFound, code, domain.ErrInvalidMode.Error())
		return
	}
	s.logger.Error("Request failed", zap.String("code", code), zap.Error(err))
	writeError(w, status, code, err.Error())
}

func modeParam(r *http.Request) string {
	if m := r.URL.Query().Get("mode"); m != "" {
		return strings.ToUpper(m)
	}
	return defaultMode
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]any{"name": "smc-engine", "modes": s.engine.ModeNames()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.engine.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	mode := strings.ToUpper(r.PathValue("mode"))
	started, err := s.engine.Start(mode)
	if err != nil {
		s.writeEngineError(w, err, http.StatusInternalServerError, "START")
		return
	}
	writeOK(w, map[string]any{"started": started, "mode": mode})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	mode := strings.ToUpper(r.PathValue("mode"))
	stopped, err := s.engine.Stop(mode)
	if err != nil {
		s.writeEngineError(w, err, http.StatusInternalServerError, "STOP")
		return
	}
	writeOK(w, map[string]any{"stopped": stopped, "mode": mode})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := s.engine.Account(r.Context(), modeParam(r))
	if err != nil {
		s.writeEngineError(w, err, http.StatusBadGateway, "ACCOUNT")
		return
	}
	writeOK(w, acc)
}

func (s *Server) handlePnL(w http.ResponseWriter, r *http.Request) {
	samples, err := s.engine.PnL(modeParam(r))
	if err != nil {
		s.writeEngineError(w, err, http.StatusInternalServerError, "PNL")
		return
	}
	writeOK(w, samples)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", defaultTradeLimit)
	if limit <= 0 || limit > maxTradeLimit {
		limit = defaultTradeLimit
	}
	trades, err := s.engine.ClosedPositions(r.Context(), modeParam(r), limit)
	if err != nil {
		s.writeEngineError(w, err, http.StatusInternalServerError, "TRADES")
		return
	}
	writeOK(w, trades)
}

type webhookRequest struct {
	Secret     string   `json:"secret"`
	Plan       string   `json:"plan"`
	Signal     string   `json:"signal"`
	Side       string   `json:"side"`
	Symbol     string   `json:"symbol"`
	Timeframe  string   `json:"timeframe"`
	Cost       *float64 `json:"cost"`
	Confidence *float64 `json:"confidence"`
	ATRPct     *float64 `json:"atrPct"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "WEBHOOK", "bad_payload")
		return
	}
	if s.webhookSecret != "" && req.Secret != s.webhookSecret {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "bad_secret")
		return
	}

	s.engine.InjectWebhook(r.Context(), domain.WebhookEvent{
		Plan:       req.Plan,
		Signal:     req.Signal,
		Side:       req.Side,
		Symbol:     req.Symbol,
		Timeframe:  req.Timeframe,
		Cost:       req.Cost,
		Confidence: req.Confidence,
		ATRPct:     req.ATRPct,
	})
	writeOK(w, map[string]bool{"accepted": true})
}

func (s *Server) handleWebhooks(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", defaultTradeLimit)
	if limit <= 0 || limit > maxTradeLimit {
		limit = defaultTradeLimit
	}
	events, err := s.engine.WebhookEvents(r.Context(), limit)
	if err != nil {
		s.writeEngineError(w, err, http.StatusInternalServerError, "WEBHOOKS")
		return
	}
	writeOK(w, events)
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	writeOK(w, s.engine.Telemetry().Summary())
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	start := floatParam(r, "start", usecase.DefaultPlanStart)
	target := floatParam(r, "dailyTarget", usecase.DefaultPlanDailyTarget)
	days := intParam(r, "days", usecase.DefaultPlanDays)
	if start <= 0 || target <= -1 || days < 0 {
		writeError(w, http.StatusBadRequest, "PLAN", "bad_params")
		return
	}
	writeOK(w, usecase.BuildCompoundingPlan(start, target, days))
}

func intParam(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatParam(r *http.Request, key string, def float64) float64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
