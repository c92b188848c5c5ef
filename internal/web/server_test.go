package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/smc_engine/internal/domain"
	"github.com/vitos/smc_engine/internal/usecase"
	"go.uber.org/zap"
)

type flatFetcher struct{}

func (flatFetcher) GetCandles(ctx context.Context, symbol, timeframe string, limit int) (domain.Series, error) {
	s := make(domain.Series, 40)
	for i := range s {
		s[i] = domain.Candle{Time: int64(i) * 60_000, Open: 100, High: 101, Low: 99, Close: 100}
	}
	return s, nil
}

type response struct {
	OK      bool            `json:"ok"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

func newTestServer(t *testing.T, opts Options) (*Server, *usecase.EngineService) {
	t.Helper()
	modes := []usecase.ModeConfig{
		{Name: "ALL", Symbols: []string{"BTCUSDT"}, Timeframes: []string{"1m"}, Fetcher: flatFetcher{}},
		{Name: "CHALLENGE", Symbols: []string{"BTCUSDT"}, Timeframes: []string{"1m"}, Fetcher: flatFetcher{}},
	}
	engine := usecase.NewEngineService(usecase.EngineConfig{Demo: true, Interval: time.Hour}, modes, nil, zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = engine.Shutdown(ctx)
	})
	return NewServer(opts, engine, zap.NewNop()), engine
}

func do(t *testing.T, s *Server, method, target string, body []byte) (int, response) {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func TestServer_Root(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	code, resp := do(t, s, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.OK)
	assert.Contains(t, string(resp.Data), `"name":"smc-engine"`)
}

func TestServer_StartStop(t *testing.T) {
	s, engine := newTestServer(t, Options{})

	code, resp := do(t, s, http.MethodPost, "/start/all", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"started":true,"mode":"ALL"}`, string(resp.Data))

	_, resp = do(t, s, http.MethodPost, "/start/ALL", nil)
	assert.JSONEq(t, `{"started":false,"mode":"ALL"}`, string(resp.Data))
	assert.True(t, engine.Modes()["ALL"].Running)

	_, resp = do(t, s, http.MethodPost, "/stop/ALL", nil)
	assert.JSONEq(t, `{"stopped":true,"mode":"ALL"}`, string(resp.Data))
	_, resp = do(t, s, http.MethodPost, "/stop/ALL", nil)
	assert.JSONEq(t, `{"stopped":false,"mode":"ALL"}`, string(resp.Data))
}

func TestServer_UnknownMode(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	for _, tc := range []struct{ method, target, code string }{
		{http.MethodPost, "/start/FOO", "START"},
		{http.MethodPost, "/stop/FOO", "STOP"},
		{http.MethodGet, "/api/v3/account?mode=foo", "ACCOUNT"},
		{http.MethodGet, "/pnl?mode=foo", "PNL"},
	} {
		status, resp := do(t, s, tc.method, tc.target, nil)
		assert.Equal(t, http.StatusNotFound, status, tc.target)
		assert.False(t, resp.OK)
		assert.Equal(t, tc.code, resp.Code)
		assert.Equal(t, domain.ErrInvalidMode.Error(), resp.Message)
	}
}

func TestServer_StatusAccountPnL(t *testing.T) {
	s, engine := newTestServer(t, Options{})
	require.NoError(t, engine.Tick(context.Background(), "ALL"))

	_, resp := do(t, s, http.MethodGet, "/status", nil)
	var status usecase.EngineStatus
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.True(t, status.Demo)
	assert.Contains(t, status.Modes, "ALL")
	assert.Contains(t, status.Modes, "CHALLENGE")
	assert.False(t, status.Modes["ALL"].Running)
	assert.NotEmpty(t, status.Modes["ALL"].Recent)

	_, resp = do(t, s, http.MethodGet, "/api/v3/account", nil)
	var acc domain.Account
	require.NoError(t, json.Unmarshal(resp.Data, &acc))
	assert.Equal(t, []domain.Balance{{Asset: "USDT", Free: 1000}}, acc.Balances)
	assert.Empty(t, acc.Positions)

	_, resp = do(t, s, http.MethodGet, "/pnl?mode=all", nil)
	var samples []domain.EquitySample
	require.NoError(t, json.Unmarshal(resp.Data, &samples))
	require.Len(t, samples, 1)
	assert.Equal(t, 1000.0, samples[0].Equity)

	_, resp = do(t, s, http.MethodGet, "/api/trades?mode=all", nil)
	assert.True(t, resp.OK)
	assert.JSONEq(t, `[]`, string(resp.Data))
}

func TestServer_Webhook(t *testing.T) {
	s, engine := newTestServer(t, Options{WebhookSecret: "s3cret"})

	code, resp := do(t, s, http.MethodPost, "/webhook", []byte(`{"secret":"nope","plan":"ALL","signal":"KARNA","side":"long"}`))
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", resp.Code)
	assert.Equal(t, "bad_secret", resp.Message)

	code, _ = do(t, s, http.MethodPost, "/webhook", []byte(`{"plan":"ALL"}`))
	assert.Equal(t, http.StatusForbidden, code)

	code, resp = do(t, s, http.MethodPost, "/webhook", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "bad_payload", resp.Message)

	code, resp = do(t, s, http.MethodPost, "/webhook", []byte(`{"secret":"s3cret","plan":"ALL","signal":"KARNA","side":"long","confidence":64,"atrPct":1.2}`))
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"accepted":true}`, string(resp.Data))

	recent := engine.Modes()["ALL"].Recent
	require.Len(t, recent, 1)
	assert.True(t, strings.HasSuffix(recent[0], "webhook: KARNA long"))

	_, resp = do(t, s, http.MethodGet, "/api/telemetry", nil)
	var sum usecase.TelemetrySummary
	require.NoError(t, json.Unmarshal(resp.Data, &sum))
	assert.Equal(t, 1, sum.Total)
	require.NotNil(t, sum.Plans["ALL"].Confidence.Avg)
	assert.Equal(t, 64.0, *sum.Plans["ALL"].Confidence.Avg)

	_, resp = do(t, s, http.MethodGet, "/api/webhooks", nil)
	assert.JSONEq(t, `[]`, string(resp.Data), "no journal configured")
}

func TestServer_WebhookWithoutSecret(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	code, _ := do(t, s, http.MethodPost, "/webhook", []byte(`{"plan":"CHALLENGE","signal":"x","side":"short"}`))
	assert.Equal(t, http.StatusOK, code)
}

func TestServer_Plan(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	_, resp := do(t, s, http.MethodGet, "/api/plan?start=100&dailyTarget=0.2&days=2", nil)
	var rows []usecase.PlanRow
	require.NoError(t, json.Unmarshal(resp.Data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, 144.0, rows[1].TargetEquity)

	_, resp = do(t, s, http.MethodGet, "/api/plan", nil)
	require.NoError(t, json.Unmarshal(resp.Data, &rows))
	assert.Len(t, rows, usecase.DefaultPlanDays)

	code, resp := do(t, s, http.MethodGet, "/api/plan?start=-1", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "PLAN", resp.Code)
}

func TestServer_RateLimit(t *testing.T) {
	s, _ := newTestServer(t, Options{RatePerMinute: 2})
	for i := 0; i < 2; i++ {
		code, _ := do(t, s, http.MethodGet, "/status", nil)
		assert.Equal(t, http.StatusOK, code)
	}
	code, resp := do(t, s, http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "RATE_LIMIT", resp.Code)
}

func TestServer_WebsocketPushesStatus(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	s.pushInterval = 20 * time.Millisecond
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 2; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg response
		require.NoError(t, conn.ReadJSON(&msg))
		assert.True(t, msg.OK)
		var status usecase.EngineStatus
		require.NoError(t, json.Unmarshal(msg.Data, &status))
		assert.Contains(t, status.Modes, "ALL")
	}
}
