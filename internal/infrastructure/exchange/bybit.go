package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vitos/smc_engine/internal/domain"
)

const (
	BybitBaseURL = "https://api.bybit.com"

	bybitRecvWindow = 5000
)

// bybitIntervals maps engine timeframes to v5 kline intervals.
var bybitIntervals = map[string]string{
	"1m":  "1",
	"3m":  "3",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"2h":  "120",
	"4h":  "240",
	"6h":  "360",
	"12h": "720",
	"1d":  "D",
	"1w":  "W",
}

// BybitAdapter reads linear klines and the UNIFIED wallet over the v5 REST API.
type BybitAdapter struct {
	apiKey      string
	apiSecret   string
	baseURL     string
	accountType string
	client      *http.Client
	now         func() time.Time
}

func NewBybitAdapter(apiKey, apiSecret, baseURL string) *BybitAdapter {
	if baseURL == "" {
		baseURL = BybitBaseURL
	}
	return &BybitAdapter{
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		baseURL:     strings.TrimRight(baseURL, "/"),
		accountType: "UNIFIED",
		client:      &http.Client{Timeout: 10 * time.Second},
		now:         time.Now,
	}
}

// BybitInterval converts a timeframe label to Bybit's interval code.
func BybitInterval(tf string) (string, bool) {
	iv, ok := bybitIntervals[strings.ToLower(tf)]
	return iv, ok
}

func (b *BybitAdapter) sign(params string, timestamp int64) string {
	// timestamp + apiKey + recvWindow + params
	toSign := fmt.Sprintf("%d%s%d%s", timestamp, b.apiKey, bybitRecvWindow, params)
	h := hmac.New(sha256.New, []byte(b.apiSecret))
	h.Write([]byte(toSign))
	return hex.EncodeToString(h.Sum(nil))
}

// sendRequest issues a GET; signed requests carry the v5 auth headers.
func (b *BybitAdapter) sendRequest(ctx context.Context, path string, query url.Values, signed bool) ([]byte, error) {
	qs := query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path+"?"+qs, nil)
	if err != nil {
		return nil, err
	}

	if signed {
		timestamp := b.now().UnixMilli()
		req.Header.Set("X-BAPI-API-KEY", b.apiKey)
		req.Header.Set("X-BAPI-TIMESTAMP", strconv.FormatInt(timestamp, 10))
		req.Header.Set("X-BAPI-SIGN", b.sign(qs, timestamp))
		req.Header.Set("X-BAPI-RECV-WINDOW", strconv.Itoa(bybitRecvWindow))
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bybit %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bybit %s: read body: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("bybit %s: http %d: %s", path, resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

// GetCandles returns up to limit linear klines, oldest first.
func (b *BybitAdapter) GetCandles(ctx context.Context, symbol, timeframe string, limit int) (domain.Series, error) {
	interval, ok := BybitInterval(timeframe)
	if !ok {
		return nil, fmt.Errorf("bybit: unsupported timeframe %q", timeframe)
	}

	q := url.Values{}
	q.Set("category", "linear")
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	body, err := b.sendRequest(ctx, "/v5/market/kline", q, false)
	if err != nil {
		return nil, err
	}

	var result struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List [][]string `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("bybit kline: decode: %w", err)
	}
	if result.RetCode != 0 {
		return nil, fmt.Errorf("bybit kline: retCode %d: %s", result.RetCode, result.RetMsg)
	}

	candles := make(domain.Series, 0, len(result.Result.List))
	for _, raw := range result.Result.List {
		// [startTime, open, high, low, close, volume, turnover]
		if len(raw) < 6 {
			continue
		}
		ts, err := strconv.ParseInt(raw[0], 10, 64)
		if err != nil {
			continue
		}
		candles = append(candles, domain.Candle{
			Time:   ts,
			Open:   parseFloat(raw[1]),
			High:   parseFloat(raw[2]),
			Low:    parseFloat(raw[3]),
			Close:  parseFloat(raw[4]),
			Volume: parseFloat(raw[5]),
		})
	}

	// Bybit lists newest first
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
	return candles, nil
}

// GetBalances reads the USDT coin of the unified wallet.
func (b *BybitAdapter) GetBalances(ctx context.Context) ([]domain.Balance, error) {
	if b.apiKey == "" || b.apiSecret == "" {
		return nil, fmt.Errorf("bybit: %w", domain.ErrCredentialsMissing)
	}

	q := url.Values{}
	q.Set("accountType", b.accountType)
	q.Set("coin", "USDT")

	body, err := b.sendRequest(ctx, "/v5/account/wallet-balance", q, true)
	if err != nil {
		return nil, err
	}

	var result struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List []struct {
				Coin []struct {
					Coin                string `json:"coin"`
					Equity              string `json:"equity"`
					AvailableToWithdraw string `json:"availableToWithdraw"`
				} `json:"coin"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("bybit wallet: decode: %w", err)
	}
	if result.RetCode != 0 {
		return nil, fmt.Errorf("bybit wallet: retCode %d: %s", result.RetCode, result.RetMsg)
	}

	balances := []domain.Balance{}
	if len(result.Result.List) == 0 {
		return balances, nil
	}
	for _, c := range result.Result.List[0].Coin {
		free := c.AvailableToWithdraw
		if free == "" {
			free = c.Equity
		}
		balances = append(balances, domain.Balance{Asset: c.Coin, Free: parseFloat(free)})
	}
	return balances, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
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
