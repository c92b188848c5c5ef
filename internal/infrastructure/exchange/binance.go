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

	"github.com/vitos/smc_engine/internal/domain"
)

const (
	BinanceBaseURL = "https://api.binance.com"

	binanceRecvWindow = 5000
)

// BinanceAdapter reads spot klines and the spot account.
type BinanceAdapter struct {
	apiKey    string
	apiSecret string
	baseURL   string
	client    *http.Client
	now       func() time.Time
}

func NewBinanceAdapter(apiKey, apiSecret, baseURL string) *BinanceAdapter {
	if baseURL == "" {
		baseURL = BinanceBaseURL
	}
	return &BinanceAdapter{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 10 * time.Second},
		now:       time.Now,
	}
}

func (b *BinanceAdapter) sign(query string) string {
	h := hmac.New(sha256.New, []byte(b.apiSecret))
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

func (b *BinanceAdapter) get(ctx context.Context, path, query string, signed bool) ([]byte, error) {
	endpoint := b.baseURL + path + "?" + query
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("binance %s: read body: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance %s: http %d: %s", path, resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

// GetCandles returns up to limit spot klines, oldest first. Binance accepts
// the engine's timeframe labels as they are.
func (b *BinanceAdapter) GetCandles(ctx context.Context, symbol, timeframe string, limit int) (domain.Series, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", timeframe)
	q.Set("limit", strconv.Itoa(limit))

	body, err := b.get(ctx, "/api/v3/klines", q.Encode(), false)
	if err != nil {
		return nil, err
	}

	var raw [][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("binance klines: decode: %w", err)
	}

	candles := make(domain.Series, 0, len(raw))
	for _, k := range raw {
		// [openTime, open, high, low, close, volume, closeTime, ...]
		if len(k) < 6 {
			continue
		}
		var ts int64
		if err := json.Unmarshal(k[0], &ts); err != nil {
			continue
		}
		candles = append(candles, domain.Candle{
			Time:   ts,
			Open:   rawFloat(k[1]),
			High:   rawFloat(k[2]),
			Low:    rawFloat(k[3]),
			Close:  rawFloat(k[4]),
			Volume: rawFloat(k[5]),
		})
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
	return candles, nil
}

// GetBalances returns the non-zero free balances of the spot account.
func (b *BinanceAdapter) GetBalances(ctx context.Context) ([]domain.Balance, error) {
	if b.apiKey == "" || b.apiSecret == "" {
		return nil, fmt.Errorf("binance: %w", domain.ErrCredentialsMissing)
	}

	query := fmt.Sprintf("timestamp=%d&recvWindow=%d", b.now().UnixMilli(), binanceRecvWindow)
	query += "&signature=" + b.sign(query)

	body, err := b.get(ctx, "/api/v3/account", query, true)
	if err != nil {
		return nil, err
	}

	var account struct {
		Balances []struct {
			Asset string `json:"asset"`
			Free  string `json:"free"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("binance account: decode: %w", err)
	}

	balances := []domain.Balance{}
	for _, bal := range account.Balances {
		free := parseFloat(bal.Free)
		if free > 0 {
			balances = append(balances, domain.Balance{Asset: bal.Asset, Free: free})
		}
	}
	return balances, nil
}

// rawFloat accepts both quoted ("1.5") and bare (1.5) numbers.
func rawFloat(m json.RawMessage) float64 {
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		return parseFloat(s)
	}
	var f float64
	_ = json.Unmarshal(m, &f)
	return f
}
