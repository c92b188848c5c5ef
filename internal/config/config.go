package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ExchangeConfig struct {
	Name         string `yaml:"name"`
	APIKey       string `yaml:"api_key"`
	APISecret    string `yaml:"api_secret"`
	RESTEndpoint string `yaml:"rest_endpoint"`
}

type ModeConfig struct {
	Name            string   `yaml:"name"`
	Exchange        string   `yaml:"exchange"`
	Symbols         []string `yaml:"symbols"`
	QuoteAsset      string   `yaml:"quote_asset"`
	StartingBalance float64  `yaml:"starting_balance"`
}

type EngineConfig struct {
	IntervalMs     int                `yaml:"interval_ms"`
	CandleLimit    int                `yaml:"candle_limit"`
	OpenConfidence int                `yaml:"open_confidence"`
	Timeframes     []string           `yaml:"timeframes"`
	Weights        map[string]float64 `yaml:"weights"`
	Higher         []string           `yaml:"higher_timeframes"`
	Demo           *bool              `yaml:"demo"`
	Autostart      []string           `yaml:"autostart"`
	Modes          []ModeConfig       `yaml:"modes"`
}

func (e EngineConfig) Interval() time.Duration {
	return time.Duration(e.IntervalMs) * time.Millisecond
}

// IsDemo reports whether live balance reads are disabled. Unset means demo.
func (e EngineConfig) IsDemo() bool {
	return e.Demo == nil || *e.Demo
}

type RiskConfig struct {
	RiskPct float64 `yaml:"risk_pct"`
	MaxOpen int     `yaml:"max_open"`
}

type Config struct {
	Exchanges []ExchangeConfig `yaml:"exchanges"`
	Engine    EngineConfig     `yaml:"engine"`
	Risk      RiskConfig       `yaml:"risk"`
	Logging   struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Server struct {
		Port          int    `yaml:"port"`
		WebhookSecret string `yaml:"webhook_secret"`
	} `yaml:"server"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
}

// Load reads an optional .env file, decodes the YAML at path and applies
// environment overrides and defaults. A missing YAML file yields defaults.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Exchange returns the named exchange block, creating it if absent.
func (c *Config) Exchange(name string) *ExchangeConfig {
	for i := range c.Exchanges {
		if strings.EqualFold(c.Exchanges[i].Name, name) {
			return &c.Exchanges[i]
		}
	}
	c.Exchanges = append(c.Exchanges, ExchangeConfig{Name: strings.ToLower(name)})
	return &c.Exchanges[len(c.Exchanges)-1]
}

// Mode returns the named mode block, creating it if absent.
func (c *Config) Mode(name string) *ModeConfig {
	for i := range c.Engine.Modes {
		if strings.EqualFold(c.Engine.Modes[i].Name, name) {
			return &c.Engine.Modes[i]
		}
	}
	c.Engine.Modes = append(c.Engine.Modes, ModeConfig{Name: strings.ToUpper(name)})
	return &c.Engine.Modes[len(c.Engine.Modes)-1]
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}

	str("BYBIT_API_KEY", &c.Exchange("bybit").APIKey)
	str("BYBIT_API_SECRET", &c.Exchange("bybit").APISecret)
	str("BINANCE_API_KEY", &c.Exchange("binance").APIKey)
	str("BINANCE_API_SECRET", &c.Exchange("binance").APISecret)
	str("WEBHOOK_SECRET", &c.Server.WebhookSecret)
	list("TIMEFRAMES", &c.Engine.Timeframes)

	if v, ok := lookup("ALL_SYMBOLS"); ok && v != "" {
		c.Mode("ALL").Symbols = splitList(v)
	}
	if v, ok := lookup("CHALLENGE_SYMBOLS"); ok && v != "" {
		c.Mode("CHALLENGE").Symbols = splitList(v)
	}

	if v, ok := lookup("DEMO"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DEMO: %w", err)
		}
		c.Engine.Demo = &b
	}
	if v, ok := lookup("RISK_PCT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RISK_PCT: %w", err)
		}
		c.Risk.RiskPct = f
	}
	if v, ok := lookup("MAX_OPEN"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_OPEN: %w", err)
		}
		c.Risk.MaxOpen = n
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "engine.db"
	}
	if c.Engine.IntervalMs <= 0 {
		c.Engine.IntervalMs = 10_000
	}
	if c.Engine.CandleLimit <= 0 {
		c.Engine.CandleLimit = 200
	}
	if c.Engine.OpenConfidence <= 0 {
		c.Engine.OpenConfidence = 60
	}
	if len(c.Engine.Timeframes) == 0 {
		c.Engine.Timeframes = []string{"1m", "5m", "15m", "1h"}
	}
	if c.Risk.RiskPct <= 0 {
		c.Risk.RiskPct = 0.5
	}
	if c.Risk.MaxOpen <= 0 {
		c.Risk.MaxOpen = 3
	}

	all := c.Mode("ALL")
	if all.Exchange == "" {
		all.Exchange = "binance"
	}
	if len(all.Symbols) == 0 {
		all.Symbols = []string{"BTCUSDT", "ETHUSDT"}
	}
	challenge := c.Mode("CHALLENGE")
	if challenge.Exchange == "" {
		challenge.Exchange = "bybit"
	}
	if len(challenge.Symbols) == 0 {
		challenge.Symbols = []string{"BTCUSDT"}
	}
	for i := range c.Engine.Modes {
		m := &c.Engine.Modes[i]
		m.Name = strings.ToUpper(m.Name)
		if m.QuoteAsset == "" {
			m.QuoteAsset = "USDT"
		}
		if m.StartingBalance <= 0 {
			m.StartingBalance = 1000
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
