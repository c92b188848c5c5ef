package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vitos/smc_engine/internal/usecase"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultRatePerMinute = 120
	statusPushInterval   = 2 * time.Second
)

type Options struct {
	Port          int
	WebhookSecret string
	RatePerMinute int
}

type Server struct {
	router        *http.ServeMux
	server        *http.Server
	engine        *usecase.EngineService
	webhookSecret string
	limiter       *rate.Limiter
	upgrader      websocket.Upgrader
	pushInterval  time.Duration
	logger        *zap.Logger
}

func NewServer(opts Options, engine *usecase.EngineService, logger *zap.Logger) *Server {
	perMinute := opts.RatePerMinute
	if perMinute <= 0 {
		perMinute = defaultRatePerMinute
	}
	s := &Server{
		router:        http.NewServeMux(),
		engine:        engine,
		webhookSecret: opts.WebhookSecret,
		limiter:       rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pushInterval: statusPushInterval,
		logger:       logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /{$}", s.handleRoot)

	// Engine control
	s.router.HandleFunc("GET /status", s.handleStatus)
	s.router.HandleFunc("POST /start/{mode}", s.handleStart)
	s.router.HandleFunc("POST /stop/{mode}", s.handleStop)

	// Accounts and equity
	s.router.HandleFunc("GET /api/v3/account", s.handleAccount)
	s.router.HandleFunc("GET /pnl", s.handlePnL)
	s.router.HandleFunc("GET /api/trades", s.handleTrades)

	// Webhooks
	s.router.HandleFunc("POST /webhook", s.handleWebhook)
	s.router.HandleFunc("GET /api/webhooks", s.handleWebhooks)
	s.router.HandleFunc("GET /api/telemetry", s.handleTelemetry)

	// Planning
	s.router.HandleFunc("GET /api/plan", s.handlePlan)

	// Live status stream
	s.router.HandleFunc("GET /ws", s.handleWS)
}

// Handler is the router wrapped in request logging and rate limiting.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.rateLimit(s.router))
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
