// Package api 面板的 HTTP 接口：gin 路由、统一响应格式、错误到状态码的映射、websocket 推送。
package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/newplayman/bingx-dashboard/internal/auth"
	"github.com/newplayman/bingx-dashboard/internal/dashboard"
	gateway "github.com/newplayman/bingx-dashboard/internal/exchange"
	"github.com/newplayman/bingx-dashboard/internal/metrics"
	"github.com/newplayman/bingx-dashboard/internal/watchdog"
)

// Dashboard 路由依赖的面板服务，*dashboard.Service 实现了它
type Dashboard interface {
	Overview(ctx context.Context) (dashboard.Overview, error)
	Balance(ctx context.Context) (gateway.Balance, error)
	Positions(ctx context.Context, symbol string) ([]dashboard.PositionView, error)
	OpenOrders(ctx context.Context, symbol string) ([]gateway.Order, error)
	OrderHistory(ctx context.Context, q gateway.HistoryQuery) ([]gateway.Order, error)
	Income(ctx context.Context, q gateway.HistoryQuery) ([]gateway.IncomeRecord, error)
	PnLSeries(ctx context.Context, days int) ([]dashboard.PnLPoint, error)
	Ticker(ctx context.Context, symbol string) (gateway.Ticker, error)
	Tickers(ctx context.Context) ([]gateway.Ticker, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]gateway.Kline, error)
	Contracts(ctx context.Context) ([]gateway.Contract, error)
	Snapshots(ctx context.Context, limit int) ([]dashboard.Snapshot, error)
	Watchlist(ctx context.Context) ([]string, error)
	SetWatchlist(ctx context.Context, symbols []string) ([]string, error)
	PlaceOrder(ctx context.Context, r gateway.OrderRequest) (gateway.OrderResult, error)
	CancelOrder(ctx context.Context, symbol, orderID string) (gateway.OrderResult, error)
	CancelAll(ctx context.Context, symbol string) (gateway.BatchResult, error)
	ClosePosition(ctx context.Context, symbol string) (gateway.BatchResult, error)
	CloseAll(ctx context.Context) (gateway.BatchResult, error)
	Leverage(ctx context.Context, symbol string) (gateway.Leverage, error)
	SetLeverage(ctx context.Context, symbol, side string, leverage int) error
}

// HealthReporter 交易所连通性，/healthz 使用
type HealthReporter interface {
	Status() watchdog.Status
}

// Config HTTP 服务参数
type Config struct {
	CORSOrigins  []string
	StaticDir    string        // 为空则不挂静态页面
	OverviewPush time.Duration // websocket 推送间隔
	Release      bool
	Health       HealthReporter // 可为 nil
}

// Server 面板 HTTP 服务
type Server struct {
	router *gin.Engine
	svc    Dashboard
	auth   *auth.Manager // nil 表示不鉴权
	cfg    Config

	upgrader websocket.Upgrader
	pongWait time.Duration
}

// NewServer 创建服务并注册路由。authMgr 为 nil 时 /api 不鉴权。
func NewServer(cfg Config, svc Dashboard, authMgr *auth.Manager) *Server {
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.OverviewPush <= 0 {
		cfg.OverviewPush = 5 * time.Second
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:   router,
		svc:      svc,
		auth:     authMgr,
		cfg:      cfg,
		upgrader: newUpgrader(cfg.CORSOrigins),
		pongWait: wsPongWait,
	}
	s.setupRoutes()
	return s
}

// Handler 返回 http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealthz)

	api := s.router.Group("/api")
	api.POST("/auth/login", s.handleLogin)

	protected := api.Group("")
	if s.auth != nil {
		protected.Use(auth.Middleware(s.auth))
	}
	{
		protected.GET("/overview", s.handleOverview)
		protected.GET("/balance", s.handleBalance)
		protected.GET("/positions", s.handlePositions)
		protected.GET("/orders/open", s.handleOpenOrders)
		protected.GET("/orders/history", s.handleOrderHistory)
		protected.GET("/income", s.handleIncome)
		protected.GET("/pnl", s.handlePnL)
		protected.GET("/ticker/:symbol", s.handleTicker)
		protected.GET("/tickers", s.handleTickers)
		protected.GET("/klines/:symbol", s.handleKlines)
		protected.GET("/contracts", s.handleContracts)
		protected.GET("/snapshots", s.handleSnapshots)
		protected.GET("/watchlist", s.handleGetWatchlist)
		protected.PUT("/watchlist", s.handleSetWatchlist)
		protected.GET("/leverage/:symbol", s.handleGetLeverage)

		protected.POST("/orders", s.handlePlaceOrder)
		protected.POST("/orders/cancel", s.handleCancelOrder)
		protected.POST("/orders/cancel-all", s.handleCancelAll)
		protected.POST("/positions/close", s.handleClosePosition)
		protected.POST("/positions/close-all", s.handleCloseAll)
		protected.POST("/leverage", s.handleSetLeverage)
	}

	ws := s.router.Group("/ws")
	if s.auth != nil {
		ws.Use(auth.Middleware(s.auth))
	}
	ws.GET("/overview", s.handleOverviewWS)

	if s.cfg.StaticDir != "" {
		if st, err := os.Stat(s.cfg.StaticDir); err == nil && st.IsDir() {
			s.router.NoRoute(gin.WrapH(http.FileServer(http.Dir(s.cfg.StaticDir))))
		} else {
			log.Warn().Str("dir", s.cfg.StaticDir).Msg("静态目录不存在，跳过")
		}
	}
}

// handleHealthz 进程存活即返回 200；交易所不可达时 status 为 degraded
func (s *Server) handleHealthz(c *gin.Context) {
	if s.cfg.Health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	st := s.cfg.Health.Status()
	status := "ok"
	if !st.Healthy {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "exchange": st})
}

// requestLogger zerolog 请求日志 + HTTP 指标
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		metrics.RecordHTTPRequest(c.FullPath(), status, latency)

		evt := log.Debug()
		if status >= http.StatusInternalServerError {
			evt = log.Warn()
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Msg("http")
	}
}

func successResponse(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// badRequest 请求本身的参数问题，不经过交易所
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"kind":    gateway.KindInvalidParams,
			"message": msg,
		},
	})
}

// errorResponse 按错误种类映射状态码，交易所 code/msg 原样带出
func errorResponse(c *gin.Context, err error) {
	kind := gateway.ErrorKind(err)
	code := gateway.ErrorCode(err)
	status := statusFor(kind, code, err)

	body := gin.H{
		"kind":    kind,
		"message": err.Error(),
	}
	if code != 0 {
		body["code"] = code
	}
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		body["message"] = apiErr.Msg
	}

	if status >= http.StatusInternalServerError {
		log.Warn().Err(err).Str("kind", kind).Str("path", c.Request.URL.Path).Msg("请求失败")
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   body,
	})
}

func statusFor(kind string, code int, err error) int {
	switch kind {
	case gateway.KindConfiguration:
		return http.StatusServiceUnavailable
	case gateway.KindInvalidParams:
		return http.StatusBadRequest
	case gateway.KindTransport:
		return http.StatusGatewayTimeout
	case gateway.KindProtocol:
		if gateway.Classify(code) == gateway.ErrorTypeRateLimit {
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	case gateway.KindParse:
		return http.StatusBadGateway
	case gateway.KindApplication:
		switch gateway.Classify(code) {
		case gateway.ErrorTypeAuth:
			return http.StatusUnauthorized
		case gateway.ErrorTypeRateLimit:
			return http.StatusTooManyRequests
		}
		return http.StatusBadRequest
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
