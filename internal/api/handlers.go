package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/newplayman/bingx-dashboard/internal/auth"
	gateway "github.com/newplayman/bingx-dashboard/internal/exchange"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	if s.auth == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   gin.H{"kind": "auth_disabled", "message": "authentication is not enabled"},
		})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}
	token, exp, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		log.Warn().Str("username", req.Username).Str("ip", c.ClientIP()).Msg("登录失败")
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   gin.H{"kind": "unauthorized", "message": auth.ErrInvalidCredentials.Error()},
		})
		return
	}
	successResponse(c, gin.H{
		"token":      token,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleOverview(c *gin.Context) {
	ov, err := s.svc.Overview(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, ov)
}

func (s *Server) handleBalance(c *gin.Context) {
	bal, err := s.svc.Balance(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, bal)
}

func (s *Server) handlePositions(c *gin.Context) {
	pos, err := s.svc.Positions(c.Request.Context(), c.Query("symbol"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, pos)
}

func (s *Server) handleOpenOrders(c *gin.Context) {
	orders, err := s.svc.OpenOrders(c.Request.Context(), c.Query("symbol"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, orders)
}

// historyParams 历史委托与资金流水共用的查询参数
type historyParams struct {
	Symbol    string `form:"symbol"`
	Type      string `form:"type"`
	StartTime int64  `form:"start" binding:"omitempty,min=0"`
	EndTime   int64  `form:"end" binding:"omitempty,min=0"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

func (p historyParams) query() gateway.HistoryQuery {
	return gateway.HistoryQuery{
		Symbol:     p.Symbol,
		IncomeType: p.Type,
		StartTime:  p.StartTime,
		EndTime:    p.EndTime,
		Limit:      p.Limit,
	}
}

func (s *Server) handleOrderHistory(c *gin.Context) {
	var p historyParams
	if err := c.ShouldBindQuery(&p); err != nil {
		badRequest(c, err.Error())
		return
	}
	if p.Limit == 0 {
		p.Limit = 100
	}
	orders, err := s.svc.OrderHistory(c.Request.Context(), p.query())
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, orders)
}

func (s *Server) handleIncome(c *gin.Context) {
	var p historyParams
	if err := c.ShouldBindQuery(&p); err != nil {
		badRequest(c, err.Error())
		return
	}
	recs, err := s.svc.Income(c.Request.Context(), p.query())
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, recs)
}

func (s *Server) handlePnL(c *gin.Context) {
	var p struct {
		Days int `form:"days" binding:"omitempty,min=1,max=90"`
	}
	if err := c.ShouldBindQuery(&p); err != nil {
		badRequest(c, "days must be between 1 and 90")
		return
	}
	if p.Days == 0 {
		p.Days = 7
	}
	series, err := s.svc.PnLSeries(c.Request.Context(), p.Days)
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, series)
}

func (s *Server) handleTicker(c *gin.Context) {
	t, err := s.svc.Ticker(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, t)
}

func (s *Server) handleTickers(c *gin.Context) {
	ts, err := s.svc.Tickers(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, ts)
}

func (s *Server) handleKlines(c *gin.Context) {
	var p struct {
		Interval string `form:"interval"`
		Limit    int    `form:"limit" binding:"omitempty,min=1,max=1440"`
	}
	if err := c.ShouldBindQuery(&p); err != nil {
		badRequest(c, err.Error())
		return
	}
	if p.Interval == "" {
		p.Interval = "1h"
	}
	if p.Limit == 0 {
		p.Limit = 200
	}
	ks, err := s.svc.Klines(c.Request.Context(), c.Param("symbol"), p.Interval, p.Limit)
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, ks)
}

func (s *Server) handleContracts(c *gin.Context) {
	cs, err := s.svc.Contracts(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, cs)
}

func (s *Server) handleSnapshots(c *gin.Context) {
	var p struct {
		Limit int `form:"limit" binding:"omitempty,min=1,max=10000"`
	}
	if err := c.ShouldBindQuery(&p); err != nil {
		badRequest(c, err.Error())
		return
	}
	if p.Limit == 0 {
		p.Limit = 288
	}
	snaps, err := s.svc.Snapshots(c.Request.Context(), p.Limit)
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, snaps)
}

func (s *Server) handleGetWatchlist(c *gin.Context) {
	list, err := s.svc.Watchlist(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, list)
}

func (s *Server) handleSetWatchlist(c *gin.Context) {
	var req struct {
		Symbols []string `json:"symbols" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "symbols is required")
		return
	}
	list, err := s.svc.SetWatchlist(c.Request.Context(), req.Symbols)
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, list)
}

func (s *Server) handleGetLeverage(c *gin.Context) {
	lev, err := s.svc.Leverage(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, lev)
}

type placeOrderRequest struct {
	Symbol        string  `json:"symbol" binding:"required"`
	Side          string  `json:"side" binding:"required"`
	PositionSide  string  `json:"position_side"`
	Type          string  `json:"type" binding:"required"`
	Quantity      float64 `json:"quantity" binding:"required,gt=0"`
	Price         float64 `json:"price" binding:"omitempty,gt=0"`
	StopPrice     float64 `json:"stop_price" binding:"omitempty,gt=0"`
	ReduceOnly    bool    `json:"reduce_only"`
	ClientOrderID string  `json:"client_order_id" binding:"omitempty,max=40"`
}

func (s *Server) handlePlaceOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := s.svc.PlaceOrder(c.Request.Context(), gateway.OrderRequest{
		Symbol:        req.Symbol,
		Side:          strings.ToUpper(req.Side),
		PositionSide:  strings.ToUpper(req.PositionSide),
		Type:          strings.ToUpper(req.Type),
		Quantity:      req.Quantity,
		Price:         req.Price,
		StopPrice:     req.StopPrice,
		ReduceOnly:    req.ReduceOnly,
		ClientOrderID: req.ClientOrderID,
	})
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, res)
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	var req struct {
		Symbol  string `json:"symbol" binding:"required"`
		OrderID string `json:"order_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "symbol and order_id are required")
		return
	}
	res, err := s.svc.CancelOrder(c.Request.Context(), req.Symbol, req.OrderID)
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, res)
}

type symbolRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

func (s *Server) handleCancelAll(c *gin.Context) {
	var req symbolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "symbol is required")
		return
	}
	res, err := s.svc.CancelAll(c.Request.Context(), req.Symbol)
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, res)
}

func (s *Server) handleClosePosition(c *gin.Context) {
	var req symbolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "symbol is required")
		return
	}
	res, err := s.svc.ClosePosition(c.Request.Context(), req.Symbol)
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, res)
}

func (s *Server) handleCloseAll(c *gin.Context) {
	res, err := s.svc.CloseAll(c.Request.Context())
	if err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, res)
}

func (s *Server) handleSetLeverage(c *gin.Context) {
	var req struct {
		Symbol   string `json:"symbol" binding:"required"`
		Side     string `json:"side" binding:"required,oneof=LONG SHORT BOTH long short both"`
		Leverage int    `json:"leverage" binding:"required,min=1,max=150"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	side := strings.ToUpper(req.Side)
	if err := s.svc.SetLeverage(c.Request.Context(), req.Symbol, side, req.Leverage); err != nil {
		errorResponse(c, err)
		return
	}
	successResponse(c, gin.H{"symbol": req.Symbol, "side": side, "leverage": req.Leverage})
}
