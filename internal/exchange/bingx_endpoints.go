package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ServerTime 服务器时间（毫秒），不需要签名
func (c *BingXRESTClient) ServerTime(ctx context.Context) (int64, error) {
	var out struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := c.call(ctx, EndpointServerTime, nil, &out); err != nil {
		return 0, err
	}
	return out.ServerTime, nil
}

// Balance 查询合约账户资产
func (c *BingXRESTClient) Balance(ctx context.Context) (Balance, error) {
	var out struct {
		Balance Balance `json:"balance"`
	}
	if err := c.call(ctx, EndpointBalance, nil, &out); err != nil {
		return Balance{}, err
	}
	return out.Balance, nil
}

// Positions 查询持仓，symbol 为空时返回全部
func (c *BingXRESTClient) Positions(ctx context.Context, symbol string) ([]Position, error) {
	params := Params{}
	if symbol != "" {
		params["symbol"] = strings.ToUpper(symbol)
	}
	var out []Position
	if err := c.call(ctx, EndpointPositions, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// OpenOrders 当前挂单
func (c *BingXRESTClient) OpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	params := Params{}
	if symbol != "" {
		params["symbol"] = strings.ToUpper(symbol)
	}
	var out struct {
		Orders []Order `json:"orders"`
	}
	if err := c.call(ctx, EndpointOpenOrders, params, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

// HistoryQuery 历史委托/流水的查询条件，零值字段不发送
type HistoryQuery struct {
	Symbol     string
	IncomeType string
	StartTime  int64
	EndTime    int64
	Limit      int
}

func (q HistoryQuery) params() Params {
	params := Params{}
	if q.Symbol != "" {
		params["symbol"] = strings.ToUpper(q.Symbol)
	}
	if q.IncomeType != "" {
		params["incomeType"] = q.IncomeType
	}
	if q.StartTime > 0 {
		params["startTime"] = q.StartTime
	}
	if q.EndTime > 0 {
		params["endTime"] = q.EndTime
	}
	if q.Limit > 0 {
		params["limit"] = q.Limit
	}
	return params
}

// OrderHistory 历史委托，BingX 要求带 symbol
func (c *BingXRESTClient) OrderHistory(ctx context.Context, q HistoryQuery) ([]Order, error) {
	if q.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol required", ErrInvalidParams)
	}
	var out struct {
		Orders []Order `json:"orders"`
	}
	if err := c.call(ctx, EndpointAllOrders, q.params(), &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

// Income 资金流水（已实现盈亏、资金费、手续费……）
func (c *BingXRESTClient) Income(ctx context.Context, q HistoryQuery) ([]IncomeRecord, error) {
	var out []IncomeRecord
	if err := c.call(ctx, EndpointIncome, q.params(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate 检查下单参数
func (r OrderRequest) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("%w: symbol required", ErrInvalidParams)
	}
	switch strings.ToUpper(r.Side) {
	case SideBuy, SideSell:
	default:
		return fmt.Errorf("%w: unsupported side %q", ErrInvalidParams, r.Side)
	}
	switch strings.ToUpper(r.PositionSide) {
	case "", PositionSideLong, PositionSideShort, PositionSideBoth:
	default:
		return fmt.Errorf("%w: unsupported positionSide %q", ErrInvalidParams, r.PositionSide)
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be > 0", ErrInvalidParams)
	}
	switch strings.ToUpper(r.Type) {
	case OrderTypeMarket:
	case OrderTypeLimit:
		if r.Price <= 0 {
			return fmt.Errorf("%w: price required for LIMIT", ErrInvalidParams)
		}
	case OrderTypeStopMarket, OrderTypeTakeProfitMarket:
		if r.StopPrice <= 0 {
			return fmt.Errorf("%w: stopPrice required for %s", ErrInvalidParams, r.Type)
		}
	default:
		return fmt.Errorf("%w: unsupported order type %q", ErrInvalidParams, r.Type)
	}
	return nil
}

// PlaceOrder 下单；未指定 clientOrderID 时生成一个 UUID
func (c *BingXRESTClient) PlaceOrder(ctx context.Context, r OrderRequest) (OrderResult, error) {
	if err := r.Validate(); err != nil {
		return OrderResult{}, err
	}
	if r.ClientOrderID == "" {
		r.ClientOrderID = uuid.NewString()
	}
	params := Params{
		"symbol":        strings.ToUpper(r.Symbol),
		"side":          strings.ToUpper(r.Side),
		"type":          strings.ToUpper(r.Type),
		"quantity":      r.Quantity,
		"clientOrderID": r.ClientOrderID,
	}
	if r.PositionSide != "" {
		params["positionSide"] = strings.ToUpper(r.PositionSide)
	}
	if r.Price > 0 {
		params["price"] = r.Price
	}
	if r.StopPrice > 0 {
		params["stopPrice"] = r.StopPrice
	}
	if r.ReduceOnly {
		params["reduceOnly"] = "true"
	}
	var out struct {
		Order OrderResult `json:"order"`
	}
	if err := c.call(ctx, EndpointPlaceOrder, params, &out); err != nil {
		return OrderResult{}, err
	}
	if out.Order.ClientOrderID == "" {
		out.Order.ClientOrderID = r.ClientOrderID
	}
	return out.Order, nil
}

// CancelOrder 撤单；纯数字按 orderId 处理，否则按 clientOrderID
func (c *BingXRESTClient) CancelOrder(ctx context.Context, symbol, orderID string) (OrderResult, error) {
	if symbol == "" || orderID == "" {
		return OrderResult{}, fmt.Errorf("%w: symbol/orderId required", ErrInvalidParams)
	}
	params := Params{"symbol": strings.ToUpper(symbol)}
	if _, err := strconv.ParseInt(orderID, 10, 64); err == nil {
		params["orderId"] = orderID
	} else {
		params["clientOrderID"] = orderID
	}
	var out struct {
		Order OrderResult `json:"order"`
	}
	if err := c.call(ctx, EndpointCancelOrder, params, &out); err != nil {
		return OrderResult{}, err
	}
	return out.Order, nil
}

// CancelAllOrders 撤销指定合约的所有挂单
func (c *BingXRESTClient) CancelAllOrders(ctx context.Context, symbol string) (BatchResult, error) {
	if symbol == "" {
		return BatchResult{}, fmt.Errorf("%w: symbol required", ErrInvalidParams)
	}
	var out BatchResult
	err := c.call(ctx, EndpointCancelAllOrders, Params{"symbol": strings.ToUpper(symbol)}, &out)
	return out, err
}

// CloseAllPositions 市价平仓；symbol 为空时平掉全部持仓
func (c *BingXRESTClient) CloseAllPositions(ctx context.Context, symbol string) (BatchResult, error) {
	params := Params{}
	if symbol != "" {
		params["symbol"] = strings.ToUpper(symbol)
	}
	var out BatchResult
	err := c.call(ctx, EndpointCloseAllPositions, params, &out)
	return out, err
}

// GetLeverage 查询杠杆
func (c *BingXRESTClient) GetLeverage(ctx context.Context, symbol string) (Leverage, error) {
	if symbol == "" {
		return Leverage{}, fmt.Errorf("%w: symbol required", ErrInvalidParams)
	}
	out := Leverage{Symbol: strings.ToUpper(symbol)}
	err := c.call(ctx, EndpointGetLeverage, Params{"symbol": out.Symbol}, &out)
	return out, err
}

// SetLeverage 调整杠杆；side 为 LONG / SHORT（单向持仓用 BOTH）
func (c *BingXRESTClient) SetLeverage(ctx context.Context, symbol, side string, leverage int) error {
	if symbol == "" || leverage <= 0 {
		return fmt.Errorf("%w: symbol and leverage > 0 required", ErrInvalidParams)
	}
	if side == "" {
		side = PositionSideLong
	}
	return c.call(ctx, EndpointSetLeverage, Params{
		"symbol":   strings.ToUpper(symbol),
		"side":     strings.ToUpper(side),
		"leverage": leverage,
	}, nil)
}

// SetMarginType 切换逐仓/全仓
func (c *BingXRESTClient) SetMarginType(ctx context.Context, symbol, marginType string) error {
	marginType = strings.ToUpper(marginType)
	if marginType != MarginTypeIsolated && marginType != MarginTypeCrossed {
		return fmt.Errorf("%w: unsupported marginType %q", ErrInvalidParams, marginType)
	}
	return c.call(ctx, EndpointSetMarginType, Params{
		"symbol":     strings.ToUpper(symbol),
		"marginType": marginType,
	}, nil)
}

// Ticker 单个合约 24h 行情
func (c *BingXRESTClient) Ticker(ctx context.Context, symbol string) (Ticker, error) {
	if symbol == "" {
		return Ticker{}, fmt.Errorf("%w: symbol required", ErrInvalidParams)
	}
	var out Ticker
	err := c.call(ctx, EndpointTicker, Params{"symbol": strings.ToUpper(symbol)}, &out)
	return out, err
}

// Klines K 线，limit <= 0 时使用交易所默认
func (c *BingXRESTClient) Klines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	if symbol == "" || interval == "" {
		return nil, fmt.Errorf("%w: symbol/interval required", ErrInvalidParams)
	}
	params := Params{"symbol": strings.ToUpper(symbol), "interval": interval}
	if limit > 0 {
		params["limit"] = limit
	}
	var out []Kline
	if err := c.call(ctx, EndpointKlines, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Contracts 合约列表
func (c *BingXRESTClient) Contracts(ctx context.Context) ([]Contract, error) {
	var out []Contract
	if err := c.call(ctx, EndpointContracts, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
