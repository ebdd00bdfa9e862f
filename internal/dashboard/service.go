package dashboard

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	gateway "github.com/newplayman/bingx-dashboard/internal/exchange"
	"github.com/newplayman/bingx-dashboard/internal/metrics"
	"github.com/newplayman/bingx-dashboard/internal/store"
)

// Exchange 面板用到的交易所操作，*gateway.BingXRESTClient 实现了它
type Exchange interface {
	Balance(ctx context.Context) (gateway.Balance, error)
	Positions(ctx context.Context, symbol string) ([]gateway.Position, error)
	OpenOrders(ctx context.Context, symbol string) ([]gateway.Order, error)
	OrderHistory(ctx context.Context, q gateway.HistoryQuery) ([]gateway.Order, error)
	Income(ctx context.Context, q gateway.HistoryQuery) ([]gateway.IncomeRecord, error)
	PlaceOrder(ctx context.Context, r gateway.OrderRequest) (gateway.OrderResult, error)
	CancelOrder(ctx context.Context, symbol, orderID string) (gateway.OrderResult, error)
	CancelAllOrders(ctx context.Context, symbol string) (gateway.BatchResult, error)
	CloseAllPositions(ctx context.Context, symbol string) (gateway.BatchResult, error)
	GetLeverage(ctx context.Context, symbol string) (gateway.Leverage, error)
	SetLeverage(ctx context.Context, symbol, side string, leverage int) error
	Ticker(ctx context.Context, symbol string) (gateway.Ticker, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]gateway.Kline, error)
	Contracts(ctx context.Context) ([]gateway.Contract, error)
}

// KV 命名空间
const (
	NamespaceSettings  = "settings"
	NamespaceSnapshots = "snapshots"

	keyWatchlist = "watchlist"
)

// PreTradeChecker 下单与调杠杆前的检查，*risk.RiskManager 实现了它
type PreTradeChecker interface {
	CheckPreTrade(ctx context.Context, r gateway.OrderRequest) error
	CheckLeverage(symbol string, leverage int) error
}

// Options 服务参数
type Options struct {
	Symbols           []string      // 默认关注列表
	SnapshotRetention time.Duration // 0 不清理
	Risk              PreTradeChecker
}

// Service 面板后端逻辑：转发交易所数据并整理成展示用的结构。
type Service struct {
	ex        Exchange
	kv        store.KV
	symbols   []string
	retention time.Duration
	risk      PreTradeChecker
	now       func() time.Time
}

// NewService 创建服务
func NewService(ex Exchange, kv store.KV, opts Options) *Service {
	return &Service{
		ex:        ex,
		kv:        kv,
		symbols:   normalizeSymbols(opts.Symbols),
		retention: opts.SnapshotRetention,
		risk:      opts.Risk,
		now:       time.Now,
	}
}

// PositionView 展示用的持仓
type PositionView struct {
	Symbol           string  `json:"symbol"`
	Side             string  `json:"side"` // LONG / SHORT
	Size             float64 `json:"size"`
	EntryPrice       float64 `json:"entry_price"`
	MarkPrice        float64 `json:"mark_price"`
	LiquidationPrice float64 `json:"liquidation_price"`
	Notional         float64 `json:"notional"`
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	PnLPercent       float64 `json:"pnl_percent"` // 相对初始保证金
	Leverage         float64 `json:"leverage"`
	Isolated         bool    `json:"isolated"`
}

// Overview 账户总览
type Overview struct {
	Time            int64           `json:"time"`
	Asset           string          `json:"asset"`
	Balance         float64         `json:"balance"`
	Equity          float64         `json:"equity"`
	UnrealizedPnL   float64         `json:"unrealized_pnl"`
	RealisedPnL     float64         `json:"realised_pnl"`
	AvailableMargin float64         `json:"available_margin"`
	UsedMargin      float64         `json:"used_margin"`
	MarginUsage     float64         `json:"margin_usage"` // used / equity
	LongNotional    float64         `json:"long_notional"`
	ShortNotional   float64         `json:"short_notional"`
	Positions       []PositionView  `json:"positions"`
	OpenOrders      []gateway.Order `json:"open_orders"`
}

// Overview 并发拉取资产、持仓、挂单并汇总
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	var (
		bal    gateway.Balance
		pos    []gateway.Position
		orders []gateway.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bal, err = s.ex.Balance(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		pos, err = s.ex.Positions(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		orders, err = s.ex.OpenOrders(gctx, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}

	ov := Overview{
		Time:            s.now().UnixMilli(),
		Asset:           bal.Asset,
		Balance:         bal.Balance.Float64(),
		Equity:          bal.Equity.Float64(),
		UnrealizedPnL:   bal.UnrealizedProfit.Float64(),
		RealisedPnL:     bal.RealisedProfit.Float64(),
		AvailableMargin: bal.AvailableMargin.Float64(),
		UsedMargin:      bal.UsedMargin.Float64(),
		Positions:       viewPositions(pos),
		OpenOrders:      orders,
	}
	if ov.OpenOrders == nil {
		ov.OpenOrders = []gateway.Order{}
	}
	if ov.Equity > 0 {
		ov.MarginUsage = round(ov.UsedMargin/ov.Equity, 6)
	}
	pm := make([]metrics.PositionMetric, 0, len(ov.Positions))
	for _, p := range ov.Positions {
		if p.Side == gateway.PositionSideShort {
			ov.ShortNotional += p.Notional
		} else {
			ov.LongNotional += p.Notional
		}
		pm = append(pm, metrics.PositionMetric{Symbol: p.Symbol, Side: p.Side, Notional: p.Notional})
	}
	metrics.UpdateAccountMetrics(ov.Equity, ov.UnrealizedPnL, ov.AvailableMargin, pm)
	return ov, nil
}

// Balance 账户资产
func (s *Service) Balance(ctx context.Context) (gateway.Balance, error) {
	return s.ex.Balance(ctx)
}

// Positions 非零持仓
func (s *Service) Positions(ctx context.Context, symbol string) ([]PositionView, error) {
	pos, err := s.ex.Positions(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return viewPositions(pos), nil
}

func viewPositions(pos []gateway.Position) []PositionView {
	out := make([]PositionView, 0, len(pos))
	for _, p := range pos {
		amt := p.PositionAmt.Float64()
		if amt == 0 {
			continue
		}
		side := strings.ToUpper(p.PositionSide)
		if side != gateway.PositionSideLong && side != gateway.PositionSideShort {
			// 单向持仓按数量符号判断方向
			side = gateway.PositionSideLong
			if amt < 0 {
				side = gateway.PositionSideShort
			}
		}
		size := math.Abs(amt)
		mark := p.MarkPrice.Float64()
		if mark == 0 {
			mark = p.AvgPrice.Float64()
		}
		notional := p.PositionValue.Float64()
		if notional == 0 {
			notional = size * mark
		}
		v := PositionView{
			Symbol:           p.Symbol,
			Side:             side,
			Size:             size,
			EntryPrice:       p.AvgPrice.Float64(),
			MarkPrice:        mark,
			LiquidationPrice: p.LiquidationPrice.Float64(),
			Notional:         round(math.Abs(notional), 8),
			UnrealizedPnL:    p.UnrealizedProfit.Float64(),
			Leverage:         p.Leverage.Float64(),
			Isolated:         p.Isolated,
		}
		if im := p.InitialMargin.Float64(); im > 0 {
			v.PnLPercent = round(v.UnrealizedPnL/im*100, 4)
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Side < out[j].Side
	})
	return out
}

// OpenOrders 当前挂单
func (s *Service) OpenOrders(ctx context.Context, symbol string) ([]gateway.Order, error) {
	orders, err := s.ex.OpenOrders(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []gateway.Order{}
	}
	return orders, nil
}

// OrderHistory 历史委托；没有指定 symbol 时按关注列表逐个查询后合并，按时间倒序
func (s *Service) OrderHistory(ctx context.Context, q gateway.HistoryQuery) ([]gateway.Order, error) {
	if q.Symbol != "" {
		return s.ex.OrderHistory(ctx, q)
	}
	symbols, err := s.Watchlist(ctx)
	if err != nil {
		return nil, err
	}
	results := make([][]gateway.Order, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			sq := q
			sq.Symbol = sym
			orders, err := s.ex.OrderHistory(gctx, sq)
			results[i] = orders
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	merged := []gateway.Order{}
	for _, r := range results {
		merged = append(merged, r...)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Time > merged[j].Time })
	if q.Limit > 0 && len(merged) > q.Limit {
		merged = merged[:q.Limit]
	}
	return merged, nil
}

// Income 资金流水
func (s *Service) Income(ctx context.Context, q gateway.HistoryQuery) ([]gateway.IncomeRecord, error) {
	recs, err := s.ex.Income(ctx, q)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []gateway.IncomeRecord{}
	}
	return recs, nil
}

// Ticker 行情
func (s *Service) Ticker(ctx context.Context, symbol string) (gateway.Ticker, error) {
	return s.ex.Ticker(ctx, symbol)
}

// Tickers 关注列表的行情
func (s *Service) Tickers(ctx context.Context) ([]gateway.Ticker, error) {
	symbols, err := s.Watchlist(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]gateway.Ticker, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			tk, err := s.ex.Ticker(gctx, sym)
			out[i] = tk
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Klines K 线
func (s *Service) Klines(ctx context.Context, symbol, interval string, limit int) ([]gateway.Kline, error) {
	ks, err := s.ex.Klines(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	sort.Slice(ks, func(i, j int) bool { return ks[i].Time < ks[j].Time })
	return ks, nil
}

// Contracts 合约列表
func (s *Service) Contracts(ctx context.Context) ([]gateway.Contract, error) {
	return s.ex.Contracts(ctx)
}

// PlaceOrder 下单
func (s *Service) PlaceOrder(ctx context.Context, r gateway.OrderRequest) (gateway.OrderResult, error) {
	if err := r.Validate(); err != nil {
		return gateway.OrderResult{}, err
	}
	if s.risk != nil {
		if err := s.risk.CheckPreTrade(ctx, r); err != nil {
			return gateway.OrderResult{}, err
		}
	}
	res, err := s.ex.PlaceOrder(ctx, r)
	if err != nil {
		log.Warn().Err(err).Str("symbol", r.Symbol).Str("side", r.Side).Msg("下单失败")
		return res, err
	}
	log.Info().Str("symbol", r.Symbol).Str("side", r.Side).Str("type", r.Type).
		Float64("qty", r.Quantity).Str("order_id", string(res.OrderID)).Msg("下单成功")
	return res, nil
}

// CancelOrder 撤单
func (s *Service) CancelOrder(ctx context.Context, symbol, orderID string) (gateway.OrderResult, error) {
	res, err := s.ex.CancelOrder(ctx, symbol, orderID)
	if err == nil {
		log.Info().Str("symbol", symbol).Str("order_id", orderID).Msg("撤单成功")
	}
	return res, err
}

// CancelAll 撤销某合约全部挂单
func (s *Service) CancelAll(ctx context.Context, symbol string) (gateway.BatchResult, error) {
	return s.ex.CancelAllOrders(ctx, symbol)
}

// ClosePosition 市价平掉某合约的持仓
func (s *Service) ClosePosition(ctx context.Context, symbol string) (gateway.BatchResult, error) {
	if strings.TrimSpace(symbol) == "" {
		return gateway.BatchResult{}, fmt.Errorf("%w: symbol required", gateway.ErrInvalidParams)
	}
	return s.ex.CloseAllPositions(ctx, symbol)
}

// CloseAll 平掉全部持仓
func (s *Service) CloseAll(ctx context.Context) (gateway.BatchResult, error) {
	res, err := s.ex.CloseAllPositions(ctx, "")
	if err == nil {
		log.Warn().Int("closed", len(res.Success)).Msg("已平掉全部持仓")
	}
	return res, err
}

// Leverage 查询杠杆
func (s *Service) Leverage(ctx context.Context, symbol string) (gateway.Leverage, error) {
	return s.ex.GetLeverage(ctx, symbol)
}

// SetLeverage 调整杠杆
func (s *Service) SetLeverage(ctx context.Context, symbol, side string, leverage int) error {
	if s.risk != nil {
		if err := s.risk.CheckLeverage(symbol, leverage); err != nil {
			return err
		}
	}
	return s.ex.SetLeverage(ctx, symbol, side, leverage)
}

func normalizeSymbols(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
