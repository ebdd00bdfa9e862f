package risk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	gateway "github.com/newplayman/bingx-dashboard/internal/exchange"
)

// ErrRejected 下单被风控拒绝。同时包装 gateway.ErrInvalidParams，接口层按参数错误处理。
var ErrRejected = errors.New("risk: rejected")

// Limits 手动下单的限额，0 表示不限
type Limits struct {
	MaxOrderNotional float64 // 单笔名义价值上限（USDT）
	MaxLeverage      int
	RestrictSymbols  bool // 只允许配置里的合约
}

// PriceSource 市价单估算名义价值用的最新价
type PriceSource func(ctx context.Context, symbol string) (float64, error)

// RiskManager 面板下单前的检查，防止手误下出超大单
type RiskManager struct {
	limits  Limits
	symbols map[string]bool
	price   PriceSource
}

// NewRiskManager 创建风控管理器；price 为 nil 时市价单不做名义价值检查
func NewRiskManager(limits Limits, symbols []string, price PriceSource) *RiskManager {
	set := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		set[strings.ToUpper(strings.TrimSpace(s))] = true
	}
	return &RiskManager{limits: limits, symbols: set, price: price}
}

func reject(format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrRejected, gateway.ErrInvalidParams, fmt.Sprintf(format, args...))
}

// CheckPreTrade 检查一笔手动下单
func (r *RiskManager) CheckPreTrade(ctx context.Context, req gateway.OrderRequest) error {
	symbol := strings.ToUpper(req.Symbol)
	if r.limits.RestrictSymbols && !r.symbols[symbol] {
		return reject("交易对 %s 未配置", symbol)
	}

	// 减仓单不受名义价值限制，避免无法平仓
	if req.ReduceOnly || r.limits.MaxOrderNotional <= 0 {
		return nil
	}

	price := req.Price
	if price <= 0 {
		price = req.StopPrice
	}
	if price <= 0 {
		if r.price == nil {
			return nil
		}
		p, err := r.price(ctx, symbol)
		if err != nil {
			return fmt.Errorf("估算 %s 名义价值失败: %w", symbol, err)
		}
		price = p
	}

	notional := req.Quantity * price
	if notional > r.limits.MaxOrderNotional {
		log.Warn().Str("symbol", symbol).Float64("notional", notional).
			Float64("limit", r.limits.MaxOrderNotional).Msg("下单被风控拒绝")
		return reject("名义价值 %.2f 超过单笔上限 %.2f", notional, r.limits.MaxOrderNotional)
	}
	return nil
}

// CheckLeverage 检查杠杆调整
func (r *RiskManager) CheckLeverage(symbol string, leverage int) error {
	symbol = strings.ToUpper(symbol)
	if r.limits.RestrictSymbols && !r.symbols[symbol] {
		return reject("交易对 %s 未配置", symbol)
	}
	if r.limits.MaxLeverage > 0 && leverage > r.limits.MaxLeverage {
		return reject("杠杆 %dx 超过上限 %dx", leverage, r.limits.MaxLeverage)
	}
	return nil
}
