package gateway

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Number 兼容 BingX 的字符串数字与原生数字，空串视为 0。
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		var err error
		if s, err = strconv.Unquote(s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Float64 返回 float64 值
func (n Number) Float64() float64 { return float64(n) }

// ID 订单号等标识，接口有时给数字有时给字符串，统一成字符串。
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*id = ID(num.String())
	return nil
}

// Balance 合约账户资产 /openApi/swap/v2/user/balance
type Balance struct {
	Asset            string `json:"asset"`
	Balance          Number `json:"balance"`
	Equity           Number `json:"equity"`
	UnrealizedProfit Number `json:"unrealizedProfit"`
	RealisedProfit   Number `json:"realisedProfit"`
	AvailableMargin  Number `json:"availableMargin"`
	UsedMargin       Number `json:"usedMargin"`
	FreezedMargin    Number `json:"freezedMargin"`
}

// Position 持仓 /openApi/swap/v2/user/positions
type Position struct {
	Symbol           string `json:"symbol"`
	PositionID       ID     `json:"positionId"`
	PositionSide     string `json:"positionSide"`
	Isolated         bool   `json:"isolated"`
	PositionAmt      Number `json:"positionAmt"`
	AvailableAmt     Number `json:"availableAmt"`
	UnrealizedProfit Number `json:"unrealizedProfit"`
	RealisedProfit   Number `json:"realisedProfit"`
	InitialMargin    Number `json:"initialMargin"`
	AvgPrice         Number `json:"avgPrice"`
	MarkPrice        Number `json:"markPrice"`
	LiquidationPrice Number `json:"liquidationPrice"`
	Leverage         Number `json:"leverage"`
	PositionValue    Number `json:"positionValue"`
}

// Order 委托 /openApi/swap/v2/trade/openOrders, allOrders
type Order struct {
	Symbol        string `json:"symbol"`
	OrderID       ID     `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Side          string `json:"side"`
	PositionSide  string `json:"positionSide"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	OrigQty       Number `json:"origQty"`
	Price         Number `json:"price"`
	ExecutedQty   Number `json:"executedQty"`
	AvgPrice      Number `json:"avgPrice"`
	CumQuote      Number `json:"cumQuote"`
	StopPrice     Number `json:"stopPrice"`
	Profit        Number `json:"profit"`
	Commission    Number `json:"commission"`
	Leverage      string `json:"leverage"`
	Time          int64  `json:"time"`
	UpdateTime    int64  `json:"updateTime"`
}

// OrderRequest 下单参数
type OrderRequest struct {
	Symbol        string
	Side          string // BUY / SELL
	PositionSide  string // LONG / SHORT / BOTH，空则不传
	Type          string // MARKET / LIMIT / STOP_MARKET / TAKE_PROFIT_MARKET
	Quantity      float64
	Price         float64
	StopPrice     float64
	ReduceOnly    bool
	ClientOrderID string
}

// OrderResult 下单/撤单返回的订单摘要
type OrderResult struct {
	Symbol        string `json:"symbol"`
	OrderID       ID     `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Side          string `json:"side"`
	PositionSide  string `json:"positionSide"`
	Type          string `json:"type"`
	Status        string `json:"status"`
}

// BatchResult 批量撤单/平仓返回
type BatchResult struct {
	Success []ID              `json:"success"`
	Failed  []json.RawMessage `json:"failed"`
}

// IncomeRecord 资金流水 /openApi/swap/v2/user/income
type IncomeRecord struct {
	Symbol     string `json:"symbol"`
	IncomeType string `json:"incomeType"`
	Income     Number `json:"income"`
	Asset      string `json:"asset"`
	Info       string `json:"info"`
	Time       int64  `json:"time"`
	TranID     ID     `json:"tranId"`
	TradeID    ID     `json:"tradeId"`
}

// Leverage 当前杠杆 /openApi/swap/v2/trade/leverage
type Leverage struct {
	Symbol           string `json:"symbol"`
	LongLeverage     int    `json:"longLeverage"`
	ShortLeverage    int    `json:"shortLeverage"`
	MaxLongLeverage  int    `json:"maxLongLeverage"`
	MaxShortLeverage int    `json:"maxShortLeverage"`
}

// Ticker 24h 行情
type Ticker struct {
	Symbol             string `json:"symbol"`
	LastPrice          Number `json:"lastPrice"`
	PriceChange        Number `json:"priceChange"`
	PriceChangePercent Number `json:"priceChangePercent"`
	HighPrice          Number `json:"highPrice"`
	LowPrice           Number `json:"lowPrice"`
	OpenPrice          Number `json:"openPrice"`
	Volume             Number `json:"volume"`
	QuoteVolume        Number `json:"quoteVolume"`
	OpenTime           int64  `json:"openTime"`
	CloseTime          int64  `json:"closeTime"`
}

// Kline K 线
type Kline struct {
	Time   int64  `json:"time"`
	Open   Number `json:"open"`
	High   Number `json:"high"`
	Low    Number `json:"low"`
	Close  Number `json:"close"`
	Volume Number `json:"volume"`
}

// Contract 合约规格 /openApi/swap/v2/quote/contracts
type Contract struct {
	ContractID        ID     `json:"contractId"`
	Symbol            string `json:"symbol"`
	Asset             string `json:"asset"`
	Currency          string `json:"currency"`
	QuantityPrecision int    `json:"quantityPrecision"`
	PricePrecision    int    `json:"pricePrecision"`
	FeeRate           Number `json:"feeRate"`
	TradeMinQuantity  Number `json:"tradeMinQuantity"`
	Status            int    `json:"status"`
}
