package gateway

import "net/http"

// BingX 永续合约 REST 入口
const (
	BingXRestEndpoint = "https://open-api.bingx.com"

	// APIKeyHeader 签名请求携带的 API key 头
	APIKeyHeader = "X-BX-APIKEY"
)

// BodyPlacement 决定 POST 请求的参数放在哪里。
// BingX 不同接口的约定不一致，所以按接口声明而不是全局规则。
type BodyPlacement int

const (
	// BodyNone 参数全部放在 query string，请求体为空
	BodyNone BodyPlacement = iota
	// BodyJSON query string 不变，同时把参数镜像为 JSON 请求体
	BodyJSON
)

// Endpoint 描述一个交易所接口：方法、路径、参数位置、是否需要签名。
type Endpoint struct {
	Method   string
	Path     string
	Body     BodyPlacement
	Unsigned bool
}

// 合约接口清单
var (
	EndpointServerTime = Endpoint{Method: http.MethodGet, Path: "/openApi/swap/v2/server/time", Unsigned: true}

	EndpointBalance   = Endpoint{Method: http.MethodGet, Path: "/openApi/swap/v2/user/balance"}
	EndpointPositions = Endpoint{Method: http.MethodGet, Path: "/openApi/swap/v2/user/positions"}
	EndpointIncome    = Endpoint{Method: http.MethodGet, Path: "/openApi/swap/v2/user/income"}

	EndpointOpenOrders        = Endpoint{Method: http.MethodGet, Path: "/openApi/swap/v2/trade/openOrders"}
	EndpointAllOrders         = Endpoint{Method: http.MethodGet, Path: "/openApi/swap/v2/trade/allOrders"}
	EndpointPlaceOrder        = Endpoint{Method: http.MethodPost, Path: "/openApi/swap/v2/trade/order"}
	EndpointCancelOrder       = Endpoint{Method: http.MethodDelete, Path: "/openApi/swap/v2/trade/order"}
	EndpointCancelAllOrders   = Endpoint{Method: http.MethodDelete, Path: "/openApi/swap/v2/trade/allOpenOrders"}
	EndpointCloseAllPositions = Endpoint{Method: http.MethodPost, Path: "/openApi/swap/v2/trade/closeAllPositions"}
	EndpointGetLeverage       = Endpoint{Method: http.MethodGet, Path: "/openApi/swap/v2/trade/leverage"}
	EndpointSetLeverage       = Endpoint{Method: http.MethodPost, Path: "/openApi/swap/v2/trade/leverage"}
	EndpointSetMarginType     = Endpoint{Method: http.MethodPost, Path: "/openApi/swap/v2/trade/marginType"}

	EndpointTicker    = Endpoint{Method: http.MethodGet, Path: "/openApi/swap/v2/quote/ticker"}
	EndpointKlines    = Endpoint{Method: http.MethodGet, Path: "/openApi/swap/v3/quote/klines"}
	EndpointContracts = Endpoint{Method: http.MethodGet, Path: "/openApi/swap/v2/quote/contracts"}
)

// Order sides / types / position sides
const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderTypeMarket           = "MARKET"
	OrderTypeLimit            = "LIMIT"
	OrderTypeStopMarket       = "STOP_MARKET"
	OrderTypeTakeProfitMarket = "TAKE_PROFIT_MARKET"

	PositionSideLong  = "LONG"
	PositionSideShort = "SHORT"
	PositionSideBoth  = "BOTH"

	MarginTypeIsolated = "ISOLATED"
	MarginTypeCrossed  = "CROSSED"
)
