package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/newplayman/bingx-dashboard/internal/auth"
	"github.com/newplayman/bingx-dashboard/internal/dashboard"
	gateway "github.com/newplayman/bingx-dashboard/internal/exchange"
	"github.com/newplayman/bingx-dashboard/internal/watchdog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Kind    string `json:"kind"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any, token string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp apiResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func newTestServer(svc Dashboard) *Server {
	return NewServer(Config{OverviewPush: time.Hour}, svc, nil)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(&mockDashboard{})
	w, _ := doRequest(t, s.Handler(), http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

type staticHealth watchdog.Status

func (h staticHealth) Status() watchdog.Status { return watchdog.Status(h) }

func TestHealthzDegraded(t *testing.T) {
	s := NewServer(Config{Health: staticHealth{Healthy: false, ConsecutiveFailures: 3, LastError: "timeout"}}, &mockDashboard{}, nil)
	w, _ := doRequest(t, s.Handler(), http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status   string          `json:"status"`
		Exchange watchdog.Status `json:"exchange"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, 3, body.Exchange.ConsecutiveFailures)
	assert.Equal(t, "timeout", body.Exchange.LastError)
}

func TestOverviewSuccess(t *testing.T) {
	svc := &mockDashboard{}
	svc.On("Overview", mock.Anything).Return(dashboard.Overview{Asset: "USDT", Equity: 1234.5}, nil)
	s := newTestServer(svc)

	w, resp := doRequest(t, s.Handler(), http.MethodGet, "/api/overview", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	var ov dashboard.Overview
	require.NoError(t, json.Unmarshal(resp.Data, &ov))
	assert.Equal(t, "USDT", ov.Asset)
	assert.Equal(t, 1234.5, ov.Equity)
	svc.AssertExpectations(t)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
		code   int
	}{
		{"business error", &gateway.APIError{Endpoint: "/x", Code: 80001, Msg: "invalid signature"}, http.StatusBadRequest, gateway.KindApplication, 80001},
		{"auth code", &gateway.APIError{Endpoint: "/x", Code: 100001, Msg: "signature verification failed"}, http.StatusUnauthorized, gateway.KindApplication, 100001},
		{"rate limit code", &gateway.APIError{Endpoint: "/x", Code: 100410, Msg: "frequency limit"}, http.StatusTooManyRequests, gateway.KindApplication, 100410},
		{"missing credentials", &gateway.ConfigError{Missing: "api_key"}, http.StatusServiceUnavailable, gateway.KindConfiguration, 0},
		{"transport", &gateway.TransportError{Endpoint: "/x", Err: errors.New("connection refused")}, http.StatusGatewayTimeout, gateway.KindTransport, 0},
		{"http status", &gateway.ProtocolError{Endpoint: "/x", StatusCode: 502, Body: "bad gateway"}, http.StatusBadGateway, gateway.KindProtocol, 0},
		{"http 429", &gateway.ProtocolError{Endpoint: "/x", StatusCode: 429, Code: 100410, Msg: "too many"}, http.StatusTooManyRequests, gateway.KindProtocol, 100410},
		{"parse", &gateway.ParseError{Endpoint: "/x", Body: "<html>", Err: errors.New("invalid")}, http.StatusBadGateway, gateway.KindParse, 0},
		{"invalid params", fmt.Errorf("%w: symbol required", gateway.ErrInvalidParams), http.StatusBadRequest, gateway.KindInvalidParams, 0},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, gateway.KindUnknown, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockDashboard{}
			svc.On("Balance", mock.Anything).Return(gateway.Balance{}, tc.err)
			s := newTestServer(svc)

			w, resp := doRequest(t, s.Handler(), http.MethodGet, "/api/balance", nil, "")
			assert.Equal(t, tc.status, w.Code)
			assert.False(t, resp.Success)
			assert.Equal(t, tc.kind, resp.Error.Kind)
			assert.Equal(t, tc.code, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestBusinessErrorMessagePassthrough(t *testing.T) {
	svc := &mockDashboard{}
	svc.On("Balance", mock.Anything).Return(gateway.Balance{}, &gateway.APIError{Endpoint: "/x", Code: 80001, Msg: "invalid signature"})
	s := newTestServer(svc)

	w, _ := doRequest(t, s.Handler(), http.MethodGet, "/api/balance", nil, "")
	assert.JSONEq(t,
		`{"success":false,"error":{"kind":"application","code":80001,"message":"invalid signature"}}`,
		w.Body.String())
}

func TestPlaceOrder(t *testing.T) {
	svc := &mockDashboard{}
	want := gateway.OrderRequest{
		Symbol:   "BTC-USDT",
		Side:     "BUY",
		Type:     "LIMIT",
		Quantity: 0.01,
		Price:    50000,
	}
	svc.On("PlaceOrder", mock.Anything, want).
		Return(gateway.OrderResult{Symbol: "BTC-USDT", OrderID: "123", Status: "NEW"}, nil).Once()
	s := newTestServer(svc)

	w, resp := doRequest(t, s.Handler(), http.MethodPost, "/api/orders", map[string]any{
		"symbol": "BTC-USDT", "side": "buy", "type": "limit", "quantity": 0.01, "price": 50000,
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var res gateway.OrderResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Equal(t, gateway.ID("123"), res.OrderID)

	// 缺字段直接 400，不调用服务
	w, resp = doRequest(t, s.Handler(), http.MethodPost, "/api/orders", map[string]any{
		"symbol": "BTC-USDT", "side": "BUY", "type": "MARKET",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, gateway.KindInvalidParams, resp.Error.Kind)
	svc.AssertExpectations(t)
}

func TestTradingRoutes(t *testing.T) {
	svc := &mockDashboard{}
	svc.On("CancelOrder", mock.Anything, "BTC-USDT", "42").Return(gateway.OrderResult{OrderID: "42"}, nil).Once()
	svc.On("CancelAll", mock.Anything, "ETH-USDT").Return(gateway.BatchResult{Success: []gateway.ID{"1"}}, nil).Once()
	svc.On("ClosePosition", mock.Anything, "ETH-USDT").Return(gateway.BatchResult{}, nil).Once()
	svc.On("CloseAll", mock.Anything).Return(gateway.BatchResult{}, nil).Once()
	svc.On("SetLeverage", mock.Anything, "BTC-USDT", "LONG", 10).Return(nil).Once()
	svc.On("Leverage", mock.Anything, "BTC-USDT").Return(gateway.Leverage{Symbol: "BTC-USDT", LongLeverage: 10}, nil).Once()
	s := newTestServer(svc)
	h := s.Handler()

	w, _ := doRequest(t, h, http.MethodPost, "/api/orders/cancel", map[string]string{"symbol": "BTC-USDT", "order_id": "42"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = doRequest(t, h, http.MethodPost, "/api/orders/cancel-all", map[string]string{"symbol": "ETH-USDT"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = doRequest(t, h, http.MethodPost, "/api/positions/close", map[string]string{"symbol": "ETH-USDT"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = doRequest(t, h, http.MethodPost, "/api/positions/close-all", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = doRequest(t, h, http.MethodPost, "/api/leverage", map[string]any{"symbol": "BTC-USDT", "side": "long", "leverage": 10}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = doRequest(t, h, http.MethodGet, "/api/leverage/BTC-USDT", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	// 参数不全
	w, _ = doRequest(t, h, http.MethodPost, "/api/orders/cancel-all", map[string]string{}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = doRequest(t, h, http.MethodPost, "/api/leverage", map[string]any{"symbol": "BTC-USDT", "side": "UP", "leverage": 10}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.AssertExpectations(t)
}

func TestQueryRoutes(t *testing.T) {
	svc := &mockDashboard{}
	svc.On("OrderHistory", mock.Anything, gateway.HistoryQuery{Symbol: "BTC-USDT", Limit: 100}).Return([]gateway.Order{}, nil).Once()
	svc.On("Income", mock.Anything, gateway.HistoryQuery{IncomeType: "FUNDING_FEE", StartTime: 1, Limit: 50}).Return([]gateway.IncomeRecord{}, nil).Once()
	svc.On("PnLSeries", mock.Anything, 7).Return([]dashboard.PnLPoint{}, nil).Once()
	svc.On("PnLSeries", mock.Anything, 30).Return([]dashboard.PnLPoint{}, nil).Once()
	svc.On("Klines", mock.Anything, "BTC-USDT", "1h", 200).Return([]gateway.Kline{}, nil).Once()
	svc.On("Klines", mock.Anything, "BTC-USDT", "15m", 96).Return([]gateway.Kline{}, nil).Once()
	svc.On("Snapshots", mock.Anything, 288).Return([]dashboard.Snapshot{}, nil).Once()
	svc.On("Positions", mock.Anything, "ETH-USDT").Return([]dashboard.PositionView{}, nil).Once()
	svc.On("OpenOrders", mock.Anything, "").Return([]gateway.Order{}, nil).Once()
	svc.On("Ticker", mock.Anything, "BTC-USDT").Return(gateway.Ticker{Symbol: "BTC-USDT"}, nil).Once()
	svc.On("Tickers", mock.Anything).Return([]gateway.Ticker{}, nil).Once()
	svc.On("Contracts", mock.Anything).Return([]gateway.Contract{}, nil).Once()
	s := newTestServer(svc)
	h := s.Handler()

	for _, path := range []string{
		"/api/orders/history?symbol=BTC-USDT",
		"/api/income?type=FUNDING_FEE&start=1&limit=50",
		"/api/pnl",
		"/api/pnl?days=30",
		"/api/klines/BTC-USDT",
		"/api/klines/BTC-USDT?interval=15m&limit=96",
		"/api/snapshots",
		"/api/positions?symbol=ETH-USDT",
		"/api/orders/open",
		"/api/ticker/BTC-USDT",
		"/api/tickers",
		"/api/contracts",
	} {
		w, resp := doRequest(t, h, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.True(t, resp.Success, path)
	}

	for _, path := range []string{
		"/api/pnl?days=0x",
		"/api/pnl?days=91",
		"/api/orders/history?limit=5000",
		"/api/klines/BTC-USDT?limit=-1",
	} {
		w, resp := doRequest(t, h, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Equal(t, gateway.KindInvalidParams, resp.Error.Kind, path)
	}
	svc.AssertExpectations(t)
}

func TestWatchlistRoutes(t *testing.T) {
	svc := &mockDashboard{}
	svc.On("Watchlist", mock.Anything).Return([]string{"BTC-USDT"}, nil).Once()
	svc.On("SetWatchlist", mock.Anything, []string{"eth-usdt"}).Return([]string{"ETH-USDT"}, nil).Once()
	svc.On("SetWatchlist", mock.Anything, []string{"bad"}).
		Return(nil, fmt.Errorf("%w: bad symbol", gateway.ErrInvalidParams)).Once()
	s := newTestServer(svc)
	h := s.Handler()

	w, resp := doRequest(t, h, http.MethodGet, "/api/watchlist", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["BTC-USDT"]`, string(resp.Data))

	w, resp = doRequest(t, h, http.MethodPut, "/api/watchlist", map[string]any{"symbols": []string{"eth-usdt"}}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["ETH-USDT"]`, string(resp.Data))

	w, _ = doRequest(t, h, http.MethodPut, "/api/watchlist", map[string]any{"symbols": []string{"bad"}}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestAuthEnabled(t *testing.T) {
	hash, err := auth.HashPassword("dashboard-pass")
	require.NoError(t, err)
	mgr, err := auth.NewManager("admin", hash, "jwt-secret", time.Hour)
	require.NoError(t, err)

	svc := &mockDashboard{}
	svc.On("Watchlist", mock.Anything).Return([]string{"BTC-USDT"}, nil)
	s := NewServer(Config{}, svc, mgr)
	h := s.Handler()

	w, _ := doRequest(t, h, http.MethodGet, "/api/watchlist", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = doRequest(t, h, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doRequest(t, h, http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, resp := doRequest(t, h, http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "dashboard-pass"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &login))
	require.NotEmpty(t, login.Token)

	w, _ = doRequest(t, h, http.MethodGet, "/api/watchlist", nil, login.Token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginWithoutAuth(t *testing.T) {
	s := newTestServer(&mockDashboard{})
	w, resp := doRequest(t, s.Handler(), http.MethodPost, "/api/auth/login", map[string]string{"username": "a", "password": "b"}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "auth_disabled", resp.Error.Kind)
}

func TestOverviewWebsocket(t *testing.T) {
	svc := &mockDashboard{}
	svc.On("Overview", mock.Anything).Return(dashboard.Overview{Asset: "USDT", Equity: 99}, nil)
	s := newTestServer(svc)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/overview"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg struct {
		Type string             `json:"type"`
		Data dashboard.Overview `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "overview", msg.Type)
	assert.Equal(t, 99.0, msg.Data.Equity)
}

func TestOverviewWebsocketError(t *testing.T) {
	svc := &mockDashboard{}
	svc.On("Overview", mock.Anything).Return(dashboard.Overview{}, &gateway.ConfigError{Missing: "secret_key"})
	s := newTestServer(svc)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/overview", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg struct {
		Type  string `json:"type"`
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, gateway.KindConfiguration, msg.Error.Kind)
}

func TestStaticDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>bingx</h1>"), 0o644))

	s := NewServer(Config{StaticDir: dir}, &mockDashboard{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bingx")
}

func TestOverviewWebsocketReadOnlyClientStaysConnected(t *testing.T) {
	svc := &mockDashboard{}
	svc.On("Overview", mock.Anything).Return(dashboard.Overview{Asset: "USDT"}, nil)
	s := NewServer(Config{OverviewPush: 100 * time.Millisecond}, svc, nil)
	s.pongWait = 300 * time.Millisecond
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/overview", nil)
	require.NoError(t, err)
	defer conn.Close()

	// 客户端只读不写，默认 ping handler 自动回 pong
	until := time.Now().Add(4 * s.pongWait)
	received := 0
	for time.Now().Before(until) {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg), "connection dropped after %d pushes", received)
		assert.Equal(t, "overview", msg.Type)
		received++
	}
	assert.GreaterOrEqual(t, received, 5)
}

func TestWebsocketOriginRestriction(t *testing.T) {
	svc := &mockDashboard{}
	svc.On("Overview", mock.Anything).Return(dashboard.Overview{}, nil)
	s := NewServer(Config{OverviewPush: time.Hour, CORSOrigins: []string{"https://dash.example.com"}}, svc, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/overview"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://dash.example.com"}})
	require.NoError(t, err)
	conn.Close()

	// 非浏览器客户端不带 Origin
	conn, _, err = websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	conn.Close()
}

func TestOriginCheckerAllowsAllWhenUnconfigured(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/overview", nil)
	req.Header.Set("Origin", "https://anything.example")
	assert.True(t, originChecker(nil)(req))

	req.Host = "anything.example"
	assert.True(t, originChecker([]string{"https://other.example"})(req), "same host is allowed")
}
