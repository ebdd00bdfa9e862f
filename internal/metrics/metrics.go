package metrics

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	gateway "github.com/newplayman/bingx-dashboard/internal/exchange"
)

var (
	// 交易所调用
	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bingx_api_latency_seconds",
			Help:    "BingX REST 调用延迟",
			Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint", "status"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bingx_api_error_total",
			Help: "BingX REST 调用错误数（按错误种类）",
		},
		[]string{"kind", "endpoint"},
	)

	ExchangeUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bingx_api_up",
			Help: "BingX REST 心跳状态（1 可用，0 不可用）",
		},
	)

	// 面板 HTTP 服务
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_http_requests_total",
			Help: "面板 API 请求数",
		},
		[]string{"route", "code"},
	)

	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_http_latency_seconds",
			Help:    "面板 API 处理延迟",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	WSClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_ws_clients",
			Help: "当前 websocket 连接数",
		},
	)

	// 账户
	Equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_equity",
			Help: "账户权益",
		},
	)

	UnrealizedPNL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_unrealized_pnl",
			Help: "未实现盈亏",
		},
	)

	AvailableMargin = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_available_margin",
			Help: "可用保证金",
		},
	)

	PositionNotional = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dashboard_position_notional",
			Help: "仓位名义价值",
		},
		[]string{"symbol", "side"},
	)

	SnapshotCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_snapshot_total",
			Help: "权益快照次数",
		},
		[]string{"result"}, // ok / error
	)
)

func init() {
	// 注册所有指标
	prometheus.MustRegister(
		APILatency,
		APIErrors,
		ExchangeUp,
		HTTPRequests,
		HTTPLatency,
		WSClients,
		Equity,
		UnrealizedPNL,
		AvailableMargin,
		PositionNotional,
		SnapshotCount,
	)
}

// StartMetricsServer 启动Prometheus监控服务器，并返回实际监听端口
func StartMetricsServer(port int) (int, error) {
	if port < 0 {
		port = 0
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("listen on %s failed: %w", addr, err)
	}

	actualPort := listener.Addr().(*net.TCPAddr).Port

	log.Info().Int("port", actualPort).Msg("启动Prometheus监控服务器")

	go func() {
		if err := http.Serve(listener, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Prometheus服务器启动失败")
		}
	}()

	return actualPort, nil
}

// ObserveAPICall 作为 gateway.Observer 挂到 REST 客户端上
func ObserveAPICall(endpoint string, status int, latency time.Duration, err error) {
	APILatency.WithLabelValues(endpoint, statusLabel(status)).Observe(latency.Seconds())
	if err != nil {
		APIErrors.WithLabelValues(gateway.ErrorKind(err), endpoint).Inc()
	}
}

// RecordAPIError 记录没有到达网络层的错误（例如凭证缺失）
func RecordAPIError(kind, endpoint string) {
	APIErrors.WithLabelValues(kind, endpoint).Inc()
}

// RecordHTTPRequest 记录一次面板 API 请求
func RecordHTTPRequest(route string, code int, latency time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	HTTPLatency.WithLabelValues(route).Observe(latency.Seconds())
}

// PositionMetric 单个仓位的指标输入
type PositionMetric struct {
	Symbol   string
	Side     string
	Notional float64
}

// UpdateAccountMetrics 更新账户与仓位指标；旧的仓位标签会被清掉
func UpdateAccountMetrics(equity, unrealized, available float64, positions []PositionMetric) {
	Equity.Set(equity)
	UnrealizedPNL.Set(unrealized)
	AvailableMargin.Set(available)
	PositionNotional.Reset()
	for _, p := range positions {
		PositionNotional.WithLabelValues(p.Symbol, p.Side).Set(p.Notional)
	}
}

// RecordSnapshot 记录快照结果
func RecordSnapshot(err error) {
	if err != nil {
		SnapshotCount.WithLabelValues("error").Inc()
		return
	}
	SnapshotCount.WithLabelValues("ok").Inc()
}

func statusLabel(status int) string {
	if status == 0 {
		return "none"
	}
	return strconv.Itoa(status)
}
