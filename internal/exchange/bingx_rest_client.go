package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Clock 提供签名用的毫秒时间戳（TimeSync 实现了它）。
type Clock interface {
	NowMillis() int64
}

// Observer 每次请求结束后回调，用于指标采集；status 为 0 表示未拿到响应。
type Observer func(endpoint string, status int, latency time.Duration, err error)

// BingXRESTClient 签名调用 BingX 合约 REST 接口。
// 字段在启动时注入，之后只读，可被多个 goroutine 并发使用。
type BingXRESTClient struct {
	BaseURL      string
	APIKey       string
	Secret       string
	HTTPClient   *http.Client
	RecvWindowMs int64
	Limiter      RateLimiter
	Clock        Clock
	Observer     Observer
}

// Envelope BingX 统一响应外壳 {code, msg, data}
type Envelope struct {
	Code *int            `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

var defaultHTTPClient = NewDefaultHTTPClient()

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// NewBingXRESTClient 用显式注入的凭证构造客户端；httpCli 为 nil 时用默认客户端。
func NewBingXRESTClient(baseURL, apiKey, secret string, httpCli *http.Client) *BingXRESTClient {
	if baseURL == "" {
		baseURL = BingXRestEndpoint
	}
	if httpCli == nil {
		httpCli = NewDefaultHTTPClient()
	}
	return &BingXRESTClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     strings.TrimSpace(apiKey),
		Secret:     strings.TrimSpace(secret),
		HTTPClient: httpCli,
	}
}

// CheckCredentials 在发请求之前确认凭证齐全
func (c *BingXRESTClient) CheckCredentials() error {
	if c.APIKey == "" {
		return &ConfigError{Missing: "api_key"}
	}
	if c.Secret == "" {
		return &ConfigError{Missing: "secret_key"}
	}
	return nil
}

// Do 执行一次签名请求并拆开响应外壳，成功时返回 data 原文。
// 每次调用恰好一个出站请求，不重试、不缓存。
func (c *BingXRESTClient) Do(ctx context.Context, ep Endpoint, params Params) (json.RawMessage, error) {
	if !ep.Unsigned {
		if err := c.CheckCredentials(); err != nil {
			return nil, err
		}
	}

	target, flat, err := c.buildURL(ep, params)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if ep.Body == BodyJSON && ep.Method == http.MethodPost {
		raw, err := json.Marshal(flat)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Endpoint: ep.Path, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, ep.Method, target, body)
	if err != nil {
		return nil, &TransportError{Endpoint: ep.Path, Err: err}
	}
	if c.APIKey != "" {
		req.Header.Set(APIKeyHeader, c.APIKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	data, status, err := c.roundTrip(req, ep)
	latency := time.Since(start)
	if c.Observer != nil {
		c.Observer(ep.Path, status, latency, err)
	}
	log.Debug().
		Str("method", ep.Method).
		Str("endpoint", ep.Path).
		Int("status", status).
		Dur("latency", latency).
		Err(err).
		Msg("bingx request")
	return data, err
}

// buildURL 补齐 timestamp/recvWindow，签名并拼出完整地址
func (c *BingXRESTClient) buildURL(ep Endpoint, params Params) (string, map[string]string, error) {
	p := make(Params, len(params)+1)
	for k, v := range params {
		p[k] = v
	}
	if ep.Unsigned {
		flat, err := flattenParams(p)
		if err != nil {
			return "", nil, err
		}
		target := c.BaseURL + ep.Path
		if q := CanonicalQuery(flat); q != "" {
			target += "?" + q
		}
		return target, flat, nil
	}
	if _, ok := p["recvWindow"]; !ok && c.RecvWindowMs > 0 {
		p["recvWindow"] = c.RecvWindowMs
	}
	signed, err := SignParams(ep.Path, p, c.Secret, c.nowMillis)
	if err != nil {
		return "", nil, err
	}
	return signed.URL(c.BaseURL), signed.Params, nil
}

func (c *BingXRESTClient) roundTrip(req *http.Request, ep Endpoint) (json.RawMessage, int, error) {
	httpCli := c.HTTPClient
	if httpCli == nil {
		httpCli = defaultHTTPClient
	}
	resp, err := httpCli.Do(req)
	if err != nil {
		return nil, 0, &TransportError{Endpoint: ep.Path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &TransportError{Endpoint: ep.Path, Err: err}
	}
	data, err := decodeEnvelope(ep.Path, resp.StatusCode, raw)
	return data, resp.StatusCode, err
}

// decodeEnvelope 按状态码与 code 字段归类响应
func decodeEnvelope(endpoint string, status int, raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if status < 200 || status >= 300 {
		pe := &ProtocolError{Endpoint: endpoint, StatusCode: status, Body: string(trimmed)}
		var env Envelope
		if json.Unmarshal(trimmed, &env) == nil && env.Code != nil {
			pe.Code = *env.Code
			pe.Msg = env.Msg
		}
		return nil, pe
	}
	if !json.Valid(trimmed) {
		return nil, &ParseError{Endpoint: endpoint, Body: string(trimmed), Err: errInvalidJSON}
	}
	if trimmed[0] != '{' {
		// 非对象（比如裸数组）整体当作 data
		return json.RawMessage(trimmed), nil
	}
	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, &ParseError{Endpoint: endpoint, Body: string(trimmed), Err: err}
	}
	if env.Code != nil && *env.Code != 0 {
		return nil, &APIError{Endpoint: endpoint, Code: *env.Code, Msg: env.Msg}
	}
	return env.Data, nil
}

// call 执行请求并把 data 解到 out
func (c *BingXRESTClient) call(ctx context.Context, ep Endpoint, params Params, out any) error {
	data, err := c.Do(ctx, ep, params)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ParseError{Endpoint: ep.Path, Body: string(data), Err: err}
	}
	return nil
}

func (c *BingXRESTClient) nowMillis() int64 {
	if c.Clock != nil {
		return c.Clock.NowMillis()
	}
	return timeNowMillis()
}
