package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredentials API key 或 secret 为空，请求不会发出
	ErrMissingCredentials = errors.New("bingx: api key and secret key are required")

	// ErrInvalidParams 参数名为空或含有 = / &，或值无法转成字符串
	ErrInvalidParams = errors.New("bingx: invalid request params")

	errInvalidJSON = errors.New("response body is not valid JSON")
)

// ConfigError 配置错误，在构造请求之前返回。
type ConfigError struct {
	Missing string // "api_key" / "secret_key"
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("bingx config error: %s is empty", e.Missing)
}

func (e *ConfigError) Unwrap() error { return ErrMissingCredentials }

// TransportError 网络层失败（DNS、连接、超时、取消），不重试。
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bingx %s: transport: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError HTTP 状态码非 2xx。Code/Msg 仅在响应体可解析时有值。
type ProtocolError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Code       int
	Msg        string
}

func (e *ProtocolError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("bingx %s: status %d: %d %s", e.Endpoint, e.StatusCode, e.Code, e.Msg)
	}
	return fmt.Sprintf("bingx %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// APIError 交易所业务错误：HTTP 2xx 但 code != 0，code/msg 原样透传。
type APIError struct {
	Endpoint string
	Code     int
	Msg      string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bingx %s: code %d: %s", e.Endpoint, e.Code, e.Msg)
}

// ParseError 响应体不是合法 JSON。
type ParseError struct {
	Endpoint string
	Body     string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("bingx %s: parse response: %v", e.Endpoint, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// 错误种类，对外（日志、指标、API 响应）使用的稳定字符串
const (
	KindConfiguration = "configuration"
	KindTransport     = "transport"
	KindProtocol      = "protocol"
	KindApplication   = "application"
	KindParse         = "parse"
	KindInvalidParams = "invalid_params"
	KindUnknown       = "unknown"
)

// ErrorKind 返回 err 在错误分类表中的种类。
func ErrorKind(err error) string {
	var (
		cfgErr   *ConfigError
		tErr     *TransportError
		pErr     *ProtocolError
		apiErr   *APIError
		parseErr *ParseError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr), errors.Is(err, ErrMissingCredentials):
		return KindConfiguration
	case errors.Is(err, ErrInvalidParams):
		return KindInvalidParams
	case errors.As(err, &tErr):
		return KindTransport
	case errors.As(err, &pErr):
		return KindProtocol
	case errors.As(err, &apiErr):
		return KindApplication
	case errors.As(err, &parseErr):
		return KindParse
	default:
		return KindUnknown
	}
}

// ErrorType BingX 业务错误码的粗分类
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeAuth
	ErrorTypeRateLimit
	ErrorTypeServer
	ErrorTypeClient
	ErrorTypeInsufficientBalance
)

// Classify 按 BingX 错误码分类
func Classify(code int) ErrorType {
	switch code {
	case 100001, 100412, 100413, 100419, 100421:
		// 签名校验失败 / 空签名 / apiKey 错误 / IP 白名单 / timestamp 超窗
		return ErrorTypeAuth
	case 100410, 100429:
		return ErrorTypeRateLimit
	case 101204, 80020:
		return ErrorTypeInsufficientBalance
	case 100500, 100503, 80012:
		return ErrorTypeServer
	case 100400, 109400, 80014:
		return ErrorTypeClient
	default:
		return ErrorTypeUnknown
	}
}

// ErrorCode 从错误中取出交易所返回的 code，没有则为 0
func ErrorCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var pErr *ProtocolError
	if errors.As(err, &pErr) {
		return pErr.Code
	}
	return 0
}

// String 返回错误类型字符串
func (e ErrorType) String() string {
	switch e {
	case ErrorTypeAuth:
		return "auth_error"
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeServer:
		return "server_error"
	case ErrorTypeClient:
		return "client_error"
	case ErrorTypeInsufficientBalance:
		return "insufficient_balance"
	default:
		return "unknown"
	}
}
