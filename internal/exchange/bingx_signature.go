package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// 可覆盖的时间函数，便于测试。
var timeNowMillis = defaultNowMillis

func defaultNowMillis() int64 { return time.Now().UnixMilli() }

// Params 请求参数；值可以是字符串或数字，签名前统一转成字符串。
type Params map[string]any

// SignedRequest 一次签名调用的中间产物，只在请求生命周期内存在。
type SignedRequest struct {
	Endpoint  string
	Params    map[string]string
	Timestamp int64
	Query     string
	Signature string
}

// FormatValue 把参数值渲染成十进制文本，不做 URL 转义。
func FormatValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("unsupported param value %T: %w", v, err)
	}
	return s, nil
}

// CanonicalQuery 按 key 字节序排序后拼接 name=value，用 & 连接。
// 值原样输出（BingX 不定义百分号编码），调用方只传 URL 安全的值。
func CanonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// Sign 对 query 做 HMAC-SHA256，返回小写十六进制。
func Sign(query, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignParams 补齐 timestamp 后生成规范 query 与签名。
// nowMillis 为 nil 时使用本地时钟。
func SignParams(endpoint string, params Params, secret string, nowMillis func() int64) (SignedRequest, error) {
	flat, err := flattenParams(params)
	if err != nil {
		return SignedRequest{}, err
	}
	if _, ok := flat["timestamp"]; !ok {
		if nowMillis == nil {
			nowMillis = timeNowMillis
		}
		flat["timestamp"] = fmt.Sprint(nowMillis())
	}
	ts, err := parseMillis(flat["timestamp"])
	if err != nil {
		return SignedRequest{}, err
	}
	query := CanonicalQuery(flat)
	return SignedRequest{
		Endpoint:  endpoint,
		Params:    flat,
		Timestamp: ts,
		Query:     query,
		Signature: Sign(query, secret),
	}, nil
}

// URL 拼出最终请求地址：base + path + ? + query + &signature=
func (r SignedRequest) URL(baseURL string) string {
	return baseURL + r.Endpoint + "?" + r.Query + "&signature=" + r.Signature
}

// parseMillis 只接受十进制毫秒，且回写后必须与签名文本一致（拒绝 "010"、"+5"、"0x10"）
func parseMillis(s string) (int64, error) {
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ts <= 0 || strconv.FormatInt(ts, 10) != s {
		return 0, fmt.Errorf("%w: timestamp %q is not a decimal millisecond value", ErrInvalidParams, s)
	}
	return ts, nil
}

func flattenParams(params Params) (map[string]string, error) {
	flat := make(map[string]string, len(params)+2)
	for k, v := range params {
		if k == "" || strings.ContainsAny(k, "=&") {
			return nil, fmt.Errorf("%w: bad key %q", ErrInvalidParams, k)
		}
		s, err := FormatValue(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidParams, k, err)
		}
		flat[k] = s
	}
	return flat, nil
}
