package gateway

import "strings"

// EnvConfig 启动时解析好的 BingX 凭证与端点，由调用方注入客户端。
type EnvConfig struct {
	APIKey    string
	SecretKey string
	RestURL   string // 为空使用 BingXRestEndpoint
}

func pick(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimRight(v, "/")
}
