package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ClientOptions 构造客户端的可选项
type ClientOptions struct {
	RecvWindowMs int64
	RateLimit    float64 // 每秒请求数，<=0 不限速
	RateBurst    int
	SyncTime     bool // 启动时与服务器对时
	Observer     Observer
}

// BuildBingXClient 用注入的凭证构造 REST 客户端。
// SyncTime 打开时总是返回 TimeSync（即使首次对时失败），调用方负责用 Run 周期性刷新。
func BuildBingXClient(ctx context.Context, env EnvConfig, httpCli *http.Client, opts ClientOptions) (*BingXRESTClient, *TimeSync) {
	if httpCli == nil {
		httpCli = NewDefaultHTTPClient()
	}
	rest := NewBingXRESTClient(pick(env.RestURL, BingXRestEndpoint), env.APIKey, env.SecretKey, httpCli)
	rest.RecvWindowMs = opts.RecvWindowMs
	rest.Limiter = NewRateLimiter(opts.RateLimit, opts.RateBurst)
	rest.Observer = opts.Observer

	if err := rest.CheckCredentials(); err != nil {
		log.Warn().Err(err).Msg("BingX 凭证缺失，签名接口将返回配置错误")
	}

	if !opts.SyncTime {
		return rest, nil
	}
	// 首次对时失败时偏移为 0，等同本地时钟；之后 Run 或手动 Sync 成功即生效
	ts := NewTimeSync(rest.BaseURL, httpCli)
	rest.Clock = ts
	if err := ts.Sync(ctx); err != nil {
		log.Warn().Err(err).Msg("时间同步失败，暂用本地时钟")
		return rest, ts
	}
	log.Info().Int64("offset_ms", ts.Offset()).Msg("时间同步完成")
	return rest, ts
}
