package gateway

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter 控制请求速率，避免触发交易所限流。
// 只做等待，不重试。
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// NewRateLimiter 每秒 rps 个请求，突发 burst。rps <= 0 时返回 nil（不限速）。
func NewRateLimiter(rps float64, burst int) RateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
