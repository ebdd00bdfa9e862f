package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/newplayman/bingx-dashboard/internal/metrics"
)

// Pinger 交易所心跳，通常是不签名的 ServerTime
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc 把普通函数适配成 Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Hooks 状态切换时的回调，可为 nil
type Hooks struct {
	OnUnhealthy func(reason string)
	OnRecovered func(reason string)
}

// Config 看门狗配置
type Config struct {
	PingInterval      time.Duration
	PingTimeout       time.Duration
	FailureThreshold  int
	RecoveryThreshold int
}

func (c *Config) normalize() {
	if c.PingInterval <= 0 {
		c.PingInterval = 15 * time.Second
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 5 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.RecoveryThreshold <= 0 {
		c.RecoveryThreshold = 2
	}
}

// Status 当前健康状态快照
type Status struct {
	Healthy             bool      `json:"healthy"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastCheck           time.Time `json:"last_check"`
	LastError           string    `json:"last_error,omitempty"`
}

// Watchdog 周期性探测交易所 REST 可达性。
// 连续失败达到阈值判定为不健康，之后连续成功达到阈值才恢复。
type Watchdog struct {
	cfg   Config
	rest  Pinger
	hooks Hooks

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.RWMutex
	failures   int
	recoveries int
	unhealthy  bool
	lastCheck  time.Time
	lastErr    string
}

// NewWatchdog 创建看门狗
func NewWatchdog(cfg Config, rest Pinger, hooks Hooks) *Watchdog {
	cfg.normalize()
	return &Watchdog{
		cfg:   cfg,
		rest:  rest,
		hooks: hooks,
	}
}

// Start 启动看门狗
func (w *Watchdog) Start(ctx context.Context) {
	if w.rest == nil {
		log.Warn().Msg("watchdog 未启用：缺少 pinger")
		return
	}
	metrics.ExchangeUp.Set(1)

	childCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.runLoop(childCtx)
	}()
}

// Stop 停止看门狗
func (w *Watchdog) Stop() {
	if w.cancel != nil {
		w.cancel()
		w.wg.Wait()
	}
}

// Status 返回当前状态
func (w *Watchdog) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Status{
		Healthy:             !w.unhealthy,
		ConsecutiveFailures: w.failures,
		LastCheck:           w.lastCheck,
		LastError:           w.lastErr,
	}
}

func (w *Watchdog) runLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

// check 执行一次心跳并更新状态
func (w *Watchdog) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, w.cfg.PingTimeout)
	err := w.rest.Ping(pingCtx)
	cancel()
	if ctx.Err() != nil {
		return
	}

	var enter, exit bool
	w.mu.Lock()
	w.lastCheck = time.Now()
	if err != nil {
		w.failures++
		w.recoveries = 0
		w.lastErr = err.Error()
		if w.failures >= w.cfg.FailureThreshold && !w.unhealthy {
			w.unhealthy = true
			enter = true
		}
	} else {
		w.failures = 0
		w.lastErr = ""
		if w.unhealthy {
			w.recoveries++
			if w.recoveries >= w.cfg.RecoveryThreshold {
				w.unhealthy = false
				w.recoveries = 0
				exit = true
			}
		}
	}
	w.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Msg("BingX REST 心跳失败")
	}
	if enter {
		log.Error().Msg("BingX REST 连续失败，标记为不可用")
		metrics.ExchangeUp.Set(0)
		if w.hooks.OnUnhealthy != nil {
			w.hooks.OnUnhealthy("rest_unreachable")
		}
	}
	if exit {
		log.Info().Msg("BingX REST 恢复")
		metrics.ExchangeUp.Set(1)
		if w.hooks.OnRecovered != nil {
			w.hooks.OnRecovered("rest_recovered")
		}
	}
}
