package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// TimeSync 维护本地时钟与 BingX 服务器时间的偏移
type TimeSync struct {
	mu           sync.RWMutex
	offset       int64 // 服务器时间 - 本地时间（毫秒）
	lastSync     time.Time
	syncInterval time.Duration
	baseURL      string
	httpClient   *http.Client
}

// NewTimeSync 创建时间同步器
func NewTimeSync(baseURL string, httpClient *http.Client) *TimeSync {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &TimeSync{
		syncInterval: 30 * time.Minute,
		baseURL:      baseURL,
		httpClient:   httpClient,
	}
}

// Sync 从服务器拉取一次时间并更新偏移
func (ts *TimeSync) Sync(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.baseURL+EndpointServerTime.Path, nil)
	if err != nil {
		return fmt.Errorf("build server time request: %w", err)
	}
	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("获取服务器时间失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取服务器时间失败: %w", err)
	}
	data, err := decodeEnvelope(EndpointServerTime.Path, resp.StatusCode, body)
	if err != nil {
		return err
	}
	var result struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(data, &result); err != nil || result.ServerTime <= 0 {
		return fmt.Errorf("解析服务器时间失败: %s", data)
	}

	offset := result.ServerTime - timeNowMillis()

	ts.mu.Lock()
	ts.offset = offset
	ts.lastSync = time.Now()
	ts.mu.Unlock()
	return nil
}

// SetInterval 调整 Run 的同步周期，<=0 忽略
func (ts *TimeSync) SetInterval(d time.Duration) {
	if d > 0 {
		ts.syncInterval = d
	}
}

// Run 周期性同步，直到 ctx 取消
func (ts *TimeSync) Run(ctx context.Context) {
	ticker := time.NewTicker(ts.syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ts.Sync(ctx); err != nil {
				log.Warn().Err(err).Msg("时间同步失败，沿用旧偏移")
			}
		}
	}
}

// NowMillis 返回校正后的服务器时间（毫秒）
func (ts *TimeSync) NowMillis() int64 {
	return timeNowMillis() + ts.Offset()
}

// Offset 返回当前时间偏移量（毫秒）
func (ts *TimeSync) Offset() int64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.offset
}

// LastSync 最近一次成功同步的时间
func (ts *TimeSync) LastSync() time.Time {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.lastSync
}
