package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/newplayman/bingx-dashboard/internal/metrics"
	"github.com/newplayman/bingx-dashboard/internal/store"
)

// Snapshot 一次权益快照，用于画权益曲线
type Snapshot struct {
	Time       int64   `json:"time"` // ms
	Equity     float64 `json:"equity"`
	Unrealized float64 `json:"unrealized"`
	Available  float64 `json:"available"`
}

// 定长毫秒时间戳作 key，字典序即时间序
func snapshotKey(ms int64) string {
	return fmt.Sprintf("%013d", ms)
}

// RecordSnapshot 拉一次资产写入快照，并按保留期清理旧数据
func (s *Service) RecordSnapshot(ctx context.Context) (Snapshot, error) {
	bal, err := s.ex.Balance(ctx)
	if err != nil {
		metrics.RecordSnapshot(err)
		return Snapshot{}, err
	}
	now := s.now()
	snap := Snapshot{
		Time:       now.UnixMilli(),
		Equity:     bal.Equity.Float64(),
		Unrealized: bal.UnrealizedProfit.Float64(),
		Available:  bal.AvailableMargin.Float64(),
	}
	if err := store.PutJSON(ctx, s.kv, NamespaceSnapshots, snapshotKey(snap.Time), snap); err != nil {
		metrics.RecordSnapshot(err)
		return Snapshot{}, err
	}
	metrics.RecordSnapshot(nil)

	if s.retention > 0 {
		cutoff := snapshotKey(now.Add(-s.retention).UnixMilli())
		n, err := s.kv.DeleteBefore(ctx, NamespaceSnapshots, cutoff)
		if err != nil {
			log.Warn().Err(err).Msg("清理过期快照失败")
		} else if n > 0 {
			log.Debug().Int64("deleted", n).Msg("清理过期快照")
		}
	}
	return snap, nil
}

// Snapshots 按时间升序返回最近 limit 条快照，limit <= 0 返回全部
func (s *Service) Snapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	entries, err := s.kv.List(ctx, NamespaceSnapshots, 0)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		var snap Snapshot
		if err := json.Unmarshal(e.Value, &snap); err != nil {
			log.Warn().Err(err).Str("key", e.Key).Msg("跳过损坏的快照")
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// RunSnapshots 立即记录一次，之后每 interval 记录一次，直到 ctx 取消
func (s *Service) RunSnapshots(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	record := func() {
		if _, err := s.RecordSnapshot(ctx); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("记录权益快照失败")
		}
	}
	record()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			record()
		}
	}
}
