package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	gateway "github.com/newplayman/bingx-dashboard/internal/exchange"
)

// BingX 资金流水类型
const (
	IncomeRealizedPnL = "REALIZED_PNL"
	IncomeFundingFee  = "FUNDING_FEE"
	IncomeTradingFee  = "TRADING_FEE"
)

const (
	maxPnLDays     = 90
	incomePageSize = 1000
	maxIncomePages = 50
)

// PnLPoint 每个 UTC 自然日的盈亏
type PnLPoint struct {
	Date       string  `json:"date"` // 2006-01-02
	Realized   float64 `json:"realized"`
	Funding    float64 `json:"funding"`
	Fees       float64 `json:"fees"`
	Net        float64 `json:"net"`
	Cumulative float64 `json:"cumulative"`
}

// PnLSeries 最近 days 天的每日盈亏，没有流水的日子补 0
func (s *Service) PnLSeries(ctx context.Context, days int) ([]PnLPoint, error) {
	if days <= 0 || days > maxPnLDays {
		return nil, fmt.Errorf("%w: days must be in [1, %d]", gateway.ErrInvalidParams, maxPnLDays)
	}
	now := s.now().UTC()
	first := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))

	recs, err := s.incomeSince(ctx, first.UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, err
	}
	return bucketIncome(recs, first, days), nil
}

// incomeSince 按 startTime 翻页拉取 [start, end] 的全部流水。
// 下一页从本页最大时间戳开始（含），边界上重复的记录按 tranId 去重。
func (s *Service) incomeSince(ctx context.Context, start, end int64) ([]gateway.IncomeRecord, error) {
	var all []gateway.IncomeRecord
	seen := make(map[string]struct{})
	for page := 0; ; page++ {
		if page == maxIncomePages {
			log.Warn().Int("records", len(all)).Int64("next_start", start).Msg("资金流水超过翻页上限，盈亏曲线不完整")
			return all, nil
		}
		recs, err := s.ex.Income(ctx, gateway.HistoryQuery{
			StartTime: start,
			EndTime:   end,
			Limit:     incomePageSize,
		})
		if err != nil {
			return nil, err
		}
		latest := start
		for _, r := range recs {
			key := incomeKey(r)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			all = append(all, r)
			if r.Time > latest {
				latest = r.Time
			}
		}
		if len(recs) < incomePageSize {
			return all, nil
		}
		if latest <= start {
			// 整页都在同一毫秒，只能跳过这一毫秒
			latest = start + 1
		}
		start = latest
	}
}

func incomeKey(r gateway.IncomeRecord) string {
	if r.TranID != "" {
		return string(r.TranID)
	}
	return fmt.Sprintf("%s|%s|%d|%v", r.IncomeType, r.Symbol, r.Time, float64(r.Income))
}

func bucketIncome(recs []gateway.IncomeRecord, first time.Time, days int) []PnLPoint {
	points := make([]PnLPoint, days)
	index := make(map[string]int, days)
	for i := range points {
		d := first.AddDate(0, 0, i).Format("2006-01-02")
		points[i].Date = d
		index[d] = i
	}
	for _, r := range recs {
		i, ok := index[time.UnixMilli(r.Time).UTC().Format("2006-01-02")]
		if !ok {
			continue
		}
		v := r.Income.Float64()
		switch r.IncomeType {
		case IncomeRealizedPnL:
			points[i].Realized += v
		case IncomeFundingFee:
			points[i].Funding += v
		case IncomeTradingFee:
			points[i].Fees += v
		default:
			// 划转、赠金等不计入盈亏
			continue
		}
	}
	var cum float64
	for i := range points {
		p := &points[i]
		p.Realized = round(p.Realized, 8)
		p.Funding = round(p.Funding, 8)
		p.Fees = round(p.Fees, 8)
		p.Net = round(p.Realized+p.Funding+p.Fees, 8)
		cum += p.Net
		p.Cumulative = round(cum, 8)
	}
	return points
}
