package dashboard

import (
	"context"
	"fmt"
	"regexp"

	"github.com/pkg/errors"

	gateway "github.com/newplayman/bingx-dashboard/internal/exchange"
	"github.com/newplayman/bingx-dashboard/internal/store"
)

const maxWatchlist = 50

// BingX 合约格式：BTC-USDT
var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{1,20}-[A-Z]{2,10}$`)

type watchlist struct {
	Symbols []string `json:"symbols"`
}

// Watchlist 读取关注列表；未保存过时返回配置里的默认值
func (s *Service) Watchlist(ctx context.Context) ([]string, error) {
	var w watchlist
	err := store.GetJSON(ctx, s.kv, NamespaceSettings, keyWatchlist, &w)
	if errors.Is(err, store.ErrNotFound) {
		return append([]string(nil), s.symbols...), nil
	}
	if err != nil {
		return nil, err
	}
	return w.Symbols, nil
}

// SetWatchlist 保存关注列表（去重、转大写）
func (s *Service) SetWatchlist(ctx context.Context, symbols []string) ([]string, error) {
	symbols = normalizeSymbols(symbols)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: watchlist is empty", gateway.ErrInvalidParams)
	}
	if len(symbols) > maxWatchlist {
		return nil, fmt.Errorf("%w: at most %d symbols", gateway.ErrInvalidParams, maxWatchlist)
	}
	for _, sym := range symbols {
		if !symbolPattern.MatchString(sym) {
			return nil, fmt.Errorf("%w: bad symbol %q", gateway.ErrInvalidParams, sym)
		}
	}
	if err := store.PutJSON(ctx, s.kv, NamespaceSettings, keyWatchlist, watchlist{Symbols: symbols}); err != nil {
		return nil, err
	}
	return symbols, nil
}
