package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/newplayman/bingx-dashboard/internal/config"
	gateway "github.com/newplayman/bingx-dashboard/internal/exchange"
	"github.com/newplayman/bingx-dashboard/internal/secrets"
)

func main() {
	cfgPath := flag.String("config", "configs/dashboard.yaml", "配置文件路径")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("读取 .env 失败")
	}
	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("加载配置失败")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	creds, err := secrets.Resolve(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("读取 API 凭证失败")
	}
	rest := gateway.NewBingXRESTClient(cfg.BingX.BaseURL, creds.APIKey, creds.SecretKey, &http.Client{Timeout: cfg.RequestTimeout()})
	rest.RecvWindowMs = cfg.BingX.RecvWindowMs

	for _, symbol := range cfg.Symbols {
		log.Info().Str("symbol", symbol).Msg("查询挂单...")
		orders, err := rest.OpenOrders(ctx, symbol)
		if err != nil {
			log.Error().Err(err).Str("kind", gateway.ErrorKind(err)).Msg("查询失败")
			continue
		}
		log.Info().Int("count", len(orders)).Msg("挂单数量")
		for _, o := range orders {
			fmt.Printf("Order: ID=%s ClientID=%s %s/%s %s Price=%.4f Qty=%.4f Filled=%.4f\n",
				o.OrderID, o.ClientOrderID, o.Side, o.PositionSide, o.Type,
				o.Price.Float64(), o.OrigQty.Float64(), o.ExecutedQty.Float64())
		}
	}
}
