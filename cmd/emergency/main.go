package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/newplayman/bingx-dashboard/internal/config"
	gateway "github.com/newplayman/bingx-dashboard/internal/exchange"
	"github.com/newplayman/bingx-dashboard/internal/secrets"
)

func setupLogger(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func main() {
	cfgPath := flag.String("config", "configs/dashboard.yaml", "配置文件路径")
	logLevel := flag.String("log", "info", "日志级别 (debug, info, warn, error)")
	all := flag.Bool("all", false, "忽略配置的合约列表，一键平掉账户全部仓位")
	flag.Parse()

	setupLogger(*logLevel)
	log.Info().Msg("BingX 紧急刹车工具启动...")

	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("读取 .env 失败")
	}
	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("加载配置失败")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	creds, err := secrets.Resolve(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("读取 API 凭证失败")
	}
	httpCli := gateway.NewDefaultHTTPClient()
	httpCli.Timeout = cfg.RequestTimeout()
	rest, _ := gateway.BuildBingXClient(ctx, gateway.EnvConfig{
		APIKey:    creds.APIKey,
		SecretKey: creds.SecretKey,
		RestURL:   cfg.BingX.BaseURL,
	}, httpCli, gateway.ClientOptions{
		RecvWindowMs: cfg.BingX.RecvWindowMs,
		SyncTime:     cfg.BingX.SyncTime,
	})
	if err := rest.CheckCredentials(); err != nil {
		log.Fatal().Err(err).Msg("缺少 API 凭证")
	}

	if *all {
		res, err := rest.CloseAllPositions(ctx, "")
		if err != nil {
			log.Fatal().Err(err).Msg("一键平仓失败")
		}
		log.Warn().Int("success", len(res.Success)).Int("failed", len(res.Failed)).Msg("已提交全部平仓")
		return
	}

	// 先撤销所有挂单，再市价平仓
	for _, symbol := range cfg.Symbols {
		log.Info().Str("symbol", symbol).Msg("撤销所有挂单...")
		if res, err := rest.CancelAllOrders(ctx, symbol); err != nil {
			log.Error().Err(err).Str("symbol", symbol).Str("kind", gateway.ErrorKind(err)).Msg("撤单失败")
		} else {
			log.Info().Str("symbol", symbol).Int("cancelled", len(res.Success)).Msg("撤单完成")
		}
	}

	for _, symbol := range cfg.Symbols {
		res, err := rest.CloseAllPositions(ctx, symbol)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Str("kind", gateway.ErrorKind(err)).Msg("平仓失败")
			continue
		}
		if len(res.Success) == 0 && len(res.Failed) == 0 {
			log.Info().Str("symbol", symbol).Msg("无需平仓：仓位为0")
			continue
		}
		log.Warn().Str("symbol", symbol).Int("success", len(res.Success)).Int("failed", len(res.Failed)).Msg("平仓单已提交")
	}

	log.Info().Msg("BingX 紧急刹车完成。")
}
