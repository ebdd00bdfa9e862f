package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/newplayman/bingx-dashboard/internal/api"
	"github.com/newplayman/bingx-dashboard/internal/auth"
	"github.com/newplayman/bingx-dashboard/internal/config"
	"github.com/newplayman/bingx-dashboard/internal/dashboard"
	gateway "github.com/newplayman/bingx-dashboard/internal/exchange"
	"github.com/newplayman/bingx-dashboard/internal/metrics"
	"github.com/newplayman/bingx-dashboard/internal/risk"
	"github.com/newplayman/bingx-dashboard/internal/secrets"
	"github.com/newplayman/bingx-dashboard/internal/store"
	"github.com/newplayman/bingx-dashboard/internal/watchdog"
)

var (
	configFile   = flag.String("config", "configs/dashboard.yaml", "配置文件路径，留空只用默认值和环境变量")
	port         = flag.Int("port", 0, "面板端口，覆盖配置")
	logLevel     = flag.String("log", "", "日志级别 (debug, info, warn, error)，覆盖配置")
	hashPassword = flag.String("hash-password", "", "输出密码的 bcrypt 哈希后退出")
)

func main() {
	flag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("读取 .env 失败")
	}
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("加载配置失败")
	}
	if *logLevel != "" {
		cfg.Global.LogLevel = *logLevel
	}
	if *port > 0 {
		cfg.Dashboard.Port = *port
	}
	setupLogger(cfg.Global.LogLevel)

	log.Info().
		Str("base_url", cfg.BingX.BaseURL).
		Strs("symbols", cfg.Symbols).
		Str("store", cfg.Store.Driver).
		Bool("auth", cfg.Auth.Enabled).
		Msg("BingX 面板启动中...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 配置热更新只应用日志级别，其余项需要重启
	config.Watch(func(c *config.Config) {
		setupLogger(c.Global.LogLevel)
		log.Info().Str("level", c.Global.LogLevel).Msg("配置已重新加载")
	})

	creds, err := secrets.Resolve(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("读取 API 凭证失败")
	}

	httpCli := gateway.NewDefaultHTTPClient()
	httpCli.Timeout = cfg.RequestTimeout()
	rest, ts := gateway.BuildBingXClient(ctx, gateway.EnvConfig{
		APIKey:    creds.APIKey,
		SecretKey: creds.SecretKey,
		RestURL:   cfg.BingX.BaseURL,
	}, httpCli, gateway.ClientOptions{
		RecvWindowMs: cfg.BingX.RecvWindowMs,
		RateLimit:    cfg.BingX.RateLimit,
		RateBurst:    cfg.BingX.RateBurst,
		SyncTime:     cfg.BingX.SyncTime,
		Observer:     metrics.ObserveAPICall,
	})
	if ts != nil {
		ts.SetInterval(cfg.SyncInterval())
		go ts.Run(ctx)
	}

	var wd *watchdog.Watchdog
	if cfg.HealthCheckInterval() > 0 {
		wd = watchdog.NewWatchdog(watchdog.Config{PingInterval: cfg.HealthCheckInterval()},
			watchdog.PingFunc(func(ctx context.Context) error {
				_, err := rest.ServerTime(ctx)
				return err
			}),
			watchdog.Hooks{
				OnRecovered: func(reason string) {
					// 网络恢复后重新对时
					if ts == nil {
						return
					}
					if err := ts.Sync(ctx); err != nil {
						log.Warn().Err(err).Str("reason", reason).Msg("重新对时失败")
					}
				},
			})
		wd.Start(ctx)
		defer wd.Stop()
	}

	kv, err := store.Open(ctx, store.Options{
		Driver:        cfg.Store.Driver,
		DSN:           cfg.Store.DSN,
		RedisAddr:     cfg.Store.RedisAddr,
		RedisPassword: cfg.Store.RedisPassword,
		RedisDB:       cfg.Store.RedisDB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("打开存储失败")
	}
	defer kv.Close()

	riskMgr := risk.NewRiskManager(risk.Limits{
		MaxOrderNotional: cfg.Risk.MaxOrderNotional,
		MaxLeverage:      cfg.Risk.MaxLeverage,
		RestrictSymbols:  cfg.Risk.RestrictSymbols,
	}, cfg.Symbols, func(ctx context.Context, symbol string) (float64, error) {
		t, err := rest.Ticker(ctx, symbol)
		return t.LastPrice.Float64(), err
	})

	svc := dashboard.NewService(rest, kv, dashboard.Options{
		Symbols:           cfg.Symbols,
		SnapshotRetention: cfg.SnapshotRetention(),
		Risk:              riskMgr,
	})

	if cfg.Snapshot.Enabled {
		go svc.RunSnapshots(ctx, cfg.SnapshotInterval())
	}

	if cfg.Global.MetricsPort > 0 {
		if _, err := metrics.StartMetricsServer(cfg.Global.MetricsPort); err != nil {
			log.Error().Err(err).Msg("Prometheus 服务启动失败")
		}
	}

	var authMgr *auth.Manager
	if cfg.Auth.Enabled {
		authMgr, err = auth.NewManager(cfg.Auth.Username, cfg.Auth.PasswordHash, cfg.Auth.JWTSecret, cfg.TokenTTL())
		if err != nil {
			log.Fatal().Err(err).Msg("初始化登录失败")
		}
	}

	server := api.NewServer(api.Config{
		CORSOrigins:  cfg.Dashboard.CORSOrigins,
		StaticDir:    cfg.Dashboard.StaticDir,
		OverviewPush: cfg.OverviewPushInterval(),
		Release:      cfg.Global.LogLevel != "debug" && cfg.Global.LogLevel != "trace",
		Health:       healthReporter(wd),
	}, svc, authMgr)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Dashboard.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Int("port", cfg.Dashboard.Port).Msg("面板 HTTP 服务已启动")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP 服务异常退出")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("收到退出信号，开始优雅关闭...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP 服务关闭失败")
	}
	log.Info().Msg("BingX 面板已退出")
}

// healthReporter 避免把 nil *Watchdog 装进非 nil 接口
func healthReporter(wd *watchdog.Watchdog) api.HealthReporter {
	if wd == nil {
		return nil
	}
	return wd
}

func setupLogger(level string) {
	switch level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
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
