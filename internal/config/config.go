package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Global    GlobalConfig    `mapstructure:"global"`
	BingX     BingXConfig     `mapstructure:"bingx"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Store     StoreConfig     `mapstructure:"store"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Vault     VaultConfig     `mapstructure:"vault"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Symbols   []string        `mapstructure:"symbols" validate:"dive,required"` // 默认关注的合约 (e.g., BTC-USDT)
}

// GlobalConfig 全局配置
type GlobalConfig struct {
	LogLevel    string `mapstructure:"log_level" validate:"omitempty,oneof=trace debug info warn error"` // 日志级别
	MetricsPort int    `mapstructure:"metrics_port" validate:"min=0,max=65535"`                          // Prometheus 端口，0 关闭
}

// BingXConfig 交易所连接参数。凭证可以为空，调用签名接口时才报配置错误。
type BingXConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	SecretKey       string  `mapstructure:"secret_key"`
	BaseURL         string  `mapstructure:"base_url" validate:"required,url"`
	RecvWindowMs    int64   `mapstructure:"recv_window_ms" validate:"min=0,max=60000"`
	TimeoutMs       int     `mapstructure:"timeout_ms" validate:"min=100"`
	RateLimit       float64 `mapstructure:"rate_limit" validate:"min=0"` // 每秒请求数，0 不限速
	RateBurst       int     `mapstructure:"rate_burst" validate:"min=0"`
	SyncTime        bool    `mapstructure:"sync_time"`
	SyncIntervalSec int     `mapstructure:"sync_interval_sec" validate:"min=0"`
	HealthCheckSec  int     `mapstructure:"health_check_sec" validate:"min=0"` // REST 心跳间隔，0 关闭
}

// DashboardConfig HTTP 服务
type DashboardConfig struct {
	Port            int      `mapstructure:"port" validate:"min=1,max=65535"`
	StaticDir       string   `mapstructure:"static_dir"`
	CORSOrigins     []string `mapstructure:"cors_origins"`
	OverviewPushSec int      `mapstructure:"overview_push_sec" validate:"min=1"` // websocket 推送间隔
}

// StoreConfig 键值存储后端
type StoreConfig struct {
	Driver        string `mapstructure:"driver" validate:"oneof=sqlite postgres redis"`
	DSN           string `mapstructure:"dsn" validate:"required_unless=Driver redis"`
	RedisAddr     string `mapstructure:"redis_addr" validate:"required_if=Driver redis"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" validate:"min=0"`
}

// AuthConfig 单用户登录
type AuthConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Username     string `mapstructure:"username" validate:"required_if=Enabled true"`
	PasswordHash string `mapstructure:"password_hash" validate:"required_if=Enabled true"` // bcrypt
	JWTSecret    string `mapstructure:"jwt_secret" validate:"required_if=Enabled true"`
	TokenTTLMin  int    `mapstructure:"token_ttl_min" validate:"min=1"`
}

// VaultConfig 从 Vault KV 读取 API 凭证
type VaultConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address" validate:"required_if=Enabled true"`
	Token   string `mapstructure:"token"`
	Mount   string `mapstructure:"mount"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

// SnapshotConfig 权益快照
type SnapshotConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	IntervalSec   int  `mapstructure:"interval_sec" validate:"min=1"`
	RetentionDays int  `mapstructure:"retention_days" validate:"min=0"` // 0 不清理
}

// RiskConfig 面板手动下单限额，0 表示不限
type RiskConfig struct {
	MaxOrderNotional float64 `mapstructure:"max_order_notional" validate:"min=0"`
	MaxLeverage      int     `mapstructure:"max_leverage" validate:"min=0,max=150"`
	RestrictSymbols  bool    `mapstructure:"restrict_symbols"` // 只允许 symbols 里的合约
}

var (
	mu           sync.RWMutex
	globalConfig *Config
	activeViper  *viper.Viper
	validate     = validator.New()
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", "info")
	v.SetDefault("global.metrics_port", 0)

	v.SetDefault("bingx.base_url", "https://open-api.bingx.com")
	v.SetDefault("bingx.recv_window_ms", 5000)
	v.SetDefault("bingx.timeout_ms", 10000)
	v.SetDefault("bingx.rate_limit", 10)
	v.SetDefault("bingx.rate_burst", 5)
	v.SetDefault("bingx.sync_time", true)
	v.SetDefault("bingx.sync_interval_sec", 1800)
	v.SetDefault("bingx.health_check_sec", 30)

	v.SetDefault("dashboard.port", 8080)
	v.SetDefault("dashboard.static_dir", "")
	v.SetDefault("dashboard.cors_origins", []string{})
	v.SetDefault("dashboard.overview_push_sec", 5)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "./data/dashboard.db")
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.username", "admin")
	v.SetDefault("auth.password_hash", "")
	v.SetDefault("auth.token_ttl_min", 720)

	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.mount", "secret")
	v.SetDefault("vault.path", "")

	v.SetDefault("snapshot.enabled", true)
	v.SetDefault("snapshot.interval_sec", 300)
	v.SetDefault("snapshot.retention_days", 90)

	v.SetDefault("risk.max_order_notional", 0)
	v.SetDefault("risk.max_leverage", 0)
	v.SetDefault("risk.restrict_symbols", false)

	v.SetDefault("symbols", []string{"BTC-USDT", "ETH-USDT"})
}

// LoadDotEnv 加载 .env（不存在时忽略），已有的环境变量不会被覆盖
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("加载 %s 失败: %w", p, err)
		}
	}
	return nil
}

// LoadConfig 加载配置文件；path 为空时只用默认值与环境变量
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// 环境变量覆盖：BINGX_DASHBOARD_PORT -> dashboard.port
	v.SetEnvPrefix("BINGX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// 显式绑定凭证（与交易所文档里的变量名一致）
	v.BindEnv("bingx.api_key", "BINGX_API_KEY")
	v.BindEnv("bingx.secret_key", "BINGX_SECRET_KEY")
	v.BindEnv("bingx.base_url", "BINGX_REST_URL", "BINGX_BINGX_BASE_URL")
	v.BindEnv("auth.jwt_secret", "BINGX_JWT_SECRET", "BINGX_AUTH_JWT_SECRET")
	v.BindEnv("vault.token", "VAULT_TOKEN", "BINGX_VAULT_TOKEN")
	v.BindEnv("vault.address", "VAULT_ADDR", "BINGX_VAULT_ADDRESS")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	globalConfig = cfg
	activeViper = v
	mu.Unlock()

	if !cfg.HasCredentials() && !cfg.Vault.Enabled {
		log.Warn().Msg("未配置 BingX API 凭证，签名接口将返回配置错误")
	}
	log.Info().Str("path", path).Str("store", cfg.Store.Driver).Msg("配置加载成功")
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	normalize(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return &cfg, nil
}

func normalize(cfg *Config) {
	cfg.BingX.APIKey = strings.TrimSpace(cfg.BingX.APIKey)
	cfg.BingX.SecretKey = strings.TrimSpace(cfg.BingX.SecretKey)
	cfg.BingX.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BingX.BaseURL), "/")
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	for i, s := range cfg.Symbols {
		cfg.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
}

// validateConfig 验证配置有效性
func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s 不满足 %s", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return globalConfig
}

// Watch 监听配置文件变化并热重载，新配置通过校验后回调 fn
func Watch(fn func(*Config)) {
	mu.RLock()
	v := activeViper
	mu.RUnlock()
	if v == nil || v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info().Str("file", e.Name).Msg("检测到配置文件变化，正在重载...")
		newCfg, err := decode(v)
		if err != nil {
			log.Error().Err(err).Msg("新配置验证失败，保持旧配置")
			return
		}
		mu.Lock()
		globalConfig = newCfg
		mu.Unlock()
		log.Info().Msg("配置热重载成功")
		if fn != nil {
			fn(newCfg)
		}
	})
	v.WatchConfig()
}

// HasCredentials API key 与 secret 都已配置
func (c *Config) HasCredentials() bool {
	return c.BingX.APIKey != "" && c.BingX.SecretKey != ""
}

// RequestTimeout HTTP 客户端超时
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.BingX.TimeoutMs) * time.Millisecond
}

// SyncInterval 对时周期
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.BingX.SyncIntervalSec) * time.Second
}

// HealthCheckInterval REST 心跳间隔，0 表示关闭
func (c *Config) HealthCheckInterval() time.Duration {
	return time.Duration(c.BingX.HealthCheckSec) * time.Second
}

// SnapshotInterval 快照间隔
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.Snapshot.IntervalSec) * time.Second
}

// SnapshotRetention 快照保留时长，0 表示不清理
func (c *Config) SnapshotRetention() time.Duration {
	return time.Duration(c.Snapshot.RetentionDays) * 24 * time.Hour
}

// OverviewPushInterval websocket 推送间隔
func (c *Config) OverviewPushInterval() time.Duration {
	return time.Duration(c.Dashboard.OverviewPushSec) * time.Second
}

// TokenTTL JWT 有效期
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMin) * time.Minute
}

// HasSymbol 判断是否为配置中的合约
func (c *Config) HasSymbol(symbol string) bool {
	symbol = strings.ToUpper(symbol)
	for _, s := range c.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}
