// Package secrets 在启动时解析 BingX API 凭证：配置/环境变量，或 Vault KV v2。
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/vault/api"
	"github.com/rs/zerolog/log"

	"github.com/newplayman/bingx-dashboard/internal/config"
)

// Credentials API 凭证
type Credentials struct {
	APIKey    string
	SecretKey string
	Source    string // config / vault
}

// ErrNotFound Vault 路径下没有数据
var ErrNotFound = errors.New("secrets: credentials not found in vault")

// VaultReader 从 Vault KV v2 读取凭证
type VaultReader struct {
	client *api.Client
	mount  string
	path   string
}

// NewVaultReader 创建 Vault 客户端
func NewVaultReader(cfg config.VaultConfig) (*VaultReader, error) {
	vc := api.DefaultConfig()
	vc.Address = cfg.Address
	vc.MaxRetries = 0
	client, err := api.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	mount := strings.Trim(cfg.Mount, "/")
	if mount == "" {
		mount = "secret"
	}
	return &VaultReader{client: client, mount: mount, path: strings.Trim(cfg.Path, "/")}, nil
}

// Read 读取 <mount>/data/<path> 下的 api_key / secret_key
func (r *VaultReader) Read(ctx context.Context) (Credentials, error) {
	secret, err := r.client.Logical().ReadWithContext(ctx, r.mount+"/data/"+r.path)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read credentials from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return Credentials{}, ErrNotFound
	}
	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return Credentials{}, fmt.Errorf("invalid secret format at %s/%s", r.mount, r.path)
	}
	return Credentials{
		APIKey:    strings.TrimSpace(getString(data, "api_key")),
		SecretKey: strings.TrimSpace(getString(data, "secret_key")),
		Source:    "vault",
	}, nil
}

// Resolve 按配置决定凭证来源；凭证为空不报错，由调用时的配置错误体现
func Resolve(ctx context.Context, cfg *config.Config) (Credentials, error) {
	if !cfg.Vault.Enabled {
		return Credentials{
			APIKey:    cfg.BingX.APIKey,
			SecretKey: cfg.BingX.SecretKey,
			Source:    "config",
		}, nil
	}
	reader, err := NewVaultReader(cfg.Vault)
	if err != nil {
		return Credentials{}, err
	}
	creds, err := reader.Read(ctx)
	if err != nil {
		return Credentials{}, err
	}
	log.Info().Str("path", cfg.Vault.Path).Bool("complete", creds.Complete()).Msg("从 Vault 读取 BingX 凭证")
	return creds, nil
}

// Complete key 与 secret 都不为空
func (c Credentials) Complete() bool {
	return c.APIKey != "" && c.SecretKey != ""
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
