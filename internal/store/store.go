// Package store 通用键值表 kv(namespace, key, value, updated_at)，面板的设置与快照都存在这里。
package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound key 不存在
var ErrNotFound = errors.New("store: not found")

// Entry 一条记录
type Entry struct {
	Namespace string    `json:"namespace"`
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KV 键值存储。List 按 key 升序返回，limit <= 0 表示全部。
type KV interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Put(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace, key string) error
	List(ctx context.Context, namespace string, limit int) ([]Entry, error)
	// DeleteBefore 删除 key 字典序小于 before 的记录，返回删除条数
	DeleteBefore(ctx context.Context, namespace, before string) (int64, error)
	Close() error
}

// Options 打开存储的参数
type Options struct {
	Driver        string // sqlite / postgres / redis
	DSN           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Open 按 driver 打开对应后端
func Open(ctx context.Context, opts Options) (KV, error) {
	switch strings.ToLower(opts.Driver) {
	case "", "sqlite", "sqlite3":
		return NewSQLite(opts.DSN)
	case "postgres", "postgresql", "pg":
		return NewPostgres(ctx, opts.DSN)
	case "redis":
		return NewRedis(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
	default:
		return nil, errors.Errorf("store: unknown driver %q", opts.Driver)
	}
}

// GetJSON 读取并反序列化
func GetJSON(ctx context.Context, kv KV, namespace, key string, out any) error {
	raw, err := kv.Get(ctx, namespace, key)
	if err != nil {
		return err
	}
	return errors.Wrapf(json.Unmarshal(raw, out), "store: decode %s/%s", namespace, key)
}

// PutJSON 序列化后写入
func PutJSON(ctx context.Context, kv KV, namespace, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "store: encode %s/%s", namespace, key)
	}
	return kv.Put(ctx, namespace, key, raw)
}

func validKey(namespace, key string) error {
	if namespace == "" || key == "" {
		return errors.New("store: namespace and key are required")
	}
	return nil
}
