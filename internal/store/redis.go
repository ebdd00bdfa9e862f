package store

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis 每个 namespace 两个 hash：kv:<ns> 存值，kv:<ns>:ts 存更新时间（毫秒）
type Redis struct {
	client *redis.Client
}

// NewRedis 连接 Redis 并 ping 一次
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MinIdleConns: 1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "redis ping %s", addr)
	}
	log.Info().Str("addr", addr).Int("db", db).Msg("Redis connected")
	return &Redis{client: client}, nil
}

func valuesKey(namespace string) string { return "kv:" + namespace }
func stampsKey(namespace string) string { return "kv:" + namespace + ":ts" }

func (r *Redis) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	value, err := r.client.HGet(ctx, valuesKey(namespace), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s/%s", namespace, key)
	}
	return value, nil
}

func (r *Redis) Put(ctx context.Context, namespace, key string, value []byte) error {
	if err := validKey(namespace, key); err != nil {
		return err
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, valuesKey(namespace), key, value)
		pipe.HSet(ctx, stampsKey(namespace), key, time.Now().UnixMilli())
		return nil
	})
	return errors.Wrapf(err, "put %s/%s", namespace, key)
}

func (r *Redis) Delete(ctx context.Context, namespace, key string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, valuesKey(namespace), key)
		pipe.HDel(ctx, stampsKey(namespace), key)
		return nil
	})
	return errors.Wrapf(err, "delete %s/%s", namespace, key)
}

func (r *Redis) List(ctx context.Context, namespace string, limit int) ([]Entry, error) {
	values, err := r.client.HGetAll(ctx, valuesKey(namespace)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", namespace)
	}
	stamps, err := r.client.HGetAll(ctx, stampsKey(namespace)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "list %s timestamps", namespace)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		ms, _ := strconv.ParseInt(stamps[k], 10, 64)
		out = append(out, Entry{
			Namespace: namespace,
			Key:       k,
			Value:     []byte(values[k]),
			UpdatedAt: time.UnixMilli(ms),
		})
	}
	return out, nil
}

func (r *Redis) DeleteBefore(ctx context.Context, namespace, before string) (int64, error) {
	keys, err := r.client.HKeys(ctx, valuesKey(namespace)).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "prune %s", namespace)
	}
	var stale []string
	for _, k := range keys {
		if k < before {
			stale = append(stale, k)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, valuesKey(namespace), stale...)
		pipe.HDel(ctx, stampsKey(namespace), stale...)
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "prune %s", namespace)
	}
	return int64(len(stale)), nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
