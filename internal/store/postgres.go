package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS kv (
	namespace  VARCHAR(64)  NOT NULL,
	key        VARCHAR(256) NOT NULL,
	value      BYTEA        NOT NULL,
	updated_at BIGINT       NOT NULL,
	PRIMARY KEY (namespace, key)
)`

// Postgres 多实例共享时使用
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres 建立连接池并建表
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse database config")
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "unable to ping database")
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "create kv table")
	}
	log.Info().Str("database", poolConfig.ConnConfig.Database).Msg("Successfully connected to PostgreSQL")
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM kv WHERE namespace = $1 AND key = $2`, namespace, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s/%s", namespace, key)
	}
	return value, nil
}

func (p *Postgres) Put(ctx context.Context, namespace, key string, value []byte) error {
	if err := validKey(namespace, key); err != nil {
		return err
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO kv (namespace, key, value, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, namespace, key, value, time.Now().UnixMilli())
	return errors.Wrapf(err, "put %s/%s", namespace, key)
}

func (p *Postgres) Delete(ctx context.Context, namespace, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM kv WHERE namespace = $1 AND key = $2`, namespace, key)
	return errors.Wrapf(err, "delete %s/%s", namespace, key)
}

func (p *Postgres) List(ctx context.Context, namespace string, limit int) ([]Entry, error) {
	query := `SELECT key, value, updated_at FROM kv WHERE namespace = $1 ORDER BY key ASC`
	args := []any{namespace}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", namespace)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e := Entry{Namespace: namespace}
		var ms int64
		if err := rows.Scan(&e.Key, &e.Value, &ms); err != nil {
			return nil, errors.Wrap(err, "scan kv row")
		}
		e.UpdatedAt = time.UnixMilli(ms)
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "iterate kv rows")
}

func (p *Postgres) DeleteBefore(ctx context.Context, namespace, before string) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM kv WHERE namespace = $1 AND key < $2`, namespace, before)
	if err != nil {
		return 0, errors.Wrapf(err, "prune %s", namespace)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
