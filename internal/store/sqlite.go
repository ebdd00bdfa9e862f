package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	namespace  TEXT    NOT NULL,
	key        TEXT    NOT NULL,
	value      BLOB    NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, key)
);`

// SQLite 本地单文件后端（默认）
type SQLite struct {
	conn *sql.DB
}

// NewSQLite 打开数据库并建表，目录不存在时自动创建
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = "dashboard.db"
	}
	log.Info().Str("path", path).Msg("Initializing database")
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create db dir")
		}
	}
	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}
	// sqlite 写入本身是串行的
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "ping db")
	}
	if _, err := conn.Exec(sqliteSchema); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "create kv table")
	}
	log.Info().Msg("Database connection established")
	return &SQLite{conn: conn}, nil
}

func (s *SQLite) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var value []byte
	err := s.conn.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE namespace = ? AND key = ?`, namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s/%s", namespace, key)
	}
	return value, nil
}

func (s *SQLite) Put(ctx context.Context, namespace, key string, value []byte) error {
	if err := validKey(namespace, key); err != nil {
		return err
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO kv (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, namespace, key, value, time.Now().UnixMilli())
	return errors.Wrapf(err, "put %s/%s", namespace, key)
}

func (s *SQLite) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM kv WHERE namespace = ? AND key = ?`, namespace, key)
	return errors.Wrapf(err, "delete %s/%s", namespace, key)
}

func (s *SQLite) List(ctx context.Context, namespace string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1 // sqlite: 负数表示不限
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT key, value, updated_at FROM kv
		WHERE namespace = ?
		ORDER BY key ASC
		LIMIT ?
	`, namespace, limit)
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

func (s *SQLite) DeleteBefore(ctx context.Context, namespace, before string) (int64, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM kv WHERE namespace = ? AND key < ?`, namespace, before)
	if err != nil {
		return 0, errors.Wrapf(err, "prune %s", namespace)
	}
	return res.RowsAffected()
}

func (s *SQLite) Close() error {
	return s.conn.Close()
}
