// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"

	"github.com/innovationmech/assetsaga/pkg/saga"
)

// Backend names accepted by New.
const (
	TypeMemory = "memory"
	TypeSQL    = "sql"
	TypeRedis  = "redis"
)

// Store is a RecordStore that owns a connection.
type Store interface {
	saga.RecordStore
	Close() error
}

// Config selects and configures a record store backend.
type Config struct {
	Type  string          `mapstructure:"type"`
	SQL   SQLConfig       `mapstructure:"sql"`
	Redis RedisConnConfig `mapstructure:"redis"`
}

// SQLConfig configures the SQL backend.
type SQLConfig struct {
	// Driver is "postgres" or "sqlite3".
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConnConfig configures the Redis backend.
type RedisConnConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	TerminalTTL time.Duration `mapstructure:"terminal_ttl"`
}

// New opens the backend named by cfg.Type.
func New(ctx context.Context, cfg *Config, opts ...Option) (Store, error) {
	if cfg == nil {
		return NewMemoryRecordStore(opts...), nil
	}

	switch cfg.Type {
	case "", TypeMemory:
		return NewMemoryRecordStore(opts...), nil

	case TypeSQL:
		dialect := Dialect(cfg.SQL.Driver)
		if !dialect.Valid() {
			return nil, fmt.Errorf("unsupported sql driver %q", cfg.SQL.Driver)
		}
		db, err := sql.Open(cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s database: %w", cfg.SQL.Driver, err)
		}
		if cfg.SQL.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.SQL.MaxOpenConns)
		}
		if cfg.SQL.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.SQL.MaxIdleConns)
		}
		if cfg.SQL.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.SQL.ConnMaxLifetime)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.SQL.Driver, err)
		}
		store, err := NewSQLRecordStore(db, dialect, opts...)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if cfg.SQL.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return store, nil

	case TypeRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		store, err := NewRedisRecordStore(client, &RedisConfig{
			KeyPrefix:   cfg.Redis.KeyPrefix,
			TerminalTTL: cfg.Redis.TerminalTTL,
		}, opts...)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported record store type %q", cfg.Type)
	}
}
