// Package clickhouse opens the database/sql pool the snapshot store and the
// query API share.
package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
)

type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string

	HTTP         bool
	AsyncInsert  bool
	WaitForAsync bool
	MaxExecution time.Duration

	DialTimeout time.Duration
	ReadTimeout time.Duration

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = 9000
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = c.MaxOpenConns / 2
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
	return c
}

// options maps c onto the driver's options. Per-query settings ride along
// with every statement the pool executes.
func (c Config) options() *ch.Options {
	opts := &ch.Options{
		Protocol: ch.Native,
		Addr:     []string{net.JoinHostPort(c.Host, strconv.Itoa(c.Port))},
		Auth: ch.Auth{
			Database: c.Database,
			Username: c.User,
			Password: c.Password,
		},
		DialTimeout:     c.DialTimeout,
		ReadTimeout:     c.ReadTimeout,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		Settings:        ch.Settings{},
	}
	if c.HTTP {
		opts.Protocol = ch.HTTP
	}
	if c.MaxExecution > 0 {
		opts.Settings["max_execution_time"] = int(c.MaxExecution.Seconds())
	}
	if c.AsyncInsert {
		opts.Settings["async_insert"] = 1
		if c.WaitForAsync {
			opts.Settings["wait_for_async_insert"] = 1
		}
	}
	return opts
}

// Client owns the pool.
type Client struct {
	db *sql.DB
}

// Open builds the pool and checks the server answers within the dial timeout.
func Open(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("clickhouse: host is required")
	}
	cfg = cfg.withDefaults()
	db := ch.OpenDB(cfg.options())

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping %s: %w", cfg.Host, err)
	}
	return &Client{db: db}, nil
}

func (c *Client) DB() *sql.DB { return c.db }

func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
