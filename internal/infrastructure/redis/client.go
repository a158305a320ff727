package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultDialTimeout = 2 * time.Second
	defaultIOTimeout   = 500 * time.Millisecond
	pingTimeout        = 2 * time.Second
)

// Options configures the shared connection. Zero timeouts take the
// package defaults; the identity cache and limiter are on the request
// path and must fail fast.
type Options struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// Client is the connection shared by the identity cache and the rate
// limiter.
type Client struct {
	rdb  *goredis.Client
	addr string
}

func New(addr, password string, db int) *Client {
	return NewWithOptions(Options{Addr: addr, Password: password, DB: db})
}

func NewWithOptions(o Options) *Client {
	if o.DialTimeout <= 0 {
		o.DialTimeout = defaultDialTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = defaultIOTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultIOTimeout
	}
	return &Client{
		addr: o.Addr,
		rdb: goredis.NewClient(&goredis.Options{
			Addr:         o.Addr,
			Password:     o.Password,
			DB:           o.DB,
			DialTimeout:  o.DialTimeout,
			ReadTimeout:  o.ReadTimeout,
			WriteTimeout: o.WriteTimeout,
			PoolSize:     o.PoolSize,
		}),
	}
}

func (c *Client) Addr() string { return c.addr }

// Ping is bounded by pingTimeout even when ctx has no deadline.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", c.addr, err)
	}
	return nil
}

// Close may be called more than once.
func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}

func rawClient(c *Client) *goredis.Client {
	if c == nil {
		return nil
	}
	return c.rdb
}
