package session

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ClientConfig describes the redis connections. ReplicaURL is optional: when
// empty, reads are served by the primary.
type ClientConfig struct {
	URL        string
	ReplicaURL string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// Clients bundles the primary (write) and replica (read) redis clients.
type Clients struct {
	Primary *redis.Client
	Replica *redis.Client
}

// NewClients connects to the primary and, if configured, the replica, and
// verifies both connections.
func NewClients(cfg ClientConfig) (*Clients, error) {
	primary, err := newClient(cfg, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("primary: %w", err)
	}

	replica := primary
	if cfg.ReplicaURL != "" {
		replica, err = newClient(cfg, cfg.ReplicaURL)
		if err != nil {
			primary.Close()
			return nil, fmt.Errorf("replica: %w", err)
		}
	}

	return &Clients{Primary: primary, Replica: replica}, nil
}

func newClient(cfg ClientConfig, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB >= 0 {
		opts.DB = cfg.DB
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// Close closes both clients.
func (c *Clients) Close() error {
	err := c.Primary.Close()
	if c.Replica != c.Primary {
		if rerr := c.Replica.Close(); err == nil {
			err = rerr
		}
	}
	return err
}
