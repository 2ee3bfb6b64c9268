package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const clientName = "docqa-client"

// Options are the connection and pool settings from the [redis] section.
// Zero values fall back to defaults sized for a single CLI or console
// process.
type Options struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	Timeout      time.Duration
}

func (o Options) clientOptions() *redis.Options {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	poolSize := o.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	minIdle := o.MinIdleConns
	if minIdle < 0 || minIdle > poolSize {
		minIdle = 0
	}
	return &redis.Options{
		Addr:            o.Addr,
		Password:        o.Password,
		DB:              o.DB,
		ClientName:      clientName,
		PoolSize:        poolSize,
		MinIdleConns:    minIdle,
		ConnMaxIdleTime: 5 * time.Minute,
		DialTimeout:     timeout + time.Second,
		ReadTimeout:     timeout,
		WriteTimeout:    timeout,
		MaxRetries:      1,
	}
}

// New connects and pings once. The session pub/sub subscription holds one
// pooled connection for the life of the client.
func New(ctx context.Context, opts Options) (*redis.Client, error) {
	clientOpts := opts.clientOptions()
	client := redis.NewClient(clientOpts)

	pingCtx, cancel := context.WithTimeout(ctx, clientOpts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s failed: %w", opts.Addr, err)
	}
	return client, nil
}
