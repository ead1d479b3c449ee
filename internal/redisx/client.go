// Package redisx constructs the two Redis clients used by the device-side
// stores (Vault on one logical DB, Inventory on another) and reports their
// health.
package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClientOptions configures a single logical Redis connection.
type ClientOptions struct {
	Addr          string
	DB            int
	SocketTimeout time.Duration
}

// NewClient opens a *redis.Client against the given logical DB and verifies
// connectivity with a PING. The caller is responsible for Close().
func NewClient(ctx context.Context, opts ClientOptions) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		DB:           opts.DB,
		DialTimeout:  opts.SocketTimeout,
		ReadTimeout:  opts.SocketTimeout,
		WriteTimeout: opts.SocketTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, opts.SocketTimeout)
	defer cancel()

	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redisx: cannot connect to %s db=%d: %w", opts.Addr, opts.DB, err)
	}
	return c, nil
}

// Health reports the liveness and key count of a single Redis logical DB.
type Health struct {
	Connected bool
	KeyCount  int64
}

// CheckHealth pings c and, if reachable, reads its key count via DBSIZE.
// Connection errors are absorbed into Health.Connected = false rather than
// returned, since a health probe must never itself be fatal.
func CheckHealth(ctx context.Context, c *redis.Client) Health {
	if err := c.Ping(ctx).Err(); err != nil {
		return Health{Connected: false}
	}
	size, err := c.DBSize(ctx).Result()
	if err != nil {
		return Health{Connected: true, KeyCount: 0}
	}
	return Health{Connected: true, KeyCount: size}
}

// CloseAll closes every non-nil client, collecting the first error.
func CloseAll(clients ...*redis.Client) error {
	var firstErr error
	for _, c := range clients {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
