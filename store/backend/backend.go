// Package backend opens the artifact store selected in the configuration.
package backend

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/holysaw/holysaw/store"
	"github.com/holysaw/holysaw/store/bolt"
	"github.com/holysaw/holysaw/store/redis"
)

// Options select and configure a store backend.
type Options struct {
	Backend       string // "memory", "redis" or "bolt"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	BoltPath      string
	Prefix        string
	TTL           time.Duration
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open returns the configured store and a closer that releases it. A Redis
// backend is pinged before it is returned.
func Open(ctx context.Context, o Options) (store.Store, io.Closer, error) {
	switch o.Backend {
	case "", "memory":
		return store.NewMemory(), nopCloser{}, nil
	case "redis":
		var opts []redis.Option
		if o.Prefix != "" {
			opts = append(opts, redis.WithPrefix(o.Prefix))
		}
		if o.TTL > 0 {
			opts = append(opts, redis.WithTTL(o.TTL))
		}
		s := redis.New(o.RedisAddr, o.RedisPassword, o.RedisDB, opts...)
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
		return s, s, nil
	case "bolt":
		s, err := bolt.Open(o.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q (want memory, redis or bolt)", o.Backend)
}
