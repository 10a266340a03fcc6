package backend_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/holysaw/holysaw/store"
	"github.com/holysaw/holysaw/store/backend"
	"github.com/holysaw/holysaw/store/bolt"
	"github.com/holysaw/holysaw/store/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	tests := []struct {
		name string
		opts backend.Options
		want any
	}{
		{"default", backend.Options{}, &store.Memory{}},
		{"memory", backend.Options{Backend: "memory"}, &store.Memory{}},
		{"redis", backend.Options{Backend: "redis", RedisAddr: mr.Addr(), Prefix: "t:"}, &redis.Store{}},
		{"bolt", backend.Options{Backend: "bolt", BoltPath: filepath.Join(t.TempDir(), "a.db")}, &bolt.Store{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, closer, err := backend.Open(ctx, tt.opts)
			require.NoError(t, err)
			defer closer.Close()
			assert.IsType(t, tt.want, s)
			require.NoError(t, s.Put(ctx, "k", []byte("v")))
		})
	}
	assert.True(t, mr.Exists("t:k"))
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()
	_, _, err := backend.Open(ctx, backend.Options{Backend: "tape"})
	assert.Error(t, err)
	_, _, err = backend.Open(ctx, backend.Options{Backend: "redis", RedisAddr: "127.0.0.1:1"})
	assert.Error(t, err)
}
