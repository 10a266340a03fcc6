package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/holysaw/holysaw/store/redis"
	"github.com/holysaw/holysaw/store/storetest"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_Contract(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	s := redis.NewFromClient(client)
	require.NoError(t, s.Ping(context.Background()))
	storetest.RunContract(t, s)
}

func TestRedisStore_TTLAndPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	s := redis.New(mr.Addr(), "", 0, redis.WithTTL(time.Minute), redis.WithPrefix("test:"))
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "results/1/wav", []byte("data")))
	assert.True(t, mr.Exists("test:results/1/wav"))
	assert.Equal(t, time.Minute, mr.TTL("test:results/1/wav"))

	mr.FastForward(2 * time.Minute)
	_, err := s.Get(ctx, "results/1/wav")
	assert.Error(t, err)
}
