// Package storetest keeps the test suite every store.Store must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/holysaw/holysaw/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunContract checks that s behaves like a store.Store.
func RunContract(t *testing.T, s store.Store) {
	ctx := context.Background()
	jobID := "contract-" + time.Now().Format("20060102150405")

	t.Run("Put and Get", func(t *testing.T) {
		key := store.ResultKey(jobID, "wav")
		data := []byte("RIFF\x00\x01\x02")
		require.NoError(t, s.Put(ctx, key, data))
		got, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("Put overwrites", func(t *testing.T) {
		key := store.ResultKey(jobID, "trace")
		require.NoError(t, s.Put(ctx, key, []byte("first")))
		require.NoError(t, s.Put(ctx, key, []byte("second")))
		got, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "second", string(got))
	})

	t.Run("Get missing", func(t *testing.T) {
		_, err := s.Get(ctx, store.ResultKey("missing-"+jobID, "wav"))
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		key := store.ResultKey(jobID, "deleted")
		require.NoError(t, s.Put(ctx, key, []byte("x")))
		require.NoError(t, s.Delete(ctx, key))
		_, err := s.Get(ctx, key)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, s.Delete(ctx, key), "deleting a missing key is not an error")
	})

	t.Run("List", func(t *testing.T) {
		keys, err := s.List(ctx, "results/"+jobID+"/")
		require.NoError(t, err)
		assert.Equal(t, []string{store.ResultKey(jobID, "trace"), store.ResultKey(jobID, "wav")}, keys)
	})
}
