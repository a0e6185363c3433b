package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mr := miniredis.RunT(t)

		client, err := New(context.Background(), mr.Addr(), WithDB(0), WithPoolSize(2))
		require.NoError(t, err)
		t.Cleanup(func() {
			client.Close()
		})

		require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())

		got, err := mr.Get("k")
		require.NoError(t, err)
		assert.Equal(t, "v", got)
	})

	t.Run("wrong password", func(t *testing.T) {
		mr := miniredis.RunT(t)
		mr.RequireAuth("secret")

		client, err := New(context.Background(), mr.Addr(), WithPassword("wrong"))

		assert.Error(t, err)
		assert.Nil(t, client)
	})

	t.Run("unreachable server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		client, err := New(context.Background(), addr, WithDialTimeout(100*time.Millisecond))

		assert.Error(t, err)
		assert.Nil(t, client)
	})
}
