package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, mr.Addr(), c.Addr())
}

func TestClient_Ping_Password(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("hunter2")

	bad := New(mr.Addr(), "wrong", 0)
	t.Cleanup(func() { _ = bad.Close() })
	assert.Error(t, bad.Ping(context.Background()))

	good := New(mr.Addr(), "hunter2", 0)
	t.Cleanup(func() { _ = good.Close() })
	assert.NoError(t, good.Ping(context.Background()))
}

func TestClient_Ping_FailsFastAndNamesAddr(t *testing.T) {
	c := New("127.0.0.1:1", "", 0)
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := c.Ping(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}

func TestNewWithOptions_Defaults(t *testing.T) {
	c := NewWithOptions(Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = c.Close() })

	opts := c.rdb.Options()
	assert.Equal(t, defaultDialTimeout, opts.DialTimeout)
	assert.Equal(t, defaultIOTimeout, opts.ReadTimeout)
	assert.Equal(t, defaultIOTimeout, opts.WriteTimeout)

	c2 := NewWithOptions(Options{Addr: "127.0.0.1:1", ReadTimeout: time.Second, PoolSize: 3})
	t.Cleanup(func() { _ = c2.Close() })
	assert.Equal(t, time.Second, c2.rdb.Options().ReadTimeout)
	assert.Equal(t, 3, c2.rdb.Options().PoolSize)
}

func TestClient_Close_Idempotent(t *testing.T) {
	c := New("127.0.0.1:1", "", 0)
	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
