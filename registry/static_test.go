package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticRegisterAndDiscover(t *testing.T) {
	reg := NewStatic()
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, "shop", ServiceInstance{Addr: "b:1", Weight: 1}, 10))
	require.NoError(t, reg.Register(ctx, "shop", ServiceInstance{Addr: "a:1", Weight: 2}, 10))
	require.NoError(t, reg.Register(ctx, "other", ServiceInstance{Addr: "c:1"}, 10))

	instances, err := reg.Discover(ctx, "shop")
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, "a:1", instances[0].Addr)
	assert.Equal(t, 2, instances[0].Weight)

	require.NoError(t, reg.Deregister(ctx, "shop", "a:1"))
	instances, err = reg.Discover(ctx, "shop")
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "b:1", instances[0].Addr)

	instances, err = reg.Discover(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestStaticWatch(t *testing.T) {
	reg := NewStatic()
	ctx, cancel := context.WithCancel(context.Background())
	ch := reg.Watch(ctx, "shop")

	require.NoError(t, reg.Register(ctx, "shop", ServiceInstance{Addr: "a:1"}, 10))
	require.NoError(t, reg.Register(ctx, "shop", ServiceInstance{Addr: "b:1"}, 10))

	select {
	case list := <-ch:
		// only the latest list is kept for a slow reader
		assert.Len(t, list, 2)
	case <-time.After(time.Second):
		t.Fatal("no watch update")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, time.Second, 10*time.Millisecond)
}
