package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEtcd connects to a local etcd, skipping the test when none is running.
func newEtcd(t *testing.T) *EtcdRegistry {
	t.Helper()
	reg, err := NewEtcdRegistry([]string{"localhost:2379"}, time.Second)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := reg.Ping(ctx); err != nil {
		reg.Close()
		t.Skipf("etcd not reachable: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestEtcdRegisterAndDiscover(t *testing.T) {
	reg := newEtcd(t)
	ctx := context.Background()

	inst1 := ServiceInstance{Addr: "127.0.0.1:8001", Weight: 10, Version: "1.0"}
	inst2 := ServiceInstance{Addr: "127.0.0.1:8002", Weight: 5, Version: "1.0"}
	require.NoError(t, reg.Register(ctx, "shop-test", inst1, 10))
	require.NoError(t, reg.Register(ctx, "shop-test", inst2, 10))

	instances, err := reg.Discover(ctx, "shop-test")
	require.NoError(t, err)
	assert.Len(t, instances, 2)

	require.NoError(t, reg.Deregister(ctx, "shop-test", inst1.Addr))
	instances, err = reg.Discover(ctx, "shop-test")
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, inst2.Addr, instances[0].Addr)

	require.NoError(t, reg.Deregister(ctx, "shop-test", inst2.Addr))
}
