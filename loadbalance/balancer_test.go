package loadbalance

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopwire/registry"
)

var testInstances = []registry.ServiceInstance{
	{Addr: ":8001", Weight: 10, Version: "1.0"},
	{Addr: ":8002", Weight: 5, Version: "1.0"},
	{Addr: ":8003", Weight: 10, Version: "1.0"},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}

	results := make([]string, 3)
	for i := 0; i < 3; i++ {
		inst, err := b.Pick(testInstances)
		require.NoError(t, err)
		results[i] = inst.Addr
	}
	assert.Equal(t, []string{":8001", ":8002", ":8003"}, results)

	inst, err := b.Pick(testInstances)
	require.NoError(t, err)
	assert.Equal(t, results[0], inst.Addr, "should wrap around")
}

func TestEmptyInstances(t *testing.T) {
	testCases := []struct {
		name string
		b    Balancer
	}{
		{name: "round robin", b: &RoundRobinBalancer{}},
		{name: "weighted random", b: &WeightedRandomBalancer{}},
		{name: "consistent hash", b: NewConsistentHashBalancer().For("k")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.b.Pick(nil)
			assert.ErrorIs(t, err, registry.ErrNoInstances)
		})
	}
}

func TestWeightedRandom(t *testing.T) {
	b := &WeightedRandomBalancer{}

	counts := map[string]int{}
	n := 10000
	for i := 0; i < n; i++ {
		inst, err := b.Pick(testInstances)
		require.NoError(t, err)
		counts[inst.Addr]++
	}

	// 10:5:10, so :8001 should see about twice what :8002 sees
	ratio := float64(counts[":8001"]) / float64(counts[":8002"])
	assert.InDelta(t, 2.0, ratio, 0.5)
}

func TestWeightedRandomZeroWeights(t *testing.T) {
	b := &WeightedRandomBalancer{}
	inst, err := b.Pick([]registry.ServiceInstance{{Addr: ":1"}, {Addr: ":2"}})
	require.NoError(t, err)
	assert.Contains(t, []string{":1", ":2"}, inst.Addr)
}

func TestConsistentHash(t *testing.T) {
	b := NewConsistentHashBalancer()
	for _, inst := range testInstances {
		b.Add(inst)
	}

	inst1, err := b.PickKey("user-123")
	require.NoError(t, err)
	inst2, err := b.PickKey("user-123")
	require.NoError(t, err)
	assert.Equal(t, inst1.Addr, inst2.Addr)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		inst, err := b.PickKey(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		seen[inst.Addr] = true
	}
	assert.Len(t, seen, 3, "keys should spread over every instance")
}

func TestConsistentHashSyncKeepsUnaffectedKeys(t *testing.T) {
	b := NewConsistentHashBalancer()
	b.Sync(testInstances)

	before := map[string]string{}
	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("img-%d", i)
		inst, err := b.PickKey(key)
		require.NoError(t, err)
		before[key] = inst.Addr
	}

	// dropping :8002 only moves the keys that lived on it
	b.Sync([]registry.ServiceInstance{testInstances[0], testInstances[2]})
	for key, addr := range before {
		inst, err := b.PickKey(key)
		require.NoError(t, err)
		if addr != ":8002" {
			assert.Equal(t, addr, inst.Addr, key)
		} else {
			assert.NotEqual(t, ":8002", inst.Addr, key)
		}
	}
}

func TestNew(t *testing.T) {
	b, err := New("weighted_random")
	require.NoError(t, err)
	assert.Equal(t, "WeightedRandom", b.Name())

	b, err = New("")
	require.NoError(t, err)
	assert.Equal(t, "RoundRobin", b.Name())

	_, err = New("fastest")
	assert.Error(t, err)
}
