package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"
	"strings"
	"sync"

	"shopwire/registry"
)

// ConsistentHashBalancer maps keys to instances on a hash ring, so the same key keeps
// landing on the same server while the instance set is stable.
//
// Each instance is placed on the ring as many virtual nodes to spread load evenly.
//
//	Hash Ring:
//	                  0
//	                ╱   ╲
//	              ╱       ╲
//	         B ●               ● A
//	           │    key ◆──►   │   (clockwise to nearest node → A)
//	         C ●               ● A' (virtual node of A)
//	              ╲       ╱
//	                ╲   ╱
type ConsistentHashBalancer struct {
	replicas int

	mu    sync.RWMutex
	ring  []uint32                            // sorted virtual node hashes
	nodes map[uint32]registry.ServiceInstance // virtual node → instance
	set   string                              // addresses the ring was built from
}

// NewConsistentHashBalancer creates a ring with 100 virtual nodes per instance.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		nodes:    make(map[uint32]registry.ServiceInstance),
	}
}

// Add places an instance on the ring.
func (b *ConsistentHashBalancer) Add(instance registry.ServiceInstance) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addLocked(instance)
	sort.Slice(b.ring, func(i, j int) bool { return b.ring[i] < b.ring[j] })
}

func (b *ConsistentHashBalancer) addLocked(instance registry.ServiceInstance) {
	for i := 0; i < b.replicas; i++ {
		hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", instance.Addr, i)))
		b.ring = append(b.ring, hash)
		b.nodes[hash] = instance
	}
}

// Sync rebuilds the ring when the instance set differs from the one it holds.
func (b *ConsistentHashBalancer) Sync(instances []registry.ServiceInstance) {
	addrs := make([]string, len(instances))
	for i, inst := range instances {
		addrs[i] = inst.Addr
	}
	sort.Strings(addrs)
	set := strings.Join(addrs, ",")

	b.mu.RLock()
	same := set == b.set
	b.mu.RUnlock()
	if same {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.ring = b.ring[:0]
	b.nodes = make(map[uint32]registry.ServiceInstance)
	for _, inst := range instances {
		b.addLocked(inst)
	}
	sort.Slice(b.ring, func(i, j int) bool { return b.ring[i] < b.ring[j] })
	b.set = set
}

// PickKey finds the instance responsible for key: the first virtual node clockwise
// from the key's hash, wrapping past the top of the ring.
func (b *ConsistentHashBalancer) PickKey(key string) (*registry.ServiceInstance, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.ring) == 0 {
		return nil, registry.ErrNoInstances
	}
	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool { return b.ring[i] >= hash })
	if idx == len(b.ring) {
		idx = 0
	}
	inst := b.nodes[b.ring[idx]]
	return &inst, nil
}

// For returns a Balancer that routes every pick by key.
func (b *ConsistentHashBalancer) For(key string) Balancer {
	return keyed{b: b, key: key}
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}

type keyed struct {
	b   *ConsistentHashBalancer
	key string
}

func (k keyed) Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	k.b.Sync(instances)
	return k.b.PickKey(k.key)
}

func (k keyed) Name() string {
	return k.b.Name()
}
