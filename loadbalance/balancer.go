// Package loadbalance picks which shop server a client talks to.
//
// Three strategies are implemented:
//   - RoundRobin:      equal-capacity servers
//   - WeightedRandom:  servers of different capacity
//   - ConsistentHash:  key affinity, so repeated image downloads hit the server whose
//     image cache already holds the bytes
package loadbalance

import (
	"fmt"

	"shopwire/registry"
)

// Balancer selects one instance from the live list. Pick must be goroutine-safe.
type Balancer interface {
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)
	Name() string
}

// New returns the balancer for a configured strategy name.
func New(name string) (Balancer, error) {
	switch name {
	case "", "round_robin":
		return &RoundRobinBalancer{}, nil
	case "weighted_random":
		return &WeightedRandomBalancer{}, nil
	}
	return nil, fmt.Errorf("loadbalance: unknown strategy %q", name)
}
