// Package registry finds shop servers.
//
// Servers announce themselves under a service name; clients discover the live instances
// and pick one with a loadbalance.Balancer.
package registry

import (
	"context"
	"errors"
)

// KeyPrefix roots every key the etcd registry writes.
const KeyPrefix = "/shopwire/"

var ErrNoInstances = errors.New("registry: no instances available")

type ServiceInstance struct {
	Addr    string
	Weight  int // Weight for load balancing
	Version string
}

type Registry interface {
	Register(ctx context.Context, serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(ctx context.Context, serviceName string, addr string) error
	Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error)
	Watch(ctx context.Context, serviceName string) <-chan []ServiceInstance
}

func serviceKey(serviceName, addr string) string {
	return KeyPrefix + serviceName + "/" + addr
}

func servicePrefix(serviceName string) string {
	return KeyPrefix + serviceName + "/"
}
