package registry

import (
	"context"
	"sort"
	"sync"
)

// Static is an in-process Registry, for single-node deployments and tests.
// TTLs are ignored: an instance stays until it is deregistered.
type Static struct {
	mu       sync.Mutex
	services map[string]map[string]ServiceInstance
	watchers map[string][]chan []ServiceInstance
}

func NewStatic() *Static {
	return &Static{
		services: make(map[string]map[string]ServiceInstance),
		watchers: make(map[string][]chan []ServiceInstance),
	}
}

func (s *Static) Register(_ context.Context, serviceName string, instance ServiceInstance, _ int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.services[serviceName] == nil {
		s.services[serviceName] = make(map[string]ServiceInstance)
	}
	s.services[serviceName][instance.Addr] = instance
	s.notifyLocked(serviceName)
	return nil
}

func (s *Static) Deregister(_ context.Context, serviceName string, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.services[serviceName], addr)
	s.notifyLocked(serviceName)
	return nil
}

func (s *Static) Discover(_ context.Context, serviceName string) ([]ServiceInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(serviceName), nil
}

// Watch emits the instance list after every change until ctx is done. Slow readers
// only ever see the latest list.
func (s *Static) Watch(ctx context.Context, serviceName string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)
	s.mu.Lock()
	s.watchers[serviceName] = append(s.watchers[serviceName], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		ws := s.watchers[serviceName]
		for i, w := range ws {
			if w == ch {
				s.watchers[serviceName] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

func (s *Static) listLocked(serviceName string) []ServiceInstance {
	instances := make([]ServiceInstance, 0, len(s.services[serviceName]))
	for _, inst := range s.services[serviceName] {
		instances = append(instances, inst)
	}
	sort.Slice(instances, func(i, j int) bool { return instances[i].Addr < instances[j].Addr })
	return instances
}

func (s *Static) notifyLocked(serviceName string) {
	list := s.listLocked(serviceName)
	for _, ch := range s.watchers[serviceName] {
		select {
		case <-ch:
		default:
		}
		ch <- list
	}
}
